package mapper

import (
	"errors"
	"strings"

	"dirsync/internal/directorysync/models"
)

const (
	fieldEmail        = "email"
	fieldName         = "name"
	fieldCustomFields = "customFields"
)

var errUnsupportedPath = errors.New("unsupported target path")

// targetField is one whitelisted top-level local field. get reads the current value
// at the remaining path, set stages a new one. Both reject paths the field cannot hold.
type targetField struct {
	get func(user *models.LocalUser, rest []string) (string, error)
	set func(delta *models.UserDataDelta, rest []string, value string) error
}

var whitelist = map[string]targetField{
	fieldEmail: {
		// email targets are collected into the email list; a nested path is never valid.
		get: func(*models.LocalUser, []string) (string, error) { return "", errUnsupportedPath },
		set: func(*models.UserDataDelta, []string, string) error { return errUnsupportedPath },
	},
	fieldName: {
		get: func(user *models.LocalUser, rest []string) (string, error) {
			if len(rest) != 0 {
				return "", errUnsupportedPath
			}
			return user.Name, nil
		},
		set: func(delta *models.UserDataDelta, rest []string, value string) error {
			if len(rest) != 0 {
				return errUnsupportedPath
			}
			delta.Name = &value
			return nil
		},
	},
	fieldCustomFields: {
		get: func(user *models.LocalUser, rest []string) (string, error) {
			if len(rest) == 0 {
				return "", errUnsupportedPath
			}
			return user.CustomFields[strings.Join(rest, ".")], nil
		},
		set: func(delta *models.UserDataDelta, rest []string, value string) error {
			if len(rest) == 0 {
				return errUnsupportedPath
			}
			if delta.CustomFields == nil {
				delta.CustomFields = make(map[string]string)
			}
			delta.CustomFields[strings.Join(rest, ".")] = value
			return nil
		},
	},
}

func splitTarget(target string) (string, []string) {
	segments := strings.Split(target, ".")
	return segments[0], segments[1:]
}
