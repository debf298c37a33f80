// Package identity derives the durable identity key and the local username of a
// directory record. Everything here is pure: the same record and settings always
// produce the same result, which is what keeps re-syncs from creating duplicates.
package identity

import (
	"encoding/hex"

	"dirsync/internal/directorysync/models"
)

// ResolveUniqueIdentity picks the first identity candidate (identifier fields, then
// search fields) that has a non-empty value on the record. The value is the hex
// encoding of the raw attribute bytes, so binary GUIDs survive unchanged.
func ResolveUniqueIdentity(record *models.DirectoryRecord, settings *models.Settings) (*models.UniqueIdentity, bool) {
	if record == nil || settings == nil {
		return nil, false
	}
	for _, field := range settings.IdentityCandidates() {
		raw := record.RawFirst(field)
		if len(raw) == 0 {
			continue
		}
		return &models.UniqueIdentity{
			Attribute: field,
			Value:     hex.EncodeToString(raw),
		}, true
	}
	return nil, false
}

// ResolveUsername derives the local username from the configured username field.
// A plain attribute name yields that attribute's value; an expression containing
// #{attr} placeholders is expanded. The result is slugged when enabled.
func ResolveUsername(record *models.DirectoryRecord, settings *models.Settings) (string, bool) {
	if record == nil || settings == nil || settings.UsernameField == "" {
		return "", false
	}

	var username string
	if IsTemplate(settings.UsernameField) {
		username = ExpandTemplate(settings.UsernameField, record)
	} else {
		username = record.First(settings.UsernameField)
	}
	if username == "" {
		return "", false
	}

	if settings.SlugifyUsernames {
		username = Slug(username)
		if username == "" {
			return "", false
		}
	}
	return username, true
}
