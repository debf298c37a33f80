// Package mapper computes the minimal change set that brings a local user in line
// with a directory record.
package mapper

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"dirsync/internal/directorysync/identity"
	"dirsync/internal/directorysync/models"
)

// Mapper is stateless apart from its logger.
type Mapper struct {
	logger *slog.Logger
}

// New returns a Mapper. A nil logger discards output.
func New(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mapper{logger: logger}
}

// ComputeDelta returns the changes to apply to current, or nil when nothing differs.
// Attribute mapping runs only when user-data sync is on; the identity link and the
// directory flag are staged regardless.
func (m *Mapper) ComputeDelta(record *models.DirectoryRecord, current *models.LocalUser, settings *models.Settings) *models.UserDataDelta {
	if current == nil {
		current = &models.LocalUser{}
	}
	delta := &models.UserDataDelta{}

	if settings.SyncUserData && settings.FieldMappingErr == nil && len(settings.FieldMapping) > 0 {
		m.mapAttributes(record, current, settings.FieldMapping, delta)
	}

	if resolved, ok := identity.ResolveUniqueIdentity(record, settings); ok && !resolved.Equal(current.StoredIdentity()) {
		delta.Identity = resolved
	}
	if !current.LinkedToDirectory {
		delta.LinkToDirectory = true
	}

	if delta.IsEmpty() {
		return nil
	}
	return delta
}

func (m *Mapper) mapAttributes(record *models.DirectoryRecord, current *models.LocalUser, mapping models.FieldMapping, delta *models.UserDataDelta) {
	var emails []models.EmailAddress

	for _, entry := range mapping {
		isTemplate := identity.IsTemplate(entry.DirectoryField)
		if !isTemplate && !record.Has(entry.DirectoryField) {
			m.logger.Debug("directory attribute missing, skipping mapping",
				"dn", record.DN,
				"attribute", entry.DirectoryField,
				"target", entry.TargetField,
			)
			continue
		}

		root, rest := splitTarget(entry.TargetField)
		field, whitelisted := whitelist[root]
		if !whitelisted {
			m.logger.Warn("target field not allowed, skipping mapping",
				"attribute", entry.DirectoryField,
				"target", entry.TargetField,
			)
			continue
		}

		if entry.TargetField == fieldEmail {
			emails = append(emails, emailValues(record, entry.DirectoryField, isTemplate)...)
			continue
		}

		value := resolveValue(record, entry.DirectoryField, isTemplate)
		if value == "" {
			continue
		}
		existing, err := field.get(current, rest)
		if err != nil {
			m.logger.Warn("target path not supported, skipping mapping",
				"target", entry.TargetField,
				"error", err,
			)
			continue
		}
		if existing == value {
			continue
		}
		if err := field.set(delta, rest, value); err != nil {
			m.logger.Warn("target path not supported, skipping mapping",
				"target", entry.TargetField,
				"error", err,
			)
		}
	}

	if len(emails) > 0 && !sameEmails(current.Emails, emails) {
		delta.Emails = emails
	}
}

func resolveValue(record *models.DirectoryRecord, field string, isTemplate bool) string {
	if isTemplate {
		return identity.ExpandTemplate(field, record)
	}
	return record.First(field)
}

// emailValues turns every value of the attribute into a verified address, in record order.
func emailValues(record *models.DirectoryRecord, field string, isTemplate bool) []models.EmailAddress {
	var values []string
	if isTemplate {
		values = []string{identity.ExpandTemplate(field, record)}
	} else {
		values = record.Values(field)
	}

	out := make([]models.EmailAddress, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, models.EmailAddress{Address: v, Verified: true})
	}
	return out
}

// sameEmails compares the serialized lists, so order and verification state both count.
func sameEmails(current, next []models.EmailAddress) bool {
	a, errA := json.Marshal(current)
	b, errB := json.Marshal(next)
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}
