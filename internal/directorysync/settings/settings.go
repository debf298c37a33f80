// Package settings assembles the per-run sync settings from configuration and
// keeps the current snapshot for concurrent readers.
package settings

import (
	"strings"
	"sync/atomic"

	"dirsync/internal/directorysync/mapper"
	"dirsync/internal/directorysync/models"
	"dirsync/internal/platform/config"
	dErrors "dirsync/pkg/domain-errors"
	strutil "dirsync/pkg/platform/strings"
)

// Build turns raw configuration into models.Settings. A malformed field map does not
// fail the build; it is kept on FieldMappingErr and fails each record that needs it.
// Enabled settings without a single identity candidate are rejected.
func Build(cfg config.Sync) (*models.Settings, error) {
	mapping, mappingErr := mapper.ParseFieldMapping(cfg.SyncUserDataFieldMap)

	s := &models.Settings{
		Enabled:                  cfg.Enabled,
		UniqueIdentifierFields:   strutil.SplitList(cfg.UniqueIdentifierField),
		SearchFields:             strutil.SplitList(cfg.SearchField),
		UsernameField:            strings.TrimSpace(cfg.UsernameField),
		SlugifyUsernames:         cfg.SlugifyUsernames,
		SyncUserData:             cfg.SyncUserData,
		FieldMapping:             mapping,
		FieldMappingErr:          mappingErr,
		SyncAvatar:               cfg.SyncAvatar,
		DefaultDomain:            strings.TrimSpace(cfg.DefaultDomain),
		MergeExistingUsers:       cfg.MergeExistingUsers,
		BackgroundSync:           cfg.BackgroundSync,
		SyncInterval:             strings.TrimSpace(cfg.BackgroundSyncInterval),
		ImportNewUsers:           cfg.ImportNewUsers,
		KeepExistingUsersUpdated: cfg.KeepExistingUsersUpdated,
	}
	if s.Enabled && len(s.IdentityCandidates()) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "no unique identifier or search field configured")
	}
	return s, nil
}

// Holder publishes the current settings. Readers take one snapshot per run.
type Holder struct {
	current atomic.Pointer[models.Settings]
}

// NewHolder returns a Holder seeded with initial.
func NewHolder(initial *models.Settings) *Holder {
	h := &Holder{}
	h.Store(initial)
	return h
}

// Load returns the current snapshot. Callers must not mutate it.
func (h *Holder) Load() *models.Settings {
	if s := h.current.Load(); s != nil {
		return s
	}
	return &models.Settings{}
}

// Store replaces the snapshot.
func (h *Holder) Store(s *models.Settings) {
	h.current.Store(s)
}
