package models

// FieldMappingEntry maps one directory attribute (or #{template}) onto a local field path.
type FieldMappingEntry struct {
	DirectoryField string
	TargetField    string
}

// FieldMapping keeps the order of the configured JSON object.
type FieldMapping []FieldMappingEntry

// Settings is the configuration of one sync run, assembled once and passed
// explicitly to every component.
type Settings struct {
	// Enabled gates every run.
	Enabled bool

	// UniqueIdentifierFields and SearchFields are the identity candidates, in order.
	UniqueIdentifierFields []string
	SearchFields           []string

	// UsernameField is an attribute name or a #{attr} template. Empty disables username sync.
	UsernameField    string
	SlugifyUsernames bool

	SyncUserData bool
	FieldMapping FieldMapping
	// FieldMappingErr is set when the configured field map could not be parsed.
	FieldMappingErr error

	SyncAvatar         bool
	DefaultDomain      string
	MergeExistingUsers bool

	BackgroundSync           bool
	SyncInterval             string
	ImportNewUsers           bool
	KeepExistingUsersUpdated bool
}

// IdentityCandidates returns identifier fields followed by search fields.
func (s *Settings) IdentityCandidates() []string {
	out := make([]string, 0, len(s.UniqueIdentifierFields)+len(s.SearchFields))
	out = append(out, s.UniqueIdentifierFields...)
	return append(out, s.SearchFields...)
}
