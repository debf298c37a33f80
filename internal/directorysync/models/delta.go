package models

import "sort"

// UserDataDelta is the minimal set of changes to apply to one local user.
// Nil or empty fields mean "unchanged".
type UserDataDelta struct {
	Name            *string
	Emails          []EmailAddress
	CustomFields    map[string]string
	Identity        *UniqueIdentity
	LinkToDirectory bool
}

// IsEmpty reports whether applying the delta would change nothing.
func (d *UserDataDelta) IsEmpty() bool {
	if d == nil {
		return true
	}
	return d.Name == nil &&
		d.Emails == nil &&
		len(d.CustomFields) == 0 &&
		d.Identity == nil &&
		!d.LinkToDirectory
}

// Paths lists the local field paths the delta touches, sorted, for logging.
func (d *UserDataDelta) Paths() []string {
	if d.IsEmpty() {
		return nil
	}
	var paths []string
	if d.Name != nil {
		paths = append(paths, "name")
	}
	if d.Emails != nil {
		paths = append(paths, "emails")
	}
	for key := range d.CustomFields {
		paths = append(paths, "customFields."+key)
	}
	if d.Identity != nil {
		paths = append(paths, "services.directory.id", "services.directory.idAttribute")
	}
	if d.LinkToDirectory {
		paths = append(paths, "linkedToDirectory")
	}
	sort.Strings(paths)
	return paths
}

// WithoutName returns a copy of the delta with the name change removed, for stores
// that update display names through a dedicated call.
func (d *UserDataDelta) WithoutName() *UserDataDelta {
	if d == nil {
		return nil
	}
	out := *d
	out.Name = nil
	return &out
}
