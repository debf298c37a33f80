package models

import "strings"

// DirectoryRecord is one entry returned by a directory search. Attributes holds the
// string view of every attribute; Raw holds the byte view used for binary-safe
// identity (objectGUID) and photos. Every attribute is multi-valued. Attribute names
// match case-insensitively, as in LDAP.
type DirectoryRecord struct {
	DN         string
	Attributes map[string][]string
	Raw        map[string][][]byte
}

// Has reports whether the record carries the attribute at all.
func (r *DirectoryRecord) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := lookup(r.Attributes, name)
	return ok
}

// Values returns every string value of the attribute in directory order.
func (r *DirectoryRecord) Values(name string) []string {
	if r == nil {
		return nil
	}
	values, _ := lookup(r.Attributes, name)
	return values
}

// First returns the first string value of the attribute, or "".
func (r *DirectoryRecord) First(name string) string {
	values := r.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// IsMultiValued reports whether the attribute holds more than one value.
func (r *DirectoryRecord) IsMultiValued(name string) bool {
	return len(r.Values(name)) > 1
}

// RawFirst returns the first raw value of the attribute, falling back to the
// bytes of the string view when the directory supplied no raw value.
func (r *DirectoryRecord) RawFirst(name string) []byte {
	if r == nil {
		return nil
	}
	if raw, _ := lookup(r.Raw, name); len(raw) > 0 && len(raw[0]) > 0 {
		return raw[0]
	}
	if first := r.First(name); first != "" {
		return []byte(first)
	}
	return nil
}

// lookup prefers the exact key and falls back to a case-insensitive match.
func lookup[V any](m map[string]V, name string) (V, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for key, v := range m {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// UniqueIdentity is the durable foreign key linking a directory entry to a local user.
// Value is the hex encoding of the attribute's raw bytes.
type UniqueIdentity struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// Equal compares attribute and value.
func (u *UniqueIdentity) Equal(other *UniqueIdentity) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Attribute == other.Attribute && u.Value == other.Value
}
