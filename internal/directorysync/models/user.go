package models

// EmailAddress is one entry of a user's email list.
type EmailAddress struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// DirectoryLink is the identity stored on a local user that was linked to the directory.
type DirectoryLink struct {
	ID          string
	IDAttribute string
}

// LocalUser is the host application's user record as seen by the sync engine.
// CustomFields keys are dot paths relative to customFields ("department", "org.unit").
type LocalUser struct {
	ID                string
	Username          string
	Name              string
	Emails            []EmailAddress
	CustomFields      map[string]string
	Directory         *DirectoryLink
	LinkedToDirectory bool
	AvatarOrigin      string
}

// StoredIdentity returns the identity currently recorded on the user, if any.
func (u *LocalUser) StoredIdentity() *UniqueIdentity {
	if u == nil || u.Directory == nil || u.Directory.ID == "" {
		return nil
	}
	return &UniqueIdentity{Attribute: u.Directory.IDAttribute, Value: u.Directory.ID}
}

// PrimaryEmail returns the first email address, or "".
func (u *LocalUser) PrimaryEmail() string {
	if u == nil || len(u.Emails) == 0 {
		return ""
	}
	return u.Emails[0].Address
}

// NewAccount holds the fields the host store needs to create an account.
type NewAccount struct {
	Username string
	Email    string
}

// AvatarOriginDirectory marks avatars copied from the directory.
const AvatarOriginDirectory = "directory"
