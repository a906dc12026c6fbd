package models

// User is the authenticated identity handed to services. It is always passed
// explicitly; nothing reads a global current user.
type User struct {
	ID        string `json:"id"`
	GoogleID  string `json:"google_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photo_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Authenticated reports whether the identity can perform writes.
func (u User) Authenticated() bool {
	return u.ID != ""
}

// UserNode is a user's private subtree in the catalog store.
type UserNode struct {
	Account   Account             `json:"account" mapstructure:"account"`
	Profile   Profile             `json:"profile" mapstructure:"profile"`
	Bookmarks map[string]Bookmark `json:"bookmarks" mapstructure:"bookmarks"`
}

// Account mirrors the identity fields persisted under users/{uid}/account.
type Account struct {
	Name      string `json:"name" mapstructure:"name"`
	Email     string `json:"email" mapstructure:"email"`
	PhotoURL  string `json:"photoURL,omitempty" mapstructure:"photoURL"`
	CreatedAt int64  `json:"createdAt" mapstructure:"createdAt"`
}

// Profile holds a user's default cascade selection, used to pre-fill the
// catalog filters.
type Profile struct {
	College  string `json:"college" mapstructure:"college"`
	Course   string `json:"course" mapstructure:"course"`
	Semester string `json:"semester" mapstructure:"semester"`
}

// Bookmark is a copy-record of an entry at the moment it was bookmarked,
// plus the back-reference needed to clear the flag on the source. It is not
// kept in sync with the source afterward, so display fields may go stale.
type Bookmark struct {
	DocName      string `json:"docName" mapstructure:"docName"`
	FileName     string `json:"fileName,omitempty" mapstructure:"fileName"`
	DownloadURL  string `json:"downloadURL,omitempty" mapstructure:"downloadURL"`
	Type         string `json:"type,omitempty" mapstructure:"type"`
	UploadedAt   int64  `json:"uploadedAt" mapstructure:"uploadedAt"`
	OriginalPath string `json:"originalPath" mapstructure:"originalPath"`
}
