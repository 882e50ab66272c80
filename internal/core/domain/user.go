package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrNotAuthenticated   = errors.New("no authenticated user")
)

// UserProfile models a field worker. The id equals the authenticated
// identity id; Email is the stable login handle used as the ownership
// stamp on jobs.
type UserProfile struct {
	ID            string `json:"id" bson:"_id"`
	DisplayName   string `json:"display_name" bson:"display_name"`
	Email         string `json:"email" bson:"email"`
	ContactNumber string `json:"contact_number,omitempty" bson:"contact_number,omitempty"`
}

// Clone returns a copy safe to hand to callers.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Credential is an authentication record, kept separate from the synced
// profile row. PasswordHash is a bcrypt hash and never leaves the auth store.
type Credential struct {
	UserID       string `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"-" bson:"password_hash"`
}
