package ports

import "context"

// Session exposes the current authenticated identity. The id stamps
// ownership on writes and scopes "my jobs" queries.
type Session interface {
	// CurrentUserID returns the authenticated user id, or false when no
	// user is logged in.
	CurrentUserID() (string, bool)
	Login(ctx context.Context, email, password string) (string, error)
	Logout()
}
