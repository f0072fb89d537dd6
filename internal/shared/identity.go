package shared

import "time"

// User is the identity part of a session.
type User struct {
	ID           string
	Email        string
	Metadata     map[string]any
	CreatedAt    time.Time
	LastSignInAt *time.Time
}

// Session is the store's proof of authentication.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Expired reports whether the access token is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
