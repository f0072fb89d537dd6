// Package models holds the rows the store service persists for its own
// bookkeeping. Application tables are handled generically by the records
// repository.
package models

import "time"

// User is an account in auth_users.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	// Metadata is the free-form map supplied at sign-up.
	Metadata     map[string]any
	CreatedAt    time.Time
	LastSignInAt *time.Time
}
