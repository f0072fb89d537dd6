package profiles

import "fmt"

// StoreError is a profile read or write that failed inside the resolver.
// It is logged and recovered from, never returned to callers of Resolve.
type StoreError struct {
	Op     string
	UserID string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("profile %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
