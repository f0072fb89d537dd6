package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// Well-known table names.
const (
	TableProfiles     = shared.TableProfiles
	TableTasks        = shared.TableTasks
	TableTransactions = shared.TableTransactions
)

type (
	User          = shared.User
	Session       = shared.Session
	Row           = shared.Row
	Filter        = shared.Filter
	SelectOptions = shared.SelectOptions
	Result        = shared.Result
)

// Where returns a filter with a single equality condition.
func Where(column string, value any) Filter { return shared.Where(column, value) }

// FormatTime renders t the way rows carry timestamps.
func FormatTime(t time.Time) string { return shared.FormatTime(t) }

// EventKind names a session transition.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is delivered to session-change listeners. Session is nil for
// EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}

// UpsertOptions shapes an upsert keyed by the table's primary key.
type UpsertOptions struct {
	// IgnoreDuplicates keeps an existing row untouched instead of merging
	// the new values into it.
	IgnoreDuplicates bool
}

// Auth is the authentication half of the store.
type Auth interface {
	// GetSession returns the current session or nil. It does not touch the
	// network unless the cached access token has expired.
	GetSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers fn for every session transition and returns
	// a function that removes it.
	OnSessionChange(fn func(Event)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp creates an account. The returned session is nil when the store
	// requires a separate sign-in.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, *Session, error)
	// SignOut invalidates the local session.
	SignOut(ctx context.Context) error
	// ListUsers returns every account. Admin only.
	ListUsers(ctx context.Context) ([]User, error)
}

// Records is the persistence half of the store.
type Records interface {
	Select(ctx context.Context, table string, filter Filter, opts SelectOptions) (*Result, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// Update applies patch to every row matching filter and returns how many
	// rows changed.
	Update(ctx context.Context, table string, filter Filter, patch Row) (int, error)
	// Upsert inserts row or merges it into the existing row with the same
	// primary key. The returned row is nil when IgnoreDuplicates skipped it.
	Upsert(ctx context.Context, table string, row Row, opts UpsertOptions) (Row, error)
}

// Client is everything the application needs from the store.
type Client interface {
	Auth
	Records
	Close() error
}
