package records

import (
	"context"

	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// UpsertOptions shapes Upsert.
type UpsertOptions struct {
	IgnoreDuplicates bool
	// Owner, when set, only lets the merge touch an existing row that
	// belongs to this user.
	Owner string
}

type Repository interface {
	Select(ctx context.Context, table string, filter shared.Filter, opts shared.SelectOptions) (*shared.Result, error)
	Insert(ctx context.Context, table string, row shared.Row) (shared.Row, error)
	Update(ctx context.Context, table string, filter shared.Filter, patch shared.Row) (int, error)
	// Upsert returns nil when the insert was skipped.
	Upsert(ctx context.Context, table string, row shared.Row, opts UpsertOptions) (shared.Row, error)
	// Role returns the stored role of userID's profile, or "" when it has
	// none.
	Role(ctx context.Context, userID string) (string, error)
}
