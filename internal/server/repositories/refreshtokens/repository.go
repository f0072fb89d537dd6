// Package refreshtokens stores the opaque refresh tokens handed out at
// sign-in and rotated on every refresh.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete reports whether a row was removed. A token that is already gone
	// is not an error, which lets rotation detect a concurrent exchange.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteExpired purges tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
