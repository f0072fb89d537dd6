// Package users persists store accounts in auth_users.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID and CreatedAt. A taken email
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByEmail matches the email case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// TouchSignIn records a successful sign-in.
	TouchSignIn(ctx context.Context, id string, at time.Time) error
}
