package sessioncache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
)

const sessionKey = "session"

type storedSession struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	UserID       string         `json:"user_id"`
	Email        string         `json:"email,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
}

// Cache persists one session.
type Cache struct {
	repo *MetadataRepository
}

func New(db *sql.DB) *Cache {
	return &Cache{repo: NewMetadataRepository(db)}
}

// Load returns the saved session, or nil when none is saved.
func (c *Cache) Load(ctx context.Context) (*store.Session, error) {
	raw, err := c.repo.Get(ctx, sessionKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var s storedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	return &store.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User: store.User{
			ID:           s.UserID,
			Email:        s.Email,
			Metadata:     s.Metadata,
			CreatedAt:    s.CreatedAt,
			LastSignInAt: s.LastSignInAt,
		},
	}, nil
}

// Save replaces the saved session. A nil session clears it.
func (c *Cache) Save(ctx context.Context, sess *store.Session) error {
	if sess == nil {
		return c.Clear(ctx)
	}
	raw, err := json.Marshal(storedSession{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		UserID:       sess.User.ID,
		Email:        sess.User.Email,
		Metadata:     sess.User.Metadata,
		CreatedAt:    sess.User.CreatedAt,
		LastSignInAt: sess.User.LastSignInAt,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return c.repo.Set(ctx, sessionKey, raw)
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.repo.Delete(ctx, sessionKey)
}
