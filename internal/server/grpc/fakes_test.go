package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/server/auth"
	"github.com/dmitrijs2005/lifedash/internal/server/models"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// fakeUsers knows one account, alice, with password "secret1".
type fakeUsers struct {
	secret    []byte
	alice     *models.User
	signUpErr error
	signedOut []string
}

func newFakeUsers(secret string) *fakeUsers {
	return &fakeUsers{
		secret: []byte(secret),
		alice: &models.User{
			ID:        "u-alice",
			Email:     "alice@example.com",
			Metadata:  map[string]any{"full_name": "Alice"},
			CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func (f *fakeUsers) session(u *models.User) (*services.Session, error) {
	tok, exp, err := auth.GenerateToken(u.ID, u.Email, f.secret, time.Hour)
	if err != nil {
		return nil, err
	}
	return &services.Session{AccessToken: tok, RefreshToken: "refresh-" + u.ID, ExpiresAt: exp, User: u}, nil
}

func (f *fakeUsers) SignUp(_ context.Context, email, _ string, metadata map[string]any) (*services.Session, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if email == f.alice.Email {
		return nil, common.ErrorAlreadyExists
	}
	return f.session(&models.User{ID: "u-new", Email: email, Metadata: metadata, CreatedAt: time.Now()})
}

func (f *fakeUsers) SignIn(_ context.Context, email, password string) (*services.Session, error) {
	if email != f.alice.Email || password != "secret1" {
		return nil, common.ErrorUnauthorized
	}
	return f.session(f.alice)
}

func (f *fakeUsers) RefreshToken(_ context.Context, token string) (*services.Session, error) {
	if token != "refresh-"+f.alice.ID {
		return nil, common.ErrRefreshTokenExpired
	}
	return f.session(f.alice)
}

func (f *fakeUsers) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeUsers) Authenticate(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, f.secret)
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if id == f.alice.ID {
		return f.alice, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) ListUsers(context.Context) ([]*models.User, error) {
	return []*models.User{f.alice}, nil
}

// fakeRecords treats "u-alice" as an admin and records the caller of the
// last request.
type fakeRecords struct {
	caller string
	table  string
	err    error
}

func (f *fakeRecords) IsAdmin(_ context.Context, userID string) (bool, error) {
	return userID == "u-alice", nil
}

func (f *fakeRecords) Select(_ context.Context, callerID, table string, _ shared.Filter, opts shared.SelectOptions) (*shared.Result, error) {
	f.caller, f.table = callerID, table
	if f.err != nil {
		return nil, f.err
	}
	if opts.CountOnly {
		return &shared.Result{Count: 2}, nil
	}
	return &shared.Result{Rows: []shared.Row{{"id": "t1", "title": "Write report"}}, Count: 1}, nil
}

func (f *fakeRecords) Insert(_ context.Context, callerID, table string, row shared.Row) (shared.Row, error) {
	f.caller, f.table = callerID, table
	out := shared.Row{"id": "new-id"}
	for k, v := range row {
		out[k] = v
	}
	return out, f.err
}

func (f *fakeRecords) Update(_ context.Context, callerID, table string, _ shared.Filter, _ shared.Row) (int, error) {
	f.caller, f.table = callerID, table
	return 1, f.err
}

func (f *fakeRecords) Upsert(_ context.Context, callerID, table string, row shared.Row, ignoreDuplicates bool) (shared.Row, error) {
	f.caller, f.table = callerID, table
	if ignoreDuplicates {
		return nil, f.err
	}
	return row, f.err
}
