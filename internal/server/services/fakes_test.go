package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/dbx"
	"github.com/dmitrijs2005/lifedash/internal/server/models"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/records"
	refreshtokensrepo "github.com/dmitrijs2005/lifedash/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/lifedash/internal/server/repositories/users"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	nextID  int
	getErr  error
	touched map[string]time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}, touched: map[string]time.Time{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("u%d", f.nextID)
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) List(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) TouchSignIn(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

type fakeTokens struct {
	mu         sync.Mutex
	tokens     map[string]*models.RefreshToken
	deleteMiss bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeTokens) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokens) Delete(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteMiss {
		return false, nil
	}
	_, ok := f.tokens[token]
	delete(f.tokens, token)
	return ok, nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.Expired(now) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) has(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[token]
	return ok
}

// fakeRecords remembers the last call it received.
type fakeRecords struct {
	roles   map[string]string
	roleErr error
	count   int

	table      string
	filter     shared.Filter
	opts       shared.SelectOptions
	row        shared.Row
	upsertOpts records.UpsertOptions
	upsertOut  shared.Row
}

func (f *fakeRecords) Select(_ context.Context, table string, filter shared.Filter, opts shared.SelectOptions) (*shared.Result, error) {
	f.table, f.filter, f.opts = table, filter, opts
	return &shared.Result{Count: f.count}, nil
}

func (f *fakeRecords) Insert(_ context.Context, table string, row shared.Row) (shared.Row, error) {
	f.table, f.row = table, row
	return row, nil
}

func (f *fakeRecords) Update(_ context.Context, table string, filter shared.Filter, patch shared.Row) (int, error) {
	f.table, f.filter, f.row = table, filter, patch
	return 1, nil
}

func (f *fakeRecords) Upsert(_ context.Context, table string, row shared.Row, opts records.UpsertOptions) (shared.Row, error) {
	f.table, f.row, f.upsertOpts = table, row, opts
	return f.upsertOut, nil
}

func (f *fakeRecords) Role(_ context.Context, userID string) (string, error) {
	if f.roleErr != nil {
		return "", f.roleErr
	}
	return f.roles[userID], nil
}

type fakeRepoManager struct {
	users   *fakeUsers
	tokens  *fakeTokens
	records *fakeRecords
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.tokens }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository                 { return m.records }
