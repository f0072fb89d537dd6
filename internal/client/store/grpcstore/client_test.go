package grpcstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

const testKey = "anon-key"

// fakeServer issues numbered tokens and rejects stale ones.
type fakeServer struct {
	mu           sync.Mutex
	generation   int
	expired      bool
	refreshFails bool
	refreshCalls int
	signOutCalls int
	keys         []string
	tokens       []string
}

func (f *fakeServer) newSession() *store.Session {
	f.generation++
	return &store.Session{
		AccessToken:  fmt.Sprintf("access-%d", f.generation),
		RefreshToken: fmt.Sprintf("refresh-%d", f.generation),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         store.User{ID: "u1", Email: "a@x.com", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func (f *fakeServer) record(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	key, token := "", ""
	if v := md.Get(common.APIKeyHeaderName); len(v) > 0 {
		key = v[0]
	}
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		token = v[0]
	}
	f.keys = append(f.keys, key)
	f.tokens = append(f.tokens, token)
	return token
}

func (f *fakeServer) authorize(ctx context.Context) error {
	token := f.record(ctx)
	if token != fmt.Sprintf("access-%d", f.generation) {
		return status.Error(codes.Unauthenticated, "invalid token")
	}
	if f.expired {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	return nil
}

func (f *fakeServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	return structpb.NewStruct(map[string]any{"status": "OK"})
}

func (f *fakeServer) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	c, err := storeapi.ParseCredentials(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if c.Email != "a@x.com" || c.Password != "pw" {
		return nil, status.Error(codes.Unauthenticated, "invalid login credentials")
	}
	f.expired = false
	return storeapi.AuthResponse{Session: f.newSession()}.Struct()
}

func (f *fakeServer) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	c, err := storeapi.ParseCredentials(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if c.Email == "taken@x.com" {
		return nil, status.Error(codes.AlreadyExists, "user already registered")
	}
	sess := f.newSession()
	sess.User.Email = c.Email
	sess.User.Metadata = c.Metadata
	return storeapi.AuthResponse{User: &sess.User, Session: sess}.Struct()
}

func (f *fakeServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	f.refreshCalls++
	r, err := storeapi.ParseRefreshRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if f.refreshFails || r.RefreshToken != fmt.Sprintf("refresh-%d", f.generation) {
		return nil, status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	}
	f.expired = false
	return storeapi.AuthResponse{Session: f.newSession()}.Struct()
}

func (f *fakeServer) SignOut(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

func (f *fakeServer) GetUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "unimplemented")
}

func (f *fakeServer) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	return nil, status.Error(codes.PermissionDenied, "admin only")
}

func (f *fakeServer) Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	req, err := storeapi.ParseSelectRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Options.CountOnly {
		return storeapi.RowsResponse{Count: 7}.Struct()
	}
	return storeapi.RowsResponse{Rows: []store.Row{{"id": "t1", "table": req.Table}}, Count: 1}.Struct()
}

func (f *fakeServer) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	req, err := storeapi.ParseWriteRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req.Row["id"] = "new-id"
	return storeapi.RowsResponse{Rows: []store.Row{req.Row}, Count: 1}.Struct()
}

func (f *fakeServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	return storeapi.RowsResponse{Count: 2}.Struct()
}

func (f *fakeServer) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	req, err := storeapi.ParseWriteRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.IgnoreDuplicates {
		return storeapi.RowsResponse{}.Struct()
	}
	return storeapi.RowsResponse{Rows: []store.Row{req.Row}, Count: 1}.Struct()
}

type memCache struct {
	mu    sync.Mutex
	sess  *store.Session
	saves int
}

func (m *memCache) Load(context.Context) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *memCache) Save(_ context.Context, s *store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = s
	m.saves++
	return nil
}

func newTestClient(t *testing.T, cache SessionCache) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{}
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	storeapi.RegisterStoreServer(srv, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := New(Options{
		Endpoint: "passthrough:///bufnet",
		APIKey:   testKey,
		Timeout:  5 * time.Second,
		Cache:    cache,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

func collect(c *Client) (<-chan store.Event, func()) {
	ch := make(chan store.Event, 16)
	unsub := c.OnSessionChange(func(ev store.Event) { ch <- ev })
	return ch, unsub
}

func nextEvent(t *testing.T, ch <-chan store.Event) store.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no session event")
	}
	return store.Event{}
}

func TestPing_SendsAPIKey(t *testing.T) {
	c, fake := newTestClient(t, nil)
	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, []string{testKey}, fake.keys)
	assert.Equal(t, []string{""}, fake.tokens)
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	c, fake := newTestClient(t, cache)
	events, unsub := collect(c)
	defer unsub()

	_, err := c.SignInWithPassword(ctx, "a@x.com", "wrong")
	var ae *store.AuthError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)

	sess, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "access-1", sess.AccessToken)
	assert.Equal(t, store.EventSignedIn, nextEvent(t, events).Kind)
	assert.Equal(t, "access-1", cache.sess.AccessToken)

	res, err := c.Select(ctx, store.TableTasks, store.Where("user_id", "u1"), store.SelectOptions{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "tasks", res.Rows[0].String("table"))
	assert.Equal(t, "access-1", fake.tokens[len(fake.tokens)-1])
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	_, _, err := c.SignUp(ctx, "taken@x.com", "pw", nil)
	assert.ErrorIs(t, err, store.ErrUserExists)

	user, sess, err := c.SignUp(ctx, "new@x.com", "pw", map[string]any{"role": "admin", "full_name": "New"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, "admin", user.Metadata["role"])

	cur, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, cur.AccessToken)
}

func TestExpiredTokenIsRefreshedAndRetried(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	c, fake := newTestClient(t, cache)

	_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	events, unsub := collect(c)
	defer unsub()

	fake.mu.Lock()
	fake.expired = true
	fake.mu.Unlock()

	res, err := c.Select(ctx, store.TableTasks, store.Filter{}, store.SelectOptions{CountOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)

	ev := nextEvent(t, events)
	assert.Equal(t, store.EventTokenRefreshed, ev.Kind)
	assert.Equal(t, "access-2", ev.Session.AccessToken)
	assert.Equal(t, 1, fake.refreshCalls)
	assert.Equal(t, "access-2", cache.sess.AccessToken)
}

func TestExpiredTokenRefreshFailureReturnsOriginalError(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t, nil)

	_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.expired = true
	fake.refreshFails = true
	fake.mu.Unlock()

	_, err = c.Update(ctx, store.TableProfiles, store.Where("id", "u1"), store.Row{"role": "user"})
	assert.ErrorIs(t, err, store.ErrTokenExpired)
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("loads cache once", func(t *testing.T) {
		cache := &memCache{sess: &store.Session{
			AccessToken: "cached",
			ExpiresAt:   time.Now().Add(time.Hour),
			User:        store.User{ID: "u9"},
		}}
		c, fake := newTestClient(t, cache)

		sess, err := c.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "u9", sess.User.ID)
		assert.Zero(t, fake.refreshCalls)
	})

	t.Run("refreshes expired session", func(t *testing.T) {
		c, fake := newTestClient(t, nil)
		_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
		require.NoError(t, err)

		c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		sess, err := c.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "access-2", sess.AccessToken)
		assert.Equal(t, 1, fake.refreshCalls)
	})

	t.Run("drops session when refresh is rejected", func(t *testing.T) {
		c, fake := newTestClient(t, nil)
		_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
		require.NoError(t, err)
		events, unsub := collect(c)
		defer unsub()

		fake.mu.Lock()
		fake.refreshFails = true
		fake.mu.Unlock()
		c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		sess, err := c.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.Equal(t, store.EventSignedOut, nextEvent(t, events).Kind)
	})
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	c, fake := newTestClient(t, cache)

	require.NoError(t, c.SignOut(ctx))
	assert.Zero(t, fake.signOutCalls)

	_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, 1, fake.signOutCalls)
	assert.Nil(t, cache.sess)

	_, err = c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	fake.mu.Lock()
	fake.generation++ // invalidates the client's token
	fake.mu.Unlock()

	err = c.SignOut(ctx)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	sess, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)
	_, err := c.SignInWithPassword(ctx, "a@x.com", "pw")
	require.NoError(t, err)

	row, err := c.Insert(ctx, store.TableTasks, store.Row{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", row.String("id"))

	n, err := c.Update(ctx, store.TableTasks, store.Where("id", "new-id"), store.Row{"title": "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	row, err = c.Upsert(ctx, store.TableProfiles, store.Row{"id": "u1"}, store.UpsertOptions{IgnoreDuplicates: true})
	require.NoError(t, err)
	assert.Nil(t, row)

	row, err = c.Upsert(ctx, store.TableProfiles, store.Row{"id": "u1", "role": "user"}, store.UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "user", row.String("role"))

	_, err = c.ListUsers(ctx)
	assert.ErrorIs(t, err, store.ErrPermissionDenied)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{status.Error(codes.Unauthenticated, "token expired"), store.ErrTokenExpired},
		{status.Error(codes.Unauthenticated, "missing token"), store.ErrNotAuthenticated},
		{status.Error(codes.PermissionDenied, "no"), store.ErrPermissionDenied},
		{status.Error(codes.InvalidArgument, "bad"), store.ErrInvalidArgument},
		{status.Error(codes.NotFound, "gone"), store.ErrNotFound},
		{status.Error(codes.AlreadyExists, "dup"), store.ErrConflict},
		{status.Error(codes.Unavailable, "down"), store.ErrUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), store.ErrUnavailable},
		{status.Error(codes.Internal, "boom"), store.ErrInternal},
		{errors.New("plain"), store.ErrInternal},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, mapError(tt.err), tt.want, tt.err.Error())
	}
	assert.NoError(t, mapError(nil))
}
