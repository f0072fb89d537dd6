// Package grpcstore implements store.Client against the store service.
package grpcstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

// SessionCache persists the session between runs. *sessioncache.Cache
// implements it.
type SessionCache interface {
	Load(ctx context.Context) (*store.Session, error)
	Save(ctx context.Context, sess *store.Session) error
}

type Options struct {
	Endpoint string
	APIKey   string
	// Timeout bounds every call. Zero means no bound.
	Timeout time.Duration
	// Cache is optional.
	Cache SessionCache
	Log   logging.Logger
	// DialOptions are appended to the defaults; tests use them to dial
	// an in-process listener.
	DialOptions []grpc.DialOption
}

type Client struct {
	conn    *grpc.ClientConn
	api     *storeapi.Client
	apiKey  string
	timeout time.Duration
	cache   SessionCache
	log     logging.Logger
	events  *store.Broadcaster
	now     func() time.Time

	mu      sync.Mutex
	session *store.Session
	loaded  bool

	refreshMu sync.Mutex
}

var _ store.Client = (*Client)(nil)

func New(opts Options) (*Client, error) {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	c := &Client{
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		cache:   opts.Cache,
		log:     log.With("module", "grpcstore"),
		events:  store.NewBroadcaster(),
		now:     time.Now,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.api = storeapi.NewClient(conn)
	return c, nil
}

func (c *Client) Close() error {
	c.events.Close()
	return c.conn.Close()
}

// Ping checks that the service is reachable and accepts the access key.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.api.Call(ctx, storeapi.MethodPing, nil)
	if err != nil {
		return mapError(err)
	}
	if resp.AsMap()["status"] != "OK" {
		return store.ErrUnavailable
	}
	return nil
}

func (c *Client) OnSessionChange(fn func(store.Event)) func() {
	return c.events.Subscribe(fn)
}

// GetSession returns the cached session, loading it from the session cache
// on first use. An expired access token is refreshed first.
func (c *Client) GetSession(ctx context.Context) (*store.Session, error) {
	sess := c.current(ctx)
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(c.now()) {
		return sess, nil
	}

	refreshed, err := c.refresh(ctx, sess.AccessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotAuthenticated) || errors.Is(err, store.ErrTokenExpired) {
			c.log.Info(ctx, "session could not be refreshed, signing out locally", "error", err)
			c.setSession(ctx, nil, store.EventSignedOut)
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*store.Session, error) {
	req, err := storeapi.Credentials{Email: email, Password: password}.Struct()
	if err != nil {
		return nil, store.NewAuthError("sign_in", err)
	}
	resp, err := c.api.Call(ctx, storeapi.MethodSignIn, req)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, store.ErrNotAuthenticated) {
			err = store.ErrInvalidCredentials
		}
		return nil, store.NewAuthError("sign_in", err)
	}
	ar, err := storeapi.ParseAuthResponse(resp)
	if err != nil {
		return nil, store.NewAuthError("sign_in", err)
	}
	if ar.Session == nil {
		return nil, store.NewAuthError("sign_in", fmt.Errorf("no session in response: %w", store.ErrInternal))
	}
	c.setSession(ctx, ar.Session, store.EventSignedIn)
	return copySession(ar.Session), nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*store.User, *store.Session, error) {
	req, err := storeapi.Credentials{Email: email, Password: password, Metadata: metadata}.Struct()
	if err != nil {
		return nil, nil, store.NewAuthError("sign_up", err)
	}
	resp, err := c.api.Call(ctx, storeapi.MethodSignUp, req)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, store.ErrConflict) {
			err = store.ErrUserExists
		}
		return nil, nil, store.NewAuthError("sign_up", err)
	}
	ar, err := storeapi.ParseAuthResponse(resp)
	if err != nil {
		return nil, nil, store.NewAuthError("sign_up", err)
	}
	if ar.Session != nil {
		c.setSession(ctx, ar.Session, store.EventSignedIn)
		if ar.User == nil {
			u := ar.Session.User
			ar.User = &u
		}
	}
	return ar.User, copySession(ar.Session), nil
}

// SignOut revokes the refresh token. The local session is dropped even
// when the service call fails.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.current(ctx)
	if sess == nil {
		return nil
	}

	var callErr error
	req, err := storeapi.RefreshRequest{RefreshToken: sess.RefreshToken}.Struct()
	if err == nil {
		_, err = c.api.Call(ctx, storeapi.MethodSignOut, req)
	}
	if err != nil {
		callErr = store.NewAuthError("sign_out", mapError(err))
	}

	c.setSession(ctx, nil, store.EventSignedOut)
	return callErr
}

func (c *Client) ListUsers(ctx context.Context) ([]store.User, error) {
	resp, err := c.api.Call(ctx, storeapi.MethodListUsers, nil)
	if err != nil {
		return nil, mapError(err)
	}
	ur, err := storeapi.ParseUsersResponse(resp)
	if err != nil {
		return nil, err
	}
	return ur.Users, nil
}

func (c *Client) Select(ctx context.Context, table string, filter store.Filter, opts store.SelectOptions) (*store.Result, error) {
	req, err := storeapi.SelectRequest{Table: table, Filter: filter, Options: opts}.Struct()
	if err != nil {
		return nil, err
	}
	rr, err := c.rows(ctx, storeapi.MethodSelect, req)
	if err != nil {
		return nil, err
	}
	return &store.Result{Rows: rr.Rows, Count: rr.Count}, nil
}

func (c *Client) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	req, err := storeapi.WriteRequest{Table: table, Row: row}.Struct()
	if err != nil {
		return nil, err
	}
	rr, err := c.rows(ctx, storeapi.MethodInsert, req)
	if err != nil {
		return nil, err
	}
	if len(rr.Rows) == 0 {
		return nil, fmt.Errorf("insert %s returned no row: %w", table, store.ErrInternal)
	}
	return rr.Rows[0], nil
}

func (c *Client) Update(ctx context.Context, table string, filter store.Filter, patch store.Row) (int, error) {
	req, err := storeapi.WriteRequest{Table: table, Row: patch, Filter: filter}.Struct()
	if err != nil {
		return 0, err
	}
	rr, err := c.rows(ctx, storeapi.MethodUpdate, req)
	if err != nil {
		return 0, err
	}
	return rr.Count, nil
}

func (c *Client) Upsert(ctx context.Context, table string, row store.Row, opts store.UpsertOptions) (store.Row, error) {
	req, err := storeapi.WriteRequest{Table: table, Row: row, IgnoreDuplicates: opts.IgnoreDuplicates}.Struct()
	if err != nil {
		return nil, err
	}
	rr, err := c.rows(ctx, storeapi.MethodUpsert, req)
	if err != nil {
		return nil, err
	}
	if len(rr.Rows) == 0 {
		return nil, nil
	}
	return rr.Rows[0], nil
}

func (c *Client) rows(ctx context.Context, method string, req *structpb.Struct) (storeapi.RowsResponse, error) {
	resp, err := c.api.Call(ctx, method, req)
	if err != nil {
		return storeapi.RowsResponse{}, mapError(err)
	}
	return storeapi.ParseRowsResponse(resp)
}

// current returns a copy of the session, loading the cache on first use.
func (c *Client) current(ctx context.Context) *store.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.loaded = true
		if c.cache != nil {
			sess, err := c.cache.Load(ctx)
			if err != nil {
				c.log.Warn(ctx, "reading cached session failed", "error", err)
			}
			c.session = sess
		}
	}
	return copySession(c.session)
}

// setSession replaces the session, persists it and notifies listeners.
func (c *Client) setSession(ctx context.Context, sess *store.Session, kind store.EventKind) {
	c.mu.Lock()
	c.loaded = true
	c.session = copySession(sess)
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Save(ctx, sess); err != nil {
			c.log.Warn(ctx, "writing cached session failed", "error", err)
		}
	}
	c.events.Publish(store.Event{Kind: kind, Session: copySession(sess)})
}

func copySession(s *store.Session) *store.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
