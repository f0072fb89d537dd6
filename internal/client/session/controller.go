// Package session tracks who is signed in and what they may do.
//
// A Controller listens to the store's session transitions and keeps a cached
// copy of the current user together with the role, display name and email
// the profile resolver settled on.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/lifedash/internal/client/profiles"
	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "initializing"
}

// Resolver decides roles. *profiles.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, userID, email string) profiles.Resolution
	SignUpRole(ctx context.Context, email string) profiles.Role
}

// Snapshot is a consistent copy of the controller's state.
type Snapshot struct {
	State    State
	User     *store.User
	Role     profiles.Role
	Name     string
	Email    string
	Loading  bool
	Degraded bool
}

func (s Snapshot) IsAdmin() bool { return s.Role == profiles.RoleAdmin }

type Controller struct {
	auth     store.Auth
	profiles *profiles.Repository
	resolver Resolver
	log      logging.Logger

	// resolveMu serializes explicit auth calls with notification handling
	// so their state writes never interleave.
	resolveMu   sync.Mutex
	unsubscribe func()

	mu    sync.RWMutex
	state Snapshot
}

func New(st store.Client, resolver Resolver, log logging.Logger) *Controller {
	log = log.With("module", "session")
	return &Controller{
		auth:     st,
		profiles: profiles.NewRepository(st, log),
		resolver: resolver,
		log:      log,
		state:    Snapshot{State: StateInitializing, Loading: true},
	}
}

// Start subscribes to session transitions and then settles the initial
// state from the store's current session. It is a no-op after the first call.
func (c *Controller) Start(ctx context.Context) {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	if c.unsubscribe != nil {
		return
	}
	c.unsubscribe = c.auth.OnSessionChange(c.handle)

	sess, err := c.auth.GetSession(ctx)
	if err != nil {
		c.log.Error(ctx, "fetching current session failed", "error", err)
	}
	if err != nil || sess == nil {
		c.clear()
	} else {
		c.apply(ctx, sess.User)
	}

	c.mu.Lock()
	c.state.Loading = false
	c.mu.Unlock()
}

// Close stops listening for session transitions. It waits for a
// notification that is being handled.
func (c *Controller) Close() {
	c.resolveMu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.resolveMu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// SignIn makes one sign-in attempt. Store errors are returned untouched.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	sess, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	c.apply(ctx, sess.User)
	return nil
}

// SignUp creates an account whose starting role follows the first-user
// rule, then records its profile. A failed profile write is logged only.
func (c *Controller) SignUp(ctx context.Context, email, password, fullName string) error {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	role := c.resolver.SignUpRole(ctx, email)
	user, sess, err := c.auth.SignUp(ctx, email, password, map[string]any{
		"full_name": fullName,
		"role":      string(role),
	})
	if err != nil {
		return err
	}

	if user != nil {
		p := profiles.Profile{
			ID:       user.ID,
			Email:    strings.TrimSpace(email),
			FullName: fullName,
			Role:     role,
		}
		if err := c.profiles.Save(ctx, p); err != nil {
			c.log.Error(ctx, "writing profile after sign-up failed", "user_id", user.ID, "error", err)
		}
	}

	if sess != nil {
		c.apply(ctx, sess.User)
	}
	return nil
}

// SignOut signs out of the store and clears local state even when the
// store call fails.
func (c *Controller) SignOut(ctx context.Context) error {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	err := c.auth.SignOut(ctx)
	if err != nil {
		c.log.Warn(ctx, "store sign-out failed, clearing local session anyway", "error", err)
	}
	c.clear()
	return err
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (c *Controller) State() State { return c.Snapshot().State }

func (c *Controller) User() *store.User { return c.Snapshot().User }

func (c *Controller) Role() profiles.Role { return c.Snapshot().Role }

func (c *Controller) Name() string { return c.Snapshot().Name }

func (c *Controller) Email() string { return c.Snapshot().Email }

func (c *Controller) IsAdmin() bool { return c.Snapshot().IsAdmin() }

// Loading is true until Start has settled the initial state.
func (c *Controller) Loading() bool { return c.Snapshot().Loading }

// handle runs on the store's listener goroutine. Events can lag behind
// explicit calls, so an event that no longer matches the store's current
// session is skipped.
func (c *Controller) handle(ev store.Event) {
	ctx := context.Background()

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	if cur, err := c.auth.GetSession(ctx); err == nil && !sameUser(cur, ev.Session) {
		c.log.Debug(ctx, "skipping stale session event", "kind", string(ev.Kind))
		return
	}

	if ev.Session == nil {
		c.clear()
		return
	}
	c.apply(ctx, ev.Session.User)
}

func (c *Controller) apply(ctx context.Context, u store.User) {
	res := c.resolver.Resolve(ctx, u.ID, u.Email)
	email := res.Email
	if email == "" {
		email = u.Email
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.State = StateAuthenticated
	c.state.User = &u
	c.state.Role = res.Role
	c.state.Name = res.Name
	c.state.Email = email
	c.state.Degraded = res.Degraded
}

func (c *Controller) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Snapshot{State: StateAnonymous, Loading: c.state.Loading}
}

func sameUser(a, b *store.Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.User.ID == b.User.ID
}
