package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/admin"
	"github.com/dmitrijs2005/lifedash/internal/client/config"
	"github.com/dmitrijs2005/lifedash/internal/client/dashboard"
	"github.com/dmitrijs2005/lifedash/internal/client/export"
	"github.com/dmitrijs2005/lifedash/internal/client/profiles"
	"github.com/dmitrijs2005/lifedash/internal/client/session"
	"github.com/dmitrijs2005/lifedash/internal/client/sessioncache"
	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/client/store/grpcstore"
	"github.com/dmitrijs2005/lifedash/internal/client/store/memstore"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

// snapshotExporter is satisfied by *export.S3Exporter.
type snapshotExporter interface {
	Export(ctx context.Context, snap admin.Snapshot) (string, error)
}

type App struct {
	config    *config.Config
	store     store.Client
	session   *session.Controller
	admin     *admin.ViewModel
	dashboard *dashboard.Service
	exporter  snapshotExporter
	log       logging.Logger
	reader    *bufio.Reader
	out       io.Writer
	now       func() time.Time
	closers   []func() error
}

// NewApp opens the store selected by c and builds the application on top
// of it. Snapshot export stays disabled when no bucket is configured or the
// S3 client cannot be set up.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewText(os.Stderr, slog.LevelInfo)

	st, closers, err := openStore(ctx, c, log)
	if err != nil {
		log.Error(ctx, "error opening store", "error", err)
		return nil, err
	}

	a := newApp(c, st, log, bufio.NewReader(os.Stdin), os.Stdout)
	a.closers = closers

	exp, err := export.NewS3Exporter(ctx, c.S3, log)
	switch {
	case errors.Is(err, export.ErrNotConfigured):
	case err != nil:
		log.Warn(ctx, "snapshot export disabled", "error", err)
	default:
		a.exporter = exp
	}

	return a, nil
}

func openStore(ctx context.Context, c *config.Config, log logging.Logger) (store.Client, []func() error, error) {
	if c.Memory {
		log.Info(ctx, "using in-memory store")
		return memstore.New(), nil, nil
	}

	db, err := sessioncache.OpenDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open session cache: %w", err)
	}

	st, err := grpcstore.New(grpcstore.Options{
		Endpoint: c.StoreEndpoint,
		APIKey:   c.StoreAPIKey,
		Timeout:  c.RequestTimeout,
		Cache:    sessioncache.New(db),
		Log:      log,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to store: %w", err)
	}
	return st, []func() error{db.Close}, nil
}

func newApp(c *config.Config, st store.Client, log logging.Logger, r *bufio.Reader, w io.Writer) *App {
	resolver := profiles.NewResolver(profiles.NewRepository(st, log), c.AdminEmail, log)
	return &App{
		config:    c,
		store:     st,
		session:   session.New(st, resolver, log),
		admin:     admin.New(st, log),
		dashboard: dashboard.New(st, log),
		log:       log,
		reader:    r,
		out:       w,
		now:       time.Now,
	}
}

// Run settles the session left by a previous run and serves commands until
// the user exits. Everything the app opened is closed on return.
func (a *App) Run(ctx context.Context) {
	defer a.close()

	a.session.Start(ctx)
	fmt.Fprintln(a.out, "Welcome to LifeDash (type 'help' for commands)")
	if a.isLoggedIn() {
		fmt.Fprintf(a.out, "Signed in as %s\n", a.session.Email())
	}

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) close() {
	a.session.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn(context.Background(), "closing store", "error", err)
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn(context.Background(), "closing resource", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == session.StateAuthenticated
}

func (a *App) isAdmin() bool {
	return a.session.IsAdmin()
}

func (a *App) status() string {
	snap := a.session.Snapshot()
	if snap.State != session.StateAuthenticated {
		return ""
	}
	return fmt.Sprintf("(%s %s)", snap.Name, snap.Role)
}

// fail reports err to the user and the log and hands it back.
func (a *App) fail(ctx context.Context, what string, err error) error {
	a.log.Error(ctx, what, "error", err)
	fmt.Fprintf(a.out, "%s: %v\n", what, err)
	return err
}
