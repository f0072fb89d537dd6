// Package grpc serves the store API over gRPC on top of the user and
// record services.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/lifedash/internal/logging"
	"github.com/dmitrijs2005/lifedash/internal/server/auth"
	"github.com/dmitrijs2005/lifedash/internal/server/metrics"
	"github.com/dmitrijs2005/lifedash/internal/server/models"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"github.com/dmitrijs2005/lifedash/internal/shared"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

type UserService interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*services.Session, error)
	SignIn(ctx context.Context, email, password string) (*services.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Authenticate(token string) (*auth.Claims, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type RecordService interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Select(ctx context.Context, callerID, table string, filter shared.Filter, opts shared.SelectOptions) (*shared.Result, error)
	Insert(ctx context.Context, callerID, table string, row shared.Row) (shared.Row, error)
	Update(ctx context.Context, callerID, table string, filter shared.Filter, patch shared.Row) (int, error)
	Upsert(ctx context.Context, callerID, table string, row shared.Row, ignoreDuplicates bool) (shared.Row, error)
}

type GRPCServer struct {
	address string
	users   UserService
	records RecordService
	logger  logging.Logger
	apiKey  string
	metrics metrics.Recorder
}

var _ storeapi.StoreServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, rs RecordService, apiKey string, m metrics.Recorder) *GRPCServer {
	if m == nil {
		m = metrics.Nop{}
	}
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		records: rs,
		apiKey:  apiKey,
		metrics: m,
	}
}

// NewServer builds a grpc.Server with the interceptor chain and the store
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.apiKeyInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	storeapi.RegisterStoreServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
