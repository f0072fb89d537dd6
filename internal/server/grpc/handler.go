package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/server/metrics"
	"github.com/dmitrijs2005/lifedash/internal/server/models"
	"github.com/dmitrijs2005/lifedash/internal/server/services"
	"github.com/dmitrijs2005/lifedash/internal/shared"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "OK"})
}

func (s *GRPCServer) SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	creds, err := storeapi.ParseCredentials(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Sign-up request", "email", creds.Email)

	session, err := s.users.SignUp(ctx, creds.Email, creds.Password, creds.Metadata)
	if err != nil {
		s.metrics.RecordSignUp(outcome(err))
		return nil, s.toStatus(ctx, err)
	}
	s.metrics.RecordSignUp(metrics.OutcomeSuccess)

	s.logger.Info(ctx, "Signed up", "user_id", session.User.ID)
	return s.authResponse(ctx, session)
}

func (s *GRPCServer) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	creds, err := storeapi.ParseCredentials(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	session, err := s.users.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		s.metrics.RecordSignIn(outcome(err))
		return nil, s.toStatus(ctx, err)
	}
	s.metrics.RecordSignIn(metrics.OutcomeSuccess)

	return s.authResponse(ctx, session)
}

func (s *GRPCServer) RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := storeapi.ParseRefreshRequest(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	session, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.authResponse(ctx, session)
}

func (s *GRPCServer) SignOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	// a missing refresh token still signs the caller out locally
	token, _ := in.AsMap()["refresh_token"].(string)
	if err := s.users.SignOut(ctx, token); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) GetUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, _ := UserIDFromContext(ctx)

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	su := toStoreUser(user)
	return s.encode(ctx, storeapi.AuthResponse{User: &su})
}

func (s *GRPCServer) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, _ := UserIDFromContext(ctx)

	admin, err := s.records.IsAdmin(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if !admin {
		return nil, status.Error(codes.PermissionDenied, "admin only")
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := storeapi.UsersResponse{Users: make([]shared.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toStoreUser(u))
	}
	return s.encode(ctx, resp)
}

func (s *GRPCServer) Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := storeapi.ParseSelectRequest(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	userID, _ := UserIDFromContext(ctx)

	res, err := s.records.Select(ctx, userID, req.Table, req.Filter, req.Options)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.encode(ctx, storeapi.RowsResponse{Rows: res.Rows, Count: res.Count})
}

func (s *GRPCServer) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := storeapi.ParseWriteRequest(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	userID, _ := UserIDFromContext(ctx)

	row, err := s.records.Insert(ctx, userID, req.Table, req.Row)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.encode(ctx, storeapi.RowsResponse{Rows: []shared.Row{row}, Count: 1})
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := storeapi.ParseWriteRequest(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	userID, _ := UserIDFromContext(ctx)

	n, err := s.records.Update(ctx, userID, req.Table, req.Filter, req.Row)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.encode(ctx, storeapi.RowsResponse{Count: n})
}

func (s *GRPCServer) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := storeapi.ParseWriteRequest(in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	userID, _ := UserIDFromContext(ctx)

	row, err := s.records.Upsert(ctx, userID, req.Table, req.Row, req.IgnoreDuplicates)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if row == nil {
		return s.encode(ctx, storeapi.RowsResponse{})
	}
	return s.encode(ctx, storeapi.RowsResponse{Rows: []shared.Row{row}, Count: 1})
}

func (s *GRPCServer) authResponse(ctx context.Context, session *services.Session) (*structpb.Struct, error) {
	user := toStoreUser(session.User)
	return s.encode(ctx, storeapi.AuthResponse{
		User: &user,
		Session: &shared.Session{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			ExpiresAt:    session.ExpiresAt,
			User:         user,
		},
	})
}

type encoder interface {
	Struct() (*structpb.Struct, error)
}

func (s *GRPCServer) encode(ctx context.Context, msg encoder) (*structpb.Struct, error) {
	out, err := msg.Struct()
	if err != nil {
		s.logger.Error(ctx, "encode response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func toStoreUser(u *models.User) shared.User {
	return shared.User{
		ID:           u.ID,
		Email:        u.Email,
		Metadata:     u.Metadata,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrorInvalidArgument):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// toStatus maps service errors onto gRPC codes. Unexpected errors are
// logged and hidden behind a generic message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidArgument), errors.Is(err, shared.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
