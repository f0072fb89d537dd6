package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// publicMethods never need an access token.
var publicMethods = map[string]bool{
	storeapi.FullMethod(storeapi.MethodPing):         true,
	storeapi.FullMethod(storeapi.MethodSignUp):       true,
	storeapi.FullMethod(storeapi.MethodSignIn):       true,
	storeapi.FullMethod(storeapi.MethodRefreshToken): true,
}

// UserIDFromContext returns the authenticated caller, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	method := info.FullMethod[strings.LastIndexByte(info.FullMethod, '/')+1:]
	code := status.Code(err)
	s.metrics.RecordRPC(method, code.String(), time.Since(start))
	s.logger.Debug(ctx, "rpc", "method", method, "code", code.String(), "duration", time.Since(start))

	return resp, err
}

// apiKeyInterceptor rejects every call that does not present the store
// access key.
func (s *GRPCServer) apiKeyInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	key := firstValue(ctx, common.APIKeyHeaderName)
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
	return handler(ctx, req)
}

// accessTokenInterceptor puts the caller's id into the context. Select may
// run without a token since count-only queries are open to anyone; the
// record service refuses the rest.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := firstValue(ctx, common.AccessTokenHeaderName)
	if token == "" {
		if info.FullMethod == storeapi.FullMethod(storeapi.MethodSelect) {
			return handler(ctx, req)
		}
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.users.Authenticate(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return handler(ctx, req)
}
