package grpcstore

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/storeapi"
)

func withCredentials(ctx context.Context, apiKey, accessToken string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.APIKeyHeaderName, apiKey)
	md.Delete(common.AccessTokenHeaderName)
	if accessToken != "" {
		md.Set(common.AccessTokenHeaderName, accessToken)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access key and the access token to
// every call. When the service reports an expired token it refreshes the
// session once and retries.
func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var token string
	if sess := c.current(ctx); sess != nil {
		token = sess.AccessToken
	}

	err := invoker(withCredentials(ctx, c.apiKey, token), method, req, reply, cc, opts...)
	if err == nil || token == "" || method == storeapi.FullMethod(storeapi.MethodRefreshToken) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	sess, rerr := c.refresh(ctx, token)
	if rerr != nil {
		return err
	}
	return invoker(withCredentials(ctx, c.apiKey, sess.AccessToken), method, req, reply, cc, opts...)
}

// refresh exchanges the refresh token for a new session. staleToken is the
// access token the caller saw rejected; when another call has already
// replaced it the current session is returned without a round trip.
func (c *Client) refresh(ctx context.Context, staleToken string) (*store.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess := c.current(ctx)
	if sess == nil {
		return nil, store.ErrNotAuthenticated
	}
	if sess.AccessToken != staleToken && !sess.Expired(c.now()) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		return nil, store.ErrNotAuthenticated
	}

	req, err := storeapi.RefreshRequest{RefreshToken: sess.RefreshToken}.Struct()
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Call(ctx, storeapi.MethodRefreshToken, req)
	if err != nil {
		return nil, mapError(err)
	}
	ar, err := storeapi.ParseAuthResponse(resp)
	if err != nil {
		return nil, err
	}
	if ar.Session == nil {
		return nil, fmt.Errorf("refresh returned no session: %w", store.ErrInternal)
	}

	c.log.Debug(ctx, "access token refreshed", "user_id", ar.Session.User.ID)
	c.setSession(ctx, ar.Session, store.EventTokenRefreshed)
	return copySession(ar.Session), nil
}

// mapError turns a gRPC status into the store's error taxonomy. The
// status message is kept for context.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", store.ErrInternal, err)
	}

	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		if st.Message() == common.ErrTokenExpired.Error() {
			sentinel = store.ErrTokenExpired
		} else {
			sentinel = store.ErrNotAuthenticated
		}
	case codes.PermissionDenied:
		sentinel = store.ErrPermissionDenied
	case codes.InvalidArgument:
		sentinel = store.ErrInvalidArgument
	case codes.NotFound:
		sentinel = store.ErrNotFound
	case codes.AlreadyExists:
		sentinel = store.ErrConflict
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = store.ErrUnavailable
	default:
		sentinel = store.ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
