package storeapi

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/lifedash/internal/shared"
)

// ErrMalformed is returned when a message lacks a required field or a field
// has the wrong type.
var ErrMalformed = fmt.Errorf("malformed message: %w", shared.ErrInvalidArgument)

type Credentials struct {
	Email    string
	Password string
	Metadata map[string]any
}

func (c Credentials) Struct() (*structpb.Struct, error) {
	m := map[string]any{"email": c.Email, "password": c.Password}
	if c.Metadata != nil {
		m["metadata"] = c.Metadata
	}
	return toStruct(m)
}

func ParseCredentials(in *structpb.Struct) (Credentials, error) {
	m := in.AsMap()
	c := Credentials{
		Email:    str(m, "email"),
		Password: str(m, "password"),
		Metadata: obj(m, "metadata"),
	}
	if c.Email == "" {
		return Credentials{}, fmt.Errorf("email: %w", ErrMalformed)
	}
	return c, nil
}

type RefreshRequest struct {
	RefreshToken string
}

func (r RefreshRequest) Struct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"refresh_token": r.RefreshToken})
}

func ParseRefreshRequest(in *structpb.Struct) (RefreshRequest, error) {
	r := RefreshRequest{RefreshToken: str(in.AsMap(), "refresh_token")}
	if r.RefreshToken == "" {
		return RefreshRequest{}, fmt.Errorf("refresh_token: %w", ErrMalformed)
	}
	return r, nil
}

type SelectRequest struct {
	Table   string
	Filter  shared.Filter
	Options shared.SelectOptions
}

func (r SelectRequest) Struct() (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"table":      r.Table,
		"filter":     encodeFilter(r.Filter),
		"order_by":   r.Options.OrderBy,
		"descending": r.Options.Descending,
		"limit":      r.Options.Limit,
		"count_only": r.Options.CountOnly,
	})
}

func ParseSelectRequest(in *structpb.Struct) (SelectRequest, error) {
	m := in.AsMap()
	r := SelectRequest{
		Table:  str(m, "table"),
		Filter: decodeFilter(obj(m, "filter")),
		Options: shared.SelectOptions{
			OrderBy:    str(m, "order_by"),
			Descending: boolean(m, "descending"),
			Limit:      integer(m, "limit"),
			CountOnly:  boolean(m, "count_only"),
		},
	}
	if r.Table == "" {
		return SelectRequest{}, fmt.Errorf("table: %w", ErrMalformed)
	}
	if r.Options.Limit < 0 {
		return SelectRequest{}, fmt.Errorf("limit: %w", ErrMalformed)
	}
	return r, nil
}

// WriteRequest carries Insert, Update and Upsert. Filter is only used by
// Update and IgnoreDuplicates only by Upsert.
type WriteRequest struct {
	Table            string
	Row              shared.Row
	Filter           shared.Filter
	IgnoreDuplicates bool
}

func (r WriteRequest) Struct() (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"table":             r.Table,
		"row":               map[string]any(r.Row),
		"filter":            encodeFilter(r.Filter),
		"ignore_duplicates": r.IgnoreDuplicates,
	})
}

func ParseWriteRequest(in *structpb.Struct) (WriteRequest, error) {
	m := in.AsMap()
	r := WriteRequest{
		Table:            str(m, "table"),
		Row:              shared.Row(obj(m, "row")),
		Filter:           decodeFilter(obj(m, "filter")),
		IgnoreDuplicates: boolean(m, "ignore_duplicates"),
	}
	if r.Table == "" {
		return WriteRequest{}, fmt.Errorf("table: %w", ErrMalformed)
	}
	if len(r.Row) == 0 {
		return WriteRequest{}, fmt.Errorf("row: %w", ErrMalformed)
	}
	return r, nil
}

// AuthResponse answers SignUp, SignIn, RefreshToken and GetUser. Either
// field may be nil.
type AuthResponse struct {
	User    *shared.User
	Session *shared.Session
}

func (r AuthResponse) Struct() (*structpb.Struct, error) {
	m := map[string]any{}
	if r.User != nil {
		m["user"] = encodeUser(*r.User)
	}
	if r.Session != nil {
		m["session"] = encodeSession(r.Session)
	}
	return toStruct(m)
}

func ParseAuthResponse(in *structpb.Struct) (AuthResponse, error) {
	m := in.AsMap()
	var r AuthResponse
	if u := obj(m, "user"); u != nil {
		user, err := decodeUser(u)
		if err != nil {
			return AuthResponse{}, err
		}
		r.User = &user
	}
	if s := obj(m, "session"); s != nil {
		sess, err := decodeSession(s)
		if err != nil {
			return AuthResponse{}, err
		}
		r.Session = sess
	}
	return r, nil
}

// RowsResponse answers Select, Insert, Update and Upsert. Insert and Upsert
// return at most one row; Update only sets Count.
type RowsResponse struct {
	Rows  []shared.Row
	Count int
}

func (r RowsResponse) Struct() (*structpb.Struct, error) {
	rows := make([]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, map[string]any(row))
	}
	return toStruct(map[string]any{"rows": rows, "count": r.Count})
}

func ParseRowsResponse(in *structpb.Struct) (RowsResponse, error) {
	m := in.AsMap()
	r := RowsResponse{Count: integer(m, "count")}
	list, _ := m["rows"].([]any)
	for _, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return RowsResponse{}, fmt.Errorf("rows: %w", ErrMalformed)
		}
		r.Rows = append(r.Rows, shared.Row(row))
	}
	return r, nil
}

type UsersResponse struct {
	Users []shared.User
}

func (r UsersResponse) Struct() (*structpb.Struct, error) {
	users := make([]any, 0, len(r.Users))
	for _, u := range r.Users {
		users = append(users, encodeUser(u))
	}
	return toStruct(map[string]any{"users": users})
}

func ParseUsersResponse(in *structpb.Struct) (UsersResponse, error) {
	list, _ := in.AsMap()["users"].([]any)
	var r UsersResponse
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return UsersResponse{}, fmt.Errorf("users: %w", ErrMalformed)
		}
		u, err := decodeUser(m)
		if err != nil {
			return UsersResponse{}, err
		}
		r.Users = append(r.Users, u)
	}
	return r, nil
}

func encodeUser(u shared.User) map[string]any {
	m := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"created_at": shared.FormatTime(u.CreatedAt),
	}
	if u.Metadata != nil {
		m["metadata"] = u.Metadata
	}
	if u.LastSignInAt != nil {
		m["last_sign_in_at"] = shared.FormatTime(*u.LastSignInAt)
	}
	return m
}

func decodeUser(m map[string]any) (shared.User, error) {
	row := shared.Row(m)
	u := shared.User{
		ID:       row.String("id"),
		Email:    row.String("email"),
		Metadata: obj(m, "metadata"),
	}
	if u.ID == "" {
		return shared.User{}, fmt.Errorf("user id: %w", ErrMalformed)
	}
	var err error
	if u.CreatedAt, err = row.Time("created_at"); err != nil {
		return shared.User{}, errors.Join(ErrMalformed, err)
	}
	last, err := row.Time("last_sign_in_at")
	if err != nil {
		return shared.User{}, errors.Join(ErrMalformed, err)
	}
	if !last.IsZero() {
		u.LastSignInAt = &last
	}
	return u, nil
}

func encodeSession(s *shared.Session) map[string]any {
	return map[string]any{
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"expires_at":    shared.FormatTime(s.ExpiresAt),
		"user":          encodeUser(s.User),
	}
}

func decodeSession(m map[string]any) (*shared.Session, error) {
	row := shared.Row(m)
	s := &shared.Session{
		AccessToken:  row.String("access_token"),
		RefreshToken: row.String("refresh_token"),
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("access_token: %w", ErrMalformed)
	}
	var err error
	if s.ExpiresAt, err = row.Time("expires_at"); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	if s.User, err = decodeUser(obj(m, "user")); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeFilter(f shared.Filter) map[string]any {
	m := map[string]any{}
	if len(f.Eq) > 0 {
		m["eq"] = f.Eq
	}
	if len(f.Gte) > 0 {
		m["gte"] = f.Gte
	}
	return m
}

func decodeFilter(m map[string]any) shared.Filter {
	return shared.Filter{Eq: obj(m, "eq"), Gte: obj(m, "gte")}
}

// toStruct converts m, turning times into RFC 3339 strings and byte slices
// into strings so structpb accepts them.
func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(normalizeMap(m))
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return shared.FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return shared.FormatTime(*t)
	case []byte:
		return string(t)
	case shared.Row:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	return v
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func obj(m map[string]any, key string) map[string]any {
	o, _ := m[key].(map[string]any)
	return o
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func integer(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}
