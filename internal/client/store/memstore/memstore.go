// Package memstore is an in-process implementation of store.Client. It backs
// the CLI's -memory mode and the scenario tests; failures can be injected per
// operation and table.
package memstore

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
)

// Op identifies a store operation for error injection and call recording.
type Op string

const (
	OpGetSession Op = "get_session"
	OpSignIn     Op = "sign_in"
	OpSignUp     Op = "sign_up"
	OpSignOut    Op = "sign_out"
	OpListUsers  Op = "list_users"
	OpSelect     Op = "select"
	OpCount      Op = "count"
	OpInsert     Op = "insert"
	OpUpdate     Op = "update"
	OpUpsert     Op = "upsert"
)

// Call is one recorded store operation.
type Call struct {
	Op     Op
	Table  string
	Filter store.Filter
}

type account struct {
	user     store.User
	password []byte
}

type table struct {
	rows map[string]store.Row
	seq  map[string]int
	next int
}

type failKey struct {
	op    Op
	table string
}

// matchFailure fails an op only when its filter pins column to value.
type matchFailure struct {
	failKey
	column string
	value  any
	err    error
}

// Store keeps accounts, the current session and table rows in memory.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*account
	byEmail  map[string]string
	tables   map[string]*table
	session  *store.Session
	failures map[failKey]error
	matches  []matchFailure
	calls    []Call
	now      func() time.Time

	events *store.Broadcaster
}

var _ store.Client = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		tables:   make(map[string]*table),
		failures: make(map[failKey]error),
		now:      time.Now,
		events:   store.NewBroadcaster(),
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Fail makes every later op on table return err. Auth operations use an
// empty table name.
func (s *Store) Fail(op Op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failKey{op: op, table: table}] = err
}

// FailWhere makes later ops on table return err when their filter
// requires column to equal value. Other filters are served normally.
func (s *Store) FailWhere(op Op, table, column string, value any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, matchFailure{
		failKey: failKey{op: op, table: table},
		column:  column,
		value:   value,
		err:     err,
	})
}

// ClearFailures removes every injected failure.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[failKey]error)
	s.matches = nil
}

// Calls returns the operations recorded so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls returns how many recorded calls match op and table.
func (s *Store) CountCalls(op Op, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op && c.Table == table {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// AddUser creates an account without signing it in.
func (s *Store) AddUser(email, password string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.createAccountLocked(email, password, nil)
	if err != nil {
		return store.User{}, err
	}
	return acc.user, nil
}

// PutRow writes row directly, bypassing injected failures and recording.
func (s *Store) PutRow(tableName string, row store.Row) store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(tableName)
	r := s.withDefaultsLocked(row)
	id := r.String("id")
	if _, ok := t.rows[id]; !ok {
		t.seq[id] = t.next
		t.next++
	}
	t.rows[id] = r
	return copyRow(r)
}

// Row returns a copy of the row with the given id, or nil.
func (s *Store) Row(tableName, id string) store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(tableName)
	if r, ok := t.rows[id]; ok {
		return copyRow(r)
	}
	return nil
}

// Len returns the number of rows in a table.
func (s *Store) Len(tableName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tableLocked(tableName).rows)
}

func (s *Store) record(op Op, tableName string, f store.Filter) error {
	s.calls = append(s.calls, Call{Op: op, Table: tableName, Filter: f})
	key := failKey{op: op, table: tableName}
	for _, m := range s.matches {
		if m.failKey != key {
			continue
		}
		if v, ok := f.Eq[m.column]; ok && v == m.value {
			return m.err
		}
	}
	return s.failures[key]
}

func (s *Store) GetSession(ctx context.Context) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpGetSession, "", store.Filter{}); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *Store) OnSessionChange(fn func(store.Event)) func() {
	return s.events.Subscribe(fn)
}

func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (*store.Session, error) {
	s.mu.Lock()
	if err := s.record(OpSignIn, "", store.Filter{}); err != nil {
		s.mu.Unlock()
		return nil, store.NewAuthError("sign_in", err)
	}
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		s.mu.Unlock()
		return nil, store.NewAuthError("sign_in", store.ErrInvalidCredentials)
	}
	acc := s.accounts[id]
	if subtle.ConstantTimeCompare(acc.password, []byte(password)) != 1 {
		s.mu.Unlock()
		return nil, store.NewAuthError("sign_in", store.ErrInvalidCredentials)
	}
	now := s.now()
	acc.user.LastSignInAt = &now
	sess := s.newSessionLocked(acc.user)
	s.mu.Unlock()

	s.events.Publish(store.Event{Kind: store.EventSignedIn, Session: sess})
	cp := *sess
	return &cp, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*store.User, *store.Session, error) {
	s.mu.Lock()
	if err := s.record(OpSignUp, "", store.Filter{}); err != nil {
		s.mu.Unlock()
		return nil, nil, store.NewAuthError("sign_up", err)
	}
	acc, err := s.createAccountLocked(email, password, metadata)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, store.NewAuthError("sign_up", err)
	}
	now := s.now()
	acc.user.LastSignInAt = &now
	sess := s.newSessionLocked(acc.user)
	s.mu.Unlock()

	s.events.Publish(store.Event{Kind: store.EventSignedIn, Session: sess})
	user := sess.User
	cp := *sess
	return &user, &cp, nil
}

func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if err := s.record(OpSignOut, "", store.Filter{}); err != nil {
		s.mu.Unlock()
		return store.NewAuthError("sign_out", err)
	}
	hadSession := s.session != nil
	s.session = nil
	s.mu.Unlock()

	if hadSession {
		s.events.Publish(store.Event{Kind: store.EventSignedOut})
	}
	return nil
}

// RefreshSession rotates the current session's tokens and notifies
// listeners, as a hosted store does when an access token is renewed.
func (s *Store) RefreshSession() error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return store.ErrNotAuthenticated
	}
	sess := s.newSessionLocked(s.session.User)
	s.mu.Unlock()

	s.events.Publish(store.Event{Kind: store.EventTokenRefreshed, Session: sess})
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpListUsers, "", store.Filter{}); err != nil {
		return nil, err
	}
	users := make([]store.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		users = append(users, acc.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) Select(ctx context.Context, tableName string, f store.Filter, opts store.SelectOptions) (*store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := OpSelect
	if opts.CountOnly {
		op = OpCount
	}
	if err := s.record(op, tableName, f); err != nil {
		return nil, err
	}

	t := s.tableLocked(tableName)
	ids := make([]string, 0, len(t.rows))
	for id, r := range t.rows {
		if matches(r, f) {
			ids = append(ids, id)
		}
	}
	if opts.CountOnly {
		return &store.Result{Count: len(ids)}, nil
	}

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if opts.OrderBy != "" {
			c := compare(t.rows[a][opts.OrderBy], t.rows[b][opts.OrderBy])
			if c != 0 {
				if opts.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		if opts.Descending {
			return t.seq[a] > t.seq[b]
		}
		return t.seq[a] < t.seq[b]
	})
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	res := &store.Result{Rows: make([]store.Row, 0, len(ids)), Count: len(ids)}
	for _, id := range ids {
		res.Rows = append(res.Rows, copyRow(t.rows[id]))
	}
	return res, nil
}

func (s *Store) Insert(ctx context.Context, tableName string, row store.Row) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpInsert, tableName, store.Filter{}); err != nil {
		return nil, err
	}
	t := s.tableLocked(tableName)
	r := s.withDefaultsLocked(row)
	id := r.String("id")
	if _, exists := t.rows[id]; exists {
		return nil, fmt.Errorf("insert %s id=%s: %w", tableName, id, store.ErrConflict)
	}
	t.rows[id] = r
	t.seq[id] = t.next
	t.next++
	return copyRow(r), nil
}

func (s *Store) Update(ctx context.Context, tableName string, f store.Filter, patch store.Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpUpdate, tableName, f); err != nil {
		return 0, err
	}
	t := s.tableLocked(tableName)
	n := 0
	for _, r := range t.rows {
		if !matches(r, f) {
			continue
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (s *Store) Upsert(ctx context.Context, tableName string, row store.Row, opts store.UpsertOptions) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpUpsert, tableName, store.Filter{}); err != nil {
		return nil, err
	}
	id := row.String("id")
	if id == "" {
		return nil, fmt.Errorf("upsert %s without id: %w", tableName, store.ErrInvalidArgument)
	}
	t := s.tableLocked(tableName)
	if existing, ok := t.rows[id]; ok {
		if opts.IgnoreDuplicates {
			return nil, nil
		}
		for k, v := range row {
			existing[k] = v
		}
		return copyRow(existing), nil
	}
	r := s.withDefaultsLocked(row)
	t.rows[id] = r
	t.seq[id] = t.next
	t.next++
	return copyRow(r), nil
}

// Close stops session-change delivery.
func (s *Store) Close() error {
	s.events.Close()
	return nil
}

func (s *Store) createAccountLocked(email, password string, metadata map[string]any) (*account, error) {
	key := normalizeEmail(email)
	if key == "" {
		return nil, store.ErrInvalidArgument
	}
	if _, exists := s.byEmail[key]; exists {
		return nil, store.ErrUserExists
	}
	acc := &account{
		user: store.User{
			ID:        uuid.NewString(),
			Email:     strings.TrimSpace(email),
			Metadata:  metadata,
			CreatedAt: s.now(),
		},
		password: []byte(password),
	}
	s.accounts[acc.user.ID] = acc
	s.byEmail[key] = acc.user.ID
	return acc, nil
}

func (s *Store) newSessionLocked(u store.User) *store.Session {
	sess := &store.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    s.now().Add(time.Hour),
		User:         u,
	}
	s.session = sess
	return sess
}

func (s *Store) tableLocked(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[string]store.Row), seq: make(map[string]int)}
		s.tables[name] = t
	}
	return t
}

func (s *Store) withDefaultsLocked(row store.Row) store.Row {
	r := copyRow(row)
	if r.String("id") == "" {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = store.FormatTime(s.now())
	}
	return r
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyRow(r store.Row) store.Row {
	if r == nil {
		return nil
	}
	cp := make(store.Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

func matches(r store.Row, f store.Filter) bool {
	for k, want := range f.Eq {
		if compare(r[k], want) != 0 {
			return false
		}
	}
	for k, min := range f.Gte {
		v, ok := r[k]
		if !ok || v == nil || compare(v, min) < 0 {
			return false
		}
	}
	return true
}

// compare orders nil first, then numbers, then strings, then anything else
// by its printed form.
func compare(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
