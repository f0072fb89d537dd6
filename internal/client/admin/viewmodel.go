// Package admin aggregates per-user activity for the admin panel.
package admin

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/profiles"
	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

// UserStat is one row of the admin panel.
type UserStat struct {
	ID                string        `json:"id"`
	Email             string        `json:"email,omitempty"`
	FullName          string        `json:"full_name,omitempty"`
	Role              profiles.Role `json:"role"`
	CreatedAt         time.Time     `json:"created_at"`
	LastSignInAt      *time.Time    `json:"last_sign_in_at,omitempty"`
	TasksCount        int           `json:"tasks_count"`
	TransactionsCount int           `json:"transactions_count"`
}

// Totals roll the whole user base up. RegularUsers counts everyone who is
// not an admin, including profiles without a role.
type Totals struct {
	TotalUsers        int `json:"total_users"`
	AdminUsers        int `json:"admin_users"`
	RegularUsers      int `json:"regular_users"`
	TotalTasks        int `json:"total_tasks"`
	TotalTransactions int `json:"total_transactions"`
	ActivityPerUser   int `json:"activity_per_user"`
}

type Snapshot struct {
	Users     []UserStat `json:"users"`
	Totals    Totals     `json:"totals"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// AggregationError aborts a refresh. Step names the query that failed.
type AggregationError struct {
	Step string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("admin aggregation: %s: %v", e.Step, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// ViewModel holds the last good snapshot. Nothing is cached between
// refreshes: every Refresh queries the store from scratch.
type ViewModel struct {
	records  store.Records
	auth     store.Auth
	profiles *profiles.Repository
	log      logging.Logger
	now      func() time.Time

	refreshMu sync.Mutex

	mu       sync.RWMutex
	snapshot Snapshot
	loading  bool
}

func New(st store.Client, log logging.Logger) *ViewModel {
	log = log.With("module", "admin")
	return &ViewModel{
		records:  st,
		auth:     st,
		profiles: profiles.NewRepository(st, log),
		log:      log,
		now:      time.Now,
		loading:  true,
	}
}

// Snapshot returns the last successfully built snapshot.
func (v *ViewModel) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := v.snapshot
	s.Users = append([]UserStat(nil), s.Users...)
	return s
}

// Loading is true until the first refresh attempt has finished.
func (v *ViewModel) Loading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// Refresh rebuilds the snapshot. On failure the previous snapshot is kept
// and an *AggregationError is returned.
func (v *ViewModel) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	snap, err := v.build(ctx)

	v.mu.Lock()
	v.loading = false
	if err == nil {
		v.snapshot = snap
	}
	v.mu.Unlock()

	if err != nil {
		v.log.Error(ctx, "admin refresh failed", "error", err)
		return err
	}
	return nil
}

// ToggleRole flips the role of userID and refreshes once. An unset role
// counts as user. When the write fails nothing is refetched.
func (v *ViewModel) ToggleRole(ctx context.Context, userID string, current profiles.Role) error {
	next := current.Flip()
	if err := v.profiles.SetRole(ctx, userID, next); err != nil {
		v.log.Error(ctx, "role update failed", "user_id", userID, "role", next.String(), "error", err)
		return fmt.Errorf("set role of %s: %w", userID, err)
	}
	v.log.Info(ctx, "role updated", "user_id", userID, "role", next.String())
	return v.Refresh(ctx)
}

func (v *ViewModel) build(ctx context.Context) (Snapshot, error) {
	list, err := v.profiles.List(ctx)
	if err != nil {
		return Snapshot{}, &AggregationError{Step: "profiles", Err: err}
	}

	totalTasks, err := v.count(ctx, store.TableTasks, store.Filter{})
	if err != nil {
		return Snapshot{}, &AggregationError{Step: "task count", Err: err}
	}
	totalTx, err := v.count(ctx, store.TableTransactions, store.Filter{})
	if err != nil {
		return Snapshot{}, &AggregationError{Step: "transaction count", Err: err}
	}

	accounts := v.accounts(ctx)

	users, err := v.perUserCounts(ctx, list, accounts)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Users:     users,
		Totals:    computeTotals(users, totalTasks, totalTx),
		FetchedAt: v.now(),
	}, nil
}

// accounts indexes the store's user listing by id. The listing only adds
// detail, so a failure is logged and an empty index returned.
func (v *ViewModel) accounts(ctx context.Context) map[string]store.User {
	users, err := v.auth.ListUsers(ctx)
	if err != nil {
		v.log.Warn(ctx, "user listing unavailable, continuing without it", "error", err)
		return nil
	}
	idx := make(map[string]store.User, len(users))
	for _, u := range users {
		idx[u.ID] = u
	}
	return idx
}

// perUserCounts issues two count queries per profile. Swapping this for a
// grouped query must keep the output shape.
func (v *ViewModel) perUserCounts(ctx context.Context, list []profiles.Profile, accounts map[string]store.User) ([]UserStat, error) {
	users := make([]UserStat, 0, len(list))
	for _, p := range list {
		tasks, err := v.count(ctx, store.TableTasks, store.Where("user_id", p.ID))
		if err != nil {
			return nil, &AggregationError{Step: "tasks of " + p.ID, Err: err}
		}
		txs, err := v.count(ctx, store.TableTransactions, store.Where("user_id", p.ID))
		if err != nil {
			return nil, &AggregationError{Step: "transactions of " + p.ID, Err: err}
		}

		stat := UserStat{
			ID:                p.ID,
			Email:             p.Email,
			FullName:          p.FullName,
			Role:              p.Role,
			CreatedAt:         p.CreatedAt,
			TasksCount:        tasks,
			TransactionsCount: txs,
		}
		if acc, ok := accounts[p.ID]; ok {
			if stat.Email == "" {
				stat.Email = acc.Email
			}
			stat.LastSignInAt = acc.LastSignInAt
		}
		users = append(users, stat)
	}
	return users, nil
}

func (v *ViewModel) count(ctx context.Context, table string, f store.Filter) (int, error) {
	res, err := v.records.Select(ctx, table, f, store.SelectOptions{CountOnly: true})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func computeTotals(users []UserStat, tasks, transactions int) Totals {
	t := Totals{
		TotalUsers:        len(users),
		TotalTasks:        tasks,
		TotalTransactions: transactions,
	}
	for _, u := range users {
		if u.Role == profiles.RoleAdmin {
			t.AdminUsers++
		}
	}
	t.RegularUsers = t.TotalUsers - t.AdminUsers
	if t.TotalUsers > 0 {
		t.ActivityPerUser = int(math.Round(float64(tasks+transactions) / float64(t.TotalUsers)))
	}
	return t
}
