package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/server/config"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/records"
	"github.com/dmitrijs2005/lifedash/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

const (
	roleAdmin = "admin"
	roleUser  = "user"
)

// RecordService applies the row policy in front of the records
// repository. Admins read and write every row. Everybody else is confined
// to rows whose owner column holds their own id and may only give
// themselves the user role. Count-only selects are not scoped. Anonymous
// callers may only count whole tables.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	adminEmail  string
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *RecordService {
	return &RecordService{db: db, repomanager: m, adminEmail: cfg.AdminEmail}
}

// IsAdmin reports whether userID's profile carries the admin role.
func (s *RecordService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	role, err := s.repomanager.Records(s.db).Role(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == roleAdmin, nil
}

// Select runs a query for callerID, which is empty for anonymous callers.
func (s *RecordService) Select(ctx context.Context, callerID, table string, filter shared.Filter, opts shared.SelectOptions) (*shared.Result, error) {
	if opts.CountOnly {
		if callerID == "" && (len(filter.Eq) > 0 || len(filter.Gte) > 0) {
			return nil, fmt.Errorf("%w: anonymous counts take no filter", common.ErrorUnauthorized)
		}
		return s.repomanager.Records(s.db).Select(ctx, table, filter, opts)
	}
	t, admin, err := s.caller(ctx, callerID, table)
	if err != nil {
		return nil, err
	}
	if filter, err = scope(t, callerID, admin, filter); err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).Select(ctx, table, filter, opts)
}

func (s *RecordService) Insert(ctx context.Context, callerID, table string, row shared.Row) (shared.Row, error) {
	t, admin, err := s.caller(ctx, callerID, table)
	if err != nil {
		return nil, err
	}
	if row, err = own(t, callerID, admin, row); err != nil {
		return nil, err
	}
	if err = s.checkRole(ctx, callerID, table, admin, row); err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).Insert(ctx, table, row)
}

func (s *RecordService) Update(ctx context.Context, callerID, table string, filter shared.Filter, patch shared.Row) (int, error) {
	t, admin, err := s.caller(ctx, callerID, table)
	if err != nil {
		return 0, err
	}
	if filter, err = scope(t, callerID, admin, filter); err != nil {
		return 0, err
	}
	if v, ok := patch[t.Owner]; ok && !admin && v != callerID {
		return 0, fmt.Errorf("%w: cannot hand rows to another user", common.ErrorPermissionDenied)
	}
	if err = s.checkRole(ctx, callerID, table, admin, patch); err != nil {
		return 0, err
	}
	return s.repomanager.Records(s.db).Update(ctx, table, filter, patch)
}

func (s *RecordService) Upsert(ctx context.Context, callerID, table string, row shared.Row, ignoreDuplicates bool) (shared.Row, error) {
	t, admin, err := s.caller(ctx, callerID, table)
	if err != nil {
		return nil, err
	}
	if row, err = own(t, callerID, admin, row); err != nil {
		return nil, err
	}
	if err = s.checkRole(ctx, callerID, table, admin, row); err != nil {
		return nil, err
	}
	opts := records.UpsertOptions{IgnoreDuplicates: ignoreDuplicates}
	if !admin {
		opts.Owner = callerID
	}

	saved, err := s.repomanager.Records(s.db).Upsert(ctx, table, row, opts)
	if err != nil {
		return nil, err
	}
	if saved == nil && !ignoreDuplicates {
		// the conflicting row belongs to someone else
		return nil, common.ErrorPermissionDenied
	}
	return saved, nil
}

func (s *RecordService) caller(ctx context.Context, callerID, table string) (*records.Table, bool, error) {
	if callerID == "" {
		return nil, false, common.ErrorUnauthorized
	}
	t, err := records.Lookup(table)
	if err != nil {
		return nil, false, err
	}
	admin, err := s.IsAdmin(ctx, callerID)
	if err != nil {
		return nil, false, err
	}
	return t, admin, nil
}

// checkRole vets the role a non-admin writes into a profile. The user role
// is always fine. The admin role is granted only to the distinguished admin
// address or to whoever writes the first profile of an empty table.
func (s *RecordService) checkRole(ctx context.Context, callerID, table string, admin bool, row shared.Row) error {
	v, ok := row["role"]
	if admin || !ok || table != shared.TableProfiles {
		return nil
	}
	role, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(role)) {
	case roleUser:
		return nil
	case roleAdmin:
	default:
		return fmt.Errorf("%w: cannot set role %q", common.ErrorPermissionDenied, role)
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, callerID)
	if err != nil {
		return err
	}
	if common.SameEmail(u.Email, s.adminEmail) {
		return nil
	}

	res, err := s.repomanager.Records(s.db).Select(ctx, shared.TableProfiles, shared.Filter{}, shared.SelectOptions{CountOnly: true})
	if err != nil {
		return err
	}
	if res.Count == 0 {
		return nil
	}
	return fmt.Errorf("%w: only an admin can grant the admin role", common.ErrorPermissionDenied)
}

// scope narrows filter to callerID's rows unless the caller is an admin.
func scope(t *records.Table, callerID string, admin bool, filter shared.Filter) (shared.Filter, error) {
	if admin {
		return filter, nil
	}
	if v, ok := filter.Eq[t.Owner]; ok && v != callerID {
		return filter, fmt.Errorf("%w: rows of another user", common.ErrorPermissionDenied)
	}
	return filter.And(t.Owner, callerID), nil
}

// own stamps the caller as the owner of a row that names none. Non-admins
// may not write rows naming somebody else.
func own(t *records.Table, callerID string, admin bool, row shared.Row) (shared.Row, error) {
	v, ok := row[t.Owner]
	if ok && (admin || v == callerID) {
		return row, nil
	}
	if ok {
		return nil, fmt.Errorf("%w: rows of another user", common.ErrorPermissionDenied)
	}

	out := make(shared.Row, len(row)+1)
	for k, val := range row {
		out[k] = val
	}
	out[t.Owner] = callerID
	return out, nil
}
