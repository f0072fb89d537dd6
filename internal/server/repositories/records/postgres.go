package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/dbx"
	"github.com/dmitrijs2005/lifedash/internal/shared"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Select(ctx context.Context, table string, filter shared.Filter, opts shared.SelectOptions) (*shared.Result, error) {
	t, err := Lookup(table)
	if err != nil {
		return nil, err
	}

	var a args
	cond, err := where(t, filter, &a)
	if err != nil {
		return nil, err
	}

	if opts.CountOnly {
		var n int
		query := "SELECT count(*) FROM " + t.Name + cond
		if err := r.db.QueryRowContext(ctx, query, a...).Scan(&n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		return &shared.Result{Count: n}, nil
	}

	query := "SELECT " + t.selectList() + " FROM " + t.Name + cond
	if opts.OrderBy != "" {
		if _, err := t.Column(opts.OrderBy); err != nil {
			return nil, err
		}
		query += " ORDER BY " + opts.OrderBy
		if opts.Descending {
			query += " DESC"
		}
	}
	if opts.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	res := &shared.Result{}
	for rows.Next() {
		row, err := scanRow(t, rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	res.Count = len(res.Rows)

	return res, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, table string, row shared.Row) (shared.Row, error) {
	t, err := Lookup(table)
	if err != nil {
		return nil, err
	}
	cols, vals, a, err := values(t, row)
	if err != nil {
		return nil, err
	}

	query := "INSERT INTO " + t.Name + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") +
		") RETURNING " + t.selectList()

	saved, err := scanRow(t, r.db.QueryRowContext(ctx, query, a...))
	if err != nil {
		return nil, classify(err)
	}
	return saved, nil
}

func (r *PostgresRepository) Update(ctx context.Context, table string, filter shared.Filter, patch shared.Row) (int, error) {
	t, err := Lookup(table)
	if err != nil {
		return 0, err
	}

	var (
		a    args
		sets []string
	)
	for _, col := range sortedKeys(patch) {
		if col == "id" {
			continue
		}
		kind, err := t.Column(col)
		if err != nil {
			return 0, err
		}
		sets = append(sets, col+" = "+a.bind(kind, patch[col]))
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("%w: empty patch", common.ErrorInvalidArgument)
	}
	if t.Has("updated_at") {
		if _, ok := patch["updated_at"]; !ok {
			sets = append(sets, "updated_at = now()")
		}
	}

	cond, err := where(t, filter, &a)
	if err != nil {
		return 0, err
	}

	query := "UPDATE " + t.Name + " SET " + strings.Join(sets, ", ") + cond
	res, err := r.db.ExecContext(ctx, query, a...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, table string, row shared.Row, opts UpsertOptions) (shared.Row, error) {
	t, err := Lookup(table)
	if err != nil {
		return nil, err
	}
	if id, _ := row["id"].(string); id == "" {
		return nil, fmt.Errorf("%w: upsert requires id", common.ErrorInvalidArgument)
	}
	cols, vals, a, err := values(t, row)
	if err != nil {
		return nil, err
	}

	query := "INSERT INTO " + t.Name + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
	if opts.IgnoreDuplicates {
		query += " ON CONFLICT (id) DO NOTHING"
	} else {
		sets := make([]string, 0, len(cols))
		for _, col := range cols {
			if col != "id" {
				sets = append(sets, col+" = EXCLUDED."+col)
			}
		}
		if len(sets) == 0 {
			sets = append(sets, "id = EXCLUDED.id")
		}
		query += " ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ")
		if opts.Owner != "" {
			query += " WHERE " + t.Name + "." + t.Owner + " = " + a.bind(KindUUID, opts.Owner)
		}
	}
	query += " RETURNING " + t.selectList()

	saved, err := scanRow(t, r.db.QueryRowContext(ctx, query, a...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return saved, nil
}

func (r *PostgresRepository) Role(ctx context.Context, userID string) (string, error) {
	query := `SELECT coalesce(role, '') FROM profiles WHERE id = $1::text::uuid`

	var role string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func values(t *Table, row shared.Row) (cols, vals []string, a args, err error) {
	if len(row) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty row", common.ErrorInvalidArgument)
	}
	for _, col := range sortedKeys(row) {
		kind, err := t.Column(col)
		if err != nil {
			return nil, nil, nil, err
		}
		cols = append(cols, col)
		vals = append(vals, a.bind(kind, row[col]))
	}
	return cols, vals, a, nil
}

func classify(err error) error {
	switch {
	case dbx.IsUniqueViolation(err):
		return common.ErrorAlreadyExists
	case dbx.IsConstraintViolation(err):
		return fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(t *Table, s scanner) (shared.Row, error) {
	dest := make([]any, len(t.order))
	for i, name := range t.order {
		if t.columns[name] == KindNumber {
			dest[i] = new(sql.NullFloat64)
		} else {
			dest[i] = new(sql.NullString)
		}
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	row := make(shared.Row, len(t.order))
	for i, name := range t.order {
		switch v := dest[i].(type) {
		case *sql.NullFloat64:
			if v.Valid {
				row[name] = v.Float64
			} else {
				row[name] = nil
			}
		case *sql.NullString:
			if v.Valid {
				row[name] = v.String
			} else {
				row[name] = nil
			}
		}
	}
	return row, nil
}
