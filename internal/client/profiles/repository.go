package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

// Repository is a typed view of the profiles table. Rows are validated on
// the way in: an unknown role is logged and read as RoleUnset.
type Repository struct {
	records store.Records
	log     logging.Logger
	now     func() time.Time
}

func NewRepository(records store.Records, log logging.Logger) *Repository {
	return &Repository{records: records, log: log.With("module", "profiles"), now: time.Now}
}

// Get returns the profile with the given id, or store.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Profile, error) {
	res, err := r.records.Select(ctx, store.TableProfiles, store.Where("id", id), store.SelectOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	p, err := r.decode(ctx, res.Rows[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every profile, newest first.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	res, err := r.records.Select(ctx, store.TableProfiles, store.Filter{},
		store.SelectOptions{OrderBy: "created_at", Descending: true})
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(res.Rows))
	for _, row := range res.Rows {
		p, err := r.decode(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Count returns the number of profiles.
func (r *Repository) Count(ctx context.Context) (int, error) {
	res, err := r.records.Select(ctx, store.TableProfiles, store.Filter{}, store.SelectOptions{CountOnly: true})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// CreateIfAbsent inserts p unless a profile with the same id exists. It
// reports whether the row was written.
func (r *Repository) CreateIfAbsent(ctx context.Context, p Profile) (bool, error) {
	row, err := r.records.Upsert(ctx, store.TableProfiles, p.toRow(), store.UpsertOptions{IgnoreDuplicates: true})
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// Save inserts p or merges its non-empty fields into the existing row.
func (r *Repository) Save(ctx context.Context, p Profile) error {
	row := p.toRow()
	row["updated_at"] = store.FormatTime(r.now())
	_, err := r.records.Upsert(ctx, store.TableProfiles, row, store.UpsertOptions{})
	return err
}

func (r *Repository) SetRole(ctx context.Context, id string, role Role) error {
	return r.patch(ctx, id, store.Row{"role": string(role)})
}

func (r *Repository) SetEmail(ctx context.Context, id, email string) error {
	return r.patch(ctx, id, store.Row{"email": email})
}

func (r *Repository) patch(ctx context.Context, id string, patch store.Row) error {
	patch["updated_at"] = store.FormatTime(r.now())
	n, err := r.records.Update(ctx, store.TableProfiles, store.Where("id", id), patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *Repository) decode(ctx context.Context, row store.Row) (Profile, error) {
	p, unknown, err := profileFromRow(row)
	if err != nil {
		return Profile{}, err
	}
	if unknown != "" {
		r.log.Warn(ctx, "unknown role in profile, treating as unset", "user_id", p.ID, "role", string(unknown))
	}
	return p, nil
}
