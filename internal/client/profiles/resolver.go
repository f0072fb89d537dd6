package profiles

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

// DefaultAdminEmail is the distinguished admin address used when none is
// configured.
const DefaultAdminEmail = "admin@lifedash.local"

// Resolution is what a session learns about its user.
type Resolution struct {
	Role  Role
	Name  string
	Email string
	// Degraded is set when the store failed and Role was derived from the
	// email alone.
	Degraded bool
}

type Resolver struct {
	repo       *Repository
	adminEmail string
	log        logging.Logger
	group      singleflight.Group
}

func NewResolver(repo *Repository, adminEmail string, log logging.Logger) *Resolver {
	if strings.TrimSpace(adminEmail) == "" {
		adminEmail = DefaultAdminEmail
	}
	return &Resolver{repo: repo, adminEmail: adminEmail, log: log.With("module", "resolver")}
}

// IsDistinguishedAdmin reports whether email is the configured admin address.
func (r *Resolver) IsDistinguishedAdmin(email string) bool {
	return common.SameEmail(email, r.adminEmail)
}

// Resolve returns the role, name and email of userID, creating or
// correcting the profile as needed. Concurrent calls for the same identity
// share one pass.
func (r *Resolver) Resolve(ctx context.Context, userID, email string) Resolution {
	key := userID + "\x00" + strings.ToLower(strings.TrimSpace(email))
	v, _, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, userID, strings.TrimSpace(email)), nil
	})
	return v.(Resolution)
}

// SignUpRole is the role a new account for email should start with. The
// first account ever created is admin. Counting and creating are separate
// store calls, so two simultaneous first sign-ups may both get admin.
func (r *Resolver) SignUpRole(ctx context.Context, email string) Role {
	fallback := r.emailRole(email)
	n, err := r.repo.Count(ctx)
	if err != nil {
		r.log.Error(ctx, "profile count failed, first-user rule skipped", "email", email, "error", err)
		return fallback
	}
	if n == 0 {
		return RoleAdmin
	}
	return fallback
}

func (r *Resolver) emailRole(email string) Role {
	if r.IsDistinguishedAdmin(email) {
		return RoleAdmin
	}
	return RoleUser
}

func (r *Resolver) resolve(ctx context.Context, userID, email string) Resolution {
	p, err := r.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return r.provision(ctx, userID, email)
	case err != nil:
		return r.degrade(ctx, &StoreError{Op: "read", UserID: userID, Err: err}, Resolution{Email: email}, email)
	}
	return r.reconcile(ctx, p, email)
}

// reconcile applies the email backfill and the admin correction to an
// existing profile.
func (r *Resolver) reconcile(ctx context.Context, p *Profile, email string) Resolution {
	distinguished := r.IsDistinguishedAdmin(email)
	res := Resolution{Role: p.Role, Name: p.FullName, Email: p.Email}
	if res.Role == RoleUnset {
		res.Role = r.emailRole(email)
	}
	if res.Email == "" {
		res.Email = email
	}

	if p.Email == "" && email != "" {
		if err := r.repo.SetEmail(ctx, p.ID, email); err != nil {
			return r.degrade(ctx, &StoreError{Op: "backfill email", UserID: p.ID, Err: err}, res, email)
		}
	}

	if distinguished && p.Role != RoleAdmin {
		r.log.Warn(ctx, "correcting role of distinguished admin", "user_id", p.ID, "stored_role", p.Role.String())
		if err := r.repo.SetRole(ctx, p.ID, RoleAdmin); err != nil {
			return r.degrade(ctx, &StoreError{Op: "correct role", UserID: p.ID, Err: err}, res, email)
		}
		res.Role = RoleAdmin
	}
	return res
}

func (r *Resolver) provision(ctx context.Context, userID, email string) Resolution {
	p := Profile{
		ID:       userID,
		Email:    email,
		FullName: localPart(email),
		Role:     r.emailRole(email),
	}
	res := Resolution{Role: p.Role, Name: p.FullName, Email: email}

	created, err := r.repo.CreateIfAbsent(ctx, p)
	if err != nil {
		return r.degrade(ctx, &StoreError{Op: "create", UserID: userID, Err: err}, res, email)
	}
	if created {
		r.log.Info(ctx, "profile created", "user_id", userID, "role", p.Role.String())
		return res
	}

	// Someone else created it between our read and write.
	existing, err := r.repo.Get(ctx, userID)
	if err != nil {
		return r.degrade(ctx, &StoreError{Op: "read", UserID: userID, Err: err}, res, email)
	}
	return r.reconcile(ctx, existing, email)
}

func (r *Resolver) degrade(ctx context.Context, err *StoreError, partial Resolution, email string) Resolution {
	r.log.Error(ctx, "profile resolution failed, using email-derived role", "error", err)
	partial.Role = r.emailRole(email)
	partial.Degraded = true
	if partial.Email == "" {
		partial.Email = email
	}
	return partial
}

func localPart(email string) string {
	return common.EmailLocalPart(email)
}
