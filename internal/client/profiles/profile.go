package profiles

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
)

// Profile is a row of the profiles table.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the full name, or the email's local part when no name is
// stored.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return localPart(p.Email)
}

// rawRole is returned alongside a decoded profile when the stored role is
// not one we know.
type rawRole string

func profileFromRow(row store.Row) (Profile, rawRole, error) {
	id := row.String("id")
	if id == "" {
		return Profile{}, "", fmt.Errorf("profile row without id: %w", store.ErrInvalidArgument)
	}
	p := Profile{
		ID:       id,
		Email:    row.String("email"),
		FullName: row.String("full_name"),
	}

	var unknown rawRole
	role, ok := ParseRole(row.String("role"))
	if !ok {
		unknown = rawRole(row.String("role"))
	}
	p.Role = role

	var err error
	if p.CreatedAt, err = row.Time("created_at"); err != nil {
		return Profile{}, "", err
	}
	if p.UpdatedAt, err = row.Time("updated_at"); err != nil {
		return Profile{}, "", err
	}
	return p, unknown, nil
}

func (p Profile) toRow() store.Row {
	row := store.Row{"id": p.ID}
	if p.Email != "" {
		row["email"] = p.Email
	}
	if p.FullName != "" {
		row["full_name"] = p.FullName
	}
	if p.Role != RoleUnset {
		row["role"] = string(p.Role)
	}
	return row
}
