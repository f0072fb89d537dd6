package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/lifedash/internal/client/admin"
	"github.com/dmitrijs2005/lifedash/internal/client/export"
	"github.com/dmitrijs2005/lifedash/internal/client/profiles"
)

// Admin refreshes the admin view and prints it.
func (a *App) Admin(ctx context.Context) error {
	if err := a.admin.Refresh(ctx); err != nil {
		return a.fail(ctx, "Loading admin view failed", err)
	}
	a.printSnapshot(a.admin.Snapshot())
	return nil
}

// Toggle flips the role of userID between admin and user.
func (a *App) Toggle(ctx context.Context, userID string) error {
	current, ok := a.roleOf(userID)
	if !ok {
		if err := a.admin.Refresh(ctx); err != nil {
			return a.fail(ctx, "Loading admin view failed", err)
		}
		if current, ok = a.roleOf(userID); !ok {
			fmt.Fprintf(a.out, "Unknown user %s\n", userID)
			return nil
		}
	}

	if err := a.admin.ToggleRole(ctx, userID, current); err != nil {
		return a.fail(ctx, "Changing role failed", err)
	}
	fmt.Fprintf(a.out, "Role of %s changed to %s\n", userID, current.Flip())
	return nil
}

// Export uploads the admin snapshot, refreshing it first when nothing has
// been loaded yet.
func (a *App) Export(ctx context.Context) error {
	if a.exporter == nil {
		return a.fail(ctx, "Export unavailable", export.ErrNotConfigured)
	}

	if a.admin.Snapshot().FetchedAt.IsZero() {
		if err := a.admin.Refresh(ctx); err != nil {
			return a.fail(ctx, "Loading admin view failed", err)
		}
	}

	key, err := a.exporter.Export(ctx, a.admin.Snapshot())
	if err != nil {
		return a.fail(ctx, "Export failed", err)
	}
	fmt.Fprintf(a.out, "Snapshot exported to %s\n", key)
	return nil
}

func (a *App) roleOf(userID string) (profiles.Role, bool) {
	for _, u := range a.admin.Snapshot().Users {
		if u.ID == userID {
			return u.Role, true
		}
	}
	return profiles.RoleUnset, false
}

func (a *App) printSnapshot(snap admin.Snapshot) {
	t := snap.Totals
	fmt.Fprintf(a.out, "Users: %d (%d admins, %d regular)  Tasks: %d  Transactions: %d  Activity/user: %d\n",
		t.TotalUsers, t.AdminUsers, t.RegularUsers, t.TotalTasks, t.TotalTransactions, t.ActivityPerUser)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tTASKS\tTX\tLAST SIGN-IN")
	for _, u := range snap.Users {
		last := "never"
		if u.LastSignInAt != nil {
			last = u.LastSignInAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			u.ID, u.Email, u.FullName, u.Role, u.TasksCount, u.TransactionsCount, last)
	}
	w.Flush()
}
