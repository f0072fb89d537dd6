package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email, a full name and a password and creates the
// account. The store signs the new user in unless it asks for a separate
// login. The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.SignUp(ctx, email, string(password), fullName); err != nil {
		return a.fail(ctx, "Registration failed", err)
	}

	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Account created, please log in")
		return nil
	}
	snap := a.session.Snapshot()
	fmt.Fprintf(a.out, "Welcome, %s (%s)\n", snap.Name, snap.Role)
	return nil
}

// Login prompts for credentials and makes one sign-in attempt.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.SignIn(ctx, email, string(password)); err != nil {
		return a.fail(ctx, "Login failed", err)
	}

	snap := a.session.Snapshot()
	fmt.Fprintf(a.out, "Welcome back, %s (%s)\n", snap.Name, snap.Role)
	return nil
}

// Logout signs out. The local session is cleared even when the store call
// fails.
func (a *App) Logout(ctx context.Context) error {
	err := a.session.SignOut(ctx)
	fmt.Fprintln(a.out, "Logged out")
	if err != nil {
		a.log.Warn(ctx, "sign-out reported an error", "error", err)
	}
	return err
}

func (a *App) Whoami(ctx context.Context) error {
	snap := a.session.Snapshot()
	if snap.User == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\nid:   %s\nrole: %s\n", snap.Name, snap.Email, snap.User.ID, snap.Role)
	if snap.Degraded {
		fmt.Fprintln(a.out, "(profile store unavailable, role derived from email)")
	}
	return nil
}
