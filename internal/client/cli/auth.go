package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/client/credentials"
	"github.com/dmitrijs2005/ipdash/internal/client/nav"
	"github.com/dmitrijs2005/ipdash/internal/client/session"
	"github.com/dmitrijs2005/ipdash/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var (
	errNotLoggedIn       = errors.New("please log in first")
	errMissingCredential = errors.New("email and password are required")
)

// requireAuth sends anonymous users to the login surface.
func (a *App) requireAuth() error {
	if a.state() != session.Authenticated {
		a.router.Redirect(nav.LoginPath)
		return errNotLoggedIn
	}
	return nil
}

// guestOnly sends authenticated users to the dashboard and reports whether
// the caller may proceed.
func (a *App) guestOnly() bool {
	snap := a.store.Snapshot()
	if !snap.IsAuthenticated {
		return true
	}
	a.router.Redirect(nav.DashboardPath)
	a.println("Already logged in as", snap.User.Email)
	return false
}

// promptCredentials asks for email and password. The password slice must be
// wiped by the caller.
func (a *App) promptCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(email) == "" || len(password) == 0 {
		common.WipeByteArray(password)
		return "", nil, errMissingCredential
	}
	return email, password, nil
}

// Register prompts for an email and password, creates the account and
// signs in with it.
func (a *App) Register(ctx context.Context) error {
	if !a.guestOnly() {
		return nil
	}
	a.router.Redirect(nav.RegisterPath)

	email, password, err := a.promptCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.store.Register(ctx, email, string(password))
	if !res.Success {
		return errors.New(res.Error)
	}

	a.router.Redirect(nav.DashboardPath)
	a.println("Registered and logged in as", a.store.Snapshot().User.Email)
	return nil
}

// Login prompts for credentials and signs in. The user is moved to the login
// surface first, so a rejected login never counts as an expired session.
func (a *App) Login(ctx context.Context) error {
	if !a.guestOnly() {
		return nil
	}
	a.router.Redirect(nav.LoginPath)

	email, password, err := a.promptCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.store.Login(ctx, email, string(password))
	if !res.Success {
		a.log.Info(ctx, "login unsuccessful", "email", email, "reason", res.Error)
		return errors.New(res.Error)
	}

	a.router.Redirect(nav.DashboardPath)
	a.println("Logged in as", a.store.Snapshot().User.Email)
	return nil
}

// Logout ends the session locally and on the server.
func (a *App) Logout(ctx context.Context) error {
	a.loggingOut.Store(true)
	defer a.loggingOut.Store(false)

	if err := a.store.Logout(ctx); err != nil {
		return err
	}
	a.println("Logged out")
	return nil
}

// WhoAmI prints the local view of the session: the user and what the stored
// credential says about itself. It does not contact the server.
func (a *App) WhoAmI(ctx context.Context) error {
	snap := a.store.Snapshot()
	if !snap.IsAuthenticated {
		a.println("Not logged in")
		return nil
	}

	a.printf("Email: %s\n", snap.User.Email)
	if snap.User.Name != "" {
		a.printf("Name: %s\n", snap.User.Name)
	}

	token, err := a.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if local, ok := a.creds.(*credentials.Local); ok {
		if at, found, err := local.SavedAt(ctx); err == nil && found {
			a.printf("Signed in: %s\n", at.Local().Format(time.DateTime))
		}
	}

	claims, err := credentials.Inspect(token)
	if err != nil {
		a.println("Credential: opaque")
		return nil
	}
	if !claims.ExpiresAt.IsZero() {
		state := "valid"
		if claims.Expired(time.Now()) {
			state = "expired"
		}
		a.printf("Credential expires: %s (%s)\n", claims.ExpiresAt.Local().Format(time.DateTime), state)
	}
	return nil
}

// Me fetches the profile from the server.
func (a *App) Me(ctx context.Context) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	u, err := a.authService.Me(ctx)
	if err != nil {
		return err
	}

	a.printf("ID: %s\nEmail: %s\n", u.ID, u.Email)
	if u.Name != "" {
		a.printf("Name: %s\n", u.Name)
	}
	if u.CreatedAt != nil {
		a.printf("Member since: %s\n", u.CreatedAt.Local().Format(time.DateOnly))
	}
	if u.LastLogin != nil {
		a.printf("Last login: %s\n", u.LastLogin.Local().Format(time.DateTime))
	}
	return nil
}
