package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"tekst-client/api"
)

// fallbackSessionLifetime applies when the login cookie carries no expiry.
const fallbackSessionLifetime = 12 * time.Hour

// LoginAction signs in and keeps the session for later commands.
func LoginAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	expires, err := app.Client.Login(ctx, cmd.String("username"), cmd.String("password"))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if expires.IsZero() {
		expires = time.Now().Add(fallbackSessionLifetime)
	}

	user, err := app.Client.Me(ctx)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := app.Session.SetUser(ctx, user, expires); err != nil {
		return err
	}
	if err := app.Session.SetAuthCookies(ctx, app.Client.SessionCookies()); err != nil {
		return err
	}
	if user.Locale != "" {
		if err := app.Session.SetLocale(ctx, user.Locale); err != nil {
			return err
		}
	}

	fmt.Fprintf(app.Out, "logged in as %s until %s\n", user.Username, expires.Local().Format(time.DateTime))
	return nil
}

// LogoutAction ends the session on the server and forgets it locally. An
// already expired server session is not an error.
func LogoutAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Client.Logout(ctx); err != nil && !errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("logout: %w", err)
	}
	if err := app.Session.ClearUser(ctx); err != nil {
		return err
	}
	fmt.Fprintln(app.Out, "logged out")
	return nil
}
