package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/gophaccount/internal/client/client"
	"github.com/dmitrijs2005/gophaccount/internal/common"
)

// Input indirections, swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errUsage = errors.New("usage")

func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Register(ctx, email, userName, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %s). Check %s for the activation link.\n", u.UserName, u.ID, u.Email)
	return nil
}

// Verify accepts the token itself or the full activation link.
func (a *App) Verify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: verify <token|link>", errUsage)
	}

	if err := a.authService.Verify(ctx, tokenFromArg(args[0])); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account activated")
	return nil
}

func (a *App) Resend(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: resend <user-id>", errUsage)
	}

	if err := a.authService.Resend(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Activation email sent")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, userName, password); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.userName = userName
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	s, err := a.authService.WhoAmI(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotLoggedIn) {
			a.userName = ""
		}
		return err
	}

	fmt.Fprintf(a.out, "%s, session valid until %s\n", s.UserName, s.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// tokenFromArg extracts the token query parameter from a pasted activation
// link. Anything else is taken as the token itself.
func tokenFromArg(arg string) string {
	u, err := url.Parse(arg)
	if err != nil || u.RawQuery == "" {
		return arg
	}
	if t := u.Query().Get("token"); t != "" {
		return t
	}
	return arg
}
