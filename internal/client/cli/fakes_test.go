package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/client/client"
	"github.com/dmitrijs2005/gophaccount/internal/client/config"
	"github.com/jonboulle/clockwork"
)

type fakeAuth struct {
	user      string
	loginErr  error
	whoErr    error
	verifyErr error
	pingErr   error
	pings     int

	gotEmail    string
	gotUserName string
	gotPassword string
	gotToken    string
	gotUserID   string
}

func (f *fakeAuth) Register(_ context.Context, email, username string, password []byte) (*client.User, error) {
	f.gotEmail, f.gotUserName, f.gotPassword = email, username, string(password)
	return &client.User{ID: "u1", Email: email, UserName: username}, nil
}

func (f *fakeAuth) Verify(_ context.Context, token string) error {
	f.gotToken = token
	return f.verifyErr
}

func (f *fakeAuth) Resend(_ context.Context, userID string) error {
	f.gotUserID = userID
	return nil
}

func (f *fakeAuth) Login(_ context.Context, username string, password []byte) error {
	f.gotUserName, f.gotPassword = username, string(password)
	if f.loginErr != nil {
		return f.loginErr
	}
	f.user = username
	return nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.user = ""
	return nil
}

func (f *fakeAuth) WhoAmI(context.Context) (*client.Session, error) {
	if f.whoErr != nil {
		return nil, f.whoErr
	}
	if f.user == "" {
		return nil, client.ErrNotLoggedIn
	}
	return &client.Session{UserName: f.user, ExpiresAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAuth) CurrentUser(context.Context) (string, error) { return f.user, nil }

func (f *fakeAuth) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

// nonTerminal makes GetPassword read from the scripted input.
func nonTerminal(t *testing.T) {
	t.Helper()
	orig := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = orig })
}

func newTestApp(t *testing.T, fa *fakeAuth, input string) (*App, *bytes.Buffer) {
	t.Helper()
	nonTerminal(t)

	cfg := &config.Config{}
	cfg.LoadDefaults()

	var out bytes.Buffer
	a := newApp(cfg, fa, nil, strings.NewReader(input), &out)
	a.clock = clockwork.NewFakeClock()
	return a, &out
}
