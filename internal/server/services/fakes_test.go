package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/dbx"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/mailer"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/activationtokens"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memStore backs both fake repositories and honours the same contracts as
// the Postgres ones: unique email/username, unique token, expiry by clock.
type memStore struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	nextID int
	users  map[string]*models.User
	tokens map[string]models.ActivationToken

	createUserErr    error
	getUserErr       error
	activateErr      error
	createTokenErr   error
	findTokenErr     error
	deleteTokenErr   error
	deleteForUserErr error
}

func newMemStore(clock clockwork.Clock) *memStore {
	return &memStore{
		clock:  clock,
		users:  map[string]*models.User{},
		tokens: map[string]models.ActivationToken{},
	}
}

func (s *memStore) tokensOf(userID string) []models.ActivationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivationToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) user(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createUserErr != nil {
		return nil, r.s.createUserErr
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email || existing.UserName == u.UserName {
			return nil, common.ErrAccountAlreadyExists
		}
	}
	r.s.nextID++
	created := *u
	created.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", r.s.nextID)
	created.IsActive = false
	created.CreatedAt = r.s.clock.Now()
	created.UpdatedAt = created.CreatedAt
	r.s.users[created.ID] = &created
	out := created
	return &out, nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getUserErr != nil {
		return nil, r.s.getUserErr
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *memUsers) GetByUserName(_ context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getUserErr != nil {
		return nil, r.s.getUserErr
	}
	for _, u := range r.s.users {
		if u.UserName == name {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) Activate(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.activateErr != nil {
		return r.s.activateErr
	}
	if u, ok := r.s.users[id]; ok {
		u.IsActive = true
		u.UpdatedAt = r.s.clock.Now()
	}
	return nil
}

type memTokens struct{ s *memStore }

func (r *memTokens) Create(_ context.Context, t *models.ActivationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createTokenErr != nil {
		return r.s.createTokenErr
	}
	if _, dup := r.s.tokens[t.Token]; dup {
		return errors.New("db error: duplicate token")
	}
	r.s.tokens[t.Token] = *t
	return nil
}

func (r *memTokens) FindValid(_ context.Context, token string) (*models.ActivationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findTokenErr != nil {
		return nil, r.s.findTokenErr
	}
	t, ok := r.s.tokens[token]
	if !ok || !t.ExpiresAt.After(r.s.clock.Now()) {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *memTokens) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deleteTokenErr != nil {
		return r.s.deleteTokenErr
	}
	delete(r.s.tokens, token)
	return nil
}

func (r *memTokens) DeleteForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deleteForUserErr != nil {
		return r.s.deleteForUserErr
	}
	for k, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, k)
		}
	}
	return nil
}

func (r *memTokens) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, t := range r.s.tokens {
		if !t.ExpiresAt.After(r.s.clock.Now()) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &memUsers{m.s} }
func (m *fakeRepoManager) ActivationTokens(dbx.DBTX) activationtokens.Repository {
	return &memTokens{m.s}
}

type sentEmail struct {
	email  mailer.Email
	ctxErr error
	hasDL  bool
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentEmail
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, e mailer.Email) error {
	if f.block != nil {
		<-f.block
	}
	_, hasDL := ctx.Deadline()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{email: e, ctxErr: ctx.Err(), hasDL: hasDL})
	return f.err
}

func (f *fakeSender) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

type fixture struct {
	svc     *IdentityService
	store   *memStore
	sender  *fakeSender
	clock   *clockwork.FakeClock
	mock    sqlmock.Sqlmock
	metrics *metrics.Identity
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                       "k",
		SessionTokenValidityDuration:    time.Hour,
		ActivationTokenValidityDuration: 15 * 24 * time.Hour,
		BcryptCost:                      bcrypt.MinCost,
		VerificationURL:                 "https://example.com/user/verify",
	}
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := clockwork.NewFakeClockAt(t0)
	store := newMemStore(clock)
	sender := &fakeSender{}
	m := metrics.NewIdentity(prometheus.NewRegistry())

	svc := NewIdentityService(db, &fakeRepoManager{store}, sender, testConfig(), discardLogger(),
		WithClock(clock), WithMetrics(m), WithSendTimeout(time.Second))

	return &fixture{svc: svc, store: store, sender: sender, clock: clock, mock: mock, metrics: m}
}

func (f *fixture) register(t *testing.T, email, name string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{Email: email, UserName: name, Password: "Secr3t!pass"})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	f.svc.Wait()
	return u
}

func (f *fixture) onlyToken(t *testing.T, userID string) models.ActivationToken {
	t.Helper()
	toks := f.store.tokensOf(userID)
	if len(toks) != 1 {
		t.Fatalf("want exactly one token for %s, got %d", userID, len(toks))
	}
	return toks[0]
}
