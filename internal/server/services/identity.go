// Package services contains server-side business logic. IdentityService
// drives the account lifecycle: registration, email verification through
// activation tokens, token resend and password login.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/cryptox"
	"github.com/dmitrijs2005/gophaccount/internal/dbx"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/mailer"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// activationTokenBytes of crypto/rand output give a 64 char hex token.
const activationTokenBytes = 32

const defaultSendTimeout = 30 * time.Second

// RegisterRequest carries already validated registration fields.
type RegisterRequest struct {
	Email    string
	UserName string
	Password string
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	UserName string
	Password string
}

// IdentityService implements the account lifecycle on top of the user and
// activation token repositories.
type IdentityService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	sender          mailer.EmailSender
	log             logging.Logger
	metrics         *metrics.Identity
	clock           clockwork.Clock
	jwtSecret       []byte
	sessionTTL      time.Duration
	activationTTL   time.Duration
	bcryptCost      int
	verificationURL string
	sendTimeout     time.Duration

	// deliveries tracks activation mails still in flight.
	deliveries sync.WaitGroup

	dummyHashOnce sync.Once
	dummyHash     string
}

// Option customizes an IdentityService.
type Option func(*IdentityService)

// WithClock replaces the wall clock used for token expiry stamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *IdentityService) { s.clock = c }
}

// WithMetrics reports flow outcomes into m.
func WithMetrics(m *metrics.Identity) Option {
	return func(s *IdentityService) { s.metrics = m }
}

// WithSendTimeout bounds a single activation mail delivery.
func WithSendTimeout(d time.Duration) Option {
	return func(s *IdentityService) { s.sendTimeout = d }
}

// NewIdentityService constructs an IdentityService using repositories, a mail
// sender and server config.
func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, sender mailer.EmailSender, cfg *config.Config, log logging.Logger, opts ...Option) *IdentityService {
	s := &IdentityService{
		db:              db,
		repomanager:     m,
		sender:          sender,
		log:             log,
		clock:           clockwork.NewRealClock(),
		jwtSecret:       []byte(cfg.SecretKey),
		sessionTTL:      cfg.SessionTokenValidityDuration,
		activationTTL:   cfg.ActivationTokenValidityDuration,
		bcryptCost:      cfg.BcryptCost,
		verificationURL: cfg.VerificationURL,
		sendTimeout:     defaultSendTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewIdentity(prometheus.NewRegistry())
	}
	return s
}

// Register creates an inactive user and issues its first activation token.
// A failure to issue the token is logged only: the account exists and Resend
// recovers it.
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	hash, err := cryptox.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		s.log.Error(ctx, "hash password", "error", err)
		s.metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return nil, common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        req.Email,
		UserName:     req.UserName,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrAccountAlreadyExists) {
			s.metrics.Registrations.WithLabelValues(metrics.ResultConflict).Inc()
			return nil, common.ErrAccountAlreadyExists
		}
		s.log.Error(ctx, "create user", "error", err)
		s.metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return nil, common.ErrorInternal
	}

	if _, err := s.issueActivationToken(ctx, user); err != nil {
		s.log.Warn(ctx, "activation token not issued at registration", "user_id", user.ID, "error", err)
	}

	s.metrics.Registrations.WithLabelValues(metrics.ResultOK).Inc()
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Verify consumes an activation token and activates its user. The lookup,
// the activation and the token delete share one transaction, so a token
// activates at most once.
func (s *IdentityService) Verify(ctx context.Context, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.ActivationTokens(tx)

		t, err := tokens.FindValid(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("find token: %w", err)
		}
		// the row passed the database clock; also hold it to ours
		if t.Expired(s.clock.Now()) {
			return common.ErrInvalidToken
		}

		if err := s.repomanager.Users(tx).Activate(ctx, t.UserID); err != nil {
			return fmt.Errorf("activate user: %w", err)
		}
		if err := tokens.Delete(ctx, t.Token); err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		return nil
	})

	switch {
	case err == nil:
		s.metrics.Verifications.WithLabelValues(metrics.ResultOK).Inc()
		return nil
	case errors.Is(err, common.ErrInvalidToken):
		s.metrics.Verifications.WithLabelValues(metrics.ResultInvalid).Inc()
		return common.ErrInvalidToken
	default:
		s.log.Error(ctx, "verify token", "error", err)
		s.metrics.Verifications.WithLabelValues(metrics.ResultError).Inc()
		return common.ErrorInternal
	}
}

// Resend drops every activation token of the user and issues a new one.
// The user may already be active.
func (s *IdentityService) Resend(ctx context.Context, userID string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.log.Error(ctx, "get user", "user_id", userID, "error", err)
		return common.ErrorInternal
	}

	if err := s.repomanager.ActivationTokens(s.db).DeleteForUser(ctx, user.ID); err != nil {
		// a stale row is still bounded by its expiry
		s.log.Warn(ctx, "delete old activation tokens", "user_id", user.ID, "error", err)
	}

	if _, err := s.issueActivationToken(ctx, user); err != nil {
		return err
	}
	return nil
}

// Login checks the password of userName and returns a signed session token.
// Unknown users and wrong passwords give the same error.
func (s *IdentityService) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, req.UserName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn a bcrypt comparison so a miss costs the same as a hit
			cryptox.VerifyPassword(req.Password, s.getDummyHash())
			s.metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
			return "", common.ErrInvalidCredentials
		}
		s.log.Error(ctx, "get user", "error", err)
		s.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return "", common.ErrorInternal
	}

	if !cryptox.VerifyPassword(req.Password, user.PasswordHash) {
		s.metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
		return "", common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.UserName, s.jwtSecret, s.sessionTTL)
	if err != nil {
		s.log.Error(ctx, "sign session token", "error", err)
		s.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return "", common.ErrorInternal
	}

	s.metrics.Logins.WithLabelValues(metrics.ResultOK).Inc()
	return token, nil
}

// SweepExpired deletes activation tokens past their expiry.
func (s *IdentityService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.ActivationTokens(s.db).DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.TokensSwept.Add(float64(n))
	return n, nil
}

// Wait blocks until in-flight activation mails are delivered or given up.
func (s *IdentityService) Wait() {
	s.deliveries.Wait()
}

// --- helpers below ---

// issueActivationToken stores a fresh token for user and hands the mail to
// the sender in the background. The row is stored before any delivery starts.
func (s *IdentityService) issueActivationToken(ctx context.Context, user *models.User) (*models.ActivationToken, error) {
	value, err := common.MakeRandHexString(activationTokenBytes)
	if err != nil {
		s.log.Error(ctx, "generate activation token", "error", err)
		return nil, common.ErrorInternal
	}

	token := &models.ActivationToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: s.clock.Now().Add(s.activationTTL),
	}
	if err := s.repomanager.ActivationTokens(s.db).Create(ctx, token); err != nil {
		s.log.Error(ctx, "store activation token", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	email, err := mailer.ActivationEmail(s.verificationURL, mailer.Activation{
		To:        user.Email,
		UserName:  user.UserName,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		s.log.Error(ctx, "render activation email", "user_id", user.ID, "error", err)
		s.metrics.ActivationEmails.WithLabelValues(metrics.ResultError).Inc()
		return token, nil
	}

	s.deliver(ctx, user.ID, email)
	return token, nil
}

// deliver sends email on its own goroutine. The request context only lends
// its values: the send outlives the request, bounded by sendTimeout.
func (s *IdentityService) deliver(ctx context.Context, userID string, email mailer.Email) {
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sendTimeout)
		defer cancel()

		if err := s.sender.Send(ctx, email); err != nil {
			s.log.Error(ctx, "send activation email", "user_id", userID, "error", err)
			s.metrics.ActivationEmails.WithLabelValues(metrics.ResultError).Inc()
			return
		}
		s.metrics.ActivationEmails.WithLabelValues(metrics.ResultOK).Inc()
	}()
}

func (s *IdentityService) getDummyHash() string {
	s.dummyHashOnce.Do(func() {
		s.dummyHash, _ = cryptox.HashPassword("dummy-password-for-timing", s.bcryptCost)
	})
	return s.dummyHash
}
