// Package httpapi exposes the account lifecycle as a JSON API on chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	healthPath  = "/health/check"
	metricsPath = "/metrics"
	userPath    = "/user"
)

const defaultRequestTimeout = 30 * time.Second

// API holds the handlers and their dependencies.
type API struct {
	identity  IdentityService
	validator *validation.Validator
	secret    []byte
	log       logging.Logger

	ping           func(context.Context) error
	httpMetrics    *metrics.HTTP
	registry       *prometheus.Registry
	requestTimeout time.Duration
}

// Option customizes an API.
type Option func(*API)

// WithHealthCheck makes /health/check answer 503 while ping fails.
func WithHealthCheck(ping func(context.Context) error) Option {
	return func(a *API) { a.ping = ping }
}

// WithMetrics records request durations in m and serves reg on /metrics.
func WithMetrics(m *metrics.HTTP, reg *prometheus.Registry) Option {
	return func(a *API) {
		a.httpMetrics = m
		a.registry = reg
	}
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) { a.requestTimeout = d }
}

// New creates the API. secret verifies session tokens.
func New(identity IdentityService, v *validation.Validator, secret []byte, log logging.Logger, opts ...Option) *API {
	a := &API{
		identity:       identity,
		validator:      v,
		secret:         secret,
		log:            log,
		requestTimeout: defaultRequestTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Routes builds the chi router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlate)
	r.Use(a.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": msgNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, Envelope{Message: "Method not allowed"})
	})

	r.Get(healthPath, a.makeHandler(a.handleHealth))
	if a.registry != nil {
		r.Method(http.MethodGet, metricsPath, metrics.Handler(a.registry))
	}

	r.Route(userPath, func(r chi.Router) {
		r.Post("/register", a.makeHandler(a.handleRegister))
		r.Post("/verify", a.makeHandler(a.handleVerify))
		r.Post("/resend-token", a.makeHandler(a.handleResend))
		r.Post("/login", a.makeHandler(a.handleLogin))
		r.With(a.RequireSession).Get("/session", a.makeHandler(a.handleSession))
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if a.ping != nil {
		if err := a.ping(r.Context()); err != nil {
			return newHTTPError(http.StatusServiceUnavailable, "Service unavailable", err)
		}
	}
	respondOK(w, "Service online", nil)
	return nil
}
