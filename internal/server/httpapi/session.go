package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
)

type claimsKey struct{}

// ClaimsFromContext returns the session claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// RequireSession rejects requests without a valid "Authorization: Bearer"
// session token and stores the parsed claims in the request context.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return a.makeHandler(func(w http.ResponseWriter, r *http.Request) error {
		header := r.Header.Get(common.AuthorizationHeaderName)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, common.BearerScheme) || strings.TrimSpace(token) == "" {
			return errUnauthorized("missing bearer token", nil)
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), a.secret)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return err
			}
			return errUnauthorized("invalid session token", err)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		return nil
	})
}

type sessionData struct {
	UserName  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) error {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return errUnauthorized("", nil)
	}

	data := sessionData{UserName: claims.Subject}
	if claims.IssuedAt != nil {
		data.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	respondOK(w, "Session valid", data)
	return nil
}
