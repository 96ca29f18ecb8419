package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/metrics"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"
	"github.com/dmitrijs2005/gophaccount/internal/server/validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeIdentity struct {
	registerErr error
	verifyErr   error
	resendErr   error
	loginErr    error
	loginToken  string

	gotRegister services.RegisterRequest
	gotToken    string
	gotUserID   string
	gotLogin    services.LoginRequest
}

func (f *fakeIdentity) Register(_ context.Context, req services.RegisterRequest) (*models.User, error) {
	f.gotRegister = req
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{
		ID:           "0b7e4c52-3f0e-4d8a-9a43-6a1f2f7b1c11",
		Email:        req.Email,
		UserName:     req.UserName,
		PasswordHash: "$2a$10$secret",
	}, nil
}

func (f *fakeIdentity) Verify(_ context.Context, token string) error {
	f.gotToken = token
	return f.verifyErr
}

func (f *fakeIdentity) Resend(_ context.Context, userID string) error {
	f.gotUserID = userID
	return f.resendErr
}

func (f *fakeIdentity) Login(_ context.Context, req services.LoginRequest) (string, error) {
	f.gotLogin = req
	return f.loginToken, f.loginErr
}

func newTestAPI(t *testing.T, id IdentityService, opts ...Option) http.Handler {
	t.Helper()
	v, err := validation.New()
	require.NoError(t, err)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(id, v, testSecret, log, opts...).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    json.RawMessage         `json:"data"`
	Error   []validation.FieldError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	assert.Equal(t, contentTypeJSONUTF8, rec.Header().Get(headerContentType))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})
	rec := do(t, h, http.MethodGet, "/health/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Service online", env.Message)
}

func TestHealth_PingFails(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{}, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
	rec := do(t, h, http.MethodGet, "/health/check", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestNotFound(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})
	rec := do(t, h, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Resource not found"}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})
	rec := do(t, h, http.MethodGet, "/user/register", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestRegister(t *testing.T) {
	id := &fakeIdentity{}
	h := newTestAPI(t, id)

	rec := do(t, h, http.MethodPost, "/user/register",
		`{"email":"ann@example.com","username":"ann","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, services.RegisterRequest{Email: "ann@example.com", UserName: "ann", Password: "Str0ng!pass"}, id.gotRegister)

	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "ann", user["username"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRegister_ValidationErrors(t *testing.T) {
	id := &fakeIdentity{}
	h := newTestAPI(t, id)

	rec := do(t, h, http.MethodPost, "/user/register",
		`{"email":"not-an-email","username":"an","password":"short"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, msgValidation, env.Message)

	byField := map[string]string{}
	for _, fe := range env.Error {
		byField[fe.Field] = fe.Message
	}
	assert.Equal(t, "Invalid email format", byField["email"])
	assert.Contains(t, byField, "username")
	assert.Equal(t, "Password must be at least 8 characters", byField["password"])
	assert.Empty(t, id.gotRegister.Email, "service must not be called")
}

func TestRegister_MalformedJSON(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})

	for name, body := range map[string]string{
		"broken":   `{"email":`,
		"trailing": `{"email":"a@b.co"} {}`,
		"empty":    ``,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/user/register", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{registerErr: common.ErrAccountAlreadyExists})
	rec := do(t, h, http.MethodPost, "/user/register",
		`{"email":"ann@example.com","username":"ann","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, common.ErrAccountAlreadyExists.Error(), decodeEnvelope(t, rec).Message)
}

func TestRegister_InternalErrorHidden(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{registerErr: errors.New("db error: connection reset")})
	rec := do(t, h, http.MethodPost, "/user/register",
		`{"email":"ann@example.com","username":"ann","password":"Str0ng!pass"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalServer, decodeEnvelope(t, rec).Message)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestVerify(t *testing.T) {
	id := &fakeIdentity{}
	h := newTestAPI(t, id)

	rec := do(t, h, http.MethodPost, "/user/verify", `{"token":"abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", id.gotToken)

	id.verifyErr = common.ErrInvalidToken
	rec = do(t, h, http.MethodPost, "/user/verify", `{"token":"abc123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/user/verify", `{"token":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResend(t *testing.T) {
	id := &fakeIdentity{}
	h := newTestAPI(t, id)
	const uid = "0b7e4c52-3f0e-4d8a-9a43-6a1f2f7b1c11"

	rec := do(t, h, http.MethodPost, "/user/resend-token", `{"user_id":"`+uid+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uid, id.gotUserID)

	rec = do(t, h, http.MethodPost, "/user/resend-token", `{"user_id":"42"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	id.resendErr = common.ErrorNotFound
	rec = do(t, h, http.MethodPost, "/user/resend-token", `{"user_id":"`+uid+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	id := &fakeIdentity{loginToken: "jwt-token"}
	h := newTestAPI(t, id)

	rec := do(t, h, http.MethodPost, "/user/login", `{"username":"ann","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"token":"jwt-token"}`, string(env.Data))
	assert.Equal(t, services.LoginRequest{UserName: "ann", Password: "pw"}, id.gotLogin)

	id.loginErr = common.ErrInvalidCredentials
	rec = do(t, h, http.MethodPost, "/user/login", `{"username":"ann","password":"bad"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid username or password", decodeEnvelope(t, rec).Message)
}

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: claims}).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestSession(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})

	token, err := auth.GenerateToken("ann", testSecret, time.Hour)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/user/session", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data sessionData
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	assert.Equal(t, "ann", data.UserName)
	assert.Equal(t, time.Hour, data.ExpiresAt.Sub(data.IssuedAt))
}

func TestSession_Rejected(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})
	past := time.Now().Add(-2 * time.Hour)

	expired := signed(t, jwt.RegisteredClaims{
		Subject:   "ann",
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
	})

	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing", "", "missing bearer token"},
		{"wrong scheme", "Basic abc", "missing bearer token"},
		{"garbage", "Bearer not.a.jwt", "invalid session token"},
		{"expired", "Bearer " + expired, "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hdr []string
			if tt.header != "" {
				hdr = []string{"Authorization", tt.header}
			}
			rec := do(t, h, http.MethodGet, "/user/session", "", hdr...)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.msg, decodeEnvelope(t, rec).Message)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	h := newTestAPI(t, &fakeIdentity{}, WithMetrics(metrics.NewHTTP(reg), reg))

	_ = do(t, h, http.MethodGet, "/health/check", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "gophaccount_http_request_duration_seconds")
	assert.Contains(t, body, `route="/health/check"`)
}

func TestMetricsEndpoint_DisabledWithoutRegistry(t *testing.T) {
	h := newTestAPI(t, &fakeIdentity{})
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
