package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
)

// User is the account as returned by registration.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	UserName string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// Session describes the token the caller is holding.
type Session struct {
	UserName  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Client is the account API surface the CLI uses.
type Client interface {
	Register(ctx context.Context, email, username string, password []byte) (*User, error)
	Verify(ctx context.Context, token string) error
	Resend(ctx context.Context, userID string) error
	Login(ctx context.Context, username string, password []byte) (string, error)
	Session(ctx context.Context, token string) (*Session, error)
	Ping(ctx context.Context) error
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   []FieldError    `json:"error"`
}

// HTTPClient implements Client over the JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Register(ctx context.Context, email, username string, password []byte) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/user/register", "", map[string]string{
		"email":    email,
		"username": username,
		"password": string(password),
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Verify(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/user/verify", "", map[string]string{"token": token}, nil)
}

func (c *HTTPClient) Resend(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/user/resend-token", "", map[string]string{"user_id": userID}, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/user/login", "", map[string]string{
		"username": username,
		"password": string(password),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *HTTPClient) Session(ctx context.Context, token string) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/user/session", token, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Ping probes the health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/check", "", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
		}
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: %s", ErrUnavailable, env.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Fields: env.Error}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
