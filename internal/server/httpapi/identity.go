package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/server/models"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"
)

// IdentityService is the account lifecycle the handlers drive.
type IdentityService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	Verify(ctx context.Context, token string) error
	Resend(ctx context.Context, userID string) error
	Login(ctx context.Context, req services.LoginRequest) (string, error)
}

type registerPayload struct {
	Email    string `json:"email" validate:"required,email"`
	UserName string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,password"`
}

type verifyPayload struct {
	Token string `json:"token" validate:"required"`
}

type resendPayload struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type loginPayload struct {
	UserName string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginData struct {
	Token string `json:"token"`
}

// decodeValid decodes the body into dst and runs the validator over it.
func (a *API) decodeValid(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return a.validator.Struct(dst)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var p registerPayload
	if err := a.decodeValid(w, r, &p); err != nil {
		return err
	}

	user, err := a.identity.Register(r.Context(), services.RegisterRequest{
		Email:    p.Email,
		UserName: p.UserName,
		Password: p.Password,
	})
	if err != nil {
		return err
	}

	respondOK(w, "User registered, check your email to activate the account", user)
	return nil
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) error {
	var p verifyPayload
	if err := a.decodeValid(w, r, &p); err != nil {
		return err
	}

	if err := a.identity.Verify(r.Context(), p.Token); err != nil {
		return err
	}

	respondOK(w, "Account activated", nil)
	return nil
}

func (a *API) handleResend(w http.ResponseWriter, r *http.Request) error {
	var p resendPayload
	if err := a.decodeValid(w, r, &p); err != nil {
		return err
	}

	if err := a.identity.Resend(r.Context(), p.UserID); err != nil {
		return err
	}

	respondOK(w, "Activation email sent", nil)
	return nil
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var p loginPayload
	if err := a.decodeValid(w, r, &p); err != nil {
		return err
	}

	token, err := a.identity.Login(r.Context(), services.LoginRequest{UserName: p.UserName, Password: p.Password})
	if err != nil {
		return err
	}

	respondOK(w, "Login successful", loginData{Token: token})
	return nil
}
