package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/server/validation"
)

const (
	msgBadRequest     = "Bad Request"
	msgMalformedJSON  = "Malformed JSON body"
	msgNotFound       = "Resource not found"
	msgInternalServer = "Internal server error"
	msgUnauthorized   = "Unauthorized"
	msgValidation     = "Validation error"
)

// HTTPError is an error with a status code and the message shown to clients.
// The cause is logged, never sent.
type HTTPError struct {
	cause   error
	Code    int
	Message string
	Fields  []validation.FieldError
}

func (he *HTTPError) Error() string {
	return he.Message
}

func (he *HTTPError) Unwrap() error {
	return he.cause
}

func newHTTPError(code int, message string, cause error) *HTTPError {
	return &HTTPError{cause: cause, Code: code, Message: message}
}

func errBadRequest(message string, cause error) *HTTPError {
	if message == "" {
		message = msgBadRequest
	}
	return newHTTPError(http.StatusBadRequest, message, cause)
}

func errUnauthorized(message string, cause error) *HTTPError {
	if message == "" {
		message = msgUnauthorized
	}
	return newHTTPError(http.StatusUnauthorized, message, cause)
}

// toHTTPError maps domain errors to responses. Unknown errors become a 500
// with a fixed message.
func toHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		he := newHTTPError(http.StatusUnprocessableEntity, msgValidation, err)
		he.Fields = fields
		return he
	}

	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return newHTTPError(http.StatusUnprocessableEntity, msgValidation, err)
	case errors.Is(err, common.ErrAccountAlreadyExists):
		return newHTTPError(http.StatusConflict, common.ErrAccountAlreadyExists.Error(), err)
	case errors.Is(err, common.ErrInvalidToken):
		return newHTTPError(http.StatusBadRequest, "invalid or expired token", err)
	case errors.Is(err, common.ErrInvalidCredentials):
		return newHTTPError(http.StatusUnauthorized, "invalid username or password", err)
	case errors.Is(err, common.ErrTokenExpired):
		return newHTTPError(http.StatusUnauthorized, common.ErrTokenExpired.Error(), err)
	case errors.Is(err, common.ErrorNotFound):
		return newHTTPError(http.StatusNotFound, msgNotFound, err)
	default:
		return newHTTPError(http.StatusInternalServerError, msgInternalServer, err)
	}
}
