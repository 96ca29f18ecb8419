package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// AppHandler is a handler that reports failure by returning an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// makeHandler adapts an AppHandler to http.HandlerFunc. Returned errors are
// logged and answered with the envelope; 5xx causes are logged at error level.
func (a *API) makeHandler(h AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		he := toHTTPError(err)
		ctx := r.Context()
		if he.Code >= http.StatusInternalServerError {
			a.log.Error(ctx, "request failed", "code", he.Code, "path", r.URL.Path, "method", r.Method, "error", err)
		} else {
			a.log.Debug(ctx, "client error response", "code", he.Code, "msg", he.Message, "path", r.URL.Path, "method", r.Method)
		}

		if ww, ok := w.(middleware.WrapResponseWriter); ok && ww.Status() != 0 {
			a.log.Warn(ctx, "handler returned error after writing response", "path", r.URL.Path, "error", err)
			return
		}

		respondError(w, he)
	}
}

// decodeJSON reads a single JSON object from r into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return newHTTPError(http.StatusRequestEntityTooLarge, "Request body too large", err)
		case errors.Is(err, io.EOF):
			return errBadRequest("Request body is empty", err)
		default:
			return errBadRequest(msgMalformedJSON, err)
		}
	}
	if dec.More() {
		return errBadRequest(msgMalformedJSON, fmt.Errorf("trailing data after JSON object"))
	}
	return nil
}
