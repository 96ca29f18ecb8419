package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/gophaccount/internal/server/validation"
)

const (
	headerContentType   = "Content-Type"
	contentTypeJSONUTF8 = "application/json; charset=utf-8"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    any                     `json:"data"`
	Error   []validation.FieldError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set(headerContentType, contentTypeJSONUTF8)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error","data":null,"error":null}`))
		return
	}

	w.Header().Set(headerContentType, contentTypeJSONUTF8)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondOK(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, he *HTTPError) {
	respondJSON(w, he.Code, Envelope{Success: false, Message: he.Message, Error: he.Fields})
}
