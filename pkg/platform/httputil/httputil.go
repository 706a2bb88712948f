// Package httputil centralizes JSON encoding and domain error translation for
// HTTP handlers so every endpoint speaks the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	dErrors "rollcall/pkg/domain-errors"
)

var validate = validator.New()

// ErrorResponse is the JSON error envelope returned by all endpoints.
type ErrorResponse struct {
	Error       string `json:"error"`
	Reason      string `json:"reason,omitempty"`
	Description string `json:"error_description,omitempty"`
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into the JSON error envelope. Internal errors omit
// the description so storage details never leak to clients; the wire-stable
// reason is included whenever the error carries one.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: string(dErrors.CodeInternal)}

	if errors.As(err, &de) {
		status = ToHTTPStatus(de.Code)
		resp.Error = string(de.Code)
		resp.Reason = string(de.Reason)
		if de.Code != dErrors.CodeInternal {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// DecodeValid decodes a JSON request body into T and runs struct validation.
// Returns a bad_request domain error on malformed JSON or failed validation.
func DecodeValid[T any](r *http.Request) (T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return req, dErrors.Wrap(err, dErrors.CodeBadRequest, "request validation failed")
	}
	return req, nil
}
