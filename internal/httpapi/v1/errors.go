package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/bankledger/internal/errs"
)

// retryAfterSeconds is advertised on lock timeouts.
const retryAfterSeconds = "1"

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, string(errs.KindInvalid)) }
func unauthorized(w http.ResponseWriter)          { writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized") }
func forbidden(w http.ResponseWriter, msg string) { writeErr(w, http.StatusForbidden, msg, string(errs.KindForbidden)) }

// statusFor maps an error to its HTTP status and response code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	}
	kind := errs.KindOf(err)
	switch kind {
	case errs.KindInvalidAmount, errs.KindInvalidAccount, errs.KindAccountStatus, errs.KindInsufficientFunds:
		return http.StatusUnprocessableEntity, string(kind)
	case errs.KindLockTimeout:
		return http.StatusServiceUnavailable, string(kind)
	case errs.KindConflict:
		return http.StatusConflict, string(kind)
	case errs.KindNotFound:
		return http.StatusNotFound, string(kind)
	case errs.KindInvalid:
		return http.StatusBadRequest, string(kind)
	case errs.KindForbidden:
		return http.StatusForbidden, string(kind)
	}
	return http.StatusInternalServerError, string(errs.KindInternal)
}

// writeError renders a service error. Internal details never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		msg = "internal error"
	case http.StatusNotFound:
		msg = "not found"
	}
	if errs.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeErr(w, status, msg, code)
}
