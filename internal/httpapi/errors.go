package httpapi

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/feeledger/internal/errs"
	"github.com/tinoosan/feeledger/internal/lock"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "bad_request")
}

func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeServiceError maps domain errors to status codes. Conflict is checked
// before persistence because a stale fee version surfaces as both.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ub *errs.UnbalancedVoucherError
	switch {
	case errors.Is(err, errs.ErrInconsistent):
		s.log.Error("inconsistent state", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, err.Error(), "inconsistent_state")
	case errors.As(err, &ub):
		unprocessable(w, err.Error(), "unbalanced_voucher")
	case errors.Is(err, errs.ErrInvalid):
		unprocessable(w, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrPersistence),
		errors.Is(err, lock.ErrNotAcquired),
		errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("request failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusServiceUnavailable, err.Error(), "unavailable")
	default:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal_error")
	}
}
