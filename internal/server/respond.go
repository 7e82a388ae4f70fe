package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tabsync/tabsync/internal/auth"
	"github.com/tabsync/tabsync/internal/service"
	"github.com/tabsync/tabsync/internal/settlement"
	"github.com/tabsync/tabsync/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses. Anything unmapped
// is a 500.
func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, settlement.ErrNothingToSettle):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, service.ErrEventExists),
		errors.Is(err, settlement.ErrNoPaymentHandle),
		errors.Is(err, auth.ErrUsernameExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoActiveEvent),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrNoDebtors),
		errors.Is(err, service.ErrSelfOnlyDebtor),
		errors.Is(err, service.ErrDuplicateDebtor),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, auth.ErrWeakPassword),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
