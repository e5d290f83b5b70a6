package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitebatch/maintenance/internal/models"
	"github.com/sitebatch/maintenance/internal/service"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrEmailNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound), errors.Is(err, service.ErrBucketNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDefectLocked), errors.Is(err, models.ErrObjectExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrUserExists):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError answers with the error text, or with a generic message for
// unexpected errors, which are logged instead.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var errSingleRow = errors.New("expected a single row")
