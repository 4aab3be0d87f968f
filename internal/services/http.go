package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/metrics"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

// UserIDHeader carries the authenticated user id set by the gateway.
const UserIDHeader = "X-User-Id"

const maxBodyBytes = 40 << 20

// DecodeJSON reads a JSON body into v. Malformed bodies are ErrInvalidInput.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", ErrInvalidInput, err)
	}
	return nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response.", zap.Error(err))
	}
}

// WriteError writes err as an ErrorResponse. Internal errors are not echoed
// to the client.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed.", zap.Int("status", status), zap.Error(err))
		msg = http.StatusText(status)
	}
	WriteJSON(w, logger, status, models.ErrorResponse{Error: errorCode(err), Message: msg})
}

// ServeMetrics answers GET /metrics and reports whether it did.
func ServeMetrics(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet || r.URL.Path != metrics.Path {
		return false
	}
	metrics.Handler().ServeHTTP(w, r)
	return true
}
