package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var ErrInvalidQueryParam = errors.New("invalid query parameter")

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: statusCode})
}

// WriteUnavailable answers 503 and tells the client when to try again.
func WriteUnavailable(w http.ResponseWriter, message string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, message, http.StatusServiceUnavailable)
}

// ParsePage reads skip and limit from the query string. Missing values
// default to 0 and DefaultLimit; a limit above MaxLimit is clamped.
func ParsePage(r *http.Request) (skip, limit int, err error) {
	skip, limit = 0, DefaultLimit
	q := r.URL.Query()

	if v := q.Get("skip"); v != "" {
		skip, err = strconv.Atoi(v)
		if err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("%w: 'skip' must be a non-negative integer", ErrInvalidQueryParam)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: 'limit' must be a positive integer", ErrInvalidQueryParam)
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return skip, limit, nil
}
