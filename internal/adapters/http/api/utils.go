package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/wcs/internal/adapters/repository"
	service "github.com/okian/wcs/internal/app"
	"github.com/okian/wcs/internal/domain/leaderboard"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
	"github.com/okian/wcs/internal/domain/scoring"
	"github.com/okian/wcs/pkg/logger"
	"github.com/okian/wcs/pkg/metrics"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeFailureBody is sent when a response value cannot be encoded.
var encodeFailureBody = []byte(`{"code":"internal_error","message":"response could not be encoded"}` + "\n") //nolint:gochecknoglobals // constant body

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 instead of a success status with a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Named("api").Error(context.Background(), "response encoding failed",
			logger.Int("status", status),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("http", "encode_error")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailureBody)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeBody reads a single JSON document of at most maxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// writeServiceError maps upstream errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidActivity),
		errors.Is(err, model.ErrInvalidEmployee),
		errors.Is(err, scoring.ErrInvalidPatch),
		errors.Is(err, service.ErrInvalidConfig),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, leaderboard.ErrUnknownView),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, service.ErrBackpressure):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
