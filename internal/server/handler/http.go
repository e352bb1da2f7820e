package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Error kinds reported in the structured error payload.
const (
	KindValidation  = "validation"
	KindTimeout     = "timeout"
	KindBadPayload  = "bad_payload"
	KindInternal    = "internal"
	KindRateLimited = "rate_limited"
)

// ErrorMessage is the error payload every endpoint returns on failure.
type ErrorMessage struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func HttpError(w http.ResponseWriter, message string, kind string, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorMessage{Error: message, Kind: kind}); err != nil {
		logger.Error("Failed to encode error message", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
