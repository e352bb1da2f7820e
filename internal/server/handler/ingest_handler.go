package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

// Ingestor accepts already-structured entries pushed over HTTP. The pipeline
// implements it; handlers never talk to the store directly.
type Ingestor interface {
	Ingest(ctx context.Context, entries []model.LogEntry) error
}

type acceptedResponse struct {
	Accepted int `json:"accepted"`
}

// IngestHandler creates a handler for ingesting a single log entry.
// @Summary Ingest one structured log entry.
// @Tags ingest
// @Accept json
// @Produce json
// @Param entry body model.LogEntry true "The log entry"
// @Success 202 {object} acceptedResponse "Number of accepted entries"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /api/logs/ingest [post]
func IngestHandler(
	ctx context.Context,
	ingestor Ingestor,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)

		var entry model.LogEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			logger.Error("Error encountered when decoding request body", zap.Error(err))
			HttpError(w, "Invalid request payload", KindBadPayload, http.StatusBadRequest, logger)
			return
		}

		if err := ingestor.Ingest(ctx, []model.LogEntry{entry}); err != nil {
			logger.Error("Error encountered when ingesting log entry", zap.Error(err))
			HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: 1}, logger)
	}
}

// IngestBatchHandler creates a handler for ingesting a batch of log entries,
// sent either as a JSON array or as newline-delimited JSON objects.
// @Summary Ingest a batch of structured log entries.
// @Tags ingest
// @Accept json
// @Produce json
// @Success 202 {object} acceptedResponse "Number of accepted entries"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /api/logs/ingest/batch [post]
func IngestBatchHandler(
	ctx context.Context,
	ingestor Ingestor,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)

		entries, err := decodeBatch(r.Body)
		if err != nil {
			logger.Error("Error encountered when decoding batch body", zap.Error(err))
			HttpError(w, "Invalid request payload", KindBadPayload, http.StatusBadRequest, logger)
			return
		}
		if len(entries) == 0 {
			writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: 0}, logger)
			return
		}

		if err := ingestor.Ingest(ctx, entries); err != nil {
			logger.Error("Error encountered when ingesting batch", zap.Error(err))
			HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: len(entries)}, logger)
	}
}

// decodeBatch accepts either a JSON array or JSON-lines. The first non-space
// byte decides the format.
func decodeBatch(body io.Reader) ([]model.LogEntry, error) {
	reader := bufio.NewReader(body)
	first, err := firstNonSpace(reader)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if first == '[' {
		var entries []model.LogEntry
		if err := json.NewDecoder(reader).Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var entries []model.LogEntry
	decoder := json.NewDecoder(reader)
	for {
		var entry model.LogEntry
		if err := decoder.Decode(&entry); err == io.EOF {
			return entries, nil
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

func firstNonSpace(reader *bufio.Reader) (byte, error) {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			if err := reader.UnreadByte(); err != nil {
				return 0, err
			}
			return b, nil
		}
	}
}

func closeBody(body io.ReadCloser, logger *zap.Logger) {
	if err := body.Close(); err != nil {
		logger.Error("Error encountered when closing request body", zap.Error(err))
	}
}
