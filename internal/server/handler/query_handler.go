package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/logsift/logsift/internal/query"
	"go.uber.org/zap"
)

// QueryHandler creates a handler for filtered, sorted, paginated log search.
// @Summary Search stored log entries.
// @Tags query
// @Accept json
// @Produce json
// @Param query body query.LogQueryRequest true "The optional search filters"
// @Success 200 {object} query.LogQueryResponse "Matching entries and total count"
// @Failure 400 {object} ErrorMessage "Invalid filter or pagination parameter"
// @Failure 504 {object} ErrorMessage "Query exceeded its time budget"
// @Router /api/logs/query [post]
func QueryHandler(
	ctx context.Context,
	queryService query.QueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeBody(r.Body, logger)

		var request query.LogQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			logger.Error("Error encountered when decoding request body", zap.Error(err))
			HttpError(w, "Invalid request payload", KindBadPayload, http.StatusBadRequest, logger)
			return
		}

		response, err := queryService.Query(ctx, request)
		if err != nil {
			writeQueryError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, response, logger)
	}
}

// RecentHandler creates a handler for the bounded live feed. Ordering is
// stable so pollers can deduplicate across requests.
// @Summary Get the most recent log entries.
// @Tags query
// @Produce json
// @Param limit query int false "Maximum number of entries"
// @Success 200 {array} model.LogEntry "Recent entries, newest first"
// @Router /api/logs/recent [get]
func RecentHandler(
	ctx context.Context,
	queryService query.QueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				HttpError(w, "limit must be an integer", KindValidation, http.StatusBadRequest, logger)
				return
			}
			limit = parsed
		}

		entries, err := queryService.Recent(ctx, limit)
		if err != nil {
			writeQueryError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entries, logger)
	}
}

func writeQueryError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validationErr *query.ValidationError
	var timeoutErr *query.TimeoutError
	switch {
	case errors.As(err, &validationErr):
		HttpError(w, validationErr.Error(), KindValidation, http.StatusBadRequest, logger)
	case errors.As(err, &timeoutErr):
		logger.Error("Query timed out", zap.Error(err))
		HttpError(w, "Query timed out", KindTimeout, http.StatusGatewayTimeout, logger)
	default:
		logger.Error("Error encountered when querying logs", zap.Error(err))
		HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
	}
}
