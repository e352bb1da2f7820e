package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/logsift/logsift/internal/stats"
	"go.uber.org/zap"
)

// StatsHandler creates a handler for store-wide aggregate statistics.
// @Summary Get aggregate statistics over all stored entries.
// @Tags stats
// @Produce json
// @Success 200 {object} stats.StatsSnapshot "Aggregated statistics"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /api/stats [get]
func StatsHandler(
	ctx context.Context,
	statsService stats.StatsService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := statsService.Snapshot(ctx, nil)
		if err != nil {
			logger.Error("Error encountered when aggregating stats", zap.Error(err))
			HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusOK, snapshot, logger)
	}
}

// FileStatsHandler creates a handler for statistics scoped to one file.
// @Summary Get aggregate statistics for one ingested file.
// @Tags stats
// @Produce json
// @Param file_id path string true "The file identifier"
// @Success 200 {object} stats.StatsSnapshot "Aggregated statistics for the file"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /api/files/{file_id}/stats [get]
func FileStatsHandler(
	ctx context.Context,
	statsService stats.StatsService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileId := mux.Vars(r)["file_id"]
		if fileId == "" {
			HttpError(w, "file_id is required", KindValidation, http.StatusBadRequest, logger)
			return
		}

		snapshot, err := statsService.Snapshot(ctx, &fileId)
		if err != nil {
			logger.Error("Error encountered when aggregating file stats",
				zap.String("file_id", fileId),
				zap.Error(err),
			)
			HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusOK, snapshot, logger)
	}
}

// TemplatesHandler creates a handler listing mined templates.
// @Summary List mined message templates ordered by match count.
// @Tags stats
// @Produce json
// @Param limit query int false "Maximum number of templates"
// @Success 200 {array} model.Template "Templates ordered by count descending"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /api/templates [get]
func TemplatesHandler(
	ctx context.Context,
	statsService stats.StatsService,
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

		templates, err := statsService.Templates(ctx, limit)
		if err != nil {
			logger.Error("Error encountered when listing templates", zap.Error(err))
			HttpError(w, "Internal server error", KindInternal, http.StatusInternalServerError, logger)
			return
		}
		writeJSON(w, http.StatusOK, templates, logger)
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthHandler reports liveness.
// @Summary Health check.
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse "Service is up"
// @Router /api/health [get]
func HealthHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"}, logger)
	}
}
