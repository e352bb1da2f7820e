package router

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/logsift/logsift/internal/query"
	"github.com/logsift/logsift/internal/server/handler"
	"github.com/logsift/logsift/internal/server/middleware"
	"github.com/logsift/logsift/internal/stats"
	"go.uber.org/zap"
)

// CreateRouter wires every HTTP endpoint. The ingest routes sit behind the
// per-client rate limiter; read routes are unthrottled.
func CreateRouter(
	ctx context.Context,
	ingestor handler.Ingestor,
	queryService query.QueryService,
	statsService stats.StatsService,
	rateLimiter *middleware.ClientRateLimiter,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	ingest := r.PathPrefix("/api/logs/ingest").Subrouter()
	if rateLimiter != nil {
		ingest.Use(rateLimiter.Middleware)
	}
	ingest.Handle("", handler.IngestHandler(ctx, ingestor, logger)).Methods("POST")
	ingest.Handle("/batch", handler.IngestBatchHandler(ctx, ingestor, logger)).Methods("POST")

	r.Handle("/api/logs/query", handler.QueryHandler(ctx, queryService, logger)).Methods("POST")
	r.Handle("/api/logs/recent", handler.RecentHandler(ctx, queryService, logger)).Methods("GET")
	r.Handle("/api/templates", handler.TemplatesHandler(ctx, statsService, logger)).Methods("GET")
	r.Handle("/api/stats", handler.StatsHandler(ctx, statsService, logger)).Methods("GET")
	r.Handle("/api/files/{file_id}/stats", handler.FileStatsHandler(ctx, statsService, logger)).Methods("GET")
	r.Handle("/api/health", handler.HealthHandler(logger)).Methods("GET")

	return r
}
