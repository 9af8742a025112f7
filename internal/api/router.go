package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wakala/glrecon/internal/detection"
	"github.com/wakala/glrecon/internal/ingestion"
	"github.com/wakala/glrecon/internal/logger"
	"github.com/wakala/glrecon/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	recordRepo *repository.RecordRepo,
	verdictRepo *repository.VerdictRepo,
	ingestionSvc *ingestion.Service,
	detectionSvc *detection.Service,
	log zerolog.Logger,
) http.Handler {
	h := &Handlers{
		recordRepo:   recordRepo,
		verdictRepo:  verdictRepo,
		ingestionSvc: ingestionSvc,
		detectionSvc: detectionSvc,
		log:          log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Input table.
		r.Post("/records/ingest", h.IngestRecords)
		r.Get("/records", h.ListRecords)
		r.Get("/accounts/{account}", h.GetAccount)

		// Detection.
		r.Post("/detection/run", h.RunDetection)

		// Output table.
		r.Get("/verdicts", h.ListVerdicts)
		r.Get("/verdicts/summary", h.GetVerdictSummary)
		r.Get("/verdicts/export.csv", h.ExportVerdictsCSV)
		r.Get("/verdicts/export.xlsx", h.ExportVerdictsXLSX)
	})

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			reqLog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
