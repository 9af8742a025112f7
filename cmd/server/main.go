package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/wakala/glrecon/internal/anomaly"
	"github.com/wakala/glrecon/internal/api"
	"github.com/wakala/glrecon/internal/config"
	"github.com/wakala/glrecon/internal/detection"
	"github.com/wakala/glrecon/internal/ingestion"
	"github.com/wakala/glrecon/internal/logger"
	"github.com/wakala/glrecon/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	log.Info().Str("path", cfg.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init DB")
	}
	defer db.Close()

	// Create repositories.
	recordRepo := repository.NewRecordRepo(db)
	verdictRepo := repository.NewVerdictRepo(db)

	// Create services.
	opts := detection.Options{
		Workers: cfg.Workers,
		Gate:    anomaly.Gate{MinHistory: cfg.MinHistory, ConstantStd: cfg.ConstantStd},
		Model:   anomaly.Config{Trees: cfg.Trees, MaxSamples: cfg.MaxSamples, Seed: cfg.Seed},
	}
	detectionSvc := detection.NewService(recordRepo, verdictRepo, opts, logger.Component(log, "detection"))
	ingestionSvc := ingestion.NewService(recordRepo, detectionSvc, logger.Component(log, "ingestion"))

	// Seed records if DB is empty.
	ctx := context.Background()
	count, err := recordRepo.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count records")
	}
	if count == 0 {
		log.Info().Msg("database is empty, seeding records from testdata")
		if err := seedRecords(ctx, ingestionSvc, log); err != nil {
			log.Warn().Err(err).Msg("failed to seed records")
		}
	} else {
		log.Info().Int("records", count).Msg("database already has records, skipping seed")
	}

	router := api.NewRouter(recordRepo, verdictRepo, ingestionSvc, detectionSvc, logger.Component(log, "api"))

	log.Info().Msgf("GL/sub-ledger balance anomaly service listening on http://localhost:%s", cfg.Port)
	log.Info().Msg("endpoints: POST /api/v1/records/ingest, GET /api/v1/records, GET /api/v1/accounts/{account}, " +
		"POST /api/v1/detection/run, GET /api/v1/verdicts, GET /api/v1/verdicts/summary, " +
		"GET /api/v1/verdicts/export.csv, GET /api/v1/verdicts/export.xlsx")

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func seedRecords(ctx context.Context, svc *ingestion.Service, log zerolog.Logger) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		filepath.Join("testdata", "historical_data.csv"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "historical_data.csv"),
			filepath.Join(dir, "..", "..", "testdata", "historical_data.csv"),
		)
	}

	var data []byte
	var loadErr error
	var source string
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			source = path
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find historical_data.csv in any candidate path: %w", loadErr)
	}

	res, err := svc.IngestCSV(ctx, data, source)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", source, err)
	}

	log.Info().Str("source", source).Int("records", res.RecordsIngested).Str("run_id", res.RunID).
		Msg("seeded records")
	return nil
}
