package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wakala/glrecon/internal/domain"
)

// RecordWriter is the part of the Record Store ingestion needs.
type RecordWriter interface {
	ImportExistsByHash(ctx context.Context, hash string) (bool, error)
	SaveImport(ctx context.Context, importID, source, hash string, records []domain.Record, issues []domain.RowIssue) (int, error)
}

// Detector re-runs anomaly detection after new records land.
type Detector interface {
	Run(ctx context.Context) (*domain.Run, []domain.Verdict, error)
}

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	ImportID          string `json:"import_id"`
	RecordsIngested   int    `json:"records_ingested"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	RowIssues         int    `json:"row_issues"`
	RowsSkipped       int    `json:"rows_skipped"`
	RunID             string `json:"run_id,omitempty"`
	AnomalousAccounts int    `json:"anomalous_accounts"`
}

// Service loads input tables into the Record Store.
type Service struct {
	records  RecordWriter
	detector Detector
	log      zerolog.Logger
}

// NewService creates an ingestion service. detector may be nil, in which case
// no detection run follows an import.
func NewService(records RecordWriter, detector Detector, log zerolog.Logger) *Service {
	return &Service{records: records, detector: detector, log: log}
}

// IngestCSV parses an input table and stores it. The same file is only ever
// loaded once.
func (s *Service) IngestCSV(ctx context.Context, data []byte, source string) (*IngestResult, error) {
	// Idempotency check via file hash.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.records.ImportExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &IngestResult{ImportID: "already-ingested"}, nil
	}

	parsed, err := ParseRecordsCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	for _, is := range parsed.Inconsistent {
		s.log.Warn().Int64("account", is.Account).Int("line", is.Line).Msg(is.Reason)
	}
	if parsed.Skipped > 0 {
		s.log.Warn().Int("rows", parsed.Skipped).Msg("rows without a parseable account were skipped")
	}

	importID := uuid.New().String()
	inserted, err := s.records.SaveImport(ctx, importID, source, hash, parsed.Records, parsed.Issues)
	if err != nil {
		return nil, fmt.Errorf("save import: %w", err)
	}

	s.log.Info().
		Str("import_id", importID).
		Str("source", source).
		Int("records", len(parsed.Records)).
		Int("new", inserted).
		Int("issues", len(parsed.Issues)).
		Msg("input table ingested")

	result := &IngestResult{
		ImportID:          importID,
		RecordsIngested:   inserted,
		DuplicatesSkipped: len(parsed.Records) - inserted,
		RowIssues:         len(parsed.Issues),
		RowsSkipped:       parsed.Skipped,
	}

	if s.detector != nil {
		run, _, err := s.detector.Run(ctx)
		if err != nil {
			// Do not fail ingestion if detection has issues.
			s.log.Warn().Err(err).Msg("detection after ingest failed")
		} else {
			result.RunID = run.ID
			result.AnomalousAccounts = run.AnomalousAccounts
		}
	}

	return result, nil
}
