// Package detection runs the per-account anomaly pipeline over the Record
// Store and writes the output table.
package detection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wakala/glrecon/internal/domain"
)

// RecordStore is the read-only input table.
type RecordStore interface {
	ListAccounts(ctx context.Context) ([]int64, error)
	History(ctx context.Context, account int64) ([]domain.Record, error)
	Issues(ctx context.Context, account int64) ([]domain.RowIssue, error)
}

// VerdictStore receives the output table and the run log.
type VerdictStore interface {
	StartRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
	ReplaceAll(ctx context.Context, verdicts []domain.Verdict) error
}

// Service fans accounts out to a bounded worker pool. Each task reads one
// account's history and produces only that account's verdict.
type Service struct {
	records  RecordStore
	verdicts VerdictStore
	pipeline *Pipeline
	workers  int
	log      zerolog.Logger
}

// NewService creates a detection service. verdicts may be nil when the caller
// only wants the returned table.
func NewService(records RecordStore, verdicts VerdictStore, opts Options, log zerolog.Logger) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		records:  records,
		verdicts: verdicts,
		pipeline: NewPipeline(opts, log),
		workers:  workers,
		log:      log,
	}
}

// Run evaluates every account in the store and returns the verdicts sorted by
// account. Store failures abort the run; per-account data problems do not.
func (s *Service) Run(ctx context.Context) (*domain.Run, []domain.Verdict, error) {
	run := &domain.Run{ID: uuid.New().String(), StartedAt: time.Now()}
	if s.verdicts != nil {
		if err := s.verdicts.StartRun(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("start run: %w", err)
		}
	}

	accounts, err := s.records.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}

	verdicts := make([]domain.Verdict, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			res, err := s.EvaluateAccount(gctx, account)
			if err != nil {
				return err
			}
			res.Verdict.RunID = run.ID
			verdicts[i] = res.Verdict
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].Account < verdicts[j].Account })

	for _, v := range verdicts {
		run.Accounts++
		if v.Anomaly == domain.AnomalyYes {
			run.AnomalousAccounts++
		}
		if v.Outcome == domain.OutcomeDataQuality || v.Outcome == domain.OutcomeFitFailure {
			run.Failures++
		}
	}
	finished := time.Now()
	run.FinishedAt = &finished

	if s.verdicts != nil {
		if err := s.verdicts.ReplaceAll(ctx, verdicts); err != nil {
			return nil, nil, fmt.Errorf("store verdicts: %w", err)
		}
		if err := s.verdicts.FinishRun(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("finish run: %w", err)
		}
	}

	s.log.Info().
		Str("run_id", run.ID).
		Int("accounts", run.Accounts).
		Int("anomalous", run.AnomalousAccounts).
		Int("failures", run.Failures).
		Dur("took", finished.Sub(run.StartedAt)).
		Msg("detection run complete")

	return run, verdicts, nil
}

// EvaluateAccount loads one account from the store and runs its chain.
func (s *Service) EvaluateAccount(ctx context.Context, account int64) (*AccountResult, error) {
	history, err := s.records.History(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("history of account %d: %w", account, err)
	}
	issues, err := s.records.Issues(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("issues of account %d: %w", account, err)
	}
	res := s.pipeline.Evaluate(account, history, issues)
	res.Verdict.EvaluatedAt = time.Now()
	return &res, nil
}
