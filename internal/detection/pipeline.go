package detection

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wakala/glrecon/internal/anomaly"
	"github.com/wakala/glrecon/internal/domain"
	"github.com/wakala/glrecon/internal/features"
)

// Options configures the per-account chain.
type Options struct {
	Workers int
	Gate    anomaly.Gate
	Model   anomaly.Config
}

func DefaultOptions() Options {
	return Options{
		Workers: 4,
		Gate:    anomaly.DefaultGate(),
		Model:   anomaly.DefaultConfig(),
	}
}

// AccountResult is the outcome of one account's chain: its verdict and every
// record with its score and label.
type AccountResult struct {
	Verdict domain.Verdict
	Scored  []domain.ScoredRecord
}

// Pipeline runs Feature Builder, Degeneracy Check, fit, Scorer and Aggregator
// for a single account. It holds no per-account state and may be shared by
// workers.
type Pipeline struct {
	opts Options
	log  zerolog.Logger
}

func NewPipeline(opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{opts: opts, log: log}
}

// Evaluate produces the verdict for one account. It never fails: data-quality
// problems and fit failures become verdicts of their own.
func (p *Pipeline) Evaluate(account int64, history []domain.Record, issues []domain.RowIssue) AccountResult {
	history = append([]domain.Record(nil), history...)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].AsOfDate < history[j].AsOfDate
	})
	log := p.log.With().Int64("account", account).Int("records", len(history)).Logger()

	if len(issues) > 0 {
		log.Warn().Int("issues", len(issues)).Str("first", issues[0].Reason).
			Msg("account has rejected input rows")
		return unmodeled(account, history, domain.OutcomeDataQuality)
	}

	m, schema, err := features.Build(history)
	if err != nil {
		log.Warn().Err(err).Msg("feature building failed")
		return unmodeled(account, history, domain.OutcomeDataQuality)
	}

	deg, std := p.opts.Gate.Check(history)
	switch deg {
	case anomaly.NotModelable:
		log.Debug().Msg("insufficient history")
		return unmodeled(account, history, domain.OutcomeInsufficientHistory)
	case anomaly.Constant:
		log.Debug().Float64("std", std).Msg("constant balance difference")
		return unmodeled(account, history, domain.OutcomeConstant)
	}

	bundle, err := anomaly.Fit(m, schema, p.opts.Model)
	if err != nil {
		ev := log.Warn().Err(err)
		if errors.Is(err, anomaly.ErrInsufficientData) {
			ev = ev.Bool("insufficient_data", true)
		}
		ev.Msg("model fit failed, falling back to unmodeled verdict")
		return unmodeled(account, history, domain.OutcomeFitFailure)
	}

	scored, err := score(bundle, history)
	if err != nil {
		log.Warn().Err(err).Msg("scoring failed, falling back to unmodeled verdict")
		return unmodeled(account, history, domain.OutcomeFitFailure)
	}

	v := Aggregate(account, domain.OutcomeModeled, scored)
	log.Debug().Str("anomaly", string(v.Anomaly)).Int("anomalous_records", v.AnomalousRecords).
		Msg("account evaluated")
	return AccountResult{Verdict: v, Scored: scored}
}

// score re-encodes history with the vocabulary fitted into bundle, so column
// order always matches the fit.
func score(bundle *anomaly.Bundle, history []domain.Record) ([]domain.ScoredRecord, error) {
	m, err := bundle.Schema.Encode(history)
	if err != nil {
		return nil, err
	}
	results, err := bundle.Score(m)
	if err != nil {
		return nil, err
	}
	scored := make([]domain.ScoredRecord, len(history))
	for i, r := range results {
		label := domain.AnomalyNo
		if r.Outlier {
			label = domain.AnomalyYes
		}
		scored[i] = domain.ScoredRecord{Record: history[i], Score: r.Score, Label: label}
	}
	return scored, nil
}

// unmodeled labels every record No. This is the business default for accounts
// without a fitted model, not an inferred result.
func unmodeled(account int64, history []domain.Record, outcome domain.Outcome) AccountResult {
	scored := make([]domain.ScoredRecord, len(history))
	for i, r := range history {
		scored[i] = domain.ScoredRecord{Record: r, Label: domain.AnomalyNo}
	}
	return AccountResult{Verdict: Aggregate(account, outcome, scored), Scored: scored}
}
