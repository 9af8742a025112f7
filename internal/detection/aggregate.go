package detection

import (
	"math"

	"github.com/wakala/glrecon/internal/currency"
	"github.com/wakala/glrecon/internal/domain"
)

// Aggregate reduces per-record labels to one account verdict. The account is
// anomalous iff at least one record is labeled Yes.
func Aggregate(account int64, outcome domain.Outcome, scored []domain.ScoredRecord) domain.Verdict {
	v := domain.Verdict{
		Account:     account,
		Anomaly:     domain.AnomalyNo,
		Outcome:     outcome,
		RecordCount: len(scored),
	}

	mostAnomalous := -1
	for i, s := range scored {
		if usd, err := currency.ToUSD(math.Abs(s.BalanceDifference), s.Currency); err == nil && usd > v.MaxBreakUSD {
			v.MaxBreakUSD = math.Round(usd*100) / 100
		}
		if s.Label != domain.AnomalyYes {
			continue
		}
		v.AnomalousRecords++
		if mostAnomalous < 0 || s.Score < scored[mostAnomalous].Score {
			mostAnomalous = i
		}
	}
	if v.AnomalousRecords > 0 {
		v.Anomaly = domain.AnomalyYes
		v.MostAnomalousDate = scored[mostAnomalous].AsOfDate
	}

	v.Comment = comment(outcome, v.Anomaly)
	return v
}

// comment picks the verdict explanation; the first matching rule wins.
func comment(outcome domain.Outcome, anomaly domain.Anomaly) string {
	switch {
	case outcome == domain.OutcomeDataQuality:
		return domain.CommentDataQuality
	case outcome == domain.OutcomeInsufficientHistory, outcome == domain.OutcomeFitFailure:
		return domain.CommentInsufficientHistory
	case outcome == domain.OutcomeConstant:
		return domain.CommentConstant
	case anomaly == domain.AnomalyYes:
		return domain.CommentAnomalous
	default:
		return domain.CommentNoAnomaly
	}
}
