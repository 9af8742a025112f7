package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wakala/glrecon/internal/domain"
)

func scoredRec(date, currency string, diff, score float64, label domain.Anomaly) domain.ScoredRecord {
	return domain.ScoredRecord{
		Record: domain.Record{AsOfDate: date, Currency: currency, BalanceDifference: diff},
		Score:  score,
		Label:  label,
	}
}

func TestAggregate_AnyYesMakesAccountAnomalous(t *testing.T) {
	scored := []domain.ScoredRecord{
		scoredRec("2024-01-01", "USD", 10, 0.1, domain.AnomalyNo),
		scoredRec("2024-01-02", "USD", -400, -0.05, domain.AnomalyYes),
		scoredRec("2024-01-03", "USD", 900, -0.2, domain.AnomalyYes),
		scoredRec("2024-01-04", "USD", 12, 0.08, domain.AnomalyNo),
	}

	v := Aggregate(42, domain.OutcomeModeled, scored)
	assert.Equal(t, domain.AnomalyYes, v.Anomaly)
	assert.Equal(t, domain.CommentAnomalous, v.Comment)
	assert.Equal(t, 2, v.AnomalousRecords)
	assert.Equal(t, 4, v.RecordCount)
	assert.Equal(t, "2024-01-03", v.MostAnomalousDate)
	assert.Equal(t, 900.0, v.MaxBreakUSD)
}

func TestAggregate_ModeledNoneFlagged(t *testing.T) {
	scored := []domain.ScoredRecord{
		scoredRec("2024-01-01", "EUR", 46, 0.1, domain.AnomalyNo),
		scoredRec("2024-01-02", "XXX", 100000, 0.2, domain.AnomalyNo),
	}

	v := Aggregate(42, domain.OutcomeModeled, scored)
	assert.Equal(t, domain.AnomalyNo, v.Anomaly)
	assert.Equal(t, domain.CommentNoAnomaly, v.Comment)
	assert.Equal(t, "", v.MostAnomalousDate)
	assert.Equal(t, 50.0, v.MaxBreakUSD, "unknown currencies are skipped")
}

func TestComment_Priority(t *testing.T) {
	tests := []struct {
		outcome domain.Outcome
		anomaly domain.Anomaly
		want    string
	}{
		{domain.OutcomeInsufficientHistory, domain.AnomalyNo, domain.CommentInsufficientHistory},
		{domain.OutcomeFitFailure, domain.AnomalyNo, domain.CommentInsufficientHistory},
		{domain.OutcomeConstant, domain.AnomalyNo, domain.CommentConstant},
		{domain.OutcomeDataQuality, domain.AnomalyNo, domain.CommentDataQuality},
		{domain.OutcomeModeled, domain.AnomalyYes, domain.CommentAnomalous},
		{domain.OutcomeModeled, domain.AnomalyNo, domain.CommentNoAnomaly},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome)+"/"+string(tt.anomaly), func(t *testing.T) {
			assert.Equal(t, tt.want, comment(tt.outcome, tt.anomaly))
		})
	}
}
