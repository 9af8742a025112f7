package anomaly

import (
	"fmt"

	"github.com/wakala/glrecon/internal/domain"
)

// historyWithDiffs builds one record per difference on consecutive days of
// January 2024, holding every other field constant.
func historyWithDiffs(account int64, diffs ...float64) []domain.Record {
	out := make([]domain.Record, len(diffs))
	for i, d := range diffs {
		out[i] = domain.Record{
			AsOfDate:          fmt.Sprintf("2024-01-%02d", i+1),
			Company:           12,
			Account:           account,
			UnitCode:          4455,
			Currency:          "USD",
			PrimaryAccount:    "all other loans",
			SecondaryAccount:  "principal",
			GLBalance:         15000,
			SubLedgerBalance:  15000 - d,
			BalanceDifference: d,
			MatchStatus:       domain.ClassifyMatch(d),
		}
	}
	return out
}
