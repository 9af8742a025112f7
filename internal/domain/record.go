package domain

import "math"

type MatchStatus string

const (
	MatchStatusMatch MatchStatus = "Match"
	MatchStatusBreak MatchStatus = "Break"
)

// MatchTolerance is the currency-unit tolerance under which a GL/sub-ledger
// difference still counts as a match.
const MatchTolerance = 1.0

// Record is one reconciliation row keyed by (account, as-of-date). AsOfDate is
// kept as received so malformed dates surface at feature-building time.
type Record struct {
	ID                int64       `json:"id,omitempty"`
	AsOfDate          string      `json:"asofdt"`
	Company           int64       `json:"company"`
	Account           int64       `json:"account"`
	UnitCode          int64       `json:"au"`
	Currency          string      `json:"currency"`
	PrimaryAccount    string      `json:"primary_account"`
	SecondaryAccount  string      `json:"secondary_account"`
	GLBalance         float64     `json:"gl_balance"`
	SubLedgerBalance  float64     `json:"ihub_balance"`
	BalanceDifference float64     `json:"balance_difference"`
	MatchStatus       MatchStatus `json:"match_status"`
	Comment           string      `json:"comments"`
}

// ClassifyMatch applies the rule-based match/break label to a difference.
func ClassifyMatch(diff float64) MatchStatus {
	if math.Abs(diff) <= MatchTolerance {
		return MatchStatusMatch
	}
	return MatchStatusBreak
}

// RowIssue records an input row that belonged to an account but could not be
// turned into a Record.
type RowIssue struct {
	Account int64  `json:"account"`
	Line    int    `json:"line"`
	Reason  string `json:"reason"`
}
