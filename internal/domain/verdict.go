package domain

import "time"

type Anomaly string

const (
	AnomalyYes Anomaly = "Yes"
	AnomalyNo  Anomaly = "No"
)

// Outcome says which branch of the per-account pipeline produced a verdict.
type Outcome string

const (
	OutcomeModeled             Outcome = "MODELED"
	OutcomeConstant            Outcome = "CONSTANT"
	OutcomeInsufficientHistory Outcome = "INSUFFICIENT_HISTORY"
	OutcomeDataQuality         Outcome = "DATA_QUALITY"
	OutcomeFitFailure          Outcome = "FIT_FAILURE"
)

const (
	CommentInsufficientHistory = "insufficient history to model."
	CommentConstant            = "balance difference constant; no anomaly possible."
	CommentAnomalous           = "anomalous transaction(s) detected."
	CommentNoAnomaly           = "no anomalous transactions detected."
	CommentDataQuality         = "data quality failure; could not be modeled."
)

// Verdict is one row of the output table.
type Verdict struct {
	Account           int64     `json:"account"`
	Anomaly           Anomaly   `json:"anomaly"`
	Comment           string    `json:"comments"`
	Outcome           Outcome   `json:"outcome"`
	RecordCount       int       `json:"record_count"`
	AnomalousRecords  int       `json:"anomalous_records"`
	MostAnomalousDate string    `json:"most_anomalous_date,omitempty"`
	MaxBreakUSD       float64   `json:"max_break_usd"`
	RunID             string    `json:"run_id"`
	EvaluatedAt       time.Time `json:"evaluated_at"`
}

// ScoredRecord is a Record with its per-record anomaly result. Score is the
// detector's decision value; lower means more anomalous. Unmodeled accounts
// carry a zero score and label No.
type ScoredRecord struct {
	Record
	Score float64 `json:"anomaly_score"`
	Label Anomaly `json:"anomaly"`
}

// Run summarises one execution of the detection pipeline.
type Run struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	Accounts          int        `json:"accounts"`
	AnomalousAccounts int        `json:"anomalous_accounts"`
	Failures          int        `json:"failures"`
}
