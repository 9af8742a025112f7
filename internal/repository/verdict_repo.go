package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/glrecon/internal/domain"
)

const verdictColumns = `account, anomaly, comments, outcome, record_count, anomalous_records,
	most_anomalous_date, max_break_usd, run_id, evaluated_at`

// VerdictRepo holds the output table and the run log.
type VerdictRepo struct {
	db *sql.DB
}

func NewVerdictRepo(db *sql.DB) *VerdictRepo {
	return &VerdictRepo{db: db}
}

// ReplaceAll swaps the whole output table for the verdicts of one run.
func (r *VerdictRepo) ReplaceAll(ctx context.Context, verdicts []domain.Verdict) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM verdicts"); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO verdicts ("+verdictColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range verdicts {
		v := &verdicts[i]
		var date any
		if v.MostAnomalousDate != "" {
			date = v.MostAnomalousDate
		}
		if _, err := stmt.ExecContext(ctx,
			v.Account, string(v.Anomaly), v.Comment, string(v.Outcome), v.RecordCount,
			v.AnomalousRecords, date, v.MaxBreakUSD, v.RunID,
			v.EvaluatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert account %d: %w", v.Account, err)
		}
	}

	return tx.Commit()
}

func (r *VerdictRepo) Get(ctx context.Context, account int64) (*domain.Verdict, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+verdictColumns+" FROM verdicts WHERE account = ?", account)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	vs, err := scanVerdicts(rows)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, ErrNotFound
	}
	return &vs[0], nil
}

type VerdictFilter struct {
	Anomaly string
	Outcome string
	Page    int
	Limit   int
}

// List returns verdicts ordered by account. A zero Limit returns every row.
func (r *VerdictRepo) List(ctx context.Context, f VerdictFilter) ([]domain.Verdict, int, error) {
	var clauses []string
	var args []any
	if f.Anomaly != "" {
		clauses = append(clauses, "anomaly = ?")
		args = append(args, f.Anomaly)
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, f.Outcome)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verdicts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	q := "SELECT " + verdictColumns + " FROM verdicts" + where + " ORDER BY account"
	if f.Limit > 0 {
		if f.Page <= 0 {
			f.Page = 1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, (f.Page-1)*f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	vs, err := scanVerdicts(rows)
	return vs, total, err
}

type VerdictSummary struct {
	TotalAccounts     int            `json:"total_accounts"`
	AnomalousAccounts int            `json:"anomalous_accounts"`
	ByOutcome         map[string]int `json:"by_outcome"`
	MaxBreakUSD       float64        `json:"max_break_usd"`
	LastRun           *domain.Run    `json:"last_run,omitempty"`
}

func (r *VerdictRepo) GetSummary(ctx context.Context) (*VerdictSummary, error) {
	s := &VerdictSummary{ByOutcome: make(map[string]int)}

	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN anomaly = 'Yes' THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(max_break_usd), 0)
		FROM verdicts
	`).Scan(&s.TotalAccounts, &s.AnomalousAccounts, &s.MaxBreakUSD); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM verdicts GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByOutcome[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	run, err := r.LatestRun(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s.LastRun = run
	return s, nil
}

// StartRun records a run as in progress.
func (r *VerdictRepo) StartRun(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// FinishRun stores the totals of a completed run.
func (r *VerdictRepo) FinishRun(ctx context.Context, run *domain.Run) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, accounts = ?, anomalous_accounts = ?, failures = ?
		WHERE id = ?`,
		finished, run.Accounts, run.AnomalousAccounts, run.Failures, run.ID,
	)
	return err
}

func (r *VerdictRepo) LatestRun(ctx context.Context) (*domain.Run, error) {
	var run domain.Run
	var started string
	var finished sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, accounts, anomalous_accounts, failures
		FROM runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&run.ID, &started, &finished, &run.Accounts, &run.AnomalousAccounts, &run.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

// --- helpers ---

func scanVerdicts(rows *sql.Rows) ([]domain.Verdict, error) {
	var vs []domain.Verdict
	for rows.Next() {
		var v domain.Verdict
		var anomaly, outcome, evaluatedAt string
		var date sql.NullString

		err := rows.Scan(
			&v.Account, &anomaly, &v.Comment, &outcome, &v.RecordCount,
			&v.AnomalousRecords, &date, &v.MaxBreakUSD, &v.RunID, &evaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v.Anomaly = domain.Anomaly(anomaly)
		v.Outcome = domain.Outcome(outcome)
		v.EvaluatedAt, _ = time.Parse(time.RFC3339, evaluatedAt)
		if date.Valid {
			v.MostAnomalousDate = date.String
		}
		vs = append(vs, v)
	}
	return vs, rows.Err()
}
