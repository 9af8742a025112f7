package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/glrecon/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func rec(account int64, date string, diff float64) domain.Record {
	return domain.Record{
		AsOfDate:          date,
		Company:           3,
		Account:           account,
		UnitCode:          1200,
		Currency:          "EUR",
		PrimaryAccount:    "all other loans",
		SecondaryAccount:  "principal",
		GLBalance:         10000,
		SubLedgerBalance:  10000 - diff,
		BalanceDifference: diff,
		MatchStatus:       domain.ClassifyMatch(diff),
	}
}

func TestRecordRepo_SaveImportAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepo(openTestDB(t))

	records := []domain.Record{
		rec(2000001, "2024-03-01", 5),
		rec(2000001, "2024-01-01", 0),
		rec(2000002, "2024-01-01", 0),
		rec(2000001, "2024-01-01", 99), // duplicate key
	}
	issues := []domain.RowIssue{{Account: 2000003, Line: 7, Reason: "bad gl balance"}}

	n, err := repo.SaveImport(ctx, "imp-1", "historical_data.csv", "hash-1", records, issues)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	exists, err := repo.ImportExistsByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.SaveImport(ctx, "imp-2", "again.csv", "hash-1", nil, nil)
	assert.Error(t, err, "file hash is unique")

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2000001, 2000002, 2000003}, accounts)

	hist, err := repo.History(ctx, 2000001)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2024-01-01", hist[0].AsOfDate)
	assert.Equal(t, 0.0, hist[0].BalanceDifference)
	assert.Equal(t, "2024-03-01", hist[1].AsOfDate)
	assert.Equal(t, domain.MatchStatusBreak, hist[1].MatchStatus)

	got, err := repo.Issues(ctx, 2000003)
	require.NoError(t, err)
	assert.Equal(t, issues, got)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecordRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := NewRecordRepo(openTestDB(t))

	var records []domain.Record
	for i, d := range []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01"} {
		records = append(records, rec(3000001, d, float64(i)))
	}
	records = append(records, rec(3000002, "2024-02-01", 0))
	_, err := repo.BulkInsert(ctx, records)
	require.NoError(t, err)

	got, total, err := repo.List(ctx, RecordFilter{Account: 3000001, From: "2024-02-01", To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-02-01", got[0].AsOfDate)

	got, total, err = repo.List(ctx, RecordFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, got, 2)
}

func TestVerdictRepo_ReplaceAllAndSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewVerdictRepo(openTestDB(t))
	now := time.Now()

	run := &domain.Run{ID: "run-1", StartedAt: now}
	require.NoError(t, repo.StartRun(ctx, run))

	first := []domain.Verdict{
		{Account: 1, Anomaly: domain.AnomalyNo, Comment: domain.CommentConstant, Outcome: domain.OutcomeConstant, RunID: "run-1", EvaluatedAt: now},
	}
	require.NoError(t, repo.ReplaceAll(ctx, first))

	second := []domain.Verdict{
		{Account: 7654321, Anomaly: domain.AnomalyYes, Comment: domain.CommentAnomalous, Outcome: domain.OutcomeModeled,
			RecordCount: 8, AnomalousRecords: 1, MostAnomalousDate: "2024-01-06", MaxBreakUSD: 5000, RunID: "run-1", EvaluatedAt: now},
		{Account: 1111111, Anomaly: domain.AnomalyNo, Comment: domain.CommentInsufficientHistory, Outcome: domain.OutcomeInsufficientHistory,
			RecordCount: 2, RunID: "run-1", EvaluatedAt: now},
	}
	require.NoError(t, repo.ReplaceAll(ctx, second))

	all, total, err := repo.List(ctx, VerdictFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1111111), all[0].Account)
	assert.Equal(t, "", all[0].MostAnomalousDate)

	v, err := repo.Get(ctx, 7654321)
	require.NoError(t, err)
	assert.Equal(t, domain.AnomalyYes, v.Anomaly)
	assert.Equal(t, "2024-01-06", v.MostAnomalousDate)

	_, err = repo.Get(ctx, 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	yes, total, err := repo.List(ctx, VerdictFilter{Anomaly: "Yes"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, yes, 1)

	finished := now.Add(time.Second)
	run.FinishedAt = &finished
	run.Accounts = 2
	run.AnomalousAccounts = 1
	require.NoError(t, repo.FinishRun(ctx, run))

	s, err := repo.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalAccounts)
	assert.Equal(t, 1, s.AnomalousAccounts)
	assert.Equal(t, 1, s.ByOutcome["MODELED"])
	assert.Equal(t, 5000.0, s.MaxBreakUSD)
	require.NotNil(t, s.LastRun)
	assert.Equal(t, "run-1", s.LastRun.ID)
	assert.Equal(t, 2, s.LastRun.Accounts)
	assert.NotNil(t, s.LastRun.FinishedAt)
}

func TestVerdictRepo_LatestRunEmpty(t *testing.T) {
	_, err := NewVerdictRepo(openTestDB(t)).LatestRun(context.Background())
	assert.True(t, errors.Is(err, ErrNotFound))
}
