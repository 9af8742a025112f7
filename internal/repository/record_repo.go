package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wakala/glrecon/internal/domain"
)

const recordColumns = `id, asofdt, company, account, au, currency, primary_account,
	secondary_account, gl_balance, ihub_balance, balance_difference, match_status, comments`

// RecordRepo is the read-mostly Record Store. It is safe for concurrent
// readers.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// ImportExistsByHash reports whether a file with this hash was already loaded.
func (r *RecordRepo) ImportExistsByHash(ctx context.Context, hash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM imports WHERE file_hash = ?", hash).Scan(&n)
	return n > 0, err
}

// SaveImport stores records and row issues of one input file atomically.
// Records duplicating an existing (account, as-of-date) key are skipped; the
// number actually inserted is returned.
func (r *RecordRepo) SaveImport(ctx context.Context, importID, source, hash string, records []domain.Record, issues []domain.RowIssue) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (id, source, file_hash, record_count, issue_count, imported_at)
		VALUES (?,?,?,?,?,?)`,
		importID, source, hash, len(records), len(issues), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}

	inserted, err := insertRecords(ctx, tx, records)
	if err != nil {
		return 0, err
	}

	if len(issues) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO record_issues (import_id, account, line, reason) VALUES (?,?,?,?)")
		if err != nil {
			return 0, fmt.Errorf("prepare issues: %w", err)
		}
		defer stmt.Close()
		for _, is := range issues {
			if _, err := stmt.ExecContext(ctx, importID, is.Account, is.Line, is.Reason); err != nil {
				return 0, fmt.Errorf("insert issue line %d: %w", is.Line, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// BulkInsert loads records outside of any import bookkeeping.
func (r *RecordRepo) BulkInsert(ctx context.Context, records []domain.Record) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertRecords(ctx, tx, records)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []domain.Record) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO records
		(asofdt, company, account, au, currency, primary_account, secondary_account,
		 gl_balance, ihub_balance, balance_difference, match_status, comments)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range records {
		rec := &records[i]
		res, err := stmt.ExecContext(ctx,
			rec.AsOfDate, rec.Company, rec.Account, rec.UnitCode, rec.Currency,
			rec.PrimaryAccount, rec.SecondaryAccount, rec.GLBalance, rec.SubLedgerBalance,
			rec.BalanceDifference, string(rec.MatchStatus), rec.Comment,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}
	return inserted, nil
}

func (r *RecordRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}

// ListAccounts returns every distinct account that has records or row
// issues, in ascending order.
func (r *RecordRepo) ListAccounts(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account FROM records
		UNION
		SELECT account FROM record_issues
		ORDER BY account
	`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var accounts []int64
	for rows.Next() {
		var a int64
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// History returns an account's records ordered by as-of-date.
func (r *RecordRepo) History(ctx context.Context, account int64) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE account = ? ORDER BY asofdt, id", account,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Issues returns the input rows of an account that could not be loaded.
func (r *RecordRepo) Issues(ctx context.Context, account int64) ([]domain.RowIssue, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT account, line, reason FROM record_issues WHERE account = ? ORDER BY line", account,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var issues []domain.RowIssue
	for rows.Next() {
		var is domain.RowIssue
		if err := rows.Scan(&is.Account, &is.Line, &is.Reason); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

type RecordFilter struct {
	Account  int64
	Company  *int64
	Currency string
	From     string
	To       string
	Page     int
	Limit    int
}

// List searches records. From and To compare against the as-of-date text.
func (r *RecordRepo) List(ctx context.Context, f RecordFilter) ([]domain.Record, int, error) {
	where, args := buildRecordWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + recordColumns + " FROM records" + where + " ORDER BY account, asofdt LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	return recs, total, err
}

// --- helpers ---

func buildRecordWhere(f RecordFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Account != 0 {
		clauses = append(clauses, "account = ?")
		args = append(args, f.Account)
	}
	if f.Company != nil {
		clauses = append(clauses, "company = ?")
		args = append(args, *f.Company)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.From != "" {
		clauses = append(clauses, "asofdt >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "asofdt <= ?")
		args = append(args, f.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var recs []domain.Record
	for rows.Next() {
		var rec domain.Record
		var status string
		err := rows.Scan(
			&rec.ID, &rec.AsOfDate, &rec.Company, &rec.Account, &rec.UnitCode,
			&rec.Currency, &rec.PrimaryAccount, &rec.SecondaryAccount,
			&rec.GLBalance, &rec.SubLedgerBalance, &rec.BalanceDifference,
			&status, &rec.Comment,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec.MatchStatus = domain.MatchStatus(status)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
