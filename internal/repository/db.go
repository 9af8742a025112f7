package repository

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database; the
// pool is then pinned to a single connection so every caller sees one store.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL lets detection workers read histories concurrently.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS imports (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			issue_count INTEGER NOT NULL,
			imported_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asofdt TEXT NOT NULL,
			company INTEGER NOT NULL,
			account INTEGER NOT NULL,
			au INTEGER NOT NULL,
			currency TEXT NOT NULL,
			primary_account TEXT NOT NULL,
			secondary_account TEXT NOT NULL,
			gl_balance REAL NOT NULL,
			ihub_balance REAL NOT NULL,
			balance_difference REAL NOT NULL,
			match_status TEXT NOT NULL,
			comments TEXT NOT NULL DEFAULT '',
			UNIQUE (account, asofdt)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_account ON records(account, asofdt)`,
		`CREATE INDEX IF NOT EXISTS idx_records_company ON records(company)`,

		`CREATE TABLE IF NOT EXISTS record_issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			import_id TEXT NOT NULL,
			account INTEGER NOT NULL,
			line INTEGER NOT NULL,
			reason TEXT NOT NULL,
			FOREIGN KEY (import_id) REFERENCES imports(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_record_issues_account ON record_issues(account)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			accounts INTEGER NOT NULL DEFAULT 0,
			anomalous_accounts INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS verdicts (
			account INTEGER PRIMARY KEY,
			anomaly TEXT NOT NULL,
			comments TEXT NOT NULL,
			outcome TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			anomalous_records INTEGER NOT NULL,
			most_anomalous_date TEXT,
			max_break_usd REAL NOT NULL,
			run_id TEXT NOT NULL,
			evaluated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_anomaly ON verdicts(anomaly)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_outcome ON verdicts(outcome)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}

	return nil
}

func firstLine(stmt string) string {
	for i, c := range stmt {
		if c == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
