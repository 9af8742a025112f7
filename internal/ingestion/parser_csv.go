package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wakala/glrecon/internal/currency"
	"github.com/wakala/glrecon/internal/domain"
)

// Input table columns. Header names are matched case-insensitively and
// underscores count as spaces, so "gl_balance" also matches.
const (
	colAsOfDate   = "asofdt"
	colCompany    = "company"
	colAccount    = "account"
	colUnit       = "au"
	colCurrency   = "currency"
	colPrimary    = "primary account"
	colSecondary  = "secondary account"
	colGLBalance  = "gl balance"
	colSubBalance = "ihub balance"
	colDifference = "balance difference"
	colStatus     = "match status"
	colComments   = "comments"
)

var requiredColumns = []string{
	colAsOfDate, colCompany, colAccount, colUnit, colCurrency, colPrimary,
	colSecondary, colGLBalance, colSubBalance, colDifference, colStatus,
}

// ParseResult is the outcome of parsing one input table.
type ParseResult struct {
	Records []domain.Record
	// Issues are rows attributable to an account that could not be loaded.
	Issues []domain.RowIssue
	// Inconsistent are loaded rows whose difference or match label disagrees
	// with the balances.
	Inconsistent []domain.RowIssue
	// Skipped counts rows without a parseable account number.
	Skipped int
}

// ParseRecordsCSV parses the reconciliation input table.
//
// Expected header (any order):
//
//	asofdt,company,account,au,currency,primary account,secondary account,gl balance,ihub balance,balance difference,match status,comments
func ParseRecordsCSV(data []byte) (*ParseResult, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	res := &ParseResult{}
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		account, err := strconv.ParseInt(get(colAccount), 10, 64)
		if err != nil {
			res.Skipped++
			continue
		}

		rec, err := parseRow(get, account)
		if err != nil {
			res.Issues = append(res.Issues, domain.RowIssue{Account: account, Line: lineNum, Reason: err.Error()})
			continue
		}
		if reason := inconsistency(get, rec); reason != "" {
			res.Inconsistent = append(res.Inconsistent, domain.RowIssue{Account: account, Line: lineNum, Reason: reason})
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func parseRow(get func(string) string, account int64) (domain.Record, error) {
	rec := domain.Record{
		AsOfDate:         get(colAsOfDate),
		Account:          account,
		Currency:         currency.Normalize(get(colCurrency)),
		PrimaryAccount:   get(colPrimary),
		SecondaryAccount: get(colSecondary),
		Comment:          get(colComments),
	}
	if rec.AsOfDate == "" {
		return rec, errors.New("missing as-of-date")
	}

	var err error
	if rec.Company, err = strconv.ParseInt(get(colCompany), 10, 64); err != nil {
		return rec, fmt.Errorf("company: %w", err)
	}
	if rec.UnitCode, err = strconv.ParseInt(get(colUnit), 10, 64); err != nil {
		return rec, fmt.Errorf("au: %w", err)
	}

	gl, err := decimal.NewFromString(get(colGLBalance))
	if err != nil {
		return rec, fmt.Errorf("gl balance: %w", err)
	}
	sub, err := decimal.NewFromString(get(colSubBalance))
	if err != nil {
		return rec, fmt.Errorf("ihub balance: %w", err)
	}
	diff, err := decimal.NewFromString(get(colDifference))
	if err != nil {
		return rec, fmt.Errorf("balance difference: %w", err)
	}
	rec.GLBalance = gl.InexactFloat64()
	rec.SubLedgerBalance = sub.InexactFloat64()
	rec.BalanceDifference = diff.InexactFloat64()

	switch strings.ToLower(get(colStatus)) {
	case "match":
		rec.MatchStatus = domain.MatchStatusMatch
	case "break":
		rec.MatchStatus = domain.MatchStatusBreak
	default:
		return rec, fmt.Errorf("match status: unknown value %q", get(colStatus))
	}
	return rec, nil
}

// inconsistency checks the record invariants on the exact decimal values.
func inconsistency(get func(string) string, rec domain.Record) string {
	gl := decimal.RequireFromString(get(colGLBalance))
	sub := decimal.RequireFromString(get(colSubBalance))
	diff := decimal.RequireFromString(get(colDifference))

	if !gl.Sub(sub).Equal(diff) {
		return fmt.Sprintf("balance difference %s != gl %s - ihub %s", diff, gl, sub)
	}
	want := domain.MatchStatusBreak
	if diff.Abs().LessThanOrEqual(decimal.NewFromFloat(domain.MatchTolerance)) {
		want = domain.MatchStatusMatch
	}
	if rec.MatchStatus != want {
		return fmt.Sprintf("match status %s but |difference| %s implies %s", rec.MatchStatus, diff.Abs(), want)
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, "_", " ")))
}
