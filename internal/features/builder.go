// Package features turns an account's reconciliation history into a numeric
// feature matrix.
package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wakala/glrecon/internal/domain"
)

// ErrDataQuality marks input that cannot be encoded, such as an unparseable
// as-of-date.
var ErrDataQuality = errors.New("data quality")

// NumericColumns are the leading columns of every feature row, in order.
var NumericColumns = []string{
	"company", "au", "gl balance", "ihub balance", "balance difference",
	"year", "month", "day",
}

// Schema is the per-account one-hot vocabulary. Each slice is sorted and holds
// only values seen when the schema was fitted; empty values get no column.
type Schema struct {
	Currencies        []string `json:"currencies"`
	PrimaryAccounts   []string `json:"primary_accounts"`
	SecondaryAccounts []string `json:"secondary_accounts"`
	MatchStatuses     []string `json:"match_statuses"`
}

// Matrix is a dense row-major feature matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// FitSchema collects the category vocabularies of an account history.
func FitSchema(history []domain.Record) Schema {
	var cur, prim, sec, match []string
	for _, r := range history {
		cur = append(cur, r.Currency)
		prim = append(prim, r.PrimaryAccount)
		sec = append(sec, r.SecondaryAccount)
		match = append(match, string(r.MatchStatus))
	}
	return Schema{
		Currencies:        vocabulary(cur),
		PrimaryAccounts:   vocabulary(prim),
		SecondaryAccounts: vocabulary(sec),
		MatchStatuses:     vocabulary(match),
	}
}

// Build fits a schema on history and encodes history with it.
func Build(history []domain.Record) (*Matrix, Schema, error) {
	s := FitSchema(history)
	m, err := s.Encode(history)
	if err != nil {
		return nil, Schema{}, err
	}
	return m, s, nil
}

// Columns returns the column names produced by Encode.
func (s Schema) Columns() []string {
	cols := append([]string(nil), NumericColumns...)
	cols = appendOneHot(cols, "currency", s.Currencies)
	cols = appendOneHot(cols, "primary account", s.PrimaryAccounts)
	cols = appendOneHot(cols, "secondary account", s.SecondaryAccounts)
	cols = appendOneHot(cols, "match status", s.MatchStatuses)
	return cols
}

// Width is the number of columns in an encoded row.
func (s Schema) Width() int {
	return len(NumericColumns) + len(s.Currencies) + len(s.PrimaryAccounts) +
		len(s.SecondaryAccounts) + len(s.MatchStatuses)
}

// Encode builds one feature row per record using this schema's vocabulary.
// Category values outside the vocabulary encode as all zeros.
func (s Schema) Encode(history []domain.Record) (*Matrix, error) {
	m := &Matrix{Columns: s.Columns(), Rows: make([][]float64, 0, len(history))}
	for i, r := range history {
		d, err := ParseAsOfDate(r.AsOfDate)
		if err != nil {
			return nil, fmt.Errorf("record %d of account %d: %w", i, r.Account, err)
		}

		row := make([]float64, 0, s.Width())
		row = append(row,
			float64(r.Company),
			float64(r.UnitCode),
			r.GLBalance,
			r.SubLedgerBalance,
			r.BalanceDifference,
			float64(d.Year()),
			float64(d.Month()),
			float64(d.Day()),
		)
		row = oneHot(row, s.Currencies, r.Currency)
		row = oneHot(row, s.PrimaryAccounts, r.PrimaryAccount)
		row = oneHot(row, s.SecondaryAccounts, r.SecondaryAccount)
		row = oneHot(row, s.MatchStatuses, string(r.MatchStatus))
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// ParseAsOfDate accepts ISO dates and RFC 3339 timestamps.
func ParseAsOfDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed as-of-date %q", ErrDataQuality, s)
	}
	return t, nil
}

func vocabulary(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func appendOneHot(cols []string, prefix string, vocab []string) []string {
	for _, v := range vocab {
		cols = append(cols, prefix+"_"+v)
	}
	return cols
}

func oneHot(row []float64, vocab []string, value string) []float64 {
	for _, v := range vocab {
		if v == value {
			row = append(row, 1)
		} else {
			row = append(row, 0)
		}
	}
	return row
}
