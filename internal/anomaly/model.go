// Package anomaly fits and applies the per-account outlier model.
package anomaly

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wakala/glrecon/internal/features"
)

// ErrInsufficientData is returned when a feature matrix has too few distinct
// rows to fit a model.
var ErrInsufficientData = errors.New("insufficient data")

// MinDistinctRows is the smallest number of distinct feature rows Fit accepts.
const MinDistinctRows = 3

type Config struct {
	Trees      int
	MaxSamples int
	Seed       int64
}

func DefaultConfig() Config {
	return Config{Trees: 100, MaxSamples: 256, Seed: 0}
}

// Bundle is everything needed to score one account: the vocabulary and column
// order of its features, the scaler, and the forest. A bundle belongs to the
// account it was fitted on and is never reused for another.
type Bundle struct {
	Schema features.Schema
	Scaler *Scaler
	Forest *Forest
}

// Result is the per-record output of Score.
type Result struct {
	Score   float64
	Outlier bool
}

// Fit standardizes m and grows an isolation forest over it.
func Fit(m *features.Matrix, schema features.Schema, cfg Config) (*Bundle, error) {
	if n := distinctRows(m.Rows); n < MinDistinctRows {
		return nil, fmt.Errorf("%w: %d distinct rows, need %d", ErrInsufficientData, n, MinDistinctRows)
	}
	if w := schema.Width(); len(m.Rows[0]) != w {
		return nil, fmt.Errorf("fit: matrix has %d columns, schema expects %d", len(m.Rows[0]), w)
	}

	scaler, err := FitScaler(m.Rows)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	z, err := scaler.Transform(m.Rows)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	forest, err := FitForest(z, ForestConfig{Trees: cfg.Trees, MaxSamples: cfg.MaxSamples, Seed: cfg.Seed})
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	return &Bundle{Schema: schema, Scaler: scaler, Forest: forest}, nil
}

// Score applies the bundle to a matrix encoded with the bundle's schema.
// Lower scores are more anomalous; Outlier is set when the score is negative.
func (b *Bundle) Score(m *features.Matrix) ([]Result, error) {
	z, err := b.Scaler.Transform(m.Rows)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	decision := b.Forest.DecisionFunction(z)
	out := make([]Result, len(decision))
	for i, d := range decision {
		out[i] = Result{Score: d, Outlier: d < 0}
	}
	return out, nil
}

func distinctRows(rows [][]float64) int {
	seen := make(map[string]struct{}, len(rows))
	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for _, v := range row {
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			sb.WriteByte(',')
		}
		seen[sb.String()] = struct{}{}
	}
	return len(seen)
}
