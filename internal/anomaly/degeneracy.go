package anomaly

import (
	"gonum.org/v1/gonum/stat"

	"github.com/wakala/glrecon/internal/domain"
)

// Degeneracy is the result of the pre-fit gate.
type Degeneracy string

const (
	Modelable    Degeneracy = "MODELABLE"
	Constant     Degeneracy = "CONSTANT"
	NotModelable Degeneracy = "NOT_MODELABLE"
)

// Gate decides whether an account history carries enough signal to fit a
// model. It must run before any fit.
type Gate struct {
	MinHistory  int
	ConstantStd float64
}

// DefaultGate requires three records and a balance-difference standard
// deviation of at least one currency unit.
func DefaultGate() Gate {
	return Gate{MinHistory: 3, ConstantStd: domain.MatchTolerance}
}

// Check classifies history. The standard deviation is the sample (n-1) one.
func (g Gate) Check(history []domain.Record) (Degeneracy, float64) {
	if len(history) < g.MinHistory || len(history) < 2 {
		return NotModelable, 0
	}
	diffs := make([]float64, len(history))
	for i, r := range history {
		diffs[i] = r.BalanceDifference
	}
	std := stat.StdDev(diffs, nil)
	if std < g.ConstantStd {
		return Constant, std
	}
	return Modelable, std
}
