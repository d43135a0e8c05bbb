package milp

import (
	"context"
	"fmt"
	"time"
)

// Status reports how a solve attempt ended.
type Status string

const (
	// StatusOptimal means the returned assignment is proven optimal.
	StatusOptimal Status = "optimal"
	// StatusTimeLimit means the solver hit its time or node budget.
	// Values holds the best incumbent found, if any.
	StatusTimeLimit Status = "time_limit"
	// StatusInfeasible means no assignment satisfies the constraints.
	StatusInfeasible Status = "infeasible"
	// StatusUnbounded means the objective can decrease without limit.
	StatusUnbounded Status = "unbounded"
)

// Result is the outcome of a Solve call. Values is indexed by variable
// index and is nil when no feasible assignment was found.
type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	Runtime   time.Duration
	Nodes     int
}

// HasValues reports whether the result carries a feasible assignment.
func (r Result) HasValues() bool { return r.Values != nil }

// Value returns the assignment for v. Call only when HasValues.
func (r Result) Value(v *Var) float64 { return r.Values[v.Index()] }

// Options bound a solve attempt. Zero values mean no limit.
type Options struct {
	MaxDuration time.Duration
	MaxNodes    int
}

// Solver solves a Model within the given limits. Implementations must
// honor ctx cancellation by returning early with StatusTimeLimit.
type Solver interface {
	Solve(ctx context.Context, m *Model, opts Options) (Result, error)
	Name() string
}

// New returns the solver for the named backend. The empty string
// selects the built-in branch-and-bound solver.
func New(backend string) (Solver, error) {
	switch backend {
	case "", "builtin":
		return branchBound{}, nil
	case "highs":
		return highsSolver{}, nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", backend)
	}
}
