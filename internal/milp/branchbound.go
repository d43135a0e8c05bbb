package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	intTol   = 1e-6
	boundTol = 1e-9
)

// branchBound is the built-in solver: depth-first branch and bound
// over simplex relaxations. It is fully deterministic for a given
// model, which makes repeated runs reproducible.
type branchBound struct{}

func (branchBound) Name() string { return "builtin" }

type bbNode struct {
	lower []float64
	upper []float64
}

func (branchBound) Solve(ctx context.Context, m *Model, opts Options) (Result, error) {
	start := time.Now()
	n := m.NumVars()
	if n == 0 {
		return Result{Status: StatusOptimal, Values: []float64{}, Runtime: time.Since(start)}, nil
	}
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, v := range m.vars {
		lower[i], upper[i] = v.lower, v.upper
	}
	var deadline time.Time
	if opts.MaxDuration > 0 {
		deadline = start.Add(opts.MaxDuration)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	bestObj := math.Inf(1) // minimize sense
	var bestX []float64
	limited := false
	unbounded := false
	nodes := 0

	stack := []bbNode{{lower: lower, upper: upper}}
	for len(stack) > 0 {
		if ctx.Err() != nil || (!deadline.IsZero() && !time.Now().Before(deadline)) {
			limited = true
			break
		}
		if opts.MaxNodes > 0 && nodes >= opts.MaxNodes {
			limited = true
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		obj, x, err := relaxation(m, node.lower, node.upper)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) {
				continue
			}
			if errors.Is(err, lp.ErrUnbounded) {
				unbounded = true
				break
			}
			return Result{}, fmt.Errorf("milp: relaxation failed: %w", err)
		}
		if obj >= bestObj-boundTol {
			continue
		}
		bv := mostFractional(m, x)
		if bv < 0 {
			snapped := snap(m, x)
			cand := minimizeSense(m, evalObjective(m, snapped))
			if cand < bestObj-boundTol {
				bestObj = cand
				bestX = snapped
			}
			continue
		}
		f := math.Floor(x[bv])
		up := bbNode{lower: cloneBounds(node.lower), upper: cloneBounds(node.upper)}
		up.lower[bv] = f + 1
		down := bbNode{lower: cloneBounds(node.lower), upper: cloneBounds(node.upper)}
		down.upper[bv] = f
		// Push up first so the floor branch is explored first.
		stack = append(stack, up, down)
	}

	res := Result{Runtime: time.Since(start), Nodes: nodes}
	switch {
	case unbounded:
		res.Status = StatusUnbounded
	case limited:
		res.Status = StatusTimeLimit
	case bestX != nil:
		res.Status = StatusOptimal
	default:
		res.Status = StatusInfeasible
	}
	if bestX != nil {
		res.Values = bestX
		res.Objective = bestObj
		if m.obj.maximize {
			res.Objective = -bestObj
		}
	}
	return res, nil
}

// mostFractional picks the integral variable whose relaxed value is
// closest to 0.5 away from an integer, breaking ties by lowest index.
// It returns -1 when the assignment is integer feasible.
func mostFractional(m *Model, x []float64) int {
	best := -1
	bestDist := intTol
	for i, v := range m.vars {
		if v.kind == Continuous {
			continue
		}
		frac := x[i] - math.Floor(x[i])
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// snap rounds integral variables to the nearest integer and leaves
// continuous ones untouched.
func snap(m *Model, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for i, v := range m.vars {
		if v.kind != Continuous {
			out[i] = math.Round(out[i])
		}
	}
	return out
}

// evalObjective computes the objective of x in the model's own sense.
func evalObjective(m *Model, x []float64) float64 {
	s := 0.0
	for _, t := range m.obj.terms {
		s += t.Coef * x[t.Var.index]
	}
	return s
}

func minimizeSense(m *Model, trueObj float64) float64 {
	if m.obj.maximize {
		return -trueObj
	}
	return trueObj
}

func cloneBounds(b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	return out
}
