package milp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nextmv-io/sdk/mip"
)

// highsSolver translates the Model into a nextmv mip model and solves
// it with the HiGHS provider. Preferred in production; the builtin
// backend stays the default so tests run hermetically.
type highsSolver struct{}

func (highsSolver) Name() string { return "highs" }

func (highsSolver) Solve(ctx context.Context, m *Model, opts Options) (Result, error) {
	hm := mip.NewModel()
	vars := make([]mip.Var, m.NumVars())
	for i, v := range m.Vars() {
		switch v.Kind() {
		case Binary:
			vars[i] = hm.NewBool()
		case Integer:
			if math.IsInf(v.Lower(), 0) || math.IsInf(v.Upper(), 0) {
				return Result{}, fmt.Errorf("milp: integer variable %d requires finite bounds", i)
			}
			vars[i] = hm.NewInt(int64(v.Lower()), int64(v.Upper()))
		default:
			vars[i] = hm.NewFloat(v.Lower(), v.Upper())
		}
	}
	obj := hm.Objective()
	if m.Objective().IsMaximize() {
		obj.SetMaximize()
	} else {
		obj.SetMinimize()
	}
	for _, t := range m.Objective().Terms() {
		obj.NewTerm(t.Coef, vars[t.Var.Index()])
	}
	for _, c := range m.Constraints() {
		var sense mip.Sense
		switch c.Sense() {
		case Equal:
			sense = mip.Equal
		case LessThanOrEqual:
			sense = mip.LessThanOrEqual
		default:
			sense = mip.GreaterThanOrEqual
		}
		hc := hm.NewConstraint(sense, c.RHS())
		for _, t := range c.Terms() {
			hc.NewTerm(t.Coef, vars[t.Var.Index()])
		}
	}

	solver, err := mip.NewSolver("highs", hm)
	if err != nil {
		return Result{}, fmt.Errorf("milp: highs init: %w", err)
	}
	solveOpts := mip.NewSolveOptions()
	solveOpts.SetVerbosity(mip.Off)
	if err := solveOpts.SetMIPGapRelative(0); err != nil {
		return Result{}, fmt.Errorf("milp: highs options: %w", err)
	}
	limit := opts.MaxDuration
	if d, ok := ctx.Deadline(); ok {
		if rem := time.Until(d); limit <= 0 || rem < limit {
			limit = rem
		}
	}
	if limit > 0 {
		if err := solveOpts.SetMaximumDuration(limit); err != nil {
			return Result{}, fmt.Errorf("milp: highs options: %w", err)
		}
	}

	solution, err := solver.Solve(solveOpts)
	if err != nil {
		return Result{}, fmt.Errorf("milp: highs solve: %w", err)
	}
	res := Result{Runtime: solution.RunTime()}
	switch {
	case solution.IsOptimal():
		res.Status = StatusOptimal
	case solution.HasValues():
		res.Status = StatusTimeLimit
	case limit > 0 && solution.RunTime() >= limit:
		res.Status = StatusTimeLimit
	default:
		res.Status = StatusInfeasible
	}
	if solution.HasValues() {
		res.Objective = solution.ObjectiveValue()
		res.Values = make([]float64, len(vars))
		for i, v := range vars {
			res.Values[i] = solution.Value(v)
		}
	}
	return res, nil
}
