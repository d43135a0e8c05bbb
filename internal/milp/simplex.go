package milp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// relaxation solves the LP relaxation of m with per-node variable
// bounds, returning the objective in minimize sense (negated when the
// model maximizes) and the assignment. Integrality is ignored; the
// caller branches on it.
//
// The problem is assembled in standard form, min c'x s.t. Ax = b,
// x >= 0, with one slack column per inequality row. Lower bounds must
// be non-negative; the branch-and-bound driver enforces that.
func relaxation(m *Model, lower, upper []float64) (float64, []float64, error) {
	n := m.NumVars()
	c := make([]float64, n)
	for _, t := range m.obj.terms {
		c[t.Var.index] += t.Coef
	}
	if m.obj.maximize {
		for i := range c {
			c[i] = -c[i]
		}
	}

	type row struct {
		coefs []float64
		rhs   float64
		slack float64 // 0 for equality rows
	}
	var rows []row
	addIneq := func(coefs []float64, rhs float64) {
		rows = append(rows, row{coefs: coefs, rhs: rhs, slack: 1})
	}
	for _, con := range m.constrs {
		coefs := make([]float64, n)
		for _, t := range con.terms {
			coefs[t.Var.index] += t.Coef
		}
		switch con.sense {
		case Equal:
			rows = append(rows, row{coefs: coefs, rhs: con.rhs})
		case LessThanOrEqual:
			addIneq(coefs, con.rhs)
		case GreaterThanOrEqual:
			neg := make([]float64, n)
			for i, v := range coefs {
				neg[i] = -v
			}
			addIneq(neg, -con.rhs)
		}
	}
	for i := 0; i < n; i++ {
		if lower[i] < 0 {
			return 0, nil, fmt.Errorf("milp: variable %d has negative lower bound %v", i, lower[i])
		}
		if lower[i] > upper[i] {
			return 0, nil, lp.ErrInfeasible
		}
		if !math.IsInf(upper[i], 1) {
			coefs := make([]float64, n)
			coefs[i] = 1
			addIneq(coefs, upper[i])
		}
		if lower[i] > 0 {
			coefs := make([]float64, n)
			coefs[i] = -1
			addIneq(coefs, -lower[i])
		}
	}

	if len(rows) == 0 {
		return separable(c, lower, upper)
	}

	slacks := 0
	for _, r := range rows {
		if r.slack != 0 {
			slacks++
		}
	}
	cols := n + slacks
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	cStd := make([]float64, cols)
	copy(cStd, c)
	si := n
	for ri, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1 // keep b non-negative for phase 1
		}
		for j, v := range r.coefs {
			if v != 0 {
				a.Set(ri, j, sign*v)
			}
		}
		if r.slack != 0 {
			a.Set(ri, si, sign*r.slack)
			si++
		}
		b[ri] = sign * r.rhs
	}

	optF, optX, err := lp.Simplex(cStd, a, b, 1e-10, nil)
	if err != nil {
		return 0, nil, err
	}
	x := make([]float64, n)
	copy(x, optX[:n])
	return optF, x, nil
}

// separable handles the degenerate case of a model with no constraint
// rows at all: each variable independently sits at whichever bound
// improves the minimize-sense objective.
func separable(c, lower, upper []float64) (float64, []float64, error) {
	x := make([]float64, len(c))
	obj := 0.0
	for i := range c {
		switch {
		case c[i] >= 0:
			x[i] = lower[i]
		case math.IsInf(upper[i], 1):
			return 0, nil, lp.ErrUnbounded
		default:
			x[i] = upper[i]
		}
		obj += c[i] * x[i]
	}
	return obj, x, nil
}
