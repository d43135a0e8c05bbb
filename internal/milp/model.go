// Package milp provides a small declarative mixed-integer linear
// programming layer with pluggable solve backends. Callers build a
// Model out of variables, linear constraints and an objective, then
// hand it to a Solver.
package milp

// VarKind classifies a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
	Integer
)

// Var is a decision variable owned by a Model. Use the Model
// constructors; the zero value is not valid.
type Var struct {
	index int
	kind  VarKind
	lower float64
	upper float64
}

func (v *Var) Index() int     { return v.index }
func (v *Var) Kind() VarKind  { return v.kind }
func (v *Var) Lower() float64 { return v.lower }
func (v *Var) Upper() float64 { return v.upper }

// Sense is the relation of a linear constraint to its right-hand side.
type Sense int

const (
	Equal Sense = iota
	LessThanOrEqual
	GreaterThanOrEqual
)

// Term is one coefficient-variable product in a linear expression.
type Term struct {
	Coef float64
	Var  *Var
}

// Constraint is a linear constraint, sum(terms) sense rhs.
type Constraint struct {
	sense Sense
	rhs   float64
	terms []Term
}

// NewTerm appends coef*v to the constraint's left-hand side.
func (c *Constraint) NewTerm(coef float64, v *Var) {
	c.terms = append(c.terms, Term{Coef: coef, Var: v})
}

func (c *Constraint) Sense() Sense  { return c.sense }
func (c *Constraint) RHS() float64  { return c.rhs }
func (c *Constraint) Terms() []Term { return c.terms }

// Objective is the linear objective of a Model. Minimization is the
// default.
type Objective struct {
	maximize bool
	terms    []Term
}

func (o *Objective) SetMinimize()     { o.maximize = false }
func (o *Objective) SetMaximize()     { o.maximize = true }
func (o *Objective) IsMaximize() bool { return o.maximize }

// NewTerm appends coef*v to the objective.
func (o *Objective) NewTerm(coef float64, v *Var) {
	o.terms = append(o.terms, Term{Coef: coef, Var: v})
}

func (o *Objective) Terms() []Term { return o.terms }

// Model is a mixed-integer linear program under construction.
type Model struct {
	vars    []*Var
	constrs []*Constraint
	obj     Objective
}

func NewModel() *Model { return &Model{} }

// NewBool adds a binary variable.
func (m *Model) NewBool() *Var {
	return m.newVar(Binary, 0, 1)
}

// NewInt adds an integer variable bounded to [lower, upper].
func (m *Model) NewInt(lower, upper float64) *Var {
	return m.newVar(Integer, lower, upper)
}

// NewFloat adds a continuous variable bounded to [lower, upper].
func (m *Model) NewFloat(lower, upper float64) *Var {
	return m.newVar(Continuous, lower, upper)
}

func (m *Model) newVar(kind VarKind, lower, upper float64) *Var {
	v := &Var{index: len(m.vars), kind: kind, lower: lower, upper: upper}
	m.vars = append(m.vars, v)
	return v
}

// NewConstraint adds an empty constraint with the given sense and
// right-hand side; populate it with NewTerm.
func (m *Model) NewConstraint(sense Sense, rhs float64) *Constraint {
	c := &Constraint{sense: sense, rhs: rhs}
	m.constrs = append(m.constrs, c)
	return c
}

func (m *Model) Objective() *Objective { return &m.obj }

func (m *Model) Vars() []*Var { return m.vars }

func (m *Model) Constraints() []*Constraint { return m.constrs }

// NumVars reports how many variables the model declares.
func (m *Model) NumVars() int { return len(m.vars) }
