// Package solver wraps a mixed-integer linear programming backend behind a
// stable call contract. Models are built column-by-column in a fixed order so
// that identical inputs always produce identical solutions.
package solver

import (
	"fmt"
	"math"
	"time"
)

// VarID indexes a decision variable within a Model.
type VarID int

// VarType distinguishes continuous from binary columns.
type VarType int

const (
	Continuous VarType = iota
	Binary
)

// Sense is the relation of a linear constraint.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

// Var is a decision variable. All variables are bounded below by zero; Upper
// may be math.Inf(1).
type Var struct {
	Name  string
	Type  VarType
	Upper float64
}

// Term is a coefficient on a variable inside a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is a linear constraint sum(Terms) Sense RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a MILP in minimization form. Variable and constraint order is
// significant: it fixes the column/row ordering handed to the backend.
type Model struct {
	Vars      []Var
	Cons      []Constraint
	Objective []Term
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// AddVar appends a continuous variable with bounds [0, upper].
func (m *Model) AddVar(name string, upper float64) VarID {
	m.Vars = append(m.Vars, Var{Name: name, Type: Continuous, Upper: upper})
	return VarID(len(m.Vars) - 1)
}

// AddBinary appends a binary variable.
func (m *Model) AddBinary(name string) VarID {
	m.Vars = append(m.Vars, Var{Name: name, Type: Binary, Upper: 1})
	return VarID(len(m.Vars) - 1)
}

// AddConstraint appends a linear constraint.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	m.Cons = append(m.Cons, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// SetObjectiveCoef adds coef to the objective coefficient of v.
func (m *Model) SetObjectiveCoef(v VarID, coef float64) {
	m.Objective = append(m.Objective, Term{Var: v, Coef: coef})
}

// BinaryVars returns the IDs of all binary variables in declaration order.
func (m *Model) BinaryVars() []VarID {
	var ids []VarID
	for i, v := range m.Vars {
		if v.Type == Binary {
			ids = append(ids, VarID(i))
		}
	}
	return ids
}

// Status classifies a backend outcome. Every solve produces exactly one.
type Status int

const (
	StatusOptimal Status = iota
	StatusSuboptimal
	StatusInfeasible
	StatusTimedOut
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimedOut:
		return "timed_out"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Solution is the result of one solve. Values is indexed by VarID and is only
// populated for Optimal and Suboptimal statuses.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Gap       float64
	Err       error
}

// Value returns the solution value of v, or 0 when the solution is empty.
func (s *Solution) Value(v VarID) float64 {
	if s == nil || int(v) >= len(s.Values) {
		return 0
	}
	return s.Values[v]
}

// Options bound a single solve.
type Options struct {
	TimeLimit    time.Duration
	GapTolerance float64
	NodeLimit    int
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.TimeLimit <= 0 {
		o.TimeLimit = 30 * time.Second
	}
	if o.GapTolerance < 0 {
		o.GapTolerance = 0
	}
	if o.NodeLimit <= 0 {
		o.NodeLimit = 10000
	}
	return o
}

// Inf is a convenience for an unbounded upper bound.
func Inf() float64 { return math.Inf(1) }
