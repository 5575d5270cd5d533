package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const simplexTol = 1e-10

// errRelaxInfeasible marks an infeasible LP relaxation inside branch and bound.
var errRelaxInfeasible = errors.New("lp relaxation infeasible")

// fixing pins one variable to a value for a branch-and-bound node.
type fixing struct {
	v   VarID
	val float64
}

// solveRelaxation solves the LP relaxation of m with binaries relaxed to
// [0,1] and the given extra fixings, using gonum's simplex method on the
// standard-form equivalent. The returned slice is indexed by VarID.
//
// Rows and columns are emitted in declaration order so the pivot sequence,
// and therefore the solution, is reproducible for identical models.
func solveRelaxation(m *Model, fixings []fixing) (float64, []float64, error) {
	n := len(m.Vars)
	if n == 0 {
		return 0, nil, fmt.Errorf("model has no variables")
	}

	type row struct {
		terms []Term
		sense Sense
		rhs   float64
	}

	rows := make([]row, 0, len(m.Cons)+n+len(fixings))
	for _, c := range m.Cons {
		rows = append(rows, row{terms: c.Terms, sense: c.Sense, rhs: c.RHS})
	}
	// Finite upper bounds (including the [0,1] relaxation of binaries)
	// become ordinary rows; lower bounds of zero are native to standard form.
	for i, v := range m.Vars {
		if !math.IsInf(v.Upper, 1) {
			rows = append(rows, row{
				terms: []Term{{Var: VarID(i), Coef: 1}},
				sense: LE,
				rhs:   v.Upper,
			})
		}
	}
	for _, f := range fixings {
		rows = append(rows, row{
			terms: []Term{{Var: f.v, Coef: 1}},
			sense: EQ,
			rhs:   f.val,
		})
	}

	slacks := 0
	for _, r := range rows {
		if r.sense != EQ {
			slacks++
		}
	}

	cols := n + slacks
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	c := make([]float64, cols)
	for _, t := range m.Objective {
		c[t.Var] += t.Coef
	}

	slack := n
	for i, r := range rows {
		for _, t := range r.terms {
			a.Set(i, int(t.Var), a.At(i, int(t.Var))+t.Coef)
		}
		switch r.sense {
		case LE:
			a.Set(i, slack, 1)
			slack++
		case GE:
			a.Set(i, slack, -1)
			slack++
		}
		b[i] = r.rhs
	}

	obj, x, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return 0, nil, errRelaxInfeasible
		}
		return 0, nil, fmt.Errorf("simplex: %w", err)
	}

	return obj, x[:n], nil
}
