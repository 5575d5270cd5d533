package solver

import (
	"context"
	"math"
	"time"
)

const intTol = 1e-6

// Adapter is the stable solve contract consumed by the optimization pipeline.
// Implementations must be deterministic given identical input and options,
// and must classify every outcome into exactly one Status.
type Adapter interface {
	Solve(ctx context.Context, m *Model, opts Options) *Solution
}

// MILP solves mixed-integer linear programs by branch and bound over the
// binary variables, with LP relaxations solved by the simplex method.
type MILP struct{}

// NewMILP returns the default MILP adapter.
func NewMILP() *MILP {
	return &MILP{}
}

type bbNode struct {
	fixings []fixing
	bound   float64
}

// Solve runs branch and bound on m. It never blocks past the time limit: the
// search is abandoned at the deadline and the incumbent, if any, is returned
// as Suboptimal.
func (s *MILP) Solve(ctx context.Context, m *Model, opts Options) *Solution {
	opts = opts.withDefaults()

	deadline := time.Now().Add(opts.TimeLimit)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	stack := []bbNode{{bound: math.Inf(-1)}}

	var (
		incumbent []float64
		incObj    = math.Inf(1)
		nodes     int
		outOfTime bool
	)

	for len(stack) > 0 {
		if ctx.Err() != nil || time.Now().After(deadline) {
			outOfTime = true
			break
		}
		nodes++
		if nodes > opts.NodeLimit {
			outOfTime = true
			break
		}

		// Depth first; the zero branch is pushed last so it is explored first.
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.bound >= incObj-1e-9 {
			continue
		}

		obj, x, err := solveRelaxation(m, node.fixings)
		if err == errRelaxInfeasible {
			continue
		}
		if err != nil {
			return &Solution{Status: StatusError, Err: err}
		}
		if obj >= incObj-1e-9 {
			continue
		}

		branch := mostFractional(m, x)
		if branch < 0 {
			// Integral on all binaries: new incumbent.
			incumbent = snap(m, x)
			incObj = obj
			continue
		}

		one := append(append([]fixing{}, node.fixings...), fixing{v: branch, val: 1})
		zero := append(append([]fixing{}, node.fixings...), fixing{v: branch, val: 0})
		stack = append(stack, bbNode{fixings: one, bound: obj})
		stack = append(stack, bbNode{fixings: zero, bound: obj})
	}

	if incumbent == nil {
		if outOfTime {
			return &Solution{Status: StatusTimedOut}
		}
		return &Solution{Status: StatusInfeasible}
	}

	if !outOfTime {
		// Search tree exhausted: the incumbent is proven optimal.
		return &Solution{Status: StatusOptimal, Objective: incObj, Values: incumbent}
	}

	gap := remainingGap(stack, incObj)
	status := StatusSuboptimal
	if gap <= opts.GapTolerance {
		status = StatusOptimal
	}
	return &Solution{Status: status, Objective: incObj, Values: incumbent, Gap: gap}
}

// mostFractional returns the binary variable farthest from integrality, ties
// broken by lowest index, or -1 when the point is integral on all binaries.
func mostFractional(m *Model, x []float64) VarID {
	best := VarID(-1)
	bestDist := intTol
	for i, v := range m.Vars {
		if v.Type != Binary {
			continue
		}
		frac := x[i] - math.Floor(x[i])
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best = VarID(i)
			bestDist = dist
		}
	}
	return best
}

// snap rounds binary entries to exact integers before the solution leaves the
// solver.
func snap(m *Model, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for i, v := range m.Vars {
		if v.Type == Binary {
			out[i] = math.Round(out[i])
		}
	}
	return out
}

// remainingGap reports the relative gap between the incumbent and the best
// bound among unexplored nodes.
func remainingGap(open []bbNode, incObj float64) float64 {
	bound := math.Inf(1)
	for _, n := range open {
		if n.bound < bound {
			bound = n.bound
		}
	}
	if math.IsInf(bound, 1) {
		return 0
	}
	if math.IsInf(bound, -1) {
		return math.Inf(1)
	}
	return (incObj - bound) / math.Max(1, math.Abs(incObj))
}
