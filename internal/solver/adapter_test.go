package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveContinuous(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *Model
		validate func(t *testing.T, sol *Solution)
	}{
		{
			name: "simple minimization",
			build: func() *Model {
				m := NewModel()
				x := m.AddVar("x", Inf())
				y := m.AddVar("y", Inf())
				m.AddConstraint("demand", []Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, GE, 4)
				m.SetObjectiveCoef(x, 2)
				m.SetObjectiveCoef(y, 3)
				return m
			},
			validate: func(t *testing.T, sol *Solution) {
				require.Equal(t, StatusOptimal, sol.Status)
				assert.InDelta(t, 8.0, sol.Objective, 1e-6)
				assert.InDelta(t, 4.0, sol.Value(0), 1e-6)
				assert.InDelta(t, 0.0, sol.Value(1), 1e-6)
			},
		},
		{
			name: "equality with upper bound",
			build: func() *Model {
				m := NewModel()
				x := m.AddVar("x", 2)
				y := m.AddVar("y", Inf())
				m.AddConstraint("total", []Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, EQ, 5)
				m.SetObjectiveCoef(x, 1)
				m.SetObjectiveCoef(y, 2)
				return m
			},
			validate: func(t *testing.T, sol *Solution) {
				require.Equal(t, StatusOptimal, sol.Status)
				assert.InDelta(t, 8.0, sol.Objective, 1e-6)
				assert.InDelta(t, 2.0, sol.Value(0), 1e-6)
				assert.InDelta(t, 3.0, sol.Value(1), 1e-6)
			},
		},
		{
			name: "infeasible bounds",
			build: func() *Model {
				m := NewModel()
				x := m.AddVar("x", 1)
				m.AddConstraint("floor", []Term{{Var: x, Coef: 1}}, GE, 2)
				m.SetObjectiveCoef(x, 1)
				return m
			},
			validate: func(t *testing.T, sol *Solution) {
				assert.Equal(t, StatusInfeasible, sol.Status)
				assert.Empty(t, sol.Values)
			},
		},
	}

	adapter := NewMILP()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol := adapter.Solve(context.Background(), tt.build(), Options{})
			tt.validate(t, sol)
		})
	}
}

func TestSolveBinaryLinking(t *testing.T) {
	// Ordering a positive quantity forces its indicator on, so the fixed
	// cost is paid exactly once.
	m := NewModel()
	x := m.AddVar("qty", Inf())
	y := m.AddBinary("placed")
	m.AddConstraint("min_qty", []Term{{Var: x, Coef: 1}}, GE, 3)
	m.AddConstraint("link", []Term{{Var: x, Coef: 1}, {Var: y, Coef: -10}}, LE, 0)
	m.SetObjectiveCoef(x, 1)
	m.SetObjectiveCoef(y, 10)

	sol := NewMILP().Solve(context.Background(), m, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 13.0, sol.Objective, 1e-6)
	assert.InDelta(t, 3.0, sol.Value(x), 1e-6)
	assert.Equal(t, 1.0, sol.Value(y), "binary must be snapped to an exact integer")
}

func TestSolveBinaryChoice(t *testing.T) {
	m := NewModel()
	a := m.AddBinary("a")
	b := m.AddBinary("b")
	m.AddConstraint("cover", []Term{{Var: a, Coef: 1}, {Var: b, Coef: 1}}, GE, 1)
	m.SetObjectiveCoef(a, 2)
	m.SetObjectiveCoef(b, 3)

	sol := NewMILP().Solve(context.Background(), m, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 2.0, sol.Objective, 1e-6)
	assert.Equal(t, 1.0, sol.Value(a))
	assert.Equal(t, 0.0, sol.Value(b))
}

// fractionalModel has an LP relaxation whose optimum is fractional on the
// binary, so at least one branch is required to prove optimality.
func fractionalModel() *Model {
	m := NewModel()
	x := m.AddVar("x", 10)
	y := m.AddBinary("y")
	m.AddConstraint("floor", []Term{{Var: x, Coef: 1}}, GE, 2)
	m.AddConstraint("link", []Term{{Var: x, Coef: 1}, {Var: y, Coef: -4}}, LE, 0)
	m.SetObjectiveCoef(x, 0.1)
	m.SetObjectiveCoef(y, 1)
	return m
}

func TestSolveBranching(t *testing.T) {
	sol := NewMILP().Solve(context.Background(), fractionalModel(), Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	// y must be forced to 1 to admit any x >= 2.
	assert.Equal(t, 1.0, sol.Value(1))
	assert.InDelta(t, 1.2, sol.Objective, 1e-6)
}

func TestSolveNodeLimit(t *testing.T) {
	sol := NewMILP().Solve(context.Background(), fractionalModel(), Options{NodeLimit: 1})
	assert.Equal(t, StatusTimedOut, sol.Status, "one node is not enough to find an incumbent")
}

func TestSolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol := NewMILP().Solve(ctx, fractionalModel(), Options{})
	assert.Equal(t, StatusTimedOut, sol.Status)
}

func TestSolveDeterministic(t *testing.T) {
	adapter := NewMILP()
	opts := Options{TimeLimit: 5 * time.Second}

	first := adapter.Solve(context.Background(), fractionalModel(), opts)
	require.Equal(t, StatusOptimal, first.Status)
	for i := 0; i < 5; i++ {
		again := adapter.Solve(context.Background(), fractionalModel(), opts)
		require.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Values, again.Values, "identical models must yield identical solutions")
		assert.Equal(t, first.Objective, again.Objective)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "optimal", StatusOptimal.String())
	assert.Equal(t, "timed_out", StatusTimedOut.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
}
