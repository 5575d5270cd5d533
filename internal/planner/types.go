// Package planner drives the daily rolling-horizon re-optimization: it fans
// partitions out over a bounded worker pool, owns the repair ladder, and
// aggregates every partition into a terminal state before a cycle completes.
package planner

import (
	"context"
	"time"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/solver"
)

// PartitionState is the controller's per-partition state machine position.
type PartitionState string

const (
	StateBuilding   PartitionState = "building"
	StateSolving    PartitionState = "solving"
	StateExtracting PartitionState = "extracting"
	StateRepairing  PartitionState = "repairing"
	StatePersisted  PartitionState = "persisted"
	StateFailed     PartitionState = "failed"
)

// Repair ladder step names, applied in this order.
const (
	RepairRelaxShortage = "relax_shortage"
	RepairReduceSafety  = "reduce_safety_stock"
	RepairHeuristic     = "heuristic_fallback"
	RepairCarryOver     = "carry_over"
)

// Config holds the controller knobs for one cycle.
type Config struct {
	Horizon             int
	WorkerCount         int
	MaxPartitionItems   int
	FailureThreshold    float64
	TieBreakEpsilon     float64
	ShortageAllowance   float64
	RelaxedSafetyFactor float64
	Granularity         float64
	SolveOptions        solver.Options
}

// DefaultConfig returns controller defaults matching the config package.
func DefaultConfig() Config {
	return Config{
		Horizon:             14,
		WorkerCount:         4,
		MaxPartitionItems:   20,
		FailureThreshold:    0.2,
		TieBreakEpsilon:     1e-6,
		ShortageAllowance:   0,
		RelaxedSafetyFactor: 0,
		Granularity:         1,
	}
}

// PartitionResult is the terminal outcome of one partition in one cycle.
type PartitionResult struct {
	Key         string         `json:"key"`
	State       PartitionState `json:"state"`
	Status      string         `json:"status"`
	PolicyCount int            `json:"policy_count"`
	RepairSteps []string       `json:"repair_steps,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

// CycleReport aggregates a full cycle. Every partition appears exactly once.
type CycleReport struct {
	CycleDate time.Time         `json:"cycle_date"`
	Total     int               `json:"total"`
	Persisted int               `json:"persisted"`
	Failed    int               `json:"failed"`
	Repaired  int               `json:"repaired"`
	Carried   int               `json:"carried"`
	Results   []PartitionResult `json:"results"`
}

// PolicyStore persists policy records. Implemented by the repository layer.
type PolicyStore interface {
	SavePolicies(ctx context.Context, policies []domain.Policy) error
}

// CycleStore records cycle run bookkeeping.
type CycleStore interface {
	CreateCycleRun(ctx context.Context, run *domain.CycleRun) error
	UpdateCycleRun(ctx context.Context, run *domain.CycleRun) error
}

// PolicyCache holds the last known good policies per partition, used as the
// interim fallback when a solve times out.
type PolicyCache interface {
	GetLatest(ctx context.Context, partitionKey string) ([]domain.Policy, bool, error)
	SetLatest(ctx context.Context, partitionKey string, policies []domain.Policy) error
}
