package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/optimizer"
	"github.com/andresuchdata/replenish/internal/solver"
	"github.com/andresuchdata/replenish/pkg/logger"
)

var plog = logger.Component("planner")

// Controller runs the Building→Solving→Extracting→Persisted pipeline for
// every partition of a cycle, repairing infeasible or failed partitions
// before giving up on them.
type Controller struct {
	cfg       Config
	builder   *optimizer.Builder
	adapter   solver.Adapter
	extractor *optimizer.Extractor
	policies  PolicyStore
	cycles    CycleStore
	cache     PolicyCache
}

// NewController wires a controller. cycles and cache may be nil; bookkeeping
// and timeout carry-over are then disabled.
func NewController(cfg Config, adapter solver.Adapter, policies PolicyStore, cycles CycleStore, cache PolicyCache) *Controller {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Controller{
		cfg:       cfg,
		builder:   optimizer.NewBuilder(),
		adapter:   adapter,
		extractor: optimizer.NewExtractor(cfg.Granularity),
		policies:  policies,
		cycles:    cycles,
		cache:     cache,
	}
}

// RunCycle solves all partitions for one cycle date over a bounded worker
// pool. It returns only after every partition has reached a terminal state;
// the report lists each one. A PartialBatchFailure is returned when the
// failed fraction exceeds the configured threshold.
func (c *Controller) RunCycle(ctx context.Context, cycleDate time.Time, partitions []optimizer.Partition) (*CycleReport, error) {
	report := &CycleReport{
		CycleDate: cycleDate,
		Total:     len(partitions),
		Results:   make([]PartitionResult, len(partitions)),
	}
	if len(partitions) == 0 {
		return report, nil
	}

	run := &domain.CycleRun{
		CycleDate:       cycleDate,
		Status:          "processing",
		TotalPartitions: len(partitions),
		StartedAt:       time.Now(),
	}
	if c.cycles != nil {
		if err := c.cycles.CreateCycleRun(ctx, run); err != nil {
			return nil, err
		}
	}

	plog.Info().
		Str("cycle", cycleDate.Format("2006-01-02")).
		Int("partitions", len(partitions)).
		Int("workers", c.cfg.WorkerCount).
		Msg("starting optimization cycle")

	jobChan := make(chan int, len(partitions))
	var wg sync.WaitGroup
	for w := 0; w < c.cfg.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				// Each index is owned by exactly one worker; results are
				// written without further synchronization.
				report.Results[idx] = c.runPartition(ctx, cycleDate, partitions[idx])
			}
		}()
	}
	for i := range partitions {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait() // cycle barrier: no partial batch is reported while workers remain active

	for _, r := range report.Results {
		switch r.State {
		case StatePersisted:
			report.Persisted++
		case StateFailed:
			report.Failed++
		}
		switch r.Status {
		case domain.StatusRepaired, domain.StatusHeuristic:
			report.Repaired++
		case domain.StatusCarried:
			report.Carried++
		}
	}

	var cycleErr error
	run.PersistedPartitions = report.Persisted
	run.FailedPartitions = report.Failed
	run.Status = "completed"
	if report.Total > 0 && float64(report.Failed)/float64(report.Total) > c.cfg.FailureThreshold {
		cycleErr = &domain.PartialBatchFailure{
			Failed:    report.Failed,
			Total:     report.Total,
			Threshold: c.cfg.FailureThreshold,
		}
		run.Status = "failed"
		run.ErrorMessage = cycleErr.Error()
	}
	now := time.Now()
	run.CompletedAt = &now
	if c.cycles != nil {
		if err := c.cycles.UpdateCycleRun(ctx, run); err != nil {
			plog.Error().Err(err).Msg("failed to update cycle run")
		}
	}

	plog.Info().
		Str("cycle", cycleDate.Format("2006-01-02")).
		Int("persisted", report.Persisted).
		Int("failed", report.Failed).
		Int("repaired", report.Repaired).
		Msg("optimization cycle finished")

	return report, cycleErr
}

// runPartition walks one partition through the state machine to a terminal
// state. Every exit path records a status; nothing is silently dropped.
func (c *Controller) runPartition(ctx context.Context, cycleDate time.Time, part optimizer.Partition) PartitionResult {
	start := time.Now()
	res := PartitionResult{Key: part.Key(), State: StateBuilding}

	problem, err := c.builder.Build(part, optimizer.DefaultBuildOptions(c.cfg.TieBreakEpsilon))
	if err != nil {
		// Validation failures are scoped to this partition and not repairable.
		res.State = StateFailed
		res.Status = domain.StatusError
		res.Error = err.Error()
		res.Duration = time.Since(start)
		plog.Warn().Str("partition", res.Key).Err(err).Msg("partition rejected before solving")
		return res
	}

	res.State = StateSolving
	sol := c.adapter.Solve(ctx, problem.Model, c.cfg.SolveOptions)

	switch sol.Status {
	case solver.StatusOptimal, solver.StatusSuboptimal:
		res.State = StateExtracting
		policies, err := c.extractor.Extract(problem, sol, cycleDate, sol.Status.String())
		if err == nil {
			c.finish(ctx, &res, policies, sol.Status.String())
			res.Duration = time.Since(start)
			return res
		}
		var roundErr *domain.PolicyRoundingError
		if !errors.As(err, &roundErr) {
			res.State = StateFailed
			res.Status = domain.StatusError
			res.Error = err.Error()
			res.Duration = time.Since(start)
			return res
		}
		plog.Warn().Str("partition", res.Key).Err(err).Msg("rounded plan invalid, repairing")
		c.repair(ctx, &res, part, cycleDate)

	case solver.StatusTimedOut:
		c.carryOver(ctx, &res, part, cycleDate)

	case solver.StatusInfeasible, solver.StatusError:
		if sol.Err != nil {
			plog.Warn().Str("partition", res.Key).Err(sol.Err).Msg("solver failed, repairing")
		}
		c.repair(ctx, &res, part, cycleDate)
	}

	res.Duration = time.Since(start)
	return res
}

// repair climbs the ladder: relax the shortage bound, then reduce the safety
// stock target, then fall back to the reorder-point heuristic. Exhausting the
// ladder leaves the partition Failed.
func (c *Controller) repair(ctx context.Context, res *PartitionResult, part optimizer.Partition, cycleDate time.Time) {
	res.State = StateRepairing

	relaxations := []struct {
		step string
		opts optimizer.BuildOptions
	}{
		{
			step: RepairRelaxShortage,
			opts: optimizer.BuildOptions{
				ShortageAllowance: -1,
				SafetyFactor:      1,
				TieBreakEpsilon:   c.cfg.TieBreakEpsilon,
			},
		},
		{
			step: RepairReduceSafety,
			opts: optimizer.BuildOptions{
				ShortageAllowance: -1,
				SafetyFactor:      c.cfg.RelaxedSafetyFactor,
				TieBreakEpsilon:   c.cfg.TieBreakEpsilon,
			},
		},
	}

	for _, relax := range relaxations {
		res.RepairSteps = append(res.RepairSteps, relax.step)

		problem, err := c.builder.Build(part, relax.opts)
		if err != nil {
			break // validation failure; relaxing further cannot help
		}
		sol := c.adapter.Solve(ctx, problem.Model, c.cfg.SolveOptions)
		if sol.Status != solver.StatusOptimal && sol.Status != solver.StatusSuboptimal {
			continue
		}
		policies, err := c.extractor.Extract(problem, sol, cycleDate, domain.StatusRepaired)
		if err != nil {
			continue
		}
		c.finish(ctx, res, policies, domain.StatusRepaired)
		return
	}

	// Last resort: reorder-point heuristic computed directly from the
	// forecast mean and lead time, bypassing the solver.
	res.RepairSteps = append(res.RepairSteps, RepairHeuristic)
	policies, err := optimizer.HeuristicPolicies(part, optimizer.DefaultBuildOptions(c.cfg.TieBreakEpsilon), c.cfg.Granularity, cycleDate)
	if err != nil {
		res.State = StateFailed
		res.Status = domain.StatusError
		res.Error = err.Error()
		return
	}
	c.finish(ctx, res, policies, domain.StatusHeuristic)
}

// carryOver reuses the prior cycle's policies after a timeout, flagging the
// partition for re-solve next cycle. Without a cached policy it degrades to
// the heuristic fallback rather than re-running a solve that just timed out.
func (c *Controller) carryOver(ctx context.Context, res *PartitionResult, part optimizer.Partition, cycleDate time.Time) {
	res.State = StateRepairing
	res.RepairSteps = append(res.RepairSteps, RepairCarryOver)

	if c.cache != nil {
		cached, ok, err := c.cache.GetLatest(ctx, res.Key)
		if err != nil {
			plog.Warn().Str("partition", res.Key).Err(err).Msg("policy cache read failed")
		}
		if ok {
			restamped := make([]domain.Policy, len(cached))
			for i, p := range cached {
				p.CycleDate = cycleDate
				p.SolverStatus = domain.StatusCarried
				restamped[i] = p
			}
			c.persistOnly(ctx, res, restamped, domain.StatusCarried)
			return
		}
	}

	res.RepairSteps = append(res.RepairSteps, RepairHeuristic)
	policies, err := optimizer.HeuristicPolicies(part, optimizer.DefaultBuildOptions(c.cfg.TieBreakEpsilon), c.cfg.Granularity, cycleDate)
	if err != nil {
		res.State = StateFailed
		res.Status = domain.StatusError
		res.Error = err.Error()
		return
	}
	c.finish(ctx, res, policies, domain.StatusHeuristic)
}

// finish persists policies, refreshes the last-known-good cache, and marks
// the partition Persisted.
func (c *Controller) finish(ctx context.Context, res *PartitionResult, policies []domain.Policy, status string) {
	c.persistOnly(ctx, res, policies, status)
	if res.State != StatePersisted || c.cache == nil {
		return
	}
	if err := c.cache.SetLatest(ctx, res.Key, policies); err != nil {
		plog.Warn().Str("partition", res.Key).Err(err).Msg("policy cache write failed")
	}
}

func (c *Controller) persistOnly(ctx context.Context, res *PartitionResult, policies []domain.Policy, status string) {
	if err := c.policies.SavePolicies(ctx, policies); err != nil {
		res.State = StateFailed
		res.Status = domain.StatusError
		res.Error = err.Error()
		return
	}
	res.State = StatePersisted
	res.Status = status
	res.PolicyCount = len(policies)
}

// SolveOnce runs the shared Build→Solve→Extract pipeline without the repair
// state machine, for on-demand what-if queries. Callers receive the raw
// terminal status and handle repair themselves.
func (c *Controller) SolveOnce(ctx context.Context, part optimizer.Partition, cycleDate time.Time) ([]domain.Policy, string, error) {
	problem, err := c.builder.Build(part, optimizer.DefaultBuildOptions(c.cfg.TieBreakEpsilon))
	if err != nil {
		return nil, domain.StatusError, err
	}

	sol := c.adapter.Solve(ctx, problem.Model, c.cfg.SolveOptions)
	switch sol.Status {
	case solver.StatusOptimal, solver.StatusSuboptimal:
		policies, err := c.extractor.Extract(problem, sol, cycleDate, sol.Status.String())
		if err != nil {
			return nil, sol.Status.String(), err
		}
		return policies, sol.Status.String(), nil
	case solver.StatusInfeasible:
		return nil, domain.StatusInfeasible, domain.ErrInfeasible
	case solver.StatusTimedOut:
		return nil, domain.StatusTimedOut, domain.ErrTimeout
	default:
		if sol.Err != nil {
			return nil, domain.StatusError, &domain.SolverError{Err: sol.Err}
		}
		return nil, domain.StatusError, &domain.SolverError{Err: errors.New("backend returned no solution")}
	}
}
