package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/planner"
	"github.com/andresuchdata/replenish/internal/repository/memory"
	"github.com/andresuchdata/replenish/internal/solver"
)

func newPlannerFixture(t *testing.T) (*PlannerService, *memory.PolicyRepository, *memory.MasterRepository, *memory.ForecastRepository) {
	t.Helper()

	policies := memory.NewPolicyRepository()
	cycles := memory.NewCycleRepository()
	master := memory.NewMasterRepository()
	forecasts := memory.NewForecastRepository()

	cfg := planner.DefaultConfig()
	cfg.Horizon = 2
	cfg.MaxPartitionItems = 1
	cfg.SolveOptions = solver.Options{TimeLimit: 30 * time.Second}
	controller := planner.NewController(cfg, solver.NewMILP(), policies, cycles, nil)

	return NewPlannerService(controller, cfg, master, forecasts), policies, master, forecasts
}

func TestPlannerServiceRunCycle(t *testing.T) {
	svc, policies, master, forecasts := newPlannerFixture(t)

	master.AddProduct(domain.Product{ID: "P1", HoldingCost: 1, ShortageCost: 10, OrderingCost: 50})
	master.AddProduct(domain.Product{ID: "P2", HoldingCost: 1, ShortageCost: 10, OrderingCost: 50})
	master.AddLocation(domain.Location{ID: "L1", Capacity: 1000, ServiceLevelTarget: 0.95})
	for _, pid := range []string{"P1", "P2"} {
		for period := 0; period < 2; period++ {
			forecasts.AddForecast(domain.DemandForecast{
				ProductID: pid, LocationID: "L1", Period: period, Mean: 50,
			})
		}
	}

	cycleDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	report, err := svc.RunCycle(context.Background(), cycleDate, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Total, "one partition per product with MaxPartitionItems=1")
	assert.Equal(t, 2, report.Persisted)

	_, total, err := policies.ListPolicies(context.Background(), domain.PolicyFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total, "2 products x 2 periods")
}

func TestPlannerServiceRunCycleWithRisksAndInventory(t *testing.T) {
	svc, policies, master, forecasts := newPlannerFixture(t)

	master.AddProduct(domain.Product{ID: "P1", HoldingCost: 1, ShortageCost: 10, OrderingCost: 50, LeadTime: 1})
	master.AddLocation(domain.Location{ID: "L1", Capacity: 1000, ServiceLevelTarget: 0.95})
	forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 0, Mean: 30})
	forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 1, Mean: 30})

	risks := []domain.RiskAdjustment{
		{ProductID: "P1", LocationID: "L1", Period: 0, LeadTimeMultiplier: 1},
	}
	initial := map[domain.ItemKey]float64{
		{ProductID: "P1", LocationID: "L1"}: 40,
	}

	cycleDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	report, err := svc.RunCycle(context.Background(), cycleDate, risks, initial)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Persisted)

	saved, _, err := policies.ListPolicies(context.Background(), domain.PolicyFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 2)
}

func TestSolvePartitionUsesDefaultHorizon(t *testing.T) {
	svc, _, master, forecasts := newPlannerFixture(t)

	master.AddProduct(domain.Product{ID: "P1", HoldingCost: 1, ShortageCost: 10, OrderingCost: 50})
	master.AddLocation(domain.Location{ID: "L1", Capacity: 1000, ServiceLevelTarget: 0.95})
	forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 0, Mean: 50})
	forecasts.AddForecast(domain.DemandForecast{ProductID: "P1", LocationID: "L1", Period: 1, Mean: 50})

	policies, status, err := svc.SolvePartition(context.Background(), []string{"P1"}, []string{"L1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, status)
	assert.Len(t, policies, 2, "horizon 0 falls back to the configured horizon")
}
