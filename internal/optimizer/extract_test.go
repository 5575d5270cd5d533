package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/solver"
)

// rawSolution builds a fake optimal solution for a single-item one-period
// problem. Variable order per item: order_qty, inventory, shortage,
// order_placed, then safety_stock and reorder_point.
func rawSolution(order, inventory, shortage, placed, ss, rop float64) *solver.Solution {
	return &solver.Solution{
		Status: solver.StatusOptimal,
		Values: []float64{order, inventory, shortage, placed, ss, rop},
	}
}

func TestExtractRoundsToGranularity(t *testing.T) {
	part := singlePartition(testProduct(), testLocation(), []float64{10}, nil)
	p, err := NewBuilder().Build(part, DefaultBuildOptions(1e-6))
	require.NoError(t, err)

	policies, err := NewExtractor(5).Extract(p, rawSolution(12.4, 2.4, 0, 1, 0, 10), testCycleDate, domain.StatusOptimal)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.InDelta(t, 10.0, policies[0].OrderQuantity, 1e-9, "12.4 rounds to the nearest multiple of 5")
}

func TestExtractBumpsRoundedOrderToMOQ(t *testing.T) {
	prod := testProduct()
	prod.MOQ = 10
	part := singlePartition(prod, testLocation(), []float64{10}, nil)
	p, err := NewBuilder().Build(part, DefaultBuildOptions(1e-6))
	require.NoError(t, err)

	// A raw value just under the MOQ must be pushed back up, not left invalid.
	policies, err := NewExtractor(1).Extract(p, rawSolution(9.6, 0, 0, 1, 0, 10), testCycleDate, domain.StatusOptimal)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, policies[0].OrderQuantity, 1e-9)
}

func TestExtractRejectsCapacityViolation(t *testing.T) {
	loc := testLocation()
	loc.Capacity = 100
	part := singlePartition(testProduct(), loc, []float64{5}, nil)
	part.InitialInventory = map[domain.ItemKey]float64{
		{ProductID: "SKU-1", LocationID: "LOC-1"}: 95,
	}
	p, err := NewBuilder().Build(part, DefaultBuildOptions(1e-6))
	require.NoError(t, err)

	_, err = NewExtractor(1).Extract(p, rawSolution(8, 98, 0, 1, 0, 5), testCycleDate, domain.StatusOptimal)
	var roundErr *domain.PolicyRoundingError
	require.ErrorAs(t, err, &roundErr)
	assert.Equal(t, "SKU-1", roundErr.ProductID)
	assert.Equal(t, 0, roundErr.Period)
}

func TestExtractClampsNegativeSafetyStock(t *testing.T) {
	part := singlePartition(testProduct(), testLocation(), []float64{10}, nil)
	p, err := NewBuilder().Build(part, DefaultBuildOptions(1e-6))
	require.NoError(t, err)

	policies, err := NewExtractor(1).Extract(p, rawSolution(10, 0, 0, 1, -1e-9, 10), testCycleDate, domain.StatusOptimal)
	require.NoError(t, err)
	assert.Equal(t, 0.0, policies[0].SafetyStock)
	assert.GreaterOrEqual(t, policies[0].ReorderPoint, policies[0].SafetyStock)
}

func TestRealizedCostCountsOrderingOnce(t *testing.T) {
	prod := testProduct() // holding 1, shortage 10, ordering 50
	assert.InDelta(t, 50.0, realizedCost(prod, 0, 0, 25), 1e-9)
	assert.InDelta(t, 0.0, realizedCost(prod, 0, 0, 0), 1e-9)
	assert.InDelta(t, 3.0+20.0, realizedCost(prod, 3, 2, 0), 1e-9)
}
