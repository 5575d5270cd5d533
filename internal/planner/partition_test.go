package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/optimizer"
)

func TestBuildPartitionsChunksPerLocation(t *testing.T) {
	products := []domain.Product{{ID: "P3"}, {ID: "P1"}, {ID: "P2"}}
	locations := []domain.Location{{ID: "L2"}, {ID: "L1"}}

	parts := BuildPartitions(products, locations, nil, nil, nil, 7, 2)
	require.Len(t, parts, 4, "3 products in chunks of 2 across 2 locations")

	// Locations then products, sorted.
	assert.Equal(t, "L1", parts[0].Locations[0].ID)
	assert.Equal(t, []string{"P1", "P2"}, productIDs(parts[0]))
	assert.Equal(t, []string{"P3"}, productIDs(parts[1]))
	assert.Equal(t, "L2", parts[2].Locations[0].ID)
	for _, p := range parts {
		assert.Equal(t, 7, p.Horizon)
	}
}

func TestBuildPartitionsScopesData(t *testing.T) {
	products := []domain.Product{{ID: "P1"}, {ID: "P2"}}
	locations := []domain.Location{{ID: "L1"}, {ID: "L2"}}
	forecasts := []domain.DemandForecast{
		{ProductID: "P1", LocationID: "L1", Period: 0, Mean: 10},
		{ProductID: "P1", LocationID: "L2", Period: 0, Mean: 20},
		{ProductID: "P2", LocationID: "L1", Period: 0, Mean: 30},
	}
	risks := []domain.RiskAdjustment{
		{ProductID: "P1", LocationID: "L1", Period: 0, LeadTimeMultiplier: 2},
	}
	initial := map[domain.ItemKey]float64{
		{ProductID: "P1", LocationID: "L1"}: 5,
		{ProductID: "P1", LocationID: "L2"}: 9,
	}

	parts := BuildPartitions(products, locations, forecasts, risks, initial, 1, 10)
	require.Len(t, parts, 2)

	l1 := parts[0]
	require.Equal(t, "L1", l1.Locations[0].ID)
	assert.Len(t, l1.Forecasts, 2)
	assert.Len(t, l1.Risks, 1)
	assert.Equal(t, 5.0, l1.InitialInventory[domain.ItemKey{ProductID: "P1", LocationID: "L1"}])
	_, crossLocation := l1.Forecasts[domain.SeriesKey{ProductID: "P1", LocationID: "L2", Period: 0}]
	assert.False(t, crossLocation, "a partition only carries its own location's data")

	l2 := parts[1]
	assert.Len(t, l2.Forecasts, 1)
	assert.Empty(t, l2.Risks)
}

func TestBuildPartitionsNormalizesRisks(t *testing.T) {
	products := []domain.Product{{ID: "P1"}}
	locations := []domain.Location{{ID: "L1"}}
	risks := []domain.RiskAdjustment{
		{ProductID: "P1", LocationID: "L1", Period: 0, Shock: true},
	}

	parts := BuildPartitions(products, locations, nil, risks, nil, 1, 10)
	require.Len(t, parts, 1)
	r := parts[0].Risks[domain.SeriesKey{ProductID: "P1", LocationID: "L1", Period: 0}]
	assert.Equal(t, 1.0, r.LeadTimeMultiplier, "absent multipliers default to identity")
	assert.Equal(t, 1.0, r.DemandVarianceMultiplier)
	assert.True(t, r.Shock)
}

func productIDs(p optimizer.Partition) []string {
	ids := make([]string, 0, len(p.Products))
	for _, prod := range p.Products {
		ids = append(ids, prod.ID)
	}
	return ids
}
