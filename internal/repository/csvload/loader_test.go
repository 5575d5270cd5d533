package csvload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProducts(t *testing.T) {
	path := writeCSV(t, "products.csv",
		"product_id,holding_cost,shortage_cost,ordering_cost,moq,lead_time\n"+
			"SKU-1,0.5,10,50,25,2\n"+
			"SKU-2,1,20,0,0,0\n")

	products, err := LoadProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, domain.Product{
		ID:           "SKU-1",
		HoldingCost:  0.5,
		ShortageCost: 10,
		OrderingCost: 50,
		MOQ:          25,
		LeadTime:     2,
	}, products[0])
}

func TestLoadProductsRejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "non-numeric cost",
			content: "product_id,holding_cost,shortage_cost,ordering_cost,moq,lead_time\nSKU-1,abc,10,50,0,0\n",
		},
		{
			name:    "missing fields",
			content: "product_id,holding_cost,shortage_cost,ordering_cost,moq,lead_time\nSKU-1,0.5,10\n",
		},
		{
			name:    "bad lead time",
			content: "product_id,holding_cost,shortage_cost,ordering_cost,moq,lead_time\nSKU-1,0.5,10,50,0,two\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProducts(writeCSV(t, "products.csv", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadLocations(t *testing.T) {
	path := writeCSV(t, "locations.csv",
		"location_id,capacity,service_level_target\nL1,1000,0.95\n")

	locations, err := LoadLocations(path)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, domain.Location{ID: "L1", Capacity: 1000, ServiceLevelTarget: 0.95}, locations[0])
}

func TestLoadForecasts(t *testing.T) {
	path := writeCSV(t, "forecasts.csv",
		"product_id,location_id,period,mean,stddev\n"+
			"SKU-1,L1,0,100,12.5\n"+
			"SKU-1,L1,1,80,10\n")

	forecasts, err := LoadForecasts(path)
	require.NoError(t, err)
	require.Len(t, forecasts, 2)
	assert.Equal(t, 12.5, forecasts[0].StdDev)
	assert.Equal(t, 1, forecasts[1].Period)
}

func TestLoadInitialInventory(t *testing.T) {
	path := writeCSV(t, "inventory.csv",
		"product_id,location_id,quantity\nSKU-1,L1,120\n")

	inv, err := LoadInitialInventory(path)
	require.NoError(t, err)
	assert.Equal(t, 120.0, inv[domain.ItemKey{ProductID: "SKU-1", LocationID: "L1"}])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadProducts(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
