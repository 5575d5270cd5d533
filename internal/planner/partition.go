package planner

import (
	"sort"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/optimizer"
)

// BuildPartitions groups the product×location universe into partitions of at
// most maxItems products per location, each carrying only its own forecasts
// and risk adjustments. Ordering is deterministic: locations then products,
// both sorted by ID.
func BuildPartitions(
	products []domain.Product,
	locations []domain.Location,
	forecasts []domain.DemandForecast,
	risks []domain.RiskAdjustment,
	initial map[domain.ItemKey]float64,
	horizon, maxItems int,
) []optimizer.Partition {
	if maxItems <= 0 {
		maxItems = 1
	}

	sortedProducts := append([]domain.Product(nil), products...)
	sortedLocations := append([]domain.Location(nil), locations...)
	sort.Slice(sortedProducts, func(i, j int) bool { return sortedProducts[i].ID < sortedProducts[j].ID })
	sort.Slice(sortedLocations, func(i, j int) bool { return sortedLocations[i].ID < sortedLocations[j].ID })

	forecastIndex := make(map[domain.SeriesKey]domain.DemandForecast, len(forecasts))
	for _, f := range forecasts {
		forecastIndex[domain.SeriesKey{ProductID: f.ProductID, LocationID: f.LocationID, Period: f.Period}] = f
	}
	riskIndex := make(map[domain.SeriesKey]domain.RiskAdjustment, len(risks))
	for _, r := range risks {
		riskIndex[domain.SeriesKey{ProductID: r.ProductID, LocationID: r.LocationID, Period: r.Period}] = r.Normalize()
	}

	var partitions []optimizer.Partition
	for _, loc := range sortedLocations {
		for start := 0; start < len(sortedProducts); start += maxItems {
			end := start + maxItems
			if end > len(sortedProducts) {
				end = len(sortedProducts)
			}
			chunk := sortedProducts[start:end]

			part := optimizer.Partition{
				Products:         append([]domain.Product(nil), chunk...),
				Locations:        []domain.Location{loc},
				Horizon:          horizon,
				InitialInventory: make(map[domain.ItemKey]float64),
				Forecasts:        make(map[domain.SeriesKey]domain.DemandForecast),
				Risks:            make(map[domain.SeriesKey]domain.RiskAdjustment),
			}
			for _, prod := range chunk {
				key := domain.ItemKey{ProductID: prod.ID, LocationID: loc.ID}
				if v, ok := initial[key]; ok {
					part.InitialInventory[key] = v
				}
				for t := 0; t < horizon; t++ {
					sk := domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}
					if f, ok := forecastIndex[sk]; ok {
						part.Forecasts[sk] = f
					}
					if r, ok := riskIndex[sk]; ok {
						part.Risks[sk] = r
					}
				}
			}
			partitions = append(partitions, part)
		}
	}

	return partitions
}
