package optimizer

import (
	"math"
	"time"

	"github.com/andresuchdata/replenish/internal/domain"
)

// HeuristicPolicies computes a reorder-point plan directly from the forecast
// mean and lead time, bypassing the solver. It is the last rung of the repair
// ladder: order each period's mean demand, clipped to the capacity headroom
// at receipt, and never below MOQ when positive.
func HeuristicPolicies(part Partition, opts BuildOptions, granularity float64, cycleDate time.Time) ([]domain.Policy, error) {
	if err := validatePartition(part); err != nil {
		return nil, err
	}
	ex := NewExtractor(granularity)

	policies := make([]domain.Policy, 0, len(part.Products)*len(part.Locations)*part.Horizon)
	for _, prod := range part.Products {
		for _, loc := range part.Locations {
			item, err := newItemPlan(part, prod, loc, opts)
			if err != nil {
				return nil, err
			}

			ss := math.Min(item.ssTarget, math.Max(loc.Capacity, 0))
			rop := item.leadDemand + ss

			orders := make([]float64, part.Horizon)
			inv := item.initial
			// Plan arrivals one lead time ahead of each coverable period.
			projected := inv
			for t := item.leadTime; t < part.Horizon; t++ {
				need := item.means[t] - math.Max(projected, 0)
				q := ex.roundUp(math.Max(0, need))
				if q > 0 && q < prod.MOQ {
					q = ex.roundUp(prod.MOQ)
				}
				if headroom := loc.Capacity - math.Max(projected, 0); q > headroom {
					q = math.Max(0, math.Floor(headroom/ex.granularity)) * ex.granularity
				}
				orders[t-item.leadTime] = q
				projected = math.Max(projected, 0) + q - item.means[t]
			}

			for t := 0; t < part.Horizon; t++ {
				arrival := 0.0
				if ta := t - item.leadTime; ta >= 0 {
					arrival = orders[ta]
				}
				short := math.Max(0, item.means[t]-inv-arrival)
				inv = inv + arrival - item.means[t] + short

				policies = append(policies, domain.Policy{
					CycleDate:      cycleDate,
					ProductID:      prod.ID,
					LocationID:     loc.ID,
					Period:         t,
					OrderQuantity:  orders[t],
					SafetyStock:    ss,
					ReorderPoint:   rop,
					SolverStatus:   domain.StatusHeuristic,
					ObjectiveValue: realizedCost(prod, inv, short, orders[t]),
				})
			}
		}
	}

	return policies, nil
}
