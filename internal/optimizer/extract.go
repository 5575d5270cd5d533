package optimizer

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/solver"
)

const roundTol = 1e-6

// Extractor maps a raw solution vector back into policy records, rounding
// order quantities to the smallest sellable unit and re-verifying MOQ and
// capacity under the rounded plan.
type Extractor struct {
	granularity float64
}

// NewExtractor returns an extractor with the given unit granularity.
// Granularity <= 0 falls back to whole units.
func NewExtractor(granularity float64) *Extractor {
	if granularity <= 0 {
		granularity = 1
	}
	return &Extractor{granularity: granularity}
}

// Extract converts the solution of p into one policy record per (product,
// location, period), stamped with statusLabel. The realized holding, shortage
// and ordering cost of the rounded plan is recomputed exactly and recorded as
// each record's objective contribution.
//
// A rounded plan that violates MOQ or capacity fails with a
// PolicyRoundingError instead of silently emitting an invalid policy.
func (e *Extractor) Extract(p *Problem, sol *solver.Solution, cycleDate time.Time, statusLabel string) ([]domain.Policy, error) {
	policies := make([]domain.Policy, 0, len(p.items)*p.Partition.Horizon)

	for _, item := range p.items {
		rounded := make([]float64, p.Partition.Horizon)
		for t := 0; t < p.Partition.Horizon; t++ {
			q := e.roundQty(sol.Value(item.orderQty[t]))
			if q > 0 && q < item.product.MOQ-roundTol {
				// Rounding pulled a positive order under the MOQ; push it
				// back up and let the capacity check decide.
				q = e.roundUp(item.product.MOQ)
			}
			rounded[t] = q
		}

		ss := math.Max(0, sol.Value(item.safetyStock))
		rop := math.Max(ss, sol.Value(item.reorderPt))

		inv := item.initial
		for t := 0; t < p.Partition.Horizon; t++ {
			arrival := 0.0
			if ta := t - item.leadTime; ta >= 0 {
				arrival = rounded[ta]
			}
			if inv+arrival > item.location.Capacity+roundTol {
				return nil, &domain.PolicyRoundingError{
					ProductID:  item.product.ID,
					LocationID: item.location.ID,
					Period:     t,
					Reason:     "rounded plan exceeds location capacity at receipt",
				}
			}

			short := math.Max(0, item.means[t]-inv-arrival)
			inv = inv + arrival - item.means[t] + short

			policies = append(policies, domain.Policy{
				CycleDate:      cycleDate,
				ProductID:      item.product.ID,
				LocationID:     item.location.ID,
				Period:         t,
				OrderQuantity:  rounded[t],
				SafetyStock:    ss,
				ReorderPoint:   rop,
				SolverStatus:   statusLabel,
				ObjectiveValue: realizedCost(item.product, inv, short, rounded[t]),
			})
		}
	}

	return policies, nil
}

// roundQty rounds a raw quantity to the nearest multiple of the granularity.
func (e *Extractor) roundQty(q float64) float64 {
	if q < roundTol {
		return 0
	}
	return math.Round(q/e.granularity) * e.granularity
}

// roundUp rounds a quantity up to the next multiple of the granularity.
func (e *Extractor) roundUp(q float64) float64 {
	return math.Ceil(q/e.granularity-roundTol) * e.granularity
}

// realizedCost recomputes the period's cost under the rounded plan in exact
// decimal arithmetic, for audit.
func realizedCost(prod domain.Product, inv, short, qty float64) float64 {
	cost := decimal.NewFromFloat(prod.HoldingCost).Mul(decimal.NewFromFloat(inv)).
		Add(decimal.NewFromFloat(prod.ShortageCost).Mul(decimal.NewFromFloat(short)))
	if qty > 0 {
		cost = cost.Add(decimal.NewFromFloat(prod.OrderingCost))
	}
	f, _ := cost.Round(6).Float64()
	return f
}
