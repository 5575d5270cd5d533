// Package optimizer turns master data, demand forecasts and risk adjustments
// into per-partition MILP models and maps solutions back into policy records.
package optimizer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/solver"
)

// shockVarianceMultiplier is applied on top of the regular variance
// multiplier when the upstream risk layer flags a shock for a cell.
const shockVarianceMultiplier = 2.0

// Partition is one product×location group solved independently, with its
// forecasts and risk adjustments over the planning horizon.
type Partition struct {
	Products         []domain.Product
	Locations        []domain.Location
	Horizon          int
	InitialInventory map[domain.ItemKey]float64
	Forecasts        map[domain.SeriesKey]domain.DemandForecast
	Risks            map[domain.SeriesKey]domain.RiskAdjustment
}

// Key returns a stable identifier for the partition, derived from its sorted
// product and location IDs.
func (p Partition) Key() string {
	products := make([]string, 0, len(p.Products))
	for _, pr := range p.Products {
		products = append(products, pr.ID)
	}
	locations := make([]string, 0, len(p.Locations))
	for _, l := range p.Locations {
		locations = append(locations, l.ID)
	}
	sort.Strings(products)
	sort.Strings(locations)

	sum := sha1.Sum([]byte(strings.Join(products, ",") + "|" + strings.Join(locations, ",")))
	return strings.Join(locations, "+") + ":" + hex.EncodeToString(sum[:8])
}

// BuildOptions tune the model formulation. The zero value is not usable;
// call DefaultBuildOptions.
type BuildOptions struct {
	// ShortageAllowance bounds planned shortage per period as a fraction of
	// mean demand. Negative means unbounded (the repair relaxation).
	ShortageAllowance float64
	// SafetyFactor scales the safety stock target. 1 is nominal; the repair
	// ladder lowers it.
	SafetyFactor float64
	// TieBreakEpsilon weights the order-count term that breaks ties among
	// equal-cost optima.
	TieBreakEpsilon float64
}

// DefaultBuildOptions returns the nominal formulation: no planned shortage,
// full safety stock target.
func DefaultBuildOptions(tieBreakEpsilon float64) BuildOptions {
	return BuildOptions{
		ShortageAllowance: 0,
		SafetyFactor:      1,
		TieBreakEpsilon:   tieBreakEpsilon,
	}
}

// itemPlan carries the derived parameters and variable indices for one
// (product, location) pair inside a problem.
type itemPlan struct {
	product  domain.Product
	location domain.Location

	leadTime   int       // risk-adjusted effective lead time, periods
	means      []float64 // mean demand per period
	ssTarget   float64   // z(service level) · sigma over the exposure window
	leadDemand float64   // mean demand over the exposure window
	initial    float64   // starting inventory
	bigM       float64

	orderQty    []solver.VarID
	inventory   []solver.VarID
	shortage    []solver.VarID
	orderPlaced []solver.VarID
	safetyStock solver.VarID
	reorderPt   solver.VarID
}

// Problem bundles one partition's model and its variable index. It lives for
// the duration of a single solve.
type Problem struct {
	Partition Partition
	Opts      BuildOptions
	Model     *solver.Model

	items []*itemPlan
}

// Builder assembles optimization problems.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build validates the partition and assembles its MILP. It fails with a
// ValidationError when master or forecast data is missing or malformed, or
// when the horizon is empty.
func (b *Builder) Build(part Partition, opts BuildOptions) (*Problem, error) {
	if err := validatePartition(part); err != nil {
		return nil, err
	}

	// Copy and sort so variable ordering, and therefore the solution, is
	// independent of the caller's slice order.
	products := append([]domain.Product(nil), part.Products...)
	locations := append([]domain.Location(nil), part.Locations...)
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	part.Products = products
	part.Locations = locations

	p := &Problem{
		Partition: part,
		Opts:      opts,
		Model:     solver.NewModel(),
	}

	for _, prod := range products {
		for _, loc := range locations {
			item, err := newItemPlan(part, prod, loc, opts)
			if err != nil {
				return nil, err
			}
			declareVars(p.Model, item, part.Horizon)
			p.items = append(p.items, item)
		}
	}

	gen := constraintGenerator{model: p.Model, opts: opts, horizon: part.Horizon}
	for _, item := range p.items {
		gen.generate(item)
	}

	return p, nil
}

func validatePartition(part Partition) error {
	if part.Horizon <= 0 {
		return &domain.ValidationError{Field: "horizon", Reason: "planning horizon is empty"}
	}
	if len(part.Products) == 0 {
		return &domain.ValidationError{Field: "products", Reason: "partition has no products"}
	}
	if len(part.Locations) == 0 {
		return &domain.ValidationError{Field: "locations", Reason: "partition has no locations"}
	}

	for _, prod := range part.Products {
		if prod.ID == "" {
			return &domain.ValidationError{Field: "product_id", Reason: "empty product identifier"}
		}
		if prod.LeadTime < 0 {
			return &domain.ValidationError{Field: "lead_time", Reason: fmt.Sprintf("product %s: negative lead time", prod.ID)}
		}
		if prod.HoldingCost < 0 || prod.OrderingCost < 0 {
			return &domain.ValidationError{Field: "costs", Reason: fmt.Sprintf("product %s: negative cost", prod.ID)}
		}
		if prod.ShortageCost <= 0 {
			return &domain.ValidationError{Field: "shortage_cost", Reason: fmt.Sprintf("product %s: shortage cost must be positive", prod.ID)}
		}
		if prod.MOQ < 0 {
			return &domain.ValidationError{Field: "moq", Reason: fmt.Sprintf("product %s: negative MOQ", prod.ID)}
		}
	}
	for _, loc := range part.Locations {
		if loc.ID == "" {
			return &domain.ValidationError{Field: "location_id", Reason: "empty location identifier"}
		}
		if loc.ServiceLevelTarget <= 0 || loc.ServiceLevelTarget >= 1 {
			return &domain.ValidationError{Field: "service_level_target", Reason: fmt.Sprintf("location %s: target must be in (0,1)", loc.ID)}
		}
	}
	for _, prod := range part.Products {
		for _, loc := range part.Locations {
			for t := 0; t < part.Horizon; t++ {
				f, ok := part.Forecasts[domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}]
				if !ok {
					return &domain.ValidationError{
						Field:  "forecast",
						Reason: fmt.Sprintf("missing forecast for %s@%s period %d", prod.ID, loc.ID, t),
					}
				}
				if f.Mean < 0 || f.StdDev < 0 {
					return &domain.ValidationError{
						Field:  "forecast",
						Reason: fmt.Sprintf("negative forecast for %s@%s period %d", prod.ID, loc.ID, t),
					}
				}
			}
		}
	}

	return nil
}

// newItemPlan derives the per-item parameters: risk-adjusted lead time,
// safety stock target and exposure-window demand.
func newItemPlan(part Partition, prod domain.Product, loc domain.Location, opts BuildOptions) (*itemPlan, error) {
	item := &itemPlan{
		product:  prod,
		location: loc,
		initial:  part.InitialInventory[domain.ItemKey{ProductID: prod.ID, LocationID: loc.ID}],
	}

	// Lead time scaled by the worst risk multiplier observed in the window.
	// A constant offset keeps the balance equations linear.
	leadMult := 1.0
	for t := 0; t < part.Horizon; t++ {
		if r, ok := part.Risks[domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}]; ok {
			if m := r.Normalize().LeadTimeMultiplier; m > leadMult {
				leadMult = m
			}
		}
	}
	item.leadTime = int(math.Ceil(float64(prod.LeadTime) * leadMult))

	item.means = make([]float64, part.Horizon)
	total := 0.0
	for t := 0; t < part.Horizon; t++ {
		f := part.Forecasts[domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}]
		item.means[t] = f.Mean
		total += f.Mean
	}

	// Exposure window covers the lead time plus the review period itself.
	window := item.leadTime + 1
	variance := 0.0
	meanLT := 0.0
	covered := window
	if covered > part.Horizon {
		covered = part.Horizon
	}
	for t := 0; t < covered; t++ {
		f := part.Forecasts[domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}]
		varMult := 1.0
		if r, ok := part.Risks[domain.SeriesKey{ProductID: prod.ID, LocationID: loc.ID, Period: t}]; ok {
			n := r.Normalize()
			varMult = n.DemandVarianceMultiplier
			if n.Shock {
				varMult *= shockVarianceMultiplier
			}
		}
		variance += f.StdDev * f.StdDev * varMult
		meanLT += f.Mean
	}
	if covered > 0 && window > covered {
		// Extrapolate past the horizon with window averages.
		scale := float64(window) / float64(covered)
		variance *= scale
		meanLT *= scale
	}

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(loc.ServiceLevelTarget)
	item.ssTarget = math.Max(0, z*math.Sqrt(variance)*opts.SafetyFactor)
	item.leadDemand = meanLT

	item.bigM = prod.MOQ + math.Max(loc.Capacity, 0) + total + 1

	return item, nil
}

// declareVars appends the item's decision variables to the model in a fixed
// order: order_qty, inventory, shortage, order_placed per period, then
// safety_stock and reorder_point.
func declareVars(m *solver.Model, item *itemPlan, horizon int) {
	pid, lid := item.product.ID, item.location.ID
	item.orderQty = make([]solver.VarID, horizon)
	item.inventory = make([]solver.VarID, horizon)
	item.shortage = make([]solver.VarID, horizon)
	item.orderPlaced = make([]solver.VarID, horizon)
	for t := 0; t < horizon; t++ {
		item.orderQty[t] = m.AddVar(fmt.Sprintf("order_qty[%s,%s,%d]", pid, lid, t), solver.Inf())
		item.inventory[t] = m.AddVar(fmt.Sprintf("inventory[%s,%s,%d]", pid, lid, t), solver.Inf())
		item.shortage[t] = m.AddVar(fmt.Sprintf("shortage[%s,%s,%d]", pid, lid, t), solver.Inf())
		item.orderPlaced[t] = m.AddBinary(fmt.Sprintf("order_placed[%s,%s,%d]", pid, lid, t))
	}
	item.safetyStock = m.AddVar(fmt.Sprintf("safety_stock[%s,%s]", pid, lid), solver.Inf())
	item.reorderPt = m.AddVar(fmt.Sprintf("reorder_point[%s,%s]", pid, lid), solver.Inf())
}
