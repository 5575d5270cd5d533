package optimizer

import (
	"fmt"

	"github.com/andresuchdata/replenish/internal/solver"
)

// constraintGenerator emits the structural constraint set and objective for
// one item. It is the reusable core of the problem builder: nominal and
// relaxed formulations differ only through BuildOptions.
type constraintGenerator struct {
	model   *solver.Model
	opts    BuildOptions
	horizon int
}

func (g *constraintGenerator) generate(item *itemPlan) {
	g.addBalance(item)
	g.addCapacity(item)
	g.addShortageBound(item)
	g.addServiceLevel(item)
	g.addOrderLinking(item)
	g.addObjective(item)
}

// addBalance emits inventory[t] = inventory[t-1] + order_qty[t-lead] -
// demand[t] + shortage[t], with pre-horizon arrivals zero and starting
// inventory folded into the t=0 right-hand side.
func (g *constraintGenerator) addBalance(item *itemPlan) {
	for t := 0; t < g.horizon; t++ {
		terms := []solver.Term{
			{Var: item.inventory[t], Coef: 1},
			{Var: item.shortage[t], Coef: -1},
		}
		rhs := -item.means[t]
		if t > 0 {
			terms = append(terms, solver.Term{Var: item.inventory[t-1], Coef: -1})
		} else {
			rhs += item.initial
		}
		if ta := t - item.leadTime; ta >= 0 {
			terms = append(terms, solver.Term{Var: item.orderQty[ta], Coef: -1})
		}
		g.model.AddConstraint(g.name(item, "balance", t), terms, solver.EQ, rhs)
	}
}

// addCapacity bounds stock both at receipt (carried inventory plus the
// arriving order must fit) and at end of period.
func (g *constraintGenerator) addCapacity(item *itemPlan) {
	cap := item.location.Capacity
	for t := 0; t < g.horizon; t++ {
		if ta := t - item.leadTime; ta >= 0 {
			terms := []solver.Term{{Var: item.orderQty[ta], Coef: 1}}
			rhs := cap
			if t > 0 {
				terms = append(terms, solver.Term{Var: item.inventory[t-1], Coef: 1})
			} else {
				rhs -= item.initial
			}
			g.model.AddConstraint(g.name(item, "receipt_capacity", t), terms, solver.LE, rhs)
		}

		g.model.AddConstraint(g.name(item, "capacity", t),
			[]solver.Term{{Var: item.inventory[t], Coef: 1}}, solver.LE, cap)
	}
}

// addShortageBound caps planned shortage per period over the coverable
// horizon. Periods before the first possible arrival are exempt: no decision
// in the window can serve them.
func (g *constraintGenerator) addShortageBound(item *itemPlan) {
	if g.opts.ShortageAllowance < 0 {
		return // relaxed: backlog unbounded
	}
	for t := item.leadTime; t < g.horizon; t++ {
		g.model.AddConstraint(g.name(item, "shortage_bound", t),
			[]solver.Term{{Var: item.shortage[t], Coef: 1}},
			solver.LE, g.opts.ShortageAllowance*item.means[t])
	}
}

// addServiceLevel ties safety stock to the normal-approximation target and
// keeps coverable-horizon inventory above it, and pins the reorder point to
// lead-time demand plus safety stock.
func (g *constraintGenerator) addServiceLevel(item *itemPlan) {
	g.model.AddConstraint(g.name(item, "ss_target", -1),
		[]solver.Term{{Var: item.safetyStock, Coef: 1}}, solver.GE, item.ssTarget)

	for t := item.leadTime; t < g.horizon; t++ {
		g.model.AddConstraint(g.name(item, "ss_floor", t),
			[]solver.Term{
				{Var: item.inventory[t], Coef: 1},
				{Var: item.safetyStock, Coef: -1},
			}, solver.GE, 0)
	}

	g.model.AddConstraint(g.name(item, "reorder_point", -1),
		[]solver.Term{
			{Var: item.reorderPt, Coef: 1},
			{Var: item.safetyStock, Coef: -1},
		}, solver.EQ, item.leadDemand)
}

// addOrderLinking couples order quantity to its indicator: big-M above, MOQ
// below.
func (g *constraintGenerator) addOrderLinking(item *itemPlan) {
	for t := 0; t < g.horizon; t++ {
		g.model.AddConstraint(g.name(item, "order_ub", t),
			[]solver.Term{
				{Var: item.orderQty[t], Coef: 1},
				{Var: item.orderPlaced[t], Coef: -item.bigM},
			}, solver.LE, 0)

		if item.product.MOQ > 0 {
			g.model.AddConstraint(g.name(item, "order_moq", t),
				[]solver.Term{
					{Var: item.orderQty[t], Coef: 1},
					{Var: item.orderPlaced[t], Coef: -item.product.MOQ},
				}, solver.GE, 0)
		}
	}
}

// addObjective accumulates holding, shortage and ordering cost, plus the
// epsilon order-count term, and a vanishing weight on safety stock that pins
// it at its target when the floor is slack.
func (g *constraintGenerator) addObjective(item *itemPlan) {
	eps := g.opts.TieBreakEpsilon
	ssEps := eps
	if ssEps <= 0 {
		ssEps = 1e-9
	}
	for t := 0; t < g.horizon; t++ {
		g.model.SetObjectiveCoef(item.inventory[t], item.product.HoldingCost)
		g.model.SetObjectiveCoef(item.shortage[t], item.product.ShortageCost)
		g.model.SetObjectiveCoef(item.orderPlaced[t], item.product.OrderingCost+eps)
	}
	g.model.SetObjectiveCoef(item.safetyStock, ssEps)
}

func (g *constraintGenerator) name(item *itemPlan, kind string, t int) string {
	if t < 0 {
		return fmt.Sprintf("%s[%s,%s]", kind, item.product.ID, item.location.ID)
	}
	return fmt.Sprintf("%s[%s,%s,%d]", kind, item.product.ID, item.location.ID, t)
}
