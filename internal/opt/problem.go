package opt

import (
	"sort"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/milp"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
)

// routeProblem is the MILP encoding of one planning day: a single
// vehicle leaves the hub, visits a subset of candidate depots under
// the time and capacity budgets, and returns. Binary x variables pick
// directed edges, y variables pick visits, z opens the route, and the
// continuous u variables order the stops (Miller-Tucker-Zemlin), which
// rules out subtours disconnected from the hub.
type routeProblem struct {
	nodes     []string // hub first, then candidates sorted by id
	mandatory map[string]bool
	projected map[string]float64

	m *milp.Model
	x map[[2]int]*milp.Var
	y []*milp.Var
	z *milp.Var
	u []*milp.Var
}

func newRouteProblem(net *network.Model, cfg model.PlannerConfig, cost CostModel, candidates []string, mandatory map[string]bool, projected map[string]float64) *routeProblem {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	nodes := append([]string{net.Hub().ID}, sorted...)
	n := len(sorted)

	p := &routeProblem{
		nodes:     nodes,
		mandatory: mandatory,
		projected: projected,
		m:         milp.NewModel(),
		x:         map[[2]int]*milp.Var{},
		y:         make([]*milp.Var, n),
		u:         make([]*milp.Var, n),
	}
	m := p.m
	for i := range nodes {
		for j := range nodes {
			if i != j {
				p.x[[2]int{i, j}] = m.NewBool()
			}
		}
	}
	for k := 0; k < n; k++ {
		p.y[k] = m.NewBool()
		p.u[k] = m.NewFloat(1, float64(n))
	}
	p.z = m.NewBool()

	// Degree constraints tie edges to visits. An edge can only touch
	// nodes whose visit variable is set.
	for k := 0; k < n; k++ {
		out := m.NewConstraint(milp.Equal, 0)
		in := m.NewConstraint(milp.Equal, 0)
		for j := range nodes {
			if j == k+1 {
				continue
			}
			out.NewTerm(1, p.x[[2]int{k + 1, j}])
			in.NewTerm(1, p.x[[2]int{j, k + 1}])
		}
		out.NewTerm(-1, p.y[k])
		in.NewTerm(-1, p.y[k])
	}
	hubOut := m.NewConstraint(milp.Equal, 0)
	hubIn := m.NewConstraint(milp.Equal, 0)
	for j := 1; j < len(nodes); j++ {
		hubOut.NewTerm(1, p.x[[2]int{0, j}])
		hubIn.NewTerm(1, p.x[[2]int{j, 0}])
	}
	hubOut.NewTerm(-1, p.z)
	hubIn.NewTerm(-1, p.z)

	// The route opens iff anything is visited.
	anyVisit := m.NewConstraint(milp.GreaterThanOrEqual, 0)
	anyVisit.NewTerm(-1, p.z)
	for k := 0; k < n; k++ {
		link := m.NewConstraint(milp.GreaterThanOrEqual, 0)
		link.NewTerm(1, p.z)
		link.NewTerm(-1, p.y[k])
		anyVisit.NewTerm(1, p.y[k])
	}

	for k, id := range sorted {
		if mandatory[id] {
			must := m.NewConstraint(milp.Equal, 1)
			must.NewTerm(1, p.y[k])
		}
	}

	// Daily driver time: drive plus per-stop service.
	budget := m.NewConstraint(milp.LessThanOrEqual, cfg.DailyMinutesBudget)
	for i := range nodes {
		for j := range nodes {
			if i != j {
				budget.NewTerm(net.Minutes(nodes[i], nodes[j]), p.x[[2]int{i, j}])
			}
		}
	}
	if cfg.ServiceMinutesPerStop > 0 {
		for k := 0; k < n; k++ {
			budget.NewTerm(cfg.ServiceMinutesPerStop, p.y[k])
		}
	}

	// Vehicle capacity over projected pickup volumes.
	capRow := m.NewConstraint(milp.LessThanOrEqual, cfg.VehicleCapacityOz)
	for k, id := range sorted {
		capRow.NewTerm(projected[id], p.y[k])
	}

	// MTZ ordering over candidate pairs.
	for k := 0; k < n; k++ {
		for l := 0; l < n; l++ {
			if k == l {
				continue
			}
			mtz := m.NewConstraint(milp.LessThanOrEqual, float64(n-1))
			mtz.NewTerm(1, p.u[k])
			mtz.NewTerm(-1, p.u[l])
			mtz.NewTerm(float64(n), p.x[[2]int{k + 1, l + 1}])
		}
	}

	obj := m.Objective()
	obj.SetMinimize()
	for i := range nodes {
		for j := range nodes {
			if i != j {
				obj.NewTerm(cost.EdgeCost(net.Miles(nodes[i], nodes[j]), net.Minutes(nodes[i], nodes[j])), p.x[[2]int{i, j}])
			}
		}
	}
	for k, id := range sorted {
		coef := cost.StopCost()
		if cfg.OpportunisticVisits && !mandatory[id] {
			coef -= cfg.OpportunisticCreditPerOz * projected[id]
		}
		if coef != 0 {
			obj.NewTerm(coef, p.y[k])
		}
	}
	return p
}

// extract reads the edge assignment back into an ordered plan. The
// result must be feasible; call only when the solver produced values.
func (p *routeProblem) extract(net *network.Model, cost CostModel, res milp.Result) model.RoutePlan {
	if res.Value(p.z) < 0.5 {
		return emptyPlan()
	}
	succ := map[int]int{}
	for pair, v := range p.x {
		if res.Value(v) > 0.5 {
			succ[pair[0]] = pair[1]
		}
	}
	var order []string
	cur := 0
	for range p.nodes {
		nxt, ok := succ[cur]
		if !ok || nxt == 0 {
			break
		}
		order = append(order, p.nodes[nxt])
		cur = nxt
	}
	return planFromOrder(net, cost, p.projected, order)
}

func emptyPlan() model.RoutePlan {
	return model.RoutePlan{Status: model.StatusOptimal, Stops: []string{}, Legs: []model.RouteLeg{}}
}

// planFromOrder prices a hub -> order... -> hub tour into a RoutePlan.
func planFromOrder(net *network.Model, cost CostModel, projected map[string]float64, order []string) model.RoutePlan {
	if len(order) == 0 {
		return emptyPlan()
	}
	plan := model.RoutePlan{Stops: append([]string(nil), order...)}
	prev := net.Hub().ID
	seq := 1
	addLeg := func(to string) {
		tm := net.Metric(prev, to)
		plan.Legs = append(plan.Legs, model.RouteLeg{Seq: seq, From: prev, To: to, Miles: tm.Miles, Minutes: tm.Minutes})
		prev = to
		seq++
	}
	for _, id := range order {
		addLeg(id)
		plan.CollectedOz += projected[id]
	}
	addLeg(net.Hub().ID)
	cost.Price(&plan)
	return plan
}
