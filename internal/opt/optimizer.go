// Package opt plans one collection day at a time: which depots to
// visit and in what order, by exact MILP solve with a greedy safety
// net.
package opt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/milp"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
)

// ErrTimeLimit reports that the solver exhausted its budget with no
// incumbent and the greedy fallback tour did not fit the daily limits.
var ErrTimeLimit = errors.New("solver time limit reached")

// DayInput is one day's planning request. Mandatory depots must be
// visited; Optional ones may be picked up opportunistically when the
// configuration allows it.
type DayInput struct {
	Day         int
	Mandatory   []string
	Optional    []string
	ProjectedOz map[string]float64
}

// SolveInfo describes how a plan was produced.
type SolveInfo struct {
	Backend        string
	SolveMillis    int64
	Nodes          int
	GreedyFallback bool
}

// Optimizer plans daily routes over a fixed network and configuration.
// It is safe for reuse across days; each PlanDay call is independent.
type Optimizer struct {
	net    *network.Model
	cfg    model.PlannerConfig
	cost   CostModel
	solver milp.Solver
}

func New(net *network.Model, cfg model.PlannerConfig) (*Optimizer, error) {
	s, err := milp.New(cfg.Solver.Backend)
	if err != nil {
		return nil, err
	}
	return &Optimizer{net: net, cfg: cfg, cost: NewCostModel(cfg), solver: s}, nil
}

func (o *Optimizer) Cost() CostModel { return o.cost }

// PlanDay selects and orders the day's visits. An infeasible day comes
// back with StatusInfeasible and no stops rather than an error; the
// caller decides how to degrade.
func (o *Optimizer) PlanDay(ctx context.Context, in DayInput) (model.RoutePlan, SolveInfo, error) {
	info := SolveInfo{Backend: o.solver.Name()}
	candidates := mergeCandidates(in.Mandatory, in.Optional, o.cfg.OpportunisticVisits)
	if len(candidates) == 0 {
		plan := emptyPlan()
		plan.Day = in.Day
		return plan, info, nil
	}
	mandatory := map[string]bool{}
	for _, id := range in.Mandatory {
		mandatory[id] = true
	}
	prob := newRouteProblem(o.net, o.cfg, o.cost, candidates, mandatory, in.ProjectedOz)
	opts := milp.Options{MaxNodes: o.cfg.Solver.MaxNodes}
	if o.cfg.Solver.MaxSolveMillis > 0 {
		opts.MaxDuration = time.Duration(o.cfg.Solver.MaxSolveMillis) * time.Millisecond
	}
	res, err := o.solver.Solve(ctx, prob.m, opts)
	if err != nil {
		return model.RoutePlan{}, info, fmt.Errorf("plan day %d: %w", in.Day, err)
	}
	info.SolveMillis = res.Runtime.Milliseconds()
	info.Nodes = res.Nodes

	switch res.Status {
	case milp.StatusOptimal:
		plan := prob.extract(o.net, o.cost, res)
		plan.Status = model.StatusOptimal
		plan.Day = in.Day
		return plan, info, nil
	case milp.StatusTimeLimit:
		if res.HasValues() {
			plan := prob.extract(o.net, o.cost, res)
			plan.Status = model.StatusTimeLimited
			plan.Day = in.Day
			return plan, info, nil
		}
		// No incumbent. A greedy tour over the mandatory set keeps
		// the horizon moving as long as it fits the budgets.
		info.GreedyFallback = true
		plan := planFromOrder(o.net, o.cost, in.ProjectedOz, GreedyTour(o.net, in.Mandatory))
		if o.fits(plan) {
			plan.Status = model.StatusTimeLimited
			plan.Day = in.Day
			return plan, info, nil
		}
		return model.RoutePlan{}, info, fmt.Errorf("plan day %d: %w", in.Day, ErrTimeLimit)
	case milp.StatusInfeasible:
		return model.RoutePlan{Day: in.Day, Status: model.StatusInfeasible, Stops: []string{}, Legs: []model.RouteLeg{}}, info, nil
	default:
		return model.RoutePlan{}, info, fmt.Errorf("plan day %d: unexpected solver status %s", in.Day, res.Status)
	}
}

func (o *Optimizer) fits(plan model.RoutePlan) bool {
	return plan.DriveMinutes+plan.ServiceMinutes <= o.cfg.DailyMinutesBudget+1e-9 &&
		plan.CollectedOz <= o.cfg.VehicleCapacityOz+1e-9
}

func mergeCandidates(mandatory, optional []string, opportunistic bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range mandatory {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if opportunistic {
		for _, id := range optional {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
