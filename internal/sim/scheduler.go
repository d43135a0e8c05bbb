package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/opt"
)

// Events receives run progress as days are planned. Implementations
// must not block; the scheduler calls them inline.
type Events interface {
	DayPlanned(entry model.RouteLogEntry)
	DayInfeasible(day int, depots []string)
	Completed(totals model.RunTotals)
}

// NopEvents discards all progress callbacks.
type NopEvents struct{}

func (NopEvents) DayPlanned(model.RouteLogEntry) {}
func (NopEvents) DayInfeasible(int, []string)    {}
func (NopEvents) Completed(model.RunTotals)      {}

var _ Events = NopEvents{}

// Result is the outcome of one horizon run. Status is RunInfeasible
// when the horizon halted early; Violating then names the depots whose
// combined commitments could not be served.
type Result struct {
	Status    string
	Totals    model.RunTotals
	Routes    []model.RouteLogEntry
	Inventory []model.InventoryRecord
	Violating []string
}

// InfeasibleError is kept for callers that prefer errors.Is checks
// over inspecting Result.Status.
type InfeasibleError struct {
	Day    int
	Depots []string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("day %d infeasible: over-committed depots: %s", e.Day, strings.Join(e.Depots, ", "))
}

type planner interface {
	PlanDay(ctx context.Context, in opt.DayInput) (model.RoutePlan, opt.SolveInfo, error)
}

// Scheduler walks the horizon one day at a time: evaluate triggers,
// plan the route, apply pickups to the ledger. Deterministic given the
// same inputs and the builtin solver, so re-running a simulation
// reproduces it exactly.
type Scheduler struct {
	net     *network.Model
	cfg     model.PlannerConfig
	planner planner
	events  Events
}

func NewScheduler(net *network.Model, cfg model.PlannerConfig, events Events) (*Scheduler, error) {
	if events == nil {
		events = NopEvents{}
	}
	o, err := opt.New(net, cfg)
	if err != nil {
		return nil, err
	}
	return &Scheduler{net: net, cfg: cfg, planner: o, events: events}, nil
}

// Run simulates the full horizon. startDate may be empty; when set it
// must be YYYY-MM-DD and day 1 maps to it. An infeasible day ends the
// run with Status RunInfeasible rather than an error; errors are
// reserved for malformed input, solver failures and cancellation.
func (s *Scheduler) Run(ctx context.Context, startDate string, forecast model.ForecastSet) (*Result, error) {
	var start time.Time
	if startDate != "" {
		var err error
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return nil, fmt.Errorf("startDate %q: %w", startDate, model.ErrMalformedInput)
		}
	}
	dateOf := func(day int) string {
		if start.IsZero() {
			return ""
		}
		return start.AddDate(0, 0, day-1).Format("2006-01-02")
	}

	led := NewLedger(s.net.DepotIDs())
	res := &Result{Status: model.RunCompleted}
	for day := 1; day <= s.cfg.HorizonDays; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trigs, projected, err := EvaluateTriggers(day, led, forecast, s.net, s.cfg)
		if err != nil {
			return nil, err
		}
		mandatory := make([]string, 0, len(trigs))
		reasons := make(map[string]string, len(trigs))
		for _, tr := range trigs {
			mandatory = append(mandatory, tr.DepotID)
			reasons[tr.DepotID] = tr.Reason
		}
		var optional []string
		if s.cfg.OpportunisticVisits {
			for _, id := range led.IDs() {
				if _, must := reasons[id]; !must {
					optional = append(optional, id)
				}
			}
		}

		plan, info, err := s.planner.PlanDay(ctx, opt.DayInput{Day: day, Mandatory: mandatory, Optional: optional, ProjectedOz: projected})
		if err != nil {
			return nil, err
		}
		fellBack := false
		if plan.Status == model.StatusInfeasible && len(optional) > 0 {
			// Retry with the mandatory core only before giving up.
			plan2, info2, err2 := s.planner.PlanDay(ctx, opt.DayInput{Day: day, Mandatory: mandatory, ProjectedOz: projected})
			if err2 != nil {
				return nil, err2
			}
			if plan2.Status != model.StatusInfeasible {
				plan, info = plan2, info2
				fellBack = true
			}
		}
		if plan.Status == model.StatusInfeasible {
			res.Status = model.RunInfeasible
			res.Violating = mandatory
			res.Totals.InfeasibleDay = day
			s.events.DayInfeasible(day, mandatory)
			s.events.Completed(res.Totals)
			return res, nil
		}

		visits := make(map[string]string, len(plan.Stops))
		for _, stop := range plan.Stops {
			r, ok := reasons[stop]
			if !ok {
				r = model.ReasonOpportunistic
			}
			visits[stop] = r
		}
		inv, err := led.Advance(day, forecast, visits)
		if err != nil {
			return nil, err
		}
		entry := model.RouteLogEntry{
			Day:           day,
			Date:          dateOf(day),
			Plan:          plan,
			Mandatory:     mandatory,
			FallbackUsed:  fellBack || info.GreedyFallback,
			SolveMillis:   info.SolveMillis,
			SolverBackend: info.Backend,
		}
		res.Routes = append(res.Routes, entry)
		res.Inventory = append(res.Inventory, inv...)
		res.Totals.DaysPlanned++
		res.Totals.TotalCost += plan.TotalCost
		res.Totals.TotalMiles += plan.DriveMiles
		res.Totals.TotalMinutes += plan.DriveMinutes + plan.ServiceMinutes
		res.Totals.TotalOz += plan.CollectedOz
		if plan.Status == model.StatusTimeLimited {
			res.Totals.TimeLimited++
		}
		if entry.FallbackUsed {
			res.Totals.FallbackDays++
		}
		s.events.DayPlanned(entry)
	}
	s.events.Completed(res.Totals)
	return res, nil
}
