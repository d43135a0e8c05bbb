package sim

import (
	"fmt"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
)

// Trigger marks one depot that must be visited on a day, and why.
type Trigger struct {
	DepotID     string
	Reason      string
	ProjectedOz float64
}

// EvaluateTriggers decides which depots the day's route must include.
// Projection is what the depot would hold at end of day if skipped:
// current level plus the day's forecast. A visit becomes mandatory
// when that projection crosses the depot's overflow threshold, when
// the depot would exceed the allowed days between pickups, or when one
// more day of waiting would push the pickup past vehicle capacity.
//
// The second return value holds the projected pickup volume for every
// depot, visited or not; the optimizer uses it for capacity and
// credit terms.
func EvaluateTriggers(day int, led *Ledger, forecast model.ForecastSet, net *network.Model, cfg model.PlannerConfig) ([]Trigger, map[string]float64, error) {
	var triggers []Trigger
	projected := make(map[string]float64, len(led.IDs()))
	for _, id := range led.IDs() {
		produced, ok := forecast.Get(day, id)
		if !ok {
			return nil, nil, fmt.Errorf("no forecast for depot %q on day %d: %w", id, day, model.ErrMalformedInput)
		}
		st := led.State(id)
		proj := st.LevelOz + produced
		projected[id] = proj

		threshold := net.OverflowThreshold(id, cfg.OverflowThresholdOz)
		next, _ := forecast.Get(day+1, id) // zero beyond the horizon
		var reason string
		switch {
		case proj > threshold:
			reason = model.ReasonProjectedOverflow
		case cfg.MaxDaysSincePickup > 0 && st.DaysSincePickup >= cfg.MaxDaysSincePickup:
			reason = model.ReasonMaxDaysExceeded
		case cfg.VehicleCapacityOz > 0 && proj+next > cfg.VehicleCapacityOz:
			reason = model.ReasonCapacityForced
		default:
			continue
		}
		triggers = append(triggers, Trigger{DepotID: id, Reason: reason, ProjectedOz: proj})
	}
	return triggers, projected, nil
}
