// Package sim runs the rolling-horizon collection simulation: a
// per-depot inventory ledger, the visit triggers that feed the daily
// optimizer, and the scheduler that walks the horizon day by day.
package sim

import (
	"fmt"
	"sort"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

// DepotState is one depot's accumulated inventory between pickups.
type DepotState struct {
	LevelOz         float64
	DaysSincePickup int
}

// Ledger tracks depot inventory across simulated days. All depots
// start empty with a pickup assumed on day zero.
type Ledger struct {
	ids    []string
	states map[string]*DepotState
}

func NewLedger(depotIDs []string) *Ledger {
	ids := append([]string(nil), depotIDs...)
	sort.Strings(ids)
	states := make(map[string]*DepotState, len(ids))
	for _, id := range ids {
		states[id] = &DepotState{}
	}
	return &Ledger{ids: ids, states: states}
}

// State returns the current state for a depot. Unknown ids read as
// empty.
func (l *Ledger) State(id string) DepotState {
	if s, ok := l.states[id]; ok {
		return *s
	}
	return DepotState{}
}

// Advance applies one day: visited depots hand over everything
// accumulated plus the day's own production and reset; skipped depots
// accumulate. visits maps depot id to the reason it was visited. The
// returned records are the end-of-day rows in depot id order.
//
// Every depot must have a forecast cell for the day; a missing cell is
// a malformed input, not a zero.
func (l *Ledger) Advance(day int, forecast model.ForecastSet, visits map[string]string) ([]model.InventoryRecord, error) {
	records := make([]model.InventoryRecord, 0, len(l.ids))
	for _, id := range l.ids {
		produced, ok := forecast.Get(day, id)
		if !ok {
			return nil, fmt.Errorf("no forecast for depot %q on day %d: %w", id, day, model.ErrMalformedInput)
		}
		if produced < 0 {
			return nil, fmt.Errorf("negative forecast for depot %q on day %d: %w", id, day, model.ErrMalformedInput)
		}
		st := l.states[id]
		reason, visited := visits[id]
		if visited {
			st.LevelOz = 0
			st.DaysSincePickup = 0
		} else {
			st.LevelOz += produced
			st.DaysSincePickup++
		}
		records = append(records, model.InventoryRecord{
			Day:             day,
			DepotID:         id,
			LevelOz:         st.LevelOz,
			DaysSincePickup: st.DaysSincePickup,
			Visited:         visited,
			Reason:          reason,
		})
	}
	return records, nil
}

// IDs returns the tracked depot ids in sorted order.
func (l *Ledger) IDs() []string { return l.ids }
