package sim

import (
	"errors"
	"testing"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
)

// Symmetric two-depot network, every hop 10 miles / 20 minutes.
func simNetwork(t *testing.T, depots ...model.Depot) *network.Model {
	t.Helper()
	if len(depots) == 0 {
		depots = []model.Depot{
			{ID: "a", Class: model.ClassTruck},
			{ID: "b", Class: model.ClassTruck},
		}
	}
	hub := model.Depot{ID: "hub"}
	var matrix []model.TravelMetric
	nodes := append([]model.Depot{hub}, depots...)
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			matrix = append(matrix, model.TravelMetric{From: nodes[i].ID, To: nodes[j].ID, Miles: 10, Minutes: 20})
		}
	}
	net, err := network.New(hub, depots, matrix)
	if err != nil {
		t.Fatalf("network.New: %v", err)
	}
	return net
}

func simConfig() model.PlannerConfig {
	return model.PlannerConfig{
		HorizonDays:         20,
		DailyMinutesBudget:  660,
		OverflowThresholdOz: 850,
		MaxDaysSincePickup:  150,
		VehicleCapacityOz:   1000,
		WagePerHour:         36,
		FuelPerMile:         0.70,
		Solver:              model.SolverConfig{Backend: "builtin", MaxSolveMillis: 10000, MaxNodes: 200000},
	}
}

func advanceDays(t *testing.T, led *Ledger, f model.ForecastSet, through int) {
	t.Helper()
	for d := 1; d <= through; d++ {
		if _, err := led.Advance(d, f, nil); err != nil {
			t.Fatalf("Advance day %d: %v", d, err)
		}
	}
}

func TestTriggerProjectedOverflow(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	f := flatForecast([]string{"a", "b"}, 5, 300)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 2) // both at 600

	trigs, projected, err := EvaluateTriggers(3, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 2 {
		t.Fatalf("triggers = %+v, want both depots", trigs)
	}
	for _, tr := range trigs {
		if tr.Reason != model.ReasonProjectedOverflow {
			t.Fatalf("reason = %s, want ProjectedOverflow", tr.Reason)
		}
		if tr.ProjectedOz != 900 {
			t.Fatalf("projected = %v, want 900", tr.ProjectedOz)
		}
	}
	if projected["a"] != 900 || projected["b"] != 900 {
		t.Fatalf("projected map = %v", projected)
	}
}

func TestTriggerBelowThresholdStaysQuiet(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	f := flatForecast([]string{"a", "b"}, 5, 300)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 1) // both at 300

	trigs, _, err := EvaluateTriggers(2, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 0 {
		t.Fatalf("projected 600 of 850 should not trigger, got %+v", trigs)
	}
}

func TestTriggerMaxDaysSincePickup(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	cfg.MaxDaysSincePickup = 3
	f := flatForecast([]string{"a", "b"}, 10, 1)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 3) // both now 3 days since pickup

	trigs, _, err := EvaluateTriggers(4, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 2 {
		t.Fatalf("triggers = %+v, want both", trigs)
	}
	if trigs[0].Reason != model.ReasonMaxDaysExceeded {
		t.Fatalf("reason = %s, want MaxDaysExceeded", trigs[0].Reason)
	}

	// One day earlier nothing fires.
	led = NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 2)
	trigs, _, err = EvaluateTriggers(3, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 0 {
		t.Fatalf("2 days since pickup must not trigger at limit 3, got %+v", trigs)
	}
}

func TestTriggerCapacityForced(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	f := flatForecast([]string{"a", "b"}, 5, 400)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 1) // both at 400

	// Projected 800 stays under the 850 threshold, but waiting one
	// more day would make the pickup 1200 oz against a 1000 oz truck.
	trigs, _, err := EvaluateTriggers(2, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 2 {
		t.Fatalf("triggers = %+v, want both", trigs)
	}
	if trigs[0].Reason != model.ReasonCapacityForced {
		t.Fatalf("reason = %s, want CapacityForced", trigs[0].Reason)
	}
}

func TestTriggerOverflowTakesPrecedence(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	f := flatForecast([]string{"a", "b"}, 5, 500)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 1)

	trigs, _, err := EvaluateTriggers(2, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 2 || trigs[0].Reason != model.ReasonProjectedOverflow {
		t.Fatalf("triggers = %+v, want ProjectedOverflow first", trigs)
	}
}

func TestTriggerDepotThresholdOverride(t *testing.T) {
	depots := []model.Depot{
		{ID: "a", Class: model.ClassTruck},
		{ID: "b", Class: model.ClassTruck, CapacityOz: 500},
	}
	net := simNetwork(t, depots...)
	cfg := simConfig()
	f := flatForecast([]string{"a", "b"}, 5, 300)
	led := NewLedger(net.DepotIDs())
	advanceDays(t, led, f, 1)

	trigs, _, err := EvaluateTriggers(2, led, f, net, cfg)
	if err != nil {
		t.Fatalf("EvaluateTriggers: %v", err)
	}
	if len(trigs) != 1 || trigs[0].DepotID != "b" {
		t.Fatalf("only b with its 500 oz cap should trigger at 600, got %+v", trigs)
	}
}

func TestTriggerMissingForecast(t *testing.T) {
	net := simNetwork(t)
	cfg := simConfig()
	led := NewLedger(net.DepotIDs())
	_, _, err := EvaluateTriggers(1, led, model.ForecastSet{}, net, cfg)
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("err = %v, want malformed input", err)
	}
}
