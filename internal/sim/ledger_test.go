package sim

import (
	"errors"
	"testing"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

func flatForecast(ids []string, days int, perDay float64) model.ForecastSet {
	f := model.ForecastSet{}
	for d := 1; d <= days; d++ {
		for _, id := range ids {
			f.Add(d, id, perDay)
		}
	}
	return f
}

func TestLedgerAccumulatesAndResets(t *testing.T) {
	led := NewLedger([]string{"b", "a"})
	f := flatForecast([]string{"a", "b"}, 3, 100)

	recs, err := led.Advance(1, f, nil)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	// Sorted order: a before b.
	if recs[0].DepotID != "a" || recs[1].DepotID != "b" {
		t.Fatalf("record order = %s,%s, want a,b", recs[0].DepotID, recs[1].DepotID)
	}
	if recs[0].LevelOz != 100 || recs[0].DaysSincePickup != 1 || recs[0].Visited {
		t.Fatalf("day 1 a = %+v", recs[0])
	}

	if _, err := led.Advance(2, f, nil); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	recs, err = led.Advance(3, f, map[string]string{"a": model.ReasonProjectedOverflow})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !recs[0].Visited || recs[0].LevelOz != 0 || recs[0].DaysSincePickup != 0 {
		t.Fatalf("visited a should reset, got %+v", recs[0])
	}
	if recs[0].Reason != model.ReasonProjectedOverflow {
		t.Fatalf("reason = %q", recs[0].Reason)
	}
	if recs[1].LevelOz != 300 || recs[1].DaysSincePickup != 3 {
		t.Fatalf("skipped b should keep accumulating, got %+v", recs[1])
	}
	if st := led.State("a"); st.LevelOz != 0 || st.DaysSincePickup != 0 {
		t.Fatalf("state a = %+v", st)
	}
}

func TestLedgerMissingForecastCell(t *testing.T) {
	led := NewLedger([]string{"a"})
	f := model.ForecastSet{}
	_, err := led.Advance(1, f, nil)
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestLedgerNegativeForecast(t *testing.T) {
	led := NewLedger([]string{"a"})
	f := model.ForecastSet{}
	f.Add(1, "a", -5)
	_, err := led.Advance(1, f, nil)
	if !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("err = %v, want malformed input", err)
	}
}

func TestLedgerLevelsNeverNegative(t *testing.T) {
	led := NewLedger([]string{"a"})
	f := flatForecast([]string{"a"}, 10, 50)
	for d := 1; d <= 10; d++ {
		var visits map[string]string
		if d%3 == 0 {
			visits = map[string]string{"a": model.ReasonMaxDaysExceeded}
		}
		recs, err := led.Advance(d, f, visits)
		if err != nil {
			t.Fatalf("Advance day %d: %v", d, err)
		}
		for _, r := range recs {
			if r.LevelOz < 0 {
				t.Fatalf("day %d: negative level %v", d, r.LevelOz)
			}
			if r.DaysSincePickup < 0 {
				t.Fatalf("day %d: negative days since pickup %d", d, r.DaysSincePickup)
			}
		}
	}
}
