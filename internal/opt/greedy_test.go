package opt

import (
	"math"
	"testing"
)

func TestGreedyTourNearestNeighbor(t *testing.T) {
	net := testNetwork(t)
	order := GreedyTour(net, []string{"b", "a", "c"})
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 stops", order)
	}
	// Nearest from the hub is c, then a (tie with b broken by id),
	// then b.
	want := []string{"c", "a", "b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if m := TourMinutes(net, order); math.Abs(m-235) > 1e-9 {
		t.Fatalf("tour minutes = %v, want 235", m)
	}
}

func TestGreedyTourEmpty(t *testing.T) {
	net := testNetwork(t)
	if order := GreedyTour(net, nil); order != nil {
		t.Fatalf("expected nil tour, got %v", order)
	}
	if m := TourMinutes(net, nil); m != 0 {
		t.Fatalf("empty tour minutes = %v, want 0", m)
	}
}

func TestTwoOptUncrosses(t *testing.T) {
	net := testNetwork(t)
	// a,c,b forces the expensive a-c and c-b hops; 2-opt should find
	// a cheaper arrangement.
	improved := improveTwoOpt(net, []string{"a", "c", "b"}, 10)
	if TourMinutes(net, improved) > TourMinutes(net, []string{"a", "c", "b"})-1 {
		t.Fatalf("2-opt failed to improve: %v (%v min)", improved, TourMinutes(net, improved))
	}
}

func TestTourMiles(t *testing.T) {
	net := testNetwork(t)
	if got := TourMiles(net, []string{"c"}); got != 20 {
		t.Fatalf("TourMiles = %v, want 20", got)
	}
}
