package opt

import (
	"sort"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
)

// GreedyTour builds a hub-to-hub visiting order over the given depot
// ids with nearest-neighbor construction followed by 2-opt
// improvement. Distances come from the network travel matrix in
// minutes. Ties break on depot id so the result is deterministic.
func GreedyTour(net *network.Model, depotIDs []string) []string {
	if len(depotIDs) == 0 {
		return nil
	}
	remaining := append([]string(nil), depotIDs...)
	sort.Strings(remaining)
	hub := net.Hub().ID
	order := make([]string, 0, len(remaining))
	at := hub
	for len(remaining) > 0 {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if net.Minutes(at, remaining[i]) < net.Minutes(at, remaining[best]) {
				best = i
			}
		}
		at = remaining[best]
		order = append(order, at)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return improveTwoOpt(net, order, 10)
}

// improveTwoOpt applies 2-opt passes to reduce total tour minutes,
// treating the tour as hub -> order... -> hub.
func improveTwoOpt(net *network.Model, order []string, iterations int) []string {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]string(nil), order...)
	bestMin := TourMinutes(net, best)
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				m := TourMinutes(net, cand)
				if m+1e-9 < bestMin {
					best = cand
					bestMin = m
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []string, i, k int) []string {
	out := make([]string, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// TourMinutes is the drive time of hub -> order... -> hub.
func TourMinutes(net *network.Model, order []string) float64 {
	if len(order) == 0 {
		return 0
	}
	hub := net.Hub().ID
	total := net.Minutes(hub, order[0])
	for i := 0; i < len(order)-1; i++ {
		total += net.Minutes(order[i], order[i+1])
	}
	total += net.Minutes(order[len(order)-1], hub)
	return total
}

// TourMiles is the drive distance of hub -> order... -> hub.
func TourMiles(net *network.Model, order []string) float64 {
	if len(order) == 0 {
		return 0
	}
	hub := net.Hub().ID
	total := net.Miles(hub, order[0])
	for i := 0; i < len(order)-1; i++ {
		total += net.Miles(order[i], order[i+1])
	}
	total += net.Miles(order[len(order)-1], hub)
	return total
}
