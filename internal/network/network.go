// Package network builds the validated hub-and-depot travel model that
// the daily optimizer plans over.
package network

import (
	"fmt"
	"sort"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

// Model is an immutable travel network: one hub, the truck-served
// candidate depots, and a complete pairwise travel matrix. Build it
// with New; a Model that exists has passed validation.
type Model struct {
	hub     model.Depot
	depots  []model.Depot
	byID    map[string]model.Depot
	metrics map[string]map[string]model.TravelMetric
}

// New validates the inputs and constructs the Model. Depots are stored
// sorted by id so iteration order is stable across runs. Matrix entries
// may be given in one direction only; the reverse direction is mirrored
// when absent.
func New(hub model.Depot, depots []model.Depot, matrix []model.TravelMetric) (*Model, error) {
	if hub.ID == "" {
		return nil, fmt.Errorf("hub id is required: %w", model.ErrMalformedInput)
	}
	byID := map[string]model.Depot{}
	sorted := make([]model.Depot, 0, len(depots))
	for _, d := range depots {
		if d.ID == "" {
			return nil, fmt.Errorf("depot with empty id: %w", model.ErrMalformedInput)
		}
		if d.ID == hub.ID {
			return nil, fmt.Errorf("depot %q duplicates the hub id: %w", d.ID, model.ErrMalformedInput)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate depot id %q: %w", d.ID, model.ErrMalformedInput)
		}
		if d.Class == model.ClassShipping {
			return nil, fmt.Errorf("depot %q is shipping-class and cannot be routed: %w", d.ID, model.ErrMalformedInput)
		}
		if d.CapacityOz < 0 {
			return nil, fmt.Errorf("depot %q: capacityOz cannot be negative: %w", d.ID, model.ErrMalformedInput)
		}
		byID[d.ID] = d
		sorted = append(sorted, d)
	}
	if len(sorted) == 0 {
		return nil, fmt.Errorf("at least one truck depot is required: %w", model.ErrMalformedInput)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	metrics := map[string]map[string]model.TravelMetric{}
	put := func(tm model.TravelMetric) error {
		if tm.From == tm.To {
			return nil
		}
		if metrics[tm.From] == nil {
			metrics[tm.From] = map[string]model.TravelMetric{}
		}
		if prev, ok := metrics[tm.From][tm.To]; ok && (prev.Miles != tm.Miles || prev.Minutes != tm.Minutes) {
			return fmt.Errorf("conflicting matrix entries for %s->%s: %w", tm.From, tm.To, model.ErrMalformedInput)
		}
		metrics[tm.From][tm.To] = tm
		return nil
	}
	known := func(id string) bool {
		if id == hub.ID {
			return true
		}
		_, ok := byID[id]
		return ok
	}
	for _, tm := range matrix {
		if !known(tm.From) || !known(tm.To) {
			return nil, fmt.Errorf("matrix references unknown depot %s->%s: %w", tm.From, tm.To, model.ErrMalformedInput)
		}
		if tm.Miles < 0 || tm.Minutes < 0 {
			return nil, fmt.Errorf("matrix %s->%s: miles and minutes must be non-negative: %w", tm.From, tm.To, model.ErrMalformedInput)
		}
		if err := put(tm); err != nil {
			return nil, err
		}
	}
	// Mirror one-directional entries, then require completeness.
	ids := append([]string{hub.ID}, idsOf(sorted)...)
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			if _, ok := metrics[a][b]; ok {
				continue
			}
			if rev, ok := metrics[b][a]; ok {
				if err := put(model.TravelMetric{From: a, To: b, Miles: rev.Miles, Minutes: rev.Minutes}); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("matrix missing pair %s->%s: %w", a, b, model.ErrMalformedInput)
		}
	}
	return &Model{hub: hub, depots: sorted, byID: byID, metrics: metrics}, nil
}

func idsOf(depots []model.Depot) []string {
	out := make([]string, len(depots))
	for i, d := range depots {
		out[i] = d.ID
	}
	return out
}

func (m *Model) Hub() model.Depot { return m.hub }

// Depots returns the truck candidates sorted by id.
func (m *Model) Depots() []model.Depot { return m.depots }

func (m *Model) DepotIDs() []string { return idsOf(m.depots) }

func (m *Model) Depot(id string) (model.Depot, bool) {
	d, ok := m.byID[id]
	return d, ok
}

// Metric returns the directed travel metric between two known nodes.
// Both nodes are guaranteed present after New succeeds.
func (m *Model) Metric(from, to string) model.TravelMetric {
	if from == to {
		return model.TravelMetric{From: from, To: to}
	}
	return m.metrics[from][to]
}

func (m *Model) Minutes(from, to string) float64 { return m.Metric(from, to).Minutes }

func (m *Model) Miles(from, to string) float64 { return m.Metric(from, to).Miles }

// OverflowThreshold resolves the effective overflow level for a depot:
// its own storage capacity when set, otherwise the configured default.
func (m *Model) OverflowThreshold(id string, defaultOz float64) float64 {
	if d, ok := m.byID[id]; ok && d.CapacityOz > 0 {
		return d.CapacityOz
	}
	return defaultOz
}
