package api

import (
	"strings"
	"testing"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

func validRequest() model.SimulationRequest {
	return model.SimulationRequest{
		HubID:  "HUB",
		Depots: []model.Depot{{ID: "HUB"}, {ID: "D1"}},
		Matrix: []model.TravelMetric{
			{From: "HUB", To: "D1", Miles: 10, Minutes: 20},
			{From: "D1", To: "HUB", Miles: 10, Minutes: 20},
		},
		Forecasts: []model.ForecastEntry{{Day: 1, DepotID: "D1", VolumeOz: 100}},
	}
}

func TestValidateSimulationRequest(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.SimulationRequest)
		want   string // substring of the error, empty means valid
	}{
		{"valid", func(r *model.SimulationRequest) {}, ""},
		{"missing hub", func(r *model.SimulationRequest) { r.HubID = " " }, "hubId"},
		{"no depots", func(r *model.SimulationRequest) { r.Depots = nil }, "depots"},
		{"no matrix", func(r *model.SimulationRequest) { r.Matrix = nil }, "matrix"},
		{"bad start date", func(r *model.SimulationRequest) { r.StartDate = "03/01/2025" }, "startDate"},
		{"empty depot id", func(r *model.SimulationRequest) { r.Depots[1].ID = "" }, "depots[1]"},
		{"matrix missing to", func(r *model.SimulationRequest) { r.Matrix[0].To = "" }, "matrix[0]"},
		{"negative minutes", func(r *model.SimulationRequest) { r.Matrix[1].Minutes = -5 }, "matrix[1]"},
		{"forecast day zero", func(r *model.SimulationRequest) { r.Forecasts[0].Day = 0 }, "day must be >= 1"},
		{"forecast no depot", func(r *model.SimulationRequest) { r.Forecasts[0].DepotID = "" }, "depotId"},
		{"negative volume", func(r *model.SimulationRequest) { r.Forecasts[0].VolumeOz = -1 }, "volumeOz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := validateSimulationRequest(&req)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
