package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

// validateSimulationRequest checks the wire-level shape of a request.
// Structural problems the network model detects itself (missing matrix
// pairs, duplicate depots) surface later via ErrMalformedInput.
func validateSimulationRequest(req *model.SimulationRequest) error {
	if strings.TrimSpace(req.HubID) == "" {
		return fmt.Errorf("hubId is required")
	}
	if len(req.Depots) == 0 {
		return fmt.Errorf("depots must not be empty")
	}
	if len(req.Matrix) == 0 {
		return fmt.Errorf("matrix must not be empty")
	}
	if req.StartDate != "" {
		if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
			return fmt.Errorf("startDate must be YYYY-MM-DD")
		}
	}
	for i, d := range req.Depots {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("depots[%d]: id is required", i)
		}
	}
	for i, m := range req.Matrix {
		if m.From == "" || m.To == "" {
			return fmt.Errorf("matrix[%d]: from and to are required", i)
		}
		if m.Miles < 0 || m.Minutes < 0 {
			return fmt.Errorf("matrix[%d]: miles and minutes must be >= 0", i)
		}
	}
	for i, f := range req.Forecasts {
		if f.Day < 1 {
			return fmt.Errorf("forecasts[%d]: day must be >= 1", i)
		}
		if f.DepotID == "" {
			return fmt.Errorf("forecasts[%d]: depotId is required", i)
		}
		if f.VolumeOz < 0 {
			return fmt.Errorf("forecasts[%d]: volumeOz must be >= 0", i)
		}
	}
	return nil
}
