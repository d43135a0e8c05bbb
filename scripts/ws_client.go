// Package main runs a demo WebSocket client that follows a simulation
// run's live events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Pick the run id up front so the socket is attached before the
	// first day is planned.
	runID := uuid.New().String()
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/simulations/" + runID + "/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt wsEvent
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, string(b))
			if evt.Type == "simulation.completed" || evt.Type == "day.infeasible" {
				return
			}
		}
	}()

	// Give the server a moment to register the subscription.
	time.Sleep(500 * time.Millisecond)

	body := []byte(fmt.Sprintf(`{
  "runId": %q,
  "hubId": "HUB",
  "startDate": "2025-03-01",
  "depots": [{"id": "HUB", "name": "Bank"}, {"id": "D1"}, {"id": "D2"}],
  "matrix": [
    {"from": "HUB", "to": "D1", "miles": 12, "minutes": 25},
    {"from": "D1", "to": "HUB", "miles": 12, "minutes": 25},
    {"from": "HUB", "to": "D2", "miles": 18, "minutes": 30},
    {"from": "D2", "to": "HUB", "miles": 18, "minutes": 30},
    {"from": "D1", "to": "D2", "miles": 9, "minutes": 15},
    {"from": "D2", "to": "D1", "miles": 9, "minutes": 15}
  ],
  "forecasts": [
    {"day": 1, "depotId": "D1", "volumeOz": 500}, {"day": 1, "depotId": "D2", "volumeOz": 120},
    {"day": 2, "depotId": "D1", "volumeOz": 500}, {"day": 2, "depotId": "D2", "volumeOz": 120},
    {"day": 3, "depotId": "D1", "volumeOz": 500}, {"day": 3, "depotId": "D2", "volumeOz": 120},
    {"day": 4, "depotId": "D1", "volumeOz": 500}, {"day": 4, "depotId": "D2", "volumeOz": 120},
    {"day": 5, "depotId": "D1", "volumeOz": 500}, {"day": 5, "depotId": "D2", "volumeOz": 120},
    {"day": 6, "depotId": "D1", "volumeOz": 500}, {"day": 6, "depotId": "D2", "volumeOz": 120}
  ],
  "config": {"horizonDays": 6}
}`, runID))
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/simulations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var run struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Totals struct {
			DaysPlanned int     `json:"daysPlanned"`
			TotalOz     float64 `json:"totalOz"`
			TotalCost   float64 `json:"totalCost"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("run %s: %s, %d days, %.0f oz collected, $%.2f", run.ID, run.Status, run.Totals.DaysPlanned, run.Totals.TotalOz, run.Totals.TotalCost)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
