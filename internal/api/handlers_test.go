package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("SOLVER_BACKEND", "")
	s, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func fullMatrix(miles, minutes float64, ids ...string) []model.TravelMetric {
	var out []model.TravelMetric
	for i, from := range ids {
		for j, to := range ids {
			if i == j {
				continue
			}
			out = append(out, model.TravelMetric{From: from, To: to, Miles: miles, Minutes: minutes})
		}
	}
	return out
}

func forecastDaily(days int, perDepot map[string]float64) []model.ForecastEntry {
	var out []model.ForecastEntry
	for day := 1; day <= days; day++ {
		for id, oz := range perDepot {
			out = append(out, model.ForecastEntry{Day: day, DepotID: id, VolumeOz: oz})
		}
	}
	return out
}

// simRequest is a two-depot network where D1 overflows every other day
// and D2 never crosses a trigger inside the four-day horizon.
func simRequest() model.SimulationRequest {
	return model.SimulationRequest{
		HubID:     "HUB",
		StartDate: "2025-03-01",
		Depots:    []model.Depot{{ID: "HUB", Name: "Bank"}, {ID: "D1"}, {ID: "D2"}},
		Matrix:    fullMatrix(10, 20, "HUB", "D1", "D2"),
		Forecasts: forecastDaily(4, map[string]float64{"D1": 500, "D2": 100}),
		Config:    &model.PlannerConfig{HorizonDays: 4},
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	h(rr, req)
	return rr
}

func doGet(t *testing.T, h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthReadyVersion(t *testing.T) {
	s := newTestServer(t)
	if rr := doGet(t, s.HealthHandler, "/healthz"); rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := doGet(t, s.ReadyHandler, "/readyz"); rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
	rr := doGet(t, s.VersionHandler, "/v1/version")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "version") {
		t.Fatalf("version: got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSimulationLifecycle(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.SimulationsHandler, "/v1/simulations", simRequest(), nil)
	if rr.Code != 200 {
		t.Fatalf("simulate: got %d: %s", rr.Code, rr.Body.String())
	}
	var run model.SimulationRun
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID == "" || run.Status != model.RunCompleted {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Totals.DaysPlanned != 4 {
		t.Fatalf("daysPlanned = %d, want 4", run.Totals.DaysPlanned)
	}
	if run.Totals.TotalOz != 2000 {
		t.Fatalf("totalOz = %v, want 2000", run.Totals.TotalOz)
	}
	if run.Totals.TotalMiles != 40 {
		t.Fatalf("totalMiles = %v, want 40", run.Totals.TotalMiles)
	}
	if math.Abs(run.Totals.TotalCost-76) > 1e-6 {
		t.Fatalf("totalCost = %v, want 76", run.Totals.TotalCost)
	}

	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+run.ID)
	if rr.Code != 200 {
		t.Fatalf("get run: %d", rr.Code)
	}
	var got model.SimulationRun
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.ID != run.ID || got.Config.HorizonDays != 4 {
		t.Fatalf("fetched run mismatch: %+v", got)
	}

	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+run.ID+"/route-log")
	if rr.Code != 200 {
		t.Fatalf("route log: %d", rr.Code)
	}
	var rl struct {
		Items []model.RouteLogEntry `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &rl)
	if len(rl.Items) != 4 {
		t.Fatalf("route log entries = %d, want 4", len(rl.Items))
	}
	if len(rl.Items[0].Plan.Stops) != 0 {
		t.Fatalf("day 1 should be idle, got stops %v", rl.Items[0].Plan.Stops)
	}
	day2 := rl.Items[1]
	if day2.Day != 2 || len(day2.Plan.Stops) != 1 || day2.Plan.Stops[0] != "D1" {
		t.Fatalf("day 2 plan wrong: %+v", day2)
	}
	if day2.Date != "2025-03-02" {
		t.Fatalf("day 2 date = %s", day2.Date)
	}
	if day2.Plan.CollectedOz != 1000 {
		t.Fatalf("day 2 collected %v, want 1000", day2.Plan.CollectedOz)
	}

	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+run.ID+"/inventory-log?day=4&depot=D2")
	if rr.Code != 200 {
		t.Fatalf("inventory log: %d", rr.Code)
	}
	var il struct {
		Items []model.InventoryRecord `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &il)
	if len(il.Items) != 1 {
		t.Fatalf("filtered inventory entries = %d, want 1", len(il.Items))
	}
	d2 := il.Items[0]
	if d2.LevelOz != 400 || d2.DaysSincePickup != 4 || d2.Visited {
		t.Fatalf("D2 day 4 state wrong: %+v", d2)
	}

	rr = doGet(t, s.SimulationsHandler, "/v1/simulations?limit=10")
	if rr.Code != 200 {
		t.Fatalf("list runs: %d", rr.Code)
	}
	var list struct {
		Items []model.SimulationRun `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 || list.Items[0].ID != run.ID {
		t.Fatalf("run listing wrong: %+v", list.Items)
	}

	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+run.ID+"/solves")
	if rr.Code != 200 {
		t.Fatalf("solves: %d", rr.Code)
	}
	var solves map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &solves)
	if len(solves) != 4 {
		t.Fatalf("solve stats for %d days, want 4", len(solves))
	}
}

func TestSimulationMalformedInput(t *testing.T) {
	s := newTestServer(t)

	req := simRequest()
	req.HubID = ""
	rr := postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing hub: got %d", rr.Code)
	}
	var p Problem
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	if p.Title != "MalformedInput" {
		t.Fatalf("title = %q", p.Title)
	}

	// a matrix without any D1-D2 pair fails network construction
	req = simRequest()
	req.Matrix = append(fullMatrix(10, 20, "HUB", "D1"), fullMatrix(10, 20, "HUB", "D2")...)
	rr = postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("incomplete matrix: got %d: %s", rr.Code, rr.Body.String())
	}

	// forecast naming an unlisted depot is rejected
	req = simRequest()
	req.Forecasts = append(req.Forecasts, model.ForecastEntry{Day: 1, DepotID: "NOPE", VolumeOz: 10})
	rr = postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown forecast depot: got %d", rr.Code)
	}

	// a client-supplied run id must be a uuid
	req = simRequest()
	req.RunID = "nightly-batch-7"
	rr = postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("non-uuid runId: got %d", rr.Code)
	}
}

func TestSimulationClientSuppliedID(t *testing.T) {
	s := newTestServer(t)
	const fixed = "3f1f8a0e-4c6b-4f7e-9a36-2a0d6c1b5e77"
	req := simRequest()
	req.RunID = fixed
	for i := 0; i < 2; i++ {
		rr := postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
		if rr.Code != 200 {
			t.Fatalf("post %d: %d: %s", i, rr.Code, rr.Body.String())
		}
		var run model.SimulationRun
		_ = json.Unmarshal(rr.Body.Bytes(), &run)
		if run.ID != fixed {
			t.Fatalf("post %d: id = %q", i, run.ID)
		}
	}
	// the replay lands on the same run, so the log has one copy per day
	rr := doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+fixed+"/route-log")
	var rl struct {
		Items []model.RouteLogEntry `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &rl)
	if len(rl.Items) != 4 {
		t.Fatalf("route log entries = %d, want 4", len(rl.Items))
	}
	rr = doGet(t, s.SimulationsHandler, "/v1/simulations")
	var list struct {
		Items []model.SimulationRun `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("runs listed = %d, want 1", len(list.Items))
	}
}

func TestSimulationForbiddenForViewer(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.SimulationsHandler, "/v1/simulations", simRequest(), map[string]string{"X-Role": "viewer"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer simulate: got %d", rr.Code)
	}
}

func TestSimulationInfeasibleDay(t *testing.T) {
	s := newTestServer(t)
	// D1 crosses the overflow threshold on day 1 but the round trip
	// alone blows the daily minutes budget.
	req := model.SimulationRequest{
		HubID:     "HUB",
		Depots:    []model.Depot{{ID: "HUB"}, {ID: "D1"}},
		Matrix:    fullMatrix(200, 400, "HUB", "D1"),
		Forecasts: forecastDaily(2, map[string]float64{"D1": 900}),
		Config:    &model.PlannerConfig{HorizonDays: 2},
	}
	rr := postJSON(t, s.SimulationsHandler, "/v1/simulations", req, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("infeasible run: got %d: %s", rr.Code, rr.Body.String())
	}
	var p Problem
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	if p.Title != "DailyInfeasible" || !strings.Contains(p.Detail, "D1") {
		t.Fatalf("problem = %+v", p)
	}
	if !strings.HasPrefix(p.Instance, "/v1/simulations/") {
		t.Fatalf("instance should point at the run, got %q", p.Instance)
	}

	// the halted run is persisted with its violating depots
	runID := strings.TrimPrefix(p.Instance, "/v1/simulations/")
	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+runID)
	if rr.Code != 200 {
		t.Fatalf("get halted run: %d", rr.Code)
	}
	var run model.SimulationRun
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if run.Status != model.RunInfeasible {
		t.Fatalf("status = %q", run.Status)
	}
	if len(run.Violating) != 1 || run.Violating[0] != "D1" {
		t.Fatalf("violating = %v", run.Violating)
	}
	if run.Totals.InfeasibleDay != 1 {
		t.Fatalf("infeasibleDay = %d", run.Totals.InfeasibleDay)
	}

	// no days completed, so the route log is empty but not a 404
	rr = doGet(t, s.SimulationByIDHandler, "/v1/simulations/"+runID+"/route-log")
	if rr.Code != 200 {
		t.Fatalf("route log of halted run: %d", rr.Code)
	}
	var rl struct {
		Items []model.RouteLogEntry `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &rl)
	if len(rl.Items) != 0 {
		t.Fatalf("route log entries = %d, want 0", len(rl.Items))
	}
}

func TestSimulationNotFound(t *testing.T) {
	s := newTestServer(t)
	if rr := doGet(t, s.SimulationByIDHandler, "/v1/simulations/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("get unknown run: %d", rr.Code)
	}
	if rr := doGet(t, s.SimulationByIDHandler, "/v1/simulations/nope/route-log"); rr.Code != http.StatusNotFound {
		t.Fatalf("route log of unknown run: %d", rr.Code)
	}
}

func TestNetworkValidate(t *testing.T) {
	s := newTestServer(t)
	req := simRequest()
	req.Depots = append(req.Depots, model.Depot{ID: "D9", Class: model.ClassShipping})
	rr := postJSON(t, s.NetworkValidateHandler, "/v1/network/validate", req, nil)
	if rr.Code != 200 {
		t.Fatalf("validate: got %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Valid           bool     `json:"valid"`
		Depots          int      `json:"depots"`
		ShippingDropped []string `json:"shippingDropped"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if !out.Valid || out.Depots != 2 {
		t.Fatalf("validate result: %+v", out)
	}
	if len(out.ShippingDropped) != 1 || out.ShippingDropped[0] != "D9" {
		t.Fatalf("shippingDropped = %v", out.ShippingDropped)
	}

	bad := simRequest()
	bad.Matrix = append(fullMatrix(10, 20, "HUB", "D1"), fullMatrix(10, 20, "HUB", "D2")...)
	rr = postJSON(t, s.NetworkValidateHandler, "/v1/network/validate", bad, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid network accepted: %d", rr.Code)
	}
}

func TestPlannerConfigRoundTrip(t *testing.T) {
	s := newTestServer(t)
	rr := doGet(t, s.PlannerConfigHandler, "/v1/planner/config")
	if rr.Code != 200 {
		t.Fatalf("get config: %d", rr.Code)
	}
	var cfg model.PlannerConfig
	_ = json.Unmarshal(rr.Body.Bytes(), &cfg)
	if cfg.HorizonDays != 20 || cfg.OverflowThresholdOz != 850 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}

	b, _ := json.Marshal(model.PlannerConfig{OverflowThresholdOz: 700})
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader(b))
	rr = httptest.NewRecorder()
	s.AdminPlannerConfigHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("put config: %d: %s", rr.Code, rr.Body.String())
	}
	var merged model.PlannerConfig
	_ = json.Unmarshal(rr.Body.Bytes(), &merged)
	if merged.OverflowThresholdOz != 700 || merged.HorizonDays != 20 {
		t.Fatalf("merged config wrong: %+v", merged)
	}

	rr = doGet(t, s.PlannerConfigHandler, "/v1/planner/config")
	_ = json.Unmarshal(rr.Body.Bytes(), &cfg)
	if cfg.OverflowThresholdOz != 700 {
		t.Fatalf("override not reflected: %+v", cfg)
	}

	req = httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader(b))
	req.Header.Set("X-Role", "viewer")
	rr = httptest.NewRecorder()
	s.AdminPlannerConfigHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer put config: %d", rr.Code)
	}

	bad, _ := json.Marshal(map[string]any{"solver": map[string]any{"backend": "cplex"}})
	req = httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader(bad))
	rr = httptest.NewRecorder()
	s.AdminPlannerConfigHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad backend accepted: %d", rr.Code)
	}
}

func TestSubscriptionsAndWebhookEnqueue(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", model.SubscriptionRequest{
		URL:    "http://example.com/hook",
		Events: []string{"simulation.completed"},
		Secret: "s3cret",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d: %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)
	if sub.ID == "" {
		t.Fatalf("subscription id missing: %+v", sub)
	}

	rr = doGet(t, s.SubscriptionsHandler, "/v1/subscriptions")
	var subs struct {
		Items []model.Subscription `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &subs)
	if len(subs.Items) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs.Items))
	}

	if rr = postJSON(t, s.SimulationsHandler, "/v1/simulations", simRequest(), nil); rr.Code != 200 {
		t.Fatalf("simulate: %d", rr.Code)
	}

	rr = doGet(t, s.WebhookDeliveriesHandler, "/v1/admin/webhook-deliveries")
	if rr.Code != 200 {
		t.Fatalf("list deliveries: %d", rr.Code)
	}
	var dl struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &dl)
	if len(dl.Items) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(dl.Items))
	}
	if dl.Items[0]["eventType"] != "simulation.completed" || dl.Items[0]["status"] != "pending" {
		t.Fatalf("delivery wrong: %+v", dl.Items[0])
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete subscription: %d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("double delete: %d", rr.Code)
	}
}

func TestSSEStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(s.SimulationByIDHandler))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/simulations/r1/events/stream")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	br := bufio.NewReader(resp.Body)
	line, err := br.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "event: heartbeat") {
		t.Fatalf("first frame = %q, err %v", line, err)
	}
	if _, err := br.ReadString('\n'); err != nil { // heartbeat data
		t.Fatalf("heartbeat data: %v", err)
	}
	if _, err := br.ReadString('\n'); err != nil { // frame separator
		t.Fatalf("heartbeat separator: %v", err)
	}

	// the subscriber is registered before the heartbeat goes out, so
	// this publish lands in its buffer
	s.Broker.Publish("r1", SSEEvent{Type: "day.planned", Data: map[string]any{"day": 1}})
	line, err = br.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "event: day.planned") {
		t.Fatalf("event frame = %q, err %v", line, err)
	}
	data, err := br.ReadString('\n')
	if err != nil || !strings.Contains(data, "\"day\":1") {
		t.Fatalf("data frame = %q, err %v", data, err)
	}
}

func TestEventsWSStream(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/simulations/", s.SimulationByIDHandler)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/simulations/r2/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the handler subscribes just after the upgrade; publish until a
	// frame comes back
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				s.Broker.Publish("r2", SSEEvent{Type: "day.planned", Data: map[string]any{"runId": "r2", "day": 1}})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var evt SSEEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if evt.Type != "day.planned" || evt.Data["runId"] != "r2" {
		t.Fatalf("frame = %+v", evt)
	}
}

func TestImportCSV(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("hubId", "HUB")
	_ = mw.WriteField("startDate", "2025-03-01")
	_ = mw.WriteField("config", `{"horizonDays":3}`)
	fw, _ := mw.CreateFormFile("depots", "depots.csv")
	_, _ = fw.Write([]byte("Depo,Name,Class,Capacity (oz)\nHUB,Bank,,\nD1,One,truck,900\nD7,Seven,shipping,\n"))
	fw, _ = mw.CreateFormFile("matrix", "matrix.csv")
	_, _ = fw.Write([]byte("From,To,Miles,Minutes\nHUB,D1,10,20\nD1,HUB,10,20\n"))
	fw, _ = mw.CreateFormFile("forecast", "forecast.csv")
	_, _ = fw.Write([]byte("Date_2025,Depo,Volume_2025\n2025-03-01,D1,500\n2025-03-02,D1,500\n2025-03-02,D7,999\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.ImportHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("import: %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Run             model.SimulationRun `json:"run"`
		ShippingDropped []string            `json:"shippingDropped"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Run.Status != model.RunCompleted || out.Run.Totals.DaysPlanned != 3 {
		t.Fatalf("run = %+v", out.Run)
	}
	if out.Run.Totals.TotalOz != 1000 {
		t.Fatalf("totalOz = %v, want 1000", out.Run.Totals.TotalOz)
	}
	if len(out.ShippingDropped) != 1 || out.ShippingDropped[0] != "D7" {
		t.Fatalf("shippingDropped = %v", out.ShippingDropped)
	}

	// a missing file is a 400, not a panic
	var empty bytes.Buffer
	mw = multipart.NewWriter(&empty)
	_ = mw.WriteField("hubId", "HUB")
	_ = mw.WriteField("startDate", "2025-03-01")
	_ = mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/v1/simulations/import", &empty)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr = httptest.NewRecorder()
	s.ImportHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("import without files: %d", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	hit := func(tenant string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/simulations", nil)
		req.Header.Set("X-Tenant-Id", tenant)
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if got := hit("t_rl"); got != 200 {
		t.Fatalf("first request: %d", got)
	}
	if got := hit("t_rl"); got != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", got)
	}
	if got := hit("t_other"); got != 200 {
		t.Fatalf("other tenant should pass, got %d", got)
	}
}

func TestDebugRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/debug", nil)
	req.Header.Set("X-Role", "viewer")
	rr := httptest.NewRecorder()
	s.DebugJSON(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer debug: %d", rr.Code)
	}
	rr = doGet(t, s.DebugJSON, "/v1/debug")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "build") {
		t.Fatalf("admin debug: %d %s", rr.Code, rr.Body.String())
	}
}
