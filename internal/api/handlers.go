package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/buildinfo"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/config"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/ingest"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/metrics"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/network"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/opt"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/sim"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/store"
)

// SimulationsHandler handles POST and GET /v1/simulations.
func (s *Server) SimulationsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SimulationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		s.runSimulation(w, r, &req)
	case http.MethodGet:
		ctx, tenant := s.withTenant(r)
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListRuns(ctx, tenant, status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List simulations failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// runSimulation validates, executes and persists one horizon run, then
// writes the stored run summary. An infeasible horizon answers 422 with
// the over-committed depots named in the problem detail; the partial
// run stays retrievable at the instance path.
func (s *Server) runSimulation(w http.ResponseWriter, r *http.Request, req *model.SimulationRequest) {
	pr := s.getPrincipal(r)
	if !pr.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	run, err := s.executeSimulation(ctx, tenant, req)
	if err != nil {
		writeSimulationError(w, r, err)
		return
	}
	if run.Status == model.RunInfeasible {
		writeProblem(w, http.StatusUnprocessableEntity, "DailyInfeasible",
			fmt.Sprintf("day %d: over-committed depots: %s", run.Totals.InfeasibleDay, strings.Join(run.Violating, ", ")),
			"/v1/simulations/"+run.ID)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeSimulationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrMalformedInput):
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
	case errors.Is(err, opt.ErrTimeLimit):
		writeProblem(w, http.StatusServiceUnavailable, "SolverTimeLimitReached", err.Error(), r.URL.Path)
	case errors.Is(err, context.Canceled):
		// client went away mid-run; nothing useful to write
	default:
		writeProblem(w, http.StatusInternalServerError, "Simulation failed", err.Error(), r.URL.Path)
	}
}

// executeSimulation runs the rolling horizon and persists the outcome,
// including the partial logs of a run that halts infeasible. Progress
// is published to the event broker as days complete; webhooks fire
// once at the end.
func (s *Server) executeSimulation(ctx context.Context, tenant string, req *model.SimulationRequest) (model.SimulationRun, error) {
	if req.TenantID == "" {
		req.TenantID = tenant
	}
	if err := validateSimulationRequest(req); err != nil {
		return model.SimulationRun{}, fmt.Errorf("%v: %w", err, model.ErrMalformedInput)
	}
	cfg, err := s.effectiveConfig(ctx, tenant, req.Config)
	if err != nil {
		return model.SimulationRun{}, err
	}
	hub, depots, shipping := splitHub(req.HubID, req.Depots)
	net, err := network.New(hub, depots, req.Matrix)
	if err != nil {
		return model.SimulationRun{}, err
	}
	forecast, err := buildForecast(req.Forecasts, net.DepotIDs(), shipping, cfg.HorizonDays)
	if err != nil {
		return model.SimulationRun{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	} else if _, err := uuid.Parse(runID); err != nil {
		return model.SimulationRun{}, fmt.Errorf("runId must be a UUID: %w", model.ErrMalformedInput)
	}
	sched, err := sim.NewScheduler(net, cfg, &brokerEvents{srv: s, runID: runID})
	if err != nil {
		return model.SimulationRun{}, err
	}
	res, err := sched.Run(ctx, req.StartDate, forecast)
	if err != nil {
		return model.SimulationRun{}, err
	}

	run := model.SimulationRun{
		ID:        runID,
		TenantID:  tenant,
		Status:    res.Status,
		StartDate: req.StartDate,
		Config:    cfg,
		Totals:    res.Totals,
		Violating: res.Violating,
	}
	stored, err := s.Store.CreateRun(ctx, run)
	if err != nil {
		return model.SimulationRun{}, err
	}
	if len(res.Routes) > 0 {
		if err := s.Store.AppendRouteLog(ctx, tenant, stored.ID, res.Routes); err != nil {
			return model.SimulationRun{}, err
		}
	}
	if len(res.Inventory) > 0 {
		if err := s.Store.AppendInventoryLog(ctx, tenant, stored.ID, res.Inventory); err != nil {
			return model.SimulationRun{}, err
		}
	}

	metrics.SimulationRuns.WithLabelValues(stored.Status).Inc()
	metrics.DaysPlanned.Add(float64(res.Totals.DaysPlanned))
	if stored.Status == model.RunInfeasible {
		metrics.InfeasibleDays.Inc()
		s.Pub.Emit(ctx, tenant, "simulation.infeasible", map[string]any{
			"runId":     stored.ID,
			"day":       res.Totals.InfeasibleDay,
			"violating": res.Violating,
		})
		return stored, nil
	}
	s.Pub.Emit(ctx, tenant, "simulation.completed", map[string]any{
		"runId":  stored.ID,
		"totals": res.Totals,
	})
	return stored, nil
}

// effectiveConfig layers defaults, the tenant's stored override and the
// per-request override, then validates the result.
func (s *Server) effectiveConfig(ctx context.Context, tenant string, override *model.PlannerConfig) (model.PlannerConfig, error) {
	cfg := config.Merge(config.Defaults(), &s.Cfg.Planner)
	if stored, err := s.Store.GetPlannerConfig(ctx, tenant); err == nil && stored != nil {
		cfg = config.Merge(cfg, stored)
	}
	cfg = config.Merge(cfg, override)
	if err := config.Validate(cfg); err != nil {
		return model.PlannerConfig{}, err
	}
	return cfg, nil
}

// splitHub pulls the hub row out of the roster. Shipping-classified
// depots mail their inventory and are dropped from routing; their ids
// come back so callers can report what was excluded.
func splitHub(hubID string, all []model.Depot) (model.Depot, []model.Depot, []string) {
	hub := model.Depot{ID: hubID}
	var depots []model.Depot
	var shipping []string
	for _, d := range all {
		switch {
		case d.ID == hubID:
			hub = d
		case strings.EqualFold(d.Class, model.ClassShipping):
			shipping = append(shipping, d.ID)
		default:
			depots = append(depots, d)
		}
	}
	return hub, depots, shipping
}

// buildForecast densifies request forecasts over the horizon so every
// depot-day has a cell. Rows for shipping depots are skipped; rows for
// ids outside the roster are rejected.
func buildForecast(entries []model.ForecastEntry, depotIDs, shipping []string, horizon int) (model.ForecastSet, error) {
	known := make(map[string]bool, len(depotIDs))
	for _, id := range depotIDs {
		known[id] = true
	}
	mailed := make(map[string]bool, len(shipping))
	for _, id := range shipping {
		mailed[id] = true
	}
	f := model.ForecastSet{}
	for day := 1; day <= horizon; day++ {
		for _, id := range depotIDs {
			f.Add(day, id, 0)
		}
	}
	for i, e := range entries {
		if mailed[e.DepotID] {
			continue
		}
		if !known[e.DepotID] {
			return nil, fmt.Errorf("forecasts[%d]: unknown depot %q: %w", i, e.DepotID, model.ErrMalformedInput)
		}
		if e.Day > horizon {
			continue
		}
		f.Add(e.Day, e.DepotID, e.VolumeOz)
	}
	return f, nil
}

// brokerEvents fans scheduler progress out to live stream subscribers
// and records per-day solver stats.
type brokerEvents struct {
	srv   *Server
	runID string
}

func (e *brokerEvents) DayPlanned(entry model.RouteLogEntry) {
	opt.RecordSolve(e.runID, opt.SolveStats{
		Day:         entry.Day,
		Backend:     entry.SolverBackend,
		Status:      entry.Plan.Status,
		SolveMillis: entry.SolveMillis,
		Fallback:    entry.FallbackUsed,
		Stops:       len(entry.Plan.Stops),
		TotalCost:   entry.Plan.TotalCost,
	})
	metrics.SolveDuration.WithLabelValues(entry.SolverBackend).Observe(float64(entry.SolveMillis) / 1000)
	e.srv.Broker.Publish(e.runID, SSEEvent{Type: "day.planned", Data: map[string]any{
		"runId":     e.runID,
		"day":       entry.Day,
		"date":      entry.Date,
		"status":    entry.Plan.Status,
		"stops":     entry.Plan.Stops,
		"totalCost": entry.Plan.TotalCost,
	}})
}

func (e *brokerEvents) DayInfeasible(day int, depots []string) {
	e.srv.Broker.Publish(e.runID, SSEEvent{Type: "day.infeasible", Data: map[string]any{
		"runId":     e.runID,
		"day":       day,
		"violating": depots,
	}})
}

func (e *brokerEvents) Completed(totals model.RunTotals) {
	e.srv.Broker.Publish(e.runID, SSEEvent{Type: "simulation.completed", Data: map[string]any{
		"runId":       e.runID,
		"daysPlanned": totals.DaysPlanned,
		"totalCost":   totals.TotalCost,
	}})
}

// SimulationByIDHandler handles GET /v1/simulations/{id} and the
// route-log, inventory-log, solves and events subresources.
func (s *Server) SimulationByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/simulations/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 2 && parts[1] == "events" {
		switch parts[2] {
		case "stream":
			s.streamEvents(w, r, id)
			return
		case "ws":
			s.EventsWSHandler(w, r, id)
			return
		}
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	if len(parts) == 1 {
		run, err := s.Store.GetRun(ctx, tenant, id)
		if err != nil {
			writeProblem(w, http.StatusNotFound, "Simulation not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	switch parts[1] {
	case "route-log":
		items, next, err := s.Store.ListRouteLog(ctx, tenant, id, cursor, limit)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Simulation not found", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "List route log failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	case "inventory-log":
		day := 0
		if v := r.URL.Query().Get("day"); v != "" {
			fmt.Sscanf(v, "%d", &day)
		}
		depot := r.URL.Query().Get("depot")
		items, next, err := s.Store.ListInventoryLog(ctx, tenant, id, day, depot, cursor, limit)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Simulation not found", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "List inventory log failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	case "solves":
		pr := s.getPrincipal(r)
		if !pr.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if _, err := s.Store.GetRun(ctx, tenant, id); err != nil {
			writeProblem(w, http.StatusNotFound, "Simulation not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, opt.GetSolves(id))
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

// streamEvents serves the SSE stream of one run's live events.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// ImportHandler handles POST /v1/simulations/import: multipart CSV
// intake (depots, matrix, forecast files) assembled into a simulation
// request and run through the same path as the JSON endpoint.
func (s *Server) ImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.CanPlan() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid multipart form", err.Error(), r.URL.Path)
		return
	}
	hubID := r.FormValue("hubId")
	startDate := r.FormValue("startDate")
	if hubID == "" || startDate == "" {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", "hubId and startDate form fields are required", r.URL.Path)
		return
	}
	req := model.SimulationRequest{HubID: hubID, StartDate: startDate}
	if cj := r.FormValue("config"); cj != "" {
		var pc model.PlannerConfig
		if err := json.Unmarshal([]byte(cj), &pc); err != nil {
			writeProblem(w, http.StatusBadRequest, "MalformedInput", "config field: "+err.Error(), r.URL.Path)
			return
		}
		req.Config = &pc
	}

	df, _, err := r.FormFile("depots")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", "depots file is required", r.URL.Path)
		return
	}
	defer df.Close()
	depots, shipping, err := ingest.Depots(df)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	req.Depots = depots

	mf, _, err := r.FormFile("matrix")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", "matrix file is required", r.URL.Path)
		return
	}
	defer mf.Close()
	matrix, err := ingest.Matrix(mf)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	req.Matrix = matrix

	// The forecast window needs the horizon settled up front, so
	// resolve the full config here and pin it on the request.
	ctx, tenant := s.withTenant(r)
	cfg, err := s.effectiveConfig(ctx, tenant, req.Config)
	if err != nil {
		writeSimulationError(w, r, err)
		return
	}
	req.Config = &cfg

	var depotIDs []string
	for _, d := range depots {
		if d.ID != hubID {
			depotIDs = append(depotIDs, d.ID)
		}
	}
	ff, _, err := r.FormFile("forecast")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", "forecast file is required", r.URL.Path)
		return
	}
	defer ff.Close()
	forecast, err := ingest.Forecast(ff, startDate, cfg.HorizonDays, depotIDs)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	for day, byDepot := range forecast {
		for id, oz := range byDepot {
			if oz > 0 {
				req.Forecasts = append(req.Forecasts, model.ForecastEntry{Day: day, DepotID: id, VolumeOz: oz})
			}
		}
	}

	run, err := s.executeSimulation(ctx, tenant, &req)
	if err != nil {
		writeSimulationError(w, r, err)
		return
	}
	if run.Status == model.RunInfeasible {
		writeProblem(w, http.StatusUnprocessableEntity, "DailyInfeasible",
			fmt.Sprintf("day %d: over-committed depots: %s", run.Totals.InfeasibleDay, strings.Join(run.Violating, ", ")),
			"/v1/simulations/"+run.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "shippingDropped": shipping})
}

// NetworkValidateHandler handles POST /v1/network/validate: the same
// input checks as a simulation, without solving anything.
func (s *Server) NetworkValidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSimulationRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	cfg, err := s.effectiveConfig(ctx, tenant, req.Config)
	if err != nil {
		writeSimulationError(w, r, err)
		return
	}
	hub, depots, shipping := splitHub(req.HubID, req.Depots)
	net, err := network.New(hub, depots, req.Matrix)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	if _, err := buildForecast(req.Forecasts, net.DepotIDs(), shipping, cfg.HorizonDays); err != nil {
		writeProblem(w, http.StatusBadRequest, "MalformedInput", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":           true,
		"depots":          len(net.DepotIDs()),
		"shippingDropped": shipping,
	})
}

// PlannerConfigHandler handles GET /v1/planner/config: the effective
// planner parameters for the caller's tenant.
func (s *Server) PlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	cfg, err := s.effectiveConfig(ctx, tenant, nil)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// AdminPlannerConfigHandler handles GET and PUT on
// /v1/admin/planner/config. PUT stores the raw override; responses
// always show the effective merged config.
func (s *Server) AdminPlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.effectiveConfig(ctx, tenant, nil)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		var override model.PlannerConfig
		if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		merged, err := s.effectiveConfig(ctx, tenant, &override)
		if err != nil {
			writeSimulationError(w, r, err)
			return
		}
		if err := s.Store.SavePlannerConfig(ctx, tenant, override); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save config failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, merged)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST and GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		ctx, tenant := s.withTenant(r)
		if req.TenantID == "" {
			req.TenantID = tenant
		}
		sub, err := s.Store.CreateSubscription(ctx, req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		ctx, tenant := s.withTenant(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(ctx, tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	if err := s.Store.DeleteSubscription(ctx, tenant, rest); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Subscription not found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(ctx, tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles
// POST /v1/admin/webhook-deliveries/{id}/retry.
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "retry" || parts[0] == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	if err := s.Store.RetryWebhookDelivery(ctx, tenant, parts[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Delivery not found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": parts[0], "status": "pending"})
}

// WebhookDLQHandler handles GET /v1/admin/webhook-dlq and
// POST /v1/admin/webhook-dlq/{id}/requeue.
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq")
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		eventType := r.URL.Query().Get("eventType")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListWebhookDLQ(ctx, tenant, eventType, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List DLQ failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "requeue" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := s.Store.RequeueWebhookDLQ(ctx, tenant, parts[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "DLQ entry not found", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Requeue failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": parts[0], "status": "pending"})
		return
	}
	writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadyHandler reports dependency readiness; a database-backed store
// gets pinged with a short deadline.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Not ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// VersionHandler reports build metadata.
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}
