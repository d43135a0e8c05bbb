package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
// Route and inventory logs key on (run, day) and (run, day, depot) so a
// second append of the same run replaces rather than duplicates.
type Memory struct {
	mu        sync.Mutex
	runs      map[string]model.SimulationRun
	runsByTen map[string][]string
	routeLog  map[string]map[int]model.RouteLogEntry
	invLog    map[string]map[string]model.InventoryRecord
	subs      map[string][]model.Subscription
	// Webhooks queue state
	deliveries         map[string]*memDelivery
	deliveriesByTenant map[string][]string
	dlq                []map[string]any
	plannerCfg         map[string]model.PlannerConfig
}

func NewMemory() *Memory {
	return &Memory{
		runs:               map[string]model.SimulationRun{},
		runsByTen:          map[string][]string{},
		routeLog:           map[string]map[int]model.RouteLogEntry{},
		invLog:             map[string]map[string]model.InventoryRecord{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		dlq:                []map[string]any{},
		plannerCfg:         map[string]model.PlannerConfig{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateRun(ctx context.Context, run model.SimulationRun) (model.SimulationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if _, ok := m.runs[run.ID]; !ok {
		m.runsByTen[run.TenantID] = append(m.runsByTen[run.TenantID], run.ID)
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, runID string) (model.SimulationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.TenantID != tenantID {
		return model.SimulationRun{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.SimulationRun, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.runsByTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.SimulationRun{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		r := m.runs[ids[i]]
		if status == "" || r.Status == status {
			out = append(out, r)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) AppendRouteLog(ctx context.Context, tenantID, runID string, entries []model.RouteLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routeLog[runID] == nil {
		m.routeLog[runID] = map[int]model.RouteLogEntry{}
	}
	for _, e := range entries {
		m.routeLog[runID][e.Day] = e
	}
	return nil
}

func (m *Memory) ListRouteLog(ctx context.Context, tenantID, runID, cursor string, limit int) ([]model.RouteLogEntry, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runID]; !ok || r.TenantID != tenantID {
		return nil, "", ErrNotFound
	}
	byDay := m.routeLog[runID]
	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)
	start := 0
	if cursor != "" {
		after, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor %q", cursor)
		}
		for i, d := range days {
			if d > after {
				start = i
				break
			}
			start = i + 1
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(days) {
		end = len(days)
	}
	items := make([]model.RouteLogEntry, 0, end-start)
	for _, d := range days[start:end] {
		items = append(items, byDay[d])
	}
	next := ""
	if end < len(days) {
		next = strconv.Itoa(days[end-1])
	}
	return items, next, nil
}

func invKey(day int, depotID string) string {
	return fmt.Sprintf("%05d|%s", day, depotID)
}

func (m *Memory) AppendInventoryLog(ctx context.Context, tenantID, runID string, records []model.InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invLog[runID] == nil {
		m.invLog[runID] = map[string]model.InventoryRecord{}
	}
	for _, r := range records {
		m.invLog[runID][invKey(r.Day, r.DepotID)] = r
	}
	return nil
}

func (m *Memory) ListInventoryLog(ctx context.Context, tenantID, runID string, day int, depotID, cursor string, limit int) ([]model.InventoryRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runID]; !ok || r.TenantID != tenantID {
		return nil, "", ErrNotFound
	}
	byKey := m.invLog[runID]
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	start := 0
	if cursor != "" {
		for i, k := range keys {
			if k == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.InventoryRecord{}
	var next string
	for i := start; i < len(keys) && len(out) < limit; i++ {
		rec := byKey[keys[i]]
		if day > 0 && rec.Day != day {
			continue
		}
		if depotID != "" && rec.DepotID != depotID {
			continue
		}
		out = append(out, rec)
		next = keys[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	for i := range arr {
		if arr[i].ID == id {
			m.subs[tenantID] = append(arr[:i], arr[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.iterDeliveryIDs() {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	m.dlq = append(m.dlq, map[string]any{
		"id":           uuid.New().String(),
		"deliveryId":   id,
		"tenantId":     d.TenantID,
		"eventType":    d.EventType,
		"url":          d.URL,
		"attempts":     d.Attempts + 1,
		"lastError":    lastError,
		"responseCode": responseCode,
	})
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if !d.NextAttemptAt.IsZero() {
				item["nextAttemptAt"] = d.NextAttemptAt
			}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.TenantID != tenantID {
		return ErrNotFound
	}
	d.Status = "pending"
	d.NextAttemptAt = time.Now()
	return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, eventType, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, item := range m.dlq {
		if item["tenantId"] != tenantID {
			continue
		}
		if eventType != "" && item["eventType"] != eventType {
			continue
		}
		out = append(out, item)
	}
	return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.dlq {
		if item["id"] != id || item["tenantId"] != tenantID {
			continue
		}
		delID, _ := item["deliveryId"].(string)
		if d := m.deliveries[delID]; d != nil {
			d.Status = "pending"
			d.NextAttemptAt = time.Now()
		}
		m.dlq = append(m.dlq[:i], m.dlq[i+1:]...)
		return nil
	}
	return ErrNotFound
}

func (m *Memory) GetPlannerConfig(ctx context.Context, tenantID string) (*model.PlannerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.plannerCfg[tenantID]; ok {
		c := cfg
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) SavePlannerConfig(ctx context.Context, tenantID string, cfg model.PlannerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plannerCfg[tenantID] = cfg
	return nil
}

// iterDeliveryIDs returns all delivery ids in a stable order so the
// worker drains the queue deterministically.
func (m *Memory) iterDeliveryIDs() []string {
	tenants := make([]string, 0, len(m.deliveriesByTenant))
	for t := range m.deliveriesByTenant {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	ids := []string{}
	for _, t := range tenants {
		ids = append(ids, m.deliveriesByTenant[t]...)
	}
	return ids
}
