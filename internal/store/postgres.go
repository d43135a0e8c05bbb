package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every *.sql file under dir in name order. The
// files use IF NOT EXISTS guards so re-running is safe.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(stmt)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Simulation runs

func (p *Postgres) CreateRun(ctx context.Context, run model.SimulationRun) (model.SimulationRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return model.SimulationRun{}, err
	}
	totals, err := json.Marshal(run.Totals)
	if err != nil {
		return model.SimulationRun{}, err
	}
	violating, err := json.Marshal(run.Violating)
	if err != nil {
		return model.SimulationRun{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO simulation_runs (id, tenant_id, created_at, status, start_date, config, totals, violating)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, totals=EXCLUDED.totals, violating=EXCLUDED.violating`,
		run.ID, run.TenantID, run.CreatedAt, run.Status, nullIfEmpty(run.StartDate), cfg, totals, violating)
	if err != nil {
		return model.SimulationRun{}, err
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, runID string) (model.SimulationRun, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, tenant_id, created_at, status, COALESCE(start_date,''), config, totals, violating
		FROM simulation_runs WHERE id::text=$1 AND tenant_id=$2`, runID, tenantID)
	return scanRun(row)
}

func scanRun(row *sql.Row) (model.SimulationRun, error) {
	var r model.SimulationRun
	var created time.Time
	var cfg, totals, violating []byte
	err := row.Scan(&r.ID, &r.TenantID, &created, &r.Status, &r.StartDate, &cfg, &totals, &violating)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SimulationRun{}, ErrNotFound
	}
	if err != nil {
		return model.SimulationRun{}, err
	}
	r.CreatedAt = created.UTC().Format(time.RFC3339)
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return model.SimulationRun{}, err
	}
	if err := json.Unmarshal(totals, &r.Totals); err != nil {
		return model.SimulationRun{}, err
	}
	if len(violating) > 0 {
		_ = json.Unmarshal(violating, &r.Violating)
	}
	return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.SimulationRun, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, tenant_id, created_at, status, COALESCE(start_date,''), config, totals, violating FROM simulation_runs WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if status != "" {
		q += ` AND status=$` + fmt.Sprint(idx)
		args = append(args, status)
		idx++
	}
	if cursor != "" {
		q += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	q += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.SimulationRun{}
	var last string
	for rows.Next() {
		var r model.SimulationRun
		var created time.Time
		var cfg, totals, violating []byte
		if err := rows.Scan(&r.ID, &r.TenantID, &created, &r.Status, &r.StartDate, &cfg, &totals, &violating); err != nil {
			return nil, "", err
		}
		r.CreatedAt = created.UTC().Format(time.RFC3339)
		_ = json.Unmarshal(cfg, &r.Config)
		_ = json.Unmarshal(totals, &r.Totals)
		if len(violating) > 0 {
			_ = json.Unmarshal(violating, &r.Violating)
		}
		out = append(out, r)
		last = r.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) checkRun(ctx context.Context, tenantID, runID string) error {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM simulation_runs WHERE id::text=$1 AND tenant_id=$2`, runID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Per-run logs

func (p *Postgres) AppendRouteLog(ctx context.Context, tenantID, runID string, entries []model.RouteLogEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, e := range entries {
		plan, err := json.Marshal(e.Plan)
		if err != nil {
			return err
		}
		mandatory, err := json.Marshal(e.Mandatory)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO route_log (tenant_id, run_id, day, plan_date, plan, mandatory, fallback_used, solve_millis, solver_backend)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (run_id, day) DO UPDATE SET plan=EXCLUDED.plan, mandatory=EXCLUDED.mandatory, fallback_used=EXCLUDED.fallback_used, solve_millis=EXCLUDED.solve_millis, solver_backend=EXCLUDED.solver_backend`,
			tenantID, runID, e.Day, nullIfEmpty(e.Date), plan, mandatory, e.FallbackUsed, e.SolveMillis, nullIfEmpty(e.SolverBackend))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListRouteLog(ctx context.Context, tenantID, runID, cursor string, limit int) ([]model.RouteLogEntry, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := p.checkRun(ctx, tenantID, runID); err != nil {
		return nil, "", err
	}
	after := 0
	if cursor != "" {
		v, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor %q", cursor)
		}
		after = v
	}
	rows, err := p.db.QueryContext(ctx, `SELECT day, COALESCE(plan_date,''), plan, mandatory, fallback_used, solve_millis, COALESCE(solver_backend,'')
		FROM route_log WHERE run_id::text=$1 AND day > $2 ORDER BY day LIMIT $3`, runID, after, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.RouteLogEntry{}
	for rows.Next() {
		var e model.RouteLogEntry
		var plan, mandatory []byte
		if err := rows.Scan(&e.Day, &e.Date, &plan, &mandatory, &e.FallbackUsed, &e.SolveMillis, &e.SolverBackend); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(plan, &e.Plan); err != nil {
			return nil, "", err
		}
		if len(mandatory) > 0 {
			_ = json.Unmarshal(mandatory, &e.Mandatory)
		}
		out = append(out, e)
	}
	next := ""
	if len(out) == limit {
		next = strconv.Itoa(out[len(out)-1].Day)
	}
	return out, next, nil
}

func (p *Postgres) AppendInventoryLog(ctx context.Context, tenantID, runID string, records []model.InventoryRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range records {
		_, err = tx.ExecContext(ctx, `INSERT INTO inventory_log (tenant_id, run_id, day, depot_id, level_oz, days_since_pickup, visited, reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (run_id, day, depot_id) DO UPDATE SET level_oz=EXCLUDED.level_oz, days_since_pickup=EXCLUDED.days_since_pickup, visited=EXCLUDED.visited, reason=EXCLUDED.reason`,
			tenantID, runID, r.Day, r.DepotID, r.LevelOz, r.DaysSincePickup, r.Visited, nullIfEmpty(r.Reason))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListInventoryLog(ctx context.Context, tenantID, runID string, day int, depotID, cursor string, limit int) ([]model.InventoryRecord, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := p.checkRun(ctx, tenantID, runID); err != nil {
		return nil, "", err
	}
	q := `SELECT day, depot_id, level_oz, days_since_pickup, visited, COALESCE(reason,'') FROM inventory_log WHERE run_id::text=$1`
	args := []any{runID}
	idx := 2
	if day > 0 {
		q += ` AND day=$` + fmt.Sprint(idx)
		args = append(args, day)
		idx++
	}
	if depotID != "" {
		q += ` AND depot_id=$` + fmt.Sprint(idx)
		args = append(args, depotID)
		idx++
	}
	if cursor != "" {
		parts := strings.SplitN(cursor, "|", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("bad cursor %q", cursor)
		}
		afterDay, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor %q", cursor)
		}
		q += ` AND (day, depot_id) > ($` + fmt.Sprint(idx) + `, $` + fmt.Sprint(idx+1) + `)`
		args = append(args, afterDay, parts[1])
		idx += 2
	}
	q += ` ORDER BY day, depot_id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.InventoryRecord{}
	for rows.Next() {
		var r model.InventoryRecord
		if err := rows.Scan(&r.Day, &r.DepotID, &r.LevelOz, &r.DaysSincePickup, &r.Visited, &r.Reason); err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = fmt.Sprintf("%d|%s", last.Day, last.DepotID)
	}
	return out, next, nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	ev, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions
		WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb)`, tenantID, ev)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
		ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id::text=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id::text=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id::text=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	if err != nil {
		return err
	}
	// move to DLQ
	_, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, attempts, last_error, response_code, latency_ms)
		SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, attempts+1, $2, $3, $4 FROM webhook_deliveries WHERE id::text=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if status != "" {
		q += ` AND status=$` + fmt.Sprint(idx)
		args = append(args, status)
		idx++
	}
	if cursor != "" {
		q += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	q += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Dead-letter queue

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, eventType, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, COALESCE(delivery_id::text,''), event_type, url, COALESCE(last_error,''), attempts, created_at, COALESCE(response_code,0), COALESCE(latency_ms,0) FROM webhook_dlq WHERE tenant_id=$1`
	args := []any{tenantID}
	idx := 2
	if eventType != "" {
		q += ` AND event_type=$` + fmt.Sprint(idx)
		args = append(args, eventType)
		idx++
	}
	if cursor != "" {
		q += ` AND id::text > $` + fmt.Sprint(idx)
		args = append(args, cursor)
		idx++
	}
	q += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, delID, typ, url, lastErr string
		var attempts, code, latency int
		var created time.Time
		if err := rows.Scan(&id, &delID, &typ, &url, &lastErr, &attempts, &created, &code, &latency); err != nil {
			return nil, "", err
		}
		out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": typ, "url": url, "lastError": lastErr, "attempts": attempts, "createdAt": created, "responseCode": code, "latencyMs": latency})
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var delID, typ, url, secret string
	var payload []byte
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id).Scan(&delID, &typ, &url, &secret, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES (gen_random_uuid(), $1, NULL, $2, $3, $4, $5, 'pending', 0, now(), $6)
		ON CONFLICT (tenant_id, event_type, url, dedup_key) DO UPDATE SET status='pending', next_attempt_at=now()`,
		tenantID, typ, url, nullIfEmpty(secret), payload, computeDedupKey(payload))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Planner config

func (p *Postgres) GetPlannerConfig(ctx context.Context, tenantID string) (*model.PlannerConfig, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM planner_configs WHERE tenant_id=$1`, tenantID)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg model.PlannerConfig
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (p *Postgres) SavePlannerConfig(ctx context.Context, tenantID string, cfg model.PlannerConfig) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO planner_configs (tenant_id, config, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

// Helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func computeDedupKey(payload []byte) string {
	// try to parse JSON and use id
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}
