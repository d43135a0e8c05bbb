package store

import (
	"context"
	"errors"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Simulation runs
	CreateRun(ctx context.Context, run model.SimulationRun) (model.SimulationRun, error)
	GetRun(ctx context.Context, tenantID, runID string) (model.SimulationRun, error)
	ListRuns(ctx context.Context, tenantID, status, cursor string, limit int) (items []model.SimulationRun, nextCursor string, err error)

	// Per-run logs. Appends are idempotent on (run, day) and
	// (run, day, depot) so re-persisting a run leaves one copy.
	AppendRouteLog(ctx context.Context, tenantID, runID string, entries []model.RouteLogEntry) error
	ListRouteLog(ctx context.Context, tenantID, runID, cursor string, limit int) ([]model.RouteLogEntry, string, error)
	AppendInventoryLog(ctx context.Context, tenantID, runID string, records []model.InventoryRecord) error
	ListInventoryLog(ctx context.Context, tenantID, runID string, day int, depotID, cursor string, limit int) ([]model.InventoryRecord, string, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Dead-letter queue
	ListWebhookDLQ(ctx context.Context, tenantID, eventType, cursor string, limit int) ([]map[string]any, string, error)
	RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error

	// Planner config per tenant. Get returns nil when no override is
	// stored; callers fall back to config.Defaults().
	GetPlannerConfig(ctx context.Context, tenantID string) (*model.PlannerConfig, error)
	SavePlannerConfig(ctx context.Context, tenantID string, cfg model.PlannerConfig) error
}

var ErrNotFound = errors.New("not found")
