package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}

type markRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}

type failRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnceSuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t_demo", "", "simulation.completed", srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != "simulation.completed" {
		t.Fatalf("missing event type header, got %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: sig=%q body=%s", gotSig, gotBody)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnceFailMovesToDLQ(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "t_demo", "", "day.infeasible", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) == 0 {
		t.Fatalf("expected fail recorded")
	}
	dlq, _, err := rs.Memory.ListWebhookDLQ(context.Background(), "t_demo", "", "", 10)
	if err != nil || len(dlq) != 1 {
		t.Fatalf("expected delivery in dlq, got %v err=%v", dlq, err)
	}
}

func TestWorkerRetriesBeforeFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "t_demo", "", "simulation.completed", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) != 0 {
		t.Fatalf("first attempt should schedule a retry, not fail: %+v", rs.fails)
	}
	if len(rs.marks) != 1 || rs.marks[0].Success {
		t.Fatalf("expected one unsuccessful mark, got %+v", rs.marks)
	}
}

func TestPublisherEmitFansOut(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t_demo", URL: "https://a.example/hook", Events: []string{"simulation.completed"}, Secret: "s"})
	m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t_demo", URL: "https://b.example/hook", Events: []string{"day.planned"}})

	p := NewPublisher(m)
	p.Emit(ctx, "t_demo", "simulation.completed", map[string]any{"runId": "r1"})

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("FetchDue: %v", err)
	}
	if len(due) != 1 || due[0].URL != "https://a.example/hook" {
		t.Fatalf("expected one delivery for the matching subscription, got %+v", due)
	}
	var payload map[string]any
	if err := json.Unmarshal(due[0].Payload, &payload); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if payload["type"] != "simulation.completed" || payload["tenantId"] != "t_demo" {
		t.Fatalf("unexpected payload envelope: %v", payload)
	}
	if data, ok := payload["data"].(map[string]any); !ok || data["runId"] != "r1" {
		t.Fatalf("missing data: %v", payload)
	}
}
