package main

import (
	"bufio"
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/api"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/metrics"
)

func main() {
	srvDeps, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Simulations
	mux.HandleFunc("/v1/simulations", srvDeps.SimulationsHandler)
	mux.HandleFunc("/v1/simulations/import", srvDeps.ImportHandler)
	mux.HandleFunc("/v1/simulations/", srvDeps.SimulationByIDHandler) // includes /route-log, /inventory-log, /solves, /events
	mux.HandleFunc("/v1/network/validate", srvDeps.NetworkValidateHandler)

	// Planner config
	mux.HandleFunc("/v1/planner/config", srvDeps.PlannerConfigHandler)
	mux.HandleFunc("/v1/admin/planner/config", srvDeps.AdminPlannerConfigHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/webhook-dlq", srvDeps.WebhookDLQHandler)
	mux.HandleFunc("/v1/admin/webhook-dlq/", srvDeps.WebhookDLQHandler)
	mux.HandleFunc("/v1/debug", srvDeps.DebugJSON)

	// Health, version, docs, metrics
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/v1/version", srvDeps.VersionHandler)
	mux.HandleFunc("/v1/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	rl := api.NewRateLimiter(srvDeps.Cfg.RateRPS, srvDeps.Cfg.RateBurst)
	handler := logMiddleware(metricsMiddleware(rl.Middleware(mux)))

	addr := ":" + srvDeps.Cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	close(worker.Stop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		path := metricPath(r.URL.Path)
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// metricPath collapses run and delivery ids so the path label stays
// bounded.
func metricPath(p string) string {
	for _, prefix := range []string{
		"/v1/simulations/",
		"/v1/subscriptions/",
		"/v1/admin/webhook-deliveries/",
		"/v1/admin/webhook-dlq/",
	} {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		if prefix == "/v1/simulations/" && strings.HasPrefix(rest, "import") {
			return p
		}
		parts := strings.Split(rest, "/")
		parts[0] = ":id"
		return prefix + strings.Join(parts, "/")
	}
	return p
}

// statusWriter records the response code for metrics. It forwards
// Flush and Hijack so SSE streams and WebSocket upgrades work behind
// the middleware chain.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}
