package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/auth"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/config"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/store"
	"github.com/SophiaYifei/milk-bank-route-optimization/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Cfg    config.Config
}

// NewServer wires the service from configuration. Without DATABASE_URL
// the store is in-memory; without REDIS_URL events stay process-local.
func NewServer() (*Server, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Dev helper; set DB_MIGRATE=false when schemas are managed
		// out of band.
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{Store: s, Pub: webhooks.NewPublisher(s), Auth: auth.NewVerifierFromEnv(), Broker: broker, Cfg: cfg}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := s.getPrincipal(r).Tenant
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	w := webhooks.NewWorker(s.Store)
	if s.Cfg.WebhookMaxAttempts > 0 {
		w.MaxAttempts = s.Cfg.WebhookMaxAttempts
	}
	return w
}
