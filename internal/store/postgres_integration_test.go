//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	if _, _, err := p.ListRuns(t.Context(), "t_demo", "", "", 1); err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
}

func TestPostgresRunRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	run, err := p.CreateRun(t.Context(), model.SimulationRun{
		TenantID:  "t_demo",
		Status:    model.RunCompleted,
		StartDate: "2025-01-01",
		Totals:    model.RunTotals{DaysPlanned: 20, TotalOz: 1800},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	got, err := p.GetRun(t.Context(), "t_demo", run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Totals.TotalOz != 1800 || got.StartDate != "2025-01-01" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	entries := []model.RouteLogEntry{{Day: 1, Plan: model.RoutePlan{Day: 1, Status: model.StatusOptimal, Stops: []string{"d1"}}}}
	if err := p.AppendRouteLog(t.Context(), "t_demo", run.ID, entries); err != nil {
		t.Fatalf("AppendRouteLog: %v", err)
	}
	// idempotent on (run, day)
	if err := p.AppendRouteLog(t.Context(), "t_demo", run.ID, entries); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	log, _, err := p.ListRouteLog(t.Context(), "t_demo", run.ID, "", 10)
	if err != nil {
		t.Fatalf("ListRouteLog: %v", err)
	}
	if len(log) != 1 || len(log[0].Plan.Stops) != 1 {
		t.Fatalf("unexpected route log: %+v", log)
	}
}
