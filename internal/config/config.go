// Package config loads service configuration from an optional YAML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

type Config struct {
	Port               string              `yaml:"port"`
	DatabaseURL        string              `yaml:"databaseUrl"`
	RedisURL           string              `yaml:"redisUrl"`
	AuthMode           string              `yaml:"authMode"`
	RateRPS            float64             `yaml:"rateRps"`
	RateBurst          int                 `yaml:"rateBurst"`
	WebhookMaxAttempts int                 `yaml:"webhookMaxAttempts"`
	Planner            model.PlannerConfig `yaml:"planner"`
}

// Defaults returns the standard-operation planner parameters.
func Defaults() model.PlannerConfig {
	return model.PlannerConfig{
		HorizonDays:              20,
		DailyMinutesBudget:       660,
		OverflowThresholdOz:      850,
		MaxDaysSincePickup:       150,
		VehicleCapacityOz:        1000,
		WagePerHour:              36.0,
		FuelPerMile:              0.70,
		ServiceMinutesPerStop:    0,
		OpportunisticVisits:      false,
		OpportunisticCreditPerOz: 0.02,
		Solver: model.SolverConfig{
			Backend:        "builtin",
			MaxSolveMillis: 5000,
			MaxNodes:       200000,
		},
	}
}

// Load builds the config from defaults, then the YAML file at path (if
// any), then environment variables. Pass "" to skip the file.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:               "8080",
		RateRPS:            50,
		RateBurst:          100,
		WebhookMaxAttempts: 10,
		Planner:            Defaults(),
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	cfg.Planner = Merge(Defaults(), &cfg.Planner)
	return cfg, nil
}

// FromEnv loads config using the file named by CONFIG_FILE when set.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		cfg.AuthMode = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WebhookMaxAttempts = n
		}
	}
	if v := os.Getenv("SOLVER_BACKEND"); v != "" {
		cfg.Planner.Solver.Backend = v
	}
}

// Merge overlays the non-zero fields of override onto base. Booleans
// only merge true since a zero bool is indistinguishable from unset.
func Merge(base model.PlannerConfig, override *model.PlannerConfig) model.PlannerConfig {
	if override == nil {
		return base
	}
	out := base
	if override.HorizonDays > 0 {
		out.HorizonDays = override.HorizonDays
	}
	if override.DailyMinutesBudget > 0 {
		out.DailyMinutesBudget = override.DailyMinutesBudget
	}
	if override.OverflowThresholdOz > 0 {
		out.OverflowThresholdOz = override.OverflowThresholdOz
	}
	if override.MaxDaysSincePickup > 0 {
		out.MaxDaysSincePickup = override.MaxDaysSincePickup
	}
	if override.VehicleCapacityOz > 0 {
		out.VehicleCapacityOz = override.VehicleCapacityOz
	}
	if override.WagePerHour > 0 {
		out.WagePerHour = override.WagePerHour
	}
	if override.FuelPerMile > 0 {
		out.FuelPerMile = override.FuelPerMile
	}
	if override.ServiceMinutesPerStop > 0 {
		out.ServiceMinutesPerStop = override.ServiceMinutesPerStop
	}
	if override.OpportunisticVisits {
		out.OpportunisticVisits = true
	}
	if override.OpportunisticCreditPerOz > 0 {
		out.OpportunisticCreditPerOz = override.OpportunisticCreditPerOz
	}
	if override.Solver.Backend != "" {
		out.Solver.Backend = override.Solver.Backend
	}
	if override.Solver.MaxSolveMillis > 0 {
		out.Solver.MaxSolveMillis = override.Solver.MaxSolveMillis
	}
	if override.Solver.MaxNodes > 0 {
		out.Solver.MaxNodes = override.Solver.MaxNodes
	}
	return out
}

// Validate rejects planner parameters the engine cannot run with.
func Validate(p model.PlannerConfig) error {
	if p.HorizonDays <= 0 {
		return fmt.Errorf("horizonDays must be positive: %w", model.ErrMalformedInput)
	}
	if p.DailyMinutesBudget <= 0 {
		return fmt.Errorf("dailyMinutesBudget must be positive: %w", model.ErrMalformedInput)
	}
	if p.OverflowThresholdOz <= 0 {
		return fmt.Errorf("overflowThresholdOz must be positive: %w", model.ErrMalformedInput)
	}
	if p.MaxDaysSincePickup <= 0 {
		return fmt.Errorf("maxDaysSincePickup must be positive: %w", model.ErrMalformedInput)
	}
	if p.VehicleCapacityOz <= 0 {
		return fmt.Errorf("vehicleCapacityOz must be positive: %w", model.ErrMalformedInput)
	}
	if p.WagePerHour < 0 || p.FuelPerMile < 0 {
		return fmt.Errorf("cost rates must be non-negative: %w", model.ErrMalformedInput)
	}
	if p.ServiceMinutesPerStop < 0 {
		return fmt.Errorf("serviceMinutesPerStop must be non-negative: %w", model.ErrMalformedInput)
	}
	switch p.Solver.Backend {
	case "", "builtin", "highs":
	default:
		return fmt.Errorf("unknown solver backend %q: %w", p.Solver.Backend, model.ErrMalformedInput)
	}
	return nil
}
