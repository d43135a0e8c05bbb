package model

import "errors"

// Core domain types for depot networks, forecasts, and route plans.

// Depot classes. Only truck-served depots participate in routing;
// shipping depots mail their inventory and are dropped at ingest.
const (
	ClassTruck    = "truck"
	ClassShipping = "shipping"
)

// Plan statuses reported by the daily optimizer.
const (
	StatusOptimal     = "Optimal"
	StatusTimeLimited = "TimeLimited"
	StatusInfeasible  = "Infeasible"
)

// Visit reasons recorded on inventory and route logs.
const (
	ReasonProjectedOverflow = "ProjectedOverflow"
	ReasonMaxDaysExceeded   = "MaxDaysExceeded"
	ReasonCapacityForced    = "CapacityForced"
	ReasonOpportunistic     = "Opportunistic"
)

// ErrMalformedInput marks validation failures in simulation inputs.
// Wrap it with context: fmt.Errorf("depot %q: ...: %w", id, ErrMalformedInput).
var ErrMalformedInput = errors.New("malformed input")

type Depot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Class      string  `json:"class,omitempty"`
	CapacityOz float64 `json:"capacityOz,omitempty"`
}

// TravelMetric is one directed pair in the travel matrix.
type TravelMetric struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Miles   float64 `json:"miles"`
	Minutes float64 `json:"minutes"`
}

// ForecastEntry is one depot-day production volume in ounces.
type ForecastEntry struct {
	Day      int     `json:"day"`
	DepotID  string  `json:"depotId"`
	VolumeOz float64 `json:"volumeOz"`
}

// ForecastSet indexes forecast volumes by day then depot.
type ForecastSet map[int]map[string]float64

func (f ForecastSet) Get(day int, depotID string) (float64, bool) {
	if m, ok := f[day]; ok {
		v, ok := m[depotID]
		return v, ok
	}
	return 0, false
}

func (f ForecastSet) Add(day int, depotID string, volumeOz float64) {
	if f[day] == nil {
		f[day] = map[string]float64{}
	}
	f[day][depotID] += volumeOz
}

// PlannerConfig carries the tunable engine parameters. Zero values mean
// "use default"; config.Defaults() supplies the standard operation values.
type PlannerConfig struct {
	HorizonDays           int     `json:"horizonDays,omitempty" yaml:"horizonDays"`
	DailyMinutesBudget    float64 `json:"dailyMinutesBudget,omitempty" yaml:"dailyMinutesBudget"`
	OverflowThresholdOz   float64 `json:"overflowThresholdOz,omitempty" yaml:"overflowThresholdOz"`
	MaxDaysSincePickup    int     `json:"maxDaysSincePickup,omitempty" yaml:"maxDaysSincePickup"`
	VehicleCapacityOz     float64 `json:"vehicleCapacityOz,omitempty" yaml:"vehicleCapacityOz"`
	WagePerHour           float64 `json:"wagePerHour,omitempty" yaml:"wagePerHour"`
	FuelPerMile           float64 `json:"fuelPerMile,omitempty" yaml:"fuelPerMile"`
	ServiceMinutesPerStop float64 `json:"serviceMinutesPerStop,omitempty" yaml:"serviceMinutesPerStop"`

	// Opportunistic pickups let the optimizer add unforced depots when the
	// credit for collecting early outweighs the detour cost.
	OpportunisticVisits      bool    `json:"opportunisticVisits,omitempty" yaml:"opportunisticVisits"`
	OpportunisticCreditPerOz float64 `json:"opportunisticCreditPerOz,omitempty" yaml:"opportunisticCreditPerOz"`

	Solver SolverConfig `json:"solver,omitempty" yaml:"solver"`
}

type SolverConfig struct {
	// Backend selects the MILP backend: "builtin" (branch and bound over
	// an LP relaxation) or "highs" (external solver via the nextmv sdk).
	Backend        string `json:"backend,omitempty" yaml:"backend"`
	MaxSolveMillis int    `json:"maxSolveMillis,omitempty" yaml:"maxSolveMillis"`
	MaxNodes       int    `json:"maxNodes,omitempty" yaml:"maxNodes"`
}

// SimulationRequest is the wire input for POST /v1/simulations. RunID
// is optional and must be a UUID when set; clients that want to follow
// the event stream of a run they are about to start supply their own
// id. Re-posting the same RunID replays the run in place since the
// engine is deterministic.
type SimulationRequest struct {
	TenantID  string          `json:"tenantId,omitempty"`
	RunID     string          `json:"runId,omitempty"`
	HubID     string          `json:"hubId"`
	StartDate string          `json:"startDate,omitempty"` // YYYY-MM-DD, day 1 of the horizon
	Depots    []Depot         `json:"depots"`
	Matrix    []TravelMetric  `json:"matrix"`
	Forecasts []ForecastEntry `json:"forecasts"`
	Config    *PlannerConfig  `json:"config,omitempty"`
}

type RouteLeg struct {
	Seq     int     `json:"seq"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Miles   float64 `json:"miles"`
	Minutes float64 `json:"minutes"`
}

// RoutePlan is one day's solved route. Stops excludes the hub; an empty
// Stops with StatusOptimal means no pickups were required that day.
type RoutePlan struct {
	Day            int        `json:"day"`
	Status         string     `json:"status"`
	Stops          []string   `json:"stops"`
	Legs           []RouteLeg `json:"legs,omitempty"`
	DriveMinutes   float64    `json:"driveMinutes"`
	DriveMiles     float64    `json:"driveMiles"`
	ServiceMinutes float64    `json:"serviceMinutes,omitempty"`
	CollectedOz    float64    `json:"collectedOz"`
	WageCost       float64    `json:"wageCost"`
	FuelCost       float64    `json:"fuelCost"`
	TotalCost      float64    `json:"totalCost"`
	// Violating lists depot ids that could not be served when Status is
	// Infeasible.
	Violating []string `json:"violating,omitempty"`
}

// RouteLogEntry is the persisted per-day record of a simulation run.
type RouteLogEntry struct {
	Day           int       `json:"day"`
	Date          string    `json:"date,omitempty"`
	Plan          RoutePlan `json:"plan"`
	Mandatory     []string  `json:"mandatory,omitempty"`
	FallbackUsed  bool      `json:"fallbackUsed,omitempty"`
	SolveMillis   int64     `json:"solveMillis,omitempty"`
	SolverBackend string    `json:"solverBackend,omitempty"`
}

// InventoryRecord is the end-of-day ledger row for one depot.
type InventoryRecord struct {
	Day             int     `json:"day"`
	DepotID         string  `json:"depotId"`
	LevelOz         float64 `json:"levelOz"`
	DaysSincePickup int     `json:"daysSincePickup"`
	Visited         bool    `json:"visited"`
	Reason          string  `json:"reason,omitempty"`
}

// Run statuses.
const (
	RunCompleted  = "completed"
	RunInfeasible = "infeasible"
)

type RunTotals struct {
	DaysPlanned   int     `json:"daysPlanned"`
	TotalCost     float64 `json:"totalCost"`
	TotalMiles    float64 `json:"totalMiles"`
	TotalMinutes  float64 `json:"totalMinutes"`
	TotalOz       float64 `json:"totalOz"`
	TimeLimited   int     `json:"timeLimitedDays,omitempty"`
	FallbackDays  int     `json:"fallbackDays,omitempty"`
	InfeasibleDay int     `json:"infeasibleDay,omitempty"`
}

// SimulationRun is the stored run summary.
type SimulationRun struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId"`
	CreatedAt string        `json:"createdAt"`
	Status    string        `json:"status"`
	StartDate string        `json:"startDate,omitempty"`
	Config    PlannerConfig `json:"config"`
	Totals    RunTotals     `json:"totals"`
	// Violating carries the over-committed depot ids when Status is
	// infeasible.
	Violating []string `json:"violating,omitempty"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
