package opt

import "github.com/SophiaYifei/milk-bank-route-optimization/internal/model"

// CostModel prices a route: driver wage on total route time and fuel
// on distance. All other costs are out of scope for planning.
type CostModel struct {
	WagePerHour    float64
	FuelPerMile    float64
	ServiceMinutes float64 // per stop
}

func NewCostModel(cfg model.PlannerConfig) CostModel {
	return CostModel{
		WagePerHour:    cfg.WagePerHour,
		FuelPerMile:    cfg.FuelPerMile,
		ServiceMinutes: cfg.ServiceMinutesPerStop,
	}
}

// EdgeCost is the objective coefficient for traversing one edge.
func (c CostModel) EdgeCost(miles, minutes float64) float64 {
	return c.WagePerHour/60*minutes + c.FuelPerMile*miles
}

// StopCost is the wage cost of servicing one stop.
func (c CostModel) StopCost() float64 {
	return c.WagePerHour / 60 * c.ServiceMinutes
}

// Price fills the cost fields of a plan from its legs and stop count.
func (c CostModel) Price(plan *model.RoutePlan) {
	var miles, minutes float64
	for _, leg := range plan.Legs {
		miles += leg.Miles
		minutes += leg.Minutes
	}
	plan.DriveMiles = miles
	plan.DriveMinutes = minutes
	plan.ServiceMinutes = c.ServiceMinutes * float64(len(plan.Stops))
	plan.WageCost = c.WagePerHour / 60 * (plan.DriveMinutes + plan.ServiceMinutes)
	plan.FuelCost = c.FuelPerMile * plan.DriveMiles
	plan.TotalCost = plan.WageCost + plan.FuelCost
}
