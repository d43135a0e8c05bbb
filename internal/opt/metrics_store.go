package opt

import "sync"

// SolveStats captures one planned day's solver run for inspection
// through the debug endpoints.
type SolveStats struct {
	Day         int     `json:"day"`
	Backend     string  `json:"backend"`
	Status      string  `json:"status"`
	SolveMillis int64   `json:"solveMillis"`
	Nodes       int     `json:"nodes"`
	Fallback    bool    `json:"fallback,omitempty"`
	Stops       int     `json:"stops"`
	TotalCost   float64 `json:"totalCost"`
}

type solveKey struct {
	RunID string
	Day   int
}

var (
	mu    sync.Mutex
	store = map[solveKey]SolveStats{}
)

// RecordSolve remembers the stats for one planned day of a run.
func RecordSolve(runID string, s SolveStats) {
	mu.Lock()
	store[solveKey{RunID: runID, Day: s.Day}] = s
	mu.Unlock()
}

// GetSolves returns the recorded stats for a run, keyed by day.
func GetSolves(runID string) map[int]SolveStats {
	mu.Lock()
	defer mu.Unlock()
	out := map[int]SolveStats{}
	for k, v := range store {
		if k.RunID == runID {
			out[k.Day] = v
		}
	}
	return out
}
