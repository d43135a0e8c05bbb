// Package ingest parses the operational CSV files into simulation
// inputs: depot roster, travel matrix and the production forecast.
// Column names follow the forecast collaborator's export; matching is
// case-insensitive and tolerant of the historical aliases.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/model"
)

func readRows(r io.Reader, what string) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s csv: %v: %w", what, err, model.ErrMalformedInput)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s csv is empty: %w", what, model.ErrMalformedInput)
	}
	return rows[0], rows[1:], nil
}

// findCol locates a header column by any of its accepted names,
// returning -1 when absent.
func findCol(header []string, names ...string) int {
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Depots parses the depot roster. Shipping-classified rows are dropped
// from the returned list; their ids come back separately so callers
// can report what was excluded.
func Depots(r io.Reader) ([]model.Depot, []string, error) {
	header, rows, err := readRows(r, "depots")
	if err != nil {
		return nil, nil, err
	}
	idCol := findCol(header, "Depo", "Depot", "Depot ID", "DepotID", "ID")
	if idCol < 0 {
		return nil, nil, fmt.Errorf("depots csv: no depot id column: %w", model.ErrMalformedInput)
	}
	nameCol := findCol(header, "Name", "Depot Name")
	classCol := findCol(header, "Class", "Type")
	capCol := findCol(header, "Capacity (oz)", "CapacityOz", "Capacity")

	var depots []model.Depot
	var shipping []string
	for i, row := range rows {
		id := cell(row, idCol)
		if id == "" {
			return nil, nil, fmt.Errorf("depots csv row %d: empty depot id: %w", i+2, model.ErrMalformedInput)
		}
		class := strings.ToLower(cell(row, classCol))
		switch class {
		case "", model.ClassTruck:
			class = model.ClassTruck
		case model.ClassShipping:
			shipping = append(shipping, id)
			continue
		default:
			return nil, nil, fmt.Errorf("depots csv row %d: unknown class %q: %w", i+2, class, model.ErrMalformedInput)
		}
		d := model.Depot{ID: id, Name: cell(row, nameCol), Class: class}
		if capRaw := cell(row, capCol); capRaw != "" {
			v, err := strconv.ParseFloat(capRaw, 64)
			if err != nil || v < 0 {
				return nil, nil, fmt.Errorf("depots csv row %d: bad capacity %q: %w", i+2, capRaw, model.ErrMalformedInput)
			}
			d.CapacityOz = v
		}
		depots = append(depots, d)
	}
	return depots, shipping, nil
}

// Matrix parses the pairwise travel metrics.
func Matrix(r io.Reader) ([]model.TravelMetric, error) {
	header, rows, err := readRows(r, "matrix")
	if err != nil {
		return nil, err
	}
	fromCol := findCol(header, "From", "Origin")
	toCol := findCol(header, "To", "Destination")
	milesCol := findCol(header, "Miles", "Distance (mi)", "Distance")
	minutesCol := findCol(header, "Minutes", "Drive Minutes", "Duration (min)")
	if fromCol < 0 || toCol < 0 || milesCol < 0 || minutesCol < 0 {
		return nil, fmt.Errorf("matrix csv: need From, To, Miles, Minutes columns: %w", model.ErrMalformedInput)
	}
	var out []model.TravelMetric
	for i, row := range rows {
		miles, err := strconv.ParseFloat(cell(row, milesCol), 64)
		if err != nil {
			return nil, fmt.Errorf("matrix csv row %d: bad miles: %w", i+2, model.ErrMalformedInput)
		}
		minutes, err := strconv.ParseFloat(cell(row, minutesCol), 64)
		if err != nil {
			return nil, fmt.Errorf("matrix csv row %d: bad minutes: %w", i+2, model.ErrMalformedInput)
		}
		out = append(out, model.TravelMetric{
			From:    cell(row, fromCol),
			To:      cell(row, toCol),
			Miles:   miles,
			Minutes: minutes,
		})
	}
	return out, nil
}

// Forecast parses per-transaction production rows and aggregates them
// into ounces per depot per horizon day. Day 1 is startDate; rows
// outside the horizon window and rows for unlisted depots (shipping
// depots mail their milk) are dropped. Depot-days with no transactions
// densify to zero so the simulation never sees a missing cell.
func Forecast(r io.Reader, startDate string, horizonDays int, depotIDs []string) (model.ForecastSet, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("startDate %q: %w", startDate, model.ErrMalformedInput)
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("horizonDays must be positive: %w", model.ErrMalformedInput)
	}
	header, rows, err := readRows(r, "forecast")
	if err != nil {
		return nil, err
	}
	dateCol := findCol(header, "Date_2025", "Date", "Deposit Date")
	depotCol := findCol(header, "Depo", "Depot", "Depot ID", "DepotID")
	volCol := findCol(header, "Volume_2025", "Volume (oz)", "Volume")
	if dateCol < 0 || depotCol < 0 || volCol < 0 {
		return nil, fmt.Errorf("forecast csv: need date, depot and volume columns: %w", model.ErrMalformedInput)
	}

	known := make(map[string]bool, len(depotIDs))
	for _, id := range depotIDs {
		known[id] = true
	}
	f := model.ForecastSet{}
	for day := 1; day <= horizonDays; day++ {
		for _, id := range depotIDs {
			f.Add(day, id, 0)
		}
	}
	for i, row := range rows {
		id := cell(row, depotCol)
		if !known[id] {
			continue
		}
		raw := cell(row, dateCol)
		if len(raw) > 10 {
			raw = raw[:10] // drop a time-of-day suffix
		}
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("forecast csv row %d: bad date %q: %w", i+2, cell(row, dateCol), model.ErrMalformedInput)
		}
		day := int(date.Sub(start)/(24*time.Hour)) + 1
		if day < 1 || day > horizonDays {
			continue
		}
		vol, err := strconv.ParseFloat(cell(row, volCol), 64)
		if err != nil {
			return nil, fmt.Errorf("forecast csv row %d: bad volume: %w", i+2, model.ErrMalformedInput)
		}
		if vol < 0 {
			return nil, fmt.Errorf("forecast csv row %d: negative volume: %w", i+2, model.ErrMalformedInput)
		}
		f.Add(day, id, vol)
	}
	return f, nil
}
