package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when extracting a year from a Date cell.
// Socrata exports floating timestamps ("2024-01-01T00:00:00"); the rest cover
// hand-edited fixtures and the dataset's CSV export.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
	"Jan 2006",
	"January 2006",
}

// BuildAggregates folds dataset rows into per-port, per-year totals.
//
// Rows without a port name or with a date outside [MinYear, MaxYear] are
// skipped. Unparseable values count as 0 without dropping the row. A port's
// coordinates come from the first row that created it. Ports whose total is
// not positive are left out; the rest are ordered by total descending, ties in
// first-seen order.
func BuildAggregates(rows []Row) *AggregateResult {
	result := &AggregateResult{
		TotalsByYear: make(map[int]float64),
		Stats:        RowStats{Rows: len(rows)},
	}

	var ports []*portBuilder
	index := make(map[string]*portBuilder)
	yearsSeen := make(map[int]bool)

	for i := range rows {
		row := &rows[i]

		portName := strings.TrimSpace(row.PortName)
		if portName == "" {
			result.Stats.SkippedNoPort++
			continue
		}

		state := strings.TrimSpace(row.State)
		border := strings.TrimSpace(row.Border)

		year, ok := YearFromDate(row.Date)
		if !ok || year < MinYear || year > MaxYear {
			result.Stats.SkippedBadDate++
			continue
		}

		value := ParseValueLenient(row.Value)
		if value == 0 {
			result.Stats.ZeroValue++
		}
		measure := strings.TrimSpace(row.Measure)

		key := PortKey(portName, state, border)
		pb, exists := index[key]
		if !exists {
			pb = newPortBuilder(key, portName, state, border, row)
			index[key] = pb
			ports = append(ports, pb)
		}

		pb.add(year, value, measure)
		result.TotalsByYear[year] += value
		yearsSeen[year] = true
		result.Stats.Accepted++
	}

	result.Stats.PortsSeen = len(ports)
	result.Ports = make([]Port, 0, len(ports))
	for _, pb := range ports {
		if pb.port.TotalValue > 0 {
			result.Ports = append(result.Ports, pb.port)
		}
	}
	result.Stats.PortsDropped = len(ports) - len(result.Ports)

	slices.SortStableFunc(result.Ports, func(a, b Port) int {
		switch {
		case a.TotalValue > b.TotalValue:
			return -1
		case a.TotalValue < b.TotalValue:
			return 1
		default:
			return 0
		}
	})

	result.Years = make([]int, 0, len(yearsSeen))
	for _, y := range AllowedYears() {
		if yearsSeen[y] {
			result.Years = append(result.Years, y)
		}
	}

	result.LoadedAt = clock.Now()
	return result
}

// PortKey builds the composite identity of a port.
func PortKey(portName, state, border string) string {
	return portName + "|" + state + "|" + border
}

// portBuilder accumulates one port while rows are folded in.
type portBuilder struct {
	port     Port
	measures map[string]bool
}

func newPortBuilder(key, portName, state, border string, first *Row) *portBuilder {
	pb := &portBuilder{
		port: Port{
			Key:          key,
			PortName:     portName,
			State:        state,
			Border:       border,
			PortCode:     strings.TrimSpace(first.PortCode),
			Lat:          ParseCoordinate(first.Latitude),
			Lon:          ParseCoordinate(first.Longitude),
			TotalsByYear: make(map[int]float64),
			Measures:     []string{},
		},
		measures: make(map[string]bool),
	}
	if pb.port.HasCoordinates() {
		pb.port.CoordSource = CoordSourceDataset
	}
	return pb
}

func (pb *portBuilder) add(year int, value float64, measure string) {
	pb.port.TotalsByYear[year] += value
	pb.port.TotalValue += value
	if measure != "" && !pb.measures[measure] {
		pb.measures[measure] = true
		pb.port.Measures = append(pb.port.Measures, measure)
	}
}

// ParseValueLenient parses a numeric cell. Empty, non-numeric and non-finite
// input yields 0.
func ParseValueLenient(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseCoordinate parses a latitude or longitude cell, returning nil when the
// cell is empty or not a finite number.
func ParseCoordinate(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// YearFromDate returns the calendar year of a date cell as written, without
// converting between time zones.
func YearFromDate(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}
