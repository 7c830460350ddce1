package domain

import (
	"errors"
	"time"
)

// Allowed aggregation window. Rows dated outside [MinYear, MaxYear] are ignored.
const (
	MinYear = 2020
	MaxYear = 2025
)

// ErrDataUnavailable reports that the upstream dataset could not be retrieved.
// Fetch errors wrap it so callers can match with errors.Is.
var ErrDataUnavailable = errors.New("border data unavailable")

// Coordinate sources recorded on Port.CoordSource.
const (
	CoordSourceDataset  = "dataset"
	CoordSourceGeocoded = "geocoded"
)

// AllowedYears returns MinYear..MaxYear in ascending order.
func AllowedYears() []int {
	years := make([]int, 0, MaxYear-MinYear+1)
	for y := MinYear; y <= MaxYear; y++ {
		years = append(years, y)
	}
	return years
}

// Port is a border crossing location, keyed by name, state and border.
type Port struct {
	Key          string          `json:"key"`
	PortName     string          `json:"port_name"`
	State        string          `json:"state,omitempty"`
	Border       string          `json:"border,omitempty"`
	PortCode     string          `json:"port_code,omitempty"`
	Lat          *float64        `json:"lat"`
	Lon          *float64        `json:"lon"`
	CoordSource  string          `json:"coord_source,omitempty"`
	TotalsByYear map[int]float64 `json:"totals_by_year"`
	TotalValue   float64         `json:"total_value"`
	Measures     []string        `json:"measures"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (p *Port) HasCoordinates() bool {
	return p.Lat != nil && p.Lon != nil
}

// Label is the display name used by reports: "Calexico (CA)".
func (p *Port) Label() string {
	if p.State == "" {
		return p.PortName
	}
	return p.PortName + " (" + p.State + ")"
}

// RowStats counts how rows were treated during aggregation.
type RowStats struct {
	Rows           int `json:"rows"`
	Accepted       int `json:"accepted"`
	SkippedNoPort  int `json:"skipped_no_port"`
	SkippedBadDate int `json:"skipped_bad_date"`
	ZeroValue      int `json:"zero_value"`
	PortsSeen      int `json:"ports_seen"`
	PortsDropped   int `json:"ports_dropped"`
}

// AggregateResult is the immutable per-port, per-year summary of the dataset.
// Ports are ordered by TotalValue descending; Years lists the allowed years
// that appeared in the data, ascending. LoadID identifies the load that
// produced it and is empty for results built outside an aggregator.
type AggregateResult struct {
	LoadID       string          `json:"load_id,omitempty"`
	Ports        []Port          `json:"ports"`
	Years        []int           `json:"years"`
	TotalsByYear map[int]float64 `json:"totals_by_year"`
	Stats        RowStats        `json:"stats"`
	LoadedAt     time.Time       `json:"loaded_at"`
}

// YearValue is one point of a per-year series.
type YearValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// PortYearValue is a port's value for a single year.
type PortYearValue struct {
	Key      string  `json:"key"`
	PortName string  `json:"port_name"`
	State    string  `json:"state,omitempty"`
	Border   string  `json:"border,omitempty"`
	Value    float64 `json:"value"`
}
