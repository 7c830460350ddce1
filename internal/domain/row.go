package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Positions of the fields consumed from a Socrata rows.json record. Cells 0-7
// hold Socrata row metadata (sid, id, position, timestamps) and are ignored.
const (
	colPortName  = 8
	colState     = 9
	colPortCode  = 10
	colBorder    = 11
	colDate      = 12
	colMeasure   = 13
	colValue     = 14
	colLatitude  = 15
	colLongitude = 16

	rowWidth = 17
)

// Row is one border crossing measurement from the upstream dataset. Every
// field keeps the raw cell text; empty means the cell was null or missing.
type Row struct {
	PortName  string
	State     string
	PortCode  string
	Border    string
	Date      string
	Measure   string
	Value     string
	Latitude  string
	Longitude string
}

// UnmarshalJSON decodes a positional Socrata row. It never fails on content:
// short rows leave trailing fields empty, non-array input yields a zero Row.
func (r *Row) UnmarshalJSON(data []byte) error {
	*r = Row{}

	var cells []json.RawMessage
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil //nolint:nilerr // malformed rows degrade to a skipped row
	}

	cell := func(i int) string {
		if i >= len(cells) {
			return ""
		}
		return cellText(cells[i])
	}

	r.PortName = cell(colPortName)
	r.State = cell(colState)
	r.PortCode = cell(colPortCode)
	r.Border = cell(colBorder)
	r.Date = cell(colDate)
	r.Measure = cell(colMeasure)
	r.Value = cell(colValue)
	r.Latitude = cell(colLatitude)
	r.Longitude = cell(colLongitude)
	return nil
}

// MarshalJSON encodes the row back into the positional layout, with null for
// metadata cells and empty fields.
func (r Row) MarshalJSON() ([]byte, error) {
	cells := make([]any, rowWidth)
	set := func(i int, v string) {
		if v != "" {
			cells[i] = v
		}
	}

	set(colPortName, r.PortName)
	set(colState, r.State)
	set(colPortCode, r.PortCode)
	set(colBorder, r.Border)
	set(colDate, r.Date)
	set(colMeasure, r.Measure)
	set(colValue, r.Value)
	set(colLatitude, r.Latitude)
	set(colLongitude, r.Longitude)
	return json.Marshal(cells)
}

// cellText converts a raw JSON cell to text. Strings are unquoted, numbers and
// booleans keep their literal form, anything else becomes "".
func cellText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't', 'f':
		if b, err := strconv.ParseBool(string(raw)); err == nil {
			return strconv.FormatBool(b)
		}
		return ""
	case 'n', '[', '{':
		return ""
	default:
		return string(raw)
	}
}
