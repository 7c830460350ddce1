package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var numberPrinter = message.NewPrinter(language.AmericanEnglish)

// Trend phrases used by PortNarrative.
const (
	trendUp     = "an overall upward trend"
	trendDown   = "a slight decline over time"
	trendStable = "a relatively stable pattern"
)

// FormatNumber renders a value with en-US digit grouping, e.g. 1234567 -> "1,234,567".
func FormatNumber(v float64) string {
	return numberPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// FindPort looks a port up by its composite key.
func FindPort(result *AggregateResult, key string) (*Port, bool) {
	if result == nil || key == "" {
		return nil, false
	}
	for i := range result.Ports {
		if result.Ports[i].Key == key {
			return &result.Ports[i], true
		}
	}
	return nil, false
}

// Series returns one point per year, using 0 where the port has no data.
func Series(p *Port, years []int) []YearValue {
	out := make([]YearValue, len(years))
	for i, y := range years {
		out[i] = YearValue{Year: y, Value: p.TotalsByYear[y]}
	}
	return out
}

// PortNarrative summarises a port's activity across years: the total, the peak
// year and the change between the first and last year.
func PortNarrative(p *Port, years []int) string {
	if p == nil {
		return ""
	}

	var nonZero []YearValue
	for _, pt := range Series(p, years) {
		if pt.Value > 0 {
			nonZero = append(nonZero, pt)
		}
	}

	if len(nonZero) == 0 {
		if len(years) == 0 {
			return fmt.Sprintf("For port %s, there is no recorded Value.", p.PortName)
		}
		return fmt.Sprintf("For port %s, there is no recorded Value between %d and %d.",
			p.PortName, years[0], years[len(years)-1])
	}

	var total float64
	peak := nonZero[0]
	for _, pt := range nonZero {
		total += pt.Value
		if pt.Value > peak.Value {
			peak = pt
		}
	}

	firstYear, lastYear := years[0], years[len(years)-1]
	firstVal, lastVal := p.TotalsByYear[firstYear], p.TotalsByYear[lastYear]

	trend := trendStable
	switch delta := lastVal - firstVal; {
	case delta > 0:
		trend = trendUp
	case delta < 0:
		trend = trendDown
	}

	return strings.Join([]string{
		fmt.Sprintf("Between %d and %d, port %s recorded a total Value of %s.",
			firstYear, lastYear, p.Label(), FormatNumber(total)),
		fmt.Sprintf("Traffic peaked in %d with %s units of Value, indicating a local maximum in border activity.",
			peak.Year, FormatNumber(peak.Value)),
		fmt.Sprintf("Comparing the start and end of the period, %d logged %s, while %d reached %s, suggesting %s.",
			firstYear, FormatNumber(firstVal), lastYear, FormatNumber(lastVal), trend),
	}, " ")
}

// PortSummary is one side of a Comparison.
type PortSummary struct {
	Key       string      `json:"key"`
	PortName  string      `json:"port_name"`
	State     string      `json:"state,omitempty"`
	Total     float64     `json:"total"`
	Series    []YearValue `json:"series"`
	Narrative string      `json:"narrative"`
}

// Comparison contrasts two ports over the same years. Either side may be nil.
type Comparison struct {
	Years   []int        `json:"years"`
	A       *PortSummary `json:"a,omitempty"`
	B       *PortSummary `json:"b,omitempty"`
	Leader  string       `json:"leader,omitempty"` // key of the port with the larger total
	Summary string       `json:"summary,omitempty"`
}

// Compare builds a side-by-side summary of two ports. The summary sentence is
// only produced when both ports are present.
func Compare(a, b *Port, years []int) Comparison {
	c := Comparison{Years: years}
	if a != nil {
		c.A = summarize(a, years)
	}
	if b != nil {
		c.B = summarize(b, years)
	}
	if c.A == nil || c.B == nil {
		return c
	}

	var verdict string
	switch {
	case c.A.Total > c.B.Total:
		c.Leader = c.A.Key
		verdict = fmt.Sprintf("%s has a higher cumulative Value than %s.", a.PortName, b.PortName)
	case c.B.Total > c.A.Total:
		c.Leader = c.B.Key
		verdict = fmt.Sprintf("%s has a higher cumulative Value than %s.", b.PortName, a.PortName)
	default:
		verdict = "Both ports show very similar cumulative Value over the observed period."
	}

	c.Summary = fmt.Sprintf("In direct comparison, Port A totals %s while Port B totals %s. %s",
		FormatNumber(c.A.Total), FormatNumber(c.B.Total), verdict)
	return c
}

func summarize(p *Port, years []int) *PortSummary {
	series := Series(p, years)
	var total float64
	for _, pt := range series {
		total += pt.Value
	}
	return &PortSummary{
		Key:       p.Key,
		PortName:  p.PortName,
		State:     p.State,
		Total:     total,
		Series:    series,
		Narrative: PortNarrative(p, years),
	}
}

// MaxByYear returns the largest single-port value for each year in the result.
// Years where every port is 0 map to 1 so callers can divide safely.
func MaxByYear(result *AggregateResult) map[int]float64 {
	out := make(map[int]float64, len(result.Years))
	for _, y := range result.Years {
		var maxVal float64
		for i := range result.Ports {
			if v := result.Ports[i].TotalsByYear[y]; v > maxVal {
				maxVal = v
			}
		}
		if maxVal == 0 {
			maxVal = 1
		}
		out[y] = maxVal
	}
	return out
}

// PortsForYear lists ports with a positive value in the given year, in
// ranking order.
func PortsForYear(result *AggregateResult, year int) []PortYearValue {
	var out []PortYearValue
	for i := range result.Ports {
		p := &result.Ports[i]
		v := p.TotalsByYear[year]
		if v <= 0 {
			continue
		}
		out = append(out, PortYearValue{
			Key:      p.Key,
			PortName: p.PortName,
			State:    p.State,
			Border:   p.Border,
			Value:    v,
		})
	}
	return out
}

// MarkerRadius scales a map marker between 4 and 24 relative to maxVal.
// A zero value hides the marker.
func MarkerRadius(value, maxVal float64) float64 {
	if value <= 0 {
		return 0
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	return 4 + 20*(value/maxVal)
}

// BubbleSize scales a per-year bubble between 10 and 50 relative to maxVal.
func BubbleSize(value, maxVal float64) float64 {
	if maxVal <= 0 {
		maxVal = 1
	}
	return 10 + 40*(value/maxVal)
}
