// Command validate performs data integrity checks on a Border Crossing Entry
// Data rows.json document: row shape, aggregation invariants, an independent
// recount of every port, and (optionally) parity with an aggregate
// fixture produced by genmock.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -rows-json data/mock/border_rows_sample.json \
//	  -aggregate-json /tmp/border_aggregate.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/border-data-service/internal/adapter/socrata"
	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// tolerance absorbs float summation order differences.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rowsJSON := flag.String("rows-json", "", "path to a Socrata rows.json document")
	aggregateJSON := flag.String("aggregate-json", "", "optional path to an aggregate fixture to compare against")
	flag.Parse()

	if *rowsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rowsJSON, *aggregateJSON); code != 0 {
		os.Exit(code)
	}
}

func run(rowsPath, aggregatePath string) int {
	fmt.Println("=== Border Data Integrity Validation ===")
	fmt.Println()

	rows, err := socrata.FileFetcher{Path: rowsPath}.FetchRows(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rows: %v\n", err)
		return 1
	}

	result := domain.BuildAggregates(rows)

	phases := []*phase{
		validateRowShape(rows, result),
		validateAggregateInvariants(result),
		validateRecount(rows, result),
		validateCoordinates(result),
	}
	if aggregatePath != "" {
		fixture, err := loadAggregate(aggregatePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load aggregate fixture: %v\n", err)
			return 1
		}
		phases = append(phases, validateFixtureParity(result, fixture))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	s := result.Stats
	fmt.Println()
	fmt.Printf("Rows: %d total, %d accepted, %d without port, %d bad/out-of-range date, %d zero value\n",
		s.Rows, s.Accepted, s.SkippedNoPort, s.SkippedBadDate, s.ZeroValue)
	fmt.Printf("Ports: %d seen, %d kept, %d dropped (zero total)\n", s.PortsSeen, len(result.Ports), s.PortsDropped)
	fmt.Printf("Years: %v\n", result.Years)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadAggregate(path string) (*domain.AggregateResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result domain.AggregateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ── Phase 1: Row Shape ──
// Every row is accounted for exactly once by the aggregation counters.

func validateRowShape(rows []domain.Row, result *domain.AggregateResult) *phase {
	p := &phase{name: "Phase 1: Row Shape"}
	s := result.Stats

	if len(rows) == 0 {
		p.errorf("document has no rows")
	}
	if s.Rows != len(rows) {
		p.errorf("stats report %d rows, document has %d", s.Rows, len(rows))
	}
	if got := s.Accepted + s.SkippedNoPort + s.SkippedBadDate; got != s.Rows {
		p.errorf("accepted+skipped = %d, want %d", got, s.Rows)
	}
	if s.Accepted == 0 && len(rows) > 0 {
		p.errorf("no row was accepted; column layout may have changed")
	}
	if s.PortsSeen-s.PortsDropped != len(result.Ports) {
		p.errorf("ports seen %d - dropped %d != kept %d", s.PortsSeen, s.PortsDropped, len(result.Ports))
	}
	return p
}

// ── Phase 2: Aggregate Invariants ──

func validateAggregateInvariants(result *domain.AggregateResult) *phase {
	p := &phase{name: "Phase 2: Aggregate Invariants"}

	seen := make(map[string]bool, len(result.Ports))
	for i := range result.Ports {
		port := &result.Ports[i]

		if seen[port.Key] {
			p.errorf("duplicate port key %q", port.Key)
		}
		seen[port.Key] = true

		if want := domain.PortKey(port.PortName, port.State, port.Border); port.Key != want {
			p.errorf("port %q: key does not match name/state/border (%q)", port.Key, want)
		}
		if port.TotalValue <= 0 {
			p.errorf("port %q: non-positive total %v kept", port.Key, port.TotalValue)
		}

		var sum float64
		for y, v := range port.TotalsByYear {
			if y < domain.MinYear || y > domain.MaxYear {
				p.errorf("port %q: year %d outside window", port.Key, y)
			}
			sum += v
		}
		if math.Abs(sum-port.TotalValue) > tolerance {
			p.errorf("port %q: year totals sum to %v, total is %v", port.Key, sum, port.TotalValue)
		}

		if i > 0 && result.Ports[i-1].TotalValue < port.TotalValue {
			p.errorf("ports %d and %d out of order (%v < %v)", i-1, i, result.Ports[i-1].TotalValue, port.TotalValue)
		}
	}

	if !slices.IsSorted(result.Years) {
		p.errorf("years not ascending: %v", result.Years)
	}
	for _, y := range result.Years {
		if _, ok := result.TotalsByYear[y]; !ok {
			p.errorf("year %d listed without a total", y)
		}
	}
	if len(result.Years) != len(result.TotalsByYear) {
		p.errorf("%d years listed, %d year totals", len(result.Years), len(result.TotalsByYear))
	}
	return p
}

// ── Phase 3: Independent Recount ──
// Re-folds the rows with a naive keyed sum and compares per-port totals.

func validateRecount(rows []domain.Row, result *domain.AggregateResult) *phase {
	p := &phase{name: "Phase 3: Independent Recount"}

	totals := map[string]float64{}
	for i := range rows {
		r := &rows[i]
		name := strings.TrimSpace(r.PortName)
		if name == "" {
			continue
		}
		year, ok := domain.YearFromDate(r.Date)
		if !ok || year < domain.MinYear || year > domain.MaxYear {
			continue
		}
		key := domain.PortKey(name, strings.TrimSpace(r.State), strings.TrimSpace(r.Border))
		totals[key] += domain.ParseValueLenient(r.Value)
	}

	kept := 0
	for key, total := range totals {
		port, found := domain.FindPort(result, key)
		switch {
		case total > 0 && !found:
			p.errorf("port %q: total %v but missing from aggregate", key, total)
		case total <= 0 && found:
			p.errorf("port %q: zero total but present in aggregate", key)
		case found && math.Abs(port.TotalValue-total) > tolerance:
			p.errorf("port %q: aggregate %v, recount %v", key, port.TotalValue, total)
		}
		if total > 0 {
			kept++
		}
	}
	if kept != len(result.Ports) {
		p.errorf("recount keeps %d ports, aggregate has %d", kept, len(result.Ports))
	}
	return p
}

// ── Phase 4: Coordinates ──

func validateCoordinates(result *domain.AggregateResult) *phase {
	p := &phase{name: "Phase 4: Coordinates"}

	for i := range result.Ports {
		port := &result.Ports[i]
		if port.Lat != nil && (*port.Lat < -90 || *port.Lat > 90) {
			p.errorf("port %q: latitude %v out of range", port.Key, *port.Lat)
		}
		if port.Lon != nil && (*port.Lon < -180 || *port.Lon > 180) {
			p.errorf("port %q: longitude %v out of range", port.Key, *port.Lon)
		}
		if port.HasCoordinates() != (port.CoordSource != "") {
			p.errorf("port %q: coordinate source %q inconsistent with coordinates", port.Key, port.CoordSource)
		}
	}
	return p
}

// ── Phase 5: Fixture Parity ──

func validateFixtureParity(result, fixture *domain.AggregateResult) *phase {
	p := &phase{name: "Phase 5: Fixture Parity"}

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.AggregateResult{}, "LoadID", "LoadedAt"),
		cmpopts.EquateApprox(0, tolerance),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(fixture, result, opts); diff != "" {
		p.errorf("aggregate differs from fixture (-fixture +fresh):\n%s", diff)
	}
	return p
}
