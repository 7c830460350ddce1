// Command genmock reads a Border Crossing Entry Data CSV export and generates
// the fixtures used by the service test suites: a Socrata rows.json document
// and the aggregate it produces. It runs the real domain package so fixtures
// always match what the service would serve.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv Border_Crossing_Entry_Data.csv \
//	  -rows-out /tmp/border_rows.json \
//	  -aggregate-out /tmp/border_aggregate.json \
//	  -xlsx-out /tmp/border-crossings.xlsx
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/border-data-service/internal/adapter/xlsx"
	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Column headers of the CSV export, mapped to Row fields.
var csvColumns = map[string]func(*domain.Row, string){
	"Port Name": func(r *domain.Row, v string) { r.PortName = v },
	"State":     func(r *domain.Row, v string) { r.State = v },
	"Port Code": func(r *domain.Row, v string) { r.PortCode = v },
	"Border":    func(r *domain.Row, v string) { r.Border = v },
	"Date":      func(r *domain.Row, v string) { r.Date = v },
	"Measure":   func(r *domain.Row, v string) { r.Measure = v },
	"Value":     func(r *domain.Row, v string) { r.Value = v },
	"Latitude":  func(r *domain.Row, v string) { r.Latitude = v },
	"Longitude": func(r *domain.Row, v string) { r.Longitude = v },
}

type rowsDocument struct {
	Meta map[string]any `json:"meta"`
	Data []domain.Row    `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "Border Crossing Entry Data CSV export")
	rowsOut := flag.String("rows-out", "", "output path for the rows.json fixture")
	aggregateOut := flag.String("aggregate-out", "", "output path for the aggregate JSON fixture")
	xlsxOut := flag.String("xlsx-out", "", "optional output path for an XLSX workbook")
	limit := flag.Int("limit", 0, "keep only the first N data rows (0 keeps all)")
	flag.Parse()

	if *csvPath == "" || *rowsOut == "" || *aggregateOut == "" {
		flag.Usage()
		return errors.New("missing required flags: -csv, -rows-out, -aggregate-out")
	}

	// Set a fixed clock for reproducible LoadedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rows, err := readCSV(*csvPath, *limit)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	log.Printf("read %d rows", len(rows))

	doc := rowsDocument{
		Meta: map[string]any{"view": map[string]string{
			"name":        "Border Crossing Entry Data",
			"attribution": "Bureau of Transportation Statistics",
		}},
		Data: rows,
	}
	if err := writeJSON(*rowsOut, doc); err != nil {
		return fmt.Errorf("writing rows fixture: %w", err)
	}
	log.Printf("wrote rows fixture: %s", *rowsOut)

	result := domain.BuildAggregates(rows)
	if err := writeJSON(*aggregateOut, result); err != nil {
		return fmt.Errorf("writing aggregate fixture: %w", err)
	}
	log.Printf("wrote aggregate fixture: %s", *aggregateOut)

	if *xlsxOut != "" {
		if err := writeXLSX(*xlsxOut, result); err != nil {
			return fmt.Errorf("writing workbook: %w", err)
		}
		log.Printf("wrote workbook: %s", *xlsxOut)
	}

	printStats(result)
	return nil
}

func readCSV(path string, limit int) ([]domain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	setters := make([]func(*domain.Row, string), len(header))
	found := 0
	for i, h := range header {
		if set, ok := csvColumns[strings.TrimSpace(h)]; ok {
			setters[i] = set
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("no known columns in header %v", header)
	}

	var rows []domain.Row
	for limit <= 0 || len(rows) < limit {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		var row domain.Row
		for i, v := range rec {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(v))
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.New("no data rows")
	}
	return rows, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func writeXLSX(path string, result *domain.AggregateResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := xlsx.Write(f, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printStats(result *domain.AggregateResult) {
	s := result.Stats
	fmt.Printf("\n--- Fixture Stats ---\n")
	fmt.Printf("Rows: %d (accepted %d, no port %d, bad date %d, zero value %d)\n",
		s.Rows, s.Accepted, s.SkippedNoPort, s.SkippedBadDate, s.ZeroValue)
	fmt.Printf("Ports: %d kept, %d dropped\n", len(result.Ports), s.PortsDropped)

	fmt.Printf("\nYear totals:\n")
	for _, y := range result.Years {
		fmt.Printf("  %d: %s\n", y, domain.FormatNumber(result.TotalsByYear[y]))
	}

	n := min(5, len(result.Ports))
	fmt.Printf("\nTop %d ports:\n", n)
	for i := range n {
		p := &result.Ports[i]
		coords := "no coordinates"
		if p.HasCoordinates() {
			coords = fmt.Sprintf("%.3f,%.3f", *p.Lat, *p.Lon)
		}
		fmt.Printf("  %d. %s: %s (%s)\n", i+1, p.Label(), domain.FormatNumber(p.TotalValue), coords)
	}
}
