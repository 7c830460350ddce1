// Package xlsx renders an aggregate as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/border-data-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook.
const (
	SheetPorts = "Ports"
	SheetYears = "Years"
)

// ContentType is the MIME type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Write renders the aggregate as a two-sheet workbook: one row per port in
// ranking order, then one row per year with its total.
func Write(w io.Writer, result *domain.AggregateResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPorts); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetYears); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writePorts(f, result, header); err != nil {
		return fmt.Errorf("write %s sheet: %w", SheetPorts, err)
	}
	if err := writeYears(f, result, header); err != nil {
		return fmt.Errorf("write %s sheet: %w", SheetYears, err)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writePorts(f *excelize.File, result *domain.AggregateResult, headerStyle int) error {
	sw, err := f.NewStreamWriter(SheetPorts)
	if err != nil {
		return err
	}

	// Panes must be set before the first row is streamed.
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	headers := []any{"Rank", "Key", "Port", "State", "Border", "Port Code", "Latitude", "Longitude", "Coordinate Source"}
	for _, y := range result.Years {
		headers = append(headers, strconv.Itoa(y))
	}
	headers = append(headers, "Total", "Measures")

	if err := sw.SetRow("A1", headers, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}

	for i := range result.Ports {
		p := &result.Ports[i]
		row := []any{i + 1, p.Key, p.PortName, p.State, p.Border, p.PortCode, coord(p.Lat), coord(p.Lon), p.CoordSource}
		for _, y := range result.Years {
			row = append(row, p.TotalsByYear[y])
		}
		row = append(row, p.TotalValue, strings.Join(p.Measures, ", "))

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func writeYears(f *excelize.File, result *domain.AggregateResult, headerStyle int) error {
	sw, err := f.NewStreamWriter(SheetYears)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", []any{"Year", "Total", "Ports Reporting", "Top Port", "Top Port Value"},
		excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return err
	}

	for i, y := range result.Years {
		row := []any{y, result.TotalsByYear[y]}
		ranked := domain.PortsForYear(result, y)
		row = append(row, len(ranked))
		if top, ok := topPort(ranked); ok {
			row = append(row, top.PortName, top.Value)
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// topPort returns the port with the largest value; ties go to the higher ranked port.
func topPort(ranked []domain.PortYearValue) (domain.PortYearValue, bool) {
	if len(ranked) == 0 {
		return domain.PortYearValue{}, false
	}
	top := ranked[0]
	for _, pv := range ranked[1:] {
		if pv.Value > top.Value {
			top = pv
		}
	}
	return top, true
}

func coord(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
