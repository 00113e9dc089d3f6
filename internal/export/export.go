// Package export renders a snapshot's district table as CSV, XLSX or Parquet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/xuri/excelize/v2"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
)

var header = []string{
	"district", "confirmedCount", "population", "area", "density",
	"confirmedRatio", "confirmedRatioAdjusted",
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName suggests a download name for the snapshot in the given format.
func FileName(snap model.Snapshot, format string) string {
	id := snap.ID
	if id == "" {
		id = "snapshot"
	}
	return fmt.Sprintf("district-stats-%s.%s", strings.ToLower(id), format)
}

// Write renders the districts of snap to w.
func Write(w io.Writer, format string, snap model.Snapshot) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, snap.Districts)
	case FormatXLSX:
		return WriteXLSX(w, snap.Districts)
	case FormatParquet:
		return WriteParquet(w, snap.Districts)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes one header row and one row per district. Undefined ratios
// are left empty.
func WriteCSV(w io.Writer, districts []model.DistrictStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, d := range districts {
		record := []string{
			d.District,
			strconv.Itoa(d.ConfirmedCount),
			formatFloat(d.Population),
			formatFloat(d.Area),
			formatFloat(float64(d.Density)),
			formatFloat(float64(d.ConfirmedRatio)),
			formatFloat(float64(d.ConfirmedRatioAdjusted)),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", d.District, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteXLSX writes a single "districts" sheet.
func WriteXLSX(w io.Writer, districts []model.DistrictStats) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "districts"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
	}
	for rowIdx, d := range districts {
		values := []interface{}{
			d.District, d.ConfirmedCount, d.Population, d.Area,
			cellFloat(float64(d.Density)), cellFloat(float64(d.ConfirmedRatio)),
			cellFloat(float64(d.ConfirmedRatioAdjusted)),
		}
		for colIdx, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func cellFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// DistrictRow is the Parquet layout of one district. Undefined ratios are null.
type DistrictRow struct {
	District               string   `parquet:"district"`
	ConfirmedCount         int64    `parquet:"confirmed_count"`
	Population             float64  `parquet:"population"`
	Area                   float64  `parquet:"area"`
	Density                *float64 `parquet:"density,optional"`
	ConfirmedRatio         *float64 `parquet:"confirmed_ratio,optional"`
	ConfirmedRatioAdjusted *float64 `parquet:"confirmed_ratio_adjusted,optional"`
}

func optional(r model.Ratio) *float64 {
	if !r.Defined() {
		return nil
	}
	f := float64(r)
	return &f
}

// ParquetRows converts districts to their Parquet layout.
func ParquetRows(districts []model.DistrictStats) []DistrictRow {
	rows := make([]DistrictRow, len(districts))
	for i, d := range districts {
		rows[i] = DistrictRow{
			District:               d.District,
			ConfirmedCount:         int64(d.ConfirmedCount),
			Population:             d.Population,
			Area:                   d.Area,
			Density:                optional(d.Density),
			ConfirmedRatio:         optional(d.ConfirmedRatio),
			ConfirmedRatioAdjusted: optional(d.ConfirmedRatioAdjusted),
		}
	}
	return rows
}

// WriteParquet writes the districts as one zstd-compressed row group.
func WriteParquet(w io.Writer, districts []model.DistrictStats) error {
	writer := parquet.NewGenericWriter[DistrictRow](w,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("district-stats", "1.0", ""),
	)
	if _, err := writer.Write(ParquetRows(districts)); err != nil {
		writer.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
