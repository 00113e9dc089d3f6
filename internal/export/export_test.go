package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"reflect"
	"testing"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

func sampleDistricts() []model.DistrictStats {
	return []model.DistrictStats{
		{District: "용산구", Population: 0, Area: 21.87, Density: 0,
			ConfirmedRatio: model.NaNRatio(), ConfirmedRatioAdjusted: model.NaNRatio()},
		{District: "종로구", ConfirmedCount: 2, Population: 1000, Area: 20, Density: 50,
			ConfirmedRatio: 0.002, ConfirmedRatioAdjusted: 0.5},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, model.Snapshot{Districts: sampleDistricts()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		header,
		{"용산구", "0", "0", "21.87", "0", "", ""},
		{"종로구", "2", "1000", "20", "50", "0.002", "0.5"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %q, want %q", records, want)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, model.Snapshot{Districts: sampleDistricts()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("districts")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 || !reflect.DeepEqual(rows[0], header) {
		t.Fatalf("rows = %q", rows)
	}
	if rows[2][0] != "종로구" || rows[2][1] != "2" || rows[2][5] != "0.002" {
		t.Errorf("종로구 row = %q", rows[2])
	}
	if len(rows[1]) > 5 && rows[1][5] != "" {
		t.Errorf("undefined ratio should be empty, got %q", rows[1][5])
	}
}

func TestWriteParquet(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatParquet, model.Snapshot{Districts: sampleDistricts()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data := buf.Bytes()
	reader := parquet.NewGenericReader[DistrictRow](bytes.NewReader(data))
	defer reader.Close()

	rows := make([]DistrictRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	rows = rows[:n]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].District != "용산구" || rows[0].ConfirmedRatio != nil || rows[0].Density == nil {
		t.Errorf("용산구 row = %+v", rows[0])
	}
	if rows[1].ConfirmedRatio == nil || *rows[1].ConfirmedRatio != 0.002 || rows[1].ConfirmedCount != 2 {
		t.Errorf("종로구 row = %+v", rows[1])
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(io.Discard, "pdf", model.Snapshot{}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestFileNameAndContentType(t *testing.T) {
	if got := FileName(model.Snapshot{ID: "SNAP_1_ab"}, FormatCSV); got != "district-stats-snap_1_ab.csv" {
		t.Errorf("FileName = %q", got)
	}
	if got := ContentType(FormatParquet); got != "application/vnd.apache.parquet" {
		t.Errorf("ContentType = %q", got)
	}
}
