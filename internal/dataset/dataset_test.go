package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestDecodeBoundaries(t *testing.T) {
	layer, err := DecodeBoundaries(readFixture(t, "boundaries.geojson"), "")
	if err != nil {
		t.Fatalf("DecodeBoundaries: %v", err)
	}
	want := []districtstats.Boundary{{Name: "종로구"}, {Name: "중구"}, {Name: "용산구"}}
	if got := layer.Boundaries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("boundaries = %v, want %v", got, want)
	}

	lng, lat, ok := layer.Centroid("종로구")
	if !ok || math.Abs(lng-1) > 1e-9 || math.Abs(lat-1) > 1e-9 {
		t.Errorf("centroid = (%v, %v, %v), want (1, 1, true)", lng, lat, ok)
	}
	if _, _, ok := layer.Centroid("강남구"); ok {
		t.Errorf("centroid of unknown district should not be ok")
	}

	tests := []struct {
		lng, lat float64
		want     string
	}{
		{1, 1, "종로구"},
		{2.2, 0.2, "중구"},
		{10.5, 10.5, "중구"},
		{3, 1, ""}, // inside the hole
		{50, 50, ""},
	}
	for _, tt := range tests {
		got, ok := layer.Locate(tt.lng, tt.lat)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("Locate(%v, %v) = %q, %v; want %q", tt.lng, tt.lat, got, ok, tt.want)
		}
	}
}

func TestDecodeBoundariesNameList(t *testing.T) {
	layer, err := DecodeBoundaries([]byte(` [{"name":"A"},{"name":"B"},{"other":1}]`), "")
	if err != nil {
		t.Fatalf("DecodeBoundaries: %v", err)
	}
	want := []districtstats.Boundary{{Name: "A"}, {Name: "B"}, {Name: ""}}
	if got := layer.Boundaries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("boundaries = %v, want %v", got, want)
	}

	if _, err := DecodeBoundaries([]byte(`{not json`), ""); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeCases(t *testing.T) {
	cases, err := DecodeCases(readFixture(t, "cases.json"), "")
	if err != nil {
		t.Fatalf("DecodeCases: %v", err)
	}
	got := make([]string, len(cases))
	for i, c := range cases {
		got[i] = c.District
	}
	want := []string{"종로구", "종로구", "중구", "타시도", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("districts = %v, want %v", got, want)
	}

	bare, err := DecodeCases([]byte(`[{"gu":"중구"}]`), "gu")
	if err != nil || len(bare) != 1 || bare[0].District != "중구" {
		t.Fatalf("bare array = %v, %v", bare, err)
	}
}

func TestDecodeTableFormats(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		data     []byte
		encoding string
		want     [][]string
	}{
		{
			name: "tsv skips blank lines",
			ref:  "population.txt",
			data: readFixture(t, "population.txt"),
			want: [][]string{
				{"기간", "자치구", "세대", "인구"},
				{"2020.3/4", "합계", "4,417,954", "10,013,781"},
				{"2020.3/4", "종로구", "73,947", "1,000"},
				{"2020.3/4", "중구", "63,371", "500"},
				{"2020.3/4", "용산구", "110,111", "0"},
			},
		},
		{
			name: "csv with bom",
			ref:  "area.csv",
			data: readFixture(t, "area.csv"),
			want: [][]string{
				{"기간", "자치구", "면적"},
				{"2019", "종로구", "20"},
				{"2019", "중구", "10"},
				{"2019", "용산구", "21.87"},
			},
		},
		{
			name: "html table served as xls",
			ref:  "https://data.seoul.go.kr/population.xls?download=1",
			data: readFixture(t, "population.xls"),
			want: [][]string{
				{"기간", "자치구", "세대", "인구"},
				{"2020.3/4", "종로구", "73,947", "1,000"},
				{"2020.3/4", "중구", "63,371", "500"},
			},
		},
		{
			name: "semicolon delimited",
			ref:  "area.dat",
			data: []byte("a;b;1,5\nc;d;2\n"),
			want: [][]string{{"a", "b", "1,5"}, {"c", "d", "2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTable(tt.ref, tt.data, tt.encoding)
			if err != nil {
				t.Fatalf("DecodeTable: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rows = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeTableEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("기간\t자치구\t인구\n2020\t종로구\t1,000\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeTable("population.txt", []byte(encoded), "cp949")
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	want := [][]string{{"기간", "자치구", "인구"}, {"2020", "종로구", "1,000"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}

	if _, err := DecodeTable("population.txt", []byte(encoded), "latin9"); err == nil {
		t.Fatalf("expected unsupported encoding error")
	}
}

func TestDecodeTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"기간", "자치구", "면적"},
		{"2019", " 종로구 ", "23.91"},
		{},
		{"2019", "중구", "9.96"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := DecodeTable("area.xlsx", buf.Bytes(), "")
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	want := [][]string{{"기간", "자치구", "면적"}, {"2019", "종로구", "23.91"}, {"2019", "중구", "9.96"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
}

type dirOpener struct {
	dir    string
	failOn string
}

func (o dirOpener) Open(ctx context.Context, ref string) ([]byte, error) {
	if ref == o.failOn {
		return nil, errors.New("unreachable")
	}
	return os.ReadFile(filepath.Join(o.dir, ref))
}

func testConfig() Config {
	return Config{
		Boundaries: "boundaries.geojson",
		Cases:      "cases.json",
		Population: "population.txt",
		Area:       "area.csv",
	}
}

func TestLoaderLoad(t *testing.T) {
	loader := NewLoader(dirOpener{dir: "testdata"}, testConfig())
	in, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(in.Boundaries) != 3 || len(in.Cases) != 5 {
		t.Fatalf("loaded %d boundaries, %d cases", len(in.Boundaries), len(in.Cases))
	}
	if in.Population.Layout != districtstats.PopulationLayout || in.Area.Layout != districtstats.AreaLayout {
		t.Errorf("layouts = %v/%v", in.Population.Layout, in.Area.Layout)
	}
	if len(in.Fingerprint) != 32 {
		t.Errorf("fingerprint = %q", in.Fingerprint)
	}

	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Fingerprint != in.Fingerprint {
		t.Errorf("fingerprint changed between identical loads")
	}

	res, err := districtstats.ComputeStats(in.Boundaries, in.Cases, in.Population, in.Area)
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	jongno := res.Stats["종로구"]
	if jongno.ConfirmedCount != 2 || jongno.Population != 1000 || jongno.Area != 20 {
		t.Errorf("종로구 = %+v", jongno)
	}
	if yongsan := res.Stats["용산구"]; yongsan.ConfirmedRatio.Defined() {
		t.Errorf("용산구 ratio should be undefined, got %v", yongsan.ConfirmedRatio)
	}
	if res.Counters.DroppedCases != 2 {
		t.Errorf("dropped cases = %d, want 2", res.Counters.DroppedCases)
	}

	snap := res.Snapshot("SNAP_1_test", time.Date(2020, 11, 22, 0, 0, 0, 0, time.UTC), in.Fingerprint)
	raw, err := in.Geo.FeatureCollection(snap)
	if err != nil {
		t.Fatalf("FeatureCollection: %v", err)
	}
	var fc struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &fc); err != nil {
		t.Fatalf("unmarshal feature collection: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}
	props := fc.Features[0].Properties
	if props["SIG_CD"] != "11110" || props["n_confirmed"] != float64(2) {
		t.Errorf("종로구 properties = %v", props)
	}
	if v, ok := fc.Features[2].Properties["confirmedRatio"]; !ok || v != nil {
		t.Errorf("용산구 confirmedRatio = %v (present %v), want null", v, ok)
	}
}

func TestLoaderFailsAsAWhole(t *testing.T) {
	loader := NewLoader(dirOpener{dir: "testdata", failOn: "area.csv"}, testConfig())
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestLoaderFingerprintCoversLayout(t *testing.T) {
	base := NewLoader(dirOpener{dir: "testdata"}, testConfig())
	want, err := base.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"population value column", func(c *Config) { c.PopulationLayout = districtstats.TableLayout{NameColumn: 1, ValueColumn: 2} }},
		{"area layout", func(c *Config) { c.AreaLayout = districtstats.TableLayout{NameColumn: 0, ValueColumn: 2} }},
		{"name property", func(c *Config) { c.NameProperty = "SIG_ENG_NM" }},
		{"case field", func(c *Config) { c.CaseField = "corona19_id" }},
		{"encoding", func(c *Config) { c.TableEncoding = "euc-kr" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			l := NewLoader(dirOpener{dir: "testdata"}, cfg)
			if l.settings() == base.settings() {
				t.Fatalf("settings unchanged: %s", l.settings())
			}
		})
	}

	cfg := testConfig()
	cfg.PopulationLayout = districtstats.TableLayout{NameColumn: 1, ValueColumn: 2}
	got, err := NewLoader(dirOpener{dir: "testdata"}, cfg).Load(context.Background())
	if err != nil {
		t.Fatalf("Load with new layout: %v", err)
	}
	if got.Fingerprint == want.Fingerprint {
		t.Errorf("fingerprint %s ignores the population layout", got.Fingerprint)
	}
}

func TestServiceRecomputesAfterLayoutChange(t *testing.T) {
	ctx := context.Background()
	store := &districtstats.MemorySnapshotStore{}
	quiet := func(string) {}

	first := districtstats.NewService(NewLoader(dirOpener{dir: "testdata"}, testConfig()), store, nil, quiet)
	if _, _, err := first.Refresh(ctx, districtstats.TriggerStartup); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	cfg := testConfig()
	cfg.PopulationLayout = districtstats.TableLayout{NameColumn: 1, ValueColumn: 2}
	second := districtstats.NewService(NewLoader(dirOpener{dir: "testdata"}, cfg), store, nil, quiet)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	_, run, err := second.Refresh(ctx, districtstats.TriggerStartup)
	if err != nil {
		t.Fatalf("Refresh after layout change: %v", err)
	}
	if run.Status != model.RunStatusSuccess {
		t.Fatalf("status = %q, want %q", run.Status, model.RunStatusSuccess)
	}
	jongno, err := second.District("종로구")
	if err != nil {
		t.Fatalf("District: %v", err)
	}
	if jongno.Population != 73947 {
		t.Errorf("종로구 population = %v, want 73947", jongno.Population)
	}
}
