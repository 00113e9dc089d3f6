package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
)

func TestDatasetConfig(t *testing.T) {
	cfg := config.Config{
		BoundariesSource:     "b.json",
		CasesSource:          "https://example.com/cases.json",
		PopulationSource:     "p.txt",
		AreaSource:           "a.xlsx",
		BoundaryNameProperty: "name",
		CaseDistrictField:    "gu",
		PopulationNameColumn: 0,
		PopulationValueCol:   2,
		AreaNameColumn:       1,
		AreaValueColumn:      4,
		TableEncoding:        "euc-kr",
	}
	got := DatasetConfig(cfg)
	if got.Boundaries != "b.json" || got.Cases != cfg.CasesSource || got.NameProperty != "name" || got.CaseField != "gu" {
		t.Errorf("sources = %+v", got)
	}
	if got.PopulationLayout != (districtstats.TableLayout{NameColumn: 0, ValueColumn: 2}) {
		t.Errorf("population layout = %+v", got.PopulationLayout)
	}
	if got.AreaLayout != (districtstats.TableLayout{NameColumn: 1, ValueColumn: 4}) || got.TableEncoding != "euc-kr" {
		t.Errorf("area layout = %+v, encoding %q", got.AreaLayout, got.TableEncoding)
	}
}

func TestOpenStoresMemory(t *testing.T) {
	stores, err := OpenStores(context.Background(), config.Config{SnapshotStore: config.StoreMemory})
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	if stores.Snapshots != nil || stores.Runs != nil || stores.Close() != nil {
		t.Errorf("memory stores = %+v", stores)
	}
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := config.Config{SnapshotStore: config.StoreSQLite, DBPath: filepath.Join(t.TempDir(), "stats.db")}
	stores, err := OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStores: %v", err)
	}
	defer stores.Close()

	if _, err := stores.Snapshots.LatestSnapshot(context.Background()); !errors.Is(err, districtstats.ErrNoSnapshot) {
		t.Errorf("LatestSnapshot = %v, want ErrNoSnapshot", err)
	}
	runs, err := stores.Runs.ListRuns(context.Background(), 5)
	if err != nil || len(runs) != 0 {
		t.Errorf("ListRuns = %v, %v", runs, err)
	}
}
