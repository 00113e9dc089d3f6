// Package bootstrap turns a Config into the stores and loader the commands share.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/dataset"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/config"
	firestoreclient "github.com/gunhoflash/Project-ComputerGraphics/internal/platform/firestore"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/source"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/platform/sqlstore"
	"github.com/gunhoflash/Project-ComputerGraphics/internal/repository"
)

// Stores bundles the persistence backends selected by SNAPSHOT_STORE. A nil
// Snapshots keeps snapshots in memory only.
type Stores struct {
	Snapshots   districtstats.SnapshotStore
	Runs        districtstats.RunStore
	Description string
	close       func() error
}

// Close releases the backend.
func (s Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects the configured snapshot and run stores.
func OpenStores(ctx context.Context, cfg config.Config) (Stores, error) {
	switch cfg.SnapshotStore {
	case config.StoreMemory, "":
		return Stores{Description: "memory"}, nil

	case config.StoreFirestore:
		client, credsSource, err := firestoreclient.Connect(ctx, cfg)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Snapshots:   repository.NewSnapshotRepository(client),
			Runs:        repository.NewRunRepository(client),
			Description: fmt.Sprintf("firestore project %s (%s credentials)", cfg.FirebaseProjectID, credsSource),
			close:       client.Close,
		}, nil

	default:
		store, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver: cfg.SnapshotStore,
			Path:   cfg.DBPath,
			DSN:    cfg.DBConn,
		})
		if err != nil {
			return Stores{}, err
		}
		desc := fmt.Sprintf("%s at %s", store.Driver(), cfg.DBPath)
		if store.Driver() == sqlstore.DriverPgx {
			desc = "pgx"
		}
		return Stores{
			Snapshots:   store,
			Runs:        store,
			Description: desc,
			close:       store.Close,
		}, nil
	}
}

// DatasetConfig maps the environment settings onto the dataset loader.
func DatasetConfig(cfg config.Config) dataset.Config {
	return dataset.Config{
		Boundaries:   cfg.BoundariesSource,
		Cases:        cfg.CasesSource,
		Population:   cfg.PopulationSource,
		Area:         cfg.AreaSource,
		NameProperty: cfg.BoundaryNameProperty,
		CaseField:    cfg.CaseDistrictField,
		PopulationLayout: districtstats.TableLayout{
			NameColumn:  cfg.PopulationNameColumn,
			ValueColumn: cfg.PopulationValueCol,
		},
		AreaLayout: districtstats.TableLayout{
			NameColumn:  cfg.AreaNameColumn,
			ValueColumn: cfg.AreaValueColumn,
		},
		TableEncoding: cfg.TableEncoding,
	}
}

// NewLoader builds the dataset loader, reading relative paths from DATA_DIR.
func NewLoader(cfg config.Config) *dataset.Loader {
	src := source.New(nil, source.Config{
		BaseDir:    cfg.DataDir,
		MaxRetries: cfg.SourceMaxRetries,
		BreakerMax: cfg.SourceBreakerMax,
	})
	return dataset.NewLoader(src, DatasetConfig(cfg))
}
