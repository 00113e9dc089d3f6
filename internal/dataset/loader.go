package dataset

import (
	"context"
	"fmt"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/util"
	"golang.org/x/sync/errgroup"
)

// Opener returns the raw bytes behind a dataset reference (path or URL).
type Opener interface {
	Open(ctx context.Context, ref string) ([]byte, error)
}

// Config locates the four datasets and describes how to read them.
type Config struct {
	Boundaries       string
	Cases            string
	Population       string
	Area             string
	NameProperty     string
	CaseField        string
	PopulationLayout districtstats.TableLayout
	AreaLayout       districtstats.TableLayout
	TableEncoding    string
}

// Loader fetches and decodes the four datasets concurrently.
type Loader struct {
	src Opener
	cfg Config
}

func NewLoader(src Opener, cfg Config) *Loader {
	if cfg.NameProperty == "" {
		cfg.NameProperty = DefaultNameProperty
	}
	if cfg.CaseField == "" {
		cfg.CaseField = DefaultCaseField
	}
	if cfg.PopulationLayout == (districtstats.TableLayout{}) {
		cfg.PopulationLayout = districtstats.PopulationLayout
	}
	if cfg.AreaLayout == (districtstats.TableLayout{}) {
		cfg.AreaLayout = districtstats.AreaLayout
	}
	return &Loader{src: src, cfg: cfg}
}

// Load retrieves all four datasets. The first failure cancels the remaining
// fetches and nothing is returned.
func (l *Loader) Load(ctx context.Context) (districtstats.Inputs, error) {
	var (
		boundaryRaw, caseRaw, popRaw, areaRaw []byte
		layer                                 *BoundaryLayer
		cases                                 []districtstats.CaseRecord
		popRows, areaRows                     [][]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := l.src.Open(gctx, l.cfg.Boundaries)
		if err != nil {
			return fmt.Errorf("open boundaries: %w", err)
		}
		boundaryRaw = raw
		layer, err = DecodeBoundaries(raw, l.cfg.NameProperty)
		return err
	})
	g.Go(func() error {
		raw, err := l.src.Open(gctx, l.cfg.Cases)
		if err != nil {
			return fmt.Errorf("open cases: %w", err)
		}
		caseRaw = raw
		cases, err = DecodeCases(raw, l.cfg.CaseField)
		return err
	})
	g.Go(func() error {
		raw, err := l.src.Open(gctx, l.cfg.Population)
		if err != nil {
			return fmt.Errorf("open population: %w", err)
		}
		popRaw = raw
		popRows, err = DecodeTable(l.cfg.Population, raw, l.cfg.TableEncoding)
		if err != nil {
			return fmt.Errorf("decode population: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		raw, err := l.src.Open(gctx, l.cfg.Area)
		if err != nil {
			return fmt.Errorf("open area: %w", err)
		}
		areaRaw = raw
		areaRows, err = DecodeTable(l.cfg.Area, raw, l.cfg.TableEncoding)
		if err != nil {
			return fmt.Errorf("decode area: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return districtstats.Inputs{}, err
	}

	return districtstats.Inputs{
		Boundaries:  layer.Boundaries(),
		Cases:       cases,
		Population:  districtstats.Table{Layout: l.cfg.PopulationLayout, Rows: popRows},
		Area:        districtstats.Table{Layout: l.cfg.AreaLayout, Rows: areaRows},
		Fingerprint: util.Fingerprint([]byte(l.settings()), boundaryRaw, caseRaw, popRaw, areaRaw),
		Geo:         layer,
	}, nil
}

// settings describes how the raw files are read. It is part of the fingerprint
// so a layout change is never mistaken for unchanged input.
func (l *Loader) settings() string {
	return fmt.Sprintf("name=%s;case=%s;population=%d:%d;area=%d:%d;encoding=%s",
		l.cfg.NameProperty, l.cfg.CaseField,
		l.cfg.PopulationLayout.NameColumn, l.cfg.PopulationLayout.ValueColumn,
		l.cfg.AreaLayout.NameColumn, l.cfg.AreaLayout.ValueColumn,
		l.cfg.TableEncoding)
}
