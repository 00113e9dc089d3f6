package districtstats

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/util"
)

// Boundary is one district descriptor from the boundary dataset.
type Boundary struct {
	Name string
}

// CaseRecord is one confirmed case.
type CaseRecord struct {
	District string
}

// TableLayout names the zero-based columns holding the district name and the figure.
type TableLayout struct {
	NameColumn  int
	ValueColumn int
}

var (
	// PopulationLayout matches the district population export: the name in the
	// second column and the total population in the fourth.
	PopulationLayout = TableLayout{NameColumn: 1, ValueColumn: 3}
	// AreaLayout matches the district area export.
	AreaLayout = TableLayout{NameColumn: 1, ValueColumn: 2}
)

// Table is a materialized delimited table. A zero Layout selects the default
// layout for the table's role.
type Table struct {
	Layout TableLayout
	Rows   [][]string
}

// Result is the output of ComputeStats. Stats is freshly allocated per call and
// owned by the caller.
type Result struct {
	Stats    map[DistrictKey]model.DistrictStats
	MinRatio float64 // NaN when no district has a defined ratio
	MaxRatio float64
	Counters model.SnapshotCounters
	Warnings []error
}

var (
	errMissingValue = errors.New("value column missing")
	errNegative     = errors.New("negative figure")
	errNotFinite    = errors.New("figure is not finite")
)

type accumulator struct {
	count      int
	population float64
	area       float64
}

// ComputeStats joins cases, population and area onto the boundary districts and
// normalizes each district's confirmed ratio against the min/max over all
// districts with a defined ratio.
//
// When every defined ratio is equal the adjusted ratio is 0. A district with zero
// population has a NaN ratio and a NaN adjusted ratio. Unmatched cases and rows
// are dropped; an unparsable figure on a matched row fails the whole call.
func ComputeStats(boundaries []Boundary, cases []CaseRecord, population, area Table) (Result, error) {
	res := Result{MinRatio: math.NaN(), MaxRatio: math.NaN()}

	acc := make(map[DistrictKey]*accumulator, len(boundaries))
	for i, b := range boundaries {
		key, err := NewDistrictKey(b.Name)
		if err != nil {
			return Result{}, &DataFormatError{Dataset: "boundaries", Row: i, Column: -1, Value: b.Name, Err: err}
		}
		if _, ok := acc[key]; !ok {
			acc[key] = &accumulator{}
		}
	}
	if len(acc) == 0 {
		res.Warnings = append(res.Warnings, EmptyInputWarning{Dataset: "boundaries"})
	}

	res.Counters.Cases = len(cases)
	for _, c := range cases {
		a, ok := acc[DistrictKey(c.District)]
		if !ok {
			res.Counters.DroppedCases++
			continue
		}
		a.count++
	}

	used, dropped, err := applyTable("population", population, PopulationLayout, acc, util.ParseSeparatedFigure,
		func(a *accumulator, v float64) { a.population = v })
	if err != nil {
		return Result{}, err
	}
	res.Counters.PopulationRows, res.Counters.DroppedPopulationRows = used, dropped

	used, dropped, err = applyTable("area", area, AreaLayout, acc, util.ParsePlainFigure,
		func(a *accumulator, v float64) { a.area = v })
	if err != nil {
		return Result{}, err
	}
	res.Counters.AreaRows, res.Counters.DroppedAreaRows = used, dropped

	ratios := make(map[DistrictKey]float64, len(acc))
	lo, hi := math.Inf(1), math.Inf(-1)
	for key, a := range acc {
		r := math.NaN()
		if a.population != 0 {
			r = float64(a.count) / a.population
		}
		ratios[key] = r
		if math.IsNaN(r) {
			continue
		}
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	if !math.IsInf(lo, 1) {
		res.MinRatio, res.MaxRatio = lo, hi
	}

	res.Stats = make(map[DistrictKey]model.DistrictStats, len(acc))
	for key, a := range acc {
		r := ratios[key]
		density := math.NaN()
		if a.area != 0 {
			density = a.population / a.area
		}
		res.Stats[key] = model.DistrictStats{
			District:               string(key),
			ConfirmedCount:         a.count,
			Population:             a.population,
			Area:                   a.area,
			Density:                model.Ratio(density),
			ConfirmedRatio:         model.Ratio(r),
			ConfirmedRatioAdjusted: model.Ratio(adjustRatio(r, res.MinRatio, res.MaxRatio)),
		}
	}
	res.Counters.Districts = len(res.Stats)
	return res, nil
}

func applyTable(
	dataset string,
	t Table,
	defaultLayout TableLayout,
	acc map[DistrictKey]*accumulator,
	parse func(string) (float64, error),
	set func(*accumulator, float64),
) (used, dropped int, err error) {
	layout := t.Layout
	if layout == (TableLayout{}) {
		layout = defaultLayout
	}
	for i, row := range t.Rows {
		if layout.NameColumn < 0 || layout.NameColumn >= len(row) {
			dropped++
			continue
		}
		a, ok := acc[DistrictKey(row[layout.NameColumn])]
		if !ok {
			dropped++
			continue
		}
		if layout.ValueColumn < 0 || layout.ValueColumn >= len(row) {
			return 0, 0, &DataFormatError{Dataset: dataset, Row: i, Column: layout.ValueColumn, Err: errMissingValue}
		}
		raw := row[layout.ValueColumn]
		v, err := parse(raw)
		if err != nil {
			return 0, 0, &DataFormatError{Dataset: dataset, Row: i, Column: layout.ValueColumn, Value: raw, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, &DataFormatError{Dataset: dataset, Row: i, Column: layout.ValueColumn, Value: raw, Err: errNotFinite}
		}
		if v < 0 {
			return 0, 0, &DataFormatError{Dataset: dataset, Row: i, Column: layout.ValueColumn, Value: raw, Err: errNegative}
		}
		set(a, v)
		used++
	}
	return used, dropped, nil
}

func adjustRatio(r, lo, hi float64) float64 {
	if math.IsNaN(r) {
		return math.NaN()
	}
	if !(hi > lo) {
		return 0
	}
	v := (r - lo) / (hi - lo)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Sorted returns the districts ordered by name.
func (r Result) Sorted() []model.DistrictStats {
	out := make([]model.DistrictStats, 0, len(r.Stats))
	for _, s := range r.Stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out
}

// Snapshot freezes the result into a persistable snapshot.
func (r Result) Snapshot(id string, computedAt time.Time, fingerprint string) model.Snapshot {
	warnings := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		warnings = append(warnings, w.Error())
	}
	return model.Snapshot{
		ID:          id,
		ComputedAt:  computedAt,
		Fingerprint: fingerprint,
		MinRatio:    model.Ratio(r.MinRatio),
		MaxRatio:    model.Ratio(r.MaxRatio),
		Counters:    r.Counters,
		Warnings:    warnings,
		Districts:   r.Sorted(),
	}
}
