package districtstats

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

// RankingFields lists the fields districts can be ranked by.
var RankingFields = map[string]func(model.DistrictStats) float64{
	"confirmedCount":         func(d model.DistrictStats) float64 { return float64(d.ConfirmedCount) },
	"confirmedRatio":         func(d model.DistrictStats) float64 { return float64(d.ConfirmedRatio) },
	"confirmedRatioAdjusted": func(d model.DistrictStats) float64 { return float64(d.ConfirmedRatioAdjusted) },
	"population":             func(d model.DistrictStats) float64 { return d.Population },
	"area":                   func(d model.DistrictStats) float64 { return d.Area },
	"density":                func(d model.DistrictStats) float64 { return float64(d.Density) },
}

// Rank orders districts by the given field, largest first. Undefined values
// sort last and ties are broken by district name. limit <= 0 returns all.
func Rank(districts []model.DistrictStats, by string, limit int) ([]model.DistrictStats, error) {
	value, ok := RankingFields[by]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRankingAxis, by)
	}
	if len(districts) == 0 {
		return []model.DistrictStats{}, nil
	}

	names := make([]string, len(districts))
	keys := make([]float64, len(districts))
	byName := make(map[string]model.DistrictStats, len(districts))
	for i, d := range districts {
		names[i] = d.District
		v := value(d)
		if math.IsNaN(v) {
			v = math.Inf(-1)
		}
		keys[i] = v
		byName[d.District] = d
	}

	df := dataframe.New(
		series.New(names, series.String, "district"),
		series.New(keys, series.Float, "key"),
	)
	sorted := df.Arrange(dataframe.RevSort("key"), dataframe.Sort("district"))
	if sorted.Err != nil {
		return nil, fmt.Errorf("rank by %s: %w", by, sorted.Err)
	}

	ordered := sorted.Col("district").Records()
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}
	out := make([]model.DistrictStats, 0, len(ordered))
	for _, name := range ordered {
		out = append(out, byName[name])
	}
	return out, nil
}
