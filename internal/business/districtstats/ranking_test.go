package districtstats

import (
	"errors"
	"math"
	"testing"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

func TestRank(t *testing.T) {
	districts := []model.DistrictStats{
		{District: "중구", ConfirmedCount: 3, Population: 100, ConfirmedRatio: 0.03},
		{District: "강남구", ConfirmedCount: 9, Population: 500, ConfirmedRatio: 0.018},
		{District: "종로구", ConfirmedCount: 3, Population: 0, ConfirmedRatio: model.NaNRatio()},
		{District: "구로구", ConfirmedCount: 3, Population: 300, ConfirmedRatio: 0.01},
	}

	tests := []struct {
		name  string
		by    string
		limit int
		want  []string
	}{
		{"count with name tie-break", "confirmedCount", 0, []string{"강남구", "구로구", "종로구", "중구"}},
		{"ratio puts undefined last", "confirmedRatio", 0, []string{"중구", "강남구", "구로구", "종로구"}},
		{"limit", "population", 2, []string{"강남구", "구로구"}},
		{"limit larger than input", "confirmedCount", 10, []string{"강남구", "구로구", "종로구", "중구"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rank(districts, tt.by, tt.limit)
			if err != nil {
				t.Fatalf("Rank: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, d := range got {
				if d.District != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, d.District, tt.want[i])
				}
			}
		})
	}

	if !math.IsNaN(float64(districts[2].ConfirmedRatio)) {
		t.Errorf("input mutated")
	}
}

func TestRankUnknownField(t *testing.T) {
	_, err := Rank(nil, "nope", 0)
	if !errors.Is(err, ErrUnknownRankingAxis) {
		t.Fatalf("err = %v, want ErrUnknownRankingAxis", err)
	}
	got, err := Rank(nil, "density", 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("Rank(nil) = %v, %v", got, err)
	}
}
