package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Ratio is a float that may be undefined. NaN and infinities encode as JSON null
// and null decodes back to NaN.
type Ratio float64

// NaNRatio returns an undefined ratio.
func NaNRatio() Ratio { return Ratio(math.NaN()) }

// Defined reports whether the ratio holds a finite value.
func (r Ratio) Defined() bool {
	f := float64(r)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(r), 'g', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NaNRatio()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// DistrictStats is the per-district aggregate produced for every boundary district.
type DistrictStats struct {
	District               string  `json:"district" firestore:"district"`
	ConfirmedCount         int     `json:"confirmedCount" firestore:"confirmedCount"`
	Population             float64 `json:"population" firestore:"population"`
	Area                   float64 `json:"area" firestore:"area"`
	Density                Ratio   `json:"density" firestore:"density"`
	ConfirmedRatio         Ratio   `json:"confirmedRatio" firestore:"confirmedRatio"`
	ConfirmedRatioAdjusted Ratio   `json:"confirmedRatioAdjusted" firestore:"confirmedRatioAdjusted"`
}

// SnapshotCounters records how much of each input was used or dropped.
type SnapshotCounters struct {
	Districts             int `json:"districts" firestore:"districts"`
	Cases                 int `json:"cases" firestore:"cases"`
	DroppedCases          int `json:"droppedCases" firestore:"droppedCases"`
	PopulationRows        int `json:"populationRows" firestore:"populationRows"`
	DroppedPopulationRows int `json:"droppedPopulationRows" firestore:"droppedPopulationRows"`
	AreaRows              int `json:"areaRows" firestore:"areaRows"`
	DroppedAreaRows       int `json:"droppedAreaRows" firestore:"droppedAreaRows"`
}

// Snapshot is one immutable computation result. Districts are sorted by name.
type Snapshot struct {
	ID          string           `json:"id" firestore:"id"`
	ComputedAt  time.Time        `json:"computedAt" firestore:"computedAt"`
	Fingerprint string           `json:"fingerprint" firestore:"fingerprint"`
	MinRatio    Ratio            `json:"minRatio" firestore:"minRatio"`
	MaxRatio    Ratio            `json:"maxRatio" firestore:"maxRatio"`
	Counters    SnapshotCounters `json:"counters" firestore:"counters"`
	Warnings    []string         `json:"warnings,omitempty" firestore:"warnings,omitempty"`
	Districts   []DistrictStats  `json:"districts" firestore:"districts"`
}

// Find returns the stats of the named district.
func (s Snapshot) Find(name string) (DistrictStats, bool) {
	for _, d := range s.Districts {
		if d.District == name {
			return d, true
		}
	}
	return DistrictStats{}, false
}

// Refresh run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusUnchanged = "unchanged"
	RunStatusFailed    = "failed"
	RunStatusCanceled  = "canceled"
)

// RefreshRun tracks one load-and-compute cycle.
type RefreshRun struct {
	RunID      string           `json:"runId,omitempty" firestore:"runId,omitempty"`
	Trigger    string           `json:"trigger,omitempty" firestore:"trigger,omitempty"` // startup, manual, cron, watch
	Status     string           `json:"status,omitempty" firestore:"status,omitempty"`
	SnapshotID string           `json:"snapshotId,omitempty" firestore:"snapshotId,omitempty"`
	Counters   SnapshotCounters `json:"counters,omitempty" firestore:"counters,omitempty"`
	Error      string           `json:"error,omitempty" firestore:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt,omitempty" firestore:"startedAt,omitempty"`
	FinishedAt time.Time        `json:"finishedAt,omitempty" firestore:"finishedAt,omitempty"`
}
