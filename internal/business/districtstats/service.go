package districtstats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
)

// Refresh triggers.
const (
	TriggerStartup = "startup"
	TriggerManual  = "manual"
	TriggerCron    = "cron"
	TriggerWatch   = "watch"
)

// Inputs are the four fully materialized datasets of one load.
type Inputs struct {
	Boundaries  []Boundary
	Cases       []CaseRecord
	Population  Table
	Area        Table
	Fingerprint string
	Geo         GeoLayer
}

// Loader retrieves and decodes the datasets.
type Loader interface {
	Load(ctx context.Context) (Inputs, error)
}

// GeoLayer exposes boundary geometry next to the computed stats.
type GeoLayer interface {
	Centroid(name string) (lng, lat float64, ok bool)
	Locate(lng, lat float64) (string, bool)
	FeatureCollection(snap model.Snapshot) ([]byte, error)
}

// SnapshotStore persists computed snapshots. LatestSnapshot returns ErrNoSnapshot
// when nothing has been saved yet.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LatestSnapshot(ctx context.Context) (model.Snapshot, error)
}

// RunStore persists refresh run records.
type RunStore interface {
	CreateRun(ctx context.Context, run model.RefreshRun) error
	UpdateRun(ctx context.Context, run model.RefreshRun) error
	ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error)
}

// Service owns the current snapshot and runs refreshes, one at a time.
type Service struct {
	loader    Loader
	snapshots SnapshotStore
	runs      RunStore
	jobs      *JobManager
	logFn     func(string)
	now       func() time.Time
	seq       atomic.Int64

	refreshing atomic.Bool

	mu      sync.RWMutex
	current *model.Snapshot
	geo     GeoLayer
}

// NewService builds a service. A nil snapshots store keeps snapshots in memory
// only; a nil runs store falls back to an in-memory run log.
func NewService(loader Loader, snapshots SnapshotStore, runs RunStore, logFn func(string)) *Service {
	if runs == nil {
		runs = NewMemoryRunStore(50)
	}
	if logFn == nil {
		logFn = func(msg string) { log.Print(msg) }
	}
	return &Service{
		loader:    loader,
		snapshots: snapshots,
		runs:      runs,
		jobs:      NewJobManager(),
		logFn:     logFn,
		now:       time.Now,
	}
}

// Restore loads the most recently persisted snapshot so the API can answer
// before the first refresh completes.
func (s *Service) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoSnapshot
	}
	snap, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.current == nil {
		s.current = &snap
	}
	s.mu.Unlock()
	s.logFn(fmt.Sprintf("restored snapshot %s computed at %s", snap.ID, snap.ComputedAt.Format(time.RFC3339)))
	return nil
}

// Refresh loads the datasets and recomputes synchronously.
func (s *Service) Refresh(ctx context.Context, trigger string) (model.Snapshot, model.RefreshRun, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return model.Snapshot{}, model.RefreshRun{}, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)
	runID := s.nextRunID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.jobs.Register(ActiveRun{RunID: runID, Trigger: trigger, StartedAt: s.now().UTC()}, cancel)
	defer s.jobs.Done(runID)
	return s.refresh(ctx, runID, trigger)
}

// Start kicks off a refresh in the background and returns its run ID.
func (s *Service) Start(trigger string) (string, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return "", ErrRefreshInProgress
	}
	runID := s.nextRunID()
	ctx, cancel := context.WithCancel(context.Background())
	s.jobs.Register(ActiveRun{RunID: runID, Trigger: trigger, StartedAt: s.now().UTC()}, cancel)
	go func() {
		defer s.refreshing.Store(false)
		defer s.jobs.Done(runID)
		defer cancel()
		_, _, _ = s.refresh(ctx, runID, trigger)
	}()
	return runID, nil
}

// Cancel stops an in-flight refresh. It reports whether the run was found.
func (s *Service) Cancel(runID string) bool {
	return s.jobs.Cancel(runID)
}

// Active lists the refreshes in flight.
func (s *Service) Active() []ActiveRun {
	return s.jobs.Active()
}

// Refreshing reports whether a refresh is running.
func (s *Service) Refreshing() bool {
	return s.refreshing.Load()
}

func (s *Service) refresh(ctx context.Context, runID, trigger string) (model.Snapshot, model.RefreshRun, error) {
	run := model.RefreshRun{
		RunID:     runID,
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.logFn(fmt.Sprintf("refresh %s: create run: %v", runID, err))
	}

	in, err := s.loader.Load(ctx)
	if err != nil {
		return model.Snapshot{}, s.fail(run, fmt.Errorf("load datasets: %w", err)), err
	}

	if cur, ok := s.currentSnapshot(); ok && cur.Fingerprint == in.Fingerprint {
		s.mu.Lock()
		s.geo = in.Geo
		s.mu.Unlock()
		run.Status = model.RunStatusUnchanged
		run.SnapshotID = cur.ID
		run.Counters = cur.Counters
		s.finish(run)
		s.logFn(fmt.Sprintf("refresh %s (%s): inputs unchanged, keeping snapshot %s", runID, trigger, cur.ID))
		return cur, run, nil
	}

	res, err := ComputeStats(in.Boundaries, in.Cases, in.Population, in.Area)
	if err != nil {
		return model.Snapshot{}, s.fail(run, err), err
	}
	for _, w := range res.Warnings {
		s.logFn(fmt.Sprintf("refresh %s: warning: %v", runID, w))
	}

	computedAt := s.now().UTC()
	snap := res.Snapshot(snapshotID(computedAt, in.Fingerprint), computedAt, in.Fingerprint)

	s.mu.Lock()
	s.current = &snap
	s.geo = in.Geo
	s.mu.Unlock()

	run.Status = model.RunStatusSuccess
	run.SnapshotID = snap.ID
	run.Counters = snap.Counters
	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(context.WithoutCancel(ctx), snap); err != nil {
			run.Error = fmt.Sprintf("save snapshot: %v", err)
			s.logFn(fmt.Sprintf("refresh %s: save snapshot: %v", runID, err))
		}
	}
	s.finish(run)
	s.logFn(fmt.Sprintf("refresh %s (%s): snapshot %s with %d districts, %d/%d cases matched",
		runID, trigger, snap.ID, snap.Counters.Districts,
		snap.Counters.Cases-snap.Counters.DroppedCases, snap.Counters.Cases))
	return snap, run, nil
}

func (s *Service) fail(run model.RefreshRun, err error) model.RefreshRun {
	run.Status = model.RunStatusFailed
	if errors.Is(err, context.Canceled) {
		run.Status = model.RunStatusCanceled
	}
	run.Error = err.Error()
	s.finish(run)
	s.logFn(fmt.Sprintf("refresh %s (%s) %s: %v", run.RunID, run.Trigger, run.Status, err))
	return run
}

func (s *Service) finish(run model.RefreshRun) {
	run.FinishedAt = s.now().UTC()
	// the run context may already be canceled; the record must still land
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		s.logFn(fmt.Sprintf("refresh %s: update run: %v", run.RunID, err))
	}
}

func (s *Service) currentSnapshot() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Snapshot{}, false
	}
	return *s.current, true
}

// Current returns the snapshot being served.
func (s *Service) Current() (model.Snapshot, error) {
	snap, ok := s.currentSnapshot()
	if !ok {
		return model.Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

// District returns the stats of one district of the current snapshot.
func (s *Service) District(name string) (model.DistrictStats, error) {
	snap, err := s.Current()
	if err != nil {
		return model.DistrictStats{}, err
	}
	d, ok := snap.Find(name)
	if !ok {
		return model.DistrictStats{}, fmt.Errorf("%w: %s", ErrUnknownDistrict, name)
	}
	return d, nil
}

// Ranking orders the current snapshot's districts by the given field.
func (s *Service) Ranking(by string, limit int) ([]model.DistrictStats, error) {
	snap, err := s.Current()
	if err != nil {
		return nil, err
	}
	return Rank(snap.Districts, by, limit)
}

// Geo returns the boundary layer of the last load, or nil when the current
// snapshot was restored from storage and no load has happened yet.
func (s *Service) Geo() GeoLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geo
}

// Runs lists the most recent refresh runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) nextRunID() string {
	return fmt.Sprintf("RUN_%d_%d", s.now().Unix(), s.seq.Add(1))
}

func snapshotID(at time.Time, fingerprint string) string {
	if len(fingerprint) > 8 {
		fingerprint = fingerprint[:8]
	}
	return fmt.Sprintf("SNAP_%d_%s", at.Unix(), fingerprint)
}
