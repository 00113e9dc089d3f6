package districtstats

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ActiveRun is a refresh that has started and not finished yet.
type ActiveRun struct {
	RunID     string    `json:"runId"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"startedAt"`
}

type refreshJob struct {
	run    ActiveRun
	cancel context.CancelFunc
}

// JobManager holds the in-flight refreshes so they can be listed and canceled.
type JobManager struct {
	mu   sync.Mutex
	jobs map[string]refreshJob
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]refreshJob)}
}

// Register records a refresh that just started.
func (jm *JobManager) Register(run ActiveRun, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[run.RunID] = refreshJob{run: run, cancel: cancel}
}

// Cancel cancels the refresh and reports whether it was in flight.
func (jm *JobManager) Cancel(runID string) bool {
	jm.mu.Lock()
	job, ok := jm.jobs[runID]
	delete(jm.jobs, runID)
	jm.mu.Unlock()
	if ok {
		job.cancel()
	}
	return ok
}

// Done forgets a finished refresh.
func (jm *JobManager) Done(runID string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.jobs, runID)
}

// Active lists the in-flight refreshes, oldest first.
func (jm *JobManager) Active() []ActiveRun {
	jm.mu.Lock()
	out := make([]ActiveRun, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		out = append(out, job.run)
	}
	jm.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
