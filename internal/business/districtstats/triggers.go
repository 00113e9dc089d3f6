package districtstats

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron"
)

// Refresher is the part of Service the triggers need.
type Refresher interface {
	Start(trigger string) (string, error)
}

// Scheduler runs a refresh on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// StartSchedule starts a background refresh on every tick of a robfig/cron
// spec: "@every 1h", "@daily", or six fields with seconds.
func StartSchedule(spec string, svc Refresher, logFn func(string)) (*Scheduler, error) {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		runID, err := svc.Start(TriggerCron)
		if err != nil {
			logFn(fmt.Sprintf("scheduled refresh skipped: %v", err))
			return
		}
		logFn(fmt.Sprintf("scheduled refresh %s started (%s)", runID, spec))
	})
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	c.Start()
	return &Scheduler{cron: c}, nil
}

// Stop halts the scheduler. Running refreshes are not interrupted.
func (s *Scheduler) Stop() {
	if s != nil && s.cron != nil {
		s.cron.Stop()
	}
}

// DirWatcher starts a refresh when files under a directory change. Bursts of
// events within the debounce window collapse into one refresh.
type DirWatcher struct {
	ctx      context.Context
	watcher  *fsnotify.Watcher
	svc      Refresher
	debounce time.Duration
	logFn    func(string)

	mu    sync.Mutex
	timer *time.Timer
}

// WatchDir watches dir and its subdirectories until ctx is done.
func WatchDir(ctx context.Context, dir string, debounce time.Duration, svc Refresher, logFn func(string)) (*DirWatcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &DirWatcher{ctx: ctx, watcher: watcher, svc: svc, debounce: debounce, logFn: logFn}
	go w.loop(ctx)
	return w, nil
}

func (w *DirWatcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logFn(fmt.Sprintf("data watcher error: %v", err))
		}
	}
}

func (w *DirWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		runID, err := w.svc.Start(TriggerWatch)
		if errors.Is(err, ErrRefreshInProgress) {
			// a change landed mid-refresh; try again after another window
			w.schedule()
			return
		}
		if err != nil {
			w.logFn(fmt.Sprintf("watch refresh failed to start: %v", err))
			return
		}
		w.logFn(fmt.Sprintf("data changed, refresh %s started", runID))
	})
}

// Close stops watching.
func (w *DirWatcher) Close() error {
	return w.watcher.Close()
}
