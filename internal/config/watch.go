package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"
)

// ScheduleWatcher polls schedule.yaml and hands every valid revision to OnUpdate.
// Revisions are told apart by content, so touching the file without editing
// it does not trigger a reload.
type ScheduleWatcher struct {
	Path     string
	Interval time.Duration
	OnUpdate func(*ScheduleConfig)
	// OnError receives read and validation failures after the initial load.
	// A broken revision is reported once; the last valid config stays active.
	OnError func(error)

	sum [sha256.Size]byte
}

// Start loads the file once and keeps polling it until ctx is done. A failed
// initial load is returned and no polling starts.
func (w *ScheduleWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = DefaultSchedulePath
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	if _, err := w.poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(w.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.poll(); err != nil && w.OnError != nil {
					w.OnError(err)
				}
			}
		}
	}()
	return nil
}

// poll reloads the file if its content changed since the last poll.
func (w *ScheduleWatcher) poll() (bool, error) {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return false, fmt.Errorf("read schedule config: %w", err)
	}
	sum := sha256.Sum256(data)
	if sum == w.sum {
		return false, nil
	}
	w.sum = sum

	cfg, err := ParseScheduleConfig(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", w.Path, err)
	}
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
	return true, nil
}
