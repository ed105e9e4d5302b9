package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-bot/internal/common/logger"
	"github.com/open-builders/giveaway-bot/internal/repository/snapshot"
)

// SnapshotFlusher writes the state document after changes, at most once per
// interval, and once more on shutdown.
type SnapshotFlusher struct {
	backend  snapshot.Backend
	capture  func(now time.Time) *snapshot.Document
	interval time.Duration
	logger   zerolog.Logger

	dirty  atomic.Bool
	saveMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSnapshotFlusher(backend snapshot.Backend, capture func(now time.Time) *snapshot.Document, interval time.Duration) *SnapshotFlusher {
	return &SnapshotFlusher{
		backend:  backend,
		capture:  capture,
		interval: interval,
		logger:   logger.Component("snapshot_flusher"),
	}
}

// MarkDirty schedules a write for the next flush.
func (f *SnapshotFlusher) MarkDirty() {
	f.dirty.Store(true)
}

// Dirty reports whether unsaved changes exist.
func (f *SnapshotFlusher) Dirty() bool {
	return f.dirty.Load()
}

// Flush saves the document if anything changed since the last save. A
// failed save leaves the flusher dirty so the next tick retries.
func (f *SnapshotFlusher) Flush(ctx context.Context) error {
	if !f.dirty.Swap(false) {
		return nil
	}

	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	doc := f.capture(time.Now())
	if err := f.backend.Save(ctx, doc); err != nil {
		f.dirty.Store(true)
		return err
	}
	f.logger.Debug().
		Int("giveaways", doc.Metadata.TotalGiveaways).
		Int("subscriptions", doc.Metadata.TotalSubscriptions).
		Msg("Snapshot saved")
	return nil
}

func (f *SnapshotFlusher) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := f.Flush(ctx); err != nil {
					f.logger.Error().Err(err).Msg("Failed to save snapshot")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and performs a final flush with the given context.
func (f *SnapshotFlusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		f.wg.Wait()
	}
	return f.Flush(ctx)
}
