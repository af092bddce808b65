// Package janitor runs the background maintenance loops: stale member
// sweeps, idle room deletion, and message retention with archival.
package janitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anonchat/backend/internal/models"
)

// Sweeper evicts members whose presence lapsed.
type Sweeper interface {
	SweepStale(ctx context.Context)
}

// Store is the maintenance surface of the room store.
type Store interface {
	DeleteIdleRooms(ctx context.Context, cutoff time.Time) (int64, error)
	MessagesOlderThan(ctx context.Context, cutoff time.Time) ([]models.Message, error)
	DeleteOldMessages(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver persists message batches before deletion.
type Archiver interface {
	Enabled() bool
	Put(ctx context.Context, messages []models.Message) (string, error)
}

// Config holds the maintenance intervals and retention windows.
type Config struct {
	SweepInterval    time.Duration
	CleanupInterval  time.Duration
	RoomIdleTTL      time.Duration
	MessageRetention time.Duration
}

// Janitor owns the maintenance tickers.
type Janitor struct {
	sweeper Sweeper
	store   Store
	archive Archiver
	cfg     Config
}

// New creates a janitor. Run starts the loops.
func New(sweeper Sweeper, store Store, archive Archiver, cfg Config) *Janitor {
	return &Janitor{sweeper: sweeper, store: store, archive: archive, cfg: cfg}
}

// Run blocks until ctx is cancelled, firing the sweep and cleanup loops
// on their intervals.
func (j *Janitor) Run(ctx context.Context) {
	sweep := time.NewTicker(j.cfg.SweepInterval)
	cleanup := time.NewTicker(j.cfg.CleanupInterval)
	defer sweep.Stop()
	defer cleanup.Stop()

	log.Printf("[Janitor] Started (sweep every %s, cleanup every %s)",
		j.cfg.SweepInterval, j.cfg.CleanupInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[Janitor] Stopped")
			return
		case <-sweep.C:
			j.sweeper.SweepStale(ctx)
		case now := <-cleanup.C:
			if n, err := j.CleanupRooms(ctx, now); err != nil {
				log.Printf("[Janitor] Room cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("[Janitor] Deleted %d idle rooms", n)
			}
			if n, err := j.CleanupMessages(ctx, now); err != nil {
				log.Printf("[Janitor] Message cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("[Janitor] Deleted %d expired messages", n)
			}
		}
	}
}

// CleanupRooms deletes rooms that have been empty past the idle TTL and
// returns how many were removed.
func (j *Janitor) CleanupRooms(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-j.cfg.RoomIdleTTL)
	return j.store.DeleteIdleRooms(ctx, cutoff)
}

// CleanupMessages archives then deletes messages past the retention
// window. When archival fails the messages stay put for the next run.
func (j *Janitor) CleanupMessages(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-j.cfg.MessageRetention)

	if j.archive != nil && j.archive.Enabled() {
		expiring, err := j.store.MessagesOlderThan(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to load expiring messages: %w", err)
		}
		if len(expiring) > 0 {
			if _, err := j.archive.Put(ctx, expiring); err != nil {
				return 0, fmt.Errorf("archive failed, keeping messages: %w", err)
			}
		}
	}

	return j.store.DeleteOldMessages(ctx, cutoff)
}
