package backoffice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/ledger"
)

// syncBatch bounds how many journal rows one LoadAfter call pulls.
const syncBatch = 500

// EventSource is the journal the replica follows. Implemented by
// repository.EventRepository and repository.MemoryJournal.
type EventSource interface {
	LoadAfter(ctx context.Context, after uint64, limit int) ([]domain.Event, error)
}

// Replica keeps a read-only ledger in step with the primary's journal. The
// backoffice never mutates it; every state change arrives through Replay.
type Replica struct {
	ledger   *ledger.Ledger
	source   EventSource
	interval time.Duration
	logger   *slog.Logger

	mu         sync.RWMutex
	lastSynced time.Time
	lastErr    error
}

// NewReplica creates a Replica over an empty ledger.
func NewReplica(source EventSource, interval time.Duration, logger *slog.Logger) *Replica {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replica{
		ledger:   ledger.New(nil),
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Ledger returns the replicated ledger for read-only use.
func (r *Replica) Ledger() *ledger.Ledger { return r.ledger }

// Sync pulls every event after the replica's last sequence number and applies
// it. It returns the number of events applied.
func (r *Replica) Sync(ctx context.Context) (int, error) {
	applied := 0
	for {
		events, err := r.source.LoadAfter(ctx, r.ledger.LastSeq(), syncBatch)
		if err != nil {
			r.record(err)
			return applied, fmt.Errorf("backoffice.Sync: %w", err)
		}
		if len(events) == 0 {
			break
		}
		if err := r.ledger.Replay(events); err != nil {
			r.record(err)
			return applied, fmt.Errorf("backoffice.Sync: replay: %w", err)
		}
		applied += len(events)
		if len(events) < syncBatch {
			break
		}
	}
	r.record(nil)
	return applied, nil
}

// Run syncs every interval until ctx is cancelled.
func (r *Replica) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.Sync(ctx)
		switch {
		case err != nil:
			r.logger.Warn("replica sync failed", "err", err)
		case n > 0:
			r.logger.Debug("replica synced", "events", n, "last_seq", r.ledger.LastSeq())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Replica) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = err
	if err == nil {
		r.lastSynced = time.Now().UTC()
	}
}

// LastSeq returns the sequence number of the last applied event.
func (r *Replica) LastSeq() uint64 { return r.ledger.LastSeq() }

// LastSynced returns when the last successful sync finished.
func (r *Replica) LastSynced() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSynced
}

// LastError returns the error of the most recent sync, if it failed.
func (r *Replica) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}
