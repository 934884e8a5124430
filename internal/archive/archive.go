// Package archive copies the ledger journal to object storage as JSON-lines
// segments so the history survives independently of the primary database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/predict/internal/domain"
)

// ErrNotFound is returned by a BlobStore when the key does not exist.
var ErrNotFound = errors.New("archive: object not found")

// BlobStore is the object storage the archiver writes to. Implemented by
// S3Store.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// EventSource serves journal tails. Implemented by
// repository.EventRepository and repository.MemoryJournal.
type EventSource interface {
	LoadAfter(ctx context.Context, after uint64, limit int) ([]domain.Event, error)
}

// checkpoint is stored next to the segments and records how far the archive
// reaches. PendingLast, when past LastSeq, is the last seq of a segment whose
// upload started but was never confirmed; the retry covers exactly that range.
type checkpoint struct {
	LastSeq     uint64    `json:"last_seq"`
	PendingLast uint64    `json:"pending_last,omitempty"`
	Segment     string    `json:"segment"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Archiver uploads journal events in seq order as non-overlapping segments
// named <prefix><first seq>-<last seq>.jsonl.
type Archiver struct {
	source      EventSource
	store       BlobStore
	prefix      string
	segmentSize int
	interval    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	loaded  bool
	lastSeq uint64
	pending uint64
}

// NewArchiver creates an Archiver. The checkpoint is read lazily on the first
// run.
func NewArchiver(source EventSource, store BlobStore, prefix string, segmentSize int, interval time.Duration, logger *slog.Logger) *Archiver {
	if segmentSize <= 0 {
		segmentSize = 5000
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source:      source,
		store:       store,
		prefix:      prefix,
		segmentSize: segmentSize,
		interval:    interval,
		logger:      logger,
	}
}

// LastArchived returns the highest seq known to be in the archive.
func (a *Archiver) LastArchived() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeq
}

// RunOnce archives everything journaled since the last checkpoint and returns
// the number of events uploaded. The segment range is pinned in the
// checkpoint before the upload, so a failure before the checkpoint advances
// re-uploads the same range under the same key even if the journal has grown
// since.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		cp, err := a.readCheckpoint(ctx)
		if err != nil {
			return 0, err
		}
		a.lastSeq, a.loaded = cp.LastSeq, true
		if cp.PendingLast > cp.LastSeq {
			a.pending = cp.PendingLast
		}
	}

	uploaded := 0
	for {
		limit := a.segmentSize
		if a.pending > a.lastSeq && int(a.pending-a.lastSeq) > limit {
			limit = int(a.pending - a.lastSeq)
		}
		events, err := a.source.LoadAfter(ctx, a.lastSeq, limit)
		if err != nil {
			return uploaded, fmt.Errorf("archive: load after %d: %w", a.lastSeq, err)
		}
		more := len(events) == limit
		if a.pending > a.lastSeq {
			n := len(events)
			events = upTo(events, a.pending)
			more = more || len(events) < n
		}
		if len(events) == 0 {
			return uploaded, nil
		}

		first, last := events[0].Seq, events[len(events)-1].Seq
		key := a.segmentKey(first, last)

		if a.pending != last {
			if err := a.writeCheckpoint(ctx, checkpoint{
				LastSeq: a.lastSeq, PendingLast: last, Segment: key, UpdatedAt: time.Now().UTC(),
			}); err != nil {
				return uploaded, err
			}
			a.pending = last
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for i := range events {
			if err := enc.Encode(&events[i]); err != nil {
				return uploaded, fmt.Errorf("archive: encode seq %d: %w", events[i].Seq, err)
			}
		}
		if err := a.store.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
			return uploaded, fmt.Errorf("archive: put %s: %w", key, err)
		}
		if err := a.writeCheckpoint(ctx, checkpoint{LastSeq: last, Segment: key, UpdatedAt: time.Now().UTC()}); err != nil {
			return uploaded, err
		}

		a.lastSeq, a.pending = last, 0
		uploaded += len(events)
		a.logger.Info("journal segment archived", "key", key, "events", len(events))

		if !more {
			return uploaded, nil
		}
	}
}

// upTo drops the events after seq.
func upTo(events []domain.Event, seq uint64) []domain.Event {
	for i := range events {
		if events[i].Seq > seq {
			return events[:i]
		}
	}
	return events
}

// Run archives every interval until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("journal archive failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Archiver) segmentKey(first, last uint64) string {
	return fmt.Sprintf("%s%020d-%020d.jsonl", a.prefix, first, last)
}

func (a *Archiver) checkpointKey() string { return a.prefix + "checkpoint.json" }

func (a *Archiver) readCheckpoint(ctx context.Context) (checkpoint, error) {
	rc, err := a.store.Get(ctx, a.checkpointKey())
	if errors.Is(err, ErrNotFound) {
		return checkpoint{}, nil
	}
	if err != nil {
		return checkpoint{}, fmt.Errorf("archive: read checkpoint: %w", err)
	}
	defer rc.Close()

	var cp checkpoint
	if err := json.NewDecoder(rc).Decode(&cp); err != nil {
		return checkpoint{}, fmt.Errorf("archive: decode checkpoint: %w", err)
	}
	return cp, nil
}

func (a *Archiver) writeCheckpoint(ctx context.Context, cp checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("archive: encode checkpoint: %w", err)
	}
	if err := a.store.Put(ctx, a.checkpointKey(), bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("archive: write checkpoint: %w", err)
	}
	return nil
}
