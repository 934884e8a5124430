package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
)

// eventKeyPrefix namespaces journal entries; the suffix is the big-endian seq
// so key order is seq order.
var eventKeyPrefix = []byte("ev/")

// BadgerJournal is an embedded, file-backed journal for single-node
// deployments without PostgreSQL. Badger holds an exclusive lock on its
// directory, so only one process can use it (the backoffice cannot follow it).
type BadgerJournal struct {
	db *badger.DB
}

// OpenBadgerJournal opens or creates the journal stored under dir.
func OpenBadgerJournal(dir string) (*BadgerJournal, error) {
	if dir == "" {
		return nil, errors.New("badger_journal: directory is required")
	}
	db, err := badger.Open(badgerOptions(dir))
	if err != nil {
		return nil, fmt.Errorf("badger_journal: open %q: %w", dir, err)
	}
	return &BadgerJournal{db: db}, nil
}

// badgerOptions syncs every write to disk before Append returns, so an
// acknowledged bet or claim survives a crash.
func badgerOptions(dir string) badger.Options {
	return badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
}

// Close flushes and releases the directory lock.
func (j *BadgerJournal) Close() error { return j.db.Close() }

func eventKey(seq uint64) []byte {
	k := make([]byte, len(eventKeyPrefix)+8)
	copy(k, eventKeyPrefix)
	binary.BigEndian.PutUint64(k[len(eventKeyPrefix):], seq)
	return k
}

// Append stores e under its seq. A seq that is already present yields
// domain.ErrJournalConflict.
func (j *BadgerJournal) Append(_ context.Context, e *domain.Event) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("badger_journal.Append: encode seq %d: %w", e.Seq, err)
	}
	key := eventKey(e.Seq)

	err = j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return domain.ErrJournalConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("badger_journal.Append: seq %d: %w", e.Seq, err)
	}
	return nil
}

// scan walks events with seq > after in seq order until fn returns false.
func (j *BadgerJournal) scan(after uint64, fn func(e domain.Event) bool) error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(after + 1)); it.ValidForPrefix(eventKeyPrefix); it.Next() {
			var e domain.Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %x: %w", it.Item().Key(), err)
			}
			if !fn(e) {
				return nil
			}
		}
		return nil
	})
}

// LoadAll returns every event in seq order, for replay at startup.
func (j *BadgerJournal) LoadAll(_ context.Context) ([]domain.Event, error) {
	events := []domain.Event{}
	if err := j.scan(0, func(e domain.Event) bool {
		events = append(events, e)
		return true
	}); err != nil {
		return nil, fmt.Errorf("badger_journal.LoadAll: %w", err)
	}
	return events, nil
}

// LoadAfter mirrors EventRepository.LoadAfter.
func (j *BadgerJournal) LoadAfter(_ context.Context, after uint64, limit int) ([]domain.Event, error) {
	events := []domain.Event{}
	if limit <= 0 {
		return events, nil
	}
	if err := j.scan(after, func(e domain.Event) bool {
		events = append(events, e)
		return len(events) < limit
	}); err != nil {
		return nil, fmt.Errorf("badger_journal.LoadAfter: %w", err)
	}
	return events, nil
}

// ListByMarket mirrors EventRepository.ListByMarket.
func (j *BadgerJournal) ListByMarket(_ context.Context, marketID uint64, limit, offset int) ([]domain.Event, error) {
	var matched []domain.Event
	if err := j.scan(0, func(e domain.Event) bool {
		if e.MarketID == marketID {
			matched = append(matched, e)
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("badger_journal.ListByMarket: %w", err)
	}
	return page(matched, limit, offset), nil
}

// ListByActor mirrors EventRepository.ListByActor (newest first).
func (j *BadgerJournal) ListByActor(_ context.Context, actor common.Address, limit, offset int) ([]domain.Event, error) {
	var matched []domain.Event
	if err := j.scan(0, func(e domain.Event) bool {
		if e.Actor == actor {
			matched = append(matched, e)
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("badger_journal.ListByActor: %w", err)
	}
	for l, r := 0, len(matched)-1; l < r; l, r = l+1, r-1 {
		matched[l], matched[r] = matched[r], matched[l]
	}
	return page(matched, limit, offset), nil
}

// CountByType mirrors EventRepository.CountByType.
func (j *BadgerJournal) CountByType(_ context.Context) (map[domain.EventType]int64, error) {
	out := make(map[domain.EventType]int64)
	if err := j.scan(0, func(e domain.Event) bool {
		out[e.Type]++
		return true
	}); err != nil {
		return nil, fmt.Errorf("badger_journal.CountByType: %w", err)
	}
	return out, nil
}
