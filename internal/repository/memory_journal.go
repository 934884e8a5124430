package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
)

// MemoryJournal keeps events in process memory. It is used when no database
// is configured and in tests; its contents are lost on restart.
type MemoryJournal struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append records e. Sequence numbers must be strictly increasing.
func (j *MemoryJournal) Append(_ context.Context, e *domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.events); n > 0 && e.Seq <= j.events[n-1].Seq {
		return fmt.Errorf("memory_journal.Append: seq %d not after %d", e.Seq, j.events[n-1].Seq)
	}
	j.events = append(j.events, *e)
	return nil
}

// LoadAll returns a copy of every recorded event in seq order.
func (j *MemoryJournal) LoadAll(_ context.Context) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]domain.Event{}, j.events...), nil
}

// ListByMarket mirrors EventRepository.ListByMarket.
func (j *MemoryJournal) ListByMarket(_ context.Context, marketID uint64, limit, offset int) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var matched []domain.Event
	for _, e := range j.events {
		if e.MarketID == marketID {
			matched = append(matched, e)
		}
	}
	return page(matched, limit, offset), nil
}

// ListByActor mirrors EventRepository.ListByActor (newest first).
func (j *MemoryJournal) ListByActor(_ context.Context, actor common.Address, limit, offset int) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var matched []domain.Event
	for i := len(j.events) - 1; i >= 0; i-- {
		if j.events[i].Actor == actor {
			matched = append(matched, j.events[i])
		}
	}
	return page(matched, limit, offset), nil
}

func page(events []domain.Event, limit, offset int) []domain.Event {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(events) || limit <= 0 {
		return []domain.Event{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return events[offset:end]
}

// LoadAfter mirrors EventRepository.LoadAfter.
func (j *MemoryJournal) LoadAfter(_ context.Context, after uint64, limit int) ([]domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	i := sort.Search(len(j.events), func(i int) bool { return j.events[i].Seq > after })
	return append([]domain.Event{}, page(j.events[i:], limit, 0)...), nil
}

// CountByType mirrors EventRepository.CountByType.
func (j *MemoryJournal) CountByType(_ context.Context) (map[domain.EventType]int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make(map[domain.EventType]int64)
	for _, e := range j.events {
		out[e.Type]++
	}
	return out, nil
}
