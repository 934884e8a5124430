package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// EventRepository is the PostgreSQL journal behind the ledger. Rows are only
// ever inserted; seq is the primary key, so a second writer appending the same
// seq gets domain.ErrJournalConflict instead of forking the history.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one committed event.
func (r *EventRepository) Append(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO ledger_events
			(seq, id, type, market_id, actor, question, deadline, resolver, is_yes, amount, outcome, occurred_at)
		VALUES
			(:seq, :id, :type, :market_id, :actor, :question, :deadline, :resolver, :is_yes, :amount, :outcome, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		if isUniqueViolation(err, "ledger_events_pkey") {
			return fmt.Errorf("event_repo.Append: seq %d: %w", e.Seq, domain.ErrJournalConflict)
		}
		return fmt.Errorf("event_repo.Append: seq %d: %w", e.Seq, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique violation on
// the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation && pqErr.Constraint == constraint
}

// LoadAll returns every event in seq order, for replay at startup.
func (r *EventRepository) LoadAll(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	if err := r.db.SelectContext(ctx, &events, `SELECT * FROM ledger_events ORDER BY seq ASC`); err != nil {
		return nil, fmt.Errorf("event_repo.LoadAll: %w", err)
	}
	return events, nil
}

// ListByMarket returns the history of one market, oldest first.
func (r *EventRepository) ListByMarket(ctx context.Context, marketID uint64, limit, offset int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM ledger_events WHERE market_id = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("event_repo.ListByMarket: %w", err)
	}
	return events, nil
}

// ListByActor returns the most recent events performed by address.
func (r *EventRepository) ListByActor(ctx context.Context, actor common.Address, limit, offset int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM ledger_events WHERE actor = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`,
		actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("event_repo.ListByActor: %w", err)
	}
	return events, nil
}

// LoadAfter returns events with seq greater than after, oldest first. The
// backoffice replica polls it to follow the primary.
func (r *EventRepository) LoadAfter(ctx context.Context, after uint64, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM ledger_events WHERE seq > $1 ORDER BY seq ASC LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("event_repo.LoadAfter: %w", err)
	}
	return events, nil
}

// CountByType returns the number of journal rows per event type.
func (r *EventRepository) CountByType(ctx context.Context) (map[domain.EventType]int64, error) {
	var rows []struct {
		Type  domain.EventType `db:"type"`
		Count int64            `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT type, COUNT(*) AS count FROM ledger_events GROUP BY type`); err != nil {
		return nil, fmt.Errorf("event_repo.CountByType: %w", err)
	}
	out := make(map[domain.EventType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Count
	}
	return out, nil
}
