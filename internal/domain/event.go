package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a ledger mutation.
type EventType string

const (
	EventMarketCreated   EventType = "market_created"
	EventBetPlaced       EventType = "bet_placed"
	EventMarketResolved  EventType = "market_resolved"
	EventWinningsClaimed EventType = "winnings_claimed"
)

// Valid returns true for the four known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventMarketCreated, EventBetPlaced, EventMarketResolved, EventWinningsClaimed:
		return true
	}
	return false
}

// Event is the journal record of one committed mutation. Replaying every event
// in Seq order reproduces the ledger state exactly.
//
// Only the fields relevant to Type are populated:
//
//	market_created   → Actor (creator), Question, Deadline, Resolver (effective)
//	bet_placed       → Actor (bettor), IsYes, Amount
//	market_resolved  → Actor (resolver), Outcome
//	winnings_claimed → Actor (claimant), Amount (transferred)
type Event struct {
	Seq        uint64          `db:"seq"         json:"seq"`
	ID         uuid.UUID       `db:"id"          json:"id"`
	Type       EventType       `db:"type"        json:"type"`
	MarketID   uint64          `db:"market_id"   json:"market_id"`
	Actor      common.Address  `db:"actor"       json:"actor"`
	Question   string          `db:"question"    json:"question,omitempty"`
	Deadline   time.Time       `db:"deadline"    json:"deadline,omitempty"`
	Resolver   common.Address  `db:"resolver"    json:"resolver,omitempty"`
	IsYes      bool            `db:"is_yes"      json:"is_yes"`
	Amount     decimal.Decimal `db:"amount"      json:"amount"`
	Outcome    Outcome         `db:"outcome"     json:"outcome"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
}

func newEvent(t EventType, marketID uint64, actor common.Address, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		MarketID:   marketID,
		Actor:      actor,
		Amount:     decimal.Zero,
		OccurredAt: at.UTC(),
	}
}

// NewMarketCreatedEvent records a market allocation.
func NewMarketCreatedEvent(m *Market) Event {
	e := newEvent(EventMarketCreated, m.ID, m.Creator, m.CreatedAt)
	e.Question = m.Question
	e.Deadline = m.Deadline.UTC()
	e.Resolver = m.Resolver
	return e
}

// NewBetPlacedEvent records a stake added to one side of a market.
func NewBetPlacedEvent(marketID uint64, bettor common.Address, isYes bool, amount decimal.Decimal, at time.Time) Event {
	e := newEvent(EventBetPlaced, marketID, bettor, at)
	e.IsYes = isYes
	e.Amount = amount
	return e
}

// NewMarketResolvedEvent records the terminal outcome of a market.
func NewMarketResolvedEvent(marketID uint64, resolver common.Address, outcome Outcome, at time.Time) Event {
	e := newEvent(EventMarketResolved, marketID, resolver, at)
	e.Outcome = outcome
	return e
}

// NewWinningsClaimedEvent records a settled claim and the amount transferred.
func NewWinningsClaimedEvent(marketID uint64, claimant common.Address, amount decimal.Decimal, at time.Time) Event {
	e := newEvent(EventWinningsClaimed, marketID, claimant, at)
	e.Amount = amount
	return e
}
