package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/ledger"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies declared by the consumer
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal interface MarketService needs from the WS hub.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastEvent(e domain.Event, summary domain.MarketSummary)
}

// EventReader serves journal history. Implemented by
// repository.EventRepository and repository.MemoryJournal.
type EventReader interface {
	ListByMarket(ctx context.Context, marketID uint64, limit, offset int) ([]domain.Event, error)
	ListByActor(ctx context.Context, actor common.Address, limit, offset int) ([]domain.Event, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// MarketService fronts the ledger for the HTTP handlers and the ABI executor.
// Every committed mutation is logged and pushed to WebSocket subscribers.
type MarketService struct {
	ledger      *ledger.Ledger
	history     EventReader
	broadcaster Broadcaster // injected after the WS Hub is built
	log         *slog.Logger
}

// NewMarketService creates a MarketService. Call SetBroadcaster() once the
// hub exists.
func NewMarketService(l *ledger.Ledger, history EventReader, logger *slog.Logger) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketService{ledger: l, history: history, log: logger}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *MarketService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// Ledger exposes the underlying ledger (scheduler, backoffice).
func (s *MarketService) Ledger() *ledger.Ledger { return s.ledger }

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket opens a new market. The returned event's MarketID is its ID.
func (s *MarketService) CreateMarket(ctx context.Context, creator common.Address, question string, deadline time.Time, resolver common.Address) (domain.Event, error) {
	e, err := s.ledger.CreateMarket(ctx, creator, question, deadline, resolver)
	if err != nil {
		return domain.Event{}, err
	}
	s.log.Info("market created",
		"market_id", e.MarketID, "creator", e.Actor.Hex(), "resolver", e.Resolver.Hex(),
		"deadline", e.Deadline.Format(time.RFC3339))
	s.publish(e)
	return e, nil
}

// PlaceBet stakes amount on one side of a market.
func (s *MarketService) PlaceBet(ctx context.Context, bettor common.Address, marketID uint64, isYes bool, amount decimal.Decimal) (domain.Event, error) {
	e, err := s.ledger.PlaceBet(ctx, bettor, marketID, isYes, amount)
	if err != nil {
		return domain.Event{}, err
	}
	s.log.Info("bet placed",
		"market_id", marketID, "bettor", bettor.Hex(), "side", sideLabel(isYes), "amount", amount.String())
	s.publish(e)
	return e, nil
}

// ResolveMarket sets the final outcome.
func (s *MarketService) ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome) (domain.Event, error) {
	e, err := s.ledger.ResolveMarket(ctx, caller, marketID, outcome)
	if err != nil {
		return domain.Event{}, err
	}
	s.log.Info("market resolved", "market_id", marketID, "resolver", caller.Hex(), "outcome", outcome.String())
	s.publish(e)
	return e, nil
}

// ClaimWinnings settles the claimant's position; the event's Amount is the
// value transferred.
func (s *MarketService) ClaimWinnings(ctx context.Context, claimant common.Address, marketID uint64) (domain.Event, error) {
	e, err := s.ledger.ClaimWinnings(ctx, claimant, marketID)
	if err != nil {
		return domain.Event{}, err
	}
	s.log.Info("winnings claimed", "market_id", marketID, "claimant", claimant.Hex(), "amount", e.Amount.String())
	s.publish(e)
	return e, nil
}

func (s *MarketService) publish(e domain.Event) {
	if s.broadcaster == nil {
		return
	}
	m, err := s.ledger.GetMarket(e.MarketID)
	if err != nil {
		s.log.Warn("broadcast skipped", "market_id", e.MarketID, "err", err)
		return
	}
	s.broadcaster.BroadcastEvent(e, m.ToSummary(s.ledger.Now()))
}

// ──────────────────────────────────────────────────────────────────────────────
// Views
// ──────────────────────────────────────────────────────────────────────────────

// NextMarketID returns the ID the next market will receive.
func (s *MarketService) NextMarketID() uint64 { return s.ledger.NextMarketID() }

// GetMarketMeta returns the immutable part of a market.
func (s *MarketService) GetMarketMeta(id uint64) (domain.MarketMeta, error) {
	return s.ledger.GetMarketMeta(id)
}

// GetMarketPools returns pools, outcome and deadline.
func (s *MarketService) GetMarketPools(id uint64) (domain.MarketPools, error) {
	return s.ledger.GetMarketPools(id)
}

// GetOdds returns the split in basis points.
func (s *MarketService) GetOdds(id uint64) (domain.Odds, error) { return s.ledger.GetOdds(id) }

// GetUserPosition returns holder's stake in a market.
func (s *MarketService) GetUserPosition(id uint64, holder common.Address) (domain.Position, error) {
	return s.ledger.GetUserPosition(id, holder)
}

// GetPositionView returns holder's stake together with what a claim pays now.
func (s *MarketService) GetPositionView(id uint64, holder common.Address) (domain.PositionView, error) {
	return s.ledger.GetPositionView(id, holder)
}

// GetUserMarkets returns the markets holder has bet on.
func (s *MarketService) GetUserMarkets(holder common.Address) []uint64 {
	return s.ledger.GetUserMarkets(holder)
}

// GetCreatedMarkets returns the markets creator has created.
func (s *MarketService) GetCreatedMarkets(creator common.Address) []uint64 {
	return s.ledger.GetCreatedMarkets(creator)
}

// CalculatePayout previews a hypothetical stake.
func (s *MarketService) CalculatePayout(id uint64, isYes bool, bet decimal.Decimal) (decimal.Decimal, error) {
	return s.ledger.CalculatePayout(id, isYes, bet)
}

// GetMarketSummary returns the full read model of one market.
func (s *MarketService) GetMarketSummary(id uint64) (domain.MarketSummary, error) {
	m, err := s.ledger.GetMarket(id)
	if err != nil {
		return domain.MarketSummary{}, err
	}
	return m.ToSummary(s.ledger.Now()), nil
}

// ListMarkets returns a page of summaries, newest first, and the total count.
func (s *MarketService) ListMarkets(offset, limit int) ([]domain.MarketSummary, int) {
	markets, total := s.ledger.ListMarkets(offset, limit)
	now := s.ledger.Now()
	out := make([]domain.MarketSummary, len(markets))
	for i := range markets {
		out[i] = markets[i].ToSummary(now)
	}
	return out, total
}

// SummariesFor resolves a list of IDs (user indexes) into summaries,
// skipping any that no longer resolve.
func (s *MarketService) SummariesFor(ids []uint64) []domain.MarketSummary {
	now := s.ledger.Now()
	out := make([]domain.MarketSummary, 0, len(ids))
	for _, id := range ids {
		if m, err := s.ledger.GetMarket(id); err == nil {
			out = append(out, m.ToSummary(now))
		}
	}
	return out
}

// MarketHistory returns the journal entries of one market, oldest first.
func (s *MarketService) MarketHistory(ctx context.Context, id uint64, limit, offset int) ([]domain.Event, error) {
	if _, err := s.ledger.GetMarket(id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.Event{}, nil
	}
	return s.history.ListByMarket(ctx, id, limit, offset)
}

// Activity returns the most recent journal entries performed by actor.
func (s *MarketService) Activity(ctx context.Context, actor common.Address, limit, offset int) ([]domain.Event, error) {
	if s.history == nil {
		return []domain.Event{}, nil
	}
	return s.history.ListByActor(ctx, actor, limit, offset)
}

func sideLabel(isYes bool) string {
	if isYes {
		return "yes"
	}
	return "no"
}
