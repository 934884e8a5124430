// Package scheduler runs the background loop that announces markets whose
// betting window has just ended:
//
//	closingLoop – every tick, finds unresolved markets whose deadline fell
//	              since the previous tick and pushes market_closed to WS clients.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/evetabi/predict/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies declared by the consumer
// ──────────────────────────────────────────────────────────────────────────────

// MarketSource is the read side of the ledger the scheduler needs.
// Implemented by *ledger.Ledger.
type MarketSource interface {
	MarketsClosedBetween(from, to time.Time) []domain.Market
	Now() time.Time
}

// Notifier defines the broadcast the scheduler needs from the WebSocket hub.
// Declared here so the scheduler package does not import ws.
type Notifier interface {
	BroadcastMarketClosed(m domain.MarketSummary)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the closing loop. Call Run(ctx) once from main(); cancel the
// context to shut it down.
type Scheduler struct {
	markets  MarketSource
	notifier Notifier
	tick     time.Duration
	logger   *slog.Logger

	lastTick time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(markets MarketSource, notifier Notifier, tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{markets: markets, notifier: notifier, tick: tick, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick", s.tick)
	s.closingLoop(ctx)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// closingLoop
// ──────────────────────────────────────────────────────────────────────────────

// closingLoop checks for freshly closed markets every tick. Markets already
// past their deadline at startup are not announced.
func (s *Scheduler) closingLoop(ctx context.Context) {
	s.lastTick = s.markets.Now()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("closingLoop: shutting down")
			return
		case <-ticker.C:
			s.announceClosed()
		}
	}
}

// announceClosed is the inner body of closingLoop, extracted so that the
// defer/recover catches a panic without ending the loop.
func (s *Scheduler) announceClosed() {
	defer s.recoverAndLog("closingLoop")

	now := s.markets.Now()
	closed := s.markets.MarketsClosedBetween(s.lastTick, now)
	s.lastTick = now

	for i := range closed {
		m := &closed[i]
		s.logger.Info("market closed for betting",
			"market_id", m.ID, "deadline", m.Deadline.Format(time.RFC3339),
			"total_pool", m.TotalPool().String())
		if s.notifier != nil {
			s.notifier.BroadcastMarketClosed(m.ToSummary(now))
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred around each tick to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
