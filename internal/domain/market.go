// Package domain defines the core entities of the binary Yes/No prediction
// market ledger: markets, positions, outcomes, journal events and the
// pool-weighted payout math that settles them.
package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Outcome
// ──────────────────────────────────────────────────────────────────────────────

// Outcome is the terminal classification of a market. The numeric values are
// the uint8 values used on the contract ABI.
type Outcome uint8

const (
	OutcomeUnresolved Outcome = 0
	OutcomeYes        Outcome = 1
	OutcomeNo         Outcome = 2
	OutcomeInvalid    Outcome = 3 // full refund, fee-free
)

var outcomeNames = [...]string{"Unresolved", "Yes", "No", "Invalid"}

// String returns the display label of the outcome.
func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "Unknown"
}

// IsTerminal returns true for the three values a market may be resolved to.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeInvalid
}

// ParseOutcome maps a label ("yes", "No", "INVALID", ...) to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	for i, name := range outcomeNames {
		if strings.EqualFold(s, name) {
			return Outcome(i), true
		}
	}
	return OutcomeUnresolved, false
}

// OutcomeForSide maps a bet side to the outcome that makes it win.
func OutcomeForSide(isYes bool) Outcome {
	if isYes {
		return OutcomeYes
	}
	return OutcomeNo
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is a single Yes/No question with a betting deadline and a designated
// resolver. Pools only grow until resolution and are frozen afterwards.
type Market struct {
	ID        uint64          `json:"id"`
	Question  string          `json:"question"`
	Creator   common.Address  `json:"creator"`
	Resolver  common.Address  `json:"resolver"` // effective resolver; creator when none was given
	CreatedAt time.Time       `json:"created_at"`
	Deadline  time.Time       `json:"deadline"`
	YesPool   decimal.Decimal `json:"yes_pool"`
	NoPool    decimal.Decimal `json:"no_pool"`
	Outcome   Outcome         `json:"outcome"`
	Resolved  bool            `json:"resolved"`
}

// TotalPool returns the sum of both pools.
func (m *Market) TotalPool() decimal.Decimal {
	return m.YesPool.Add(m.NoPool)
}

// PoolFor returns the pool of the given side.
func (m *Market) PoolFor(isYes bool) decimal.Decimal {
	if isYes {
		return m.YesPool
	}
	return m.NoPool
}

// IsOpen returns true while the market accepts bets at time now.
func (m *Market) IsOpen(now time.Time) bool {
	return !m.Resolved && now.Before(m.Deadline)
}

// Odds returns the current Yes/No split in basis points.
func (m *Market) Odds() Odds {
	return ComputeOdds(m.YesPool, m.NoPool)
}

// WinningPool returns the pool of the winning side, or zero when the market is
// unresolved or Invalid.
func (m *Market) WinningPool() decimal.Decimal {
	switch m.Outcome {
	case OutcomeYes:
		return m.YesPool
	case OutcomeNo:
		return m.NoPool
	}
	return decimal.Zero
}

// LosingPool returns the pool of the losing side, or zero when the market is
// unresolved or Invalid.
func (m *Market) LosingPool() decimal.Decimal {
	switch m.Outcome {
	case OutcomeYes:
		return m.NoPool
	case OutcomeNo:
		return m.YesPool
	}
	return decimal.Zero
}

// IsRefund returns true when the resolved market pays every participant their
// stake back: an Invalid outcome, or a Yes/No outcome nobody bet on.
func (m *Market) IsRefund() bool {
	if !m.Resolved {
		return false
	}
	return m.Outcome == OutcomeInvalid || m.WinningPool().IsZero()
}

// ProtocolFee returns the amount retained by the protocol once the market is
// settled: 2 % of the losing pool, or zero for refund settlements.
func (m *Market) ProtocolFee() decimal.Decimal {
	if !m.Resolved || m.IsRefund() {
		return decimal.Zero
	}
	return FeeOn(m.LosingPool())
}

// Meta returns the immutable descriptive part of the market.
func (m *Market) Meta() MarketMeta {
	return MarketMeta{
		Question:  m.Question,
		Creator:   m.Creator,
		Resolver:  m.Resolver,
		CreatedAt: m.CreatedAt,
	}
}

// Pools returns the pool/state part of the market.
func (m *Market) Pools() MarketPools {
	return MarketPools{
		YesPool:   m.YesPool,
		NoPool:    m.NoPool,
		TotalPool: m.TotalPool(),
		Outcome:   m.Outcome,
		Resolved:  m.Resolved,
		Deadline:  m.Deadline,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Read models returned by the ledger views
// ──────────────────────────────────────────────────────────────────────────────

// MarketMeta mirrors the getMarketMeta view.
type MarketMeta struct {
	Question  string         `json:"question"`
	Creator   common.Address `json:"creator"`
	Resolver  common.Address `json:"resolver"`
	CreatedAt time.Time      `json:"created_at"`
}

// MarketPools mirrors the getMarketPools view.
type MarketPools struct {
	YesPool   decimal.Decimal `json:"yes_pool"`
	NoPool    decimal.Decimal `json:"no_pool"`
	TotalPool decimal.Decimal `json:"total_pool"`
	Outcome   Outcome         `json:"outcome"`
	Resolved  bool            `json:"resolved"`
	Deadline  time.Time       `json:"deadline"`
}

// Odds is the Yes/No split in basis points; YesBps + NoBps == 10000.
type Odds struct {
	YesBps int64 `json:"yes_bps"`
	NoBps  int64 `json:"no_bps"`
}

// MarketSummary is the full read model used by list endpoints and WS pushes.
type MarketSummary struct {
	ID          uint64          `json:"id"`
	Question    string          `json:"question"`
	Creator     common.Address  `json:"creator"`
	Resolver    common.Address  `json:"resolver"`
	CreatedAt   time.Time       `json:"created_at"`
	Deadline    time.Time       `json:"deadline"`
	YesPool     decimal.Decimal `json:"yes_pool"`
	NoPool      decimal.Decimal `json:"no_pool"`
	TotalPool   decimal.Decimal `json:"total_pool"`
	Outcome     string          `json:"outcome"`
	Resolved    bool            `json:"resolved"`
	Odds        Odds            `json:"odds"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	TimeLeftSec int64           `json:"time_left_sec"`
}

// ToSummary builds a MarketSummary as seen at time now.
func (m *Market) ToSummary(now time.Time) MarketSummary {
	left := m.Deadline.Sub(now)
	if left < 0 || m.Resolved {
		left = 0
	}
	return MarketSummary{
		ID:          m.ID,
		Question:    m.Question,
		Creator:     m.Creator,
		Resolver:    m.Resolver,
		CreatedAt:   m.CreatedAt,
		Deadline:    m.Deadline,
		YesPool:     m.YesPool,
		NoPool:      m.NoPool,
		TotalPool:   m.TotalPool(),
		Outcome:     m.Outcome.String(),
		Resolved:    m.Resolved,
		Odds:        m.Odds(),
		ProtocolFee: m.ProtocolFee(),
		TimeLeftSec: int64(left.Seconds()),
	}
}
