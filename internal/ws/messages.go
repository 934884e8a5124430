// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMarketCreated   MsgType = "market_created"
	MsgTypeBetPlaced       MsgType = "bet_placed"
	MsgTypeMarketResolved  MsgType = "market_resolved"
	MsgTypeWinningsClaimed MsgType = "winnings_claimed"
	MsgTypeMarketClosed    MsgType = "market_closed"
	MsgTypeError           MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketCreatedMessage
// ──────────────────────────────────────────────────────────────────────────────

// MarketCreatedMessage carries the full snapshot of the new market.
type MarketCreatedMessage struct {
	Type      MsgType              `json:"type"`
	Seq       uint64               `json:"seq"`
	Market    domain.MarketSummary `json:"market"`
	Timestamp time.Time            `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetPlacedMessage
// ──────────────────────────────────────────────────────────────────────────────

// BetPlacedMessage notifies all clients that the pool ratios have changed.
type BetPlacedMessage struct {
	Type      MsgType         `json:"type"`
	Seq       uint64          `json:"seq"`
	MarketID  uint64          `json:"market_id"`
	Bettor    common.Address  `json:"bettor"`
	IsYes     bool            `json:"is_yes"`
	Amount    decimal.Decimal `json:"amount"`
	YesPool   decimal.Decimal `json:"yes_pool"`
	NoPool    decimal.Decimal `json:"no_pool"`
	TotalPool decimal.Decimal `json:"total_pool"`
	Odds      domain.Odds     `json:"odds"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketResolvedMessage
// ──────────────────────────────────────────────────────────────────────────────

// MarketResolvedMessage tells clients which outcome was set and the final pools.
type MarketResolvedMessage struct {
	Type        MsgType         `json:"type"`
	Seq         uint64          `json:"seq"`
	MarketID    uint64          `json:"market_id"`
	Outcome     string          `json:"outcome"`
	Resolver    common.Address  `json:"resolver"`
	YesPool     decimal.Decimal `json:"yes_pool"`
	NoPool      decimal.Decimal `json:"no_pool"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// WinningsClaimedMessage
// ──────────────────────────────────────────────────────────────────────────────

// WinningsClaimedMessage confirms a transfer to the claimant.
type WinningsClaimedMessage struct {
	Type      MsgType         `json:"type"`
	Seq       uint64          `json:"seq"`
	MarketID  uint64          `json:"market_id"`
	Claimant  common.Address  `json:"claimant"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketClosedMessage
// ──────────────────────────────────────────────────────────────────────────────

// MarketClosedMessage announces that a market's deadline has passed and it is
// awaiting resolution.
type MarketClosedMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uint64          `json:"market_id"`
	Question  string          `json:"question"`
	Resolver  common.Address  `json:"resolver"`
	Deadline  time.Time       `json:"deadline"`
	YesPool   decimal.Decimal `json:"yes_pool"`
	NoPool    decimal.Decimal `json:"no_pool"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
