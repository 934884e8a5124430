package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Position is one participant's cumulative stake on each side of a market.
// Holding both sides at once is allowed.
type Position struct {
	YesAmount decimal.Decimal `json:"yes_amount"`
	NoAmount  decimal.Decimal `json:"no_amount"`
	Claimed   bool            `json:"claimed"`
}

// StakeOn returns the stake held on the given side.
func (p *Position) StakeOn(isYes bool) decimal.Decimal {
	if isYes {
		return p.YesAmount
	}
	return p.NoAmount
}

// Total returns the stake held on both sides.
func (p *Position) Total() decimal.Decimal {
	return p.YesAmount.Add(p.NoAmount)
}

// IsEmpty returns true when nothing has been staked.
func (p *Position) IsEmpty() bool {
	return p.YesAmount.IsZero() && p.NoAmount.IsZero()
}

// PositionView is a position together with the address that holds it and the
// amount a claim would currently pay.
type PositionView struct {
	MarketID  uint64          `json:"market_id"`
	Holder    common.Address  `json:"holder"`
	YesAmount decimal.Decimal `json:"yes_amount"`
	NoAmount  decimal.Decimal `json:"no_amount"`
	Claimed   bool            `json:"claimed"`
	Claimable decimal.Decimal `json:"claimable"`
}
