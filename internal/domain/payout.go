package domain

import "github.com/shopspring/decimal"

// ──────────────────────────────────────────────────────────────────────────────
// Constants
// ──────────────────────────────────────────────────────────────────────────────

const (
	// BpsDenominator is 100 % in basis points.
	BpsDenominator = 10000

	// ProtocolFeeBps is the share of the losing pool retained as protocol fee (2 %).
	ProtocolFeeBps = 200

	// AmountPrecision is the number of fractional digits an amount may carry
	// (18, one wei of the native coin). Payouts are floored to this precision.
	AmountPrecision int32 = 18
)

var (
	bpsDenominator = decimal.NewFromInt(BpsDenominator)
	winnerShareBps = decimal.NewFromInt(BpsDenominator - ProtocolFeeBps)
	feeRate        = decimal.New(ProtocolFeeBps, -4)
)

// ──────────────────────────────────────────────────────────────────────────────
// Odds
// ──────────────────────────────────────────────────────────────────────────────

// ComputeOdds returns the Yes/No split of the pools in basis points.
//
//	yesBps = floor(yes × 10000 / (yes + no))
//	noBps  = 10000 − yesBps
//
// An empty market is displayed 50/50.
func ComputeOdds(yesPool, noPool decimal.Decimal) Odds {
	total := yesPool.Add(noPool)
	if !total.IsPositive() {
		return Odds{YesBps: BpsDenominator / 2, NoBps: BpsDenominator / 2}
	}
	q, _ := yesPool.Mul(bpsDenominator).QuoRem(total, 0)
	yes := q.IntPart()
	return Odds{YesBps: yes, NoBps: BpsDenominator - yes}
}

// ──────────────────────────────────────────────────────────────────────────────
// Payout math
// ──────────────────────────────────────────────────────────────────────────────

// FeeOn returns the protocol fee taken from a losing pool.
func FeeOn(losingPool decimal.Decimal) decimal.Decimal {
	return losingPool.Mul(feeRate)
}

// WinnerPayout computes what a winning stake receives at settlement.
//
//	profit = floor₁₈(stake × losingPool × 9800 / (winningPool × 10000))
//	payout = stake + profit
//
// Winners always recover their full stake plus a pro-rata share of 98 % of
// the losing pool. Flooring each payout to one wei means the sum over all
// winners never exceeds winningPool + 0.98 × losingPool and falls short of it
// by less than one wei per winner. A zero winning pool yields the stake back.
func WinnerPayout(stake, winningPool, losingPool decimal.Decimal) decimal.Decimal {
	if !winningPool.IsPositive() || !stake.IsPositive() {
		return stake
	}
	num := stake.Mul(losingPool).Mul(winnerShareBps)
	den := winningPool.Mul(bpsDenominator)
	profit, _ := num.QuoRem(den, AmountPrecision)
	return stake.Add(profit)
}

// PreviewPayout implements the calculatePayout view: the value of a
// hypothetical stake of bet on side isYes.
//
//   - Invalid market: bet is refunded unchanged.
//   - Resolved with nobody on the winning side: bet is refunded (refund policy).
//   - Resolved and the side won: WinnerPayout against the frozen pools.
//   - Resolved and the side lost: zero.
//   - Unresolved: what bet would return if the side wins, with bet first added
//     to that side's pool.
func PreviewPayout(m *Market, isYes bool, bet decimal.Decimal) decimal.Decimal {
	if !bet.IsPositive() {
		return decimal.Zero
	}
	if !m.Resolved {
		side := m.PoolFor(isYes).Add(bet)
		return WinnerPayout(bet, side, m.PoolFor(!isYes))
	}
	if m.IsRefund() {
		return bet
	}
	if OutcomeForSide(isYes) != m.Outcome {
		return decimal.Zero
	}
	return WinnerPayout(bet, m.WinningPool(), m.LosingPool())
}

// ClaimAmount returns what claimWinnings transfers for a position on a
// resolved market. Refund settlements return both sides of the position
// fee-free; otherwise only the winning-side stake pays out and the losing-side
// stake is forfeit. Unresolved markets pay nothing.
func ClaimAmount(m *Market, p *Position) decimal.Decimal {
	if !m.Resolved || p == nil {
		return decimal.Zero
	}
	if m.IsRefund() {
		return p.Total()
	}
	stake := p.StakeOn(m.Outcome == OutcomeYes)
	if !stake.IsPositive() {
		return decimal.Zero
	}
	return WinnerPayout(stake, m.WinningPool(), m.LosingPool())
}

// HasWeiPrecision reports whether amount can be expressed in whole wei.
func HasWeiPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(AmountPrecision))
}
