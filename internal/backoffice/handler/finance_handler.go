package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FinanceHandler serves /admin/finance endpoints.
type FinanceHandler struct {
	ledger LedgerView
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(ledger LedgerView) *FinanceHandler {
	return &FinanceHandler{ledger: ledger}
}

type feeRow struct {
	MarketID    uint64          `json:"market_id"`
	Outcome     string          `json:"outcome"`
	TotalPool   decimal.Decimal `json:"total_pool"`
	LosingPool  decimal.Decimal `json:"losing_pool"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	Refund      bool            `json:"refund"`
}

// Fees godoc
// GET /admin/finance/fees
// Per-market protocol fee for every resolved market, newest first.
func (h *FinanceHandler) Fees(c *gin.Context) {
	rows := []feeRow{}
	total := decimal.Zero
	settled := decimal.Zero
	refunded := decimal.Zero

	for _, m := range allMarkets(h.ledger) {
		if !m.Resolved {
			continue
		}
		fee := m.ProtocolFee()
		rows = append(rows, feeRow{
			MarketID:    m.ID,
			Outcome:     m.Outcome.String(),
			TotalPool:   m.TotalPool(),
			LosingPool:  m.LosingPool(),
			ProtocolFee: fee,
			Refund:      m.IsRefund(),
		})
		total = total.Add(fee)
		if m.IsRefund() {
			refunded = refunded.Add(m.TotalPool())
		} else {
			settled = settled.Add(m.TotalPool())
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"markets":        rows,
		"total_fees":     total,
		"settled_volume": settled,
		"refund_volume":  refunded,
	})
}
