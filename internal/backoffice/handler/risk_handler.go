package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// RiskHandler serves /admin/risk endpoints.
type RiskHandler struct {
	ledger LedgerView
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(ledger LedgerView) *RiskHandler {
	return &RiskHandler{ledger: ledger}
}

// Live godoc
// GET /admin/risk/live
// Open markets ordered by imbalance, most lopsided first.
func (h *RiskHandler) Live(c *gin.Context) {
	now := h.ledger.Now()
	rows := []adminMarket{}
	for _, m := range allMarkets(h.ledger) {
		if m.IsOpen(now) {
			rows = append(rows, toAdminMarket(&m, now))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return dominantBps(rows[i]) > dominantBps(rows[j])
	})
	respondSuccess(c, http.StatusOK, rows)
}

// Stale godoc
// GET /admin/risk/stale?older_than=24h
// Markets whose deadline passed more than older_than ago and which nobody has
// resolved yet; their stakes stay locked until the resolver acts.
func (h *RiskHandler) Stale(c *gin.Context) {
	olderThan := 24 * time.Hour
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DURATION", "older_than must be a duration such as 24h")
			return
		}
		olderThan = d
	}

	now := h.ledger.Now()
	cutoff := now.Add(-olderThan)
	rows := []adminMarket{}
	for _, m := range allMarkets(h.ledger) {
		if !m.Resolved && !m.Deadline.After(cutoff) {
			rows = append(rows, toAdminMarket(&m, now))
		}
	}
	respondSuccess(c, http.StatusOK, rows)
}

func dominantBps(m adminMarket) int64 {
	if m.Odds.YesBps > m.Odds.NoBps {
		return m.Odds.YesBps
	}
	return m.Odds.NoBps
}
