package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	ledger LedgerView
	events EventStore
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(ledger LedgerView, events EventStore) *MarketAdminHandler {
	return &MarketAdminHandler{ledger: ledger, events: events}
}

// List godoc
// GET /admin/markets?status=open|closed|resolved&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", StatusOpen, StatusClosed, StatusResolved:
	default:
		respondError(c, http.StatusBadRequest, "ERR_INVALID_STATUS", "status must be open, closed or resolved")
		return
	}
	page, limit := adminPagination(c)
	now := h.ledger.Now()

	rows := []adminMarket{}
	for _, m := range allMarkets(h.ledger) {
		if status == "" || marketStatus(&m, now) == status {
			rows = append(rows, toAdminMarket(&m, now))
		}
	}

	total := len(rows)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	respondList(c, rows[start:end], total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	m, err := h.ledger.GetMarket(id)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, toAdminMarket(&m, h.ledger.Now()))
}

// Events godoc
// GET /admin/markets/:id/events?page=1&limit=50 (oldest first)
func (h *MarketAdminHandler) Events(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	if _, err := h.ledger.GetMarket(id); err != nil {
		respondLookupError(c, err)
		return
	}
	page, limit := adminPagination(c)
	events, err := h.events.ListByMarket(c.Request.Context(), id, limit+1, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not load events")
		return
	}
	respondEventPage(c, events, page, limit)
}
