package handler

import (
	"net/http"

	"github.com/evetabi/predict/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UserAdminHandler serves /admin/users endpoints. Users are wallet addresses.
type UserAdminHandler struct {
	ledger LedgerView
	events EventStore
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(ledger LedgerView, events EventStore) *UserAdminHandler {
	return &UserAdminHandler{ledger: ledger, events: events}
}

// Detail godoc
// GET /admin/users/:address
// Every position the address holds, the markets it created, and totals.
func (h *UserAdminHandler) Detail(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}

	ids := h.ledger.GetUserMarkets(addr)
	positions := make([]domain.PositionView, 0, len(ids))
	staked := decimal.Zero
	claimable := decimal.Zero
	for _, id := range ids {
		view, err := h.ledger.GetPositionView(id, addr)
		if err != nil {
			respondLookupError(c, err)
			return
		}
		positions = append(positions, view)
		staked = staked.Add(view.YesAmount).Add(view.NoAmount)
		claimable = claimable.Add(view.Claimable)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"address":         addr,
		"positions":       positions,
		"created_markets": h.ledger.GetCreatedMarkets(addr),
		"total_staked":    staked,
		"total_claimable": claimable,
	})
}

// Events godoc
// GET /admin/users/:address/events?page=1&limit=50 (newest first)
func (h *UserAdminHandler) Events(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	page, limit := adminPagination(c)
	events, err := h.events.ListByActor(c.Request.Context(), addr, limit+1, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not load events")
		return
	}
	respondEventPage(c, events, page, limit)
}
