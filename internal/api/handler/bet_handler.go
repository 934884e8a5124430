package handler

import (
	"net/http"

	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/service"
	"github.com/evetabi/predict/internal/units"
	"github.com/gin-gonic/gin"
)

// BetHandler serves staking, resolution and claim endpoints.
type BetHandler struct {
	marketSvc *service.MarketService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(marketSvc *service.MarketService) *BetHandler {
	return &BetHandler{marketSvc: marketSvc}
}

// PlaceBet godoc
// POST /api/markets/:id/bets [JWT]
// Body: {"side":"yes","amount":"10.5"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	bettor, _ := middleware.GetAddress(c)
	id, ok := marketIDParam(c)
	if !ok {
		return
	}

	var body struct {
		Side   string `json:"side"   binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	isYes, ok := parseSide(body.Side)
	if !ok {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_SIDE", "side must be yes or no")
		return
	}
	amount, err := units.ParseEther(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", err.Error())
		return
	}

	e, err := h.marketSvc.PlaceBet(c.Request.Context(), bettor, id, isYes, amount)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	position, err := h.marketSvc.GetPositionView(id, bettor)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"event": e, "position": position})
}

// Resolve godoc
// POST /api/markets/:id/resolve [JWT]
// Body: {"outcome":"yes"|"no"|"invalid"}
func (h *BetHandler) Resolve(c *gin.Context) {
	caller, _ := middleware.GetAddress(c)
	id, ok := marketIDParam(c)
	if !ok {
		return
	}

	var body struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	outcome, ok := domain.ParseOutcome(body.Outcome)
	if !ok || !outcome.IsTerminal() {
		respondLedgerError(c, domain.ErrInvalidOutcome)
		return
	}

	e, err := h.marketSvc.ResolveMarket(c.Request.Context(), caller, id, outcome)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	summary, err := h.marketSvc.GetMarketSummary(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": e, "market": summary})
}

// Claim godoc
// POST /api/markets/:id/claim [JWT]
func (h *BetHandler) Claim(c *gin.Context) {
	claimant, _ := middleware.GetAddress(c)
	id, ok := marketIDParam(c)
	if !ok {
		return
	}

	e, err := h.marketSvc.ClaimWinnings(c.Request.Context(), claimant, id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"event":  e,
		"amount": e.Amount,
		"wei":    units.ToWei(e.Amount).String(),
	})
}
