package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/service"
	"github.com/evetabi/predict/internal/units"
	"github.com/gin-gonic/gin"
)

// MarketHandler serves market creation and query endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// CreateMarket godoc
// POST /api/markets [JWT]
// Body: {"question":"Will it rain?","deadline":"2026-11-01T00:00:00Z","resolver":"0x…"}
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	creator, _ := middleware.GetAddress(c)

	var body struct {
		Question string    `json:"question" binding:"required"`
		Deadline time.Time `json:"deadline" binding:"required"`
		Resolver string    `json:"resolver"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	var resolver common.Address
	if r := strings.TrimSpace(body.Resolver); r != "" {
		if !common.IsHexAddress(r) {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", "resolver is not a valid address")
			return
		}
		resolver = common.HexToAddress(r)
	}

	e, err := h.marketSvc.CreateMarket(c.Request.Context(), creator, body.Question, body.Deadline, resolver)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	summary, err := h.marketSvc.GetMarketSummary(e.MarketID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"market": summary, "event": e})
}

// ListMarkets godoc
// GET /api/markets?page=1&limit=20 (newest first)
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	page, limit := parsePagination(c)
	markets, total := h.marketSvc.ListMarkets((page-1)*limit, limit)
	respondList(c, markets, total, page, limit)
}

// NextID godoc
// GET /api/markets/next-id
func (h *MarketHandler) NextID(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"next_market_id": h.marketSvc.NextMarketID()})
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	summary, err := h.marketSvc.GetMarketSummary(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// GetMeta godoc
// GET /api/markets/:id/meta
func (h *MarketHandler) GetMeta(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	meta, err := h.marketSvc.GetMarketMeta(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, meta)
}

// GetPools godoc
// GET /api/markets/:id/pools
func (h *MarketHandler) GetPools(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	pools, err := h.marketSvc.GetMarketPools(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, pools)
}

// GetOdds godoc
// GET /api/markets/:id/odds
func (h *MarketHandler) GetOdds(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	odds, err := h.marketSvc.GetOdds(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, odds)
}

// GetPayout godoc
// GET /api/markets/:id/payout?side=yes&amount=10
func (h *MarketHandler) GetPayout(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	isYes, ok := parseSide(c.Query("side"))
	if !ok {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_SIDE", "side must be yes or no")
		return
	}
	amount, err := units.ParseEther(c.Query("amount"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", err.Error())
		return
	}

	payout, err := h.marketSvc.CalculatePayout(id, isYes, amount)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": id,
		"side":      sideLabel(isYes),
		"amount":    amount,
		"payout":    payout,
	})
}

// GetPosition godoc
// GET /api/markets/:id/positions/:address
func (h *MarketHandler) GetPosition(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	holder, ok := addressParam(c)
	if !ok {
		return
	}
	view, err := h.marketSvc.GetPositionView(id, holder)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, view)
}

// GetHistory godoc
// GET /api/markets/:id/history?page=1&limit=20 (oldest first)
func (h *MarketHandler) GetHistory(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	events, err := h.marketSvc.MarketHistory(c.Request.Context(), id, limit+1, (page-1)*limit)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondEventPage(c, events, page, limit)
}

func sideLabel(isYes bool) string {
	if isYes {
		return domain.OutcomeYes.String()
	}
	return domain.OutcomeNo.String()
}
