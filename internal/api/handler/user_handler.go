package handler

import (
	"net/http"

	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/service"
	"github.com/gin-gonic/gin"
)

// UserHandler handles wallet login and per-address index endpoints.
type UserHandler struct {
	authSvc   *service.AuthService
	marketSvc *service.MarketService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authSvc *service.AuthService, marketSvc *service.MarketService) *UserHandler {
	return &UserHandler{authSvc: authSvc, marketSvc: marketSvc}
}

// Nonce godoc
// POST /api/auth/nonce
// Body: {"address":"0x…"}
func (h *UserHandler) Nonce(c *gin.Context) {
	var req service.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	challenge, err := h.authSvc.IssueNonce(c.Request.Context(), req.Address)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, challenge)
}

// Login godoc
// POST /api/auth/login
// Body: {"address":"0x…","signature":"0x…"} where signature is personal_sign
// over the message returned by /api/auth/nonce.
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Me godoc
// GET /api/me [JWT required]
func (h *UserHandler) Me(c *gin.Context) {
	addr, _ := middleware.GetAddress(c)
	respondSuccess(c, http.StatusOK, gin.H{
		"address": addr,
		"role":    middleware.GetRole(c),
		"markets": h.marketSvc.GetUserMarkets(addr),
		"created": h.marketSvc.GetCreatedMarkets(addr),
	})
}

// Markets godoc
// GET /api/users/:address/markets
func (h *UserHandler) Markets(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	ids := h.marketSvc.GetUserMarkets(addr)
	respondSuccess(c, http.StatusOK, gin.H{
		"market_ids": ids,
		"markets":    h.marketSvc.SummariesFor(ids),
	})
}

// Created godoc
// GET /api/users/:address/created
func (h *UserHandler) Created(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	ids := h.marketSvc.GetCreatedMarkets(addr)
	respondSuccess(c, http.StatusOK, gin.H{
		"market_ids": ids,
		"markets":    h.marketSvc.SummariesFor(ids),
	})
}

// Activity godoc
// GET /api/users/:address/activity?page=1&limit=20 (newest first)
func (h *UserHandler) Activity(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	events, err := h.marketSvc.Activity(c.Request.Context(), addr, limit+1, (page-1)*limit)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondEventPage(c, events, page, limit)
}
