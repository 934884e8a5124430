package handler

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondEventPage writes one page of journal events. The handler fetches
// limit+1 rows; the extra one only sets meta.has_more, since the journal does
// not count matches.
func respondEventPage(c *gin.Context, events []domain.Event, page, limit int) {
	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
		"meta": gin.H{
			"page":     page,
			"limit":    limit,
			"has_more": hasMore,
		},
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger error mapping
// ──────────────────────────────────────────────────────────────────────────────

// errorCodes gives the specific errors a stable client-facing code. Anything
// not listed falls back to its category code.
var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrEmptyQuestion, "ERR_EMPTY_QUESTION"},
	{domain.ErrQuestionTooLong, "ERR_QUESTION_TOO_LONG"},
	{domain.ErrDeadlineNotFuture, "ERR_DEADLINE_NOT_FUTURE"},
	{domain.ErrZeroStake, "ERR_ZERO_STAKE"},
	{domain.ErrStakePrecision, "ERR_STAKE_PRECISION"},
	{domain.ErrInvalidOutcome, "ERR_INVALID_OUTCOME"},
	{domain.ErrInvalidAddress, "ERR_INVALID_ADDRESS"},
	{domain.ErrNotPayable, "ERR_NOT_PAYABLE"},
	{domain.ErrUnknownMethod, "ERR_UNKNOWN_METHOD"},
	{domain.ErrNotResolver, "ERR_NOT_RESOLVER"},
	{domain.ErrUnauthorized, "ERR_UNAUTHORIZED"},
	{domain.ErrTokenInvalid, "ERR_TOKEN_INVALID"},
	{domain.ErrSignatureInvalid, "ERR_SIGNATURE_INVALID"},
	{domain.ErrNonceInvalid, "ERR_NONCE_INVALID"},
	{domain.ErrMarketClosed, "ERR_MARKET_CLOSED"},
	{domain.ErrMarketAlreadyResolved, "ERR_ALREADY_RESOLVED"},
	{domain.ErrBettingStillOpen, "ERR_BETTING_STILL_OPEN"},
	{domain.ErrMarketNotResolved, "ERR_MARKET_NOT_RESOLVED"},
	{domain.ErrNoPosition, "ERR_NO_POSITION"},
	{domain.ErrAlreadyClaimed, "ERR_ALREADY_CLAIMED"},
	{domain.ErrNothingToClaim, "ERR_NOTHING_TO_CLAIM"},
	{domain.ErrJournalConflict, "ERR_JOURNAL_CONFLICT"},
	{domain.ErrMarketNotFound, "ERR_MARKET_NOT_FOUND"},
}

// respondLedgerError maps an error returned by the service layer onto the
// envelope: validation 400, authorization 403 (401 for token problems),
// state 409, not found 404, anything else 500.
func respondLedgerError(c *gin.Context, err error) {
	code := ""
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			code = ec.code
			break
		}
	}

	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, orDefault(code, "ERR_VALIDATION"), err.Error())
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrTokenInvalid):
		respondError(c, http.StatusUnauthorized, code, err.Error())
	case domain.IsAuthorization(err):
		respondError(c, http.StatusForbidden, orDefault(code, "ERR_FORBIDDEN"), err.Error())
	case domain.IsState(err):
		respondError(c, http.StatusConflict, orDefault(code, "ERR_STATE"), err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, orDefault(code, "ERR_NOT_FOUND"), err.Error())
	default:
		log.Printf("[api] internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
	}
}

func orDefault(code, fallback string) string {
	if code == "" {
		return fallback
	}
	return code
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	// (page-1)*limit must stay a valid offset.
	if maxPage := math.MaxInt/limit - 1; page > maxPage {
		page = maxPage
	}
	return
}

// marketIDParam parses :id. On failure it writes a 400 and returns false.
func marketIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "market id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

// addressParam parses :address. On failure it writes a 400 and returns false.
func addressParam(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", domain.ErrInvalidAddress.Error())
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// parseSide accepts "yes" or "no" in any case.
func parseSide(s string) (isYes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}
