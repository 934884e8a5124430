package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Read-side dependencies (declared by the consumer)
// ──────────────────────────────────────────────────────────────────────────────

// LedgerView is the read-only surface of the replicated ledger.
// Implemented by *ledger.Ledger.
type LedgerView interface {
	Now() time.Time
	LastSeq() uint64
	ListMarkets(offset, limit int) ([]domain.Market, int)
	GetMarket(id uint64) (domain.Market, error)
	GetUserMarkets(holder common.Address) []uint64
	GetCreatedMarkets(creator common.Address) []uint64
	GetPositionView(id uint64, holder common.Address) (domain.PositionView, error)
}

// EventStore serves journal queries. Implemented by
// repository.EventRepository and repository.MemoryJournal.
type EventStore interface {
	ListByMarket(ctx context.Context, marketID uint64, limit, offset int) ([]domain.Event, error)
	ListByActor(ctx context.Context, actor common.Address, limit, offset int) ([]domain.Event, error)
	CountByType(ctx context.Context) (map[domain.EventType]int64, error)
}

// SyncStatus reports how far the replica has caught up.
// Implemented by backoffice.Replica.
type SyncStatus interface {
	LastSeq() uint64
	LastSynced() time.Time
	LastError() error
}

// ArchiveStatus reports how far the journal has been copied to object
// storage. Implemented by archive.Archiver.
type ArchiveStatus interface {
	LastArchived() uint64
}

// ──────────────────────────────────────────────────────────────────────────────
// Standard admin response helpers (mirrors internal/api/handler/response.go)
// ──────────────────────────────────────────────────────────────────────────────

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

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

// respondEventPage writes one page of journal events fetched with limit+1 rows;
// meta.has_more replaces a total the journal cannot count cheaply.
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

// respondLookupError maps replica lookups: unknown market 404, else 500.
func respondLookupError(c *gin.Context, err error) {
	if domain.IsNotFound(err) {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}
	respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
}

// adminPagination reads page/limit query params with sane defaults for admin views.
func adminPagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if maxPage := math.MaxInt/limit - 1; page > maxPage {
		page = maxPage
	}
	return
}

func marketIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return 0, false
	}
	return id, true
}

func addressParam(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// allMarkets returns every market in the replica, newest first.
func allMarkets(l LedgerView) []domain.Market {
	_, total := l.ListMarkets(0, 0)
	markets, _ := l.ListMarkets(0, total)
	return markets
}

// ──────────────────────────────────────────────────────────────────────────────
// Market classification
// ──────────────────────────────────────────────────────────────────────────────

// Admin status labels.
const (
	StatusOpen     = "open"     // accepting bets
	StatusClosed   = "closed"   // past deadline, awaiting resolution
	StatusResolved = "resolved" // outcome set
)

func marketStatus(m *domain.Market, now time.Time) string {
	switch {
	case m.Resolved:
		return StatusResolved
	case m.IsOpen(now):
		return StatusOpen
	default:
		return StatusClosed
	}
}

// riskIndicator returns GREEN/YELLOW/RED based on pool imbalance, measured as
// the dominant side's share in basis points.
func riskIndicator(o domain.Odds) string {
	dominant := o.YesBps
	if o.NoBps > dominant {
		dominant = o.NoBps
	}
	switch {
	case dominant > 8500:
		return "RED"
	case dominant > 7000:
		return "YELLOW"
	default:
		return "GREEN"
	}
}

// adminMarket is the admin row: the public summary plus classification.
type adminMarket struct {
	domain.MarketSummary
	Status string `json:"status"`
	Risk   string `json:"risk_indicator"`
	Refund bool   `json:"refund"`
}

func toAdminMarket(m *domain.Market, now time.Time) adminMarket {
	return adminMarket{
		MarketSummary: m.ToSummary(now),
		Status:        marketStatus(m, now),
		Risk:          riskIndicator(m.Odds()),
		Refund:        m.IsRefund(),
	}
}

func sumPools(markets []domain.Market, keep func(*domain.Market) bool) decimal.Decimal {
	total := decimal.Zero
	for i := range markets {
		if keep(&markets[i]) {
			total = total.Add(markets[i].TotalPool())
		}
	}
	return total
}
