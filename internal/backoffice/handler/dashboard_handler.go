package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	ledger  LedgerView
	events  EventStore
	sync    SyncStatus
	archive ArchiveStatus // optional, set when archiving is configured
	cfg     *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(ledger LedgerView, events EventStore, sync SyncStatus, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{ledger: ledger, events: events, sync: sync, cfg: cfg}
}

// SetArchive adds journal archive progress to the dashboard.
func (h *DashboardHandler) SetArchive(a ArchiveStatus) { h.archive = a }

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	now := h.ledger.Now()
	markets := allMarkets(h.ledger)

	counts := map[string]int{StatusOpen: 0, StatusClosed: 0, StatusResolved: 0}
	outcomes := map[string]int{}
	fees := decimal.Zero
	red := 0
	for i := range markets {
		m := &markets[i]
		counts[marketStatus(m, now)]++
		if m.Resolved {
			outcomes[m.Outcome.String()]++
			fees = fees.Add(m.ProtocolFee())
		} else if riskIndicator(m.Odds()) == "RED" {
			red++
		}
	}

	// ── Journal ──────────────────────────────────────────────────────────────
	var eventCounts map[domain.EventType]int64
	if h.events != nil {
		var err error
		if eventCounts, err = h.events.CountByType(c.Request.Context()); err != nil {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not count events")
			return
		}
	}

	// ── Replica health ───────────────────────────────────────────────────────
	replica := gin.H{"last_seq": h.ledger.LastSeq()}
	if h.sync != nil {
		replica["last_synced"] = h.sync.LastSynced()
		if err := h.sync.LastError(); err != nil {
			replica["last_error"] = err.Error()
		}
	}

	if h.archive != nil {
		replica["archived_seq"] = h.archive.LastArchived()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":       time.Now().UTC(),
		"chain":           gin.H{"id": h.cfg.Chain.ID, "name": h.cfg.Chain.Name, "symbol": h.cfg.Chain.Symbol},
		"markets":         counts,
		"outcomes":        outcomes,
		"markets_at_risk": red,
		"total_staked":    sumPools(markets, func(*domain.Market) bool { return true }),
		"value_at_stake":  sumPools(markets, func(m *domain.Market) bool { return !m.Resolved }),
		"protocol_fees":   fees,
		"events":          eventCounts,
		"replica":         replica,
	})
}
