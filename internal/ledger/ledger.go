// Package ledger implements the Market Ledger: a single-writer state machine
// that owns every market and position and serialises all mutations behind one
// lock. Each mutation is validated, appended to the Journal and only then
// applied, so a rejected call leaves state untouched. When an append fails the
// ledger re-reads the journal tail, so its state never falls behind what the
// journal actually recorded.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultMaxQuestionLength bounds the question text in runes.
const DefaultMaxQuestionLength = 280

// Journal persists committed events. Append is called with the ledger's write
// lock held and must either durably record the event or return an error.
type Journal interface {
	Append(ctx context.Context, e *domain.Event) error
}

// TailReader is implemented by journals that can serve the events after a
// sequence number. When Append fails the ledger uses it to pick up anything
// that reached the journal anyway, so an ambiguous write never leaves the
// in-memory seq behind the journal.
type TailReader interface {
	LoadAfter(ctx context.Context, after uint64, limit int) ([]domain.Event, error)
}

// tailBatch is the page size used when catching up after a failed Append.
const tailBatch = 500

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source (tests, replay tools).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithMaxQuestionLength overrides DefaultMaxQuestionLength.
func WithMaxQuestionLength(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxQuestionLen = n
		}
	}
}

// Ledger holds all market and position state.
type Ledger struct {
	mu sync.RWMutex

	markets   []*domain.Market // index == market ID
	positions map[uint64]map[common.Address]*domain.Position
	held      map[common.Address][]uint64 // markets an address has bet on
	created   map[common.Address][]uint64 // markets an address has created
	seq       uint64                      // last committed event sequence

	journal        Journal
	now            func() time.Time
	maxQuestionLen int
}

// New creates an empty ledger that records to journal. A nil journal keeps
// events in memory only.
func New(journal Journal, opts ...Option) *Ledger {
	l := &Ledger{
		positions:      make(map[uint64]map[common.Address]*domain.Position),
		held:           make(map[common.Address][]uint64),
		created:        make(map[common.Address][]uint64),
		journal:        journal,
		now:            time.Now,
		maxQuestionLen: DefaultMaxQuestionLength,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time { return l.now().UTC() }

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket allocates a new market and returns the committed
// market_created event; its MarketID is the new market's ID. A zero resolver
// means the creator resolves.
func (l *Ledger) CreateMarket(ctx context.Context, creator common.Address, question string, deadline time.Time, resolver common.Address) (domain.Event, error) {
	question = strings.TrimSpace(question)
	switch {
	case creator == (common.Address{}):
		return domain.Event{}, fmt.Errorf("ledger.CreateMarket: creator: %w", domain.ErrInvalidAddress)
	case question == "":
		return domain.Event{}, fmt.Errorf("ledger.CreateMarket: %w", domain.ErrEmptyQuestion)
	case utf8.RuneCountInString(question) > l.maxQuestionLen:
		return domain.Event{}, fmt.Errorf("ledger.CreateMarket: %w (max %d)", domain.ErrQuestionTooLong, l.maxQuestionLen)
	}
	if resolver == (common.Address{}) {
		resolver = creator
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	if !deadline.After(now) {
		return domain.Event{}, fmt.Errorf("ledger.CreateMarket: %w", domain.ErrDeadlineNotFuture)
	}

	m := &domain.Market{
		ID:        uint64(len(l.markets)),
		Question:  question,
		Creator:   creator,
		Resolver:  resolver,
		CreatedAt: now,
		Deadline:  deadline.UTC(),
	}
	e := domain.NewMarketCreatedEvent(m)
	if err := l.commit(ctx, &e); err != nil {
		return domain.Event{}, fmt.Errorf("ledger.CreateMarket: %w", err)
	}
	return e, nil
}

// PlaceBet adds amount to the chosen side of a market and to the bettor's
// position.
func (l *Ledger) PlaceBet(ctx context.Context, bettor common.Address, marketID uint64, isYes bool, amount decimal.Decimal) (domain.Event, error) {
	switch {
	case bettor == (common.Address{}):
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: bettor: %w", domain.ErrInvalidAddress)
	case !amount.IsPositive():
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: %w", domain.ErrZeroStake)
	case !domain.HasWeiPrecision(amount):
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: %w", domain.ErrStakePrecision)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.market(marketID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: %w", err)
	}
	now := l.Now()
	if m.Resolved {
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: market %d: %w", marketID, domain.ErrMarketAlreadyResolved)
	}
	if !m.IsOpen(now) {
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: market %d: %w", marketID, domain.ErrMarketClosed)
	}

	e := domain.NewBetPlacedEvent(marketID, bettor, isYes, amount, now)
	if err := l.commit(ctx, &e); err != nil {
		return domain.Event{}, fmt.Errorf("ledger.PlaceBet: %w", err)
	}
	return e, nil
}

// ResolveMarket sets the terminal outcome. Only the market's resolver may call
// it, only once, and only after the deadline has passed.
func (l *Ledger) ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.market(marketID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: %w", err)
	}
	if caller != m.Resolver {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: market %d: %w", marketID, domain.ErrNotResolver)
	}
	if m.Resolved {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: market %d: %w", marketID, domain.ErrMarketAlreadyResolved)
	}
	if !outcome.IsTerminal() {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	now := l.Now()
	if now.Before(m.Deadline) {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: market %d: %w", marketID, domain.ErrBettingStillOpen)
	}

	e := domain.NewMarketResolvedEvent(marketID, caller, outcome, now)
	if err := l.commit(ctx, &e); err != nil {
		return domain.Event{}, fmt.Errorf("ledger.ResolveMarket: %w", err)
	}
	return e, nil
}

// ClaimWinnings settles the claimant's position on a resolved market. The
// returned event's Amount is the value transferred. Zero-value claims are
// rejected without marking the position claimed.
func (l *Ledger) ClaimWinnings(ctx context.Context, claimant common.Address, marketID uint64) (domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.market(marketID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: %w", err)
	}
	if !m.Resolved {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: market %d: %w", marketID, domain.ErrMarketNotResolved)
	}
	p := l.positions[marketID][claimant]
	if p == nil || p.IsEmpty() {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: market %d: %w", marketID, domain.ErrNoPosition)
	}
	if p.Claimed {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: market %d: %w", marketID, domain.ErrAlreadyClaimed)
	}
	amount := domain.ClaimAmount(m, p)
	if !amount.IsPositive() {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: market %d: %w", marketID, domain.ErrNothingToClaim)
	}

	e := domain.NewWinningsClaimedEvent(marketID, claimant, amount, l.Now())
	if err := l.commit(ctx, &e); err != nil {
		return domain.Event{}, fmt.Errorf("ledger.ClaimWinnings: %w", err)
	}
	return e, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Commit / apply (caller holds the write lock)
// ──────────────────────────────────────────────────────────────────────────────

func (l *Ledger) commit(ctx context.Context, e *domain.Event) error {
	e.Seq = l.seq + 1
	if l.journal == nil {
		return l.apply(e)
	}

	// The write must not be abandoned halfway because the caller went away.
	ctx = context.WithoutCancel(ctx)
	if err := l.journal.Append(ctx, e); err != nil {
		landed, syncErr := l.catchUp(ctx, e)
		switch {
		case landed:
			return nil
		case syncErr != nil:
			return errors.Join(fmt.Errorf("journal append: %w", err), syncErr)
		}
		return fmt.Errorf("journal append: %w", err)
	}
	return l.apply(e)
}

// catchUp applies every journal entry after l.seq. It reports whether e itself
// was among them, which means the failed Append was in fact recorded.
func (l *Ledger) catchUp(ctx context.Context, e *domain.Event) (bool, error) {
	tr, ok := l.journal.(TailReader)
	if !ok {
		return false, nil
	}
	landed := false
	for {
		tail, err := tr.LoadAfter(ctx, l.seq, tailBatch)
		if err != nil {
			return landed, fmt.Errorf("journal catch-up after seq %d: %w", l.seq, err)
		}
		for i := range tail {
			if err := l.apply(&tail[i]); err != nil {
				return landed, fmt.Errorf("journal catch-up: %w", err)
			}
			if tail[i].ID == e.ID {
				*e = tail[i]
				landed = true
			}
		}
		if len(tail) < tailBatch {
			return landed, nil
		}
	}
}

func (l *Ledger) apply(e *domain.Event) error {
	if e.Seq != l.seq+1 {
		return fmt.Errorf("event seq %d out of order (last %d)", e.Seq, l.seq)
	}

	switch e.Type {
	case domain.EventMarketCreated:
		if e.MarketID != uint64(len(l.markets)) {
			return fmt.Errorf("event %d: market id %d, expected %d", e.Seq, e.MarketID, len(l.markets))
		}
		l.markets = append(l.markets, &domain.Market{
			ID:        e.MarketID,
			Question:  e.Question,
			Creator:   e.Actor,
			Resolver:  e.Resolver,
			CreatedAt: e.OccurredAt,
			Deadline:  e.Deadline,
			YesPool:   decimal.Zero,
			NoPool:    decimal.Zero,
		})
		l.created[e.Actor] = append(l.created[e.Actor], e.MarketID)

	case domain.EventBetPlaced:
		m, err := l.market(e.MarketID)
		if err != nil {
			return fmt.Errorf("event %d: %w", e.Seq, err)
		}
		if e.IsYes {
			m.YesPool = m.YesPool.Add(e.Amount)
		} else {
			m.NoPool = m.NoPool.Add(e.Amount)
		}
		byHolder := l.positions[e.MarketID]
		if byHolder == nil {
			byHolder = make(map[common.Address]*domain.Position)
			l.positions[e.MarketID] = byHolder
		}
		p := byHolder[e.Actor]
		if p == nil {
			p = &domain.Position{YesAmount: decimal.Zero, NoAmount: decimal.Zero}
			byHolder[e.Actor] = p
			l.held[e.Actor] = append(l.held[e.Actor], e.MarketID)
		}
		if e.IsYes {
			p.YesAmount = p.YesAmount.Add(e.Amount)
		} else {
			p.NoAmount = p.NoAmount.Add(e.Amount)
		}

	case domain.EventMarketResolved:
		m, err := l.market(e.MarketID)
		if err != nil {
			return fmt.Errorf("event %d: %w", e.Seq, err)
		}
		m.Outcome = e.Outcome
		m.Resolved = true

	case domain.EventWinningsClaimed:
		p := l.positions[e.MarketID][e.Actor]
		if p == nil {
			return fmt.Errorf("event %d: claim without position", e.Seq)
		}
		p.Claimed = true

	default:
		return fmt.Errorf("event %d: unknown type %q", e.Seq, e.Type)
	}

	l.seq = e.Seq
	return nil
}

func (l *Ledger) market(id uint64) (*domain.Market, error) {
	if id >= uint64(len(l.markets)) {
		return nil, fmt.Errorf("market %d: %w", id, domain.ErrMarketNotFound)
	}
	return l.markets[id], nil
}

// Replay applies journaled events, which must continue gap-free from
// LastSeq. The server replays the whole journal at startup; the backoffice
// replica replays each new tail. It bypasses the journal.
func (l *Ledger) Replay(events []domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	for i := range events {
		if err := l.apply(&events[i]); err != nil {
			return fmt.Errorf("ledger.Replay: %w", err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Views (read lock only, return copies)
// ──────────────────────────────────────────────────────────────────────────────

// LastSeq returns the sequence number of the last committed event.
func (l *Ledger) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// NextMarketID returns the ID the next created market will receive.
func (l *Ledger) NextMarketID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.markets))
}

// GetMarket returns a snapshot of the market.
func (l *Ledger) GetMarket(id uint64) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.market(id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("ledger.GetMarket: %w", err)
	}
	return *m, nil
}

// GetMarketMeta returns question, creator, resolver and creation time.
func (l *Ledger) GetMarketMeta(id uint64) (domain.MarketMeta, error) {
	m, err := l.GetMarket(id)
	if err != nil {
		return domain.MarketMeta{}, err
	}
	return m.Meta(), nil
}

// GetMarketPools returns pools, outcome, resolution flag and deadline.
func (l *Ledger) GetMarketPools(id uint64) (domain.MarketPools, error) {
	m, err := l.GetMarket(id)
	if err != nil {
		return domain.MarketPools{}, err
	}
	return m.Pools(), nil
}

// GetOdds returns the current split in basis points.
func (l *Ledger) GetOdds(id uint64) (domain.Odds, error) {
	m, err := l.GetMarket(id)
	if err != nil {
		return domain.Odds{}, err
	}
	return m.Odds(), nil
}

// GetUserPosition returns holder's position. An address that never bet gets
// a zero position.
func (l *Ledger) GetUserPosition(id uint64, holder common.Address) (domain.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, err := l.market(id); err != nil {
		return domain.Position{}, fmt.Errorf("ledger.GetUserPosition: %w", err)
	}
	if p := l.positions[id][holder]; p != nil {
		return *p, nil
	}
	return domain.Position{YesAmount: decimal.Zero, NoAmount: decimal.Zero}, nil
}

// GetPositionView returns holder's position together with what a claim would
// pay right now.
func (l *Ledger) GetPositionView(id uint64, holder common.Address) (domain.PositionView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.market(id)
	if err != nil {
		return domain.PositionView{}, fmt.Errorf("ledger.GetPositionView: %w", err)
	}
	v := domain.PositionView{
		MarketID:  id,
		Holder:    holder,
		YesAmount: decimal.Zero,
		NoAmount:  decimal.Zero,
		Claimable: decimal.Zero,
	}
	if p := l.positions[id][holder]; p != nil {
		v.YesAmount, v.NoAmount, v.Claimed = p.YesAmount, p.NoAmount, p.Claimed
		if !p.Claimed {
			v.Claimable = domain.ClaimAmount(m, p)
		}
	}
	return v, nil
}

// GetUserMarkets returns the IDs of markets holder has bet on, in first-bet
// order.
func (l *Ledger) GetUserMarkets(holder common.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]uint64{}, l.held[holder]...)
}

// GetCreatedMarkets returns the IDs of markets creator has created.
func (l *Ledger) GetCreatedMarkets(creator common.Address) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]uint64{}, l.created[creator]...)
}

// CalculatePayout previews the value of a hypothetical stake without changing
// state.
func (l *Ledger) CalculatePayout(id uint64, isYes bool, bet decimal.Decimal) (decimal.Decimal, error) {
	if bet.IsNegative() {
		return decimal.Zero, fmt.Errorf("ledger.CalculatePayout: %w", domain.ErrZeroStake)
	}
	m, err := l.GetMarket(id)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.PreviewPayout(&m, isYes, bet), nil
}

// ListMarkets returns a page of market snapshots, newest first, and the total
// number of markets.
func (l *Ledger) ListMarkets(offset, limit int) ([]domain.Market, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.markets)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []domain.Market{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.Market, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, *l.markets[total-1-i])
	}
	return out, total
}

// MarketsClosedBetween returns unresolved markets whose deadline falls in
// (from, to].
func (l *Ledger) MarketsClosedBetween(from, to time.Time) []domain.Market {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Market
	for _, m := range l.markets {
		if !m.Resolved && m.Deadline.After(from) && !m.Deadline.After(to) {
			out = append(out, *m)
		}
	}
	return out
}
