package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/ledger"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.now }

func (c *clock) Advance(d time.Duration) { c.mu.Lock(); c.now = c.now.Add(d); c.mu.Unlock() }

type captured struct {
	mu     sync.Mutex
	closed []uint64
}

func (c *captured) BroadcastMarketClosed(m domain.MarketSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, m.ID)
}

type panickingSource struct{ now time.Time }

func (p panickingSource) MarketsClosedBetween(_, _ time.Time) []domain.Market { panic("boom") }

func (p panickingSource) Now() time.Time { return p.now }

func TestAnnounceClosed_EachMarketOnce(t *testing.T) {
	clk := &clock{now: time.Unix(1_800_000_000, 0).UTC()}
	l := ledger.New(nil, ledger.WithClock(clk.Now))
	ctx := context.Background()
	creator := common.HexToAddress("0xC1")

	_, err := l.CreateMarket(ctx, creator, "A?", clk.Now().Add(time.Minute), common.Address{})
	require.NoError(t, err)
	_, err = l.CreateMarket(ctx, creator, "B?", clk.Now().Add(time.Hour), common.Address{})
	require.NoError(t, err)

	sink := &captured{}
	s := NewScheduler(l, sink, time.Second, nil)
	s.lastTick = clk.Now()

	s.announceClosed()
	require.Empty(t, sink.closed)

	clk.Advance(2 * time.Minute)
	s.announceClosed()
	require.Equal(t, []uint64{0}, sink.closed)

	clk.Advance(time.Minute)
	s.announceClosed()
	require.Equal(t, []uint64{0}, sink.closed, "a closed market is announced once")

	clk.Advance(time.Hour)
	s.announceClosed()
	require.Equal(t, []uint64{0, 1}, sink.closed)
}

func TestAnnounceClosed_RecoversPanic(t *testing.T) {
	s := NewScheduler(panickingSource{now: time.Now()}, nil, time.Second, nil)
	require.NotPanics(t, s.announceClosed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	clk := &clock{now: time.Now()}
	s := NewScheduler(ledger.New(nil, ledger.WithClock(clk.Now)), nil, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
