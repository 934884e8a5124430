package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/shopspring/decimal"
)

// TestConcurrentBetsConservePools fires bets from many goroutines at one
// market; the pools must equal the sum of accepted stakes exactly.
func TestConcurrentBetsConservePools(t *testing.T) {
	const workers = 50
	const stakeEach = 10 // CELO per bet

	svc, _, clk := newService(t)
	ctx := context.Background()
	id := createMarket(t, svc, clk.Now().Add(time.Hour))

	var failed int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bettor := common.HexToAddress(fmt.Sprintf("0x%040x", i+1))
			if _, err := svc.PlaceBet(ctx, bettor, id, i%2 == 0, decimal.NewFromInt(stakeEach)); err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}(i)
	}
	wg.Wait()

	if failed > 0 {
		t.Errorf("expected 0 failed bets, got %d", failed)
	}
	pools, err := svc.GetMarketPools(id)
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.NewFromInt(workers * stakeEach)
	if !pools.TotalPool.Equal(want) {
		t.Errorf("total pool = %s, want %s", pools.TotalPool, want)
	}
}

// TestConcurrentClaimPaysOnce races N claims by the same winner: exactly one
// must transfer, the rest must see ErrAlreadyClaimed.
func TestConcurrentClaimPaysOnce(t *testing.T) {
	const workers = 20

	svc, _, clk := newService(t)
	ctx := context.Background()
	id := createMarket(t, svc, clk.Now().Add(time.Hour))
	mustBet(t, svc, alice, id, true, "10")
	mustBet(t, svc, bob, id, false, "30")
	clk.Advance(time.Hour)
	if _, err := svc.ResolveMarket(ctx, creator, id, domain.OutcomeYes); err != nil {
		t.Fatal(err)
	}

	var wins, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimWinnings(ctx, alice, id)
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case domain.IsConflict(err):
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly 1 claim should succeed, got %d", wins)
	}
	if rejected != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, rejected)
	}
}
