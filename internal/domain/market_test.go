package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Market pool math ──────────────────────────────────────────────────────────

func TestMarket_TotalPool(t *testing.T) {
	m := &domain.Market{YesPool: dec("10"), NoPool: dec("30")}
	if want := dec("40"); !m.TotalPool().Equal(want) {
		t.Errorf("TotalPool() = %s, want %s", m.TotalPool(), want)
	}
}

func TestMarket_WinningAndLosingPool(t *testing.T) {
	m := &domain.Market{YesPool: dec("10"), NoPool: dec("30"), Resolved: true, Outcome: domain.OutcomeNo}
	if !m.WinningPool().Equal(dec("30")) || !m.LosingPool().Equal(dec("10")) {
		t.Errorf("winning=%s losing=%s, want 30/10", m.WinningPool(), m.LosingPool())
	}

	m.Outcome = domain.OutcomeInvalid
	if !m.WinningPool().IsZero() || !m.LosingPool().IsZero() {
		t.Errorf("Invalid market should have no winning/losing pool")
	}
}

func TestMarket_IsOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Market{Deadline: now.Add(time.Hour)}

	if !m.IsOpen(now) {
		t.Error("market should be open before deadline")
	}
	if m.IsOpen(m.Deadline) {
		t.Error("market must be closed exactly at the deadline")
	}
	m.Resolved = true
	if m.IsOpen(now) {
		t.Error("resolved market must never be open")
	}
}

func TestMarket_IsRefund(t *testing.T) {
	cases := []struct {
		name string
		m    domain.Market
		want bool
	}{
		{"unresolved", domain.Market{YesPool: dec("1")}, false},
		{"invalid", domain.Market{YesPool: dec("1"), Resolved: true, Outcome: domain.OutcomeInvalid}, true},
		{"yes wins with stakers", domain.Market{YesPool: dec("1"), NoPool: dec("2"), Resolved: true, Outcome: domain.OutcomeYes}, false},
		{"yes wins without stakers", domain.Market{NoPool: dec("2"), Resolved: true, Outcome: domain.OutcomeYes}, true},
	}
	for _, tc := range cases {
		if got := tc.m.IsRefund(); got != tc.want {
			t.Errorf("%s: IsRefund() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMarket_ProtocolFee(t *testing.T) {
	m := &domain.Market{YesPool: dec("10"), NoPool: dec("30")}
	if !m.ProtocolFee().IsZero() {
		t.Errorf("unresolved market fee = %s, want 0", m.ProtocolFee())
	}
	m.Resolved, m.Outcome = true, domain.OutcomeYes
	if want := dec("0.6"); !m.ProtocolFee().Equal(want) {
		t.Errorf("ProtocolFee() = %s, want %s", m.ProtocolFee(), want)
	}
	m.Outcome = domain.OutcomeInvalid
	if !m.ProtocolFee().IsZero() {
		t.Errorf("Invalid market must be fee-free, got %s", m.ProtocolFee())
	}
}

func TestMarket_ToSummary_TimeLeft(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Market{
		ID:       7,
		Creator:  common.HexToAddress("0x01"),
		Deadline: now.Add(90 * time.Second),
		YesPool:  dec("3"),
		NoPool:   dec("1"),
	}
	s := m.ToSummary(now)
	if s.TimeLeftSec != 90 {
		t.Errorf("TimeLeftSec = %d, want 90", s.TimeLeftSec)
	}
	if s.Outcome != "Unresolved" {
		t.Errorf("Outcome = %q, want Unresolved", s.Outcome)
	}
	if s.Odds.YesBps != 7500 || s.Odds.NoBps != 2500 {
		t.Errorf("Odds = %+v, want 7500/2500", s.Odds)
	}
	if s2 := m.ToSummary(now.Add(time.Hour)); s2.TimeLeftSec != 0 {
		t.Errorf("TimeLeftSec after deadline = %d, want 0", s2.TimeLeftSec)
	}
}

// ── Outcome ───────────────────────────────────────────────────────────────────

func TestOutcome_ParseAndString(t *testing.T) {
	for _, o := range []domain.Outcome{domain.OutcomeYes, domain.OutcomeNo, domain.OutcomeInvalid} {
		got, ok := domain.ParseOutcome(o.String())
		if !ok || got != o {
			t.Errorf("ParseOutcome(%q) = %v,%v", o.String(), got, ok)
		}
		if !o.IsTerminal() {
			t.Errorf("%s should be terminal", o)
		}
	}
	if got, ok := domain.ParseOutcome("yes"); !ok || got != domain.OutcomeYes {
		t.Errorf("ParseOutcome is case-insensitive, got %v,%v", got, ok)
	}
	if _, ok := domain.ParseOutcome("maybe"); ok {
		t.Error("ParseOutcome(maybe) should fail")
	}
	if domain.OutcomeUnresolved.IsTerminal() {
		t.Error("Unresolved must not be terminal")
	}
	if domain.Outcome(9).String() != "Unknown" {
		t.Errorf("out-of-range outcome String() = %q", domain.Outcome(9).String())
	}
}

// ── Errors ────────────────────────────────────────────────────────────────────

func TestErrors_Categories(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
		name string
	}{
		{domain.ErrEmptyQuestion, domain.IsValidation, "validation"},
		{domain.ErrZeroStake, domain.IsValidation, "validation"},
		{domain.ErrNotResolver, domain.IsAuthorization, "authorization"},
		{domain.ErrMarketClosed, domain.IsState, "state"},
		{domain.ErrAlreadyClaimed, domain.IsState, "state"},
		{domain.ErrMarketNotFound, domain.IsNotFound, "not found"},
	}
	for _, tc := range cases {
		wrapped := errors.Join(errors.New("ctx"), tc.err)
		if !tc.pred(wrapped) {
			t.Errorf("%v should be a %s error", tc.err, tc.name)
		}
		if !domain.IsLedgerError(wrapped) {
			t.Errorf("%v should be a ledger error", tc.err)
		}
	}
	if domain.IsValidation(domain.ErrMarketClosed) {
		t.Error("state error must not match validation")
	}
	if !domain.IsConflict(domain.ErrMarketAlreadyResolved) || domain.IsConflict(domain.ErrMarketClosed) {
		t.Error("IsConflict mismatch")
	}
}
