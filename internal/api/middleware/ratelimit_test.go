package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func limitsAt(rps int) (*callerLimits, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	cl := newCallerLimits(rps)
	cl.now = clk.now
	return cl, clk
}

func TestCallerLimits_BurstThenRefill(t *testing.T) {
	cl, clk := limitsAt(10)

	for i := 0; i < 10; i++ {
		if !cl.spend("k") {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if cl.spend("k") {
		t.Fatal("request beyond burst should be rejected")
	}
	if !cl.spend("other") {
		t.Fatal("allowances must be per caller")
	}

	clk.t = clk.t.Add(200 * time.Millisecond) // two tokens at 10/s
	if !cl.spend("k") || !cl.spend("k") {
		t.Fatal("allowance should refill over time")
	}
	if cl.spend("k") {
		t.Fatal("refill must be proportional to elapsed time")
	}
}

func TestCallerLimits_ForgetIdle(t *testing.T) {
	cl, clk := limitsAt(5)
	cl.spend("old")
	clk.t = clk.t.Add(time.Hour)
	cl.spend("new")

	if n := cl.forgetIdle(); n != 1 {
		t.Fatalf("forgetIdle removed %d callers, want 1", n)
	}
	if _, ok := cl.byCaller["old"]; ok {
		t.Error("idle caller kept")
	}
	if _, ok := cl.byCaller["new"]; !ok {
		t.Error("active caller dropped")
	}
}

func TestCallerLimits_KeysByAddressAfterAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cl, _ := limitsAt(1) // burst 10

	wallet := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	r := gin.New()
	r.GET("/anon", cl.handle, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/authed", func(c *gin.Context) { c.Set(CtxAddress, wallet) }, cl.handle,
		func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(path string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.1:4000"
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 10; i++ {
		if code := hit("/authed"); code != http.StatusOK {
			t.Fatalf("authed request %d = %d", i, code)
		}
	}
	if code := hit("/authed"); code != http.StatusTooManyRequests {
		t.Fatalf("authed request beyond burst = %d, want 429", code)
	}
	if code := hit("/anon"); code != http.StatusOK {
		t.Fatalf("same IP without a wallet = %d, want its own allowance", code)
	}
	if _, ok := cl.byCaller["addr:"+wallet.Hex()]; !ok {
		t.Error("authenticated caller not keyed by address")
	}
}
