package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-caller rate limiting
// ──────────────────────────────────────────────────────────────────────────────

const (
	minBurst      = 10
	sweepInterval = 5 * time.Minute
	idleAfter     = 10 * time.Minute
)

// allowance is the request budget left to one caller.
type allowance struct {
	tokens float64
	seen   time.Time
}

// callerLimits meters requests per caller. The caller is the wallet address
// set by JWTMiddleware when it ran before this middleware, the client IP
// otherwise.
type callerLimits struct {
	perSecond float64
	burst     float64
	now       func() time.Time

	mu       sync.Mutex
	byCaller map[string]*allowance
}

func newCallerLimits(rps int) *callerLimits {
	burst := float64(rps)
	if burst < minBurst {
		burst = minBurst
	}
	return &callerLimits{
		perSecond: float64(rps),
		burst:     burst,
		now:       time.Now,
		byCaller:  make(map[string]*allowance),
	}
}

// caller identifies who c is acting as.
func (cl *callerLimits) caller(c *gin.Context) string {
	if addr, ok := GetAddress(c); ok {
		return "addr:" + addr.Hex()
	}
	return "ip:" + c.ClientIP()
}

// spend takes one request from the caller's allowance, refilled at perSecond
// up to burst. It reports false when nothing is left.
func (cl *callerLimits) spend(caller string) bool {
	now := cl.now()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	a, ok := cl.byCaller[caller]
	if !ok {
		a = &allowance{tokens: cl.burst, seen: now}
		cl.byCaller[caller] = a
	}
	a.tokens = min(cl.burst, a.tokens+now.Sub(a.seen).Seconds()*cl.perSecond)
	a.seen = now

	if a.tokens < 1 {
		return false
	}
	a.tokens--
	return true
}

// forgetIdle drops callers not seen for idleAfter and returns how many went.
func (cl *callerLimits) forgetIdle() int {
	cutoff := cl.now().Add(-idleAfter)

	cl.mu.Lock()
	defer cl.mu.Unlock()
	n := 0
	for caller, a := range cl.byCaller {
		if a.seen.Before(cutoff) {
			delete(cl.byCaller, caller)
			n++
		}
	}
	return n
}

func (cl *callerLimits) handle(c *gin.Context) {
	if !cl.spend(cl.caller(c)) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "too many requests, please slow down",
			"code":    "ERR_RATE_LIMITED",
		})
		return
	}
	c.Next()
}

// RateLimitMiddleware allows each caller rps requests per second with a burst
// of at least 10, answering 429 ERR_RATE_LIMITED beyond that. Place it after
// JWTMiddleware to meter by wallet address.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	cl := newCallerLimits(rps)
	go func() {
		for range time.Tick(sweepInterval) {
			cl.forgetIdle()
		}
	}()
	return cl.handle
}
