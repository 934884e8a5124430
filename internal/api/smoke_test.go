// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require PostgreSQL or Redis; the journal and nonce store
// are the in-memory implementations. They verify:
//   - Gin router routing and middleware wiring
//   - Wallet login (nonce → personal_sign → JWT)
//   - Error mapping (400 / 401 / 403 / 404 / 409) in the standard envelope
//   - The ABI calldata endpoints
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/evetabi/predict/internal/api"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/contract"
	"github.com/evetabi/predict/internal/ledger"
	"github.com/evetabi/predict/internal/repository"
	"github.com/evetabi/predict/internal/service"
	"github.com/stretchr/testify/require"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

type testEnv struct {
	h     http.Handler
	codec *contract.Codec
}

func testCfg() *config.Config {
	cfg := config.Defaults()
	cfg.JWT.AccessSecret = "test-access-secret-abcdefghijklmnop"
	cfg.Server.RateLimitRPS = 1000
	return &cfg
}

func buildTestRouter(t *testing.T) *testEnv {
	t.Helper()
	cfg := testCfg()
	journal := repository.NewMemoryJournal()
	l := ledger.New(journal)
	marketSvc := service.NewMarketService(l, journal, nil)
	authSvc := service.NewAuthService(repository.NewMemoryNonceStore(), cfg)
	codec, err := contract.NewCodec()
	require.NoError(t, err)

	r := api.SetupRouter(api.RouterDeps{
		AuthSvc:   authSvc,
		MarketSvc: marketSvc,
		Executor:  contract.NewExecutor(marketSvc, codec),
		Hub:       nil,
		Cfg:       cfg,
	})
	return &testEnv{h: r, codec: codec}
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v, body: %s", err, rr.Body.String())
	}
	return m
}

func data(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, rr)
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data object in %v", body)
	return d
}

// login runs the nonce/sign/login flow for a fresh key and returns the
// Authorization header and the wallet address.
func login(t *testing.T, h http.Handler) (map[string]string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	rr := do(t, h, http.MethodPost, "/api/auth/nonce", fmt.Sprintf(`{"address":%q}`, addr.Hex()), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	msg := data(t, rr)["message"].(string)

	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	payload := fmt.Sprintf(`{"address":%q,"signature":%q}`, addr.Hex(), hexutil.Encode(sig))
	rr = do(t, h, http.MethodPost, "/api/auth/login", payload, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token := data(t, rr)["access_token"].(string)
	return map[string]string{"Authorization": "Bearer " + token}, addr
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	env := buildTestRouter(t)
	rr := do(t, env.h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

// ── Auth endpoints ────────────────────────────────────────────────────────────

func TestNonce_MissingFields(t *testing.T) {
	env := buildTestRouter(t)
	rr := do(t, env.h, http.MethodPost, "/api/auth/nonce", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/nonce empty body = %d, want 400", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false {
		t.Errorf("response.success should be false on error, got %v", body["success"])
	}
	if body["code"] == nil {
		t.Errorf("error envelope missing 'code', got: %v", body)
	}
}

func TestNonce_InvalidAddress(t *testing.T) {
	env := buildTestRouter(t)
	rr := do(t, env.h, http.MethodPost, "/api/auth/nonce", `{"address":"bob"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "ERR_INVALID_ADDRESS", decodeBody(t, rr)["code"])
}

func TestLogin_WithoutNonce_Returns403(t *testing.T) {
	env := buildTestRouter(t)
	payload := `{"address":"0x00000000000000000000000000000000000000a1","signature":"0x00"}`
	rr := do(t, env.h, http.MethodPost, "/api/auth/login", payload, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "ERR_NONCE_INVALID", decodeBody(t, rr)["code"])
}

func TestLogin_ThenMe(t *testing.T) {
	env := buildTestRouter(t)
	auth, addr := login(t, env.h)

	rr := do(t, env.h, http.MethodGet, "/api/me", "", auth)
	require.Equal(t, http.StatusOK, rr.Code)
	d := data(t, rr)
	require.True(t, strings.EqualFold(addr.Hex(), d["address"].(string)))
	require.Equal(t, service.RoleUser, d["role"])
}

// ── JWT auth middleware ───────────────────────────────────────────────────────

func TestProtectedRoutes_NoToken_Return401(t *testing.T) {
	env := buildTestRouter(t)
	for _, path := range []string{"/api/markets", "/api/markets/0/bets", "/api/markets/0/resolve", "/api/markets/0/claim", "/api/rpc/send"} {
		rr := do(t, env.h, http.MethodPost, path, `{}`, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("POST %s without token = %d, want 401", path, rr.Code)
		}
	}
}

func TestMe_InvalidToken_Returns401(t *testing.T) {
	env := buildTestRouter(t)
	rr := do(t, env.h, http.MethodGet, "/api/me", "", map[string]string{
		"Authorization": "Bearer not.a.valid.jwt",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me with bad JWT = %d, want 401", rr.Code)
	}
}

// ── Market lifecycle over HTTP ────────────────────────────────────────────────

func TestMarketLifecycle(t *testing.T) {
	env := buildTestRouter(t)
	creatorAuth, _ := login(t, env.h)
	bettorAuth, bettor := login(t, env.h)

	deadline := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rr := do(t, env.h, http.MethodPost, "/api/markets",
		fmt.Sprintf(`{"question":"Will it rain?","deadline":%q}`, deadline), creatorAuth)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, env.h, http.MethodPost, "/api/markets/0/bets", `{"side":"yes","amount":"10"}`, bettorAuth)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, env.h, http.MethodGet, "/api/markets/0/pools", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "10", data(t, rr)["yes_pool"])

	rr = do(t, env.h, http.MethodGet, "/api/markets/0/payout?side=no&amount=10", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "19.8", data(t, rr)["payout"])

	rr = do(t, env.h, http.MethodGet, "/api/markets/0/positions/"+bettor.Hex(), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "10", data(t, rr)["yes_amount"])

	// Resolving before the deadline is a state conflict.
	rr = do(t, env.h, http.MethodPost, "/api/markets/0/resolve", `{"outcome":"yes"}`, creatorAuth)
	require.Equal(t, http.StatusConflict, rr.Code)

	// Only the resolver may resolve.
	rr = do(t, env.h, http.MethodPost, "/api/markets/0/resolve", `{"outcome":"yes"}`, bettorAuth)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "ERR_NOT_RESOLVER", decodeBody(t, rr)["code"])

	rr = do(t, env.h, http.MethodPost, "/api/markets/0/claim", "", bettorAuth)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, env.h, http.MethodGet, "/api/markets/0/history", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody(t, rr)["data"], 2)

	rr = do(t, env.h, http.MethodGet, "/api/markets/0/history?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]interface{})
	require.Equal(t, true, meta["has_more"])
	require.NotContains(t, meta, "total")

	for _, path := range []string{
		"/api/markets?page=9223372036854775807",
		"/api/markets/0/history?page=9223372036854775807",
		"/api/users/" + bettor.Hex() + "/activity?page=9223372036854775807",
	} {
		rr = do(t, env.h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		require.Empty(t, decodeBody(t, rr)["data"], path)
	}

	rr = do(t, env.h, http.MethodGet, "/api/users/"+bettor.Hex()+"/markets", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, data(t, rr)["market_ids"], 1)
}

func TestMarket_Validation(t *testing.T) {
	env := buildTestRouter(t)
	auth, _ := login(t, env.h)

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rr := do(t, env.h, http.MethodPost, "/api/markets", fmt.Sprintf(`{"question":"Q?","deadline":%q}`, past), auth)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "ERR_DEADLINE_NOT_FUTURE", decodeBody(t, rr)["code"])

	rr = do(t, env.h, http.MethodPost, "/api/markets/0/bets", `{"side":"maybe","amount":"1"}`, auth)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, env.h, http.MethodGet, "/api/markets/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, env.h, http.MethodGet, "/api/markets/7", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "ERR_MARKET_NOT_FOUND", decodeBody(t, rr)["code"])
}

func TestMarkets_ArePublic(t *testing.T) {
	env := buildTestRouter(t)
	for _, path := range []string{"/api/markets", "/api/markets/next-id"} {
		rr := do(t, env.h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}

// ── ABI calldata endpoints ────────────────────────────────────────────────────

func TestRPC_CallAndSend(t *testing.T) {
	env := buildTestRouter(t)
	auth, _ := login(t, env.h)

	calldata, err := env.codec.Pack(contract.MethodNextMarketID)
	require.NoError(t, err)
	rr := do(t, env.h, http.MethodPost, "/api/rpc/call", fmt.Sprintf(`{"data":%q}`, hexutil.Encode(calldata)), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	out, err := hexutil.Decode(data(t, rr)["result"].(string))
	require.NoError(t, err)
	vals, err := env.codec.DecodeOutputs(contract.MethodNextMarketID, out)
	require.NoError(t, err)
	require.Equal(t, "0", fmt.Sprint(vals[0]))

	// createMarket is not payable.
	calldata, err = env.codec.Pack(contract.MethodCreateMarket, "Q?", bigUnix(time.Now().Add(time.Hour)), common.Address{})
	require.NoError(t, err)
	rr = do(t, env.h, http.MethodPost, "/api/rpc/send",
		fmt.Sprintf(`{"data":%q,"value":"1"}`, hexutil.Encode(calldata)), auth)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "ERR_NOT_PAYABLE", decodeBody(t, rr)["code"])

	rr = do(t, env.h, http.MethodPost, "/api/rpc/send", fmt.Sprintf(`{"data":%q}`, hexutil.Encode(calldata)), auth)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, env.h, http.MethodPost, "/api/rpc/call", `{"data":"0xdeadbeef"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	env := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Errorf("OPTIONS /api/auth/login = %d, want 204 or 200", rr.Code)
	}
	allow := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	env := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Dev CORS origin = %q, want *", origin)
	}
}

func bigUnix(t time.Time) *big.Int { return big.NewInt(t.Unix()) }
