package backoffice_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/evetabi/predict/internal/backoffice"
	"github.com/evetabi/predict/internal/config"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/ledger"
	"github.com/evetabi/predict/internal/repository"
	"github.com/evetabi/predict/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	creator = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000B1")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time { c.mu.Lock(); defer c.mu.Unlock(); return c.now }

func (c *clock) Advance(d time.Duration) { c.mu.Lock(); c.now = c.now.Add(d); c.mu.Unlock() }

// primary builds a ledger writing to a shared in-memory journal and runs one
// market through resolution.
func primary(t *testing.T) (*ledger.Ledger, *repository.MemoryJournal, *clock) {
	t.Helper()
	clk := &clock{now: time.Now().Add(-48 * time.Hour).UTC()}
	journal := repository.NewMemoryJournal()
	l := ledger.New(journal, ledger.WithClock(clk.Now))
	ctx := context.Background()

	_, err := l.CreateMarket(ctx, creator, "Will it rain?", clk.Now().Add(time.Hour), common.Address{})
	require.NoError(t, err)
	_, err = l.PlaceBet(ctx, alice, 0, true, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = l.PlaceBet(ctx, bob, 0, false, decimal.NewFromInt(30))
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = l.ResolveMarket(ctx, creator, 0, domain.OutcomeYes)
	require.NoError(t, err)
	return l, journal, clk
}

func TestReplica_FollowsJournal(t *testing.T) {
	l, journal, clk := primary(t)
	replica := backoffice.NewReplica(journal, time.Second, nil)

	n, err := replica.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, l.LastSeq(), replica.LastSeq())

	_, err = l.CreateMarket(context.Background(), creator, "Second?", clk.Now().Add(time.Hour), common.Address{})
	require.NoError(t, err)

	n, err = replica.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the tail is replayed")

	m, err := replica.Ledger().GetMarket(0)
	require.NoError(t, err)
	require.True(t, m.Resolved)
	require.True(t, m.ProtocolFee().Equal(decimal.RequireFromString("0.6")))
	require.NoError(t, replica.LastError())
	require.False(t, replica.LastSynced().IsZero())
}

// login runs the wallet sign-in flow for key and returns the access token.
func login(t *testing.T, auth *service.AuthService, key *ecdsa.PrivateKey) string {
	t.Helper()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	ch, err := auth.IssueNonce(context.Background(), addr.Hex())
	require.NoError(t, err)
	sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
	require.NoError(t, err)
	resp, err := auth.Login(context.Background(), addr.Hex(), hexutil.Encode(sig))
	require.NoError(t, err)
	return resp.AccessToken
}

func TestRouter_RequiresAdmin(t *testing.T) {
	_, journal, _ := primary(t)
	replica := backoffice.NewReplica(journal, time.Second, nil)
	_, err := replica.Sync(context.Background())
	require.NoError(t, err)

	adminKey, _ := crypto.GenerateKey()
	userKey, _ := crypto.GenerateKey()
	adminAddr := crypto.PubkeyToAddress(adminKey.PublicKey)

	cfg := config.Defaults()
	cfg.JWT.AccessSecret = "backoffice-test-secret"
	cfg.JWT.AdminAddresses = []string{adminAddr.Hex()}
	auth := service.NewAuthService(repository.NewMemoryNonceStore(), &cfg)

	r := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc: auth, Replica: replica, Events: journal, Cfg: &cfg,
	})

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusUnauthorized, get("/admin/dashboard", "").Code)

	userToken := login(t, auth, userKey)
	require.Equal(t, http.StatusForbidden, get("/admin/dashboard", userToken).Code)

	token := login(t, auth, adminKey)
	rr := get("/admin/dashboard", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Data struct {
			Markets      map[string]int  `json:"markets"`
			ProtocolFees decimal.Decimal `json:"protocol_fees"`
			TotalStaked  decimal.Decimal `json:"total_staked"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 1, body.Data.Markets["resolved"])
	require.True(t, body.Data.ProtocolFees.Equal(decimal.RequireFromString("0.6")))
	require.True(t, body.Data.TotalStaked.Equal(decimal.NewFromInt(40)))

	require.Equal(t, http.StatusOK, get("/admin/markets?status=resolved", token).Code)
	require.Equal(t, http.StatusBadRequest, get("/admin/markets?status=weird", token).Code)
	require.Equal(t, http.StatusNotFound, get("/admin/markets/9", token).Code)
	require.Equal(t, http.StatusOK, get("/admin/markets/0/events", token).Code)
	require.Equal(t, http.StatusOK, get("/admin/users/"+alice.Hex(), token).Code)
	require.Equal(t, http.StatusOK, get("/admin/users/"+alice.Hex()+"/events", token).Code)
	require.Equal(t, http.StatusOK, get("/admin/risk/live", token).Code)
	require.Equal(t, http.StatusOK, get("/admin/risk/stale", token).Code)
	require.Equal(t, http.StatusOK, get("/admin/finance/fees", token).Code)
}

func TestRouter_EventPagesAndHugePage(t *testing.T) {
	_, journal, _ := primary(t) // market 0: create, two bets, resolve
	replica := backoffice.NewReplica(journal, time.Second, nil)
	_, err := replica.Sync(context.Background())
	require.NoError(t, err)

	adminKey, _ := crypto.GenerateKey()
	cfg := config.Defaults()
	cfg.JWT.AccessSecret = "backoffice-test-secret"
	cfg.JWT.AdminAddresses = []string{crypto.PubkeyToAddress(adminKey.PublicKey).Hex()}
	auth := service.NewAuthService(repository.NewMemoryNonceStore(), &cfg)
	r := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc: auth, Replica: replica, Events: journal, Cfg: &cfg,
	})
	token := login(t, auth, adminKey)

	type page struct {
		Data []json.RawMessage `json:"data"`
		Meta struct {
			Total   *int `json:"total"`
			HasMore bool `json:"has_more"`
		} `json:"meta"`
	}
	get := func(path string) page {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "%s: %s", path, rr.Body.String())
		var p page
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		return p
	}

	p := get("/admin/markets/0/events?limit=3")
	require.Len(t, p.Data, 3)
	require.True(t, p.Meta.HasMore)
	require.Nil(t, p.Meta.Total, "event pages do not claim a total")

	p = get("/admin/markets/0/events?limit=3&page=2")
	require.Len(t, p.Data, 1)
	require.False(t, p.Meta.HasMore)

	huge := "9223372036854775807"
	require.Empty(t, get("/admin/markets?page="+huge).Data)
	require.Empty(t, get("/admin/markets/0/events?page="+huge).Data)
	require.Empty(t, get("/admin/users/"+alice.Hex()+"/events?page="+huge).Data)
}
