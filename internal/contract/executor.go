package contract

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/evetabi/predict/internal/units"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Backend is the subset of the market service the executor drives. Declared
// here so the service package does not need to know about ABI encoding.
type Backend interface {
	CreateMarket(ctx context.Context, creator common.Address, question string, deadline time.Time, resolver common.Address) (domain.Event, error)
	PlaceBet(ctx context.Context, bettor common.Address, marketID uint64, isYes bool, amount decimal.Decimal) (domain.Event, error)
	ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome) (domain.Event, error)
	ClaimWinnings(ctx context.Context, claimant common.Address, marketID uint64) (domain.Event, error)

	NextMarketID() uint64
	GetMarketMeta(id uint64) (domain.MarketMeta, error)
	GetMarketPools(id uint64) (domain.MarketPools, error)
	GetOdds(id uint64) (domain.Odds, error)
	GetUserPosition(id uint64, holder common.Address) (domain.Position, error)
	GetUserMarkets(holder common.Address) []uint64
	GetCreatedMarkets(creator common.Address) []uint64
	CalculatePayout(id uint64, isYes bool, bet decimal.Decimal) (decimal.Decimal, error)
}

// Receipt describes a committed transaction.
type Receipt struct {
	Method   string          `json:"method"`
	Seq      uint64          `json:"seq"`
	EventID  uuid.UUID       `json:"event_id"`
	MarketID uint64          `json:"market_id"`
	From     common.Address  `json:"from"`
	Amount   decimal.Decimal `json:"amount"` // stake for placeBet, transfer for claimWinnings
	Return   []byte          `json:"return"` // ABI-encoded outputs
}

// Executor dispatches PREDICT calldata to the backend.
type Executor struct {
	backend Backend
	codec   *Codec
}

// NewExecutor creates an Executor.
func NewExecutor(backend Backend, codec *Codec) *Executor {
	return &Executor{backend: backend, codec: codec}
}

// Codec returns the executor's codec.
func (x *Executor) Codec() *Codec { return x.codec }

// ──────────────────────────────────────────────────────────────────────────────
// Call: view methods (eth_call)
// ──────────────────────────────────────────────────────────────────────────────

// Call executes a view method and returns its ABI-encoded result.
func (x *Executor) Call(_ context.Context, data []byte) ([]byte, error) {
	method, args, err := x.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if !method.IsConstant() {
		return nil, fmt.Errorf("contract.Call %s: %w: not a view method", method.Name, domain.ErrValidation)
	}

	switch method.Name {
	case MethodNextMarketID:
		return x.codec.EncodeOutputs(method.Name, new(big.Int).SetUint64(x.backend.NextMarketID()))

	case MethodGetMarketPools:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		p, err := x.backend.GetMarketPools(id)
		if err != nil {
			return nil, err
		}
		return x.codec.EncodeOutputs(method.Name,
			units.ToWei(p.YesPool), units.ToWei(p.NoPool), units.ToWei(p.TotalPool),
			uint8(p.Outcome), p.Resolved, big.NewInt(p.Deadline.Unix()))

	case MethodGetMarketMeta:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		m, err := x.backend.GetMarketMeta(id)
		if err != nil {
			return nil, err
		}
		return x.codec.EncodeOutputs(method.Name, m.Question, m.Creator, m.Resolver, big.NewInt(m.CreatedAt.Unix()))

	case MethodGetOdds:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		o, err := x.backend.GetOdds(id)
		if err != nil {
			return nil, err
		}
		return x.codec.EncodeOutputs(method.Name, big.NewInt(o.YesBps), big.NewInt(o.NoBps))

	case MethodGetUserPosition:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		p, err := x.backend.GetUserPosition(id, args[1].(common.Address))
		if err != nil {
			return nil, err
		}
		return x.codec.EncodeOutputs(method.Name, units.ToWei(p.YesAmount), units.ToWei(p.NoAmount), p.Claimed)

	case MethodGetUserMarkets:
		return x.codec.EncodeOutputs(method.Name, bigIDs(x.backend.GetUserMarkets(args[0].(common.Address))))

	case MethodGetCreatedMarkets:
		return x.codec.EncodeOutputs(method.Name, bigIDs(x.backend.GetCreatedMarkets(args[0].(common.Address))))

	case MethodCalculatePayout:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		amt, err := x.backend.CalculatePayout(id, args[1].(bool), units.FromWei(args[2].(*big.Int)))
		if err != nil {
			return nil, err
		}
		return x.codec.EncodeOutputs(method.Name, units.ToWei(amt))
	}
	return nil, fmt.Errorf("contract.Call %s: %w", method.Name, domain.ErrUnknownMethod)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transact: mutating methods (eth_sendTransaction)
// ──────────────────────────────────────────────────────────────────────────────

// Transact executes a mutating method on behalf of from. value is the attached
// native-coin amount in wei and is only accepted by payable methods.
func (x *Executor) Transact(ctx context.Context, from common.Address, value *big.Int, data []byte) (*Receipt, error) {
	method, args, err := x.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if method.IsConstant() {
		return nil, fmt.Errorf("contract.Transact %s: %w: view method", method.Name, domain.ErrValidation)
	}
	if value != nil && value.Sign() < 0 {
		return nil, fmt.Errorf("contract.Transact %s: %w: negative value", method.Name, domain.ErrValidation)
	}
	if value != nil && value.Sign() > 0 && !method.IsPayable() {
		return nil, fmt.Errorf("contract.Transact %s: %w", method.Name, domain.ErrNotPayable)
	}

	var e domain.Event
	switch method.Name {
	case MethodCreateMarket:
		deadline, err := unixTime(args[1].(*big.Int))
		if err != nil {
			return nil, err
		}
		e, err = x.backend.CreateMarket(ctx, from, args[0].(string), deadline, args[2].(common.Address))
		if err != nil {
			return nil, err
		}

	case MethodPlaceBet:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		e, err = x.backend.PlaceBet(ctx, from, id, args[1].(bool), units.FromWei(value))
		if err != nil {
			return nil, err
		}

	case MethodResolveMarket:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		e, err = x.backend.ResolveMarket(ctx, from, id, domain.Outcome(args[1].(uint8)))
		if err != nil {
			return nil, err
		}

	case MethodClaimWinnings:
		id, err := marketID(args[0])
		if err != nil {
			return nil, err
		}
		e, err = x.backend.ClaimWinnings(ctx, from, id)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("contract.Transact %s: %w", method.Name, domain.ErrUnknownMethod)
	}

	return x.receipt(method, from, e)
}

func (x *Executor) receipt(method *abi.Method, from common.Address, e domain.Event) (*Receipt, error) {
	r := &Receipt{
		Method:   method.Name,
		Seq:      e.Seq,
		EventID:  e.ID,
		MarketID: e.MarketID,
		From:     from,
		Amount:   e.Amount,
	}
	if method.Name == MethodCreateMarket {
		ret, err := x.codec.EncodeOutputs(method.Name, new(big.Int).SetUint64(e.MarketID))
		if err != nil {
			return nil, err
		}
		r.Return = ret
	}
	return r, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Argument conversion
// ──────────────────────────────────────────────────────────────────────────────

// marketID narrows a uint256 market ID. IDs beyond uint64 cannot exist.
func marketID(v interface{}) (uint64, error) {
	n := v.(*big.Int)
	if !n.IsUint64() {
		return 0, fmt.Errorf("market %s: %w", n, domain.ErrMarketNotFound)
	}
	return n.Uint64(), nil
}

func unixTime(n *big.Int) (time.Time, error) {
	if !n.IsInt64() || n.Int64() > math.MaxInt64/int64(time.Second) {
		return time.Time{}, fmt.Errorf("deadline %s: %w: out of range", n, domain.ErrValidation)
	}
	return time.Unix(n.Int64(), 0).UTC(), nil
}

func bigIDs(ids []uint64) []*big.Int {
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).SetUint64(id)
	}
	return out
}
