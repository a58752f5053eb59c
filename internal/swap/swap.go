// Package swap drives exchange settlement against a routed venue. The venue
// calls back synchronously mid-settlement to request funding; the handler
// authenticates the caller by re-deriving the expected venue address before
// any funds move, bridges native legs through the wrapped token, and enforces
// the command's minimum output after settlement.
package swap

import (
	"context"
	"log/slog"
	"math/big"

	"Intent-Chain/internal/asset"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/router"
	"Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// Conservative worst-price bounds per trade direction. True slippage
	// protection is the minimum-output check after settlement.
	minSqrtRatio = big.NewInt(4295128739)
	maxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	// maxSignedMagnitude is the smallest input the signed settlement
	// interface cannot represent.
	maxSignedMagnitude = new(big.Int).Lsh(big.NewInt(1), 255)
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("malformed big integer literal")
	}
	return v
}

// PriceLimit returns the worst-price bound submitted for a trade
// direction.
func PriceLimit(zeroForOne bool) *big.Int {
	if zeroForOne {
		return new(big.Int).Add(minSqrtRatio, big.NewInt(1))
	}
	return new(big.Int).Sub(maxSqrtRatio, big.NewInt(1))
}

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint24Type, _  = abi.NewType("uint24", "", nil)
	boolType, _    = abi.NewType("bool", "", nil)

	// callbackArguments is the opaque side-channel payload attached to a
	// settlement request: requester, pair, fee and the wrap flag, carried
	// through the venue so the callback can recover them.
	callbackArguments = abi.Arguments{
		{Name: "payer", Type: addressType},
		{Name: "tokenIn", Type: addressType},
		{Name: "tokenOut", Type: addressType},
		{Name: "fee", Type: uint24Type},
		{Name: "wrapIn", Type: boolType},
	}
)

// Request describes one swap to settle. AssetIn and AssetOut are resolved
// identifiers and may be the native sentinel.
type Request struct {
	Requester    common.Address
	AssetIn      common.Address
	AssetOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
}

// Receipt reports a settled swap.
type Receipt struct {
	Pool       common.Address
	Fee        uint32
	ZeroForOne bool
	AmountIn   *big.Int
	AmountOut  *big.Int
}

// Settler coordinates routing, settlement and the funding callback.
type Settler struct {
	substrate ledger.Substrate
	router    *router.Router
	weth      common.Address
	log       *slog.Logger
}

// NewSettler creates a settler. weth is the wrapped form of the native asset
// used to bridge native legs to the venue.
func NewSettler(substrate ledger.Substrate, r *router.Router, weth common.Address) *Settler {
	return &Settler{
		substrate: substrate,
		router:    r,
		weth:      weth,
		log:       logger.Named("swap"),
	}
}

// WETH reports the wrapped form of the native asset the settler bridges
// through.
func (s *Settler) WETH() common.Address {
	return s.weth
}

// Swap settles the request and returns the realized amounts. The venue's
// funding callback runs synchronously inside the substrate call; settlement
// fails atomically if authentication, funding or the minimum-output check
// fails.
func (s *Settler) Swap(ctx context.Context, req Request) (*Receipt, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "swap requires a positive input amount")
	}
	if req.AmountIn.Cmp(maxSignedMagnitude) >= 0 {
		return nil, xerrors.New(xerrors.CodeOverflow, "")
	}

	wrapIn := req.AssetIn == asset.Native
	unwrapOut := req.AssetOut == asset.Native
	tokenIn, tokenOut := req.AssetIn, req.AssetOut
	if wrapIn {
		tokenIn = s.weth
	}
	if unwrapOut {
		tokenOut = s.weth
	}
	if tokenIn == tokenOut {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "swap legs resolve to the same asset")
	}

	route, err := s.router.Route(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	data, err := callbackArguments.Pack(req.Requester, tokenIn, tokenOut, big.NewInt(int64(route.Fee)), wrapIn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "encode callback payload")
	}

	amount0, amount1, err := s.substrate.Swap(ctx, route.Pool, ledger.SwapParams{
		Recipient:       req.Requester,
		ZeroForOne:      route.ZeroForOne,
		AmountSpecified: new(big.Int).Set(req.AmountIn),
		SqrtPriceLimit:  PriceLimit(route.ZeroForOne),
		Data:            data,
	}, s.handleCallback)
	if err != nil {
		return nil, err
	}

	amountOut := new(big.Int).Neg(amount0)
	if route.ZeroForOne {
		amountOut = new(big.Int).Neg(amount1)
	}
	minOut := req.MinAmountOut
	if minOut == nil {
		minOut = new(big.Int)
	}
	if amountOut.Cmp(minOut) < 0 {
		return nil, xerrors.New(xerrors.CodeInsufficientSwap, "",
			xerrors.WithMetadata("realized", amountOut.String()),
			xerrors.WithMetadata("minimum", minOut.String()))
	}

	if unwrapOut {
		if err := s.substrate.Unwrap(ctx, req.Requester, amountOut); err != nil {
			return nil, err
		}
	}

	s.log.Info("swap settled",
		"pool", route.Pool.Hex(),
		"fee", route.Fee,
		"amount_in", req.AmountIn.String(),
		"amount_out", amountOut.String(),
	)
	return &Receipt{
		Pool:       route.Pool,
		Fee:        route.Fee,
		ZeroForOne: route.ZeroForOne,
		AmountIn:   new(big.Int).Set(req.AmountIn),
		AmountOut:  amountOut,
	}, nil
}

// handleCallback is the funding continuation the venue invokes mid-swap.
// Authentication happens before any fund movement: the expected venue address
// is re-derived from the claimed pair and fee, and a caller mismatch aborts
// unconditionally.
func (s *Settler) handleCallback(ctx context.Context, caller common.Address, amount0, amount1 *big.Int, data []byte) error {
	if amount0.Sign() <= 0 && amount1.Sign() <= 0 {
		return xerrors.New(xerrors.CodeInvalidSwap, "")
	}

	decoded, err := callbackArguments.Unpack(data)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "decode callback payload")
	}
	payer := decoded[0].(common.Address)
	tokenIn := decoded[1].(common.Address)
	tokenOut := decoded[2].(common.Address)
	fee := uint32(decoded[3].(*big.Int).Uint64())
	wrapIn := decoded[4].(bool)

	pair, _ := router.Canonical(tokenIn, tokenOut)
	expected := router.PoolFor(pair.Token0, pair.Token1, fee)
	if caller != expected {
		return xerrors.New(xerrors.CodeUnauthorized, "settlement callback from unexpected caller",
			xerrors.WithMetadata("caller", caller.Hex()),
			xerrors.WithMetadata("expected", expected.Hex()))
	}

	owed := amount0
	if amount1.Sign() > 0 {
		owed = amount1
	}

	if wrapIn {
		if err := s.substrate.Wrap(ctx, payer, owed); err != nil {
			return err
		}
		return s.substrate.TransferToken(ctx, s.weth, payer, caller, owed)
	}
	return s.substrate.TransferToken(ctx, tokenIn, payer, caller, owed)
}
