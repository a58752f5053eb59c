package swap

import (
	"context"
	"math/big"
	"testing"

	"Intent-Chain/internal/asset"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/router"

	"github.com/ethereum/go-ethereum/common"
)

var (
	requester = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	principal = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	tokX      = common.HexToAddress("0x0000000000000000000000000000000000000c0c")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestSettler(t *testing.T) (*Settler, *ledger.Memory) {
	t.Helper()
	mem := ledger.NewMemory(asset.WETH)
	r := router.New(mem, gov.NewGuard(principal))
	return NewSettler(mem, r, asset.WETH), mem
}

func deployPair(mem *ledger.Memory, a, b common.Address, fee uint32, reserveA, reserveB *big.Int) common.Address {
	pair, _ := router.Canonical(a, b)
	reserve0, reserve1 := reserveA, reserveB
	if pair.Token0 != a {
		reserve0, reserve1 = reserveB, reserveA
	}
	pool := router.PoolFor(pair.Token0, pair.Token1, fee)
	mem.DeployPool(pool, pair.Token0, pair.Token1, fee, reserve0, reserve1)
	return pool
}

func TestSwapTokenForToken(t *testing.T) {
	s, mem := newTestSettler(t)
	ctx := context.Background()

	pool := deployPair(mem, asset.WETH, tokX, 3000, eth(1000), eth(2_000_000))
	mem.MintToken(asset.WETH, requester, eth(1))

	receipt, err := s.Swap(ctx, Request{
		Requester: requester,
		AssetIn:   asset.WETH,
		AssetOut:  tokX,
		AmountIn:  eth(1),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if receipt.Pool != pool {
		t.Fatalf("expected routed pool %s, got %s", pool.Hex(), receipt.Pool.Hex())
	}
	if receipt.AmountOut.Sign() <= 0 {
		t.Fatalf("expected positive output, got %s", receipt.AmountOut)
	}

	got, _ := mem.TokenBalance(ctx, tokX, requester)
	if got.Cmp(receipt.AmountOut) != 0 {
		t.Fatalf("expected requester to hold %s, got %s", receipt.AmountOut, got)
	}
	spent, _ := mem.TokenBalance(ctx, asset.WETH, requester)
	if spent.Sign() != 0 {
		t.Fatalf("expected input fully spent, got %s", spent)
	}
}

func TestSwapWrapsNativeInputLeg(t *testing.T) {
	s, mem := newTestSettler(t)
	ctx := context.Background()

	deployPair(mem, asset.WETH, tokX, 3000, eth(1000), eth(2_000_000))
	mem.MintNative(requester, eth(1))

	receipt, err := s.Swap(ctx, Request{
		Requester: requester,
		AssetIn:   asset.Native,
		AssetOut:  tokX,
		AmountIn:  eth(1),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	native, _ := mem.NativeBalance(ctx, requester)
	if native.Sign() != 0 {
		t.Fatalf("expected native input consumed, got %s", native)
	}
	got, _ := mem.TokenBalance(ctx, tokX, requester)
	if got.Cmp(receipt.AmountOut) != 0 {
		t.Fatalf("expected %s output tokens, got %s", receipt.AmountOut, got)
	}
}

func TestSwapUnwrapsNativeOutputLeg(t *testing.T) {
	s, mem := newTestSettler(t)
	ctx := context.Background()

	deployPair(mem, asset.WETH, tokX, 3000, eth(1000), eth(2_000_000))
	mem.MintToken(tokX, requester, eth(2000))

	receipt, err := s.Swap(ctx, Request{
		Requester: requester,
		AssetIn:   tokX,
		AssetOut:  asset.Native,
		AmountIn:  eth(2000),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	native, _ := mem.NativeBalance(ctx, requester)
	if native.Cmp(receipt.AmountOut) != 0 {
		t.Fatalf("expected %s native out, got %s", receipt.AmountOut, native)
	}
	weth, _ := mem.TokenBalance(ctx, asset.WETH, requester)
	if weth.Sign() != 0 {
		t.Fatalf("expected wrapped output fully unwrapped, got %s", weth)
	}
}

func TestSwapEnforcesMinimumOutput(t *testing.T) {
	s, mem := newTestSettler(t)
	ctx := context.Background()

	deployPair(mem, asset.WETH, tokX, 3000, eth(1000), eth(2_000_000))
	mem.MintToken(asset.WETH, requester, eth(1))

	_, err := s.Swap(ctx, Request{
		Requester:    requester,
		AssetIn:      asset.WETH,
		AssetOut:     tokX,
		AmountIn:     eth(1),
		MinAmountOut: eth(5000), // far above what the reserves can pay
	})
	if xerrors.CodeOf(err) != xerrors.CodeInsufficientSwap {
		t.Fatalf("expected INSUFFICIENT_SWAP, got %v", err)
	}
}

func TestSwapRejectsSpoofedCallbackCaller(t *testing.T) {
	s, mem := newTestSettler(t)
	ctx := context.Background()

	deployPair(mem, asset.WETH, tokX, 3000, eth(1000), eth(2_000_000))
	mem.MintToken(asset.WETH, requester, eth(1))
	mem.SpoofCallbackCaller(common.HexToAddress("0x000000000000000000000000000000000000dead"))

	_, err := s.Swap(ctx, Request{
		Requester: requester,
		AssetIn:   asset.WETH,
		AssetOut:  tokX,
		AmountIn:  eth(1),
	})
	if xerrors.CodeOf(err) != xerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	// Authentication failed before any funds moved.
	balance, _ := mem.TokenBalance(ctx, asset.WETH, requester)
	if balance.Cmp(eth(1)) != 0 {
		t.Fatalf("expected untouched balance, got %s", balance)
	}
}

func TestSwapRejectsOverflowAmount(t *testing.T) {
	s, _ := newTestSettler(t)
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	_, err := s.Swap(context.Background(), Request{
		Requester: requester,
		AssetIn:   asset.WETH,
		AssetOut:  tokX,
		AmountIn:  huge,
	})
	if xerrors.CodeOf(err) != xerrors.CodeOverflow {
		t.Fatalf("expected OVERFLOW, got %v", err)
	}
}

func TestSwapNoRoute(t *testing.T) {
	s, mem := newTestSettler(t)
	mem.MintToken(asset.WETH, requester, eth(1))
	_, err := s.Swap(context.Background(), Request{
		Requester: requester,
		AssetIn:   asset.WETH,
		AssetOut:  tokX,
		AmountIn:  eth(1),
	})
	if xerrors.CodeOf(err) != xerrors.CodeNoRoute {
		t.Fatalf("expected NO_ROUTE, got %v", err)
	}
}
