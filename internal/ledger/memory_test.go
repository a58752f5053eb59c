package ledger

import (
	"context"
	"math/big"
	"testing"

	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testWETH  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testDAI   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	testAlice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testBob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testPool  = common.HexToAddress("0x0000000000000000000000000000000000000e01")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestMemoryTransfers(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.MintNative(testAlice, eth(10))
	mem.MintToken(testDAI, testAlice, eth(100))

	if err := mem.TransferNative(ctx, testAlice, testBob, eth(3)); err != nil {
		t.Fatalf("native transfer: %v", err)
	}
	if err := mem.TransferToken(ctx, testDAI, testAlice, testBob, eth(40)); err != nil {
		t.Fatalf("token transfer: %v", err)
	}

	nb, _ := mem.NativeBalance(ctx, testBob)
	if nb.Cmp(eth(3)) != 0 {
		t.Fatalf("expected 3 native, got %s", nb)
	}
	tb, _ := mem.TokenBalance(ctx, testDAI, testBob)
	if tb.Cmp(eth(40)) != 0 {
		t.Fatalf("expected 40 dai, got %s", tb)
	}

	err := mem.TransferNative(ctx, testAlice, testBob, eth(100))
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("expected EXECUTOR_FAILURE for overdraft, got %v", err)
	}
}

func TestMemoryWrapUnwrap(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.MintNative(testAlice, eth(5))

	if err := mem.Wrap(ctx, testAlice, eth(2)); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	wb, _ := mem.TokenBalance(ctx, testWETH, testAlice)
	if wb.Cmp(eth(2)) != 0 {
		t.Fatalf("expected 2 weth, got %s", wb)
	}
	supply, _ := mem.TokenTotalSupply(ctx, testWETH)
	if supply.Cmp(eth(2)) != 0 {
		t.Fatalf("expected supply 2, got %s", supply)
	}

	if err := mem.Unwrap(ctx, testAlice, eth(2)); err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	nb, _ := mem.NativeBalance(ctx, testAlice)
	if nb.Cmp(eth(5)) != 0 {
		t.Fatalf("expected 5 native back, got %s", nb)
	}
}

func TestMemorySnapshotRevert(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.MintNative(testAlice, eth(10))

	snap := mem.Snapshot()
	if err := mem.TransferNative(ctx, testAlice, testBob, eth(7)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	mem.Revert(snap)

	nb, _ := mem.NativeBalance(ctx, testAlice)
	if nb.Cmp(eth(10)) != 0 {
		t.Fatalf("expected revert to restore balance, got %s", nb)
	}
	bb, _ := mem.NativeBalance(ctx, testBob)
	if bb.Sign() != 0 {
		t.Fatalf("expected bob empty after revert, got %s", bb)
	}
}

func TestMemorySnapshotDiscardReleasesState(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.MintNative(testAlice, eth(100))

	// A long-running daemon pairs every snapshot with a discard on success;
	// none of them may stay retained.
	for i := 0; i < 100; i++ {
		snap := mem.Snapshot()
		if err := mem.TransferNative(ctx, testAlice, testBob, eth(1)); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
		mem.Discard(snap)
	}
	if got := len(mem.snapshots); got != 0 {
		t.Fatalf("expected no retained snapshots, got %d", got)
	}

	bb, _ := mem.NativeBalance(ctx, testBob)
	if bb.Cmp(eth(100)) != 0 {
		t.Fatalf("discard must keep settled effects, got %s", bb)
	}
	// A discarded snapshot can no longer roll the state back.
	mem.Revert(0)
	bb, _ = mem.NativeBalance(ctx, testBob)
	if bb.Cmp(eth(100)) != 0 {
		t.Fatalf("revert of a discarded snapshot must be a no-op, got %s", bb)
	}
}

func TestMemorySwapPaysOutAfterFunding(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.MintToken(testWETH, testAlice, eth(1))
	mem.DeployPool(testPool, testDAI, testWETH, 3000, eth(1_000_000), eth(500))

	code, _ := mem.CodeAt(ctx, testPool)
	if len(code) == 0 {
		t.Fatal("expected deployed venue to have code")
	}

	// token1 (weth) in, token0 (dai) out.
	params := SwapParams{
		Recipient:       testAlice,
		ZeroForOne:      false,
		AmountSpecified: eth(1),
	}
	a0, a1, err := mem.Swap(ctx, testPool, params, func(cbCtx context.Context, caller common.Address, d0, d1 *big.Int, _ []byte) error {
		if caller != testPool {
			t.Fatalf("expected callback from venue, got %s", caller.Hex())
		}
		if d1.Sign() <= 0 || d0.Sign() >= 0 {
			t.Fatalf("unexpected delta signs: %s / %s", d0, d1)
		}
		return mem.TransferToken(cbCtx, testWETH, testAlice, testPool, d1)
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if a1.Cmp(eth(1)) != 0 {
		t.Fatalf("expected input delta of 1 weth, got %s", a1)
	}
	out := new(big.Int).Neg(a0)
	got, _ := mem.TokenBalance(ctx, testDAI, testAlice)
	if got.Cmp(out) != 0 {
		t.Fatalf("expected payout %s, got %s", out, got)
	}
	if out.Sign() <= 0 {
		t.Fatalf("expected positive output, got %s", out)
	}
}

func TestMemorySwapRejectsUnfundedCallback(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(testWETH)
	mem.DeployPool(testPool, testDAI, testWETH, 3000, eth(1000), eth(1000))

	params := SwapParams{
		Recipient:       testAlice,
		ZeroForOne:      false,
		AmountSpecified: eth(1),
	}
	_, _, err := mem.Swap(ctx, testPool, params, func(context.Context, common.Address, *big.Int, *big.Int, []byte) error {
		return nil // never pays the venue
	})
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("expected EXECUTOR_FAILURE, got %v", err)
	}
}
