package engine

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"Intent-Chain/internal/asset"
	"Intent-Chain/internal/codec"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/naming"
	"Intent-Chain/internal/notify"
	"Intent-Chain/internal/router"
	"Intent-Chain/internal/swap"

	"github.com/ethereum/go-ethereum/common"
)

var (
	principal = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	requester = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	vitalik   = common.HexToAddress("0x1c0aA8cCD568d90d61659F060D1bFb1e6f855A20")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	engine *Engine
	mem    *ledger.Memory
	events *notify.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := ledger.NewMemory(asset.WETH)
	guard := gov.NewGuard(principal)
	events := notify.NewMemory()
	registry := asset.NewRegistry(mem, guard, asset.WithNotifier(events))
	rt := router.New(mem, guard, router.WithNotifier(events))
	settler := swap.NewSettler(mem, rt, asset.WETH)
	names := naming.NewDirectory()
	names.Register("vitalik", vitalik)
	eng := New(mem, registry, rt, settler, names, guard, WithNotifier(events))
	return &fixture{engine: eng, mem: mem, events: events}
}

// deployDAIPool places a DAI/WETH pool at its derived venue address so both
// the curated route and callback authentication agree on it.
func (f *fixture) deployDAIPool() {
	pair, _ := router.Canonical(asset.DAI, asset.WETH)
	pool := router.PoolFor(pair.Token0, pair.Token1, 3000)
	f.mem.DeployPool(pool, pair.Token0, pair.Token1, 3000, eth(2_000_000), eth(1000))
}

func TestExecuteTokenSendByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.MintToken(asset.DAI, requester, eth(100))

	res, err := f.engine.Execute(ctx, requester, "send vitalik 20 DAI")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.To != vitalik || res.Asset != asset.DAI {
		t.Fatalf("unexpected resolution: to=%s asset=%s", res.To.Hex(), res.Asset.Hex())
	}
	if res.Amount.Cmp(eth(20)) != 0 {
		t.Fatalf("expected 20e18, got %s", res.Amount)
	}

	got, _ := f.mem.TokenBalance(ctx, asset.DAI, vitalik)
	if got.Cmp(eth(20)) != 0 {
		t.Fatalf("recipient balance %s, want %s", got, eth(20))
	}

	text, err := f.engine.Describe(ctx, res.Payload)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	want := "send 20 dai to " + strings.ToLower(vitalik.Hex())
	if text != want {
		t.Fatalf("describe %q, want %q", text, want)
	}
}

func TestExecuteNativeSendByAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.MintNative(requester, eth(5))

	_, err := f.engine.Execute(ctx, requester, "send 1 eth to "+vitalik.Hex())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got, _ := f.mem.NativeBalance(ctx, vitalik)
	if got.Cmp(eth(1)) != 0 {
		t.Fatalf("recipient native balance %s, want %s", got, eth(1))
	}
}

func TestExecuteSwapThroughCuratedRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deployDAIPool()
	f.mem.MintNative(requester, eth(1))

	res, err := f.engine.Execute(ctx, requester, "swap 1 eth for dai")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Receipt == nil || res.Receipt.AmountOut.Sign() <= 0 {
		t.Fatalf("expected positive swap output, got %+v", res.Receipt)
	}
	dai, _ := f.mem.TokenBalance(ctx, asset.DAI, requester)
	if dai.Cmp(res.Receipt.AmountOut) != 0 {
		t.Fatalf("requester dai balance %s, want %s", dai, res.Receipt.AmountOut)
	}
}

func TestExecuteSwapFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deployDAIPool()
	f.mem.MintNative(requester, eth(1))

	_, err := f.engine.Execute(ctx, requester, "swap 1 eth to 99999999 dai")
	if xerrors.CodeOf(err) != xerrors.CodeInsufficientSwap {
		t.Fatalf("expected INSUFFICIENT_SWAP, got %v", err)
	}
	// The whole invocation rolled back, including the wrap leg.
	native, _ := f.mem.NativeBalance(ctx, requester)
	if native.Cmp(eth(1)) != 0 {
		t.Fatalf("expected native balance restored, got %s", native)
	}
	weth, _ := f.mem.TokenBalance(ctx, asset.WETH, requester)
	if weth.Sign() != 0 {
		t.Fatalf("expected no wrapped residue, got %s", weth)
	}
}

func TestExecuteDiscardsSnapshotOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.MintToken(asset.DAI, requester, eth(100))

	for i := 0; i < 5; i++ {
		if _, err := f.engine.Execute(ctx, requester, "send vitalik 1 dai"); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	// Successful invocations leave nothing to roll back to: a revert against
	// the first identifier must not undo any settled transfer.
	f.mem.Revert(0)
	got, _ := f.mem.TokenBalance(ctx, asset.DAI, vitalik)
	if got.Cmp(eth(5)) != 0 {
		t.Fatalf("settled transfers must survive, got %s", got)
	}
}

func TestPreviewResolvesWithoutExecuting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.MintToken(asset.DAI, requester, eth(100))

	preview, err := f.engine.Preview(ctx, requester, "send vitalik 20 dai")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.To != vitalik || preview.Amount.Cmp(eth(20)) != 0 {
		t.Fatalf("unexpected preview resolution: %+v", preview)
	}

	balance, _ := f.mem.TokenBalance(ctx, asset.DAI, requester)
	if balance.Cmp(eth(100)) != 0 {
		t.Fatalf("preview must not move funds, balance %s", balance)
	}

	res, err := f.engine.Execute(ctx, requester, "send vitalik 20 dai")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !bytes.Equal(preview.Payload, res.Payload) {
		t.Fatalf("preview and execute payloads differ")
	}
}

func TestPreviewSwapMinimumOutput(t *testing.T) {
	f := newFixture(t)
	f.deployDAIPool()

	preview, err := f.engine.Preview(context.Background(), requester, "swap 1 eth to 2500 dai")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.AmountIn.Cmp(eth(1)) != 0 {
		t.Fatalf("amount in %s, want 1e18", preview.AmountIn)
	}
	if preview.MinAmount.Cmp(eth(2500)) != 0 {
		t.Fatalf("min out %s, want 2500e18", preview.MinAmount)
	}
	if preview.Route == nil || preview.Route.Fee != 3000 {
		t.Fatalf("unexpected route: %+v", preview.Route)
	}
	if len(preview.Payload) == 0 {
		t.Fatal("swap preview must carry the forged call payload")
	}
}

func TestVerifyMatchesPreviewPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "send 20 dai to " + vitalik.Hex()
	preview, err := f.engine.Preview(ctx, requester, text)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	ok, err := f.engine.Verify(ctx, text, preview.Payload)
	if err != nil || !ok {
		t.Fatalf("expected verification success, ok=%v err=%v", ok, err)
	}

	mutated := append([]byte(nil), preview.Payload...)
	mutated[len(mutated)-1] ^= 0x01
	ok, err = f.engine.Verify(ctx, text, mutated)
	if err != nil || ok {
		t.Fatalf("mutated payload must not verify, ok=%v err=%v", ok, err)
	}
}

func TestGovernanceNameRegistrationIsGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.RegisterName(ctx, requester, "treasury", vitalik)
	if xerrors.CodeOf(err) != xerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if err := f.engine.RegisterName(ctx, principal, "treasury", vitalik); err != nil {
		t.Fatalf("register as principal: %v", err)
	}
	res, err := f.engine.ResolveName(ctx, "treasury")
	if err != nil || res.Account != vitalik {
		t.Fatalf("resolve: %v %+v", err, res)
	}
}

func TestSetNameServiceEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	replacement := naming.NewDirectory()
	replacement.Register("ops", requester)
	if err := f.engine.SetNameService(ctx, principal, replacement); err != nil {
		t.Fatalf("set name service: %v", err)
	}
	res, err := f.engine.ResolveName(ctx, "ops")
	if err != nil || res.Account != requester {
		t.Fatalf("resolver not replaced: %v %+v", err, res)
	}

	var seen bool
	for _, event := range f.events.Events() {
		if event.Kind == notify.KindNamingReplaced {
			seen = true
		}
	}
	if !seen {
		t.Fatalf("expected %s event", notify.KindNamingReplaced)
	}
}

func TestPreviewSwapSummaryIsCanonical(t *testing.T) {
	f := newFixture(t)
	f.deployDAIPool()

	preview, err := f.engine.Preview(context.Background(), requester, "SWAP 1.50 Ether to 2500.00 DAI")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	want := "swap 1.5 eth to 2500 dai"
	if preview.Summary != want {
		t.Fatalf("summary %q, want %q", preview.Summary, want)
	}

	minless, err := f.engine.Preview(context.Background(), requester, "swap 1 ether for dai")
	if err != nil {
		t.Fatalf("preview without minimum: %v", err)
	}
	if minless.Summary != "swap 1 eth to dai" {
		t.Fatalf("summary %q, want %q", minless.Summary, "swap 1 eth to dai")
	}
}

func TestReadsRaceFreeDuringNameServiceSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := codec.EncodeSend(vitalik, eth(1), asset.DAI)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				replacement := naming.NewDirectory()
				replacement.Register("vitalik", vitalik)
				if err := f.engine.SetNameService(ctx, principal, replacement); err != nil {
					t.Errorf("set name service: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := f.engine.Describe(ctx, payload); err != nil {
					t.Errorf("describe: %v", err)
					return
				}
				if res, err := f.engine.ResolveName(ctx, "vitalik"); err != nil || res.Account != vitalik {
					t.Errorf("resolve: %v %+v", err, res)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestBalanceAndSupplyQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.MintToken(asset.DAI, requester, eth(42))
	f.mem.MintNative(requester, eth(3))

	balance, err := f.engine.Balance(ctx, requester, "dai")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Display != "42" {
		t.Fatalf("display balance %q, want 42", balance.Display)
	}

	native, err := f.engine.Balance(ctx, requester, "eth")
	if err != nil || native.Display != "3" {
		t.Fatalf("native balance %q err=%v", native.Display, err)
	}

	supply, err := f.engine.TotalSupply(ctx, "dai")
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Raw.Cmp(eth(42)) != 0 {
		t.Fatalf("supply %s, want %s", supply.Raw, eth(42))
	}

	if _, err := f.engine.TotalSupply(ctx, "eth"); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for native supply, got %v", err)
	}
}
