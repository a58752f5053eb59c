// Package router selects the exchange venue for an asset pair. Resolution
// order: a compiled table of pre-vetted pools, the governance route table,
// then deterministic derivation of the four fee-tier candidates ranked by
// observed liquidity. Derivation is pure hashing; liquidity is a single
// balance read per candidate, never venue-internal state.
package router

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/ledger"
	"Intent-Chain/internal/notify"
	"Intent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Factory is the venue factory whose deployments the derivation reproduces.
var Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")

// poolInitCodeHash is the fixed template hash of the venue implementation's
// code identity.
var poolInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")

// FeeTiers are the four standard fee tiers, in hundredths of a basis point.
var FeeTiers = [4]uint32{100, 500, 3000, 10000}

// Pair is a canonically ordered asset pair: Token0 always sorts numerically
// lower than Token1.
type Pair struct {
	Token0 common.Address
	Token1 common.Address
}

// Canonical orders an asset pair and reports whether the first argument is
// the lower-sorted asset. That flag becomes the trade direction used by
// settlement.
func Canonical(assetA, assetB common.Address) (Pair, bool) {
	if bytes.Compare(assetA.Bytes(), assetB.Bytes()) < 0 {
		return Pair{Token0: assetA, Token1: assetB}, true
	}
	return Pair{Token0: assetB, Token1: assetA}, false
}

// Route is a selected venue and the direction of the requested trade.
type Route struct {
	Pool       common.Address
	Fee        uint32
	ZeroForOne bool
}

type routeEntry struct {
	pool common.Address
	fee  uint32
}

// curated is the compiled table of known high-traffic pairs the deployer has
// pre-vetted, keyed by canonical pair.
var curated = map[Pair]routeEntry{
	{Token0: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), // USDC
		Token1: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}: // WETH
		{pool: common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"), fee: 500},
	{Token0: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), // DAI
		Token1: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}: // WETH
		{pool: common.HexToAddress("0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8"), fee: 3000},
	{Token0: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), // DAI
		Token1: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")}: // USDC
		{pool: common.HexToAddress("0x5777d92f208679DB4b9778590Fa3CAB3aC9e2168"), fee: 100},
	{Token0: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), // WBTC
		Token1: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")}: // WETH
		{pool: common.HexToAddress("0xCBCdF9626bC03E24f779434178A73a0B4bad62eD"), fee: 3000},
}

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint24Type, _  = abi.NewType("uint24", "", nil)

	poolKeyArguments = abi.Arguments{
		{Type: addressType},
		{Type: addressType},
		{Type: uint24Type},
	}
)

// PoolFor derives the venue address for a canonical pair and fee tier as a
// content-address hash of (factory, pair, fee) and the venue template hash.
// It is a pure function, reproducible bit-for-bit with no network access.
func PoolFor(token0, token1 common.Address, fee uint32) common.Address {
	packed, err := poolKeyArguments.Pack(token0, token1, big.NewInt(int64(fee)))
	if err != nil {
		// Static argument shapes make packing infallible.
		panic(err)
	}
	salt := crypto.Keccak256Hash(packed)
	return crypto.CreateAddress2(Factory, salt, poolInitCodeHash.Bytes())
}

// RouteStore persists the governance route table.
type RouteStore interface {
	SaveRoute(ctx context.Context, pair Pair, pool common.Address, fee uint32) error
	LoadRoutes(ctx context.Context) (map[Pair]StoredRoute, error)
}

// StoredRoute is a persisted governance route entry.
type StoredRoute struct {
	Pool common.Address
	Fee  uint32
}

// Router resolves venues for asset pairs. The governance table is writable
// only by the governance principal and read without blocking derivation.
type Router struct {
	mu     sync.RWMutex
	routes map[Pair]routeEntry

	reader   ledger.Reader
	guard    *gov.Guard
	store    RouteStore
	notifier notify.Notifier
	audit    *slog.Logger
}

// Option configures optional router collaborators.
type Option func(*Router)

// WithRouteStore attaches persistent storage for the governance table.
func WithRouteStore(store RouteStore) Option {
	return func(r *Router) { r.store = store }
}

// WithNotifier attaches the governance event channel.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Router) { r.notifier = notifier }
}

// New creates a router backed by the given substrate reader.
func New(reader ledger.Reader, guard *gov.Guard, opts ...Option) *Router {
	r := &Router{
		routes:   make(map[Pair]routeEntry),
		reader:   reader,
		guard:    guard,
		notifier: notify.Nop{},
		audit:    logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Load populates the governance table from the route store.
func (r *Router) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	stored, err := r.store.LoadRoutes(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "load route table")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for pair, route := range stored {
		r.routes[pair] = routeEntry{pool: route.Pool, fee: route.Fee}
	}
	return nil
}

// Route returns the venue to use for a trade from assetA to assetB. Both
// argument orders select the same venue; only the reported direction
// differs.
func (r *Router) Route(ctx context.Context, assetA, assetB common.Address) (Route, error) {
	if assetA == assetB {
		return Route{}, xerrors.New(xerrors.CodeInvalidArgument, "cannot route an asset against itself")
	}
	pair, zeroForOne := Canonical(assetA, assetB)

	if entry, ok := curated[pair]; ok {
		return Route{Pool: entry.pool, Fee: entry.fee, ZeroForOne: zeroForOne}, nil
	}

	r.mu.RLock()
	entry, ok := r.routes[pair]
	r.mu.RUnlock()
	if ok {
		return Route{Pool: entry.pool, Fee: entry.fee, ZeroForOne: zeroForOne}, nil
	}

	return r.derive(ctx, pair, zeroForOne)
}

// derive ranks the four deterministically-derived fee-tier candidates by the
// venue's balance of the lower-sorted asset. A candidate with no deployed
// code counts as zero liquidity and is never selected.
func (r *Router) derive(ctx context.Context, pair Pair, zeroForOne bool) (Route, error) {
	var (
		bestPool    common.Address
		bestFee     uint32
		bestBalance *big.Int
	)
	for _, fee := range FeeTiers {
		candidate := PoolFor(pair.Token0, pair.Token1, fee)
		code, err := r.reader.CodeAt(ctx, candidate)
		if err != nil {
			return Route{}, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "query venue code")
		}
		if len(code) == 0 {
			continue
		}
		balance, err := r.reader.TokenBalance(ctx, pair.Token0, candidate)
		if err != nil {
			return Route{}, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "query venue liquidity")
		}
		if bestBalance == nil || balance.Cmp(bestBalance) > 0 {
			bestPool, bestFee, bestBalance = candidate, fee, balance
		}
	}
	if bestBalance == nil {
		return Route{}, xerrors.New(xerrors.CodeNoRoute, "",
			xerrors.WithMetadata("token0", pair.Token0.Hex()),
			xerrors.WithMetadata("token1", pair.Token1.Hex()))
	}
	return Route{Pool: bestPool, Fee: bestFee, ZeroForOne: zeroForOne}, nil
}

// Register binds a venue to an asset pair in the governance table. The key
// is always stored canonically, one entry per unordered pair.
func (r *Router) Register(ctx context.Context, caller, assetA, assetB, pool common.Address, fee uint32) error {
	if err := r.guard.Authorize(caller); err != nil {
		return err
	}
	if assetA == assetB {
		return xerrors.New(xerrors.CodeInvalidArgument, "route pair must be two distinct assets")
	}
	if pool == (common.Address{}) {
		return xerrors.New(xerrors.CodeInvalidArgument, "route venue is the zero identifier")
	}
	pair, _ := Canonical(assetA, assetB)

	if r.store != nil {
		if err := r.store.SaveRoute(ctx, pair, pool, fee); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "persist route")
		}
	}

	r.mu.Lock()
	r.routes[pair] = routeEntry{pool: pool, fee: fee}
	r.mu.Unlock()

	r.audit.Info("route_registered",
		"token0", pair.Token0.Hex(), "token1", pair.Token1.Hex(),
		"pool", pool.Hex(), "fee", fee)
	if err := r.notifier.Publish(ctx, notify.Event{
		Kind:  notify.KindRouteRegistered,
		Key:   pair.Token0.Hex() + "/" + pair.Token1.Hex(),
		Value: pool.Hex(),
		At:    time.Now().Unix(),
	}); err != nil {
		return err
	}
	return nil
}
