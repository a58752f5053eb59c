package ledger

import (
	"context"
	"math/big"

	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// pseudoCode marks deployed accounts in the embedded substrate. Routing only
// checks presence, never content.
var pseudoCode = []byte{0x60, 0x80, 0x60, 0x40}

// feeDenominator expresses venue fees in hundredths of a basis point.
var feeDenominator = big.NewInt(1_000_000)

type poolState struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Memory is the embedded execution substrate. It keeps native and token
// balances, token metadata and deployed venues in process, settles swaps with
// constant-product pricing, and supports snapshot/rollback so a failed
// invocation leaves no partial effects.
//
// Memory is not safe for concurrent use: the engine serializes top-level
// invocations, mirroring how the surrounding ledger serializes calls.
type Memory struct {
	weth      common.Address
	native    map[common.Address]*big.Int
	tokens    map[common.Address]map[common.Address]*big.Int
	supply    map[common.Address]*big.Int
	meta      map[common.Address]TokenMetadata
	pools     map[common.Address]*poolState
	snapshots []*memorySnapshot

	// spoofCaller overrides the caller identity passed to the next swap
	// callback. Test hook for exercising callback authentication.
	spoofCaller *common.Address
}

type memorySnapshot struct {
	native map[common.Address]*big.Int
	tokens map[common.Address]map[common.Address]*big.Int
	supply map[common.Address]*big.Int
}

// NewMemory creates an empty embedded substrate. weth is the wrapped form of
// the native asset used by Wrap and Unwrap.
func NewMemory(weth common.Address) *Memory {
	return &Memory{
		weth:   weth,
		native: make(map[common.Address]*big.Int),
		tokens: make(map[common.Address]map[common.Address]*big.Int),
		supply: make(map[common.Address]*big.Int),
		meta:   make(map[common.Address]TokenMetadata),
		pools:  make(map[common.Address]*poolState),
	}
}

// MintNative credits native funds to an account.
func (m *Memory) MintNative(account common.Address, amount *big.Int) {
	m.creditNative(account, amount)
}

// MintToken credits token funds to an account and grows the circulating
// supply accordingly.
func (m *Memory) MintToken(token, account common.Address, amount *big.Int) {
	m.creditToken(token, account, amount)
	m.supply[token] = addInto(m.supply[token], amount)
}

// SetTokenMetadata records the self-reported metadata of a token.
func (m *Memory) SetTokenMetadata(token common.Address, md TokenMetadata) {
	m.meta[token] = md
}

// DeployPool installs a venue at the given address with its pair, fee tier
// and initial reserves. Reserves are held as the venue's own token balances
// so liquidity reads observe them directly.
func (m *Memory) DeployPool(pool, token0, token1 common.Address, fee uint32, reserve0, reserve1 *big.Int) {
	m.pools[pool] = &poolState{token0: token0, token1: token1, fee: fee}
	m.MintToken(token0, pool, reserve0)
	m.MintToken(token1, pool, reserve1)
}

// SpoofCallbackCaller makes the next swap callback report the given account
// as its caller instead of the venue address. It applies once.
func (m *Memory) SpoofCallbackCaller(caller common.Address) {
	c := caller
	m.spoofCaller = &c
}

// CodeAt reports pseudo-code for deployed venues and nothing for every other
// account.
func (m *Memory) CodeAt(_ context.Context, account common.Address) ([]byte, error) {
	if _, ok := m.pools[account]; ok {
		return pseudoCode, nil
	}
	return nil, nil
}

// NativeBalance returns the native funds held by an account.
func (m *Memory) NativeBalance(_ context.Context, account common.Address) (*big.Int, error) {
	return valueOf(m.native[account]), nil
}

// TokenBalance returns the token funds held by an account.
func (m *Memory) TokenBalance(_ context.Context, token, holder common.Address) (*big.Int, error) {
	return valueOf(m.tokens[token][holder]), nil
}

// TokenMetadata returns the recorded metadata of a token.
func (m *Memory) TokenMetadata(_ context.Context, token common.Address) (TokenMetadata, error) {
	md, ok := m.meta[token]
	if !ok {
		return TokenMetadata{}, xerrors.New(xerrors.CodeNotFound, "token has no metadata",
			xerrors.WithMetadata("token", token.Hex()))
	}
	return md, nil
}

// TokenTotalSupply returns the circulating amount of a token.
func (m *Memory) TokenTotalSupply(_ context.Context, token common.Address) (*big.Int, error) {
	return valueOf(m.supply[token]), nil
}

// TransferNative moves native funds between accounts.
func (m *Memory) TransferNative(_ context.Context, from, to common.Address, amount *big.Int) error {
	if err := m.debitNative(from, amount); err != nil {
		return err
	}
	m.creditNative(to, amount)
	return nil
}

// TransferToken moves token funds between accounts.
func (m *Memory) TransferToken(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	if err := m.debitToken(token, from, amount); err != nil {
		return err
	}
	m.creditToken(token, to, amount)
	return nil
}

// Wrap converts native funds held by owner into the wrapped token.
func (m *Memory) Wrap(_ context.Context, owner common.Address, amount *big.Int) error {
	if err := m.debitNative(owner, amount); err != nil {
		return err
	}
	m.creditToken(m.weth, owner, amount)
	m.supply[m.weth] = addInto(m.supply[m.weth], amount)
	return nil
}

// Unwrap converts wrapped tokens held by owner back into native funds.
func (m *Memory) Unwrap(_ context.Context, owner common.Address, amount *big.Int) error {
	if err := m.debitToken(m.weth, owner, amount); err != nil {
		return err
	}
	m.creditNative(owner, amount)
	m.supply[m.weth] = new(big.Int).Sub(valueOf(m.supply[m.weth]), amount)
	return nil
}

// Swap settles an exact-input exchange against the venue at pool. The
// callback is invoked synchronously before Swap returns, with the realized
// deltas and the opaque payload from params; the venue then checks that the
// owed input actually arrived before paying out the output leg.
func (m *Memory) Swap(ctx context.Context, pool common.Address, params SwapParams, cb SwapCallback) (*big.Int, *big.Int, error) {
	state, ok := m.pools[pool]
	if !ok {
		return nil, nil, xerrors.New(xerrors.CodeExecutorFailure, "no venue deployed at address",
			xerrors.WithMetadata("venue", pool.Hex()))
	}
	amountIn := params.AmountSpecified
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, xerrors.New(xerrors.CodeExecutorFailure, "swap requires a positive input amount")
	}

	tokenIn, tokenOut := state.token0, state.token1
	if !params.ZeroForOne {
		tokenIn, tokenOut = state.token1, state.token0
	}

	reserveIn := valueOf(m.tokens[tokenIn][pool])
	reserveOut := valueOf(m.tokens[tokenOut][pool])
	amountOut := quoteConstantProduct(amountIn, reserveIn, reserveOut, state.fee)

	amount0 := new(big.Int).Set(amountIn)
	amount1 := new(big.Int).Neg(amountOut)
	if !params.ZeroForOne {
		amount0, amount1 = amount1, amount0
	}

	caller := pool
	if m.spoofCaller != nil {
		caller = *m.spoofCaller
		m.spoofCaller = nil
	}

	owedBefore := valueOf(m.tokens[tokenIn][pool])
	if err := cb(ctx, caller, amount0, amount1, params.Data); err != nil {
		return nil, nil, err
	}
	received := new(big.Int).Sub(valueOf(m.tokens[tokenIn][pool]), owedBefore)
	if received.Cmp(amountIn) < 0 {
		return nil, nil, xerrors.New(xerrors.CodeExecutorFailure, "venue was not funded by callback",
			xerrors.WithMetadata("venue", pool.Hex()))
	}

	if err := m.debitToken(tokenOut, pool, amountOut); err != nil {
		return nil, nil, err
	}
	m.creditToken(tokenOut, params.Recipient, amountOut)

	return amount0, amount1, nil
}

// Snapshot records the current balance state and returns its identifier.
func (m *Memory) Snapshot() int {
	m.snapshots = append(m.snapshots, &memorySnapshot{
		native: cloneBalances(m.native),
		tokens: cloneTokenBalances(m.tokens),
		supply: cloneBalances(m.supply),
	})
	return len(m.snapshots) - 1
}

// Revert restores the balance state recorded at the given snapshot and
// discards it along with any later snapshots.
func (m *Memory) Revert(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.native = snap.native
	m.tokens = snap.tokens
	m.supply = snap.supply
	m.snapshots = m.snapshots[:id]
}

// Discard drops the snapshot recorded at the given identifier, and any taken
// after it, without restoring state. Effects performed since the snapshot are
// kept.
func (m *Memory) Discard(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	m.snapshots = m.snapshots[:id]
}

// quoteConstantProduct prices an exact-input trade against x*y=k reserves
// with the venue fee taken from the input leg.
func quoteConstantProduct(amountIn, reserveIn, reserveOut *big.Int, fee uint32) *big.Int {
	inAfterFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(feeDenominator, big.NewInt(int64(fee))))
	inAfterFee.Div(inAfterFee, feeDenominator)
	if reserveIn.Sign() == 0 && inAfterFee.Sign() == 0 {
		return new(big.Int)
	}
	numerator := new(big.Int).Mul(reserveOut, inAfterFee)
	denominator := new(big.Int).Add(reserveIn, inAfterFee)
	if denominator.Sign() == 0 {
		return new(big.Int)
	}
	return numerator.Div(numerator, denominator)
}

func (m *Memory) creditNative(account common.Address, amount *big.Int) {
	m.native[account] = addInto(m.native[account], amount)
}

func (m *Memory) debitNative(account common.Address, amount *big.Int) error {
	balance := valueOf(m.native[account])
	if balance.Cmp(amount) < 0 {
		return xerrors.New(xerrors.CodeExecutorFailure, "insufficient native balance",
			xerrors.WithMetadata("account", account.Hex()))
	}
	m.native[account] = balance.Sub(balance, amount)
	return nil
}

func (m *Memory) creditToken(token, account common.Address, amount *big.Int) {
	holders := m.tokens[token]
	if holders == nil {
		holders = make(map[common.Address]*big.Int)
		m.tokens[token] = holders
	}
	holders[account] = addInto(holders[account], amount)
}

func (m *Memory) debitToken(token, account common.Address, amount *big.Int) error {
	balance := valueOf(m.tokens[token][account])
	if balance.Cmp(amount) < 0 {
		return xerrors.New(xerrors.CodeExecutorFailure, "insufficient token balance",
			xerrors.WithMetadata("token", token.Hex()),
			xerrors.WithMetadata("account", account.Hex()))
	}
	m.tokens[token][account] = balance.Sub(balance, amount)
	return nil
}

func valueOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func addInto(current, amount *big.Int) *big.Int {
	if current == nil {
		return new(big.Int).Set(amount)
	}
	return new(big.Int).Add(current, amount)
}

func cloneBalances(src map[common.Address]*big.Int) map[common.Address]*big.Int {
	clone := make(map[common.Address]*big.Int, len(src))
	for account, balance := range src {
		clone[account] = new(big.Int).Set(balance)
	}
	return clone
}

func cloneTokenBalances(src map[common.Address]map[common.Address]*big.Int) map[common.Address]map[common.Address]*big.Int {
	clone := make(map[common.Address]map[common.Address]*big.Int, len(src))
	for token, holders := range src {
		clone[token] = cloneBalances(holders)
	}
	return clone
}
