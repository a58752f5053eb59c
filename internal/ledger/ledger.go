// Package ledger abstracts the execution substrate the engine runs against:
// balance reads, code presence, token metadata, and the primitive fund
// movements a command compiles down to. The substrate guarantees that a
// top-level invocation is serialized and all-or-nothing; the engine relies on
// Snapshot/Revert to discard every effect of a failed invocation.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata is the self-reported metadata of a fungible token.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// SwapParams carries one exchange request to a venue. AmountSpecified is the
// exact input amount; SqrtPriceLimit is the conservative worst-price bound
// for the trade direction, not a precise limit.
type SwapParams struct {
	Recipient       common.Address
	ZeroForOne      bool
	AmountSpecified *big.Int
	SqrtPriceLimit  *big.Int
	Data            []byte
}

// SwapCallback is the synchronous funding continuation a venue invokes
// mid-swap, before Swap returns. caller is the account the substrate observed
// making the callback; handlers must authenticate it before moving any funds.
// Deltas are signed from the venue's perspective: positive means the venue is
// owed that asset, negative means it paid it out.
type SwapCallback func(ctx context.Context, caller common.Address, amount0Delta, amount1Delta *big.Int, data []byte) error

// Reader is the read-only query surface of the substrate.
type Reader interface {
	// CodeAt reports the deployed code of an account; venues with no code
	// are treated as absent by routing.
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error)
	TokenTotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
}

// Executor is the mutation surface of the substrate. Implementations are
// serialized by the caller; a Snapshot taken before an invocation and
// reverted on failure must discard every effect, including those performed
// inside a swap callback.
type Executor interface {
	TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error
	TransferToken(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	// Wrap converts native funds held by owner into the wrapped token form;
	// Unwrap is the inverse. Venues only speak the wrapped form.
	Wrap(ctx context.Context, owner common.Address, amount *big.Int) error
	Unwrap(ctx context.Context, owner common.Address, amount *big.Int) error
	// Swap asks the venue at pool to settle params. The venue invokes cb
	// synchronously before Swap returns. The returned deltas are signed
	// balance changes from the venue's perspective.
	Swap(ctx context.Context, pool common.Address, params SwapParams, cb SwapCallback) (amount0, amount1 *big.Int, err error)
	Snapshot() int
	Revert(id int)
	// Discard releases a snapshot that is no longer needed, keeping the
	// effects performed since it was taken. Every Snapshot must be paired
	// with exactly one Revert or Discard.
	Discard(id int)
}

// Substrate is the full execution substrate contract.
type Substrate interface {
	Reader
	Executor
}
