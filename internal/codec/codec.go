// Package codec translates between parsed commands and on-chain call
// payloads, in both directions.
//
// The forward path encodes a send intent as an account-abstraction
// execute call: selector, target account and native value, followed by
// an optional nested ERC-20 transfer call. The reverse path decodes
// such a payload back into command text so a signer can read what a
// transaction actually does. Verification re-encodes a stated intent
// and compares it byte for byte against a supplied operation payload.
package codec

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"Intent-Chain/internal/amount"
	"Intent-Chain/internal/asset"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/intent"
	"Intent-Chain/internal/naming"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// executeSelector identifies execute(address,uint256,bytes).
var executeSelector = [4]byte{0xb6, 0x1d, 0x27, 0xf6}

// transferSelector identifies the ERC-20 transfer(address,uint256).
var transferSelector = [4]byte{0xa9, 0x05, 0x9c, 0xbb}

// swapSelector identifies the venue's swap(address,bool,int256,uint160,bytes).
var swapSelector = [4]byte{0x12, 0x8a, 0xcb, 0x08}

var (
	addressType, _ = abi.NewType("address", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	bytesType, _   = abi.NewType("bytes", "", nil)
	boolType, _    = abi.NewType("bool", "", nil)
	int256Type, _  = abi.NewType("int256", "", nil)
	uint160Type, _ = abi.NewType("uint160", "", nil)

	executeArguments = abi.Arguments{
		{Name: "target", Type: addressType},
		{Name: "value", Type: uint256Type},
		{Name: "data", Type: bytesType},
	}
	transferArguments = abi.Arguments{
		{Name: "to", Type: addressType},
		{Name: "amount", Type: uint256Type},
	}
	swapArguments = abi.Arguments{
		{Name: "recipient", Type: addressType},
		{Name: "zeroForOne", Type: boolType},
		{Name: "amountSpecified", Type: int256Type},
		{Name: "sqrtPriceLimitX96", Type: uint160Type},
		{Name: "data", Type: bytesType},
	}
)

// EncodeExecute packs an execute(address,uint256,bytes) call.
func EncodeExecute(target common.Address, value *big.Int, data []byte) []byte {
	packed, err := executeArguments.Pack(target, value, data)
	if err != nil {
		// Static argument shapes make packing infallible.
		panic(err)
	}
	return append(executeSelector[:], packed...)
}

// EncodeTransfer packs an ERC-20 transfer(address,uint256) call.
func EncodeTransfer(to common.Address, value *big.Int) []byte {
	packed, err := transferArguments.Pack(to, value)
	if err != nil {
		panic(err)
	}
	return append(transferSelector[:], packed...)
}

// EncodeSend builds the full execute payload for a send. The native
// sentinel asset moves value directly; any other asset nests a
// transfer call against the token with zero native value.
func EncodeSend(to common.Address, value *big.Int, assetAddr common.Address) []byte {
	if assetAddr == asset.Native {
		return EncodeExecute(to, value, []byte{})
	}
	return EncodeExecute(assetAddr, new(big.Int), EncodeTransfer(to, value))
}

// EncodeSwap builds the execute payload that settles a routed swap: the
// venue is the execute target with zero native value, and the nested
// call carries the recipient, direction, exact input and worst-price
// bound. The funding side channel stays empty; it is a settlement-time
// concern, not part of the stated operation.
func EncodeSwap(pool, recipient common.Address, zeroForOne bool, amountIn, priceLimit *big.Int) []byte {
	packed, err := swapArguments.Pack(recipient, zeroForOne, amountIn, priceLimit, []byte{})
	if err != nil {
		panic(err)
	}
	return EncodeExecute(pool, new(big.Int), append(swapSelector[:], packed...))
}

// Translator turns commands into payloads and payloads back into
// command text. It needs the asset registry for alias and precision
// lookups and a name resolver for non-hex recipients.
type Translator struct {
	registry *asset.Registry
	names    naming.Resolver
}

// NewTranslator wires a translator over the given registry and resolver.
func NewTranslator(registry *asset.Registry, names naming.Resolver) *Translator {
	return &Translator{registry: registry, names: names}
}

// Account resolves a command object word to an account: hex literals
// parse directly, anything else goes through the name resolver.
func (t *Translator) Account(ctx context.Context, word string) (common.Address, error) {
	if strings.HasPrefix(word, "0x") {
		return amount.ParseAddress(word)
	}
	if t.names == nil {
		return common.Address{}, xerrors.New(xerrors.CodeNotFound, "no name resolver configured for: "+word)
	}
	res, err := t.names.Resolve(ctx, word)
	if err != nil {
		return common.Address{}, err
	}
	return res.Account, nil
}

// EncodeIntent resolves a parsed send and produces its payload.
func (t *Translator) EncodeIntent(ctx context.Context, send *intent.Send) ([]byte, error) {
	info, err := t.registry.Resolve(ctx, send.Asset)
	if err != nil {
		return nil, err
	}
	value, err := amount.ParseUnits(send.Amount, info.Decimals)
	if err != nil {
		return nil, err
	}
	to, err := t.Account(ctx, send.To)
	if err != nil {
		return nil, err
	}
	return EncodeSend(to, value, info.Address), nil
}

// Decode reconstructs the command text equivalent to a transfer
// payload. Payloads whose nested call is not an ERC-20 transfer fail
// with an INVALID_SELECTOR error.
func (t *Translator) Decode(ctx context.Context, payload []byte) (string, error) {
	if len(payload) < 4 || !bytes.Equal(payload[:4], executeSelector[:]) {
		return "", xerrors.New(xerrors.CodeInvalidSelector, "payload is not an execute call")
	}
	fields, err := executeArguments.Unpack(payload[4:])
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidSyntax, err, "malformed execute payload")
	}
	target := fields[0].(common.Address)
	value := fields[1].(*big.Int)
	data := fields[2].([]byte)

	if value.Sign() > 0 {
		return fmt.Sprintf("send %s eth to %s",
			amount.FormatUnits(value, asset.NativeDecimals),
			amount.AddressHex(target)), nil
	}
	if len(data) < 4 || !bytes.Equal(data[:4], transferSelector[:]) {
		return "", xerrors.New(xerrors.CodeInvalidSelector, "nested call is not an asset transfer")
	}
	nested, err := transferArguments.Unpack(data[4:])
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidSyntax, err, "malformed transfer payload")
	}
	to := nested[0].(common.Address)
	tokenValue := nested[1].(*big.Int)

	alias, err := t.registry.DisplayName(ctx, target)
	if err != nil {
		return "", err
	}
	decimals, err := t.registry.Decimals(ctx, target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("send %s %s to %s",
		amount.FormatUnits(tokenValue, decimals), alias, amount.AddressHex(to)), nil
}

// Verify re-derives the payload a stated intent should produce and
// compares it to the supplied operation by exact length and content.
func (t *Translator) Verify(ctx context.Context, intentText string, operation []byte) (bool, error) {
	cmd, err := intent.Parse(intentText)
	if err != nil {
		return false, err
	}
	if cmd.Action != intent.ActionSend {
		return false, xerrors.New(xerrors.CodeInvalidSyntax, "only send intents carry a verifiable transfer payload")
	}
	expected, err := t.EncodeIntent(ctx, cmd.Send)
	if err != nil {
		return false, err
	}
	if len(expected) != len(operation) {
		return false, nil
	}
	return bytes.Equal(expected, operation), nil
}
