// Package asset resolves asset names to canonical identifiers and decimal
// precision. Lookup consults a fixed compiled table of common symbols first,
// then the governance-maintained dynamic alias table, then the token's own
// self-reported metadata.
package asset

import (
	"github.com/ethereum/go-ethereum/common"
)

// Native is the reserved sentinel identifier for the chain's native asset.
var Native = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// NativeDecimals is the fixed precision of the native asset.
const NativeDecimals uint8 = 18

// Mainnet identifiers for the assets in the compiled table.
var (
	WETH   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	USDC   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	DAI    = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	WBTC   = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	WstETH = common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0")
	RETH   = common.HexToAddress("0xae78736Cd615f374D3085123A210448E74Fc6393")
)

// Info is a resolved asset: its canonical identifier, native decimal
// precision and lowercase display symbol.
type Info struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
}

// Native reports whether the asset is the chain's native asset.
func (i Info) Native() bool {
	return i.Address == Native
}

// builtins is the fixed compiled table of common asset symbols and synonyms,
// built once and never mutated.
var builtins = map[string]Info{
	"eth":     {Address: Native, Decimals: NativeDecimals, Symbol: "eth"},
	"ether":   {Address: Native, Decimals: NativeDecimals, Symbol: "eth"},
	"weth":    {Address: WETH, Decimals: 18, Symbol: "weth"},
	"usdc":    {Address: USDC, Decimals: 6, Symbol: "usdc"},
	"dai":     {Address: DAI, Decimals: 18, Symbol: "dai"},
	"wbtc":    {Address: WBTC, Decimals: 8, Symbol: "wbtc"},
	"btc":     {Address: WBTC, Decimals: 8, Symbol: "wbtc"},
	"bitcoin": {Address: WBTC, Decimals: 8, Symbol: "wbtc"},
	"wsteth":  {Address: WstETH, Decimals: 18, Symbol: "wsteth"},
	"steth":   {Address: WstETH, Decimals: 18, Symbol: "wsteth"},
	"lido":    {Address: WstETH, Decimals: 18, Symbol: "wsteth"},
	"reth":    {Address: RETH, Decimals: 18, Symbol: "reth"},
}

// builtinNames is the reverse display mapping for the compiled table.
var builtinNames = func() map[common.Address]Info {
	names := make(map[common.Address]Info, len(builtins))
	for _, info := range builtins {
		names[info.Address] = info
	}
	return names
}()

// Builtin looks an asset name up in the compiled table only.
func Builtin(name string) (Info, bool) {
	info, ok := builtins[name]
	return info, ok
}
