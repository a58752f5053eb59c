// Package amount implements fixed-precision amount parsing and the string
// and hex conversions shared by the command grammar and the payload codec.
package amount

import (
	"encoding/hex"
	"math/big"
	"strings"

	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

var ten = big.NewInt(10)

// ParseUnits converts a decimal numeral string into a scaled integer with the
// given precision. The scan runs left to right: digits accumulate via
// result = result*10 + digit, at most one decimal point is permitted, and
// fractional digits beyond the precision are truncated, never rounded. If
// fewer fractional digits are supplied than the precision requires, the
// result is scaled up to full precision. Empty and all-fractional input
// (".5") are accepted.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	result := new(big.Int)
	digit := new(big.Int)
	seenPoint := false
	fracDigits := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if seenPoint {
				return nil, xerrors.New(xerrors.CodeInvalidCharacter, "second decimal point in amount",
					xerrors.WithMetadata("input", s))
			}
			seenPoint = true
			continue
		}
		if c < '0' || c > '9' {
			return nil, xerrors.New(xerrors.CodeInvalidCharacter, "amount contains a non-digit character",
				xerrors.WithMetadata("input", s))
		}
		if seenPoint {
			if fracDigits == int(decimals) {
				// Precision reached: remaining fractional digits are dropped.
				break
			}
			fracDigits++
		}
		result.Mul(result, ten)
		result.Add(result, digit.SetInt64(int64(c-'0')))
	}

	if fracDigits < int(decimals) {
		result.Mul(result, pow10(int(decimals)-fracDigits))
	}
	return result, nil
}

// FormatUnits renders a scaled integer back into its decimal numeral form,
// trimming trailing fractional zeros. It is the left inverse of ParseUnits
// for canonically formatted amounts.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	if decimals == 0 {
		return v.String()
	}
	scale := pow10(int(decimals))
	whole, frac := new(big.Int).QuoRem(new(big.Int).Set(v), scale, new(big.Int))

	fracText := frac.String()
	if len(fracText) < int(decimals) {
		fracText = strings.Repeat("0", int(decimals)-len(fracText)) + fracText
	}
	fracText = strings.TrimRight(fracText, "0")
	if fracText == "" {
		return whole.String()
	}
	return whole.String() + "." + fracText
}

// DecimalString renders an unsigned integer in base ten with no leading
// zeros.
func DecimalString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.Text(10)
}

// HexToBytes converts a lowercase hex string, with or without the 0x prefix,
// into its binary form. Odd-length or malformed input is a syntax error.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, xerrors.New(xerrors.CodeInvalidSyntax, "odd-length hex string")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidSyntax, err, "malformed hex string")
	}
	return raw, nil
}

// BytesToAddress converts binary input into a fixed-width account identifier,
// rejecting input shorter than the expected byte width.
func BytesToAddress(b []byte) (common.Address, error) {
	if len(b) < common.AddressLength {
		return common.Address{}, xerrors.New(xerrors.CodeInvalidSyntax, "input shorter than an account identifier")
	}
	return common.BytesToAddress(b), nil
}

// ParseAddress parses a 0x-prefixed hex account identifier from command text.
func ParseAddress(s string) (common.Address, error) {
	raw, err := HexToBytes(s)
	if err != nil {
		return common.Address{}, err
	}
	return BytesToAddress(raw)
}

// AddressHex renders an account identifier as canonical lowercase hex text.
func AddressHex(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr.Bytes())
}

// BytesHex renders arbitrary binary data as 0x-prefixed lowercase hex text.
func BytesHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}
