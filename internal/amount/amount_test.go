package amount

import (
	"errors"
	"math/big"
	"testing"

	xerrors "Intent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseUnitsScalesUp(t *testing.T) {
	got, err := ParseUnits("20.2", 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want, _ := new(big.Int).SetString("20200000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseUnitsTruncatesExcessDigits(t *testing.T) {
	long, err := ParseUnits("20.23345", 4)
	if err != nil {
		t.Fatalf("parse long: %v", err)
	}
	short, err := ParseUnits("20.2334", 4)
	if err != nil {
		t.Fatalf("parse short: %v", err)
	}
	if long.Cmp(short) != 0 {
		t.Fatalf("expected truncation, got %s vs %s", long, short)
	}
}

func TestParseUnitsIntegerInput(t *testing.T) {
	got, err := ParseUnits("20", 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want, _ := new(big.Int).SetString("20000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseUnitsFractionalOnly(t *testing.T) {
	got, err := ParseUnits(".5", 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected 50, got %s", got)
	}
}

func TestParseUnitsEmptyInput(t *testing.T) {
	got, err := ParseUnits("", 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestParseUnitsRejectsInvalidCharacter(t *testing.T) {
	_, err := ParseUnits("12a.5", 18)
	if xerrors.CodeOf(err) != xerrors.CodeInvalidCharacter {
		t.Fatalf("expected INVALID_CHARACTER, got %v", err)
	}
}

func TestParseUnitsRejectsSecondPoint(t *testing.T) {
	_, err := ParseUnits("1.2.3", 18)
	if xerrors.CodeOf(err) != xerrors.CodeInvalidCharacter {
		t.Fatalf("expected INVALID_CHARACTER, got %v", err)
	}
}

func TestFormatUnitsRoundTrip(t *testing.T) {
	cases := []struct {
		text     string
		decimals uint8
	}{
		{"1", 18},
		{"20.2", 18},
		{"0.5", 6},
		{"2500", 18},
		{"0", 18},
	}
	for _, tc := range cases {
		parsed, err := ParseUnits(tc.text, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.text, err)
		}
		if got := FormatUnits(parsed, tc.decimals); got != tc.text {
			t.Fatalf("round trip %q: got %q", tc.text, got)
		}
	}
}

func TestHexToBytesRejectsOddLength(t *testing.T) {
	_, err := HexToBytes("0xabc")
	if xerrors.CodeOf(err) != xerrors.CodeInvalidSyntax {
		t.Fatalf("expected INVALID_SYNTAX, got %v", err)
	}
}

func TestBytesToAddressRejectsShortInput(t *testing.T) {
	_, err := BytesToAddress([]byte{0x01, 0x02})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidSyntax {
		t.Fatalf("expected INVALID_SYNTAX, got %v", err)
	}
}

func TestParseAddressAndHexRender(t *testing.T) {
	text := "0x1c0aa8ccd568d90d61659f060d1bfb1e6f855a20"
	addr, err := ParseAddress(text)
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if addr == (common.Address{}) {
		t.Fatal("expected non-zero address")
	}
	if got := AddressHex(addr); got != text {
		t.Fatalf("expected %s, got %s", text, got)
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	if _, err := ParseAddress("0xzz"); err == nil {
		t.Fatal("expected error for non-hex input")
	}
	var coded *xerrors.Error
	_, err := ParseAddress("vitalik")
	if !errors.As(err, &coded) {
		t.Fatalf("expected coded error, got %v", err)
	}
}
