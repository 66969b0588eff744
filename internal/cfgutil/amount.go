// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// AmountFlag embeds a btcutil.Amount and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field.  Values
// are given in BTC and must be representable in whole satoshis.
type AmountFlag struct {
	btcutil.Amount
}

// NewAmountFlag creates an AmountFlag with a default btcutil.Amount.
func NewAmountFlag(defaultValue btcutil.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return a.Amount.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	amount, err := ParseBTC(value)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}

// ParseBTC parses a decimal BTC string into an exact amount of satoshis.
// Going through a float64 would turn prices like 0.0001234 into 12339 sat,
// so the string is parsed as a decimal and rejected when it carries more
// precision than a satoshi.
func ParseBTC(value string) (btcutil.Amount, error) {
	value = strings.TrimSpace(strings.TrimSuffix(value, " BTC"))
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	sats := d.Shift(8)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-satoshi precision",
			value)
	}
	if sats.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", value)
	}
	if sats.GreaterThan(decimal.NewFromInt(btcutil.MaxSatoshi)) {
		return 0, fmt.Errorf("amount %q exceeds the maximum supply",
			value)
	}

	return btcutil.Amount(sats.IntPart()), nil
}
