// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// SelectPayment consumes pool front to back until the selected value covers
// required. The pool is expected in SortByValueDesc order, which makes the
// selection largest-first with ties broken by pool order. Selecting twice
// from the same pool yields the same inputs.
func SelectPayment(pool []SpendableOutput,
	required btcutil.Amount) (*PaymentSelection, error) {

	var poolTotal btcutil.Amount
	for _, out := range pool {
		poolTotal += out.Value
	}
	if poolTotal < required {
		return nil, swapError(ErrInsufficientFunds, fmt.Sprintf("payment "+
			"outputs total %v, need %v", poolTotal, required), nil)
	}

	sel := &PaymentSelection{Required: required}
	for _, out := range pool {
		if sel.Total >= required && len(sel.Inputs) > 0 {
			break
		}
		sel.Inputs = append(sel.Inputs, out)
		sel.Total += out.Value
	}
	sel.Change = sel.Total - required

	log.Debugf("Selected %d payment inputs worth %v for %v (change %v)",
		len(sel.Inputs), sel.Total, required, sel.Change)

	return sel, nil
}
