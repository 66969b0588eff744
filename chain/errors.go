// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"fmt"
	"strings"
)

// RPCErr represents an error returned by bitcoind's RPC server.
type RPCErr uint32

const (
	// ErrUndefined is used when an error returned is not recognized. We
	// should gradually increase our error types to avoid returning this
	// error.
	ErrUndefined RPCErr = iota

	// ErrTxAlreadyInMempool is returned when a transaction is already in
	// the mempool.
	ErrTxAlreadyInMempool

	// ErrTxAlreadyKnown is used in the `reject` field from
	// `testmempoolaccept` and `sendrawtransaction` when a transaction is
	// already known to the node.
	ErrTxAlreadyKnown

	// ErrTxAlreadyConfirmed is returned when a transaction is already
	// confirmed in a block.
	ErrTxAlreadyConfirmed

	// ErrMissingInputs is returned when a transaction spends outputs
	// that are unknown or already spent.
	ErrMissingInputs

	// ErrMempoolConflict is returned when a transaction conflicts with a
	// transaction already in the mempool.
	ErrMempoolConflict

	// ErrMinRelayFeeNotMet is returned when a transaction pays less than
	// the node's minimum relay fee.
	ErrMinRelayFeeNotMet

	// ErrMempoolMinFeeNotMet is returned when the mempool is full and the
	// transaction pays less than its current minimum fee.
	ErrMempoolMinFeeNotMet

	// ErrDust is returned when a transaction has an output below the
	// dust limit.
	ErrDust

	// ErrNonStandard is returned when a transaction violates the node's
	// standardness rules.
	ErrNonStandard

	// errSentinel is used to indicate the end of the error list. This
	// should always be the last error code.
	errSentinel
)

// Error implements the error interface.
func (r RPCErr) Error() string {
	switch r {
	case ErrUndefined:
		return "undefined error"

	case ErrTxAlreadyInMempool:
		return "tx already in mempool"

	case ErrTxAlreadyKnown:
		return "tx already known"

	case ErrTxAlreadyConfirmed:
		return "tx already confirmed"

	case ErrMissingInputs:
		return "missing inputs"

	case ErrMempoolConflict:
		return "mempool conflict"

	case ErrMinRelayFeeNotMet:
		return "min relay fee not met"

	case ErrMempoolMinFeeNotMet:
		return "mempool min fee not met"

	case ErrDust:
		return "dust output"

	case ErrNonStandard:
		return "non standard transaction"
	}

	return "unknown error"
}

// bitcoindErrors maps bitcoind reject reasons to RPCErr values. The list is
// ordered so that more specific strings are tried first.
var bitcoindErrors = []struct {
	reason string
	err    RPCErr
}{
	{"txn-already-in-mempool", ErrTxAlreadyInMempool},
	{"txn-already-known", ErrTxAlreadyKnown},
	{"transaction already in block chain", ErrTxAlreadyConfirmed},
	{"transaction outputs already in utxo set", ErrTxAlreadyConfirmed},
	{"bad-txns-inputs-missingorspent", ErrMissingInputs},
	{"missing-inputs", ErrMissingInputs},
	{"txn-mempool-conflict", ErrMempoolConflict},
	{"mempool min fee not met", ErrMempoolMinFeeNotMet},
	{"min relay fee not met", ErrMinRelayFeeNotMet},
	{"dust", ErrDust},
	{"scriptpubkey", ErrNonStandard},
	{"non-mandatory-script-verify-flag", ErrNonStandard},
}

// MapRPCErr takes an error returned by bitcoind and maps it to one of the
// errors defined here. The returned error wraps the RPCErr and keeps the
// original message.
func MapRPCErr(rpcErr error) error {
	for _, e := range bitcoindErrors {
		if matchErrStr(rpcErr, e.reason) {
			return fmt.Errorf("%w: %v", e.err, rpcErr)
		}
	}

	return fmt.Errorf("%w: %v", ErrUndefined, rpcErr)
}

// matchErrStr takes an error returned from RPC client and matches it against
// the specified string. If the expected string pattern is found in the error
// passed, return true. Both the error strings are normalized before matching.
func matchErrStr(err error, s string) bool {
	if err == nil {
		return false
	}

	// Replace all dashes found in the error string with spaces.
	strippedErrStr := strings.ReplaceAll(err.Error(), "-", " ")

	// Replace all dashes found in the error string with spaces.
	strippedMatchStr := strings.ReplaceAll(s, "-", " ")

	// Match against the lowercase.
	return strings.Contains(
		strings.ToLower(strippedErrStr),
		strings.ToLower(strippedMatchStr),
	)
}
