// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package swap builds trustless swaps of an inscribed output for bitcoin out of
two partially signed bitcoin transactions (BIP 174).

Listing

The seller signs a transaction with exactly one input, the output holding the
artifact, and exactly one output paying the price. The signature uses
SIGHASH_SINGLE|SIGHASH_ANYONECANPAY, so it commits to that input and to the
output at the same index and to nothing else.

Purchase

The buyer lays out the combined transaction as

	inputs:  anchor, artifact, payment...
	outputs: artifact+anchor value -> buyer, price -> seller,
	         anchor value -> buyer, change -> buyer

Placing a small anchor output first keeps the inscribed sat in the first
output and moves the seller's input and output to index 1, where the
seller's signature still covers the payment it agreed to. The buyer signs
its own inputs with SIGHASH_ALL.

Collaborators

Keys, signing, finalization and broadcast belong to a NodeWallet. Knowledge
of which outputs carry artifacts belongs to a MetadataService. Nothing in
this package keeps state across trades.
*/
package swap
