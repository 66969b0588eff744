// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// SpendableOutput is a snapshot of an unspent output reported by a wallet.
type SpendableOutput struct {
	OutPoint      wire.OutPoint
	Value         btcutil.Amount
	Address       btcutil.Address
	PkScript      []byte
	Confirmations int64
}

// InscriptionRecord is the resolved location of an artifact. It goes stale
// as soon as OutPoint is spent and must be resolved again for every trade.
type InscriptionRecord struct {
	ID       string
	OutPoint wire.OutPoint

	// Offset is the position of the inscribed sat inside the output.
	Offset uint64

	// Owner is the address controlling OutPoint.
	Owner btcutil.Address
}

// Location is one location report for an artifact as returned by a
// MetadataService.
type Location struct {
	OutPoint wire.OutPoint
	Offset   uint64
	Address  string
}

// ListingOffer is the seller's half of a swap: a packet with exactly one
// input (the artifact) and exactly one output (the price), authorized with
// SIGHASH_SINGLE|SIGHASH_ANYONECANPAY.
type ListingOffer struct {
	ArtifactID string
	OutPoint   wire.OutPoint
	Price      btcutil.Amount
	Packet     *psbt.Packet
}

// SellerOutput returns the output the seller authorized.
func (l *ListingOffer) SellerOutput() *wire.TxOut {
	return l.Packet.UnsignedTx.TxOut[0]
}

// Positions of the purchase transaction's inputs and outputs.
const (
	AnchorInputIndex   = 0
	ArtifactInputIndex = 1
	PaymentInputIndex  = 2

	ArtifactOutputIndex = 0
	SellerOutputIndex   = 1
	AnchorOutputIndex   = 2
	ChangeOutputIndex   = 3
)

// PurchaseBundle is the buyer's combined packet. Inputs are laid out as
// [anchor, artifact, payments...] and outputs as [artifact and anchor value
// to the buyer, seller output, new anchor to the buyer, change].
type PurchaseBundle struct {
	Packet *psbt.Packet

	// Fee is the absolute fee paid by the purchase.
	Fee btcutil.Amount

	// Change is the value of the change output, possibly zero.
	Change btcutil.Amount
}

// PaymentSelection is the result of payment output selection.
type PaymentSelection struct {
	Inputs   []SpendableOutput
	Total    btcutil.Amount
	Required btcutil.Amount
	Change   btcutil.Amount
}

// Partition is a wallet's output set split by the classifier.
type Partition struct {
	Ordinary  []SpendableOutput
	Protected []SpendableOutput

	// LookupFailures counts outputs placed in Protected because the
	// metadata service could not be asked about them.
	LookupFailures int
}

// SortByValueDesc orders outputs by value, largest first. Outputs of equal
// value keep their relative order.
func SortByValueDesc(outs []SpendableOutput) {
	sort.SliceStable(outs, func(i, j int) bool {
		return outs[i].Value > outs[j].Value
	})
}

// Without returns a copy of outs that leaves out the output at op.
func Without(outs []SpendableOutput, op wire.OutPoint) []SpendableOutput {
	res := make([]SpendableOutput, 0, len(outs))
	for _, out := range outs {
		if out.OutPoint == op {
			continue
		}
		res = append(res, out)
	}
	return res
}
