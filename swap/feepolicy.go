// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Default fee policy values. The size figures are fixed approximations of a
// legacy input, a P2PKH output and the transaction header.
const (
	DefaultFeeRate         btcutil.Amount = 1
	DefaultInputVSize                     = 180
	DefaultOutputVSize                    = txsizes.P2PKHOutputSize
	DefaultOverheadVSize                  = 10
	DefaultAnchorValue     btcutil.Amount = 1000
	DefaultPurchaseInputs                 = 2
	DefaultPurchaseOutputs                = 3
)

// FeePolicy turns fixed size approximations into absolute fees. No fee rate
// is ever queried from the network.
type FeePolicy struct {
	// FeeRate is the fee rate in satoshis per virtual byte.
	FeeRate btcutil.Amount

	InputVSize    int
	OutputVSize   int
	OverheadVSize int

	// AnchorValue is both the anchor threshold and the value of every
	// anchor output created.
	AnchorValue btcutil.Amount

	// PurchaseInputs and PurchaseOutputs shape the purchase fee
	// estimate.
	PurchaseInputs  int
	PurchaseOutputs int
}

// DefaultFeePolicy returns the policy used when nothing is configured.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		FeeRate:         DefaultFeeRate,
		InputVSize:      DefaultInputVSize,
		OutputVSize:     DefaultOutputVSize,
		OverheadVSize:   DefaultOverheadVSize,
		AnchorValue:     DefaultAnchorValue,
		PurchaseInputs:  DefaultPurchaseInputs,
		PurchaseOutputs: DefaultPurchaseOutputs,
	}
}

// Validate checks that the policy can produce standard transactions.
func (p *FeePolicy) Validate() error {
	switch {
	case p.FeeRate <= 0:
		return swapError(ErrInvalidPolicy, fmt.Sprintf("fee rate %d "+
			"sat/vB is not positive", int64(p.FeeRate)), nil)

	case p.InputVSize <= 0 || p.OutputVSize <= 0 || p.OverheadVSize < 0:
		return swapError(ErrInvalidPolicy, fmt.Sprintf("invalid size "+
			"estimates in=%d out=%d overhead=%d", p.InputVSize,
			p.OutputVSize, p.OverheadVSize), nil)

	case p.PurchaseInputs <= 0 || p.PurchaseOutputs <= 0:
		return swapError(ErrInvalidPolicy, "purchase fee estimate "+
			"needs at least one input and one output", nil)

	case txrules.IsDustAmount(p.AnchorValue, txsizes.P2PKHPkScriptSize,
		txrules.DefaultRelayFeePerKb):

		return swapError(ErrInvalidPolicy, fmt.Sprintf("anchor value "+
			"%v is dust", p.AnchorValue), nil)
	}

	return nil
}

// Fee returns the fee for a transaction with the given number of inputs and
// outputs.
func (p *FeePolicy) Fee(numInputs, numOutputs int) btcutil.Amount {
	vsize := numInputs*p.InputVSize + numOutputs*p.OutputVSize +
		p.OverheadVSize

	return p.FeeRate * btcutil.Amount(vsize)
}

// SplitFee returns the fee of an anchor split: one input, two outputs.
func (p *FeePolicy) SplitFee() btcutil.Amount {
	return p.Fee(1, 2)
}

// PurchaseFee returns the fee budgeted for the purchase transaction.
func (p *FeePolicy) PurchaseFee() btcutil.Amount {
	return p.Fee(p.PurchaseInputs, p.PurchaseOutputs)
}

// RequiredPayment returns the amount the buyer's payment inputs must cover:
// the price, the replacement anchor and the purchase fee.
func (p *FeePolicy) RequiredPayment(price btcutil.Amount) btcutil.Amount {
	return price + p.AnchorValue + p.PurchaseFee()
}

// WorstCaseVSize estimates the signed virtual size of a packet from the
// script types of its inputs.
func WorstCaseVSize(packet *psbt.Packet) int {
	var p2pkh, p2tr, p2wpkh, nested int
	for i, txIn := range packet.UnsignedTx.TxIn {
		utxo := inputUtxo(&packet.Inputs[i], txIn.PreviousOutPoint.Index)
		if utxo == nil {
			p2pkh++
			continue
		}

		switch {
		case txscript.IsPayToTaproot(utxo.PkScript):
			p2tr++
		case txscript.IsPayToWitnessPubKeyHash(utxo.PkScript):
			p2wpkh++
		case txscript.IsPayToScriptHash(utxo.PkScript):
			nested++
		default:
			p2pkh++
		}
	}

	return txsizes.EstimateVirtualSize(
		p2pkh, p2tr, p2wpkh, nested, packet.UnsignedTx.TxOut, 0,
	)
}
