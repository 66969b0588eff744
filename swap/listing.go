// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Assembler builds the two halves of a swap.
type Assembler struct {
	policy FeePolicy
}

// NewAssembler returns an Assembler using the given fee policy.
func NewAssembler(policy FeePolicy) *Assembler {
	return &Assembler{policy: policy}
}

// BuildListing returns the seller's unsigned listing packet: the artifact
// output as the only input, and price paid to payTo as the only output.
func (a *Assembler) BuildListing(rec *InscriptionRecord, prevTx *wire.MsgTx,
	price btcutil.Amount, payTo btcutil.Address) (*psbt.Packet, error) {

	if prevTx.TxHash() != rec.OutPoint.Hash ||
		int(rec.OutPoint.Index) >= len(prevTx.TxOut) {

		return nil, swapError(ErrMalformedListing, fmt.Sprintf("previous "+
			"transaction does not contain artifact output %v",
			rec.OutPoint), nil)
	}
	if price <= 0 {
		return nil, swapError(ErrPriceMismatch, fmt.Sprintf("price %v "+
			"is not positive", price), nil)
	}

	payScript, err := txscript.PayToAddrScript(payTo)
	if err != nil {
		return nil, fmt.Errorf("unable to create payout script: %w", err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&rec.OutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(price), payScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	decorateInput(&packet.Inputs[0], prevTx, rec.OutPoint.Index)
	packet.Inputs[0].SighashType = SigHashListing

	return packet, nil
}

// CreateListing builds the listing for rec and has the seller's wallet
// authorize it with SIGHASH_SINGLE|SIGHASH_ANYONECANPAY.
func (a *Assembler) CreateListing(ctx context.Context, seller NodeWallet,
	rec *InscriptionRecord, price btcutil.Amount,
	payTo btcutil.Address) (*ListingOffer, error) {

	prevTx, err := seller.GetTransaction(ctx, &rec.OutPoint.Hash)
	if err != nil {
		return nil, collaboratorError("fetch artifact transaction", err)
	}

	packet, err := a.BuildListing(rec, prevTx, price, payTo)
	if err != nil {
		return nil, err
	}

	signed, err := seller.AuthorizePartial(ctx, packet, SigHashListing)
	if err != nil {
		return nil, collaboratorError("authorize listing", err)
	}
	if signed.UnsignedTx.TxHash() != packet.UnsignedTx.TxHash() {
		return nil, swapError(ErrInvalidAuthorization, "seller wallet "+
			"returned a different listing transaction", nil)
	}

	offer := &ListingOffer{
		ArtifactID: rec.ID,
		OutPoint:   rec.OutPoint,
		Price:      price,
		Packet:     signed,
	}
	if err := ValidateListing(offer, price); err != nil {
		return nil, err
	}

	log.Infof("Listed artifact %s at %v for %v", rec.ID, rec.OutPoint,
		price)

	return offer, nil
}

// ValidateListing checks that offer has the listing shape and pays exactly
// the agreed price.
func ValidateListing(offer *ListingOffer, agreed btcutil.Amount) error {
	if offer == nil || offer.Packet == nil || offer.Packet.UnsignedTx == nil {
		return swapError(ErrMalformedListing, "listing has no packet",
			nil)
	}

	tx := offer.Packet.UnsignedTx
	switch {
	case len(tx.TxIn) != 1 || len(offer.Packet.Inputs) != 1:
		return swapError(ErrMalformedListing, fmt.Sprintf("listing has "+
			"%d inputs, want 1", len(tx.TxIn)), nil)

	case len(tx.TxOut) != 1 || len(offer.Packet.Outputs) != 1:
		return swapError(ErrMalformedListing, fmt.Sprintf("listing has "+
			"%d outputs, want 1", len(tx.TxOut)), nil)

	case tx.TxIn[0].PreviousOutPoint != offer.OutPoint:
		return swapError(ErrMalformedListing, fmt.Sprintf("listing "+
			"spends %v, not artifact output %v",
			tx.TxIn[0].PreviousOutPoint, offer.OutPoint), nil)
	}

	in := &offer.Packet.Inputs[0]
	if inputUtxo(in, offer.OutPoint.Index) == nil {
		return swapError(ErrMalformedListing, "listing input carries "+
			"no previous output", nil)
	}

	hashTypes, err := inputSigHashTypes(in)
	if err != nil {
		return swapError(ErrMalformedListing, "unreadable listing "+
			"authorization", err)
	}
	if len(hashTypes) == 0 {
		return swapError(ErrMalformedListing, "listing input is not "+
			"authorized", nil)
	}
	for _, t := range hashTypes {
		if t != SigHashListing {
			return swapError(ErrMalformedListing, fmt.Sprintf(
				"listing signed with sighash type %#x, want "+
					"%#x", uint32(t), uint32(SigHashListing)),
				nil)
		}
	}

	if offer.Price != agreed ||
		btcutil.Amount(tx.TxOut[0].Value) != agreed {

		return swapError(ErrPriceMismatch, fmt.Sprintf("listing pays "+
			"%v, agreed price is %v",
			btcutil.Amount(tx.TxOut[0].Value), agreed), nil)
	}

	return nil
}

// artifactValue returns the value of the artifact output a listing spends.
func artifactValue(offer *ListingOffer) btcutil.Amount {
	utxo := inputUtxo(&offer.Packet.Inputs[0], offer.OutPoint.Index)
	return btcutil.Amount(utxo.Value)
}
