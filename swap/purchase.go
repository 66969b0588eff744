// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// PurchaseRequest is everything the buyer side needs to assemble a purchase.
type PurchaseRequest struct {
	// Listing is the seller's authorized listing.
	Listing *ListingOffer

	// Price is the price the buyer agreed to pay.
	Price btcutil.Amount

	// Anchor is the buyer's anchor output, spent as input 0.
	Anchor SpendableOutput

	// Payment holds the selected payment inputs.
	Payment *PaymentSelection

	// ReceiveScript receives the artifact and the new anchor. It
	// defaults to the anchor's script.
	ReceiveScript []byte

	// ChangeScript receives the change. It defaults to ReceiveScript.
	ChangeScript []byte
}

// receiveScript returns the script the artifact and new anchor are paid to.
func (r *PurchaseRequest) receiveScript() []byte {
	if len(r.ReceiveScript) > 0 {
		return r.ReceiveScript
	}
	return r.Anchor.PkScript
}

// changeScript returns the script change is paid to.
func (r *PurchaseRequest) changeScript() []byte {
	if len(r.ChangeScript) > 0 {
		return r.ChangeScript
	}
	return r.receiveScript()
}

// BuildPurchase lays out the unsigned purchase packet. The artifact input is
// copied from the listing along with the seller's authorization, the seller
// output is copied verbatim, and prevTxs must hold the transactions of the
// anchor and every payment input.
func (a *Assembler) BuildPurchase(req *PurchaseRequest,
	prevTxs map[chainhash.Hash]*wire.MsgTx) (*PurchaseBundle, error) {

	if err := ValidateListing(req.Listing, req.Price); err != nil {
		return nil, err
	}
	if req.Payment == nil || len(req.Payment.Inputs) == 0 {
		return nil, swapError(ErrInsufficientFunds, "no payment inputs "+
			"selected", nil)
	}

	required := a.policy.RequiredPayment(req.Price)
	if req.Payment.Total < required {
		return nil, swapError(ErrInsufficientFunds, fmt.Sprintf("payment "+
			"inputs total %v, need %v", req.Payment.Total,
			required), nil)
	}
	change := req.Payment.Total - required

	listingTx := req.Listing.Packet.UnsignedTx
	sellerOut := listingTx.TxOut[0]
	artifactVal := artifactValue(req.Listing)
	receive := req.receiveScript()

	tx := wire.NewMsgTx(listingTx.Version)
	tx.LockTime = listingTx.LockTime

	tx.AddTxIn(wire.NewTxIn(&req.Anchor.OutPoint, nil, nil))
	artifactIn := *listingTx.TxIn[0]
	artifactIn.SignatureScript = nil
	artifactIn.Witness = nil
	tx.AddTxIn(&artifactIn)
	for i := range req.Payment.Inputs {
		tx.AddTxIn(wire.NewTxIn(
			&req.Payment.Inputs[i].OutPoint, nil, nil,
		))
	}

	tx.AddTxOut(wire.NewTxOut(
		int64(artifactVal+req.Anchor.Value), receive,
	))
	tx.AddTxOut(wire.NewTxOut(
		sellerOut.Value, append([]byte{}, sellerOut.PkScript...),
	))
	tx.AddTxOut(wire.NewTxOut(int64(a.policy.AnchorValue), receive))
	tx.AddTxOut(wire.NewTxOut(int64(change), req.changeScript()))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	packet.Inputs[ArtifactInputIndex] = req.Listing.Packet.Inputs[0]
	packet.Outputs[SellerOutputIndex] = req.Listing.Packet.Outputs[0]

	buyerInputs := append(
		[]SpendableOutput{req.Anchor}, req.Payment.Inputs...,
	)
	for i, out := range buyerInputs {
		idx := i + 1
		if i == 0 {
			idx = AnchorInputIndex
		}

		prevTx, ok := prevTxs[out.OutPoint.Hash]
		if !ok || int(out.OutPoint.Index) >= len(prevTx.TxOut) {
			return nil, swapError(ErrCollaboratorUnavailable,
				fmt.Sprintf("missing previous transaction "+
					"for %v", out.OutPoint), nil)
		}
		decorateInput(&packet.Inputs[idx], prevTx, out.OutPoint.Index)
		packet.Inputs[idx].SighashType = txscript.SigHashAll
	}

	bundle := &PurchaseBundle{
		Packet: packet,
		Fee:    a.policy.PurchaseFee(),
		Change: change,
	}

	log.Debugf("Built purchase %v: %d inputs, fee %v, change %v, "+
		"worst case vsize %d", tx.TxHash(), len(tx.TxIn), bundle.Fee,
		change, WorstCaseVSize(packet))

	return bundle, nil
}

// AssemblePurchase validates the listing, builds the purchase and has the
// buyer's wallet authorize its own inputs with SIGHASH_ALL. The returned
// bundle carries the authorized packet, ready to be finalized.
func (a *Assembler) AssemblePurchase(ctx context.Context, buyer NodeWallet,
	req *PurchaseRequest) (*PurchaseBundle, error) {

	// Nothing is fetched or signed for a listing we would reject anyway.
	if err := ValidateListing(req.Listing, req.Price); err != nil {
		return nil, err
	}

	prevTxs := make(map[chainhash.Hash]*wire.MsgTx)
	buyerInputs := []SpendableOutput{req.Anchor}
	if req.Payment != nil {
		buyerInputs = append(buyerInputs, req.Payment.Inputs...)
	}
	for _, out := range buyerInputs {
		hash := out.OutPoint.Hash
		if _, ok := prevTxs[hash]; ok {
			continue
		}
		prevTx, err := buyer.GetTransaction(ctx, &hash)
		if err != nil {
			return nil, collaboratorError("fetch payment transaction",
				err)
		}
		prevTxs[hash] = prevTx
	}

	bundle, err := a.BuildPurchase(req, prevTxs)
	if err != nil {
		return nil, err
	}

	signed, err := buyer.AuthorizePartial(
		ctx, bundle.Packet, txscript.SigHashAll,
	)
	if err != nil {
		return nil, collaboratorError("authorize purchase", err)
	}
	if err := checkPurchaseAuthorization(bundle.Packet, signed); err != nil {
		return nil, err
	}
	bundle.Packet = signed

	log.Infof("Assembled purchase %v for artifact %s",
		signed.UnsignedTx.TxHash(), req.Listing.ArtifactID)

	return bundle, nil
}

// checkPurchaseAuthorization compares the packet handed to the buyer's
// signer with the one it returned.
func checkPurchaseAuthorization(unsigned, signed *psbt.Packet) error {
	if signed == nil || signed.UnsignedTx == nil ||
		len(signed.Inputs) != len(unsigned.Inputs) ||
		len(signed.UnsignedTx.TxOut) != len(unsigned.UnsignedTx.TxOut) {

		return swapError(ErrInvalidAuthorization, "buyer wallet "+
			"returned a packet of a different shape", nil)
	}

	if !psbt.TxOutsEqual(
		signed.UnsignedTx.TxOut[SellerOutputIndex],
		unsigned.UnsignedTx.TxOut[SellerOutputIndex],
	) {

		return swapError(ErrPriceMismatch, "buyer wallet modified the "+
			"seller output", nil)
	}

	if signed.UnsignedTx.TxHash() != unsigned.UnsignedTx.TxHash() {
		return swapError(ErrInvalidAuthorization, "buyer wallet "+
			"returned a different purchase transaction", nil)
	}

	if !sameAuthorization(
		&signed.Inputs[ArtifactInputIndex],
		&unsigned.Inputs[ArtifactInputIndex],
	) {

		return swapError(ErrAuthorizationAltered, "artifact input "+
			"authorization was changed by the buyer wallet", nil)
	}

	for i := range signed.Inputs {
		if i == ArtifactInputIndex {
			continue
		}
		if !isAuthorized(&signed.Inputs[i]) {
			return swapError(ErrIncompleteAuthorization, fmt.Sprintf(
				"purchase input %d (%v) is not authorized", i,
				signed.UnsignedTx.TxIn[i].PreviousOutPoint), nil)
		}
	}

	return nil
}
