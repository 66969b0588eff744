// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SigHashListing is the sighash type of the seller's listing signature. It
// commits to the artifact input and the output at the same index only.
const SigHashListing = txscript.SigHashSingle | txscript.SigHashAnyOneCanPay

// inputUtxo returns the output spent by a packet input, if known.
func inputUtxo(in *psbt.PInput, prevIndex uint32) *wire.TxOut {
	switch {
	case in.WitnessUtxo != nil:
		return in.WitnessUtxo

	case in.NonWitnessUtxo != nil &&
		int(prevIndex) < len(in.NonWitnessUtxo.TxOut):

		return in.NonWitnessUtxo.TxOut[prevIndex]
	}

	return nil
}

// decorateInput attaches the spent output to a packet input. Segwit outputs
// also carry the witness UTXO.
func decorateInput(in *psbt.PInput, prevTx *wire.MsgTx, prevIndex uint32) {
	utxo := prevTx.TxOut[prevIndex]
	in.NonWitnessUtxo = prevTx
	if txscript.IsWitnessProgram(utxo.PkScript) {
		in.WitnessUtxo = utxo
	}
}

// PrevOutputFetcher returns a txscript.PrevOutputFetcher built from the UTXO
// information in a packet.
func PrevOutputFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		utxo := inputUtxo(&packet.Inputs[idx], txIn.PreviousOutPoint.Index)
		if utxo == nil {
			continue
		}
		fetcher.AddPrevOut(txIn.PreviousOutPoint, utxo)
	}

	return fetcher
}

// isAuthorized reports whether a packet input carries any signature or final
// script.
func isAuthorized(in *psbt.PInput) bool {
	return len(in.PartialSigs) > 0 || len(in.TaprootKeySpendSig) > 0 ||
		len(in.TaprootScriptSpendSig) > 0 || len(in.FinalScriptSig) > 0 ||
		len(in.FinalScriptWitness) > 0
}

// sameAuthorization reports whether two packet inputs carry identical
// authorization material.
func sameAuthorization(a, b *psbt.PInput) bool {
	if !bytes.Equal(a.FinalScriptSig, b.FinalScriptSig) ||
		!bytes.Equal(a.FinalScriptWitness, b.FinalScriptWitness) ||
		!bytes.Equal(a.TaprootKeySpendSig, b.TaprootKeySpendSig) {

		return false
	}

	if len(a.PartialSigs) != len(b.PartialSigs) ||
		len(a.TaprootScriptSpendSig) != len(b.TaprootScriptSpendSig) {

		return false
	}
	for i := range a.PartialSigs {
		if !bytes.Equal(a.PartialSigs[i].PubKey, b.PartialSigs[i].PubKey) ||
			!bytes.Equal(a.PartialSigs[i].Signature,
				b.PartialSigs[i].Signature) {

			return false
		}
	}
	for i := range a.TaprootScriptSpendSig {
		if !bytes.Equal(a.TaprootScriptSpendSig[i].Signature,
			b.TaprootScriptSpendSig[i].Signature) {

			return false
		}
	}

	return true
}

// sigHashType returns the sighash type a serialized signature commits to.
// Anything that is not an ECDSA or Schnorr signature is ignored.
func sigHashType(sig []byte) (txscript.SigHashType, bool) {
	switch {
	case len(sig) == schnorr.SignatureSize:
		if _, err := schnorr.ParseSignature(sig); err != nil {
			return 0, false
		}
		return txscript.SigHashDefault, true

	case len(sig) == schnorr.SignatureSize+1:
		if _, err := schnorr.ParseSignature(sig[:64]); err == nil {
			return txscript.SigHashType(sig[64]), true
		}
	}

	if len(sig) < 2 {
		return 0, false
	}
	if _, err := ecdsa.ParseDERSignature(sig[:len(sig)-1]); err != nil {
		return 0, false
	}

	return txscript.SigHashType(sig[len(sig)-1]), true
}

// inputSigHashTypes collects the sighash type of every signature found on a
// packet input, in partial signatures as well as in final scripts.
func inputSigHashTypes(in *psbt.PInput) ([]txscript.SigHashType, error) {
	var candidates [][]byte
	for _, ps := range in.PartialSigs {
		candidates = append(candidates, ps.Signature)
	}
	if len(in.TaprootKeySpendSig) > 0 {
		candidates = append(candidates, in.TaprootKeySpendSig)
	}
	for _, ss := range in.TaprootScriptSpendSig {
		sig := ss.Signature
		if ss.SigHash != txscript.SigHashDefault {
			sig = append(append([]byte{}, sig...), byte(ss.SigHash))
		}
		candidates = append(candidates, sig)
	}

	if len(in.FinalScriptSig) > 0 {
		pushes, err := txscript.PushedData(in.FinalScriptSig)
		if err != nil {
			return nil, fmt.Errorf("unable to parse final script "+
				"sig: %w", err)
		}
		candidates = append(candidates, pushes...)
	}

	if len(in.FinalScriptWitness) > 0 {
		witness, err := parseWitness(in.FinalScriptWitness)
		if err != nil {
			return nil, fmt.Errorf("unable to parse final witness: "+
				"%w", err)
		}
		candidates = append(candidates, witness...)
	}

	var types []txscript.SigHashType
	for _, c := range candidates {
		if t, ok := sigHashType(c); ok {
			types = append(types, t)
		}
	}

	return types, nil
}

// parseWitness decodes a serialized witness stack.
func parseWitness(raw []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(raw)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > txscript.MaxStackSize {
		return nil, fmt.Errorf("witness item count %d too large", count)
	}

	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(
			r, 0, wire.MaxMessagePayload, "witness item",
		)
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}

	return witness, nil
}

// VerifyInput runs the script engine over one input of a signed
// transaction.
func VerifyInput(tx *wire.MsgTx, idx int,
	prevOuts txscript.PrevOutputFetcher) error {

	prevOut := prevOuts.FetchPrevOutput(tx.TxIn[idx].PreviousOutPoint)
	if prevOut == nil {
		return swapError(ErrInvalidAuthorization, fmt.Sprintf("no "+
			"previous output for input %d", idx), nil)
	}

	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil,
		sigHashes, prevOut.Value, prevOuts,
	)
	if err != nil {
		return swapError(ErrInvalidAuthorization, fmt.Sprintf("unable "+
			"to create script engine for input %d", idx), err)
	}
	if err := vm.Execute(); err != nil {
		return swapError(ErrInvalidAuthorization, fmt.Sprintf("input "+
			"%d does not verify", idx), err)
	}

	return nil
}

// VerifyTransaction runs the script engine over every input of a signed
// transaction.
func VerifyTransaction(tx *wire.MsgTx,
	prevOuts txscript.PrevOutputFetcher) error {

	for idx := range tx.TxIn {
		if err := VerifyInput(tx, idx, prevOuts); err != nil {
			return err
		}
	}

	return nil
}
