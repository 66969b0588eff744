// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package swaptest provides wallet and metadata doubles that sign with real
// keys, for tests of the swap and trade packages.
package swaptest

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordswap/ordswap/swap"
	"github.com/stretchr/testify/require"
)

// Params are the network parameters used by all doubles.
var Params = &chaincfg.RegressionNetParams

// Party is a single-key P2WPKH wallet.
type Party struct {
	Key      *btcec.PrivateKey
	PkScript []byte
	Address  btcutil.Address
}

// NewParty returns a party with a fresh key.
func NewParty(t testing.TB) *Party {
	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), Params,
	)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return &Party{Key: key, PkScript: script, Address: addr}
}

// FundingTx returns a transaction paying each value to script. Its single
// input spends a random outpoint, so every call yields a new txid.
func FundingTx(t testing.TB, script []byte,
	values ...btcutil.Amount) *wire.MsgTx {

	t.Helper()

	var prev chainhash.Hash
	_, err := rand.Read(prev[:])
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	for _, v := range values {
		tx.AddTxOut(wire.NewTxOut(int64(v), script))
	}

	return tx
}

// Outputs returns the outputs of tx as spendable outputs of p.
func (p *Party) Outputs(tx *wire.MsgTx) []swap.SpendableOutput {
	hash := tx.TxHash()
	outs := make([]swap.SpendableOutput, 0, len(tx.TxOut))
	for i, txOut := range tx.TxOut {
		outs = append(outs, swap.SpendableOutput{
			OutPoint:      wire.OutPoint{Hash: hash, Index: uint32(i)},
			Value:         btcutil.Amount(txOut.Value),
			Address:       p.Address,
			PkScript:      txOut.PkScript,
			Confirmations: 6,
		})
	}

	return outs
}

// Copy round trips a packet through its serialization, the way a remote
// wallet would.
func Copy(t testing.TB, packet *psbt.Packet) *psbt.Packet {
	t.Helper()

	b64, err := packet.B64Encode()
	require.NoError(t, err)

	cp, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	require.NoError(t, err)

	return cp
}

// Sign returns a copy of packet with every unauthorized input paying to p
// signed with hashType and finalized.
func (p *Party) Sign(t testing.TB, packet *psbt.Packet,
	hashType txscript.SigHashType) *psbt.Packet {

	t.Helper()

	cp := Copy(t, packet)
	tx := cp.UnsignedTx
	sigHashes := txscript.NewTxSigHashes(tx, swap.PrevOutputFetcher(cp))
	for i, txIn := range tx.TxIn {
		in := &cp.Inputs[i]
		if len(in.FinalScriptWitness) > 0 || len(in.PartialSigs) > 0 {
			continue
		}

		utxo := in.WitnessUtxo
		if utxo == nil && in.NonWitnessUtxo != nil {
			utxo = in.NonWitnessUtxo.TxOut[txIn.PreviousOutPoint.Index]
		}
		if utxo == nil || !bytes.Equal(utxo.PkScript, p.PkScript) {
			continue
		}

		witness, err := txscript.WitnessSignature(
			tx, sigHashes, i, utxo.Value, utxo.PkScript, hashType,
			p.Key, true,
		)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, psbt.WriteTxWitness(&buf, witness))
		in.FinalScriptWitness = buf.Bytes()
	}

	return cp
}

// PartialSign is like Sign but leaves the signature as a partial signature
// instead of a final witness.
func (p *Party) PartialSign(t testing.TB, packet *psbt.Packet,
	idx int, hashType txscript.SigHashType) *psbt.Packet {

	t.Helper()

	cp := Copy(t, packet)
	in := &cp.Inputs[idx]
	utxo := in.WitnessUtxo
	require.NotNil(t, utxo)

	sigHashes := txscript.NewTxSigHashes(
		cp.UnsignedTx, swap.PrevOutputFetcher(cp),
	)
	sig, err := txscript.RawTxInWitnessSignature(
		cp.UnsignedTx, sigHashes, idx, utxo.Value, utxo.PkScript,
		hashType, p.Key,
	)
	require.NoError(t, err)

	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    p.Key.PubKey().SerializeCompressed(),
		Signature: sig,
	})

	return cp
}

// Extract returns the network transaction of a finalized packet.
func Extract(t testing.TB, packet *psbt.Packet) *wire.MsgTx {
	t.Helper()

	tx, err := psbt.Extract(packet)
	require.NoError(t, err)

	return tx
}

// Signer returns a MockWallet AuthorizePartial result that signs with p.
func (p *Party) Signer(
	t testing.TB) func(*psbt.Packet, txscript.SigHashType) *psbt.Packet {

	return func(packet *psbt.Packet,
		hashType txscript.SigHashType) *psbt.Packet {

		return p.Sign(t, packet, hashType)
	}
}

// Finalizer returns a MockWallet Finalize result that extracts the network
// transaction.
func Finalizer(t testing.TB) func(*psbt.Packet) *wire.MsgTx {
	return func(packet *psbt.Packet) *wire.MsgTx {
		return Extract(t, packet)
	}
}

// Broadcaster returns a MockWallet Broadcast result that echoes the txid.
func Broadcaster() func(*wire.MsgTx) *chainhash.Hash {
	return func(tx *wire.MsgTx) *chainhash.Hash {
		hash := tx.TxHash()
		return &hash
	}
}
