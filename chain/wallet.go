// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordswap/ordswap/swap"
)

// maxConf is the largest confirmation count passed to listunspent.
const maxConf = 9999999

// WalletConfig contains all of the parameters required to talk to one wallet
// of a bitcoind node.
type WalletConfig struct {
	// ChainParams are the chain parameters the bitcoind server is running
	// on.
	ChainParams *chaincfg.Params

	// Host is the IP address and port of the bitcoind's RPC server.
	Host string

	// Name is the name of the loaded bitcoind wallet. Requests are sent
	// to the /wallet/<name> endpoint.
	Name string

	// User is the username to use to authenticate to bitcoind's RPC server.
	User string

	// Pass is the passphrase to use to authenticate to bitcoind's RPC
	// server.
	Pass string

	// CookiePath is the path of bitcoind's .cookie file. It is used
	// instead of User and Pass when set.
	CookiePath string

	// MinConf is the number of confirmations an output needs before it
	// is reported by ListUnspent.
	MinConf int
}

// Wallet is a swap.NodeWallet backed by a bitcoind wallet over JSON-RPC.
type Wallet struct {
	cfg    WalletConfig
	client *rpcclient.Client
}

// A compile-time assertion to ensure that Wallet implements the NodeWallet
// interface.
var _ swap.NodeWallet = (*Wallet)(nil)

// NewWallet returns a Wallet talking to the configured bitcoind wallet. No
// connection is made until the first request.
func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.MinConf < 0 {
		return nil, fmt.Errorf("invalid minimum confirmations %d",
			cfg.MinConf)
	}

	clientCfg := &rpcclient.ConnConfig{
		Host:                cfg.Host + "/wallet/" + cfg.Name,
		User:                cfg.User,
		Pass:                cfg.Pass,
		CookiePath:          cfg.CookiePath,
		DisableConnectOnNew: true,
		DisableTLS:          true,
		HTTPPostMode:        true,
	}
	client, err := rpcclient.New(clientCfg, nil)
	if err != nil {
		return nil, err
	}

	return &Wallet{cfg: cfg, client: client}, nil
}

// Stop shuts down the RPC client.
func (w *Wallet) Stop() {
	w.client.Shutdown()
	w.client.WaitForShutdown()
}

// Name returns the name of the bitcoind wallet.
func (w *Wallet) Name() string {
	return w.cfg.Name
}

// result is the outcome of a blocking RPC call.
type result[T any] struct {
	val T
	err error
}

// await runs a blocking RPC call and returns its result, or the context's
// error if ctx is done first. An abandoned call finishes in the background.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		val, err := call()
		done <- result[T]{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err

	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// ListUnspent returns the wallet's outputs with at least MinConf
// confirmations.
func (w *Wallet) ListUnspent(
	ctx context.Context) ([]swap.SpendableOutput, error) {

	future := w.client.ListUnspentMinMaxAsync(w.cfg.MinConf, maxConf)
	utxos, err := await(ctx, future.Receive)
	if err != nil {
		return nil, err
	}

	outs := make([]swap.SpendableOutput, 0, len(utxos))
	for _, u := range utxos {
		if !u.Spendable {
			continue
		}

		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %q: %w", u.TxID, err)
		}
		pkScript, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("invalid script for %s:%d: %w",
				u.TxID, u.Vout, err)
		}
		value, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s:%d: %w",
				u.TxID, u.Vout, err)
		}

		// An output without a decodable address is still spendable by
		// the wallet, so it is kept with a nil address.
		var addr btcutil.Address
		if u.Address != "" {
			addr, err = btcutil.DecodeAddress(
				u.Address, w.cfg.ChainParams,
			)
			if err != nil {
				log.Debugf("Unable to decode address %s of "+
					"%s:%d: %v", u.Address, u.TxID, u.Vout,
					err)
				addr = nil
			}
		}

		outs = append(outs, swap.SpendableOutput{
			OutPoint:      *wire.NewOutPoint(hash, u.Vout),
			Value:         value,
			Address:       addr,
			PkScript:      pkScript,
			Confirmations: u.Confirmations,
		})
	}

	log.Debugf("Wallet %s reported %d spendable outputs", w.cfg.Name,
		len(outs))

	return outs, nil
}

// GetTransaction returns a transaction by hash.
func (w *Wallet) GetTransaction(ctx context.Context,
	txid *chainhash.Hash) (*wire.MsgTx, error) {

	future := w.client.GetRawTransactionAsync(txid)
	tx, err := await(ctx, future.Receive)
	if err != nil {
		return nil, err
	}

	return tx.MsgTx(), nil
}

// rpcSigHashType maps a sighash type to its walletprocesspsbt name.
func rpcSigHashType(t txscript.SigHashType) (rpcclient.SigHashType, error) {
	switch t {
	case txscript.SigHashDefault:
		return rpcclient.SigHashType("DEFAULT"), nil
	case txscript.SigHashAll:
		return rpcclient.SigHashAll, nil
	case txscript.SigHashNone:
		return rpcclient.SigHashNone, nil
	case txscript.SigHashSingle:
		return rpcclient.SigHashSingle, nil
	case txscript.SigHashAll | txscript.SigHashAnyOneCanPay:
		return rpcclient.SigHashAllAnyoneCanPay, nil
	case txscript.SigHashNone | txscript.SigHashAnyOneCanPay:
		return rpcclient.SigHashNoneAnyoneCanPay, nil
	case txscript.SigHashSingle | txscript.SigHashAnyOneCanPay:
		return rpcclient.SigHashSingleAnyoneCanPay, nil
	}

	return "", fmt.Errorf("unsupported sighash type %#x", uint32(t))
}

// AuthorizePartial has bitcoind sign every input of packet it owns a key for
// with the given sighash type. Signed inputs come back finalized.
func (w *Wallet) AuthorizePartial(ctx context.Context, packet *psbt.Packet,
	hashType txscript.SigHashType) (*psbt.Packet, error) {

	rpcHashType, err := rpcSigHashType(hashType)
	if err != nil {
		return nil, err
	}

	b64, err := packet.B64Encode()
	if err != nil {
		return nil, err
	}

	sign := true
	future := w.client.WalletProcessPsbtAsync(b64, &sign, rpcHashType, nil)
	res, err := await(ctx, future.Receive)
	if err != nil {
		return nil, err
	}

	signed, err := psbt.NewFromRawBytes(strings.NewReader(res.Psbt), true)
	if err != nil {
		return nil, fmt.Errorf("unable to decode signed psbt: %w", err)
	}

	log.Debugf("Wallet %s signed %v with %v (complete=%v)", w.cfg.Name,
		packet.UnsignedTx.TxHash(), rpcHashType, res.Complete)

	return signed, nil
}

// finalizeResult models the data returned from the finalizepsbt command.
type finalizeResult struct {
	Psbt     string `json:"psbt"`
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}

// Finalize has bitcoind finalize packet and extract the network
// transaction.
func (w *Wallet) Finalize(ctx context.Context,
	packet *psbt.Packet) (*wire.MsgTx, error) {

	b64, err := packet.B64Encode()
	if err != nil {
		return nil, err
	}
	param, err := json.Marshal(b64)
	if err != nil {
		return nil, err
	}

	future := w.client.RawRequestAsync(
		"finalizepsbt", []json.RawMessage{param},
	)
	raw, err := await(ctx, future.Receive)
	if err != nil {
		return nil, err
	}

	var res finalizeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unable to decode finalizepsbt "+
			"result: %w", err)
	}
	if !res.Complete || res.Hex == "" {
		return nil, errors.New("psbt is not fully signed")
	}

	txBytes, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("unable to deserialize transaction: %w",
			err)
	}

	return tx, nil
}

// Broadcast publishes tx. A transaction that is already in the mempool or
// confirmed is reported as published.
func (w *Wallet) Broadcast(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	txid := tx.TxHash()

	future := w.client.SendRawTransactionAsync(tx, false)
	_, err := await(ctx, future.Receive)
	if err == nil {
		log.Infof("Published transaction %v", txid)
		return &txid, nil
	}

	// Context errors are returned as is, everything else came from
	// bitcoind.
	if ctx.Err() != nil {
		return nil, err
	}

	err = MapRPCErr(err)
	switch {
	case errors.Is(err, ErrTxAlreadyInMempool),
		errors.Is(err, ErrTxAlreadyKnown),
		errors.Is(err, ErrTxAlreadyConfirmed):

		log.Infof("Tx %v already broadcasted", txid)
		return &txid, nil
	}

	return nil, err
}

// GetBalance returns the wallet's trusted balance.
func (w *Wallet) GetBalance(ctx context.Context) (btcutil.Amount, error) {
	future := w.client.GetBalanceAsync("*")
	return await(ctx, future.Receive)
}
