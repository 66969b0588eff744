package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordswap/ordswap/internal/swaptest"
	"github.com/ordswap/ordswap/swap"
	"github.com/stretchr/testify/require"
)

// fakeBitcoind serves the subset of bitcoind's wallet RPC used by Wallet.
type fakeBitcoind struct {
	t     *testing.T
	party *swaptest.Party

	mu        sync.Mutex
	txs       map[chainhash.Hash]*wire.MsgTx
	unspent   []btcjson.ListUnspentResult
	sendErr   *btcjson.RPCError
	sent      []*wire.MsgTx
	sigHashes []string
	paths     []string
	block     chan struct{}
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     interface{}       `json:"id"`
}

type rpcResponse struct {
	Result interface{}       `json:"result"`
	Error  *btcjson.RPCError `json:"error"`
	ID     interface{}       `json:"id"`
}

func newFakeBitcoind(t *testing.T) (*fakeBitcoind, *Wallet) {
	t.Helper()

	f := &fakeBitcoind{
		t:     t,
		party: swaptest.NewParty(t),
		txs:   make(map[chainhash.Hash]*wire.MsgTx),
	}

	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	w, err := NewWallet(WalletConfig{
		ChainParams: swaptest.Params,
		Host:        strings.TrimPrefix(srv.URL, "http://"),
		Name:        "buyer",
		User:        "user",
		Pass:        "pass",
		MinConf:     1,
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	return f, w
}

func (f *fakeBitcoind) param(req *rpcRequest, i int, v interface{}) {
	require.Greater(f.t, len(req.Params), i)
	require.NoError(f.t, json.Unmarshal(req.Params[i], v))
}

func (f *fakeBitcoind) serve(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != "user" || pass != "pass" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	resp := rpcResponse{ID: req.ID}
	resp.Result, resp.Error = f.handle(&req)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeBitcoind) handle(req *rpcRequest) (interface{},
	*btcjson.RPCError) {

	f.mu.Lock()
	defer f.mu.Unlock()

	switch req.Method {
	case "getinfo":
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCMethodNotFound.Code,
			Message: "Method not found",
		}

	case "getnetworkinfo":
		return map[string]interface{}{
			"version":    270000,
			"subversion": "/Satoshi:27.0.0/",
		}, nil

	case "listunspent":
		var minConf int
		f.param(req, 0, &minConf)
		require.Equal(f.t, 1, minConf)
		return f.unspent, nil

	case "getrawtransaction":
		var txid string
		f.param(req, 0, &txid)
		hash, err := chainhash.NewHashFromStr(txid)
		require.NoError(f.t, err)

		tx, ok := f.txs[*hash]
		if !ok {
			return nil, &btcjson.RPCError{
				Code: -5,
				Message: "No such mempool or blockchain " +
					"transaction",
			}
		}
		var buf bytes.Buffer
		require.NoError(f.t, tx.Serialize(&buf))
		return hex.EncodeToString(buf.Bytes()), nil

	case "walletprocesspsbt":
		var b64, sigHash string
		f.param(req, 0, &b64)
		f.param(req, 2, &sigHash)
		f.sigHashes = append(f.sigHashes, sigHash)

		packet, err := psbt.NewFromRawBytes(
			strings.NewReader(b64), true,
		)
		require.NoError(f.t, err)

		hashType := txscript.SigHashAll
		if sigHash == "SINGLE|ANYONECANPAY" {
			hashType = swap.SigHashListing
		}
		signed := f.party.Sign(f.t, packet, hashType)
		out, err := signed.B64Encode()
		require.NoError(f.t, err)

		return map[string]interface{}{
			"psbt":     out,
			"complete": signed.IsComplete(),
		}, nil

	case "finalizepsbt":
		var b64 string
		f.param(req, 0, &b64)
		packet, err := psbt.NewFromRawBytes(
			strings.NewReader(b64), true,
		)
		require.NoError(f.t, err)

		if !packet.IsComplete() {
			return map[string]interface{}{
				"psbt":     b64,
				"complete": false,
			}, nil
		}
		tx, err := psbt.Extract(packet)
		require.NoError(f.t, err)

		var buf bytes.Buffer
		require.NoError(f.t, tx.Serialize(&buf))
		return map[string]interface{}{
			"hex":      hex.EncodeToString(buf.Bytes()),
			"complete": true,
		}, nil

	case "sendrawtransaction":
		var txHex string
		f.param(req, 0, &txHex)
		raw, err := hex.DecodeString(txHex)
		require.NoError(f.t, err)

		tx := wire.NewMsgTx(2)
		require.NoError(f.t, tx.Deserialize(bytes.NewReader(raw)))
		f.sent = append(f.sent, tx)

		if f.sendErr != nil {
			return nil, f.sendErr
		}
		return tx.TxHash().String(), nil

	case "getbalance":
		var dummy string
		f.param(req, 0, &dummy)
		require.Equal(f.t, "*", dummy)
		return 0.0005, nil
	}

	return nil, &btcjson.RPCError{
		Code:    btcjson.ErrRPCMethodNotFound.Code,
		Message: "Method not found",
	}
}

// TestWalletListUnspent checks the conversion of listunspent results.
func TestWalletListUnspent(t *testing.T) {
	t.Parallel()

	f, w := newFakeBitcoind(t)
	fundTx := swaptest.FundingTx(t, f.party.PkScript, 1000, 50_000)
	txid := fundTx.TxHash().String()

	f.unspent = []btcjson.ListUnspentResult{
		{
			TxID:          txid,
			Vout:          0,
			Address:       f.party.Address.String(),
			ScriptPubKey:  hex.EncodeToString(f.party.PkScript),
			Amount:        0.00001,
			Confirmations: 3,
			Spendable:     true,
		},
		{
			TxID:          txid,
			Vout:          1,
			ScriptPubKey:  hex.EncodeToString(f.party.PkScript),
			Amount:        0.0005,
			Confirmations: 1,
			Spendable:     true,
		},
		{
			TxID:         txid,
			Vout:         2,
			ScriptPubKey: hex.EncodeToString(f.party.PkScript),
			Amount:       1,
			Spendable:    false,
		},
	}

	outs, err := w.ListUnspent(context.Background())
	require.NoError(t, err)
	require.Len(t, outs, 2)

	require.Equal(t, wire.OutPoint{Hash: fundTx.TxHash(), Index: 0},
		outs[0].OutPoint)
	require.Equal(t, btcutil.Amount(1000), outs[0].Value)
	require.Equal(t, f.party.Address.String(), outs[0].Address.String())
	require.Equal(t, f.party.PkScript, outs[0].PkScript)
	require.EqualValues(t, 3, outs[0].Confirmations)

	require.Equal(t, btcutil.Amount(50_000), outs[1].Value)
	require.Nil(t, outs[1].Address)

	require.Equal(t, []string{"/wallet/buyer"}, f.paths)
}

// TestWalletSignFinalizeBroadcast walks a listing through signing,
// finalization and broadcast.
func TestWalletSignFinalizeBroadcast(t *testing.T) {
	t.Parallel()

	f, w := newFakeBitcoind(t)
	artifactTx := swaptest.FundingTx(t, f.party.PkScript, 10_000)
	f.txs[artifactTx.TxHash()] = artifactTx

	ctx := context.Background()
	hash := artifactTx.TxHash()
	prevTx, err := w.GetTransaction(ctx, &hash)
	require.NoError(t, err)
	require.Equal(t, hash, prevTx.TxHash())

	rec := &swap.InscriptionRecord{
		ID:       "123",
		OutPoint: wire.OutPoint{Hash: hash},
		Owner:    f.party.Address,
	}
	assembler := swap.NewAssembler(swap.DefaultFeePolicy())
	offer, err := assembler.CreateListing(
		ctx, w, rec, 12_340, f.party.Address,
	)
	require.NoError(t, err)
	require.Equal(t, []string{"SINGLE|ANYONECANPAY"}, f.sigHashes)

	tx, err := w.Finalize(ctx, offer.Packet)
	require.NoError(t, err)
	require.NoError(t, swap.VerifyTransaction(
		tx, swap.PrevOutputFetcher(offer.Packet),
	))

	txid, err := w.Broadcast(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), *txid)
	require.Len(t, f.sent, 1)

	// Re-broadcasting a confirmed transaction is not an error.
	f.mu.Lock()
	f.sendErr = &btcjson.RPCError{
		Code:    -27,
		Message: "Transaction already in block chain",
	}
	f.mu.Unlock()
	txid, err = w.Broadcast(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.TxHash(), *txid)

	// Other rejections are mapped.
	f.mu.Lock()
	f.sendErr = &btcjson.RPCError{
		Code:    -26,
		Message: "txn-mempool-conflict",
	}
	f.mu.Unlock()
	_, err = w.Broadcast(ctx, tx)
	require.ErrorIs(t, err, ErrMempoolConflict)

	// Unknown transactions surface the node's error.
	_, err = w.GetTransaction(ctx, &chainhash.Hash{})
	require.Error(t, err)

	balance, err := w.GetBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(50_000), balance)
}

// TestWalletFinalizeIncomplete checks that an unsigned packet is not
// extracted.
func TestWalletFinalizeIncomplete(t *testing.T) {
	t.Parallel()

	f, w := newFakeBitcoind(t)
	fundTx := swaptest.FundingTx(t, f.party.PkScript, 10_000)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Hash: fundTx.TxHash()}, nil, nil,
	))
	tx.AddTxOut(wire.NewTxOut(9000, f.party.PkScript))
	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	_, err = w.Finalize(context.Background(), packet)
	require.Error(t, err)
}

// TestWalletContext checks that a blocked call returns once its context is
// done.
func TestWalletContext(t *testing.T) {
	t.Parallel()

	f, w := newFakeBitcoind(t)

	release := make(chan struct{})
	f.mu.Lock()
	f.block = release
	f.mu.Unlock()
	defer close(release)

	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	_, err := w.GetBalance(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestRPCSigHashType checks the sighash names passed to walletprocesspsbt.
func TestRPCSigHashType(t *testing.T) {
	t.Parallel()

	name, err := rpcSigHashType(swap.SigHashListing)
	require.NoError(t, err)
	require.EqualValues(t, "SINGLE|ANYONECANPAY", name)

	name, err = rpcSigHashType(txscript.SigHashAll)
	require.NoError(t, err)
	require.EqualValues(t, "ALL", name)

	_, err = rpcSigHashType(0x42)
	require.Error(t, err)
}
