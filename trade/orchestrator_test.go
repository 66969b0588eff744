package trade_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordswap/ordswap/internal/swaptest"
	"github.com/ordswap/ordswap/swap"
	"github.com/ordswap/ordswap/trade"
	"github.com/ordswap/ordswap/tradelog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testArtifact = "123"
	testPrice    = btcutil.Amount(12_340)
)

// tradeHarness wires an orchestrator to mock wallets backed by real keys.
type tradeHarness struct {
	t *testing.T

	seller *swaptest.Party
	buyer  *swaptest.Party

	artifactTx *wire.MsgTx
	artifactOp wire.OutPoint

	sellerW  *swaptest.MockWallet
	buyerW   *swaptest.MockWallet
	metadata *swaptest.MockMetadata

	// mu guards the buyer's live output set and known transactions,
	// both updated by broadcasts.
	mu        sync.Mutex
	outs      []swap.SpendableOutput
	txs       map[chainhash.Hash]*wire.MsgTx
	published []*wire.MsgTx
}

// newHarness returns a harness whose buyer owns the outputs of one funding
// transaction paying values.
func newHarness(t *testing.T, balance btcutil.Amount,
	values ...btcutil.Amount) *tradeHarness {

	seller := swaptest.NewParty(t)
	buyer := swaptest.NewParty(t)
	artifactTx := swaptest.FundingTx(t, seller.PkScript, 20_000, 10_000)
	buyerTx := swaptest.FundingTx(t, buyer.PkScript, values...)

	h := &tradeHarness{
		t:          t,
		seller:     seller,
		buyer:      buyer,
		artifactTx: artifactTx,
		artifactOp: wire.OutPoint{Hash: artifactTx.TxHash(), Index: 1},
		sellerW:    &swaptest.MockWallet{},
		buyerW:     &swaptest.MockWallet{},
		metadata:   &swaptest.MockMetadata{},
		outs:       buyer.Outputs(buyerTx),
		txs: map[chainhash.Hash]*wire.MsgTx{
			buyerTx.TxHash(): buyerTx,
		},
	}

	h.metadata.On("Locate", mock.Anything, testArtifact).Return(
		[]swap.Location{{
			OutPoint: h.artifactOp,
			Address:  seller.Address.EncodeAddress(),
		}}, nil,
	)

	h.sellerW.On("GetTransaction", mock.Anything, mock.Anything).Return(
		artifactTx, nil,
	)
	h.sellerW.On("AuthorizePartial", mock.Anything, mock.Anything,
		swap.SigHashListing).Return(seller.Signer(t), nil)

	h.buyerW.On("GetBalance", mock.Anything).Return(balance, nil)
	h.buyerW.On("ListUnspent", mock.Anything).Return(
		func() []swap.SpendableOutput {
			h.mu.Lock()
			defer h.mu.Unlock()
			return append([]swap.SpendableOutput{}, h.outs...)
		}, nil,
	)
	h.buyerW.On("GetTransaction", mock.Anything, mock.Anything).Return(
		func(txid *chainhash.Hash) *wire.MsgTx {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.txs[*txid]
		}, nil,
	)
	h.buyerW.On("AuthorizePartial", mock.Anything, mock.Anything,
		txscript.SigHashAll).Return(buyer.Signer(t), nil)
	h.buyerW.On("Finalize", mock.Anything, mock.Anything).Return(
		swaptest.Finalizer(t), nil,
	)
	h.buyerW.On("Broadcast", mock.Anything, mock.Anything).Run(
		func(args mock.Arguments) {
			h.publish(args.Get(1).(*wire.MsgTx))
		},
	).Return(swaptest.Broadcaster(), nil)

	return h
}

// publish applies tx to the buyer's output set the way a wallet would.
func (h *tradeHarness) publish(tx *wire.MsgTx) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.published = append(h.published, tx)
	h.txs[tx.TxHash()] = tx

	spent := make(map[wire.OutPoint]bool)
	for _, txIn := range tx.TxIn {
		spent[txIn.PreviousOutPoint] = true
	}
	var outs []swap.SpendableOutput
	for _, out := range h.outs {
		if !spent[out.OutPoint] {
			outs = append(outs, out)
		}
	}
	h.outs = append(outs, h.buyer.Outputs(tx)...)
}

func (h *tradeHarness) classifyAll(protected bool) {
	h.metadata.On("IsProtected", mock.Anything, mock.Anything).Return(
		protected, nil,
	)
}

func (h *tradeHarness) orchestrator(journal trade.Journal) *trade.Orchestrator {
	o, err := trade.New(trade.Config{
		Seller:          h.sellerW,
		Buyer:           h.buyerW,
		Metadata:        h.metadata,
		Params:          swaptest.Params,
		Policy:          swap.DefaultFeePolicy(),
		ClassifyWorkers: 2,
		PollInterval:    time.Millisecond,
		Journal:         journal,
	})
	require.NoError(h.t, err)

	return o
}

func (h *tradeHarness) execute() (*trade.Report, error) {
	return h.orchestrator(nil).Execute(
		context.Background(), testArtifact, testPrice,
	)
}

func fnHash(h chainhash.Hash) fn.Option[chainhash.Hash] {
	return fn.Some(h)
}

// removeCall drops the expectations registered for method.
func removeCall(calls []*mock.Call, method string) []*mock.Call {
	var kept []*mock.Call
	for _, call := range calls {
		if call.Method != method {
			kept = append(kept, call)
		}
	}
	return kept
}

func requireAborted(t *testing.T, report *trade.Report, err error,
	stage trade.State, kind swap.ErrorKind) {

	t.Helper()

	var tradeErr *trade.Error
	require.ErrorAs(t, err, &tradeErr)
	require.Equal(t, stage, tradeErr.Stage)
	require.Equal(t, testArtifact, tradeErr.ArtifactID)
	require.True(t, swap.IsKind(err, kind), "got %v", err)

	require.Equal(t, trade.StateAborted, report.State)
	require.Equal(t, stage, report.Stage)
	require.True(t, report.PurchaseTxid.IsNone())
}

func (h *tradeHarness) requireNoBuyerSigning() {
	h.buyerW.AssertNotCalled(h.t, "AuthorizePartial", mock.Anything,
		mock.Anything, mock.Anything)
	h.buyerW.AssertNotCalled(h.t, "Broadcast", mock.Anything,
		mock.Anything)
}

// TestExecute runs a complete trade with a buyer that already owns an
// anchor.
func TestExecute(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50_000, 600, 30_000, 19_400)
	h.classifyAll(false)

	report, err := h.execute()
	require.NoError(t, err)
	require.Equal(t, trade.StateDone, report.State)
	require.Len(t, report.ID, 16)
	require.True(t, report.AnchorSplit.IsNone())
	require.Nil(t, report.Err)

	require.Equal(t, h.artifactOp, report.Record.OutPoint)
	require.Equal(t, h.seller.Address.String(),
		report.Record.Owner.String())

	// The price is paid to the artifact's owner.
	require.EqualValues(t, testPrice, report.Listing.SellerOutput().Value)
	require.Equal(t, h.seller.PkScript,
		report.Listing.SellerOutput().PkScript)

	require.Len(t, h.published, 1)
	tx := h.published[0]
	require.Equal(t, fnHash(tx.TxHash()), report.PurchaseTxid)

	require.Len(t, tx.TxIn, 3)
	require.EqualValues(t, 600+10_000, tx.TxOut[swap.ArtifactOutputIndex].Value)
	require.Equal(t, h.buyer.PkScript,
		tx.TxOut[swap.ArtifactOutputIndex].PkScript)
	require.Equal(t, *report.Listing.SellerOutput(),
		*tx.TxOut[swap.SellerOutputIndex])
	require.EqualValues(t, 1000, tx.TxOut[swap.AnchorOutputIndex].Value)
	require.EqualValues(t, 30_000-13_812, tx.TxOut[swap.ChangeOutputIndex].Value)
	require.Equal(t, btcutil.Amount(472), report.Bundle.Fee)

	prevOuts := swap.PrevOutputFetcher(report.Bundle.Packet)
	require.NoError(t, swap.VerifyTransaction(tx, prevOuts))

	h.sellerW.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
	h.buyerW.AssertExpectations(t)
}

// TestExecuteInsufficientBalance checks that a buyer short of the required
// total aborts the trade before anything is built on the buyer side.
func TestExecuteInsufficientBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 10_000, 600, 9_400)
	h.classifyAll(false)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateCheckBuyerFunds,
		swap.ErrInsufficientFunds)
	require.NotNil(t, report.Listing)
	require.Nil(t, report.Bundle)

	h.requireNoBuyerSigning()
	h.buyerW.AssertNotCalled(t, "ListUnspent", mock.Anything)
	require.Empty(t, h.published)
}

// TestExecuteSplitsAnchor checks that a buyer without an anchor gets one from
// a two output split before payment selection, and that selection sees the
// outputs the split created.
func TestExecuteSplitsAnchor(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 70_000, 50_000, 20_000)
	h.classifyAll(false)

	report, err := h.execute()
	require.NoError(t, err)
	require.Equal(t, trade.StateDone, report.State)
	require.True(t, report.AnchorSplit.IsSome())

	require.Len(t, h.published, 2)
	split, purchase := h.published[0], h.published[1]
	require.Equal(t, fnHash(split.TxHash()), report.AnchorSplit)

	require.Len(t, split.TxIn, 1)
	require.Len(t, split.TxOut, 2)
	require.EqualValues(t, 1000, split.TxOut[0].Value)
	require.EqualValues(t, 20_000-1000-258, split.TxOut[1].Value)

	anchorOp := wire.OutPoint{Hash: split.TxHash(), Index: 0}
	require.Equal(t, anchorOp,
		purchase.TxIn[swap.AnchorInputIndex].PreviousOutPoint)
	require.Len(t, purchase.TxIn, 3)
	require.EqualValues(t, 50_000,
		report.Bundle.Packet.Inputs[swap.PaymentInputIndex].WitnessUtxo.Value)
	require.EqualValues(t, 1000+10_000,
		purchase.TxOut[swap.ArtifactOutputIndex].Value)

	prevOuts := swap.PrevOutputFetcher(report.Bundle.Packet)
	require.NoError(t, swap.VerifyTransaction(purchase, prevOuts))
}

// TestExecuteExactPool checks that a pool summing to exactly the required
// total is consumed entirely, leaving a zero change output.
func TestExecuteExactPool(t *testing.T) {
	t.Parallel()

	required := swap.DefaultFeePolicy().RequiredPayment(testPrice)
	h := newHarness(t, 600+required, 600, required)
	h.classifyAll(false)

	report, err := h.execute()
	require.NoError(t, err)
	require.Equal(t, trade.StateDone, report.State)
	require.Zero(t, report.Bundle.Change)

	tx := h.published[0]
	require.Len(t, tx.TxOut, 4)
	require.Zero(t, tx.TxOut[swap.ChangeOutputIndex].Value)
}

// TestExecuteExcludesUnclassified checks that outputs the metadata service
// flags, or fails to classify, are never used as payment.
func TestExecuteExcludesUnclassified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		protected bool
		err       error
	}{{
		name:      "protected",
		protected: true,
	}, {
		name: "lookup failure",
		err:  errors.New("ord unreachable"),
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, 60_000, 600, 40_000, 19_400)
			excluded := h.outs[1].OutPoint
			payment := h.outs[2].OutPoint
			h.metadata.On("IsProtected", mock.Anything,
				excluded).Return(test.protected, test.err)
			h.classifyAll(false)

			report, err := h.execute()
			require.NoError(t, err)

			for _, txIn := range h.published[0].TxIn {
				require.NotEqual(t, excluded,
					txIn.PreviousOutPoint)
			}
			require.Equal(t, payment, h.published[0].
				TxIn[swap.PaymentInputIndex].PreviousOutPoint)
			require.EqualValues(t, 19_400-13_812,
				report.Bundle.Change)
		})
	}
}

// TestExecuteInsufficientSelectable checks that a buyer whose balance is
// locked in protected outputs aborts at payment selection.
func TestExecuteInsufficientSelectable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 60_000, 600, 50_000, 9_400)
	h.metadata.On("IsProtected", mock.Anything,
		h.outs[1].OutPoint).Return(true, nil)
	h.classifyAll(false)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateSelectPayment,
		swap.ErrInsufficientFunds)
	require.True(t, report.AnchorSplit.IsNone())

	h.requireNoBuyerSigning()
}

// TestExecuteAbortAfterSplit checks that an anchor split is reported, not
// undone, when the trade aborts afterwards.
func TestExecuteAbortAfterSplit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 100_000, 5_000)
	h.classifyAll(false)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateSelectPayment,
		swap.ErrInsufficientFunds)

	require.Len(t, h.published, 1)
	require.Equal(t, fnHash(h.published[0].TxHash()), report.AnchorSplit)
}

// TestExecuteUnknownArtifact checks that a failed lookup aborts before the
// seller is asked for anything.
func TestExecuteUnknownArtifact(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50_000, 600, 30_000)
	h.metadata = &swaptest.MockMetadata{}
	h.metadata.On("Locate", mock.Anything, testArtifact).Return(
		nil, swap.ErrUnknownArtifact,
	)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateLocateArtifact,
		swap.ErrNotFound)
	require.Nil(t, report.Record)

	h.sellerW.AssertNotCalled(t, "AuthorizePartial", mock.Anything,
		mock.Anything, mock.Anything)
	h.buyerW.AssertNotCalled(t, "GetBalance", mock.Anything)
}

// TestExecuteAlteredListing checks that a seller wallet returning a
// different transaction aborts the trade at the listing.
func TestExecuteAlteredListing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50_000, 600, 30_000)
	h.classifyAll(false)

	h.sellerW = &swaptest.MockWallet{}
	h.sellerW.On("GetTransaction", mock.Anything, mock.Anything).Return(
		h.artifactTx, nil,
	)
	h.sellerW.On("AuthorizePartial", mock.Anything, mock.Anything,
		swap.SigHashListing).Return(
		func(packet *psbt.Packet, _ txscript.SigHashType) *psbt.Packet {
			cp := swaptest.Copy(t, packet)
			cp.UnsignedTx.TxOut[0].Value++
			return cp
		}, nil,
	)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateBuildListing,
		swap.ErrInvalidAuthorization)
	require.Nil(t, report.Listing)

	h.buyerW.AssertNotCalled(t, "GetBalance", mock.Anything)
	h.requireNoBuyerSigning()
}

// TestExecuteFinalizeMismatch checks that a finalized transaction other than
// the assembled purchase is never broadcast.
func TestExecuteFinalizeMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50_000, 600, 30_000, 19_400)
	h.classifyAll(false)

	other := swaptest.FundingTx(t, h.buyer.PkScript, 1_000)
	h.buyerW.ExpectedCalls = removeCall(h.buyerW.ExpectedCalls, "Finalize")
	h.buyerW.On("Finalize", mock.Anything, mock.Anything).Return(other, nil)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateFinalize,
		swap.ErrInvalidAuthorization)
	require.NotNil(t, report.Bundle)

	h.buyerW.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}

// TestExecuteBroadcastFailure checks that a failing broadcast is reported as
// an unavailable collaborator.
func TestExecuteBroadcastFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 50_000, 600, 30_000, 19_400)
	h.classifyAll(false)

	h.buyerW.ExpectedCalls = removeCall(h.buyerW.ExpectedCalls, "Broadcast")
	h.buyerW.On("Broadcast", mock.Anything, mock.Anything).Return(
		nil, errors.New("connection refused"),
	)

	report, err := h.execute()
	requireAborted(t, report, err, trade.StateBroadcast,
		swap.ErrCollaboratorUnavailable)
}

// TestExecuteJournal checks that completed and aborted attempts are both
// journaled.
func TestExecuteJournal(t *testing.T) {
	t.Parallel()

	journal, err := tradelog.Open(t.TempDir(), time.Second)
	require.NoError(t, err)
	defer journal.Close()

	h := newHarness(t, 50_000, 600, 30_000, 19_400)
	h.classifyAll(false)
	o := h.orchestrator(journal)

	done, err := o.Execute(context.Background(), testArtifact, testPrice)
	require.NoError(t, err)

	// The second attempt asks for more than the buyer owns.
	aborted, err := o.Execute(
		context.Background(), testArtifact, 1_000_000,
	)
	require.Error(t, err)

	entries, err := journal.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, done.ID, entries[0].TradeID)
	require.Equal(t, "Done", entries[0].State)
	require.Equal(t, done.PurchaseTxid, entries[0].PurchaseTxid)
	require.Equal(t, done.Bundle.Fee, entries[0].Fee)
	require.Empty(t, entries[0].Failure)

	require.Equal(t, aborted.ID, entries[1].TradeID)
	require.Equal(t, "Aborted", entries[1].State)
	require.EqualValues(t, 1_000_000, entries[1].Price)
	require.NotEmpty(t, entries[1].Failure)
	require.True(t, entries[1].PurchaseTxid.IsNone())
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0, 600)

	cfg := trade.Config{
		Seller:   h.sellerW,
		Buyer:    h.buyerW,
		Metadata: h.metadata,
		Params:   swaptest.Params,
		Policy:   swap.DefaultFeePolicy(),
	}
	_, err := trade.New(cfg)
	require.NoError(t, err)

	noBuyer := cfg
	noBuyer.Buyer = nil
	_, err = trade.New(noBuyer)
	require.Error(t, err)

	noParams := cfg
	noParams.Params = nil
	_, err = trade.New(noParams)
	require.Error(t, err)

	badPolicy := cfg
	badPolicy.Policy.InputVSize = 0
	_, err = trade.New(badPolicy)
	require.True(t, swap.IsKind(err, swap.ErrInvalidPolicy))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CheckBuyerFunds", trade.StateCheckBuyerFunds.String())
	require.Equal(t, "Aborted", trade.StateAborted.String())
	require.Equal(t, "Unknown State (200)", trade.State(200).String())
}
