// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordswap/ordswap/swap"
	"github.com/ordswap/ordswap/tradelog"
	"github.com/thanhpk/randstr"
)

// Journal records finished trade attempts.
type Journal interface {
	Record(entry *tradelog.Entry) (uint64, error)
}

// Config holds the collaborators and knobs of an Orchestrator.
type Config struct {
	// Seller is the wallet holding the artifact.
	Seller swap.NodeWallet

	// Buyer is the wallet paying for the artifact.
	Buyer swap.NodeWallet

	// Metadata locates artifacts and classifies outputs.
	Metadata swap.MetadataService

	// Params is the network the trade runs on.
	Params *chaincfg.Params

	// Policy sets fees and the anchor value.
	Policy swap.FeePolicy

	// PayoutAddress receives the price. When nil the price is paid to
	// the artifact's current owner.
	PayoutAddress btcutil.Address

	// ReceiveAddress receives the artifact, the new anchor and the
	// change. When nil they are paid to the anchor's script.
	ReceiveAddress btcutil.Address

	// ClassifyWorkers bounds the concurrent output classifications.
	ClassifyWorkers int

	// PollInterval is passed to the anchor provisioner.
	PollInterval time.Duration

	// Journal, if set, records every attempt.
	Journal Journal
}

// Orchestrator runs trades one at a time.
type Orchestrator struct {
	cfg Config

	locator     *swap.Locator
	classifier  *swap.Classifier
	provisioner *swap.Provisioner
	assembler   *swap.Assembler

	// mu serializes trades. Concurrent trades would race on the
	// buyer's outputs.
	mu sync.Mutex
}

// New returns an Orchestrator for cfg.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Seller == nil:
		return nil, errors.New("no seller wallet")
	case cfg.Buyer == nil:
		return nil, errors.New("no buyer wallet")
	case cfg.Metadata == nil:
		return nil, errors.New("no metadata service")
	case cfg.Params == nil:
		return nil, errors.New("no network parameters")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:     cfg,
		locator: swap.NewLocator(cfg.Metadata, cfg.Params),
		classifier: swap.NewClassifier(
			cfg.Metadata, cfg.ClassifyWorkers,
		),
		provisioner: swap.NewProvisioner(swap.ProvisionerConfig{
			Wallet:       cfg.Buyer,
			Policy:       cfg.Policy,
			PollInterval: cfg.PollInterval,
		}),
		assembler: swap.NewAssembler(cfg.Policy),
	}, nil
}

// Execute trades the artifact for price. It always returns a report; the
// error is a *Error naming the step that failed. No step is retried.
func (o *Orchestrator) Execute(ctx context.Context, artifactID string,
	price btcutil.Amount) (*Report, error) {

	o.mu.Lock()
	defer o.mu.Unlock()

	report := newReport(randstr.Hex(8), artifactID, price)
	log.Infof("Trade %s: buying artifact %s for %v", report.ID,
		artifactID, price)

	err := o.run(ctx, report)

	report.Finished = time.Now()
	if err != nil {
		report.Stage = report.State
		report.State = StateAborted
		report.Err = err
		err = &Error{
			Stage:      report.Stage,
			ArtifactID: artifactID,
			Err:        err,
		}
		log.Errorf("Trade %s: %v", report.ID, err)

		if report.AnchorSplit.IsSome() {
			log.Warnf("Trade %s: anchor split %v remains on chain",
				report.ID, report.AnchorSplit.UnwrapOr(
					chainhash.Hash{},
				))
		}
	}

	o.record(report)

	return report, err
}

// run drives report through the trade states and returns the first error.
func (o *Orchestrator) run(ctx context.Context, report *Report) error {
	buyer := o.cfg.Buyer
	price := report.Price
	required := o.cfg.Policy.RequiredPayment(price)

	o.advance(report, StateLocateArtifact)
	rec, err := o.locator.Locate(ctx, report.ArtifactID)
	if err != nil {
		return err
	}
	report.Record = rec

	o.advance(report, StateBuildListing)
	payTo := o.cfg.PayoutAddress
	if payTo == nil {
		payTo = rec.Owner
	}
	listing, err := o.assembler.CreateListing(
		ctx, o.cfg.Seller, rec, price, payTo,
	)
	if err != nil {
		return err
	}
	report.Listing = listing

	o.advance(report, StateCheckBuyerFunds)
	balance, err := buyer.GetBalance(ctx)
	if err != nil {
		return swap.Error{
			Kind:        swap.ErrCollaboratorUnavailable,
			Description: "get buyer balance failed",
			Err:         err,
		}
	}
	if balance < required {
		return swap.Error{
			Kind: swap.ErrInsufficientFunds,
			Description: fmt.Sprintf("buyer balance %v is below "+
				"the required %v", balance, required),
		}
	}

	o.advance(report, StateProvisionAnchor)
	partition, err := o.partition(ctx)
	if err != nil {
		return err
	}
	anchor, split, err := o.provisioner.EnsureAnchor(
		ctx, partition.Ordinary,
	)
	report.AnchorSplit = split
	if err != nil {
		return err
	}

	o.advance(report, StateSelectPayment)

	// The split spent one ordinary output and created two new ones.
	if split.IsSome() {
		partition, err = o.partition(ctx)
		if err != nil {
			return err
		}
	}
	pool := swap.Without(partition.Ordinary, anchor.OutPoint)
	swap.SortByValueDesc(pool)
	payment, err := swap.SelectPayment(pool, required)
	if err != nil {
		return err
	}

	o.advance(report, StateAssemblePurchase)
	req := &swap.PurchaseRequest{
		Listing: listing,
		Price:   price,
		Anchor:  *anchor,
		Payment: payment,
	}
	if o.cfg.ReceiveAddress != nil {
		script, err := txscript.PayToAddrScript(o.cfg.ReceiveAddress)
		if err != nil {
			return err
		}
		req.ReceiveScript = script
	}
	bundle, err := o.assembler.AssemblePurchase(ctx, buyer, req)
	if err != nil {
		return err
	}
	report.Bundle = bundle

	o.advance(report, StateFinalize)
	tx, err := buyer.Finalize(ctx, bundle.Packet)
	if err != nil {
		return swap.Error{
			Kind:        swap.ErrCollaboratorUnavailable,
			Description: "finalize purchase failed",
			Err:         err,
		}
	}
	if tx.TxHash() != bundle.Packet.UnsignedTx.TxHash() {
		return swap.Error{
			Kind: swap.ErrInvalidAuthorization,
			Description: "buyer wallet finalized a different " +
				"transaction",
		}
	}
	err = swap.VerifyTransaction(tx, swap.PrevOutputFetcher(bundle.Packet))
	if err != nil {
		return err
	}

	o.advance(report, StateBroadcast)
	txid, err := buyer.Broadcast(ctx, tx)
	if err != nil {
		return swap.Error{
			Kind:        swap.ErrCollaboratorUnavailable,
			Description: "broadcast purchase failed",
			Err:         err,
		}
	}
	report.PurchaseTxid = fn.Some(*txid)

	o.advance(report, StateDone)
	log.Infof("Trade %s: bought artifact %s in %v (fee %v, change %v)",
		report.ID, report.ArtifactID, txid, bundle.Fee, bundle.Change)

	return nil
}

// partition lists the buyer's outputs and splits them into ordinary and
// protected ones.
func (o *Orchestrator) partition(ctx context.Context) (*swap.Partition,
	error) {

	outs, err := o.cfg.Buyer.ListUnspent(ctx)
	if err != nil {
		return nil, swap.Error{
			Kind:        swap.ErrCollaboratorUnavailable,
			Description: "list buyer outputs failed",
			Err:         err,
		}
	}

	partition, err := o.classifier.Partition(ctx, outs)
	if err != nil {
		return nil, swap.Error{
			Kind:        swap.ErrCollaboratorUnavailable,
			Description: "classify buyer outputs failed",
			Err:         err,
		}
	}
	if partition.LookupFailures > 0 {
		log.Warnf("Excluded %d buyer outputs that could not be "+
			"classified", partition.LookupFailures)
	}

	return partition, nil
}

func (o *Orchestrator) advance(report *Report, state State) {
	log.Debugf("Trade %s: %v -> %v", report.ID, report.State, state)
	report.State = state
}

// record journals the report. A journal failure is logged, it does not
// change the outcome of the trade.
func (o *Orchestrator) record(report *Report) {
	if o.cfg.Journal == nil {
		return
	}
	if _, err := o.cfg.Journal.Record(report.entry()); err != nil {
		log.Errorf("Unable to journal trade %s: %v", report.ID, err)
	}
}
