// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
)

// DefaultPollInterval is how often the wallet is asked whether a freshly
// split anchor has become spendable.
const DefaultPollInterval = 10 * time.Second

// ProvisionerConfig holds the dependencies of a Provisioner.
type ProvisionerConfig struct {
	// Wallet is the buyer's wallet.
	Wallet NodeWallet

	// Policy sets the anchor value and the split fee.
	Policy FeePolicy

	// PollInterval is the delay between output set queries while
	// waiting for the split to become spendable.
	PollInterval time.Duration
}

// Provisioner makes sure the buyer owns an anchor output.
type Provisioner struct {
	cfg ProvisionerConfig
}

// NewProvisioner returns a Provisioner for the given configuration.
func NewProvisioner(cfg ProvisionerConfig) *Provisioner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Provisioner{cfg: cfg}
}

// FindAnchor returns the smallest output valued at or below the anchor
// threshold.
func (p *Provisioner) FindAnchor(
	ordinary []SpendableOutput) fn.Option[SpendableOutput] {

	var (
		best  SpendableOutput
		found bool
	)
	for _, out := range ordinary {
		if out.Value > p.cfg.Policy.AnchorValue {
			continue
		}
		if !found || out.Value < best.Value {
			best, found = out, true
		}
	}

	if !found {
		return fn.None[SpendableOutput]()
	}
	return fn.Some(best)
}

// EnsureAnchor returns an anchor from ordinary, splitting the smallest
// ordinary output into an anchor and a remainder when there is none. If a
// split was broadcast, its txid is returned alongside the anchor. The split
// is never undone, even if a later step of the trade fails.
func (p *Provisioner) EnsureAnchor(ctx context.Context,
	ordinary []SpendableOutput) (*SpendableOutput,
	fn.Option[chainhash.Hash], error) {

	noSplit := fn.None[chainhash.Hash]()

	if existing := p.FindAnchor(ordinary); existing.IsSome() {
		anchor := existing.UnwrapOr(SpendableOutput{})
		log.Debugf("Using existing anchor %v (%v)", anchor.OutPoint,
			anchor.Value)
		return &anchor, noSplit, nil
	}

	if len(ordinary) == 0 {
		return nil, noSplit, swapError(ErrInsufficientFundsForAnchor,
			"no ordinary output to split into an anchor", nil)
	}

	source := ordinary[0]
	for _, out := range ordinary[1:] {
		if out.Value < source.Value {
			source = out
		}
	}

	splitTx, err := p.buildSplit(ctx, &source)
	if err != nil {
		return nil, noSplit, err
	}

	signed, err := p.cfg.Wallet.AuthorizePartial(
		ctx, splitTx, txscript.SigHashAll,
	)
	if err != nil {
		return nil, noSplit, collaboratorError("authorize anchor split",
			err)
	}
	tx, err := p.cfg.Wallet.Finalize(ctx, signed)
	if err != nil {
		return nil, noSplit, collaboratorError("finalize anchor split",
			err)
	}

	log.Tracef("Anchor split transaction: %v", spewTx(tx))

	txid, err := p.cfg.Wallet.Broadcast(ctx, tx)
	if err != nil {
		return nil, noSplit, collaboratorError("broadcast anchor split",
			err)
	}

	log.Infof("Broadcast anchor split %v spending %v", txid,
		source.OutPoint)

	anchorOp := wire.OutPoint{Hash: *txid, Index: 0}
	anchor, err := p.waitForOutput(ctx, anchorOp)
	if err != nil {
		return nil, fn.Some(*txid), err
	}

	return anchor, fn.Some(*txid), nil
}

// buildSplit returns an unsigned packet paying source to its own script as
// [anchor, remainder].
func (p *Provisioner) buildSplit(ctx context.Context,
	source *SpendableOutput) (*psbt.Packet, error) {

	policy := &p.cfg.Policy
	remainder := source.Value - policy.AnchorValue - policy.SplitFee()
	if remainder <= 0 || txrules.IsDustAmount(
		remainder, len(source.PkScript), txrules.DefaultRelayFeePerKb,
	) {

		return nil, swapError(ErrInsufficientFundsForAnchor,
			fmt.Sprintf("output %v worth %v cannot fund a %v "+
				"anchor and a %v fee", source.OutPoint,
				source.Value, policy.AnchorValue,
				policy.SplitFee()), nil)
	}

	prevTx, err := p.cfg.Wallet.GetTransaction(ctx, &source.OutPoint.Hash)
	if err != nil {
		return nil, collaboratorError("fetch anchor split input", err)
	}
	if int(source.OutPoint.Index) >= len(prevTx.TxOut) {
		return nil, swapError(ErrInsufficientFundsForAnchor,
			fmt.Sprintf("output %v not found in its transaction",
				source.OutPoint), nil)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&source.OutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(policy.AnchorValue), source.PkScript))
	tx.AddTxOut(wire.NewTxOut(int64(remainder), source.PkScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	decorateInput(&packet.Inputs[0], prevTx, source.OutPoint.Index)

	return packet, nil
}

// waitForOutput polls the wallet until it reports op as spendable.
func (p *Provisioner) waitForOutput(ctx context.Context,
	op wire.OutPoint) (*SpendableOutput, error) {

	t := ticker.New(p.cfg.PollInterval)
	t.Resume()
	defer t.Stop()

	for {
		outs, err := p.cfg.Wallet.ListUnspent(ctx)
		if err != nil {
			return nil, collaboratorError("list unspent", err)
		}
		for _, out := range outs {
			if out.OutPoint == op {
				log.Infof("Anchor %v is spendable", op)
				return &out, nil
			}
		}

		log.Debugf("Waiting for anchor %v to become spendable", op)

		select {
		case <-t.Ticks():
		case <-ctx.Done():
			return nil, collaboratorError("wait for anchor",
				ctx.Err())
		}
	}
}
