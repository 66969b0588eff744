// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trade

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ordswap/ordswap/swap"
	"github.com/ordswap/ordswap/tradelog"
)

// Report describes one trade attempt, complete or not.
type Report struct {
	// ID identifies the attempt in logs and in the journal.
	ID string

	ArtifactID string
	Price      btcutil.Amount

	// State is the last state the trade reached: StateDone or
	// StateAborted once Execute returns.
	State State

	// Stage is the state the trade was in when it aborted.
	Stage State

	Record  *swap.InscriptionRecord
	Listing *swap.ListingOffer
	Bundle  *swap.PurchaseBundle

	PurchaseTxid fn.Option[chainhash.Hash]

	// AnchorSplit is the txid of the anchor split broadcast on behalf of
	// this trade. The split stays on chain even when the trade aborts.
	AnchorSplit fn.Option[chainhash.Hash]

	Err error

	Started  time.Time
	Finished time.Time
}

func newReport(id, artifactID string, price btcutil.Amount) *Report {
	return &Report{
		ID:           id,
		ArtifactID:   artifactID,
		Price:        price,
		State:        StateIdle,
		PurchaseTxid: fn.None[chainhash.Hash](),
		AnchorSplit:  fn.None[chainhash.Hash](),
		Started:      time.Now(),
	}
}

// entry returns the journal entry for the report.
func (r *Report) entry() *tradelog.Entry {
	e := &tradelog.Entry{
		TradeID:      r.ID,
		ArtifactID:   r.ArtifactID,
		State:        r.State.String(),
		Price:        r.Price,
		AnchorSplit:  r.AnchorSplit,
		PurchaseTxid: r.PurchaseTxid,
		Started:      r.Started,
		Finished:     r.Finished,
	}
	if r.Bundle != nil {
		e.Fee = r.Bundle.Fee
		e.Change = r.Bundle.Change
	}
	if r.Err != nil {
		e.Failure = r.Err.Error()
	}

	return e
}
