// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trade

import "fmt"

// State is a step of a trade. A trade moves through the states in
// declaration order until it reaches StateDone, or stops at StateAborted.
type State uint8

const (
	// StateIdle is the state of a trade that has not started.
	StateIdle State = iota

	// StateLocateArtifact resolves the artifact to its current output.
	StateLocateArtifact

	// StateBuildListing has the seller authorize the listing.
	StateBuildListing

	// StateCheckBuyerFunds compares the buyer's balance with the total
	// the purchase needs.
	StateCheckBuyerFunds

	// StateProvisionAnchor finds or creates the buyer's anchor output.
	StateProvisionAnchor

	// StateSelectPayment picks the buyer's payment inputs.
	StateSelectPayment

	// StateAssemblePurchase combines the listing with the buyer's inputs
	// and has the buyer authorize them.
	StateAssemblePurchase

	// StateFinalize turns the authorized purchase into a network
	// transaction and verifies every input.
	StateFinalize

	// StateBroadcast publishes the purchase.
	StateBroadcast

	// StateDone is the state of a completed trade.
	StateDone

	// StateAborted is the state of a trade that failed at some step.
	StateAborted
)

var stateStrings = map[State]string{
	StateIdle:             "Idle",
	StateLocateArtifact:   "LocateArtifact",
	StateBuildListing:     "BuildListing",
	StateCheckBuyerFunds:  "CheckBuyerFunds",
	StateProvisionAnchor:  "ProvisionAnchor",
	StateSelectPayment:    "SelectPayment",
	StateAssemblePurchase: "AssemblePurchase",
	StateFinalize:         "Finalize",
	StateBroadcast:        "Broadcast",
	StateDone:             "Done",
	StateAborted:          "Aborted",
}

// String returns the name of the state.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown State (%d)", uint8(s))
}
