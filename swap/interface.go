// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrUnknownArtifact is returned by a MetadataService that does not know the
// requested artifact.
var ErrUnknownArtifact = errors.New("unknown artifact")

// NodeWallet is one party's wallet. It owns the keys and the live output
// set, and is the only component that signs or broadcasts.
type NodeWallet interface {
	// ListUnspent returns the wallet's spendable outputs.
	ListUnspent(ctx context.Context) ([]SpendableOutput, error)

	// GetTransaction returns a transaction by hash.
	GetTransaction(ctx context.Context,
		txid *chainhash.Hash) (*wire.MsgTx, error)

	// AuthorizePartial signs every input of the packet the wallet has
	// keys for with the given sighash type and returns the updated
	// packet. Inputs it cannot sign are returned untouched.
	AuthorizePartial(ctx context.Context, packet *psbt.Packet,
		hashType txscript.SigHashType) (*psbt.Packet, error)

	// Finalize turns a fully authorized packet into a network
	// transaction.
	Finalize(ctx context.Context, packet *psbt.Packet) (*wire.MsgTx, error)

	// Broadcast publishes a transaction. Publishing a transaction the
	// network already knows succeeds.
	Broadcast(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)

	// GetBalance returns the wallet's trusted balance.
	GetBalance(ctx context.Context) (btcutil.Amount, error)
}

// MetadataService answers questions about artifacts bound to outputs.
type MetadataService interface {
	// Locate returns every location the service reports for the
	// artifact. It returns ErrUnknownArtifact for unknown ids.
	Locate(ctx context.Context, artifactID string) ([]Location, error)

	// IsProtected reports whether the output carries an artifact that
	// must not be spent as payment.
	IsProtected(ctx context.Context, op wire.OutPoint) (bool, error)
}
