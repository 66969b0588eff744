// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swaptest

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ordswap/ordswap/swap"
	"github.com/stretchr/testify/mock"
)

// MockWallet is a mock implementation of the swap.NodeWallet interface. Every
// method accepts either a plain return value or a function computing it from
// the call's arguments.
type MockWallet struct {
	mock.Mock
}

// A compile-time assertion to ensure that MockWallet implements the
// NodeWallet interface.
var _ swap.NodeWallet = (*MockWallet)(nil)

// ListUnspent implements the swap.NodeWallet interface.
func (m *MockWallet) ListUnspent(
	ctx context.Context) ([]swap.SpendableOutput, error) {

	args := m.Called(ctx)
	switch v := args.Get(0).(type) {
	case func() []swap.SpendableOutput:
		return v(), args.Error(1)
	case []swap.SpendableOutput:
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// GetTransaction implements the swap.NodeWallet interface.
func (m *MockWallet) GetTransaction(ctx context.Context,
	txid *chainhash.Hash) (*wire.MsgTx, error) {

	args := m.Called(ctx, txid)
	switch v := args.Get(0).(type) {
	case func(*chainhash.Hash) *wire.MsgTx:
		return v(txid), args.Error(1)
	case *wire.MsgTx:
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// AuthorizePartial implements the swap.NodeWallet interface.
func (m *MockWallet) AuthorizePartial(ctx context.Context, packet *psbt.Packet,
	hashType txscript.SigHashType) (*psbt.Packet, error) {

	args := m.Called(ctx, packet, hashType)
	switch v := args.Get(0).(type) {
	case func(*psbt.Packet, txscript.SigHashType) *psbt.Packet:
		return v(packet, hashType), args.Error(1)
	case *psbt.Packet:
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// Finalize implements the swap.NodeWallet interface.
func (m *MockWallet) Finalize(ctx context.Context,
	packet *psbt.Packet) (*wire.MsgTx, error) {

	args := m.Called(ctx, packet)
	switch v := args.Get(0).(type) {
	case func(*psbt.Packet) *wire.MsgTx:
		return v(packet), args.Error(1)
	case *wire.MsgTx:
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// Broadcast implements the swap.NodeWallet interface.
func (m *MockWallet) Broadcast(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	args := m.Called(ctx, tx)
	switch v := args.Get(0).(type) {
	case func(*wire.MsgTx) *chainhash.Hash:
		return v(tx), args.Error(1)
	case *chainhash.Hash:
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// GetBalance implements the swap.NodeWallet interface.
func (m *MockWallet) GetBalance(ctx context.Context) (btcutil.Amount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return 0, args.Error(1)
	}

	return args.Get(0).(btcutil.Amount), args.Error(1)
}

// MockMetadata is a mock implementation of the swap.MetadataService
// interface.
type MockMetadata struct {
	mock.Mock
}

// A compile-time assertion to ensure that MockMetadata implements the
// MetadataService interface.
var _ swap.MetadataService = (*MockMetadata)(nil)

// Locate implements the swap.MetadataService interface.
func (m *MockMetadata) Locate(ctx context.Context,
	artifactID string) ([]swap.Location, error) {

	args := m.Called(ctx, artifactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]swap.Location), args.Error(1)
}

// IsProtected implements the swap.MetadataService interface.
func (m *MockMetadata) IsProtected(ctx context.Context,
	op wire.OutPoint) (bool, error) {

	args := m.Called(ctx, op)
	return args.Bool(0), args.Error(1)
}
