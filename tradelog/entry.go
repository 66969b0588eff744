// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tradelog

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeTradeID      tlv.Type = 1
	typeArtifactID   tlv.Type = 2
	typeState        tlv.Type = 3
	typePrice        tlv.Type = 4
	typeFee          tlv.Type = 5
	typeChange       tlv.Type = 6
	typeAnchorSplit  tlv.Type = 7
	typePurchaseTxid tlv.Type = 8
	typeFailure      tlv.Type = 9
	typeStarted      tlv.Type = 10
	typeFinished     tlv.Type = 11
)

// Entry is one journaled trade attempt.
type Entry struct {
	// Seq is the position of the entry in the journal. It is assigned
	// when the entry is recorded.
	Seq uint64

	TradeID    string
	ArtifactID string

	// State is the state the trade ended in.
	State string

	Price  btcutil.Amount
	Fee    btcutil.Amount
	Change btcutil.Amount

	// AnchorSplit is the txid of the anchor split the trade broadcast,
	// if any. It is recorded for aborted trades too.
	AnchorSplit fn.Option[chainhash.Hash]

	PurchaseTxid fn.Option[chainhash.Hash]

	// Failure is the error that aborted the trade.
	Failure string

	Started  time.Time
	Finished time.Time
}

// encodeEntry serializes the entry as a TLV stream. Optional fields are
// omitted when unset.
func encodeEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, errors.New("cannot encode nil entry")
	}

	var (
		tradeID    = []byte(e.TradeID)
		artifactID = []byte(e.ArtifactID)
		state      = []byte(e.State)
		price      = uint64(e.Price)
		fee        = uint64(e.Fee)
		change     = uint64(e.Change)
		started    = encodeTime(e.Started)
		finished   = encodeTime(e.Finished)
	)
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeTradeID, &tradeID),
		tlv.MakePrimitiveRecord(typeArtifactID, &artifactID),
		tlv.MakePrimitiveRecord(typeState, &state),
		tlv.MakePrimitiveRecord(typePrice, &price),
		tlv.MakePrimitiveRecord(typeFee, &fee),
		tlv.MakePrimitiveRecord(typeChange, &change),
	}

	var anchor, purchase [32]byte
	e.AnchorSplit.WhenSome(func(h chainhash.Hash) {
		anchor = h
		records = append(records, tlv.MakePrimitiveRecord(
			typeAnchorSplit, &anchor,
		))
	})
	e.PurchaseTxid.WhenSome(func(h chainhash.Hash) {
		purchase = h
		records = append(records, tlv.MakePrimitiveRecord(
			typePurchaseTxid, &purchase,
		))
	})

	failure := []byte(e.Failure)
	if len(failure) > 0 {
		records = append(records, tlv.MakePrimitiveRecord(
			typeFailure, &failure,
		))
	}

	records = append(records,
		tlv.MakePrimitiveRecord(typeStarted, &started),
		tlv.MakePrimitiveRecord(typeFinished, &finished),
	)

	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeEntry parses an entry serialized by encodeEntry.
func decodeEntry(seq uint64, data []byte) (*Entry, error) {
	var (
		tradeID, artifactID, state, failure []byte
		price, fee, change                  uint64
		anchor, purchase                    [32]byte
		started, finished                   uint64
	)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTradeID, &tradeID),
		tlv.MakePrimitiveRecord(typeArtifactID, &artifactID),
		tlv.MakePrimitiveRecord(typeState, &state),
		tlv.MakePrimitiveRecord(typePrice, &price),
		tlv.MakePrimitiveRecord(typeFee, &fee),
		tlv.MakePrimitiveRecord(typeChange, &change),
		tlv.MakePrimitiveRecord(typeAnchorSplit, &anchor),
		tlv.MakePrimitiveRecord(typePurchaseTxid, &purchase),
		tlv.MakePrimitiveRecord(typeFailure, &failure),
		tlv.MakePrimitiveRecord(typeStarted, &started),
		tlv.MakePrimitiveRecord(typeFinished, &finished),
	)
	if err != nil {
		return nil, err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", seq, err)
	}

	e := &Entry{
		Seq:          seq,
		TradeID:      string(tradeID),
		ArtifactID:   string(artifactID),
		State:        string(state),
		Price:        btcutil.Amount(price),
		Fee:          btcutil.Amount(fee),
		Change:       btcutil.Amount(change),
		AnchorSplit:  fn.None[chainhash.Hash](),
		PurchaseTxid: fn.None[chainhash.Hash](),
		Failure:      string(failure),
		Started:      decodeTime(started),
		Finished:     decodeTime(finished),
	}
	if _, ok := parsed[typeAnchorSplit]; ok {
		e.AnchorSplit = fn.Some(chainhash.Hash(anchor))
	}
	if _, ok := parsed[typePurchaseTxid]; ok {
		e.PurchaseTxid = fn.Some(chainhash.Hash(purchase))
	}

	return e, nil
}

// encodeTime stores a timestamp as unix nanoseconds, the zero time as 0.
func encodeTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}

func decodeTime(n uint64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n))
}
