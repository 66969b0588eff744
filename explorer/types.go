// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package explorer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Inscription is the JSON representation of an inscription served by
// /inscription/<id>.
type Inscription struct {
	ID       string `json:"id"`
	Number   int64  `json:"number"`
	Address  string `json:"address"`
	SatPoint string `json:"satpoint"`
	Value    int64  `json:"value"`
}

// Location parses the inscription's satpoint.
func (i *Inscription) Location() (wire.OutPoint, uint64, error) {
	return ParseSatPoint(i.SatPoint)
}

// Output is the JSON representation of an output served by
// /output/<txid>:<vout>.
type Output struct {
	Address      string          `json:"address"`
	ScriptPubKey string          `json:"script_pubkey"`
	Transaction  string          `json:"transaction"`
	Value        int64           `json:"value"`
	Spent        bool            `json:"spent"`
	Inscriptions []string        `json:"inscriptions"`
	Runes        json.RawMessage `json:"runes"`
}

// HasRunes reports whether the output carries any rune balance. Depending on
// the server version runes are served as an object or as a list of pairs.
func (o *Output) HasRunes() bool {
	runes := bytes.TrimSpace(o.Runes)
	switch string(runes) {
	case "", "null", "{}", "[]":
		return false
	}
	return true
}

// HasInscription reports whether the output carries the inscription.
func (o *Output) HasInscription(id string) bool {
	for _, other := range o.Inscriptions {
		if other == id {
			return true
		}
	}
	return false
}

// Protected reports whether the output carries anything that must not be
// spent as plain bitcoin.
func (o *Output) Protected() bool {
	return len(o.Inscriptions) > 0 || o.HasRunes()
}

// ParseSatPoint parses a satpoint of the form <txid>:<vout>:<offset>.
func ParseSatPoint(s string) (wire.OutPoint, uint64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return wire.OutPoint{}, 0, fmt.Errorf("malformed satpoint %q", s)
	}

	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return wire.OutPoint{}, 0, fmt.Errorf("malformed satpoint "+
			"%q: %w", s, err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return wire.OutPoint{}, 0, fmt.Errorf("malformed satpoint "+
			"%q: %w", s, err)
	}
	offset, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return wire.OutPoint{}, 0, fmt.Errorf("malformed satpoint "+
			"%q: %w", s, err)
	}

	return *wire.NewOutPoint(hash, uint32(vout)), offset, nil
}
