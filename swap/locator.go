// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Locator resolves artifact identifiers to their current output and owner.
// It keeps no state between calls.
type Locator struct {
	svc    MetadataService
	params *chaincfg.Params
}

// NewLocator returns a Locator that asks svc and decodes owner addresses for
// the given network.
func NewLocator(svc MetadataService, params *chaincfg.Params) *Locator {
	return &Locator{svc: svc, params: params}
}

// Locate returns the current location of the artifact.
func (l *Locator) Locate(ctx context.Context,
	artifactID string) (*InscriptionRecord, error) {

	locs, err := l.svc.Locate(ctx, artifactID)
	switch {
	case errors.Is(err, ErrUnknownArtifact):
		return nil, swapError(ErrNotFound, fmt.Sprintf("artifact %s "+
			"not found", artifactID), err)

	case err != nil:
		return nil, swapError(ErrTransientLookup, fmt.Sprintf("unable "+
			"to look up artifact %s", artifactID), err)

	case len(locs) == 0:
		return nil, swapError(ErrNotFound, fmt.Sprintf("artifact %s "+
			"has no location", artifactID), nil)
	}

	loc := locs[0]
	for _, other := range locs[1:] {
		if other != loc {
			return nil, swapError(ErrAmbiguousLocation,
				fmt.Sprintf("artifact %s reported at both "+
					"%v:%d and %v:%d", artifactID,
					loc.OutPoint, loc.Offset,
					other.OutPoint, other.Offset), nil)
		}
	}

	if loc.Address == "" {
		return nil, swapError(ErrAmbiguousLocation, fmt.Sprintf("no "+
			"owner reported for artifact %s", artifactID), nil)
	}
	owner, err := btcutil.DecodeAddress(loc.Address, l.params)
	if err != nil {
		return nil, swapError(ErrAmbiguousLocation, fmt.Sprintf("owner "+
			"of artifact %s is not a valid address", artifactID),
			err)
	}
	if !owner.IsForNet(l.params) {
		return nil, swapError(ErrAmbiguousLocation, fmt.Sprintf("owner "+
			"%s of artifact %s is not for %s", loc.Address,
			artifactID, l.params.Name), nil)
	}

	log.Debugf("Located artifact %s at %v (offset %d) owned by %s",
		artifactID, loc.OutPoint, loc.Offset, owner)

	return &InscriptionRecord{
		ID:       artifactID,
		OutPoint: loc.OutPoint,
		Offset:   loc.Offset,
		Owner:    owner,
	}, nil
}
