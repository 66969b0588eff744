// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trade

import "fmt"

// Error describes an aborted trade: the step that failed, the artifact being
// traded and the underlying error, usually a swap.Error. The whole trade may
// be retried from scratch.
type Error struct {
	Stage      State
	ArtifactID string
	Err        error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("trade of artifact %s aborted at %v: %v",
		e.ArtifactID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
