// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import "errors"

// ErrNotTerminal is returned when a secret is requested but stdin is not an
// interactive terminal.
var ErrNotTerminal = errors.New("prompt not supported in WebAssembly")

// Secret always fails in WebAssembly builds.
func Secret(string) (string, error) {
	return "", ErrNotTerminal
}
