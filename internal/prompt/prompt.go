// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !js
// +build !js

package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a secret is requested but stdin is not an
// interactive terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Secret prompts for a secret on the controlling terminal without echoing
// it back.  Surrounding whitespace is trimmed and an empty answer is
// re-prompted.
func Secret(what string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}

	for {
		fmt.Printf("%s: ", what)
		secret, err := term.ReadPassword(fd)
		fmt.Print("\n")
		if err != nil {
			return "", err
		}

		secret = bytes.TrimSpace(secret)
		if len(secret) == 0 {
			continue
		}

		return string(secret), nil
	}
}
