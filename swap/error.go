// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a kind of error.
type ErrorKind int

// These constants are used to identify a specific Error.
const (
	// ErrNotFound indicates that the metadata service does not know the
	// requested artifact.
	ErrNotFound ErrorKind = iota

	// ErrAmbiguousLocation indicates that the metadata service returned
	// conflicting or unusable location data for an artifact.
	ErrAmbiguousLocation

	// ErrTransientLookup indicates that the metadata service could not be
	// queried. The whole trade may be retried.
	ErrTransientLookup

	// ErrInsufficientFundsForAnchor indicates that no ordinary output can
	// be split into an anchor and a positive remainder.
	ErrInsufficientFundsForAnchor

	// ErrInsufficientFunds indicates that the buyer cannot cover the
	// price plus fees, either by balance or by selectable outputs.
	ErrInsufficientFunds

	// ErrMalformedListing indicates that a listing does not have the
	// single input, single output SIGHASH_SINGLE|ANYONECANPAY shape.
	ErrMalformedListing

	// ErrPriceMismatch indicates that the seller output does not pay the
	// agreed price or was modified.
	ErrPriceMismatch

	// ErrCollaboratorUnavailable indicates that a call to the node wallet
	// or the metadata service failed. When this error kind is set, the Err
	// field carries the underlying error.
	ErrCollaboratorUnavailable

	// ErrAuthorizationAltered indicates that the buyer's signer touched
	// the seller's authorization of the artifact input.
	ErrAuthorizationAltered

	// ErrIncompleteAuthorization indicates that an input the buyer is
	// expected to sign carries no authorization.
	ErrIncompleteAuthorization

	// ErrInvalidAuthorization indicates that a finalized transaction does
	// not pass script verification, or that a signer returned a different
	// transaction than the one it was asked to sign.
	ErrInvalidAuthorization

	// ErrInvalidPolicy indicates a fee policy that cannot produce a
	// standard transaction.
	ErrInvalidPolicy
)

// Map of ErrorKind values back to their constant names for pretty printing.
var errorKindStrings = map[ErrorKind]string{
	ErrNotFound:                   "ErrNotFound",
	ErrAmbiguousLocation:          "ErrAmbiguousLocation",
	ErrTransientLookup:            "ErrTransientLookup",
	ErrInsufficientFundsForAnchor: "ErrInsufficientFundsForAnchor",
	ErrInsufficientFunds:          "ErrInsufficientFunds",
	ErrMalformedListing:           "ErrMalformedListing",
	ErrPriceMismatch:              "ErrPriceMismatch",
	ErrCollaboratorUnavailable:    "ErrCollaboratorUnavailable",
	ErrAuthorizationAltered:       "ErrAuthorizationAltered",
	ErrIncompleteAuthorization:    "ErrIncompleteAuthorization",
	ErrInvalidAuthorization:       "ErrInvalidAuthorization",
	ErrInvalidPolicy:              "ErrInvalidPolicy",
}

// String returns the ErrorKind as a human-readable name.
func (e ErrorKind) String() string {
	if s := errorKindStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", int(e))
}

// Error provides a single type for errors that can happen while locating an
// artifact or assembling a swap.
type Error struct {
	Kind        ErrorKind // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// swapError creates an Error given a set of arguments.
func swapError(k ErrorKind, desc string, err error) Error {
	return Error{Kind: k, Description: desc, Err: err}
}

// collaboratorError wraps a failed call to an external service.
func collaboratorError(op string, err error) Error {
	return swapError(ErrCollaboratorUnavailable, op+" failed", err)
}

// IsKind returns true if err is, or wraps, an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the kind of the first Error found in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}

