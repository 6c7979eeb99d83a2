// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxFilesExceeded is returned if the archive holds more entries than
	// the configured maximum.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded is returned if the extracted contents grow
	// beyond the configured maximum.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded is returned if the input archive is larger than
	// the configured maximum.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrUnsupportedPlatform is returned for operations that need platform
	// support the current build does not have, such as changing ownership on
	// non-unix systems.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
)

// UnknownIdentityError reports an owner or group name that the system
// identity database does not know. It aborts the reconciliation; an
// extraction that already happened in the same run stays on disk.
type UnknownIdentityError struct {
	// Kind is "owner" or "group".
	Kind string

	// Name is the identity name that failed to resolve.
	Name string
}

func (e *UnknownIdentityError) Error() string {
	database := "password"
	if e.Kind == "group" {
		database = "group"
	}
	return fmt.Sprintf("%s %q not found in %s database", e.Kind, e.Name, database)
}

// UnpackError reports a failed extraction. Diagnostic carries the captured
// output of the external pipeline, or the failing step for the native
// unpacker. The destination directory is left in place for inspection.
type UnpackError struct {
	// Source is the archive that failed to extract.
	Source string

	// Diagnostic is human-readable detail on the failure.
	Diagnostic string

	// Err is the underlying error, if any.
	Err error
}

func (e *UnpackError) Error() string {
	msg := fmt.Sprintf("failed to extract %s RPM file", e.Source)
	if e.Diagnostic != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Diagnostic)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *UnpackError) Unwrap() error {
	return e.Err
}

// OwnershipError reports a permission failure during the recursive ownership
// pass. Path is the root the pass was started on; the wrapped error names
// the entry that was being processed when permission was denied. Ownership
// changes already applied are not rolled back.
type OwnershipError struct {
	// Path is the root of the ownership pass.
	Path string

	// Err is the underlying error from the failing entry.
	Err error
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("failed to change ownership for path: %s [%v]", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OwnershipError) Unwrap() error {
	return e.Err
}
