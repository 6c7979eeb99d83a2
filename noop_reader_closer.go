// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import "io"

// noopReaderCloser is a wrapper around an io.Reader that implements the
// io.ReadCloser interface with a no-op Close method.
type noopReaderCloser struct {
	r io.Reader
}

// Read reads from the underlying reader.
func (n *noopReaderCloser) Read(p []byte) (int, error) {
	return n.r.Read(p)
}

// Close is a no-op.
func (n *noopReaderCloser) Close() error {
	return nil
}
