// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"compress/gzip"
	"io"
)

// compressorGZip is the payload compressor tag value for gzip, the
// historical default of rpm.
const compressorGZip = "gzip"

// magicBytesGZip are the magic bytes for gzip compressed payloads.
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the magic bytes for gzip compressed payloads.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// decompressGZipStream returns an io.Reader that decompresses src with gzip algorithm.
func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}
