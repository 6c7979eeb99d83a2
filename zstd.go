// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// compressorZstd is the payload compressor tag value for zstandard.
const compressorZstd = "zstd"

// magicBytesZstd is the magic bytes for zstandard compressed payloads.
// reference: https://www.rfc-editor.org/rfc/rfc8878.html
var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// isZstd checks if the header matches the zstandard magic bytes.
func isZstd(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZstd)
}

// decompressZstdStream returns an io.Reader that decompresses src with zstandard algorithm
func decompressZstdStream(src io.Reader) (io.Reader, error) {
	r, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}

	// Decoder.Close has no error result and so does not satisfy io.Closer;
	// IOReadCloser wraps it so the caller can release the decoder goroutines.
	return r.IOReadCloser(), nil
}
