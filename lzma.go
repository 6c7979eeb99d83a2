// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// compressorLzma is the payload compressor tag value for the legacy
// lzma-alone format used by some older packages.
const compressorLzma = "lzma"

// magicBytesLzma is the usual start of an lzma-alone stream. The format has
// no real magic; this is the properties byte and dictionary size written by
// common encoders, so it is only checked after all distinctive formats.
var magicBytesLzma = [][]byte{
	{0x5D, 0x00, 0x00},
}

// isLzma checks if the header looks like an lzma-alone stream.
func isLzma(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesLzma)
}

// decompressLzmaStream returns an io.Reader that decompresses src with lzma algorithm
func decompressLzmaStream(src io.Reader) (io.Reader, error) {
	return lzma.NewReader(src)
}
