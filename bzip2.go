// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"compress/bzip2"
	"io"
)

// compressorBzip2 is the payload compressor tag value for bzip2.
const compressorBzip2 = "bzip2"

// magicBytesBzip2 are the magic bytes for bzip2 compressed payloads
// reference: https://en.wikipedia.org/wiki/Bzip2 // https://github.com/dsnet/compress/blob/master/doc/bzip2-format.pdf
var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"),
	[]byte("BZh2"),
	[]byte("BZh3"),
	[]byte("BZh4"),
	[]byte("BZh5"),
	[]byte("BZh6"),
	[]byte("BZh7"),
	[]byte("BZh8"),
	[]byte("BZh9"),
}

// isBzip2 checks if the header matches the magic bytes for bzip2 compressed payloads
func isBzip2(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesBzip2)
}

// decompressBz2Stream returns an io.Reader that decompresses src with bzip2 algorithm.
func decompressBz2Stream(src io.Reader) (io.Reader, error) {
	return bzip2.NewReader(src), nil
}
