package rpmextract

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// compressorLZ4 is the payload compressor tag value for lz4.
const compressorLZ4 = "lz4"

// magicBytesLZ4 is the magic bytes for lz4 compressed payloads.
// reference https://android.googlesource.com/platform/external/lz4/+/HEAD/doc/lz4_Frame_format.md
var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

// isLZ4 checks if the header matches the lz4 magic bytes.
func isLZ4(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesLZ4)
}

// decompressLZ4Stream returns an io.Reader that decompresses src with lz4 algorithm
func decompressLZ4Stream(src io.Reader) (io.Reader, error) {
	return lz4.NewReader(src), nil
}
