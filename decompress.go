// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// decompressionFunc is a function that wraps the given reader with a
// decompressing reader.
type decompressionFunc func(io.Reader) (io.Reader, error)

// headerCheck is a function that checks if the given header matches the
// expected magic bytes.
type headerCheck func([]byte) bool

// payloadDecompressors is the collection of supported payload compressions
// with the compressor tag value that selects them, their magic bytes and the
// matching decompression algorithm. Formats with weak magic bytes come last
// so that sniffing checks the distinctive ones first.
var payloadDecompressors = []struct {
	Name        string
	HeaderCheck headerCheck
	MagicBytes  [][]byte
	Decompress  decompressionFunc
}{
	{
		Name:        compressorGZip,
		HeaderCheck: isGZip,
		MagicBytes:  magicBytesGZip,
		Decompress:  decompressGZipStream,
	},
	{
		Name:        compressorBzip2,
		HeaderCheck: isBzip2,
		MagicBytes:  magicBytesBzip2,
		Decompress:  decompressBz2Stream,
	},
	{
		Name:        compressorXz,
		HeaderCheck: isXz,
		MagicBytes:  magicBytesXz,
		Decompress:  decompressXzStream,
	},
	{
		Name:        compressorZstd,
		HeaderCheck: isZstd,
		MagicBytes:  magicBytesZstd,
		Decompress:  decompressZstdStream,
	},
	{
		Name:        compressorLZ4,
		HeaderCheck: isLZ4,
		MagicBytes:  magicBytesLZ4,
		Decompress:  decompressLZ4Stream,
	},
	{
		Name:        compressorLzma,
		HeaderCheck: isLzma,
		MagicBytes:  magicBytesLzma,
		Decompress:  decompressLzmaStream,
	},
}

// maxHeaderLength is the longest prefix needed to identify any supported
// payload compression or the bare cpio format by magic bytes.
var maxHeaderLength int

// init calculates the maximum header length
func init() {
	collections := [][][]byte{magicBytesCpio}
	for _, d := range payloadDecompressors {
		collections = append(collections, d.MagicBytes)
	}
	for _, magics := range collections {
		for _, mb := range magics {
			if len(mb) > maxHeaderLength {
				maxHeaderLength = len(mb)
			}
		}
	}
}

// matchesMagicBytes checks if data matches any of the given magic byte
// sequences at the given offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		if offset+len(mb) > len(data) {
			continue
		}
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}
	return false
}

// payloadReader wraps src with the decompression named by compressor. The
// compressor tag of the package header is authoritative; when it is empty or
// unknown, the payload magic bytes decide instead. An already plain cpio
// stream is passed through. The returned name identifies the chosen
// compression, empty for a plain stream.
func payloadReader(src io.Reader, compressor string) (io.Reader, string, error) {
	for _, d := range payloadDecompressors {
		if d.Name != compressor {
			continue
		}
		r, err := d.Decompress(src)
		if err != nil {
			return nil, "", fmt.Errorf("cannot decompress %s payload: %w", d.Name, err)
		}
		return r, d.Name, nil
	}

	// unknown compressor tag, identify the payload by its magic bytes
	br := bufio.NewReader(src)
	header, err := br.Peek(maxHeaderLength)
	if err != nil && len(header) == 0 {
		return nil, "", fmt.Errorf("cannot sniff payload header: %w", err)
	}

	for _, d := range payloadDecompressors {
		if !d.HeaderCheck(header) {
			continue
		}
		r, err := d.Decompress(br)
		if err != nil {
			return nil, "", fmt.Errorf("cannot decompress %s payload: %w", d.Name, err)
		}
		return r, d.Name, nil
	}

	if isCpio(header) {
		return br, "", nil
	}

	return nil, "", fmt.Errorf("unsupported payload compressor %q", compressor)
}
