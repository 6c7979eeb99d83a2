// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// fileExtensionRPM is the file extension for rpm packages
const fileExtensionRPM = "rpm"

// magicBytesRPM are the magic bytes of the rpm package lead.
//
// reference: https://refspecs.linuxbase.org/LSB_4.1.0/LSB-Core-generic/LSB-Core-generic/pkgformat.html
var magicBytesRPM = [][]byte{
	{0xed, 0xab, 0xee, 0xdb},
}

// isRPM checks if the header matches the magic bytes for rpm packages
func isRPM(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesRPM)
}

const (
	// rpmLeadSize is the size of the obsolete lead block at the start of
	// every rpm package.
	rpmLeadSize = 96

	// rpmTypeString is the header index type of a NUL-terminated string.
	rpmTypeString = 6

	// rpmTagPayloadFormat names the archive format of the payload,
	// practically always "cpio".
	rpmTagPayloadFormat = 1124

	// rpmTagPayloadCompressor names the compression of the payload. Old
	// packages omit the tag and imply gzip.
	rpmTagPayloadCompressor = 1125

	// rpmMaxHeaderEntries and rpmMaxHeaderSize bound the header structure
	// against corrupt input, using the limits rpm itself enforces.
	rpmMaxHeaderEntries = 0x0000ffff
	rpmMaxHeaderSize    = 0x0fffffff
)

// rpmHeaderMagic introduces the signature header and the main header.
var rpmHeaderMagic = []byte{0x8e, 0xad, 0xe8}

// rpmPayload describes where the payload of an rpm package begins and how
// it is packed.
type rpmPayload struct {
	format     string // payload archive format
	compressor string // payload compression, empty means gzip
	r          io.Reader
}

// parseRPM consumes the lead, the signature header and the main header from
// r and returns the payload description, with r positioned at the first byte
// of the compressed payload.
func parseRPM(r io.Reader) (*rpmPayload, error) {
	lead := make([]byte, rpmLeadSize)
	if _, err := io.ReadFull(r, lead); err != nil {
		return nil, fmt.Errorf("cannot read rpm lead: %w", err)
	}
	if !isRPM(lead) {
		return nil, fmt.Errorf("invalid rpm lead magic %x", lead[:4])
	}

	// the signature header is padded to an eight byte boundary, the main
	// header is not
	if err := readRPMHeader(r, true, nil); err != nil {
		return nil, fmt.Errorf("cannot read signature header: %w", err)
	}

	var format, compressor string
	wanted := map[int32]*string{
		rpmTagPayloadFormat:     &format,
		rpmTagPayloadCompressor: &compressor,
	}
	if err := readRPMHeader(r, false, wanted); err != nil {
		return nil, fmt.Errorf("cannot read package header: %w", err)
	}

	// absent tags carry the historical defaults
	if format == "" {
		format = "cpio"
	}
	if format != "cpio" {
		return nil, fmt.Errorf("unsupported rpm payload format %q", format)
	}

	return &rpmPayload{
		format:     format,
		compressor: compressor,
		r:          r,
	}, nil
}

// readRPMHeader consumes one header structure from r. String tags listed in
// wanted are decoded into the mapped destinations. If padded is set, the
// trailing alignment of the structure is consumed as well.
func readRPMHeader(r io.Reader, padded bool, wanted map[int32]*string) error {
	intro := make([]byte, 16)
	if _, err := io.ReadFull(r, intro); err != nil {
		return fmt.Errorf("cannot read header intro: %w", err)
	}
	if !bytes.Equal(intro[:3], rpmHeaderMagic) {
		return fmt.Errorf("invalid header magic %x", intro[:3])
	}

	entries := binary.BigEndian.Uint32(intro[8:12])
	storeSize := binary.BigEndian.Uint32(intro[12:16])
	if entries > rpmMaxHeaderEntries {
		return fmt.Errorf("implausible header entry count %d", entries)
	}
	if storeSize > rpmMaxHeaderSize {
		return fmt.Errorf("implausible header store size %d", storeSize)
	}

	index := make([]byte, int64(entries)*16)
	if _, err := io.ReadFull(r, index); err != nil {
		return fmt.Errorf("cannot read header index: %w", err)
	}

	store := make([]byte, storeSize)
	if _, err := io.ReadFull(r, store); err != nil {
		return fmt.Errorf("cannot read header store: %w", err)
	}

	if padded {
		if pad := (8 - int64(storeSize)%8) % 8; pad > 0 {
			if _, err := io.CopyN(io.Discard, r, pad); err != nil {
				return fmt.Errorf("cannot skip header padding: %w", err)
			}
		}
	}

	for i := 0; i < int(entries) && len(wanted) > 0; i++ {
		entry := index[i*16 : (i+1)*16]
		tag := int32(binary.BigEndian.Uint32(entry[0:4]))
		typ := binary.BigEndian.Uint32(entry[4:8])
		offset := binary.BigEndian.Uint32(entry[8:12])

		dst, ok := wanted[tag]
		if !ok || typ != rpmTypeString {
			continue
		}
		if offset >= storeSize {
			return fmt.Errorf("header tag %d points outside the store", tag)
		}

		value := store[offset:]
		if end := bytes.IndexByte(value, 0); end >= 0 {
			value = value[:end]
		}
		*dst = string(value)
	}

	return nil
}
