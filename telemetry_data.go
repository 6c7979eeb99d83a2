// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of one extraction.
type TelemetryData struct {
	// ExtractedDirs is the number of extracted directories
	ExtractedDirs int64 `json:"extracted_dirs"`

	// ExtractedFiles is the number of extracted regular files
	ExtractedFiles int64 `json:"extracted_files"`

	// ExtractedSymlinks is the number of extracted symlinks
	ExtractedSymlinks int64 `json:"extracted_symlinks"`

	// ExtractedHardlinks is the number of restored hardlinks
	ExtractedHardlinks int64 `json:"extracted_hardlinks"`

	// ExtractionDuration is the time it took to extract the archive
	ExtractionDuration time.Duration `json:"extraction_duration"`

	// ExtractionErrors is the number of errors during extraction
	ExtractionErrors int64 `json:"extraction_errors"`

	// ExtractionSize is the size of the extracted files
	ExtractionSize int64 `json:"extraction_size"`

	// InputSize is the number of bytes read from the input archive
	InputSize int64 `json:"input_size"`

	// LastExtractionError is the last error during extraction
	LastExtractionError error `json:"last_extraction_error"`

	// LastUnsupportedFile is the last skipped unsupported entry
	LastUnsupportedFile string `json:"last_unsupported_file"`

	// PayloadCompression is the compression algorithm of the payload
	PayloadCompression string `json:"payload_compression"`

	// RewrittenPaths is the number of absolute entry names that were
	// rewritten to stay inside the destination
	RewrittenPaths int64 `json:"rewritten_paths"`

	// UnsupportedFiles is the number of skipped unsupported entries
	UnsupportedFiles int64 `json:"unsupported_files"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastExtractionError != nil {
		lastError = m.LastExtractionError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastExtractionError string `json:"last_extraction_error"`
		*Alias
	}{
		LastExtractionError: lastError,
		Alias:               (*Alias)(&m),
	})
}

// TelemetryHook is a function type that consumes the [TelemetryData] of a
// finished extraction, which can be used to submit the data to a telemetry
// service, for example.
type TelemetryHook func(context.Context, *TelemetryData)
