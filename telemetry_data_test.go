package rpmextract_test

import (
	"fmt"
	"testing"
	"time"

	rpmextract "github.com/hashicorp/go-rpmextract"
)

// TestTelemetryDataString tests the String method of the telemetry data
func TestTelemetryDataString(t *testing.T) {
	td := rpmextract.TelemetryData{
		ExtractedDirs:       1,
		ExtractedFiles:      5,
		ExtractedSymlinks:   2,
		ExtractedHardlinks:  3,
		ExtractionDuration:  time.Duration(5 * time.Millisecond),
		ExtractionErrors:    1,
		ExtractionSize:      1024,
		InputSize:           2048,
		LastExtractionError: fmt.Errorf("example error"),
		PayloadCompression:  "gzip",
		RewrittenPaths:      1,
	}

	expected := `{"last_extraction_error":"example error","extracted_dirs":1,"extracted_files":5,"extracted_symlinks":2,"extracted_hardlinks":3,"extraction_duration":5000000,"extraction_errors":1,"extraction_size":1024,"input_size":2048,"last_unsupported_file":"","payload_compression":"gzip","rewritten_paths":1,"unsupported_files":0}`
	if td.String() != expected {
		t.Errorf("Expected '%s', but got '%s'", expected, td.String())
	}
}

// TestTelemetryDataWithoutError ensures a run without errors marshals an
// empty error string
func TestTelemetryDataWithoutError(t *testing.T) {
	td := rpmextract.TelemetryData{
		ExtractedFiles:     1,
		PayloadCompression: "zstd",
	}

	expected := `{"last_extraction_error":"","extracted_dirs":0,"extracted_files":1,"extracted_symlinks":0,"extracted_hardlinks":0,"extraction_duration":0,"extraction_errors":0,"extraction_size":0,"input_size":0,"last_unsupported_file":"","payload_compression":"zstd","rewritten_paths":0,"unsupported_files":0}`
	if td.String() != expected {
		t.Errorf("Expected '%s', but got '%s'", expected, td.String())
	}
}
