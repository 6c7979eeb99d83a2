package rpmextract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUnpackRPM(t *testing.T) {
	payloadTime := time.Unix(1700000000, 0)
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: ".", Mode: cpioTypeDir | 0o755, Mtime: payloadTime.Unix()},
		{Name: "./etc", Mode: cpioTypeDir | 0o755, Mtime: payloadTime.Unix()},
		{Name: "./etc/app.conf", Mode: cpioTypeRegular | 0o640, Mtime: payloadTime.Unix(), Content: []byte("key = value\n")},
		{Name: "./usr/bin/app", Mode: cpioTypeRegular | 0o755, Mtime: payloadTime.Unix(), Content: []byte("#!/bin/sh\n")},
	}))

	dst := t.TempDir()
	if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), nil); err != nil {
		t.Fatalf("UnpackRPM() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dst, "etc", "app.conf"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "key = value\n" {
		t.Errorf("file content = %q, expected %q", content, "key = value\n")
	}

	stat, err := os.Stat(filepath.Join(dst, "etc", "app.conf"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Mode().Perm() != 0o640 {
		t.Errorf("file mode = %o, expected 640", stat.Mode().Perm())
	}
	if !stat.ModTime().Equal(payloadTime) {
		t.Errorf("file mtime = %v, expected %v", stat.ModTime(), payloadTime)
	}

	// usr/bin has no payload entry of its own and is created implicitly
	stat, err = os.Stat(filepath.Join(dst, "usr", "bin"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !stat.IsDir() {
		t.Errorf("implicit parent is not a directory")
	}

	stat, err = os.Stat(filepath.Join(dst, "usr", "bin", "app"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Mode().Perm() != 0o755 {
		t.Errorf("file mode = %o, expected 755", stat.Mode().Perm())
	}
}

func TestUnpackRPMDirectoryTimes(t *testing.T) {
	payloadTime := time.Unix(1699999999, 0)
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: "./data", Mode: cpioTypeDir | 0o755, Mtime: payloadTime.Unix()},
		{Name: "./data/file", Mode: cpioTypeRegular | 0o644, Mtime: payloadTime.Unix(), Content: []byte("touches the parent")},
	}))

	dst := t.TempDir()
	if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), nil); err != nil {
		t.Fatalf("UnpackRPM() error = %v", err)
	}

	// creating the file touched the directory, its payload time must win
	stat, err := os.Stat(filepath.Join(dst, "data"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !stat.ModTime().Equal(payloadTime) {
		t.Errorf("directory mtime = %v, expected %v", stat.ModTime(), payloadTime)
	}
}

func TestUnpackRPMDropFileAttributes(t *testing.T) {
	payloadTime := time.Unix(1700000000, 0)
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: "./file", Mode: cpioTypeRegular | 0o600, Mtime: payloadTime.Unix(), Content: []byte("content")},
	}))

	dst := t.TempDir()
	cfg := NewConfig(WithDropFileAttributes(true))
	if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), cfg); err != nil {
		t.Fatalf("UnpackRPM() error = %v", err)
	}

	stat, err := os.Stat(filepath.Join(dst, "file"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.ModTime().Equal(payloadTime) {
		t.Errorf("payload mtime was restored despite WithDropFileAttributes")
	}
}

func TestUnpackRPMTelemetry(t *testing.T) {
	pkg := packRPM(t, compressorZstd, packCpio(t, []cpioContent{
		{Name: ".", Mode: cpioTypeDir | 0o755},
		{Name: "./d", Mode: cpioTypeDir | 0o755},
		{Name: "./d/first", Mode: cpioTypeRegular | 0o644, Content: []byte("12345")},
		{Name: "./d/second", Mode: cpioTypeRegular | 0o644, Content: []byte("1234567")},
	}))

	var captured *TelemetryData
	cfg := NewConfig(WithTelemetryHook(func(ctx context.Context, td *TelemetryData) {
		captured = td
	}))

	dst := t.TempDir()
	if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), cfg); err != nil {
		t.Fatalf("UnpackRPM() error = %v", err)
	}

	if captured == nil {
		t.Fatalf("telemetry hook was not invoked")
	}
	if captured.ExtractedDirs != 1 {
		t.Errorf("ExtractedDirs = %d, expected 1", captured.ExtractedDirs)
	}
	if captured.ExtractedFiles != 2 {
		t.Errorf("ExtractedFiles = %d, expected 2", captured.ExtractedFiles)
	}
	if captured.ExtractionSize != 12 {
		t.Errorf("ExtractionSize = %d, expected 12", captured.ExtractionSize)
	}
	if captured.PayloadCompression != compressorZstd {
		t.Errorf("PayloadCompression = %q, expected %q", captured.PayloadCompression, compressorZstd)
	}
	if captured.InputSize <= 0 {
		t.Errorf("InputSize = %d, expected the consumed package bytes", captured.InputSize)
	}
	if captured.ExtractionErrors != 0 {
		t.Errorf("ExtractionErrors = %d, expected 0", captured.ExtractionErrors)
	}
}

func TestUnpackRPMAbsoluteNames(t *testing.T) {
	// rpm payloads should use ./ relative names, but absolute ones occur
	// and are extracted below the destination like cpio
	// --no-absolute-filenames does
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: "/etc/abs.conf", Mode: cpioTypeRegular | 0o644, Content: []byte("absolute")},
	}))

	var captured *TelemetryData
	cfg := NewConfig(WithTelemetryHook(func(ctx context.Context, td *TelemetryData) {
		captured = td
	}))

	dst := t.TempDir()
	if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), cfg); err != nil {
		t.Fatalf("UnpackRPM() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dst, "etc", "abs.conf")); err != nil {
		t.Errorf("rewritten entry missing: %v", err)
	}
	if captured.RewrittenPaths != 1 {
		t.Errorf("RewrittenPaths = %d, expected 1", captured.RewrittenPaths)
	}
}

func TestUnpackRPMTraversal(t *testing.T) {
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: "../escape", Mode: cpioTypeRegular | 0o644, Content: []byte("broke out")},
	}))

	var captured *TelemetryData
	cfg := NewConfig(WithTelemetryHook(func(ctx context.Context, td *TelemetryData) {
		captured = td
	}))

	parent := t.TempDir()
	dst := filepath.Join(parent, "dst")
	if err := os.Mkdir(dst, 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), cfg)
	if err == nil || !strings.Contains(err.Error(), "path traversal detected") {
		t.Fatalf("UnpackRPM() error = %v, expected path traversal", err)
	}
	if _, err := os.Lstat(filepath.Join(parent, "escape")); !os.IsNotExist(err) {
		t.Errorf("entry escaped the destination")
	}
	if captured.ExtractionErrors != 1 {
		t.Errorf("ExtractionErrors = %d, expected 1", captured.ExtractionErrors)
	}
	if captured.LastExtractionError == nil {
		t.Errorf("LastExtractionError not recorded")
	}
}

func TestUnpackRPMLimits(t *testing.T) {
	content := []cpioContent{
		{Name: "./a", Mode: cpioTypeRegular | 0o644, Content: []byte("0123456789")},
		{Name: "./b", Mode: cpioTypeRegular | 0o644, Content: []byte("0123456789")},
		{Name: "./c", Mode: cpioTypeRegular | 0o644, Content: []byte("0123456789")},
	}

	tests := []struct {
		name   string
		cfg    *Config
		expect error
	}{
		{
			name:   "max files",
			cfg:    NewConfig(WithMaxFiles(2)),
			expect: ErrMaxFilesExceeded,
		},
		{
			name:   "max extraction size",
			cfg:    NewConfig(WithMaxExtractionSize(15)),
			expect: ErrMaxExtractionSizeExceeded,
		},
		{
			name:   "max input size",
			cfg:    NewConfig(WithMaxInputSize(10)),
			expect: ErrMaxInputSizeExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pkg := packRPM(t, compressorGZip, packCpio(t, content))
			dst := t.TempDir()
			err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), tc.cfg)
			if !errors.Is(err, tc.expect) {
				t.Errorf("UnpackRPM() error = %v, expected %v", err, tc.expect)
			}
		})
	}
}

func TestUnpackRPMCanceledContext(t *testing.T) {
	pkg := packRPM(t, compressorGZip, packCpio(t, []cpioContent{
		{Name: "./file", Mode: cpioTypeRegular | 0o644, Content: []byte("content")},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dst := t.TempDir()
	err := UnpackRPM(ctx, NewTargetDisk(), dst, bytes.NewReader(pkg), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("UnpackRPM() error = %v, expected context.Canceled", err)
	}
}

func TestUnpackRPMDestinationMissing(t *testing.T) {
	pkg := packRPM(t, compressorGZip, packCpio(t, nil))

	dst := filepath.Join(t.TempDir(), "never-created")
	err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), nil)
	if err == nil || !strings.Contains(err.Error(), "destination does not exist") {
		t.Errorf("UnpackRPM() error = %v, expected missing destination", err)
	}
}

func TestUnpackRPMUnsupportedEntries(t *testing.T) {
	content := []cpioContent{
		{Name: "./fifo", Mode: cpioTypeFifo | 0o600},
		{Name: "./file", Mode: cpioTypeRegular | 0o644, Content: []byte("after the fifo")},
	}

	t.Run("fail by default", func(t *testing.T) {
		pkg := packRPM(t, compressorGZip, packCpio(t, content))
		dst := t.TempDir()
		err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), nil)
		if err == nil || !strings.Contains(err.Error(), "unsupported entry type") {
			t.Errorf("UnpackRPM() error = %v, expected unsupported entry type", err)
		}
	})

	t.Run("skip when configured", func(t *testing.T) {
		var captured *TelemetryData
		cfg := NewConfig(
			WithContinueOnUnsupportedFiles(true),
			WithTelemetryHook(func(ctx context.Context, td *TelemetryData) {
				captured = td
			}),
		)

		pkg := packRPM(t, compressorGZip, packCpio(t, content))
		dst := t.TempDir()
		if err := UnpackRPM(context.Background(), NewTargetDisk(), dst, bytes.NewReader(pkg), cfg); err != nil {
			t.Fatalf("UnpackRPM() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dst, "file")); err != nil {
			t.Errorf("entry after the skipped one missing: %v", err)
		}
		if captured.UnsupportedFiles != 1 {
			t.Errorf("UnsupportedFiles = %d, expected 1", captured.UnsupportedFiles)
		}
		if captured.LastUnsupportedFile != "fifo" {
			t.Errorf("LastUnsupportedFile = %q, expected %q", captured.LastUnsupportedFile, "fifo")
		}
	})
}

func TestUnpackRPMCorruptPackage(t *testing.T) {
	dst := t.TempDir()
	err := UnpackRPM(context.Background(), NewTargetDisk(), dst, strings.NewReader("not an rpm"), nil)
	if err == nil || !strings.Contains(err.Error(), "cannot parse rpm package") {
		t.Errorf("UnpackRPM() error = %v, expected parse failure", err)
	}
}

func TestNativeUnpacker(t *testing.T) {
	u := NewNativeUnpacker()
	if u.Type() != "native" {
		t.Errorf("Type() = %q, expected %q", u.Type(), "native")
	}

	srcDir := t.TempDir()
	src := createTestRPM(t, srcDir, "app.rpm", compressorXz, []cpioContent{
		{Name: "./readme", Mode: cpioTypeRegular | 0o644, Content: []byte("hello from the package")},
	})

	dst := t.TempDir()
	if err := u.Unpack(context.Background(), src, dst, NewConfig()); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dst, "readme"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "hello from the package" {
		t.Errorf("file content = %q, expected %q", content, "hello from the package")
	}

	if err := u.Unpack(context.Background(), filepath.Join(srcDir, "missing.rpm"), dst, NewConfig()); err == nil {
		t.Errorf("Unpack() with missing source did not fail")
	}
}

func TestCleanEntryName(t *testing.T) {
	tests := []struct {
		name      string
		expect    string
		rewritten bool
	}{
		{name: "./usr/bin/app", expect: "usr/bin/app"},
		{name: "usr/bin/app", expect: "usr/bin/app"},
		{name: "/etc/passwd", expect: "etc/passwd", rewritten: true},
		{name: "//etc//passwd", expect: "etc/passwd", rewritten: true},
		{name: ".", expect: "."},
		{name: "/", expect: ".", rewritten: true},
		{name: "./", expect: "."},
	}

	for _, tc := range tests {
		got, rewritten := cleanEntryName(tc.name)
		if got != tc.expect || rewritten != tc.rewritten {
			t.Errorf("cleanEntryName(%q) = %q/%v, expected %q/%v", tc.name, got, rewritten, tc.expect, tc.rewritten)
		}
	}
}
