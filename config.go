// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the
// configuration of a reconciliation run.
//
// The zero configuration obtained from [NewConfig] extracts with the
// built-in RPM reader, discards logs, collects no telemetry and enforces no
// limits. Every aspect can be adjusted in an option pattern style.
type Config struct {
	// continueOnUnsupportedFiles offers the option to enable/disable skipping
	// unsupported payload entries (device nodes, fifos, sockets)
	continueOnUnsupportedFiles bool

	// customCreateDirMode is the file mode for directories that are created
	// implicitly for an entry, but that have no entry of their own in the
	// payload (respecting umask)
	customCreateDirMode fs.FileMode

	// dropFileAttributes disables restoring permissions and modification
	// times recorded in the payload
	dropFileAttributes bool

	// traverseSymlinks allows entry paths to traverse symlinked directories
	// that were extracted earlier in the same run
	traverseSymlinks bool

	// logger stream for the reconciliation and extraction
	logger logger

	// maxExtractionSize is the maximum size over all extracted files.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxFiles is the maximum number of entries (files, directories and
	// links) taken from the payload. Set value to -1 to disable the check.
	maxFiles int64

	// maxInputSize is the maximum size of the input archive.
	// Set value to -1 to disable the check.
	maxInputSize int64

	// telemetryHook is a function to consume telemetry data after a finished
	// extraction. Important: do not adjust this value after the run started.
	telemetryHook TelemetryHook

	// unpacker converts the source archive into the destination file tree
	unpacker Unpacker
}

// ContinueOnUnsupportedFiles returns true if unsupported payload entries,
// e.g. FIFO, block or character devices, should be skipped instead of
// failing the extraction.
func (c *Config) ContinueOnUnsupportedFiles() bool {
	return c.continueOnUnsupportedFiles
}

// CustomCreateDirMode returns the file mode for directories that are created
// implicitly, without an entry of their own in the payload. (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// DropFileAttributes returns true if permissions and modification times from
// the payload should not be restored on the extracted entries.
func (c *Config) DropFileAttributes() bool {
	return c.dropFileAttributes
}

// TraverseSymlinks returns true if entry paths may traverse symlinked
// directories during extraction.
func (c *Config) TraverseSymlinks() bool {
	return c.traverseSymlinks
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all extracted files.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxFiles returns the maximum number of payload entries.
func (c *Config) MaxFiles() int64 {
	return c.maxFiles
}

// MaxInputSize returns the maximum size of the input archive.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// CheckMaxFiles checks if counter exceeds the configured maximum. If the
// maximum is exceeded, a [ErrMaxFilesExceeded] error is returned.
func (c *Config) CheckMaxFiles(counter int64) error {
	if c.MaxFiles() == -1 {
		return nil
	}
	if counter > c.MaxFiles() {
		return ErrMaxFilesExceeded
	}
	return nil
}

// CheckExtractionSize checks if fileSize exceeds the configured maximum. If
// the maximum is exceeded, a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(fileSize int64) error {
	if c.MaxExtractionSize() == -1 {
		return nil
	}
	if fileSize > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return func(ctx context.Context, d *TelemetryData) {
			// noop
		}
	}
	return c.telemetryHook
}

// Unpacker returns the configured extraction backend.
func (c *Config) Unpacker() Unpacker {
	return c.unpacker
}

const (
	defaultContinueOnUnsupportedFiles = false // fail on device nodes and the like
	defaultCustomCreateDirMode        = 0755  // default mode for implicit directories
	defaultDropFileAttributes         = false // restore modes and mtimes from the payload
	defaultMaxFiles                   = -1    // a convergence run must not stop mid-archive
	defaultMaxExtractionSize          = -1    // disabled
	defaultMaxInputSize               = -1    // disabled
	defaultTraverseSymlinks           = false // refuse entry paths through symlinks
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		continueOnUnsupportedFiles: defaultContinueOnUnsupportedFiles,
		customCreateDirMode:        defaultCustomCreateDirMode,
		dropFileAttributes:         defaultDropFileAttributes,
		logger:                     defaultLogger,
		maxFiles:                   defaultMaxFiles,
		maxExtractionSize:          defaultMaxExtractionSize,
		maxInputSize:               defaultMaxInputSize,
		telemetryHook:              defaultTelemetryHook,
		traverseSymlinks:           defaultTraverseSymlinks,
		unpacker:                   NewNativeUnpacker(),
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithContinueOnUnsupportedFiles options pattern function to enable/disable
// skipping unsupported payload entries. An unsupported entry is one the
// extraction cannot recreate without privileges or platform support, such as
// a device node.
func WithContinueOnUnsupportedFiles(ctd bool) ConfigOption {
	return func(c *Config) {
		c.continueOnUnsupportedFiles = ctd
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode for
// directories that are created implicitly for an entry, but have no entry of
// their own in the payload. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithDropFileAttributes options pattern function to skip restoring
// permissions and modification times recorded in the payload.
func WithDropFileAttributes(drop bool) ConfigOption {
	return func(c *Config) {
		c.dropFileAttributes = drop
	}
}

// WithInsecureTraverseSymlinks options pattern function to allow entry paths
// to traverse symlinked directories during extraction.
func WithInsecureTraverseSymlinks(traverse bool) ConfigOption {
	return func(c *Config) {
		c.traverseSymlinks = traverse
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxExtractionSize options pattern function to set the maximum size
// over all extracted files. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxFiles options pattern function to set the maximum number of
// extracted files, directories and links. (-1 to disable check)
func WithMaxFiles(maxFiles int64) ConfigOption {
	return func(c *Config) {
		c.maxFiles = maxFiles
	}
}

// WithMaxInputSize options pattern function to set the maximum size of the
// input archive. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithTelemetryHook options pattern function to set a hook that consumes the
// [TelemetryData] of a finished extraction.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithUnpacker options pattern function to select the extraction backend.
func WithUnpacker(u Unpacker) ConfigOption {
	return func(c *Config) {
		if u != nil {
			c.unpacker = u
		}
	}
}
