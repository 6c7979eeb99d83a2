package rpmextract

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"
)

// now is a function pointer that returns time.Now to the caller.
var now = time.Now

// Unpacker is the extraction backend of the reconciler. Implementations
// extract the payload of an rpm package into an existing directory.
type Unpacker interface {
	// Type returns a short name of the extraction strategy.
	Type() string

	// Unpack extracts the payload of the rpm package at src into the
	// existing directory dst.
	Unpack(ctx context.Context, src string, dst string, cfg *Config) error
}

// NativeUnpacker reads rpm packages with the built-in parser and needs no
// helper programs. It is the default backend.
type NativeUnpacker struct{}

// NewNativeUnpacker creates a new NativeUnpacker.
func NewNativeUnpacker() *NativeUnpacker {
	return &NativeUnpacker{}
}

// Type returns the name of the extraction strategy.
func (u *NativeUnpacker) Type() string {
	return "native"
}

// Unpack extracts the payload of the rpm package at src into dst.
func (u *NativeUnpacker) Unpack(ctx context.Context, src string, dst string, cfg *Config) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open package: %w", err)
	}
	defer f.Close()

	return UnpackRPM(ctx, NewTargetDisk(), dst, f, cfg)
}

// UnpackRPM reads an rpm package from src and extracts its payload below
// the existing directory dst on t. Modes and modification times of payload
// entries are restored unless configured otherwise; payload ownership is
// restored only when running as root, the same policy cpio applies.
func UnpackRPM(ctx context.Context, t Target, dst string, src io.Reader, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry capturing
	td := &TelemetryData{}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	// limit input size
	limitedReader := newLimitReader(src, cfg.MaxInputSize(), ErrMaxInputSizeExceeded)
	defer captureInputSize(td, limitedReader)

	pkg, err := parseRPM(limitedReader)
	if err != nil {
		return handleError(cfg, td, "cannot parse rpm package", err)
	}

	payload, compression, err := payloadReader(pkg.r, pkg.compressor)
	if err != nil {
		return handleError(cfg, td, "cannot open payload", err)
	}
	defer func() {
		if closer, ok := payload.(io.Closer); ok {
			closer.Close()
		}
	}()
	td.PayloadCompression = compression

	return extract(ctx, t, dst, &cpioWalker{cr: newCpioReader(payload)}, cfg, td)
}

// pendingHardlink is a hard link whose content bearing group member has not
// been seen yet.
type pendingHardlink struct {
	name  string // destination relative entry name
	mode  fs.FileMode
	mtime time.Time
	uid   int
	gid   int
}

// dirTimes records a directory whose modification time is restored after
// all entries are written, as creating children would touch it again.
type dirTimes struct {
	name  string
	mtime time.Time
}

// extract checks ctx for cancellation, while it reads the archive from src
// and extracts the entries to dst.
func extract(ctx context.Context, t Target, dst string, src archiveWalker, cfg *Config, td *TelemetryData) error {

	// the caller guarantees the destination, anything else is a bug
	if _, err := t.Lstat(dst); err != nil {
		return handleError(cfg, td, "destination does not exist", err)
	}

	cfg.Logger().Info("start extraction", "type", src.Type())
	var objectCounter int64
	var extractedBytes int64

	// entries sharing an inode carry their content only once; members seen
	// before the content are linked after it has been written, members seen
	// after link right away
	pending := map[string][]pendingHardlink{}
	written := map[string]string{}

	// directory mtimes are restored last, deepest entry first
	var deferredTimes []dirTimes

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return handleError(cfg, td, "context error", err)
		}

		// get next file
		ae, err := src.Next()

		switch {

		// if no more files are found exit loop
		case err == io.EOF:
			if err := flushHardlinks(t, dst, pending, cfg, td); err != nil {
				return handleError(cfg, td, "failed to restore hardlink group", err)
			}
			for i := len(deferredTimes) - 1; i >= 0; i-- {
				d := deferredTimes[i]
				if err := t.Chtimes(entryPath(dst, d.name), d.mtime, d.mtime); err != nil {
					return handleError(cfg, td, "failed to restore directory times", err)
				}
			}
			return nil

		// return any other error
		case err != nil:
			return handleError(cfg, td, "error reading archive", err)

		// if the entry is nil, just skip it
		case ae == nil:
			continue
		}

		// check if maximum of objects is exceeded
		objectCounter++
		if err := cfg.CheckMaxFiles(objectCounter); err != nil {
			return handleError(cfg, td, "max objects check failed", err)
		}

		name, rewritten := cleanEntryName(ae.Name())
		if rewritten {
			cfg.Logger().Warn("rewrote absolute entry name", "name", ae.Name())
			td.RewrittenPaths++
		}

		// the payload describes the destination itself as ".", its
		// attributes belong to the caller
		if name == "." {
			continue
		}

		cfg.Logger().Debug("extract", "name", name)
		switch {

		// if its a dir and it doesn't exist create it
		case ae.IsDir():
			if err := createDir(t, dst, name, ae.Mode().Perm(), cfg); err != nil {
				return handleError(cfg, td, "failed to create safe directory", err)
			}
			if !cfg.DropFileAttributes() {
				if err := restoreAttributes(t, entryPath(dst, name), ae); err != nil {
					return handleError(cfg, td, "failed to restore directory attributes", err)
				}
				deferredTimes = append(deferredTimes, dirTimes{name: name, mtime: ae.ModTime()})
			}
			td.ExtractedDirs++
			continue

		// hard link groups are collected until their content shows up
		case ae.IsHardlink() && ae.Size() == 0:
			hdr, ok := ae.Sys().(*cpioHeader)
			if !ok {
				return handleError(cfg, td, "failed to resolve hardlink group", fmt.Errorf("entry %s carries no cpio header", name))
			}
			key := hdr.hardlinkKey()
			if contentName, ok := written[key]; ok {
				if err := createHardlink(t, dst, name, contentName, cfg); err != nil {
					return handleError(cfg, td, "failed to create hardlink", err)
				}
				td.ExtractedHardlinks++
				continue
			}
			pending[key] = append(pending[key], pendingHardlink{
				name:  name,
				mode:  ae.Mode(),
				mtime: ae.ModTime(),
				uid:   ae.Uid(),
				gid:   ae.Gid(),
			})
			continue

		// if it's a file create it
		case ae.IsRegular():

			// check if file size exceeds maximum extraction size
			if err := cfg.CheckExtractionSize(extractedBytes + ae.Size()); err != nil {
				return handleError(cfg, td, "max extraction size exceeded", err)
			}

			// open file in archive
			fin, err := ae.Open()
			if err != nil {
				return handleError(cfg, td, "failed to open file", err)
			}

			writtenBytes, err := createFile(t, dst, name, fin, ae.Mode().Perm(), cfg.MaxExtractionSize()-extractedBytes, cfg)
			fin.Close()
			if err != nil {
				return handleError(cfg, td, "failed to create file", err)
			}
			extractedBytes += writtenBytes
			td.ExtractionSize = extractedBytes
			td.ExtractedFiles++

			if !cfg.DropFileAttributes() {
				if err := restoreAttributes(t, entryPath(dst, name), ae); err != nil {
					return handleError(cfg, td, "failed to restore file attributes", err)
				}
			}

			// link the collected members of the hardlink group to the
			// content bearing entry
			if ae.IsHardlink() {
				hdr, ok := ae.Sys().(*cpioHeader)
				if !ok {
					return handleError(cfg, td, "failed to resolve hardlink group", fmt.Errorf("entry %s carries no cpio header", name))
				}
				key := hdr.hardlinkKey()
				written[key] = name
				for _, link := range pending[key] {
					if err := createHardlink(t, dst, link.name, name, cfg); err != nil {
						return handleError(cfg, td, "failed to create hardlink", err)
					}
					td.ExtractedHardlinks++
				}
				delete(pending, key)
			}
			continue

		// its a symlink
		case ae.IsSymlink():
			if err := createSymlink(t, dst, name, ae.Linkname(), cfg); err != nil {
				return handleError(cfg, td, "failed to create symlink", err)
			}
			if !cfg.DropFileAttributes() {
				if err := restoreAttributes(t, entryPath(dst, name), ae); err != nil {
					return handleError(cfg, td, "failed to restore symlink attributes", err)
				}
			}
			td.ExtractedSymlinks++
			continue

		// device nodes, fifos and sockets cannot be recreated portably
		default:
			if cfg.ContinueOnUnsupportedFiles() {
				cfg.Logger().Info("skipped unsupported entry", "name", name, "type", ae.Type().String())
				td.UnsupportedFiles++
				td.LastUnsupportedFile = name
				continue
			}
			return handleError(cfg, td, "cannot extract entry", fmt.Errorf("unsupported entry type %s in payload", ae.Type()))
		}
	}
}

// flushHardlinks materializes hard link groups whose content bearing member
// never showed up, which is how empty hard linked files are stored. The
// first member becomes an empty file, the rest link to it.
func flushHardlinks(t Target, dst string, pending map[string][]pendingHardlink, cfg *Config, td *TelemetryData) error {
	for _, links := range pending {
		first := links[0]
		if _, err := createFile(t, dst, first.name, strings.NewReader(""), first.mode.Perm(), -1, cfg); err != nil {
			return err
		}
		td.ExtractedFiles++

		if !cfg.DropFileAttributes() {
			path := entryPath(dst, first.name)
			if err := t.Chmod(path, first.mode); err != nil {
				return fmt.Errorf("cannot restore mode: %w", err)
			}
			if os.Geteuid() == 0 {
				if err := t.Chown(path, first.uid, first.gid); err != nil {
					return fmt.Errorf("cannot restore ownership: %w", err)
				}
			}
			if err := t.Chtimes(path, first.mtime, first.mtime); err != nil {
				return fmt.Errorf("cannot restore times: %w", err)
			}
		}

		for _, link := range links[1:] {
			if err := createHardlink(t, dst, link.name, first.name, cfg); err != nil {
				return err
			}
			td.ExtractedHardlinks++
		}
	}
	return nil
}

// restoreAttributes applies mode, ownership and modification time of an
// archive entry to the created path. Ownership is only restored when running
// as root, matching cpio. Symlink modes do not exist on linux and are left
// alone.
func restoreAttributes(t Target, path string, ae archiveEntry) error {
	if ae.IsSymlink() {
		if os.Geteuid() == 0 {
			if err := t.Chown(path, ae.Uid(), ae.Gid()); err != nil {
				return fmt.Errorf("cannot restore ownership: %w", err)
			}
		}
		if err := t.Lchtimes(path, ae.ModTime(), ae.ModTime()); err != nil {
			return fmt.Errorf("cannot restore symlink times: %w", err)
		}
		return nil
	}

	if err := t.Chmod(path, ae.Mode()); err != nil {
		return fmt.Errorf("cannot restore mode: %w", err)
	}
	if os.Geteuid() == 0 {
		if err := t.Chown(path, ae.Uid(), ae.Gid()); err != nil {
			return fmt.Errorf("cannot restore ownership: %w", err)
		}
	}

	// directory times are deferred by the caller, creating children would
	// touch them again
	if ae.IsDir() {
		return nil
	}
	if err := t.Chtimes(path, ae.ModTime(), ae.ModTime()); err != nil {
		return fmt.Errorf("cannot restore times: %w", err)
	}
	return nil
}

// cleanEntryName normalizes a payload entry name to a destination relative
// name. rpm payload names usually start with "./". Absolute names are made
// relative and reported through the second return value, the same rewriting
// cpio applies with --no-absolute-filenames.
func cleanEntryName(name string) (string, bool) {
	cleaned := path.Clean(name)
	rewritten := strings.HasPrefix(cleaned, "/")
	cleaned = strings.TrimLeft(cleaned, "/")
	if cleaned == "" {
		cleaned = "."
	}
	return cleaned, rewritten
}

// handleError increases the error counter, sets the latest error and ends
// the extraction.
func handleError(cfg *Config, td *TelemetryData, msg string, err error) error {
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)
	cfg.Logger().Error(msg, "error", err)
	return td.LastExtractionError
}

// captureExtractionDuration captures the duration of the extraction
func captureExtractionDuration(td *TelemetryData, start time.Time) {
	stop := now()
	td.ExtractionDuration = stop.Sub(start)
}

// captureInputSize captures the input size of the extraction
func captureInputSize(td *TelemetryData, lr *limitReader) {
	td.InputSize = lr.bytesRead()
}
