// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Target specifies all functions that are needed to write an extracted
// archive somewhere. The reconciler uses [TargetDisk]; tests may substitute
// their own implementation.
type Target interface {
	// CreateDir creates a directory at the specified path with the specified
	// mode. If the directory already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// CreateFile creates a file at the specified path with src as content.
	// An existing file at path is truncated. The size of the content must
	// not exceed maxSize; if maxSize < 0 the size is not limited. CreateFile
	// returns the number of bytes written.
	CreateFile(path string, src io.Reader, mode fs.FileMode, maxSize int64) (int64, error)

	// CreateSymlink creates a symbolic link newname pointing to oldname,
	// replacing an existing newname.
	CreateSymlink(oldname string, newname string) error

	// CreateHardlink creates a hard link newname to the existing file
	// oldname, replacing an existing newname.
	CreateHardlink(oldname string, newname string) error

	// Lstat see docs for [os.Lstat]. Main purpose is to probe extraction
	// paths without following symlinks.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for [os.Stat].
	Stat(path string) (fs.FileInfo, error)

	// Chmod see docs for [os.Chmod]. Used to restore exact payload modes,
	// which file creation alone cannot guarantee under umask.
	Chmod(name string, mode fs.FileMode) error

	// Chtimes see docs for [os.Chtimes]. Used to restore payload
	// modification times.
	Chtimes(name string, atime, mtime time.Time) error

	// Lchtimes changes the times of a symlink itself, where the platform
	// supports it.
	Lchtimes(name string, atime, mtime time.Time) error

	// Chown see docs for [os.Lchown]. Changes ownership of the named entry
	// itself, never of a symlink target.
	Chown(name string, uid, gid int) error
}

// createDir ensures the directory name exists below dst, creating it and any
// missing parents with mode. The entry name is validated first; "." denotes
// the destination itself and needs no action.
func createDir(t Target, dst string, name string, mode fs.FileMode, cfg *Config) error {
	if name == "." || name == "" {
		return nil
	}

	if err := checkEntryPath(t, dst, name, cfg); err != nil {
		return err
	}

	return t.CreateDir(entryPath(dst, name), mode)
}

// createFile writes the entry name below dst with content from src. Parent
// directories that have no payload entry of their own are created with the
// configured implicit mode.
func createFile(t Target, dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	if len(name) == 0 {
		return 0, fmt.Errorf("cannot create file without name")
	}

	if err := createDir(t, dst, parentOf(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return 0, fmt.Errorf("cannot create parent directory: %w", err)
	}

	if err := checkEntryPath(t, dst, name, cfg); err != nil {
		return 0, err
	}

	return t.CreateFile(entryPath(dst, name), src, mode, maxSize)
}

// createSymlink creates the entry name below dst as a symlink to linkTarget.
// The target itself is not restricted: RPM payloads legitimately carry
// absolute symlink targets, and rewriting entry names (not targets) is what
// keeps the extraction inside dst.
func createSymlink(t Target, dst string, name string, linkTarget string, cfg *Config) error {
	if len(name) == 0 {
		return fmt.Errorf("cannot create symlink without name")
	}
	if len(linkTarget) == 0 {
		return fmt.Errorf("cannot create symlink %s without target", name)
	}

	if err := createDir(t, dst, parentOf(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return fmt.Errorf("cannot create parent directory: %w", err)
	}

	if err := checkEntryPath(t, dst, name, cfg); err != nil {
		return err
	}

	return t.CreateSymlink(linkTarget, entryPath(dst, name))
}

// createHardlink creates the entry name below dst as a hard link to the
// previously extracted entry linkTarget (a destination-relative name).
func createHardlink(t Target, dst string, name string, linkTarget string, cfg *Config) error {
	if len(name) == 0 {
		return fmt.Errorf("cannot create hardlink without name")
	}

	if err := createDir(t, dst, parentOf(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return fmt.Errorf("cannot create parent directory: %w", err)
	}

	if err := checkEntryPath(t, dst, name, cfg); err != nil {
		return err
	}

	return t.CreateHardlink(entryPath(dst, linkTarget), entryPath(dst, name))
}

// entryPath converts a slash-separated payload name into the platform path
// of the entry below dst.
func entryPath(dst string, name string) string {
	parts := strings.Split(name, "/")
	return filepath.Join(dst, filepath.Join(parts...))
}

// parentOf returns the slash-separated parent of a payload name.
func parentOf(name string) string {
	if idx := strings.LastIndex(name, "/"); idx > 0 {
		return name[:idx]
	}
	return "."
}

// checkEntryPath ensures that writing the payload name below dst cannot
// escape dst. It rejects names that traverse upwards and, unless symlink
// traversal is allowed, names whose already-extracted path components are
// symlinks (an archive can plant a symlink and then address entries through
// it).
func checkEntryPath(t Target, dst string, name string, cfg *Config) error {
	// normalize to the platform representation
	parts := strings.Split(name, "/")
	cleaned := filepath.Join(parts...)

	rel, err := filepath.Rel(dst, filepath.Join(dst, cleaned))
	if err != nil {
		return fmt.Errorf("cannot resolve entry path: %w", err)
	}
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("path traversal detected: %s", name)
	}

	// examine every path component up to, but not including, the entry
	elements := strings.Split(cleaned, string(os.PathSeparator))
	for i := 0; i < len(elements)-1; i++ {
		checkDir := filepath.Join(dst, filepath.Join(elements[:i+1]...))

		stat, err := t.Lstat(checkDir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot inspect entry path: %w", err)
		}

		if stat.Mode()&fs.ModeSymlink != 0 {
			if cfg.TraverseSymlinks() {
				cfg.Logger().Warn("traverse symlink", "sub-dir", checkDir)
				continue
			}
			return fmt.Errorf("symlink in entry path: %s", name)
		}
	}

	return nil
}
