// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// TargetDisk is the [Target] implementation for the local filesystem.
type TargetDisk struct{}

// NewTargetDisk creates a new TargetDisk and returns a pointer to it.
func NewTargetDisk() *TargetDisk {
	return &TargetDisk{}
}

// CreateDir creates a directory at the specified path with the specified
// mode. Missing parents are created with the same mode. If the directory
// already exists, nothing is done.
func (d *TargetDisk) CreateDir(path string, mode fs.FileMode) error {
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// CreateFile creates a file at the specified path with src as content. An
// existing entry is removed first, matching the unconditional replacement
// mode of cpio; this also keeps a leftover symlink from redirecting the
// content. The content must not exceed maxSize; a negative maxSize disables
// the limit. The number of bytes written is returned, also on error.
func (d *TargetDisk) CreateFile(path string, src io.Reader, mode fs.FileMode, maxSize int64) (int64, error) {
	if err := removeExisting(path); err != nil {
		return 0, err
	}

	dstFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		dstFile.Close()
	}()

	n, err := io.Copy(dstFile, newLimitReader(src, maxSize, ErrMaxExtractionSizeExceeded))
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// CreateSymlink creates a symbolic link newname pointing to oldname. An
// existing newname is replaced.
func (d *TargetDisk) CreateSymlink(oldname string, newname string) error {
	if err := removeExisting(newname); err != nil {
		return err
	}
	if err := os.Symlink(oldname, newname); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// CreateHardlink creates a hard link newname to the file oldname. An
// existing newname is replaced.
func (d *TargetDisk) CreateHardlink(oldname string, newname string) error {
	if err := removeExisting(newname); err != nil {
		return err
	}
	if err := os.Link(oldname, newname); err != nil {
		return fmt.Errorf("failed to create hardlink: %w", err)
	}
	return nil
}

// Lstat returns the FileInfo structure describing the named file without
// following symlinks. If there is an error, it will be of type *PathError.
func (d *TargetDisk) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

// Stat returns the FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func (d *TargetDisk) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Chmod changes the mode of the named file to mode, keeping the setuid,
// setgid and sticky bits.
func (d *TargetDisk) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode&(fs.ModePerm|fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky))
}

// Chtimes changes the access and modification times of the named file.
func (d *TargetDisk) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Lchtimes changes the access and modification times of a symlink itself.
// On platforms that cannot modify symlink timestamps, nothing is done.
func (d *TargetDisk) Lchtimes(name string, atime, mtime time.Time) error {
	if canMaintainSymlinkTimestamps {
		return lchtimes(name, atime, mtime)
	}
	return nil
}

// removeExisting deletes a leftover entry at path so a link can take its
// place. A missing entry is not an error.
func removeExisting(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to replace existing entry: %w", err)
	}
	return nil
}
