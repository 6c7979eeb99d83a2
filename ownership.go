// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package rpmextract

import (
	"io/fs"
	"os"
	"path/filepath"
)

// chownTree changes the ownership of root and everything below it to uid
// and gid. An id of -1 leaves that id untouched; if both are -1 the walk is
// skipped entirely. Symlinks are changed themselves rather than followed,
// so a link pointing outside the tree cannot redirect the pass.
//
// The first failing entry aborts the walk. Changes already applied are not
// rolled back; the returned [OwnershipError] names the root of the pass and
// wraps the error of the failing entry.
func chownTree(root string, uid, gid int) error {
	if uid == unresolvedID && gid == unresolvedID {
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(path, uid, gid)
	})
	if err != nil {
		return &OwnershipError{Path: root, Err: err}
	}

	return nil
}
