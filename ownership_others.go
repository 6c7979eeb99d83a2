// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package rpmextract

import (
	"fmt"
	"runtime"
)

// chownTree changes the ownership of root and everything below it. Only
// unix platforms support this; requesting no change at all stays a no-op
// everywhere.
func chownTree(root string, uid, gid int) error {
	if uid == unresolvedID && gid == unresolvedID {
		return nil
	}
	return fmt.Errorf("%w: ownership changes on %s", ErrUnsupportedPlatform, runtime.GOOS)
}
