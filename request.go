// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Request describes the state one reconciliation run converges on: the
// contents of the rpm package at Source extracted below Dest and, where
// given, owned by Owner and Group.
type Request struct {
	// Source is the path of the rpm package. A leading ~ or ~name is
	// expanded to the home directory of the current or the named user.
	Source string

	// Dest is the directory that receives the extracted tree. When empty
	// it is derived from Source by dropping the .rpm suffix of the file
	// name, relative to the working directory. Tilde expansion applies.
	Dest string

	// Chdir is the working directory of the run. A relative Source or
	// Dest is resolved against it. The process working directory is
	// never changed; when Chdir is empty, relative paths keep resolving
	// against the process working directory as usual. Tilde expansion
	// applies.
	Chdir string

	// Owner is the user name the extracted tree is handed to. Empty
	// keeps the ownership the extraction produced.
	Owner string

	// Group is the group name the extracted tree is handed to. Empty
	// keeps the ownership the extraction produced.
	Group string

	// Force discards a present Dest and extracts again.
	Force bool

	// Check reports what would change without touching the filesystem.
	Check bool
}

// normalize resolves the path defaulting rules of the request: tilde
// expansion on all three paths and the derived destination name. The
// returned values are the ones the result echoes; anchoring relative
// paths to the working directory is left to resolvePath.
func (r *Request) normalize() (src, dest, chdir string) {
	src = expandTilde(r.Source)
	chdir = expandTilde(r.Chdir)

	dest = r.Dest
	if dest == "" {
		dest = strings.TrimSuffix(filepath.Base(src), "."+fileExtensionRPM)
	}
	dest = expandTilde(dest)

	return src, dest, chdir
}

// resolvePath anchors a relative path to the requested working directory.
// Absolute paths pass through unchanged, and so does every path when no
// working directory was requested; the process working directory is never
// changed, so such paths stay stable for the whole run.
func resolvePath(chdir, path string) string {
	if chdir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(chdir, path)
}

// expandTilde expands a leading ~ or ~name to the home directory of the
// current or the named user. Following the usual shell rules, a path whose
// user cannot be resolved is returned unchanged.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	name, rest := path[1:], ""
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name, rest = name[:idx], name[idx+1:]
	}

	if name == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, rest)
	}

	u, err := user.Lookup(name)
	if err != nil {
		return path
	}
	return filepath.Join(u.HomeDir, rest)
}
