// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import "encoding/json"

// Result reports the outcome of one reconciliation run. It echoes the
// request after defaulting, so callers can see which paths were acted on.
type Result struct {
	// Changed reports whether the filesystem was modified, or in check
	// mode, whether it would have been.
	Changed bool `json:"changed"`

	// Source is the package path after tilde expansion.
	Source string `json:"src"`

	// Dest is the destination directory after defaulting and expansion.
	// A derived destination is echoed as the bare directory name, the
	// way it was derived, not resolved against Chdir.
	Dest string `json:"dest"`

	// Chdir is the working directory after expansion, empty when the
	// request did not set one.
	Chdir string `json:"chdir,omitempty"`

	// Owner and Group echo the requested ownership, empty when the
	// extraction result was kept.
	Owner string `json:"owner,omitempty"`
	Group string `json:"group,omitempty"`

	// Force echoes the request.
	Force bool `json:"force"`
}

// String returns a string representation of [Result].
func (r Result) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}
