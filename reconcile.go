// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Reconcile converges the destination directory onto the contents of the
// source package and reports what happened. A destination that already
// exists is left alone unless the request forces re-extraction, so repeated
// runs with the same request settle after the first.
//
// The returned result is non-nil even when an error is returned, carrying
// the request echoes for failure reporting. Changed stays false on every
// failure path, also when the run modified the filesystem before failing;
// the next run converges from whatever state was left behind.
func Reconcile(ctx context.Context, req *Request, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	res := &Result{}
	if req == nil || req.Source == "" {
		return res, fmt.Errorf("no source package specified")
	}

	src, dest, chdir := req.normalize()
	res.Source = src
	res.Dest = dest
	res.Chdir = chdir
	res.Owner = req.Owner
	res.Group = req.Group
	res.Force = req.Force

	// the echoes above keep the paths as given; the run itself works on
	// paths anchored to the working directory
	src = resolvePath(chdir, src)
	dest = resolvePath(chdir, dest)

	// an existing destination counts as converged, whatever it contains
	present := false
	if _, err := os.Stat(dest); err == nil {
		present = true
	}
	extract := !present || req.Force

	if req.Check {
		res.Changed = extract
		return res, nil
	}

	if !extract {
		cfg.Logger().Debug("destination present, nothing to do", "dest", dest)
		return res, nil
	}

	// discarding the old tree is best effort, a leftover surfaces as an
	// error on the mkdir below
	if req.Force {
		if err := os.RemoveAll(dest); err != nil {
			cfg.Logger().Warn("discarding destination failed", "dest", dest, "error", err)
		}
	}

	if err := os.Mkdir(dest, 0o755); err != nil {
		return res, fmt.Errorf("cannot create destination: %w", err)
	}

	unpacker := cfg.Unpacker()
	cfg.Logger().Info("extracting package", "src", src, "dest", dest, "backend", unpacker.Type())
	if err := unpacker.Unpack(ctx, src, dest, cfg); err != nil {
		var ue *UnpackError
		if errors.As(err, &ue) {
			return res, err
		}
		return res, &UnpackError{Source: src, Diagnostic: err.Error(), Err: err}
	}

	// identities resolve after the extraction, so a bad name leaves the
	// extracted tree in place for the next run
	uid, gid, err := resolveOwnership(req.Owner, req.Group)
	if err != nil {
		return res, err
	}
	if err := chownTree(dest, uid, gid); err != nil {
		return res, err
	}

	res.Changed = true
	return res, nil
}
