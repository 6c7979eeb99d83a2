// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// PipelineUnpacker extracts rpm packages by piping rpm2cpio into cpio, the
// classic command line flow. It exists for setups that want the
// distribution tools to do the work; [NativeUnpacker] needs no helper
// programs and is the default.
type PipelineUnpacker struct {
	rpm2cpio string
	cpio     string
}

// NewPipelineUnpacker creates a PipelineUnpacker that uses the rpm2cpio and
// cpio programs found in PATH.
func NewPipelineUnpacker() *PipelineUnpacker {
	return &PipelineUnpacker{
		rpm2cpio: "rpm2cpio",
		cpio:     "cpio",
	}
}

// Type returns the name of the extraction strategy.
func (u *PipelineUnpacker) Type() string {
	return "pipeline"
}

// Unpack converts the package at src into a cpio stream with rpm2cpio and
// feeds that into cpio running in dst. The combined output of both programs
// is attached to a returned error, as it usually names the entry that made
// the extraction fail.
func (u *PipelineUnpacker) Unpack(ctx context.Context, src string, dst string, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	rpm2cpio := exec.CommandContext(ctx, u.rpm2cpio, src)
	cpio := exec.CommandContext(ctx, u.cpio, "--quiet", "--no-absolute-filenames", "-idumv")

	// cpio extracts into its working directory
	cpio.Dir = dst

	pipe, err := rpm2cpio.StdoutPipe()
	if err != nil {
		return &UnpackError{Source: src, Err: err}
	}
	cpio.Stdin = pipe

	// each command copies its output into the capture from a goroutine of
	// its own, so the two commands must not share a writer
	var rpmOut, cpioOut bytes.Buffer
	rpm2cpio.Stderr = &rpmOut
	cpio.Stdout = &cpioOut
	cpio.Stderr = &cpioOut

	cfg.Logger().Info("start extraction", "type", u.Type(), "src", src, "dst", dst)

	if err := rpm2cpio.Start(); err != nil {
		return &UnpackError{Source: src, Err: err}
	}
	if err := cpio.Start(); err != nil {
		rpm2cpio.Process.Kill()
		rpm2cpio.Wait()
		return &UnpackError{Source: src, Err: err}
	}

	// cpio drains the pipe, so it has to be waited on first
	cpioErr := cpio.Wait()
	rpmErr := rpm2cpio.Wait()

	if rpmErr != nil || cpioErr != nil {
		err := cpioErr
		if rpmErr != nil {
			err = rpmErr
		}
		return &UnpackError{
			Source:     src,
			Diagnostic: strings.TrimSpace(rpmOut.String() + "\n" + cpioOut.String()),
			Err:        err,
		}
	}

	return nil
}
