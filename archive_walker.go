// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"io"
	"io/fs"
	"time"
)

// archiveWalker is an interface that represents a file walker in an archive
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a file in an archive
type archiveEntry interface {
	Gid() int
	IsDir() bool
	IsHardlink() bool
	IsRegular() bool
	IsSymlink() bool
	Linkname() string
	Mode() fs.FileMode
	ModTime() time.Time
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
	Sys() interface{}
	Type() fs.FileMode
	Uid() int
}
