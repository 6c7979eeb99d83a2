// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"
)

// fileExtensionCpio is the file extension for cpio archives
const fileExtensionCpio = "cpio"

// magicBytesCpio are the magic bytes of the two ASCII cpio formats written
// by rpm, the "newc" format and its checksummed "crc" variant.
//
// reference: https://www.systutorials.com/docs/linux/man/5-cpio/
var magicBytesCpio = [][]byte{
	[]byte("070701"),
	[]byte("070702"),
}

// isCpio checks if the header matches the magic bytes for cpio archives
func isCpio(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesCpio)
}

const (
	// cpioHeaderSize is the fixed size of a newc entry header, the six
	// magic characters followed by thirteen 8-character hex fields.
	cpioHeaderSize = 110

	// cpioTrailer is the name of the synthetic entry that terminates the
	// archive.
	cpioTrailer = "TRAILER!!!"

	// cpioMaxNameSize bounds the name field against corrupt headers.
	cpioMaxNameSize = 1 << 16
)

// entry type bits of the cpio mode field, same encoding as st_mode
const (
	cpioModeMask    = 0o170000
	cpioTypeFifo    = 0o010000
	cpioTypeChar    = 0o020000
	cpioTypeDir     = 0o040000
	cpioTypeBlock   = 0o060000
	cpioTypeRegular = 0o100000
	cpioTypeSymlink = 0o120000
	cpioTypeSocket  = 0o140000
)

// cpioHeader is the decoded header of a single cpio entry.
type cpioHeader struct {
	ino       int64
	mode      int64
	uid       int
	gid       int
	nlink     int
	mtime     int64
	size      int64
	devMajor  int64
	devMinor  int64
	rdevMajor int64
	rdevMinor int64
	check     int64 // additive content checksum, crc format only
	crc       bool  // entry comes from a 070702 archive
	name      string
	linkname  string
}

// hardlinkKey identifies the inode an entry belongs to. Entries of the same
// archive sharing a key are hard links to one another.
func (h *cpioHeader) hardlinkKey() string {
	return fmt.Sprintf("%d:%d:%d", h.devMajor, h.devMinor, h.ino)
}

// fileMode translates the cpio mode bits into a fs.FileMode.
func (h *cpioHeader) fileMode() fs.FileMode {
	m := fs.FileMode(h.mode & 0o777)

	switch h.mode & cpioModeMask {
	case cpioTypeDir:
		m |= fs.ModeDir
	case cpioTypeSymlink:
		m |= fs.ModeSymlink
	case cpioTypeChar:
		m |= fs.ModeDevice | fs.ModeCharDevice
	case cpioTypeBlock:
		m |= fs.ModeDevice
	case cpioTypeFifo:
		m |= fs.ModeNamedPipe
	case cpioTypeSocket:
		m |= fs.ModeSocket
	}

	if h.mode&0o4000 != 0 {
		m |= fs.ModeSetuid
	}
	if h.mode&0o2000 != 0 {
		m |= fs.ModeSetgid
	}
	if h.mode&0o1000 != 0 {
		m |= fs.ModeSticky
	}

	return m
}

// cpioReader reads entries from an ASCII cpio stream. It follows the
// archive/tar reader shape: Next advances to the next entry, Read returns
// the content of the current one. For the crc format the additive content
// checksum is verified once an entry's content has been consumed.
type cpioReader struct {
	r      io.Reader
	remain int64  // unread content bytes of the current entry
	pad    int64  // alignment padding after the current content
	name   string // current entry name, for error reporting
	sum    uint32 // checksum over the content read so far
	check  uint32 // checksum the current header carries
	verify bool   // current entry content is checksummed
	err    error  // sticky error
}

// newCpioReader creates a cpioReader reading from r.
func newCpioReader(r io.Reader) *cpioReader {
	return &cpioReader{r: r}
}

// Next advances to the next entry in the archive and returns its header.
// io.EOF is returned when the archive trailer is reached.
func (c *cpioReader) Next() (*cpioHeader, error) {
	if c.err != nil {
		return nil, c.err
	}

	// unread content of the previous entry drains through Read, so a crc
	// payload keeps its checksum accounting; then drop the padding
	if c.remain > 0 {
		if _, err := io.Copy(io.Discard, c); err != nil {
			return nil, c.fail(fmt.Errorf("cannot skip to next entry: %w", err))
		}
	}
	if err := c.skip(c.pad); err != nil {
		return nil, c.fail(fmt.Errorf("cannot skip to next entry: %w", err))
	}
	c.pad = 0

	hdr, err := c.readHeader()
	if err != nil {
		return nil, c.fail(err)
	}

	if hdr.name == cpioTrailer {
		return nil, c.fail(io.EOF)
	}

	c.remain = hdr.size
	c.pad = pad4(hdr.size)
	c.name = hdr.name
	c.sum = 0
	c.check = uint32(hdr.check)

	// only regular file content is checksummed in the crc format
	c.verify = hdr.crc && hdr.mode&cpioModeMask == cpioTypeRegular && hdr.size > 0

	// a symlink stores its target as entry content
	if hdr.mode&cpioModeMask == cpioTypeSymlink {
		linkname := make([]byte, hdr.size)
		if _, err := io.ReadFull(c.r, linkname); err != nil {
			return nil, c.fail(fmt.Errorf("cannot read symlink target: %w", err))
		}
		c.remain = 0
		hdr.linkname = string(linkname)
	}

	return hdr, nil
}

// Read reads the content of the current entry. It returns io.EOF when the
// content is exhausted.
func (c *cpioReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := c.r.Read(p)
	c.remain -= int64(n)
	if c.verify {
		for _, b := range p[:n] {
			c.sum += uint32(b)
		}
	}
	if err == io.EOF && c.remain > 0 {
		err = io.ErrUnexpectedEOF
	}
	if c.remain == 0 && (err == nil || err == io.EOF) {
		if cerr := c.verifyChecksum(); cerr != nil {
			return n, c.fail(cerr)
		}
	}
	return n, err
}

// verifyChecksum compares the accumulated content checksum of the current
// entry against its header value. Entries without one pass unchecked.
func (c *cpioReader) verifyChecksum() error {
	if !c.verify {
		return nil
	}
	c.verify = false
	if c.sum != c.check {
		return fmt.Errorf("checksum mismatch for %q: content sums to %08x, header says %08x", c.name, c.sum, c.check)
	}
	return nil
}

// readHeader decodes one fixed-size header plus the entry name that
// follows it.
func (c *cpioReader) readHeader() (*cpioHeader, error) {
	buf := make([]byte, cpioHeaderSize)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("truncated cpio header: %w", err)
		}
		return nil, err
	}

	if !isCpio(buf) {
		return nil, fmt.Errorf("invalid cpio magic %q", buf[:6])
	}

	var fields [13]int64
	for i := range fields {
		v, err := parseCpioField(buf[6+i*8 : 6+(i+1)*8])
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}

	hdr := &cpioHeader{
		ino:       fields[0],
		mode:      fields[1],
		uid:       int(fields[2]),
		gid:       int(fields[3]),
		nlink:     int(fields[4]),
		mtime:     fields[5],
		size:      fields[6],
		devMajor:  fields[7],
		devMinor:  fields[8],
		rdevMajor: fields[9],
		rdevMinor: fields[10],
		check:     fields[12],
		crc:       bytes.Equal(buf[:6], magicBytesCpio[1]),
	}

	nameSize := fields[11]
	if nameSize <= 0 || nameSize > cpioMaxNameSize {
		return nil, fmt.Errorf("implausible cpio name size %d", nameSize)
	}

	name := make([]byte, nameSize)
	if _, err := io.ReadFull(c.r, name); err != nil {
		return nil, fmt.Errorf("cannot read entry name: %w", err)
	}
	hdr.name = strings.TrimRight(string(name), "\x00")

	// header and name are padded together to a multiple of four
	if err := c.skip(pad4(cpioHeaderSize + nameSize)); err != nil {
		return nil, fmt.Errorf("cannot skip name padding: %w", err)
	}

	return hdr, nil
}

// skip discards n bytes from the stream.
func (c *cpioReader) skip(n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, c.r, n)
	return err
}

// fail records a sticky error and returns it.
func (c *cpioReader) fail(err error) error {
	c.err = err
	return err
}

// parseCpioField decodes one 8-character ASCII hex header field.
func parseCpioField(b []byte) (int64, error) {
	v, err := strconv.ParseUint(string(b), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cpio header field %q: %w", b, err)
	}
	return int64(v), nil
}

// pad4 returns the number of padding bytes that align n to four bytes.
func pad4(n int64) int64 {
	return (4 - n%4) % 4
}

// cpioWalker is a walker for cpio archives
type cpioWalker struct {
	cr *cpioReader
}

// Type returns the file extension for cpio archives
func (w *cpioWalker) Type() string {
	return fileExtensionCpio
}

// Next returns the next entry in the cpio archive
func (w *cpioWalker) Next() (archiveEntry, error) {
	hdr, err := w.cr.Next()
	if err != nil {
		return nil, err
	}
	return &cpioEntry{hdr, w.cr}, nil
}

// cpioEntry is an entry in a cpio archive
type cpioEntry struct {
	hdr *cpioHeader
	cr  *cpioReader
}

// Name returns the name of the entry
func (e *cpioEntry) Name() string {
	return e.hdr.name
}

// Size returns the content size of the entry
func (e *cpioEntry) Size() int64 {
	return e.hdr.size
}

// Mode returns the mode of the entry
func (e *cpioEntry) Mode() fs.FileMode {
	return e.hdr.fileMode()
}

// Linkname returns the symlink target of the entry
func (e *cpioEntry) Linkname() string {
	return e.hdr.linkname
}

// ModTime returns the modification time of the entry
func (e *cpioEntry) ModTime() time.Time {
	return time.Unix(e.hdr.mtime, 0)
}

// Uid returns the owning user id of the entry
func (e *cpioEntry) Uid() int {
	return e.hdr.uid
}

// Gid returns the owning group id of the entry
func (e *cpioEntry) Gid() int {
	return e.hdr.gid
}

// IsRegular returns true if the entry is a regular file
func (e *cpioEntry) IsRegular() bool {
	return e.hdr.mode&cpioModeMask == cpioTypeRegular
}

// IsDir returns true if the entry is a directory
func (e *cpioEntry) IsDir() bool {
	return e.hdr.mode&cpioModeMask == cpioTypeDir
}

// IsSymlink returns true if the entry is a symlink
func (e *cpioEntry) IsSymlink() bool {
	return e.hdr.mode&cpioModeMask == cpioTypeSymlink
}

// IsHardlink returns true if the entry is a regular file that shares its
// inode with other entries of the archive.
func (e *cpioEntry) IsHardlink() bool {
	return e.IsRegular() && e.hdr.nlink > 1
}

// Open returns a reader for the entry content
func (e *cpioEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{e.cr}, nil
}

// Type returns the type bits of the entry mode
func (e *cpioEntry) Type() fs.FileMode {
	return e.hdr.fileMode().Type()
}

// Sys returns the decoded cpio header of the entry
func (e *cpioEntry) Sys() interface{} {
	return e.hdr
}
