package rpmextract

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// cpioContent describes one entry for the test archive packers.
type cpioContent struct {
	Name       string
	Mode       int64 // cpio mode bits including the entry type
	Uid        int
	Gid        int
	Mtime      int64
	Ino        int64 // 0 assigns a fresh inode
	Nlink      int   // 0 means 1
	Content    []byte
	Linktarget string
}

// packCpio writes content into a newc cpio archive, the format rpm packages
// carry as payload.
func packCpio(t *testing.T, content []cpioContent) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	nextIno := int64(1000)
	for _, c := range content {
		data := c.Content
		if c.Linktarget != "" {
			data = []byte(c.Linktarget)
		}
		ino := c.Ino
		if ino == 0 {
			nextIno++
			ino = nextIno
		}
		nlink := c.Nlink
		if nlink == 0 {
			nlink = 1
		}
		writeCpioEntry(buf, c.Name, ino, c.Mode, c.Uid, c.Gid, nlink, c.Mtime, data)
	}
	writeCpioEntry(buf, cpioTrailer, 0, 0, 0, 0, 1, 0, nil)
	return buf.Bytes()
}

// writeCpioEntry appends one aligned newc entry to buf.
func writeCpioEntry(buf *bytes.Buffer, name string, ino, mode int64, uid, gid, nlink int, mtime int64, data []byte) {
	buf.WriteString("070701")
	fields := []int64{
		ino,
		mode,
		int64(uid),
		int64(gid),
		int64(nlink),
		mtime,
		int64(len(data)),
		0, // devmajor
		0, // devminor
		0, // rdevmajor
		0, // rdevminor
		int64(len(name) + 1),
		0, // check
	}
	for _, v := range fields {
		fmt.Fprintf(buf, "%08x", v)
	}
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.Write(make([]byte, pad4(cpioHeaderSize+int64(len(name)+1))))
	buf.Write(data)
	buf.Write(make([]byte, pad4(int64(len(data)))))
}

// compressPayload compresses data with the named algorithm. An empty name
// returns data unchanged.
func compressPayload(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	switch name {
	case "":
		return data
	case compressorGZip:
		w := gzip.NewWriter(buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	case compressorBzip2:
		w, err := bzip2.NewWriter(buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		if err != nil {
			t.Fatalf("cannot create bzip2 writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	case compressorXz:
		w, err := xz.NewWriter(buf)
		if err != nil {
			t.Fatalf("cannot create xz writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	case compressorLzma:
		w, err := lzma.NewWriter(buf)
		if err != nil {
			t.Fatalf("cannot create lzma writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	case compressorZstd:
		w, err := zstd.NewWriter(buf)
		if err != nil {
			t.Fatalf("cannot create zstd writer: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	case compressorLZ4:
		w := lz4.NewWriter(buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("cannot compress test payload: %v", err)
		}
	default:
		t.Fatalf("unknown test compressor %q", name)
	}
	return buf.Bytes()
}

// packRPM wraps the given cpio payload into an rpm package. The payload is
// compressed with compressor and the payload tags name it; an empty
// compressor stores the payload as is and omits the tag, like very old
// packages did.
func packRPM(t *testing.T, compressor string, payload []byte) []byte {
	t.Helper()

	buf := &bytes.Buffer{}

	lead := make([]byte, rpmLeadSize)
	copy(lead, magicBytesRPM[0])
	lead[4], lead[5] = 3, 0 // package format version 3.0
	copy(lead[10:], "test-package")
	buf.Write(lead)

	// empty signature header, padded to eight bytes
	writeRPMHeader(t, buf, nil, true)

	tags := map[int32]string{rpmTagPayloadFormat: "cpio"}
	if compressor != "" {
		tags[rpmTagPayloadCompressor] = compressor
	}
	writeRPMHeader(t, buf, tags, false)

	buf.Write(compressPayload(t, compressor, payload))
	return buf.Bytes()
}

// writeRPMHeader appends one header structure with the given string tags.
func writeRPMHeader(t *testing.T, buf *bytes.Buffer, tags map[int32]string, padded bool) {
	t.Helper()

	keys := make([]int32, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	index := &bytes.Buffer{}
	store := &bytes.Buffer{}
	for _, tag := range keys {
		binary.Write(index, binary.BigEndian, uint32(tag))
		binary.Write(index, binary.BigEndian, uint32(rpmTypeString))
		binary.Write(index, binary.BigEndian, uint32(store.Len()))
		binary.Write(index, binary.BigEndian, uint32(1))
		store.WriteString(tags[tag])
		store.WriteByte(0)
	}

	intro := make([]byte, 16)
	copy(intro, rpmHeaderMagic)
	intro[3] = 1 // header structure version
	binary.BigEndian.PutUint32(intro[8:12], uint32(len(keys)))
	binary.BigEndian.PutUint32(intro[12:16], uint32(store.Len()))

	buf.Write(intro)
	buf.Write(index.Bytes())
	buf.Write(store.Bytes())
	if padded {
		buf.Write(make([]byte, (8-store.Len()%8)%8))
	}
}

// createTestRPM writes a generated package into dir and returns its path.
func createTestRPM(t *testing.T, dir, name, compressor string, content []cpioContent) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, packRPM(t, compressor, packCpio(t, content)), 0644); err != nil {
		t.Fatalf("cannot write test package: %v", err)
	}
	return path
}
