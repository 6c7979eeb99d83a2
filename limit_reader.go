// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import "io"

// limitReader wraps an [io.Reader] and fails with errOver once more than
// limit bytes have been consumed. A negative limit disables the check.
// Unlike [io.LimitReader] it does not silently truncate; exceeding the
// limit is an error condition that must abort the extraction.
type limitReader struct {
	r       io.Reader
	limit   int64
	read    int64
	errOver error
}

func newLimitReader(r io.Reader, limit int64, errOver error) *limitReader {
	return &limitReader{r: r, limit: limit, errOver: errOver}
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.limit >= 0 && l.read > l.limit {
		return 0, l.errOver
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.limit >= 0 && l.read > l.limit {
		return n, l.errOver
	}
	return n, err
}

// bytesRead reports how many bytes have been consumed so far.
func (l *limitReader) bytesRead() int64 {
	return l.read
}
