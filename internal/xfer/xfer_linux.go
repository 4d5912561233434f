//go:build linux

// Package xfer copies a bounded byte range from one file to another,
// using the fastest mechanism the platform offers. Grounded on the
// reference implementation's bin/u4pak/io.rs, which splits the same way
// between a Linux sendfile(2) fast path and a portable fallback.
package xfer

import (
	"io"
	"os"
	"syscall"
)

// Copy transfers n bytes starting at offset in src to dst's current
// position, using the sendfile(2) syscall to avoid staging the data
// through a userspace buffer.
func Copy(dst *os.File, src *os.File, offset int64, n int64) error {
	remaining := n
	pos := offset
	for remaining > 0 {
		written, err := syscall.Sendfile(int(dst.Fd()), int(src.Fd()), &pos, int(remaining))
		if written > 0 {
			remaining -= int64(written)
		}
		if err == syscall.EINTR {
			continue
		}
		if err == syscall.ENOSYS || err == syscall.EINVAL {
			return copyFallback(dst, src, pos, remaining)
		}
		if err != nil {
			return err
		}
		if written == 0 {
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}

func copyFallback(dst *os.File, src *os.File, offset int64, n int64) error {
	_, err := io.Copy(dst, io.NewSectionReader(src, offset, n))
	return err
}
