//go:build !linux

package xfer

import (
	"io"
	"os"
)

// Copy transfers n bytes starting at offset in src to dst's current
// position via a buffered copy; only Linux gets the sendfile(2) fast path.
func Copy(dst *os.File, src *os.File, offset int64, n int64) error {
	_, err := io.Copy(dst, io.NewSectionReader(src, offset, n))
	return err
}
