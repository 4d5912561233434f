package codec

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// Encoding selects how a non-negative length-prefixed string's raw bytes
// are interpreted. The UTF-16LE path (triggered by a negative length
// prefix) is independent of this setting and always used on read.
type Encoding int

const (
	// UTF8 rejects invalid byte sequences. This is the default.
	UTF8 Encoding = iota
	// ASCII rejects any byte above 0x7F.
	ASCII
	// Latin1 is a lossless byte-to-codepoint mapping.
	Latin1
)

// ReadString reads a length-prefixed string: a signed int32 length L,
// followed by either 2*|L| bytes of UTF-16LE (L<0) or L bytes in enc
// (L>=0). The result is truncated at the first NUL code unit.
func ReadString(r io.Reader, enc Encoding) (string, error) {
	length, err := ReadI32(r)
	if err != nil {
		return "", err
	}

	if length < 0 {
		n := int(-length)
		buf, err := ReadBytes(r, n*2)
		if err != nil {
			return "", err
		}
		units := make([]uint16, n)
		for i := 0; i < n; i++ {
			units[i] = uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		}
		for i, u := range units {
			if u == 0 {
				units = units[:i]
				break
			}
		}
		return string(utf16.Decode(units)), nil
	}

	buf, err := ReadBytes(r, int(length))
	if err != nil {
		return "", err
	}
	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}
	return decodeString(buf, enc)
}

func decodeString(buf []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8:
		if !utf8.Valid(buf) {
			return "", fmt.Errorf("invalid UTF-8 in string: %q", buf)
		}
		return string(buf), nil
	case ASCII:
		for _, b := range buf {
			if b > 0x7F {
				return "", fmt.Errorf("illegal byte 0x%02x for ASCII codec in string", b)
			}
		}
		return string(buf), nil
	case Latin1:
		runes := make([]rune, len(buf))
		for i, b := range buf {
			runes[i] = rune(b)
		}
		return string(runes), nil
	default:
		return "", fmt.Errorf("unknown string encoding: %d", enc)
	}
}

// WriteString writes s as a length-prefixed string. The length prefix is
// always a non-negative u32 byte count; the UTF-16 read path has no write
// counterpart, per the wire format.
func WriteString(w io.Writer, s string, enc Encoding) error {
	var raw []byte
	switch enc {
	case UTF8:
		raw = []byte(s)
	case ASCII:
		raw = make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0x7F {
				return fmt.Errorf("illegal rune %q for ASCII codec in string %q", r, s)
			}
			raw = append(raw, byte(r))
		}
	case Latin1:
		raw = make([]byte, 0, len(s))
		for _, r := range s {
			if r > 0xFF {
				return fmt.Errorf("illegal rune %q (0x%x) for Latin1 codec in string %q", r, r, s)
			}
			raw = append(raw, byte(r))
		}
	default:
		return fmt.Errorf("unknown string encoding: %d", enc)
	}

	if err := WriteU32(w, uint32(len(raw))); err != nil {
		return err
	}
	return WriteBytes(w, raw)
}
