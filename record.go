package u4pak

import (
	"fmt"
	"io"
	"strings"

	"github.com/panzi/u4pak/internal/codec"
)

// Sha1Digest is a raw 20-byte SHA-1 digest, as stored in the archive.
type Sha1Digest = [20]byte

// CompressionBlock is one (start,end) offset pair over an entry's stored
// (compressed) bytes. Whether these offsets are absolute or entry-relative
// depends on the archive version; see Record.Relocate and the base offset
// computed in checkDigest (check.go) and extractOne (extract.go).
type CompressionBlock struct {
	StartOffset uint64
	EndOffset   uint64
}

// Record is the in-memory representation of one archive entry, shared
// between the index copy and the inline copy stored next to its payload.
type Record struct {
	Filename              string
	Offset                uint64
	Size                  uint64
	UncompressedSize      uint64
	CompressionMethod     uint32
	Timestamp             *uint64 // set only for v1 records
	Sha1                  Sha1Digest
	CompressionBlocks     []CompressionBlock // nil when the entry carries no block table
	Encrypted             bool
	CompressionBlockSize  uint32
}

// SameMetadata reports whether a and b agree on every field except
// Filename and Offset. Used to validate that an index record matches the
// inline header stored next to its payload.
func SameMetadata(a, b Record) bool {
	if a.Size != b.Size ||
		a.UncompressedSize != b.UncompressedSize ||
		a.CompressionMethod != b.CompressionMethod ||
		a.Sha1 != b.Sha1 ||
		a.Encrypted != b.Encrypted ||
		a.CompressionBlockSize != b.CompressionBlockSize {
		return false
	}
	if (a.Timestamp == nil) != (b.Timestamp == nil) {
		return false
	}
	if a.Timestamp != nil && *a.Timestamp != *b.Timestamp {
		return false
	}
	return blocksEqual(a.CompressionBlocks, b.CompressionBlocks)
}

func blocksEqual(a, b []CompressionBlock) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MetadataDiff renders a human-readable, per-field discrepancy report
// between a and b, for use in checker diagnostics.
func MetadataDiff(a, b Record) string {
	var sb strings.Builder
	diffField := func(name string, av, bv interface{}) {
		fmt.Fprintf(&sb, "\t%s: %v != %v\n", name, av, bv)
	}

	if a.Size != b.Size {
		diffField("size", a.Size, b.Size)
	}
	if a.UncompressedSize != b.UncompressedSize {
		diffField("uncompressed_size", a.UncompressedSize, b.UncompressedSize)
	}
	if (a.Timestamp == nil) != (b.Timestamp == nil) || (a.Timestamp != nil && *a.Timestamp != *b.Timestamp) {
		diffField("timestamp", timestampString(a.Timestamp), timestampString(b.Timestamp))
	}
	if a.Encrypted != b.Encrypted {
		diffField("encrypted", a.Encrypted, b.Encrypted)
	}
	if a.CompressionBlockSize != b.CompressionBlockSize {
		diffField("compression_block_size", a.CompressionBlockSize, b.CompressionBlockSize)
	}
	if a.Sha1 != b.Sha1 {
		fmt.Fprintf(&sb, "\tsha1: %x != %x\n", a.Sha1, b.Sha1)
	}
	if !blocksEqual(a.CompressionBlocks, b.CompressionBlocks) {
		fmt.Fprintf(&sb, "\tcompression_blocks:\n\t\t%v\n\t\t\t!=\n\t\t%v\n", a.CompressionBlocks, b.CompressionBlocks)
	}
	return sb.String()
}

func timestampString(t *uint64) string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%d", *t)
}

// Relocate rewrites r.Offset to newOffset, preserving the version-dependent
// block-offset base convention: for version < 7, stored block offsets are
// absolute and must shift by the same delta as the entry itself; for
// version >= 7 block offsets are already entry-relative and need no
// adjustment.
func (r *Record) Relocate(version uint32, newOffset uint64) {
	if version < 7 {
		for i := range r.CompressionBlocks {
			r.CompressionBlocks[i].StartOffset = r.CompressionBlocks[i].StartOffset - r.Offset + newOffset
			r.CompressionBlocks[i].EndOffset = r.CompressionBlocks[i].EndOffset - r.Offset + newOffset
		}
	}
	r.Offset = newOffset
}

// HeaderSize returns the byte size of the inline/index header for r under
// the given archive version.
//
// The v3-family base sizes (53 for v3, 57 for the trailing-u32 variant)
// already count the fixed fields; on top of that, readRecordV3Family
// reads a block_count u32 immediately before the block table whenever
// the entry is compressed, so the block contribution is 4+16*n bytes in
// that case, not 16*n.
func HeaderSize(version uint32, r *Record) uint64 {
	blockBytes := func() uint64 {
		if r.CompressionMethod == ComprNone {
			return 0
		}
		return 4 + 16*uint64(len(r.CompressionBlocks))
	}
	switch {
	case version == 1:
		return 56
	case version == 2:
		return 48
	case version == 4:
		return 57 + blockBytes()
	default:
		// 3, 5, 7, 9, 11 all share the v3-family layout.
		return 53 + blockBytes()
	}
}

// recordReader parses one record's fields (everything after the filename
// string) from r.
type recordReader func(r io.Reader) (Record, error)

// recordWriter writes one record's fields (everything after the filename
// string). When inline is true, the Offset field is forced to 0, per the
// wire format's inline-header convention.
type recordWriter func(w io.Writer, rec Record, inline bool) error

func readRecordV1(r io.Reader) (Record, error) {
	offset, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	size, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	uncompressedSize, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	method, err := codec.ReadU32(r)
	if err != nil {
		return Record{}, err
	}
	timestamp, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	sha1, err := codec.ReadSha1(r)
	if err != nil {
		return Record{}, err
	}
	ts := timestamp
	return Record{
		Offset:            offset,
		Size:              size,
		UncompressedSize:  uncompressedSize,
		CompressionMethod: method,
		Timestamp:         &ts,
		Sha1:              sha1,
	}, nil
}

func writeRecordV1(w io.Writer, rec Record, inline bool) error {
	offset := rec.Offset
	if inline {
		offset = 0
	}
	var ts uint64
	if rec.Timestamp != nil {
		ts = *rec.Timestamp
	}
	if err := codec.WriteU64(w, offset); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.Size); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.UncompressedSize); err != nil {
		return err
	}
	if err := codec.WriteU32(w, rec.CompressionMethod); err != nil {
		return err
	}
	if err := codec.WriteU64(w, ts); err != nil {
		return err
	}
	return codec.WriteSha1(w, rec.Sha1)
}

func readRecordV2(r io.Reader) (Record, error) {
	offset, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	size, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	uncompressedSize, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	method, err := codec.ReadU32(r)
	if err != nil {
		return Record{}, err
	}
	sha1, err := codec.ReadSha1(r)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Offset:            offset,
		Size:              size,
		UncompressedSize:  uncompressedSize,
		CompressionMethod: method,
		Sha1:              sha1,
	}, nil
}

func writeRecordV2(w io.Writer, rec Record, inline bool) error {
	offset := rec.Offset
	if inline {
		offset = 0
	}
	if err := codec.WriteU64(w, offset); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.Size); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.UncompressedSize); err != nil {
		return err
	}
	if err := codec.WriteU32(w, rec.CompressionMethod); err != nil {
		return err
	}
	return codec.WriteSha1(w, rec.Sha1)
}

func readCompressionBlocks(r io.Reader, count uint32) ([]CompressionBlock, error) {
	blocks := make([]CompressionBlock, count)
	for i := range blocks {
		start, err := codec.ReadU64(r)
		if err != nil {
			return nil, err
		}
		end, err := codec.ReadU64(r)
		if err != nil {
			return nil, err
		}
		blocks[i] = CompressionBlock{StartOffset: start, EndOffset: end}
	}
	return blocks, nil
}

func writeCompressionBlocks(w io.Writer, blocks []CompressionBlock) error {
	for _, b := range blocks {
		if err := codec.WriteU64(w, b.StartOffset); err != nil {
			return err
		}
		if err := codec.WriteU64(w, b.EndOffset); err != nil {
			return err
		}
	}
	return nil
}

// readRecordV3 parses the v3-family layout shared by versions 3, 5, 7, 9,
// and 11.
func readRecordV3(r io.Reader) (Record, error) {
	return readRecordV3Family(r, false)
}

// readRecordConanV4 parses the ConanExiles v4 variant: the v3-family
// layout plus one trailing (ignored) u32.
func readRecordConanV4(r io.Reader) (Record, error) {
	return readRecordV3Family(r, true)
}

func readRecordV3Family(r io.Reader, trailingU32 bool) (Record, error) {
	offset, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	size, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	uncompressedSize, err := codec.ReadU64(r)
	if err != nil {
		return Record{}, err
	}
	method, err := codec.ReadU32(r)
	if err != nil {
		return Record{}, err
	}
	sha1, err := codec.ReadSha1(r)
	if err != nil {
		return Record{}, err
	}

	var blocks []CompressionBlock
	if method != ComprNone {
		count, err := codec.ReadU32(r)
		if err != nil {
			return Record{}, err
		}
		blocks, err = readCompressionBlocks(r, count)
		if err != nil {
			return Record{}, err
		}
	}

	encryptedByte, err := codec.ReadU8(r)
	if err != nil {
		return Record{}, err
	}
	blockSize, err := codec.ReadU32(r)
	if err != nil {
		return Record{}, err
	}

	if trailingU32 {
		if _, err := codec.ReadU32(r); err != nil {
			return Record{}, err
		}
	}

	return Record{
		Offset:               offset,
		Size:                 size,
		UncompressedSize:     uncompressedSize,
		CompressionMethod:    method,
		Sha1:                 sha1,
		CompressionBlocks:    blocks,
		Encrypted:            encryptedByte != 0,
		CompressionBlockSize: blockSize,
	}, nil
}

func writeRecordV3(w io.Writer, rec Record, inline bool) error {
	return writeRecordV3Family(w, rec, inline, false)
}

func writeRecordConanV4(w io.Writer, rec Record, inline bool) error {
	return writeRecordV3Family(w, rec, inline, true)
}

func writeRecordV3Family(w io.Writer, rec Record, inline bool, trailingU32 bool) error {
	offset := rec.Offset
	if inline {
		offset = 0
	}
	if err := codec.WriteU64(w, offset); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.Size); err != nil {
		return err
	}
	if err := codec.WriteU64(w, rec.UncompressedSize); err != nil {
		return err
	}
	if err := codec.WriteU32(w, rec.CompressionMethod); err != nil {
		return err
	}
	if err := codec.WriteSha1(w, rec.Sha1); err != nil {
		return err
	}
	if rec.CompressionMethod != ComprNone {
		if err := codec.WriteU32(w, uint32(len(rec.CompressionBlocks))); err != nil {
			return err
		}
		if err := writeCompressionBlocks(w, rec.CompressionBlocks); err != nil {
			return err
		}
	}
	var encryptedByte uint8
	if rec.Encrypted {
		encryptedByte = 1
	}
	if err := codec.WriteU8(w, encryptedByte); err != nil {
		return err
	}
	if err := codec.WriteU32(w, rec.CompressionBlockSize); err != nil {
		return err
	}
	if trailingU32 {
		if err := codec.WriteU32(w, 0); err != nil {
			return err
		}
	}
	return nil
}

// dispatchKey selects a record reader/writer pair for a (variant, version)
// combination. Kept as explicit data, not an implicit numeric range, since
// the set of supported versions is sparse (1,2,3,4,5,7,9,11) and v4 has a
// distinct variant.
type dispatchKey struct {
	Variant Variant
	Version uint32
}

var recordReaders = map[dispatchKey]recordReader{
	{Standard, 1}:    readRecordV1,
	{Standard, 2}:    readRecordV2,
	{Standard, 3}:    readRecordV3,
	{Standard, 4}:    readRecordV3,
	{Standard, 5}:    readRecordV3,
	{Standard, 7}:    readRecordV3,
	{Standard, 9}:    readRecordV3,
	{Standard, 11}:   readRecordV3,
	{ConanExiles, 4}: readRecordConanV4,
}

var recordWriters = map[dispatchKey]recordWriter{
	{Standard, 1}: writeRecordV1,
	{Standard, 2}: writeRecordV2,
	{Standard, 3}: writeRecordV3,
}

func lookupRecordReader(variant Variant, version uint32) (recordReader, error) {
	fn, ok := recordReaders[dispatchKey{variant, version}]
	if !ok {
		return nil, NewErrorf("unsupported version: %d", version)
	}
	return fn, nil
}

func lookupRecordWriter(variant Variant, version uint32) (recordWriter, error) {
	fn, ok := recordWriters[dispatchKey{variant, version}]
	if !ok {
		return nil, NewErrorf("unsupported version for writing: %d", version)
	}
	return fn, nil
}
