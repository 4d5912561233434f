package u4pak

import (
	"crypto/sha1"
	"io"
	"os"

	"github.com/panzi/u4pak/internal/cipher"
	"github.com/panzi/u4pak/internal/codec"
)

// ReadOptions configures how an archive's footer and index are parsed.
type ReadOptions struct {
	// IgnoreMagic skips the footer magic-number check.
	IgnoreMagic bool
	// ForceVersion overrides the version read from the footer, when
	// non-zero. Used to read archives whose footer version disagrees with
	// their actual on-disk layout.
	ForceVersion uint32
	// Variant selects the record-layout variant to dispatch on.
	Variant Variant
	// Encoding selects the non-negative string codec used for the mount
	// point and every filename.
	Encoding Encoding
	// EncryptionKey, if set, decrypts the index blob before parsing.
	EncryptionKey *cipher.Key
}

// Archive is a fully parsed archive: footer fields plus the ordered entry
// list read from the index.
type Archive struct {
	Version     uint32
	Variant     Variant
	Encoding    Encoding
	IndexOffset uint64
	IndexSize   uint64
	IndexSha1   Sha1Digest
	MountPoint  string
	Records     []*Record

	byName map[string][]*Record
}

// ByName returns every record inserted under the given filename, in index
// order. Duplicate filenames are reported, not deduplicated, per the
// format's own ambiguity (spec's Open Question): callers that need a single
// record per name must pick first-wins or last-wins themselves.
func (a *Archive) ByName(filename string) []*Record {
	return a.byName[filename]
}

// Open opens path and parses its footer and index.
func Open(path string, opts ReadOptions) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapIO(err, path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, WrapIO(err, path)
	}

	archive, err := New(f, info.Size(), opts)
	if err != nil {
		if e, ok := err.(*Error); ok {
			return nil, e.WithPath(path)
		}
		return nil, err
	}
	return archive, nil
}

// New parses an archive's footer and index from r, which must support
// seeking to size-44.
func New(r io.ReadSeeker, size int64, opts ReadOptions) (*Archive, error) {
	if size < FooterSize {
		return nil, NewErrorf("file too small to contain a footer: %d bytes", size)
	}
	footerOffset := size - FooterSize

	if _, err := r.Seek(footerOffset, io.SeekStart); err != nil {
		return nil, WrapIO(err, "")
	}

	magic, err := codec.ReadU32(r)
	if err != nil {
		return nil, WrapIO(err, "")
	}
	if !opts.IgnoreMagic && magic != PakMagic {
		return nil, NewErrorf("illegal file magic: 0x%08x", magic)
	}

	version, err := codec.ReadU32(r)
	if err != nil {
		return nil, WrapIO(err, "")
	}
	if opts.ForceVersion != 0 {
		version = opts.ForceVersion
	}

	indexOffset, err := codec.ReadU64(r)
	if err != nil {
		return nil, WrapIO(err, "")
	}
	indexSize, err := codec.ReadU64(r)
	if err != nil {
		return nil, WrapIO(err, "")
	}
	indexSha1, err := codec.ReadSha1(r)
	if err != nil {
		return nil, WrapIO(err, "")
	}

	if indexOffset+indexSize > uint64(footerOffset) {
		return nil, NewErrorf("index_offset (%d) + index_size (%d) exceeds footer offset (%d)",
			indexOffset, indexSize, footerOffset)
	}

	if _, err := r.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return nil, WrapIO(err, "")
	}
	indexBlob := make([]byte, indexSize)
	if _, err := io.ReadFull(r, indexBlob); err != nil {
		return nil, WrapIO(err, "")
	}

	if opts.EncryptionKey != nil {
		if err := opts.EncryptionKey.DecryptInPlace(indexBlob); err != nil {
			return nil, NewErrorf("decrypting index: %s", err)
		}
	}

	archive, err := parseIndex(indexBlob, version, opts.Variant, opts.Encoding)
	if err != nil {
		return nil, err
	}
	archive.Version = version
	archive.Variant = opts.Variant
	archive.Encoding = opts.Encoding
	archive.IndexOffset = indexOffset
	archive.IndexSize = indexSize
	archive.IndexSha1 = indexSha1
	return archive, nil
}

func parseIndex(blob []byte, version uint32, variant Variant, enc Encoding) (*Archive, error) {
	reader, err := lookupRecordReader(variant, version)
	if err != nil {
		return nil, err
	}

	br := newByteReader(blob)

	mountPoint, err := codec.ReadString(br, enc)
	if err != nil {
		return nil, NewErrorf("reading mount point: %s", err)
	}

	count, err := codec.ReadU32(br)
	if err != nil {
		return nil, NewErrorf("reading entry count: %s", err)
	}
	if err := codec.CheckVectorCount(count, 1, br.Remaining()); err != nil {
		return nil, NewErrorf("entry count: %s", err)
	}

	records := make([]*Record, 0, count)
	byName := make(map[string][]*Record, count)
	for i := uint32(0); i < count; i++ {
		filename, err := codec.ReadString(br, enc)
		if err != nil {
			return nil, NewErrorf("reading entry %d filename: %s", i, err)
		}
		rec, err := reader(br)
		if err != nil {
			return nil, NewErrorf("reading entry %d (%s): %s", i, filename, err)
		}
		rec.Filename = filename
		records = append(records, &rec)
		byName[filename] = append(byName[filename], &rec)
	}

	return &Archive{
		MountPoint: mountPoint,
		Records:    records,
		byName:     byName,
	}, nil
}

// IndexDigest computes the SHA-1 over the raw index bytes at IndexOffset,
// for comparison against IndexSha1. r must expose the whole archive.
func (a *Archive) IndexDigest(r io.ReaderAt) (Sha1Digest, error) {
	buf := make([]byte, a.IndexSize)
	if _, err := r.ReadAt(buf, int64(a.IndexOffset)); err != nil {
		return Sha1Digest{}, WrapIO(err, "")
	}
	return Sha1Digest(sha1.Sum(buf)), nil
}

// byteReader is a minimal io.Reader over an in-memory slice that also
// reports how many bytes remain, used by parseIndex's vector-count guard.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += n
	return n, nil
}

func (b *byteReader) Remaining() int64 {
	return int64(len(b.buf) - b.pos)
}
