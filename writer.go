package u4pak

import (
	"bytes"
	"crypto/sha1"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/panzi/u4pak/internal/codec"
)

// PackInput names one source file to embed, by its on-disk path and the
// filename it should be stored under in the archive.
type PackInput struct {
	ArchiveName string
	SourcePath  string
}

// WriteOptions configures Write.
type WriteOptions struct {
	Version              uint32
	Variant              Variant
	CompressionMethod    uint32
	CompressionBlockSize uint32
	Encoding             Encoding
	MountPoint           string
}

// Write streams inputs into a new archive at path: payload first (version
// 1-3 only carry an inline header immediately before each payload), then
// the index, then the 44-byte footer. Unlike the original reference
// implementation, whose writer leaves SHA-1 digests and compression block
// tables as TODO stubs, every entry here is fully digested and, when
// compressed in a version 3 archive, fully block-tabled, since both are
// required for the output to pass its own integrity checker. Compressed
// version 1 and 2 entries are written as a single zlib stream with no
// block table, since those record layouts have no field for one.
func Write(path string, inputs []PackInput, opts WriteOptions) (*Archive, error) {
	blockSize := opts.CompressionBlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	writer, err := lookupRecordWriter(opts.Variant, opts.Version)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, WrapIO(err, path)
	}
	defer out.Close()

	var offset uint64
	records := make([]*Record, 0, len(inputs))
	byName := make(map[string][]*Record, len(inputs))

	for _, in := range inputs {
		rec, payload, err := prepareEntry(in, opts, blockSize)
		if err != nil {
			return nil, err
		}
		rec.Offset = offset

		headerSize := HeaderSize(opts.Version, rec)
		headerEnd := offset + headerSize

		if opts.Version >= 7 {
			rebaseBlocks(rec, headerSize)
		} else {
			rebaseBlocks(rec, headerEnd)
		}

		if _, err := out.Seek(int64(offset), io.SeekStart); err != nil {
			return nil, WrapIO(err, path)
		}
		if err := writer(out, *rec, true); err != nil {
			return nil, WrapIO(err, path)
		}

		if _, err := out.Write(payload); err != nil {
			return nil, WrapIO(err, path)
		}

		offset = headerEnd + uint64(len(payload))
		records = append(records, rec)
		byName[in.ArchiveName] = append(byName[in.ArchiveName], rec)
	}

	indexOffset := offset
	var indexBuf bytes.Buffer
	if err := codec.WriteString(&indexBuf, opts.MountPoint, opts.Encoding); err != nil {
		return nil, err
	}
	if err := codec.WriteU32(&indexBuf, uint32(len(records))); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := codec.WriteString(&indexBuf, inputs[i].ArchiveName, opts.Encoding); err != nil {
			return nil, err
		}
		if err := writer(&indexBuf, *rec, false); err != nil {
			return nil, err
		}
	}
	indexBytes := indexBuf.Bytes()
	indexSha1 := Sha1Digest(sha1.Sum(indexBytes))

	if _, err := out.Seek(int64(indexOffset), io.SeekStart); err != nil {
		return nil, WrapIO(err, path)
	}
	if _, err := out.Write(indexBytes); err != nil {
		return nil, WrapIO(err, path)
	}

	if err := codec.WriteU32(out, PakMagic); err != nil {
		return nil, WrapIO(err, path)
	}
	if err := codec.WriteU32(out, opts.Version); err != nil {
		return nil, WrapIO(err, path)
	}
	if err := codec.WriteU64(out, indexOffset); err != nil {
		return nil, WrapIO(err, path)
	}
	if err := codec.WriteU64(out, uint64(len(indexBytes))); err != nil {
		return nil, WrapIO(err, path)
	}
	if err := codec.WriteSha1(out, indexSha1); err != nil {
		return nil, WrapIO(err, path)
	}

	return &Archive{
		Version:     opts.Version,
		Variant:     opts.Variant,
		Encoding:    opts.Encoding,
		IndexOffset: indexOffset,
		IndexSize:   uint64(len(indexBytes)),
		IndexSha1:   indexSha1,
		MountPoint:  opts.MountPoint,
		Records:     records,
		byName:      byName,
	}, nil
}

// rebaseBlocks shifts rec's compression block offsets so that, once written,
// they satisfy the same base convention Relocate preserves: absolute
// file offsets for version<7, entry-relative for version>=7. base is the
// payload's starting file offset (for <7) or the header size (for >=7).
func rebaseBlocks(rec *Record, base uint64) {
	for i := range rec.CompressionBlocks {
		rec.CompressionBlocks[i].StartOffset += base
		rec.CompressionBlocks[i].EndOffset += base
	}
}

// prepareEntry reads in.SourcePath fully, building the record and the exact
// bytes that will be written as payload (compressed or raw), with block
// offsets relative to the start of the payload (rebaseBlocks adds the file
// base afterward).
func prepareEntry(in PackInput, opts WriteOptions, blockSize uint32) (*Record, []byte, error) {
	src, err := os.Open(in.SourcePath)
	if err != nil {
		return nil, nil, WrapIO(err, in.SourcePath)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, nil, WrapIO(err, in.SourcePath)
	}
	uncompressedSize := uint64(info.Size())

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, nil, WrapIO(err, in.SourcePath)
	}

	rec := &Record{
		UncompressedSize:     uncompressedSize,
		CompressionMethod:    opts.CompressionMethod,
		CompressionBlockSize: blockSize,
	}

	if opts.Version == 1 {
		ts := uint64(info.ModTime().Unix())
		rec.Timestamp = &ts
	}

	switch opts.CompressionMethod {
	case ComprNone:
		digest := sha1.Sum(raw)
		rec.Sha1 = Sha1Digest(digest)
		rec.Size = uncompressedSize
		return rec, raw, nil

	case ComprZlib:
		// v1/v2 records carry no compression block table (writeRecordV1/V2
		// never serialize one), so the payload must decompress as exactly
		// one zlib stream: Extract falls back to a single zlib.NewReader
		// over the whole payload whenever CompressionBlocks is empty, and
		// that reader stops after the first concatenated stream.
		if opts.Version < 3 {
			var payload bytes.Buffer
			zw, err := zlib.NewWriterLevel(&payload, zlib.BestCompression)
			if err != nil {
				return nil, nil, err
			}
			if _, err := zw.Write(raw); err != nil {
				return nil, nil, err
			}
			if err := zw.Close(); err != nil {
				return nil, nil, err
			}
			digest := sha1.Sum(payload.Bytes())
			rec.Sha1 = Sha1Digest(digest)
			rec.Size = uint64(payload.Len())
			return rec, payload.Bytes(), nil
		}

		var payload bytes.Buffer
		hasher := sha1.New()
		var blocks []CompressionBlock
		for off := uint64(0); off < uncompressedSize; off += uint64(blockSize) {
			end := off + uint64(blockSize)
			if end > uncompressedSize {
				end = uncompressedSize
			}
			chunk := raw[off:end]

			blockStart := uint64(payload.Len())
			zw, err := zlib.NewWriterLevel(&payload, zlib.BestCompression)
			if err != nil {
				return nil, nil, err
			}
			if _, err := zw.Write(chunk); err != nil {
				return nil, nil, err
			}
			if err := zw.Close(); err != nil {
				return nil, nil, err
			}
			blockEnd := uint64(payload.Len())
			hasher.Write(payload.Bytes()[blockStart:blockEnd])
			blocks = append(blocks, CompressionBlock{StartOffset: blockStart, EndOffset: blockEnd})
		}
		rec.CompressionBlocks = blocks
		rec.Size = uint64(payload.Len())
		var digest [20]byte
		copy(digest[:], hasher.Sum(nil))
		rec.Sha1 = digest
		return rec, payload.Bytes(), nil

	default:
		return nil, nil, NewErrorf("unsupported compression method for writing: %d", opts.CompressionMethod)
	}
}
