package u4pak

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/panzi/u4pak/internal/bufpool"
	"github.com/panzi/u4pak/internal/pathfilter"
)

// CheckOptions configures Check.
type CheckOptions struct {
	// Workers bounds the worker pool size; zero defaults to
	// runtime.NumCPU(), clamped to at least 1.
	Workers int
	// AbortOnError cancels every in-flight worker as soon as the first
	// failure is observed, instead of checking every record.
	AbortOnError bool
	// IgnoreNullChecksums skips a digest comparison when the stored SHA-1
	// is all zero bytes (archives produced without digests set).
	IgnoreNullChecksums bool
	// Verbose logs one line per successfully checked record.
	Verbose bool
	// Logger receives verbose/diagnostic output; nil disables logging.
	Logger *zap.Logger
	// Filter, if set, restricts checking to matching entries and reports
	// any filter path that matched nothing via NonVisitedPaths.
	Filter *pathfilter.Filter
}

// checkResult is one worker's verdict for a single record.
type checkResult struct {
	record *Record
	errs   []error
}

// Check verifies archive's index digest and every record's structural
// invariants and payload digest, reading from the file at path. It returns
// the number of distinct failures found.
func Check(archive *Archive, path string, opts CheckOptions) (int, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	failures := 0

	f, err := os.Open(path)
	if err != nil {
		return 0, WrapIO(err, path)
	}
	defer f.Close()

	indexDigest, err := archive.IndexDigest(f)
	if err != nil {
		return 0, err
	}
	if !(opts.IgnoreNullChecksums && isZeroDigest(archive.IndexSha1)) && indexDigest != archive.IndexSha1 {
		failures++
		logIssue(opts.Logger, "", fmt.Errorf("index digest mismatch: got %x, want %x", indexDigest, archive.IndexSha1))
	}

	seenNames := make(map[string]bool, len(archive.Records))
	for _, rec := range archive.Records {
		if seenNames[rec.Filename] {
			failures++
			logIssue(opts.Logger, rec.Filename, fmt.Errorf("duplicate filename in index"))
		}
		seenNames[rec.Filename] = true
	}

	indexOffset := archive.IndexOffset

	baseCtx, abort := context.WithCancel(context.Background())
	defer abort()
	g, ctx := errgroup.WithContext(baseCtx)
	work := make(chan *Record, workers*4)
	results := make(chan checkResult, workers*4)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			wf, err := os.Open(path)
			if err != nil {
				return WrapIO(err, path)
			}
			defer wf.Close()

			buf := bufpool.Get(BufferSize)
			defer bufpool.Put(buf)

			for {
				select {
				case <-ctx.Done():
					return nil
				case rec, ok := <-work:
					if !ok {
						return nil
					}
					errs := checkRecord(wf, archive, rec, indexOffset, opts, buf)
					select {
					case results <- checkResult{record: rec, errs: errs}:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		defer close(work)
		for _, rec := range archive.Records {
			if opts.Filter != nil && !opts.Filter.Visit(rec.Filename) {
				continue
			}
			select {
			case work <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			if len(res.errs) == 0 {
				if opts.Verbose {
					logOK(opts.Logger, res.record.Filename)
				}
				continue
			}
			failures += len(res.errs)
			for _, e := range res.errs {
				logIssue(opts.Logger, res.record.Filename, e)
			}
			if opts.AbortOnError {
				abort()
			}
		}
	}()

	<-producerDone
	// g.Wait joins every worker (each exits once the work channel is
	// closed and drained, or ctx is cancelled by the abort above) before
	// results is closed, so no worker ever blocks on a send that nobody
	// will receive.
	werr := g.Wait()
	close(results)
	<-done

	if opts.Filter != nil {
		for _, missing := range opts.Filter.NonVisitedPaths() {
			failures++
			logIssue(opts.Logger, missing, fmt.Errorf("path not found in archive"))
		}
	}

	if werr != nil {
		return failures, werr
	}
	return failures, nil
}

func isZeroDigest(d Sha1Digest) bool {
	for _, b := range d {
		if b != 0 {
			return false
		}
	}
	return true
}

func logIssue(logger *zap.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("check failed", zap.String("path", path), zap.Error(err))
}

func logOK(logger *zap.Logger, path string) {
	if logger == nil {
		return
	}
	logger.Info("OK", zap.String("path", path))
}

// checkRecord runs every structural and digest check for one record and
// returns the (possibly empty) list of failures found. buf is the calling
// worker's reusable hashing scratch space (see hashRange).
func checkRecord(r io.ReaderAt, archive *Archive, rec *Record, indexOffset uint64, opts CheckOptions, buf []byte) []error {
	var errs []error

	if !isKnownCompressionMethod(rec.CompressionMethod) {
		errs = append(errs, fmt.Errorf("unknown compression method: 0x%02x", rec.CompressionMethod))
	}

	if rec.CompressionMethod == ComprNone && rec.Size != rec.UncompressedSize {
		errs = append(errs, fmt.Errorf("size (%d) != uncompressed_size (%d) for uncompressed entry", rec.Size, rec.UncompressedSize))
	}

	headerSize := HeaderSize(archive.Version, rec)
	if rec.Offset+headerSize+rec.Size > indexOffset {
		errs = append(errs, fmt.Errorf("entry data bleeds into index: offset(%d)+header(%d)+size(%d) > index_offset(%d)",
			rec.Offset, headerSize, rec.Size, indexOffset))
	}

	inline, err := readInlineHeader(r, archive, rec)
	if err != nil {
		errs = append(errs, fmt.Errorf("re-reading inline header: %w", err))
	} else {
		if inline.Offset != 0 {
			errs = append(errs, fmt.Errorf("inline header offset is %d, want 0", inline.Offset))
		}
		cmp := *inline
		cmp.Offset = rec.Offset
		cmp.Filename = rec.Filename
		if !SameMetadata(*rec, cmp) {
			errs = append(errs, fmt.Errorf("inline header does not match index entry:\n%s", MetadataDiff(*rec, cmp)))
		}
	}

	if digestErr := checkDigest(r, archive, rec, headerSize, opts, buf); digestErr != nil {
		errs = append(errs, digestErr)
	}

	return errs
}

// readInlineHeader re-reads the record-fields-only header stored
// immediately before rec's payload. Unlike the index entry, the inline
// header carries no filename of its own (see Write): it is a near-copy
// of the record fields alone, with Offset forced to 0.
func readInlineHeader(r io.ReaderAt, archive *Archive, rec *Record) (*Record, error) {
	reader, err := lookupRecordReader(archive.Variant, archive.Version)
	if err != nil {
		return nil, err
	}

	headerSize := int64(HeaderSize(archive.Version, rec))
	sr := io.NewSectionReader(r, int64(rec.Offset), headerSize)

	inline, err := reader(sr)
	if err != nil {
		return nil, err
	}
	inline.Filename = rec.Filename
	return &inline, nil
}

func checkDigest(r io.ReaderAt, archive *Archive, rec *Record, headerSize uint64, opts CheckOptions, buf []byte) error {
	if opts.IgnoreNullChecksums && isZeroDigest(rec.Sha1) {
		return nil
	}

	base := uint64(0)
	if archive.Version >= 7 {
		base = rec.Offset
	}

	hasher := sha1.New()

	if len(rec.CompressionBlocks) == 0 {
		payloadOffset := rec.Offset + headerSize
		if err := hashRange(r, hasher, int64(payloadOffset), int64(rec.Size), buf); err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
	} else {
		for i, blk := range rec.CompressionBlocks {
			if blk.StartOffset > blk.EndOffset {
				return fmt.Errorf("compression block %d has start offset (%d) > end offset (%d)", i, blk.StartOffset, blk.EndOffset)
			}
			start := int64(base + blk.StartOffset)
			end := int64(base + blk.EndOffset)
			if err := hashRange(r, hasher, start, end-start, buf); err != nil {
				return fmt.Errorf("reading compression block: %w", err)
			}
		}
	}

	var got Sha1Digest
	copy(got[:], hasher.Sum(nil))
	if got != rec.Sha1 {
		return fmt.Errorf("digest mismatch: got %x, want %x", got, rec.Sha1)
	}
	return nil
}

// hashRange streams the byte range [offset, offset+size) through hasher
// using buf as scratch space, so a worker's allocation stays flat across
// every record and block it processes instead of growing one per call.
func hashRange(r io.ReaderAt, hasher io.Writer, offset int64, size int64, buf []byte) error {
	remaining := size
	pos := offset
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := r.ReadAt(buf[:n], pos)
		if read > 0 {
			hasher.Write(buf[:read])
		}
		if err != nil && !(err == io.EOF && int64(read) == n) {
			if err == io.EOF {
				return fmt.Errorf("unexpected end of file")
			}
			return err
		}
		pos += int64(read)
		remaining -= int64(read)
	}
	return nil
}
