package u4pak

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/panzi/u4pak/internal/cipher"
	"github.com/panzi/u4pak/internal/pathfilter"
	"github.com/panzi/u4pak/internal/xfer"
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	Workers             int
	AbortOnError        bool
	Verbose             bool
	Logger              *zap.Logger
	Filter              *pathfilter.Filter
	EncryptionKey       *cipher.Key
}

// extractJob pairs a record with the destination path it should be
// written to, computed once by the single-threaded producer so workers
// never need to touch the path filter or mount point logic concurrently.
type extractJob struct {
	record  *Record
	outPath string
}

// Extract writes every matching archive record to files under outRoot,
// preserving the record's '/'-separated filename as a relative path.
// Uncompressed entries are copied with the platform's zero-copy primitive
// (internal/xfer); compressed entries are inflated through
// compress/zlib, per-block when a block table is present (version 3+) or
// as a single stream otherwise (versions 1 and 2).
func Extract(archive *Archive, path string, outRoot string, opts ExtractOptions) (int, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	extracted := 0

	src, err := os.Open(path)
	if err != nil {
		return 0, WrapIO(err, path)
	}
	defer src.Close()

	baseCtx, abort := context.WithCancel(context.Background())
	defer abort()
	g, ctx := errgroup.WithContext(baseCtx)

	jobs := make(chan extractJob, workers*4)
	type result struct {
		path string
		err  error
	}
	results := make(chan result, workers*4)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			rf, err := os.Open(path)
			if err != nil {
				return WrapIO(err, path)
			}
			defer rf.Close()

			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					err := extractOne(rf, archive, job, opts)
					select {
					case results <- result{path: job.outPath, err: err}:
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
		defer close(jobs)
		for _, rec := range archive.Records {
			if opts.Filter != nil && !opts.Filter.Visit(rec.Filename) {
				continue
			}
			outPath := filepath.Join(outRoot, filepath.FromSlash(rec.Filename))
			if !strings.HasPrefix(outPath, filepath.Clean(outRoot)+string(os.PathSeparator)) && outPath != filepath.Clean(outRoot) {
				continue
			}
			select {
			case jobs <- extractJob{record: rec, outPath: outPath}:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			if res.err != nil {
				logIssue(opts.Logger, res.path, res.err)
				if opts.AbortOnError {
					abort()
				}
				continue
			}
			extracted++
			if opts.Verbose {
				logOK(opts.Logger, res.path)
			}
		}
	}()

	<-producerDone
	werr := g.Wait()
	close(results)
	<-done

	if opts.Filter != nil {
		for _, missing := range opts.Filter.NonVisitedPaths() {
			logIssue(opts.Logger, missing, NewError("path not found in archive"))
		}
	}

	if werr != nil {
		return extracted, werr
	}
	return extracted, nil
}

func extractOne(r io.ReaderAt, archive *Archive, job extractJob, opts ExtractOptions) error {
	rec := job.record

	if err := os.MkdirAll(filepath.Dir(job.outPath), 0o755); err != nil {
		return err
	}

	if rec.Encrypted && opts.EncryptionKey == nil {
		return NewError("encryption is not supported: no key configured")
	}

	out, err := os.Create(job.outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	headerSize := HeaderSize(archive.Version, rec)
	payloadOffset := rec.Offset + headerSize

	if rec.Encrypted {
		return extractEncrypted(r, out, rec, payloadOffset, opts)
	}

	if rec.CompressionMethod == ComprNone {
		if rf, ok := r.(*os.File); ok {
			return xfer.Copy(out, rf, int64(payloadOffset), int64(rec.Size))
		}
		_, err := io.Copy(out, io.NewSectionReader(r, int64(payloadOffset), int64(rec.Size)))
		return err
	}

	base := uint64(0)
	if archive.Version >= 7 {
		base = rec.Offset
	}

	if len(rec.CompressionBlocks) == 0 {
		zr, err := zlib.NewReader(io.NewSectionReader(r, int64(payloadOffset), int64(rec.Size)))
		if err != nil {
			return err
		}
		defer zr.Close()
		_, err = io.Copy(out, zr)
		return err
	}

	for _, blk := range rec.CompressionBlocks {
		start := int64(base + blk.StartOffset)
		size := int64(blk.EndOffset - blk.StartOffset)
		zr, err := zlib.NewReader(io.NewSectionReader(r, start, size))
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, zr); err != nil {
			zr.Close()
			return err
		}
		zr.Close()
	}
	return nil
}

func extractEncrypted(r io.ReaderAt, out *os.File, rec *Record, payloadOffset uint64, opts ExtractOptions) error {
	if rec.Size%16 != 0 {
		return NewError("encrypted payload is not 16-byte aligned")
	}
	buf := make([]byte, rec.Size)
	if _, err := r.ReadAt(buf, int64(payloadOffset)); err != nil {
		return err
	}
	if err := opts.EncryptionKey.DecryptInPlace(buf); err != nil {
		return err
	}
	if rec.CompressionMethod == ComprNone {
		buf = buf[:rec.UncompressedSize]
		_, err := out.Write(buf)
		return err
	}
	zr, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	defer zr.Close()
	_, err = io.Copy(out, zr)
	return err
}
