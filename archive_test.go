package u4pak_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak"
)

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	src := writeSourceFile(t, dir, "x.txt", []byte("x"))
	archivePath := filepath.Join(dir, "out.pak")
	_, err := u4pak.Write(archivePath, []u4pak.PackInput{{ArchiveName: "x.txt", SourcePath: src}},
		u4pak.WriteOptions{Version: 1, CompressionMethod: u4pak.ComprNone, Encoding: u4pak.UTF8})
	require.NoError(t, err)

	f, err := os.OpenFile(archivePath, os.O_RDWR, 0)
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0, 0, 0, 0}, info.Size()-44)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = u4pak.Open(archivePath, u4pak.ReadOptions{Encoding: u4pak.UTF8})
	require.Error(t, err)

	_, err = u4pak.Open(archivePath, u4pak.ReadOptions{Encoding: u4pak.UTF8, IgnoreMagic: true})
	require.NoError(t, err)
}

func TestOpenRejectsFileTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.pak")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))
	_, err := u4pak.Open(path, u4pak.ReadOptions{})
	require.Error(t, err)
}

func TestArchiveByNameReturnsAllDuplicates(t *testing.T) {
	dir := t.TempDir()
	srcA := writeSourceFile(t, dir, "a.txt", []byte("first"))
	srcB := writeSourceFile(t, dir, "b.txt", []byte("second"))
	archivePath := filepath.Join(dir, "dup.pak")
	_, err := u4pak.Write(archivePath, []u4pak.PackInput{
		{ArchiveName: "same.txt", SourcePath: srcA},
		{ArchiveName: "same.txt", SourcePath: srcB},
	}, u4pak.WriteOptions{Version: 2, CompressionMethod: u4pak.ComprNone, Encoding: u4pak.UTF8})
	require.NoError(t, err)

	archive, err := u4pak.Open(archivePath, u4pak.ReadOptions{Encoding: u4pak.UTF8})
	require.NoError(t, err)

	dups := archive.ByName("same.txt")
	require.Len(t, dups, 2)

	failures, err := u4pak.Check(archive, archivePath, u4pak.CheckOptions{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, failures, 1)
}
