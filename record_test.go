package u4pak_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak"
)

func TestHeaderSizeByVersion(t *testing.T) {
	uncompressed := &u4pak.Record{CompressionMethod: u4pak.ComprNone}
	compressed := &u4pak.Record{
		CompressionMethod: u4pak.ComprZlib,
		CompressionBlocks: []u4pak.CompressionBlock{{}, {}},
	}
	require.EqualValues(t, 56, u4pak.HeaderSize(1, &u4pak.Record{}))
	require.EqualValues(t, 48, u4pak.HeaderSize(2, &u4pak.Record{}))
	require.EqualValues(t, 53, u4pak.HeaderSize(3, uncompressed))
	// A compressed entry's block table is preceded by its own u32 count
	// field, so the block contribution is 4+16*n, not 16*n.
	require.EqualValues(t, 53+4+32, u4pak.HeaderSize(3, compressed))
	require.EqualValues(t, 57+4+32, u4pak.HeaderSize(4, compressed))
	require.EqualValues(t, 53+4+32, u4pak.HeaderSize(7, compressed))
}

func TestSameMetadataIgnoresFilenameAndOffset(t *testing.T) {
	a := u4pak.Record{Filename: "a.uasset", Offset: 0, Size: 10, UncompressedSize: 10, Sha1: [20]byte{1}}
	b := a
	b.Filename = "b.uasset"
	b.Offset = 123
	require.True(t, u4pak.SameMetadata(a, b))

	c := a
	c.Size = 11
	require.False(t, u4pak.SameMetadata(a, c))
}

func TestMetadataDiffReportsMismatch(t *testing.T) {
	a := u4pak.Record{Size: 10, Sha1: [20]byte{1}}
	b := u4pak.Record{Size: 20, Sha1: [20]byte{2}}
	diff := u4pak.MetadataDiff(a, b)
	require.Contains(t, diff, "size")
	require.Contains(t, diff, "sha1")
}

func TestRelocateRewritesAbsoluteBlocksBelowV7(t *testing.T) {
	rec := &u4pak.Record{
		Offset: 100,
		CompressionBlocks: []u4pak.CompressionBlock{
			{StartOffset: 100, EndOffset: 150},
			{StartOffset: 150, EndOffset: 200},
		},
	}
	rec.Relocate(3, 1000)
	require.Equal(t, uint64(1000), rec.Offset)
	require.Equal(t, uint64(1000), rec.CompressionBlocks[0].StartOffset)
	require.Equal(t, uint64(1050), rec.CompressionBlocks[0].EndOffset)
	require.Equal(t, uint64(1050), rec.CompressionBlocks[1].StartOffset)
	require.Equal(t, uint64(1100), rec.CompressionBlocks[1].EndOffset)
}

func TestRelocateLeavesRelativeBlocksAtV7Unchanged(t *testing.T) {
	rec := &u4pak.Record{
		Offset: 100,
		CompressionBlocks: []u4pak.CompressionBlock{
			{StartOffset: 0, EndOffset: 50},
		},
	}
	rec.Relocate(7, 1000)
	require.Equal(t, uint64(1000), rec.Offset)
	require.Equal(t, uint64(0), rec.CompressionBlocks[0].StartOffset)
	require.Equal(t, uint64(50), rec.CompressionBlocks[0].EndOffset)
}
