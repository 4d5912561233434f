package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak/internal/codec"
)

func TestReadWriteU32(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, codec.WriteU32(&buf, 0xDEADBEEF))
	v, err := codec.ReadU32(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

func TestReadWriteU64(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, codec.WriteU64(&buf, 0x0102030405060708))
	v, err := codec.ReadU64(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), v)
}

func TestReadI32Negative(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, codec.WriteI32(&buf, -5))
	v, err := codec.ReadI32(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(-5), v)
}

func TestReadSha1RoundTrip(t *testing.T) {
	var digest [20]byte
	for i := range digest {
		digest[i] = byte(i)
	}
	var buf bytes.Buffer
	require.NoError(t, codec.WriteSha1(&buf, digest))
	got, err := codec.ReadSha1(&buf)
	require.NoError(t, err)
	require.Equal(t, digest, got)
}

func TestReadU32ShortRead(t *testing.T) {
	_, err := codec.ReadU32(bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}

func TestCheckVectorCount(t *testing.T) {
	require.NoError(t, codec.CheckVectorCount(4, 16, 64))
	require.Error(t, codec.CheckVectorCount(5, 16, 64))
}
