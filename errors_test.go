package u4pak_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak"
)

func TestErrorWithPathPrefixesMessage(t *testing.T) {
	err := u4pak.NewError("bad magic").WithPath("archive.pak")
	require.Equal(t, "archive.pak: bad magic", err.Error())
}

func TestWrapIOUnwraps(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := u4pak.WrapIO(cause, "archive.pak")
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestWriteToNullSeparated(t *testing.T) {
	err := u4pak.NewError("digest mismatch").WithPath("a.txt")
	var buf bytes.Buffer
	require.NoError(t, err.WriteTo(&buf, true))
	require.Equal(t, "a.txt: digest mismatch\x00", buf.String())
}

func TestIsChannelDisconnected(t *testing.T) {
	require.True(t, u4pak.ErrChannelDisconnected.IsChannelDisconnected())
	require.False(t, u4pak.NewError("x").IsChannelDisconnected())
}
