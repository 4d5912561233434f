package cipher_test

import (
	"crypto/aes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak/internal/cipher"
)

func testKey(t *testing.T) cipher.Key {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	k, err := cipher.ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	return k
}

func TestParseKeyRejectsWrongLength(t *testing.T) {
	_, err := cipher.ParseKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	require.Error(t, err)
}

func TestParseKeyRejectsInvalidBase64(t *testing.T) {
	_, err := cipher.ParseKey("not base64!!!")
	require.Error(t, err)
}

func TestDecryptInPlaceRejectsUnalignedLength(t *testing.T) {
	k := testKey(t)
	err := k.DecryptInPlace(make([]byte, 17))
	require.Error(t, err)
}

func TestDecryptInPlaceRoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	block, err := aes.NewCipher(raw)
	require.NoError(t, err)

	plaintext := []byte("0123456789abcdef0123456789abcdef")[:32]
	ciphertext := make([]byte, len(plaintext))
	for off := 0; off < len(plaintext); off += aes.BlockSize {
		block.Encrypt(ciphertext[off:off+aes.BlockSize], plaintext[off:off+aes.BlockSize])
	}

	k, err := cipher.ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	require.NoError(t, k.DecryptInPlace(ciphertext))
	require.Equal(t, plaintext, ciphertext)
}
