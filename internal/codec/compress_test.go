package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_ShortContentUntouched(t *testing.T) {
	c := New(10)

	stored, compressed, err := c.Encode("short")
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, "short", stored)

	plain, err := c.Decode(stored, compressed)
	require.NoError(t, err)
	assert.Equal(t, "short", plain)
}

func TestCodec_RoundTripAboveThreshold(t *testing.T) {
	c := New(1000)
	original := strings.Repeat("héllo wörld ✓ ", 200)

	stored, compressed, err := c.Encode(original)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.NotEqual(t, original, stored)

	plain, err := c.Decode(stored, compressed)
	require.NoError(t, err)
	assert.Equal(t, []byte(original), []byte(plain))
}

func TestCodec_ThresholdBoundary(t *testing.T) {
	c := New(5)

	_, compressed, err := c.Encode("12345")
	require.NoError(t, err)
	assert.False(t, compressed)

	_, compressed, err = c.Encode("123456")
	require.NoError(t, err)
	assert.True(t, compressed)
}

func TestDecompress_Invalid(t *testing.T) {
	_, err := Decompress("###")
	assert.Error(t, err)

	_, err = Decompress("aGVsbG8=")
	assert.Error(t, err)
}
