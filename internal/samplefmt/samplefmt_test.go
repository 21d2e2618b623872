package samplefmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeAndPlanar(t *testing.T) {
	require.Equal(t, 1, U8.Size())
	require.Equal(t, 2, S16.Size())
	require.Equal(t, 4, S32.Size())
	require.Equal(t, 4, Float.Size())
	require.Equal(t, 8, S64.Size())
	require.Equal(t, 8, Double.Size())
	require.Equal(t, 0, Unknown.Size())

	require.True(t, S16P.IsPlanar())
	require.False(t, S16.IsPlanar())
	require.Equal(t, S16, S16P.Interleaved())
	require.Equal(t, S16P, S16.Planar())
}

func TestConvertS16ToFloatRoundTrip(t *testing.T) {
	src := []byte{0x00, 0x40} // int16 = 0x4000 = 16384
	dst := make([]byte, 4)
	require.NoError(t, Convert(dst, src, S16, Float, 1, 1, 0, 1, 0))

	back := make([]byte, 2)
	require.NoError(t, Convert(back, dst, Float, S16, 1, 1, 0, 1, 0))
	require.InDelta(t, int16(0x4000), int16(readRaw(back, S16)), 2)
}

func TestConvertIdentityIsMemcpy(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	require.NoError(t, Convert(dst, src, S16, S16, 2, 1, 0, 1, 0))
	require.Equal(t, src, dst)
}

func TestConvertPlanarToInterleaved(t *testing.T) {
	left := []byte{0xFF, 0x00}
	right := []byte{0x00, 0xFF}
	dst := make([]byte, 4)
	require.NoError(t, Convert(dst, left, S16, S16, 1, 1, 0, 2, 0))
	require.NoError(t, Convert(dst, right, S16, S16, 1, 1, 0, 2, 1))
	require.Equal(t, []byte{0xFF, 0x00, 0x00, 0xFF}, dst)
}

func TestUnsupportedFormatErrors(t *testing.T) {
	require.Error(t, Convert(make([]byte, 4), make([]byte, 4), Unknown, S16, 1, 1, 0, 1, 0))
}
