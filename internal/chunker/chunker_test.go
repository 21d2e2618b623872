package chunker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCDLCM(t *testing.T) {
	require.Equal(t, uint64(6), GCD(54, 24))
	require.Equal(t, uint64(216), LCM(54, 24))
}

func TestRescaleDurationTruncates(t *testing.T) {
	// 1 sample at 44100 rescaled to 48000 is 1.088..., and 1 sample at
	// 48000 rescaled to 44100 is 0.918...; truncation gives 1 and 0,
	// where rounding to nearest would give 1 and 1.
	require.Equal(t, uint64(1), RescaleDuration(1, 44100, 48000))
	require.Equal(t, uint64(0), RescaleDuration(1, 48000, 44100))
}

func TestChunkerEvenDivisionIsConstant(t *testing.T) {
	c := New(44100, 1024, 512)
	for i := 0; i < 5; i++ {
		require.Equal(t, uint64(1024), c.Next())
	}
}

func TestChunkerCycleReturnsToStart(t *testing.T) {
	// frame length 1000 does not evenly divide a 1-second (44100) segment,
	// so the chunker cycles; after `max` calls it must return to i==0.
	c := New(44100, 44100, 1000)
	require.NotZero(t, c.max)
	for n := uint64(0); n < c.max; n++ {
		c.Next()
	}
	require.Equal(t, uint64(0), c.i)
}

func TestChunkerZeroFrameLenIsConstant(t *testing.T) {
	c := New(44100, 2048, 0)
	require.Equal(t, uint64(2048), c.Next())
	require.Equal(t, uint64(2048), c.Next())
}
