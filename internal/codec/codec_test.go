package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

func TestParseCanonicalAndAliases(t *testing.T) {
	tests := []struct {
		input    string
		expected Audio
		ok       bool
	}{
		{"aac", AAC, true},
		{"AAC", AAC, true},
		{"mp4a", AAC, true},
		{"libfdk_aac", AAC, true},
		{"opus", Opus, true},
		{"libopus", Opus, true},
		{"ac-3", AC3, true},
		{"ec-3", EAC3, true},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		if tt.ok {
			assert.Equal(t, tt.expected, got, tt.input)
		}
	}
}

func TestEncoderFallsBackToInputForUnknownCodec(t *testing.T) {
	assert.Equal(t, "libopus", Encoder(Opus))
	assert.Equal(t, "mystery_encoder", Encoder(Audio("mystery_encoder")))
}

func TestNeedsInitSegment(t *testing.T) {
	assert.True(t, NeedsInitSegment(AAC))
	assert.True(t, NeedsInitSegment(Opus))
	assert.False(t, NeedsInitSegment(MP3))
}

func TestPreferredFormatExactMatch(t *testing.T) {
	got := PreferredFormat(AAC, samplefmt.FloatP)
	assert.Equal(t, samplefmt.FloatP, got)
}

func TestPreferredFormatSiblingLayout(t *testing.T) {
	// FLAC's native list has no S64/S64P; a planar want is answered with
	// a planar format (S32P, the first same-layout entry).
	got := PreferredFormat(FLAC, samplefmt.S64P)
	assert.True(t, got.IsPlanar())
}

func TestPreferredFormatUnknownCodecReturnsWant(t *testing.T) {
	assert.Equal(t, samplefmt.S16, PreferredFormat(Audio("bogus"), samplefmt.S16))
}
