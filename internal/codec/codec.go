// Package codec is the audio codec capability registry consulted by the
// encoder stage's capability query (spec §4.6: "queries the downstream
// for capability flags, picks a compatible output sample format") and by
// config parsing that accepts codec names/aliases from an INI file.
package codec

import (
	"strings"

	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// Audio identifies a compressed audio codec by its canonical name.
type Audio string

const (
	AAC    Audio = "aac"
	Opus   Audio = "opus"
	Vorbis Audio = "vorbis"
	FLAC   Audio = "flac"
	ALAC   Audio = "alac"
	MP3    Audio = "mp3"
	AC3    Audio = "ac3"
	EAC3   Audio = "eac3"
)

func (a Audio) String() string { return string(a) }

// info is one codec's static capability record: the ffmpeg encoder name
// the "generic" encoder stage shells out to, whether the fMP4 muxer
// requires an init segment (AudioSpecificConfig/dOps/etc.), and the
// sample formats it accepts, most-preferred first (spec §4.6: "exact
// match, then planar/interleaved sibling, then highest-precision
// fallback").
type info struct {
	aliases       []string
	encoder       string
	needsInit     bool
	nativeFormats []samplefmt.Format
}

var registry = map[Audio]info{
	AAC: {
		aliases:       []string{"aac", "mp4a", "libfdk_aac"},
		encoder:       "aac",
		needsInit:     true,
		nativeFormats: []samplefmt.Format{samplefmt.FloatP, samplefmt.Float, samplefmt.S16P, samplefmt.S16},
	},
	Opus: {
		aliases:       []string{"opus", "libopus"},
		encoder:       "libopus",
		needsInit:     true,
		nativeFormats: []samplefmt.Format{samplefmt.Float, samplefmt.FloatP, samplefmt.S16},
	},
	Vorbis: {
		aliases:       []string{"vorbis", "libvorbis"},
		encoder:       "libvorbis",
		needsInit:     true,
		nativeFormats: []samplefmt.Format{samplefmt.FloatP, samplefmt.Float},
	},
	FLAC: {
		aliases:       []string{"flac"},
		encoder:       "flac",
		needsInit:     false,
		nativeFormats: []samplefmt.Format{samplefmt.S32P, samplefmt.S16P, samplefmt.S32, samplefmt.S16},
	},
	ALAC: {
		aliases:       []string{"alac"},
		encoder:       "alac",
		needsInit:     true,
		nativeFormats: []samplefmt.Format{samplefmt.S32P, samplefmt.S16P},
	},
	MP3: {
		aliases:       []string{"mp3", "libmp3lame"},
		encoder:       "libmp3lame",
		needsInit:     false,
		nativeFormats: []samplefmt.Format{samplefmt.S16P, samplefmt.FloatP},
	},
	AC3: {
		aliases:       []string{"ac3", "ac-3"},
		encoder:       "ac3",
		needsInit:     false,
		nativeFormats: []samplefmt.Format{samplefmt.FloatP, samplefmt.Float},
	},
	EAC3: {
		aliases:       []string{"eac3", "ec-3"},
		encoder:       "eac3",
		needsInit:     false,
		nativeFormats: []samplefmt.Format{samplefmt.FloatP, samplefmt.Float},
	},
}

var aliasIndex = func() map[string]Audio {
	idx := make(map[string]Audio)
	for c, i := range registry {
		idx[string(c)] = c
		for _, a := range i.aliases {
			idx[strings.ToLower(a)] = c
		}
	}
	return idx
}()

// Parse resolves a codec name or known ffmpeg encoder alias to its
// canonical Audio value.
func Parse(s string) (Audio, bool) {
	c, ok := aliasIndex[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// Encoder returns the ffmpeg encoder name for a, or a itself if
// unrecognized (lets an operator pass a raw ffmpeg encoder name through
// `encoder-name` config directly).
func Encoder(a Audio) string {
	if i, ok := registry[a]; ok {
		return i.encoder
	}
	return string(a)
}

// NeedsInitSegment reports whether the codec requires codec-private data
// (ASC, dOps, alac magic cookie, ...) pushed to the muxer before any
// media packet.
func NeedsInitSegment(a Audio) bool {
	return registry[a].needsInit
}

// PreferredFormat picks the codec's most-preferred supported sample
// format: an exact match to want, else a same-layout planar/interleaved
// sibling, else the codec's highest-precision native format.
func PreferredFormat(a Audio, want samplefmt.Format) samplefmt.Format {
	i, ok := registry[a]
	if !ok || len(i.nativeFormats) == 0 {
		return want
	}
	for _, f := range i.nativeFormats {
		if f == want {
			return f
		}
	}
	for _, f := range i.nativeFormats {
		if f.IsPlanar() == want.IsPlanar() {
			return f
		}
	}
	return i.nativeFormats[0]
}
