// Package demuxer splits a raw byte stream (from an input driver) into a
// sequence of codec packets (spec §4.3): Ogg (page/packet reconstruction
// with lacing), a native-FLAC frame scanner, and a generic fallback that
// hands whole read-buffers through as opaque packets for a downstream
// decoder that can sniff its own framing (e.g. an external process
// piping raw bytes to ffmpeg's own demuxer).
package demuxer

import (
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Reader is the minimal upstream an open demuxer pulls bytes from (an
// input.Stage, but demuxer does not import input to avoid a cycle).
type Reader interface {
	Read(dest []byte) (int, error)
}

// Stage is the capability every demuxer implements.
type Stage interface {
	stage.Lifecycle
	// Open begins reading from r and, once enough of the stream has been
	// parsed to know the packet format, synchronously calls
	// recv's implicit Open via PacketSource (the first call to Run
	// delivers it) — concretely here Open just wires the reader; Run
	// performs the actual sniff/parse and calls recv.PacketSubmit.
	Open(r Reader, recv packet.Receiver, tags func(*tag.List)) error
	// Run processes as much of the stream as one call should: 0 to keep
	// going, 1 on clean EOF, 2 on a stream-internal format change
	// (the source must flush+reset the decoder and call Run again),
	// and a negative value on a fatal, unrecoverable error.
	Run() int
	// Codec reports the best codec guess for the stream this demuxer is
	// parsing, resolved once Open has run (sooner for formats the name
	// alone determines, e.g. flac; zero-value CodecUnknown beforehand).
	// The source pull chain uses it to build the packet.Source a
	// decoder="auto" stage opens against; for Ogg it is necessarily a
	// guess, since the real codec lives in the logical stream's
	// identification packet and both Vorbis and Opus resolve to the same
	// downstream ffmpeg demuxer name either way.
	Codec() packet.Codec
}

// Registry is the name -> factory table demuxers register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("auto", func() Stage { return NewAuto() })
	Registry.Register("ogg", func() Stage { return NewOgg() })
	Registry.Register("flac", func() Stage { return NewFLAC() })
	Registry.Register("generic", func() Stage { return NewGeneric() })
}

const (
	RunContinue    = 0
	RunEOF         = 1
	RunFormatBreak = 2
)

func RunError(err error) int {
	if err == nil {
		return RunContinue
	}
	return -1
}
