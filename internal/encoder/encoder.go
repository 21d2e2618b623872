// Package encoder turns audio frames into codec packets (spec §4.6): a
// passthrough encoder that unwraps a BINARY Frame's embedded Packet
// straight through, and a generic encoder that shells out to ffmpeg,
// querying the muxer's declared capabilities before choosing a
// compatible sample format via internal/codec's preference table.
package encoder

import (
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
)

// Capability flags a muxer reports to the encoder at Open time.
type Capability uint8

const (
	// CapGlobalHeaders means the muxer wants codec-private data pushed
	// once, out of band, rather than repeated in every packet.
	CapGlobalHeaders Capability = 1 << iota
)

// Stage is the capability every encoder implements: it receives frames
// from the filter (frame.Receiver) and, once Open has negotiated the
// packet format with the muxer, pushes encoded packets onward.
type Stage interface {
	stage.Lifecycle
	frame.Receiver
	// Open declares src's format and the muxer's capability flags,
	// wires recv as the packet destination, and returns the
	// packet.Source this encoder will publish (codec, frame length,
	// codec-private data for CapGlobalHeaders muxers).
	Open(src frame.Source, caps Capability, recv packet.Receiver) (packet.Source, error)
}

// Registry is the name -> factory table encoders register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("passthrough", func() Stage { return NewPassthrough() })
	Registry.Register("generic", func() Stage { return NewGeneric("") })
	for _, name := range []string{"aac", "opus", "vorbis", "flac", "alac", "mp3", "ac3", "eac3", "exhale"} {
		codecName := name
		if codecName == "exhale" {
			codecName = "aac" // exhale is an AAC encoder name kept for config compatibility
		}
		Registry.Register(name, func() Stage { return NewGeneric(codecName) })
	}
}
