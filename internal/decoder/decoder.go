// Package decoder turns codec packets into audio frames (spec §4.4): a
// passthrough decoder that wraps each packet in a BINARY Frame for a
// downstream that only needs timing (e.g. muxer re-remuxing without
// touching samples), and a generic decoder that shells out to an
// external ffmpeg process for real sample decoding.
package decoder

import (
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
)

// Stage is the capability every decoder implements: it receives packets
// from the demuxer (packet.Receiver) and, once Open has negotiated the
// frame format with the downstream filter, pushes decoded frames to it.
type Stage interface {
	stage.Lifecycle
	packet.Receiver
	// Open declares src's codec parameters and wires recv as the
	// destination for decoded frames; it must synchronously call
	// recv's open path (via the frame.Source it publishes) before
	// returning.
	Open(src packet.Source, recv frame.Receiver) (frame.Source, error)
	// Reset re-arms decoder state (e.g. discontinuity after a muxer
	// format break) without requiring a new Open.
	Reset() error
}

// Registry is the name -> factory table decoders register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("auto", func() Stage { return NewGeneric("") })
	Registry.Register("passthrough", func() Stage { return NewPassthrough() })
	Registry.Register("generic", func() Stage { return NewGeneric("") })
}
