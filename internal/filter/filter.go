// Package filter implements the pure sample-format/rate/channel
// transform stage between decoder and encoder (spec §4.5): a
// buffer-only filter that just accumulates decoded frames up to a
// configured frame length, and a full filter that additionally resamples
// and remixes via an external ffmpeg -af filter graph.
package filter

import (
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
)

// Stage is the capability every filter implements: it receives frames
// from the decoder (frame.Receiver) and, once Open has negotiated the
// destination format with the encoder, pushes (possibly buffered or
// converted) frames onward.
type Stage interface {
	stage.Lifecycle
	frame.Receiver
	// Open declares src's format and wires recv as the frame
	// destination, returning the format this filter will actually
	// publish downstream (which may equal src's, for pure passthrough).
	Open(src frame.Source, recv frame.Receiver) (frame.Source, error)
	// Reset re-arms buffered state after a decoder format change without
	// requiring a new Open, provided the channel layout and sample rate
	// are unchanged (pure sample-format changes never require a reopen).
	Reset() error
}

// Registry is the name -> factory table filters register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("passthrough", func() Stage { return NewPassthrough() })
	Registry.Register("buffer", func() Stage { return NewBuffer(0) })
	Registry.Register("full", func() Stage { return NewFull("") })
}
