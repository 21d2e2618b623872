// Package muxer packages encoded packets into the container segments the
// HLS engine writes to disk/network (spec §4.7): fMP4 (ISOBMFF init +
// fragment, built on bluenviron/mediacommon's box writers) and ADTS (a
// self-framing AAC elementary stream needing no init segment).
package muxer

import (
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
)

// ImageMode controls how a destination handles an embedded cover-art tag.
type ImageMode int

const (
	// ImageKeep leaves picture tags embedded in the container's own tag
	// support (e.g. an ID3 APIC frame), if any.
	ImageKeep ImageMode = iota
	// ImageInband re-encodes the picture as an in-band tag the container
	// format natively supports.
	ImageInband
	// ImageOutOfBand hands the picture to the output driver's
	// SubmitPicture side channel and emits only a URI reference.
	ImageOutOfBand
)

// SegmentInfo is what get_segment_info negotiates: how many packets (and
// how many samples) belong in one HLS segment.
type SegmentInfo struct {
	PacketsPerSegment uint64
	SegmentSamples    uint64
}

// Stage is the capability every muxer implements: it receives packets
// from the encoder (packet.Receiver) and emits hls.Segment values to the
// output driver.
type Stage interface {
	stage.Lifecycle
	packet.Receiver
	// Open declares src's codec parameters, the negotiated segment
	// target (seconds) via getSegmentInfo, and wires sink as the
	// segment destination. It returns the hls.Source descriptor the
	// output's HLS engine opens against.
	Open(src packet.Source, getSegmentInfo func(timeBase uint, frameLen uint64) SegmentInfo, sink func(hls.Segment) error) (hls.Source, error)
	// Capabilities reports what this muxer needs from the encoder (e.g.
	// CapGlobalHeaders so codec-private data arrives once, out of band).
	Capabilities() uint8
}

// Registry is the name -> factory table muxers register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("fmp4", func() Stage { return NewFMP4() })
	Registry.Register("adts", func() Stage { return NewADTS() })
}
