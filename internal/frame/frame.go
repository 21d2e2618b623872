// Package frame defines the uncompressed (or passthrough-wrapped) audio
// unit that flows between decoder, filter, and encoder stages, and the
// descriptor stages publish at open() time to describe what they emit.
package frame

import (
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// Frame holds one block of audio: either decoded samples in Format, or
// (in passthrough mode) an embedded compressed Packet plus enough
// metadata for downstream stages that only care about timing. Planar
// formats own one []byte per channel; interleaved formats use only
// Planes[0].
type Frame struct {
	Format     samplefmt.Format
	Channels   int
	SampleRate int
	Duration   uint64 // samples
	PTS        uint64

	Planes []([]byte)

	// Packet is non-nil when this Frame wraps a still-compressed unit
	// passed straight through from demuxer to muxer.
	Packet *packet.Packet
}

// Reset clears a Frame for reuse without releasing its plane capacity.
func (f *Frame) Reset() {
	for i := range f.Planes {
		f.Planes[i] = f.Planes[i][:0]
	}
	f.Duration = 0
	f.Packet = nil
}

// Ready reports whether the Frame has Duration samples buffered in every
// plane needed for its Format.
func (f *Frame) Ready() bool {
	if f.Packet != nil {
		return true
	}
	width := f.Format.Size()
	if width == 0 {
		return false
	}
	planes := 1
	if f.Format.IsPlanar() {
		planes = f.Channels
	}
	if len(f.Planes) < planes {
		return false
	}
	perPlaneChannels := f.Channels
	if f.Format.IsPlanar() {
		perPlaneChannels = 1
	}
	need := int(f.Duration) * width * perPlaneChannels
	for i := 0; i < planes; i++ {
		if len(f.Planes[i]) < need {
			return false
		}
	}
	return true
}

// Channel returns the raw byte slice backing channel ch (0-indexed).
// For interleaved formats this is the whole Planes[0] buffer; callers
// must stride by Channels*Format.Size() themselves.
func (f *Frame) Channel(ch int) []byte {
	if f.Format.IsPlanar() {
		return f.Planes[ch]
	}
	return f.Planes[0]
}

// Convert rewrites dst in place so it holds src's audio converted to
// dst.Format/dst.Channels, allocating plane storage as needed.
func Convert(dst *Frame, src *Frame) error {
	dst.SampleRate = src.SampleRate
	dst.PTS = src.PTS
	dst.Duration = src.Duration

	srcPlanes := 1
	if src.Format.IsPlanar() {
		srcPlanes = src.Channels
	}
	dstPlanes := 1
	if dst.Format.IsPlanar() {
		dstPlanes = dst.Channels
	}
	if len(dst.Planes) < dstPlanes {
		grown := make([][]byte, dstPlanes)
		copy(grown, dst.Planes)
		dst.Planes = grown
	}

	dstWidth := dst.Format.Size()
	dstStride := dst.Channels
	if dst.Format.IsPlanar() {
		dstStride = 1
	}
	for p := 0; p < dstPlanes; p++ {
		need := int(src.Duration) * dstWidth * dstStride
		if cap(dst.Planes[p]) < need {
			dst.Planes[p] = make([]byte, need)
		} else {
			dst.Planes[p] = dst.Planes[p][:need]
		}
	}

	srcStride := src.Channels
	if src.Format.IsPlanar() {
		srcStride = 1
	}

	for ch := 0; ch < dst.Channels; ch++ {
		srcCh := ch
		srcPlane := 0
		if src.Format.IsPlanar() {
			srcPlane = ch
			if ch >= srcPlanes {
				srcPlane = srcPlanes - 1
			}
			srcCh = 0
		}
		dstCh := ch
		dstPlane := 0
		if dst.Format.IsPlanar() {
			dstPlane = ch
			dstCh = 0
		}
		if err := samplefmt.Convert(dst.Planes[dstPlane], src.Planes[srcPlane], src.Format, dst.Format,
			int(src.Duration), srcStride, srcCh, dstStride, dstCh); err != nil {
			return err
		}
	}
	return nil
}

// Source describes a stage's frame output, published at open() time.
type Source struct {
	Format        samplefmt.Format
	Channels      int
	ChannelLayout uint64
	Duration      uint64 // frame length in samples, 0 if variable
	SampleRate    int
	PacketSource  *packet.Source // non-nil if the source may hand through raw packets
}

// Receiver is implemented by a stage consuming frames from an upstream
// producer.
type Receiver interface {
	FrameSubmit(*Frame) error
	FrameFlush() error
}

// NullReceiver discards everything submitted to it, used as the
// zero-value receiver before a stage has been wired.
type NullReceiver struct{}

func (NullReceiver) FrameSubmit(*Frame) error { return nil }
func (NullReceiver) FrameFlush() error        { return nil }
