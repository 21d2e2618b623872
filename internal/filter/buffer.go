package filter

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// Buffer accumulates decoded frames into fixed-length output frames
// (the configured frame-length, else the upstream source's frame
// length), carrying leftover samples across
// submissions so the encoder always sees full frames except for a final
// short tail on Flush.
type Buffer struct {
	frameLen uint64

	recv frame.Receiver
	src  frame.Source
	out  frame.Source

	acc *frame.Frame
}

// NewBuffer builds a Buffer filter targeting frameLen samples per output
// frame; 0 means "keep the upstream source's frame length (src.Duration)
// at Open", and if that is also 0, frames are forwarded unchanged.
func NewBuffer(frameLen uint64) *Buffer { return &Buffer{frameLen: frameLen} }

func (b *Buffer) Configure(key, value string) error {
	switch key {
	case "frame-length":
		var n uint64
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return errs.New("filter", "buffer", errs.KindConfig, err)
		}
		b.frameLen = n
	default:
		return errs.New("filter", "buffer", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (b *Buffer) Open(src frame.Source, recv frame.Receiver) (frame.Source, error) {
	b.src = src
	b.recv = recv
	b.out = src
	if b.frameLen > 0 {
		b.out.Duration = b.frameLen
	}
	b.resetAcc()
	return b.out, nil
}

func (b *Buffer) resetAcc() {
	b.acc = &frame.Frame{Format: b.out.Format, Channels: b.out.Channels, SampleRate: b.out.SampleRate}
}

func (b *Buffer) Reset() error {
	b.resetAcc()
	return nil
}

// FrameSubmit appends f's samples to the accumulator, emitting complete
// frameLen-sized frames downstream as soon as enough samples have
// accumulated.
func (b *Buffer) FrameSubmit(f *frame.Frame) error {
	if b.out.Duration == 0 {
		// No fixed target length negotiated: forward frames as-is.
		return b.recv.FrameSubmit(f)
	}

	if err := appendFrame(b.acc, f); err != nil {
		return err
	}
	for b.acc.Duration >= b.out.Duration {
		chunk, rest := splitFrame(b.acc, b.out.Duration)
		if err := b.recv.FrameSubmit(chunk); err != nil {
			return err
		}
		b.acc = rest
	}
	return nil
}

func (b *Buffer) FrameFlush() error {
	if b.acc.Duration > 0 {
		if err := b.recv.FrameSubmit(b.acc); err != nil {
			return err
		}
		b.resetAcc()
	}
	return b.recv.FrameFlush()
}

func (b *Buffer) Close() error { return nil }

// appendFrame concatenates src's samples onto the end of dst, per plane.
func appendFrame(dst, src *frame.Frame) error {
	planes := len(src.Planes)
	if len(dst.Planes) < planes {
		grown := make([][]byte, planes)
		copy(grown, dst.Planes)
		dst.Planes = grown
	}
	for i := 0; i < planes; i++ {
		dst.Planes[i] = append(dst.Planes[i], src.Planes[i]...)
	}
	dst.Duration += src.Duration
	return nil
}

// splitFrame cuts the first n samples off f into a new Frame, returning
// (chunk, remainder).
func splitFrame(f *frame.Frame, n uint64) (*frame.Frame, *frame.Frame) {
	width := f.Format.Size()
	stride := f.Channels
	if f.Format.IsPlanar() {
		stride = 1
	}
	cut := int(n) * width * stride

	chunk := &frame.Frame{Format: f.Format, Channels: f.Channels, SampleRate: f.SampleRate, Duration: n, PTS: f.PTS}
	rest := &frame.Frame{Format: f.Format, Channels: f.Channels, SampleRate: f.SampleRate, Duration: f.Duration - n, PTS: f.PTS + n}

	chunk.Planes = make([][]byte, len(f.Planes))
	rest.Planes = make([][]byte, len(f.Planes))
	for i, p := range f.Planes {
		c := cut
		if c > len(p) {
			c = len(p)
		}
		chunk.Planes[i] = append([]byte(nil), p[:c]...)
		rest.Planes[i] = append([]byte(nil), p[c:]...)
	}
	return chunk, rest
}
