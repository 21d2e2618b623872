package decoder

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// Passthrough wraps each incoming compressed packet in a BINARY Frame
// instead of decoding it, for destinations whose encoder is itself
// "passthrough" (muxer-only remuxing, no transcode).
type Passthrough struct {
	recv frame.Receiver
	src  packet.Source
}

// NewPassthrough builds an unconfigured Passthrough decoder.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (p *Passthrough) Configure(key, value string) error {
	return errs.New("decoder", "passthrough", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (p *Passthrough) Open(src packet.Source, recv frame.Receiver) (frame.Source, error) {
	p.src = src
	p.recv = recv
	out := frame.Source{
		Format:       samplefmt.Binary,
		Channels:     src.Channels,
		SampleRate:   src.SampleRate,
		Duration:     src.FrameLen,
		PacketSource: &src,
	}
	return out, nil
}

func (p *Passthrough) Reset() error { return nil }

func (p *Passthrough) PacketSubmit(pkt *packet.Packet) error {
	f := &frame.Frame{
		Format:     samplefmt.Binary,
		Channels:   p.src.Channels,
		SampleRate: p.src.SampleRate,
		Duration:   pkt.Duration,
		PTS:        pkt.PTS,
		Packet:     pkt,
	}
	return p.recv.FrameSubmit(f)
}

func (p *Passthrough) PacketFlush() error { return p.recv.FrameFlush() }

func (p *Passthrough) Close() error { return nil }
