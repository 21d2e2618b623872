package encoder

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// Passthrough unwraps each BINARY Frame's embedded Packet and forwards
// it unchanged; it requires the upstream decoder to also be passthrough
// (format=BINARY), per spec §4.6.
type Passthrough struct {
	recv packet.Receiver
}

// NewPassthrough builds an unconfigured Passthrough encoder.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (p *Passthrough) Configure(key, value string) error {
	return errs.New("encoder", "passthrough", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (p *Passthrough) Open(src frame.Source, caps Capability, recv packet.Receiver) (packet.Source, error) {
	if src.Format != samplefmt.Binary {
		return packet.Source{}, errs.New("encoder", "passthrough", errs.KindFormat, fmt.Errorf("passthrough encoder requires BINARY input"))
	}
	p.recv = recv
	var out packet.Source
	if src.PacketSource != nil {
		out = *src.PacketSource
	}
	return out, nil
}

func (p *Passthrough) FrameSubmit(f *frame.Frame) error {
	if f.Packet == nil {
		return errs.New("encoder", "passthrough", errs.KindFormat, fmt.Errorf("frame carries no packet"))
	}
	return p.recv.PacketSubmit(f.Packet)
}

func (p *Passthrough) FrameFlush() error { return p.recv.PacketFlush() }
func (p *Passthrough) Close() error      { return nil }
