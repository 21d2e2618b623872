package filter

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// Passthrough forwards every frame unchanged, used for sources that
// already match the destination's encoder (e.g. a BINARY passthrough
// decoder feeding a passthrough encoder).
type Passthrough struct {
	recv frame.Receiver
}

// NewPassthrough builds an unconfigured Passthrough filter.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (p *Passthrough) Configure(key, value string) error {
	return errs.New("filter", "passthrough", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (p *Passthrough) Open(src frame.Source, recv frame.Receiver) (frame.Source, error) {
	p.recv = recv
	return src, nil
}

func (p *Passthrough) Reset() error { return nil }

func (p *Passthrough) FrameSubmit(f *frame.Frame) error { return p.recv.FrameSubmit(f) }
func (p *Passthrough) FrameFlush() error                { return p.recv.FrameFlush() }
func (p *Passthrough) Close() error                     { return nil }
