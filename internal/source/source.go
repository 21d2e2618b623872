// Package source implements the pull chain (spec §4.11): one Source
// owns an Input, Demuxer, Decoder, and Filter, wires
// demuxer.packet_receiver -> decoder, decoder.frame_receiver -> filter,
// and publishes merged tags and filtered frames to whatever the
// destination fanout (internal/sourcelist) has registered.
package source

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/config"
	"github.com/icecasthls/icecasthls/internal/decoder"
	"github.com/icecasthls/icecasthls/internal/demuxer"
	"github.com/icecasthls/icecasthls/internal/filter"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/input"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Source is one configured pull chain.
type Source struct {
	ID string

	input   input.Stage
	demuxer demuxer.Stage
	decoder decoder.Stage
	filter  filter.Stage

	tagHandler    func(*tag.List)
	frameReceiver frame.Receiver
	formatHandler func(frame.Source) error

	decoderOpened bool
	frameSource   frame.Source
}

// New builds a Source's stage chain from one `[source.<id>]` config
// section, substituting defaults (demuxer="auto", decoder="auto",
// filter="passthrough") for any unconfigured selector, per spec §4.11.
func New(cfg config.Source) (*Source, error) {
	inSt, ok := input.Registry.New(cfg.Input)
	if !ok {
		return nil, fmt.Errorf("source.%s: unknown input %q", cfg.ID, cfg.Input)
	}
	if err := applyConfig(inSt, cfg.InputConfig); err != nil {
		return nil, fmt.Errorf("source.%s: input: %w", cfg.ID, err)
	}

	demuxerName := orDefault(cfg.Demuxer, "auto")
	demSt, ok := demuxer.Registry.New(demuxerName)
	if !ok {
		return nil, fmt.Errorf("source.%s: unknown demuxer %q", cfg.ID, demuxerName)
	}
	if err := applyConfig(demSt, cfg.DemuxerConfig); err != nil {
		return nil, fmt.Errorf("source.%s: demuxer: %w", cfg.ID, err)
	}

	decoderName := orDefault(cfg.Decoder, "auto")
	decSt, ok := decoder.Registry.New(decoderName)
	if !ok {
		return nil, fmt.Errorf("source.%s: unknown decoder %q", cfg.ID, decoderName)
	}
	if err := applyConfig(decSt, cfg.DecoderConfig); err != nil {
		return nil, fmt.Errorf("source.%s: decoder: %w", cfg.ID, err)
	}

	filterName := orDefault(cfg.Filter, "passthrough")
	filtSt, ok := filter.Registry.New(filterName)
	if !ok {
		return nil, fmt.Errorf("source.%s: unknown filter %q", cfg.ID, filterName)
	}
	if err := applyConfig(filtSt, cfg.FilterConfig); err != nil {
		return nil, fmt.Errorf("source.%s: filter: %w", cfg.ID, err)
	}

	return &Source{
		ID:            cfg.ID,
		input:         inSt,
		demuxer:       demSt,
		decoder:       decSt,
		filter:        filtSt,
		frameReceiver: frame.NullReceiver{},
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type configurable interface {
	Configure(key, value string) error
}

func applyConfig(c configurable, sc config.StageConfig) error {
	for _, k := range sc.Keys {
		if err := c.Configure(k, sc.Values[k]); err != nil {
			return err
		}
	}
	return nil
}

// SetTagHandler registers the callback invoked whenever the input or
// demuxer surfaces a fresh tag list (e.g. ICY metadata, a FLAC VORBIS
// comment block).
func (s *Source) SetTagHandler(fn func(*tag.List)) { s.tagHandler = fn }

// SetFrameReceiver registers where filtered frames are pushed. A real
// deployment wires this to the destination fanout
// (internal/sourcelist's per-source multicast over rendezvous.Sync);
// tests may wire a recording fake directly.
func (s *Source) SetFrameReceiver(r frame.Receiver) { s.frameReceiver = r }

// SetFormatHandler registers a callback invoked exactly once, the moment
// the decoder/filter chain opens and s.frameSource becomes valid, before
// the triggering packet is forwarded to the decoder. A real deployment
// uses this to open every bound destination against the now-known frame
// format (internal/wiring) before any frame can reach FrameSubmit; an
// error here aborts the triggering PacketSubmit.
func (s *Source) SetFormatHandler(fn func(frame.Source) error) { s.formatHandler = fn }

// Open opens the input and demuxer. The decoder and filter open lazily,
// on the first packet the demuxer emits, once enough of the stream is
// known to describe a packet.Source.
func (s *Source) Open() error {
	s.input.TagHandler(s.emitTags)
	if err := s.input.Open(); err != nil {
		return err
	}
	pa := &packetAdapter{s: s}
	return s.demuxer.Open(s.input, pa, s.emitTags)
}

func (s *Source) emitTags(t *tag.List) {
	if s.tagHandler != nil {
		s.tagHandler(t)
	}
}

// packetAdapter is the packet.Receiver the demuxer submits into; it
// lazily opens the decoder (and, through it, the filter) on the first
// packet, then forwards every packet straight through.
type packetAdapter struct{ s *Source }

func (a *packetAdapter) PacketSubmit(pkt *packet.Packet) error {
	if !a.s.decoderOpened {
		if err := a.s.openDecoder(pkt); err != nil {
			return err
		}
	}
	return a.s.decoder.PacketSubmit(pkt)
}

func (a *packetAdapter) PacketFlush() error {
	if !a.s.decoderOpened {
		return nil
	}
	return a.s.decoder.PacketFlush()
}

// rateReporter is implemented by demuxers (e.g. FLAC) that recover the
// stream's sample rate and channel count from its own header instead of
// leaving them for the decoder to infer.
type rateReporter interface {
	SampleRate() int
	Channels() int
}

func (s *Source) openDecoder(pkt *packet.Packet) error {
	packetSrc := packet.Source{Codec: s.demuxer.Codec(), CodecData: pkt.CodecData}
	if rr, ok := s.demuxer.(rateReporter); ok {
		packetSrc.SampleRate = rr.SampleRate()
		packetSrc.Channels = rr.Channels()
	}
	frameSrc, err := s.decoder.Open(packetSrc, &decoderSink{s})
	if err != nil {
		return err
	}
	filterOut, err := s.filter.Open(frameSrc, &filterSink{s})
	if err != nil {
		return err
	}
	s.frameSource = filterOut
	s.decoderOpened = true
	if s.formatHandler != nil {
		if err := s.formatHandler(s.frameSource); err != nil {
			return err
		}
	}
	return nil
}

// decoderSink forwards decoded frames straight into the filter.
type decoderSink struct{ s *Source }

func (d *decoderSink) FrameSubmit(f *frame.Frame) error { return d.s.filter.FrameSubmit(f) }
func (d *decoderSink) FrameFlush() error                { return d.s.filter.FrameFlush() }

// filterSink forwards filtered frames to whatever frame.Receiver the
// owning pipeline (sourcelist's destination fanout) registered.
type filterSink struct{ s *Source }

func (f *filterSink) FrameSubmit(fr *frame.Frame) error { return f.s.frameReceiver.FrameSubmit(fr) }
func (f *filterSink) FrameFlush() error                 { return f.s.frameReceiver.FrameFlush() }

// FrameSource returns the frame format published once the decoder/filter
// chain has opened (valid only after the first packet has been seen).
func (s *Source) FrameSource() frame.Source { return s.frameSource }

// Run drives the demuxer to end of stream, handling the 0/1/2/negative
// return convention of spec §4.11: 0 keeps looping, 1 is clean EOF, 2 is
// a stream-internal format change (flush+reset the decoder and keep
// going), and any negative value is fatal.
func (s *Source) Run() error {
	for {
		rc := s.demuxer.Run()
		switch rc {
		case demuxer.RunContinue:
			continue
		case demuxer.RunEOF:
			if s.decoderOpened {
				if err := s.decoder.PacketFlush(); err != nil {
					return err
				}
			}
			return nil
		case demuxer.RunFormatBreak:
			if s.decoderOpened {
				if err := s.decoder.PacketFlush(); err != nil {
					return err
				}
				if err := s.decoder.Reset(); err != nil {
					return err
				}
			}
			continue
		default:
			return fmt.Errorf("source.%s: demuxer run failed", s.ID)
		}
	}
}

// Close releases every stage's resources, innermost first.
func (s *Source) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(s.filter.Close())
	record(s.decoder.Close())
	record(s.demuxer.Close())
	record(s.input.Close())
	return first
}
