// Package destination implements the push chain (spec §4.12): one
// Destination owns a Filter, Encoder, Muxer, and Output, wires
// encoder.packet_receiver -> muxer, muxer -> output's HLS engine, and
// the output's picture side channel back to the muxer's image handling,
// then registers itself as the frame sink a source.Source pushes into.
package destination

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/config"
	"github.com/icecasthls/icecasthls/internal/encoder"
	"github.com/icecasthls/icecasthls/internal/filter"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/muxer"
	"github.com/icecasthls/icecasthls/internal/output"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// tagMapEntry is the subset of *tag.Entry's behavior HandleTags needs,
// kept as an interface so callers can pass either a real *tag.Entry or a
// pass-through stand-in when no tagmap id was configured.
type tagMapEntry interface {
	Apply(src *tag.List, policy tag.MergePolicy, unknownPolicy tag.UnknownPolicy) tag.List
}

// Destination is one configured push chain, bound to exactly one source
// by the `source=` config key (resolved by the caller, e.g.
// internal/wiring).
type Destination struct {
	ID       string
	SourceID string

	filter  filter.Stage
	encoder encoder.Stage
	mux     muxer.Stage
	out     output.Stage

	tagMapID      string
	imageMode     muxer.ImageMode
	unknownTags   tag.UnknownPolicy
	duplicateTags tag.MergePolicy

	engine *hls.Engine
}

// New builds a Destination's stage chain from one `[destination.<id>]`
// config section, substituting defaults (filter="buffer",
// encoder="exhale", muxer="fmp4") for any unconfigured selector, per
// spec §4.12. Output has no default: a destination with none configured
// is a config error, surfaced at Open.
func New(cfg config.Destination) (*Destination, error) {
	filterName := orDefault(cfg.Filter, "buffer")
	filtSt, ok := filter.Registry.New(filterName)
	if !ok {
		return nil, fmt.Errorf("destination.%s: unknown filter %q", cfg.ID, filterName)
	}
	if err := applyConfig(filtSt, cfg.FilterConfig); err != nil {
		return nil, fmt.Errorf("destination.%s: filter: %w", cfg.ID, err)
	}

	encoderName := orDefault(cfg.Encoder, "exhale")
	encSt, ok := encoder.Registry.New(encoderName)
	if !ok {
		return nil, fmt.Errorf("destination.%s: unknown encoder %q", cfg.ID, encoderName)
	}
	if err := applyConfig(encSt, cfg.EncoderConfig); err != nil {
		return nil, fmt.Errorf("destination.%s: encoder: %w", cfg.ID, err)
	}

	muxerName := orDefault(cfg.Muxer, "fmp4")
	muxSt, ok := muxer.Registry.New(muxerName)
	if !ok {
		return nil, fmt.Errorf("destination.%s: unknown muxer %q", cfg.ID, muxerName)
	}
	if err := applyConfig(muxSt, cfg.MuxerConfig); err != nil {
		return nil, fmt.Errorf("destination.%s: muxer: %w", cfg.ID, err)
	}

	var outSt output.Stage
	if cfg.Output != "" {
		outSt, ok = output.Registry.New(cfg.Output)
		if !ok {
			return nil, fmt.Errorf("destination.%s: unknown output %q", cfg.ID, cfg.Output)
		}
		if err := applyConfig(outSt, cfg.OutputConfig); err != nil {
			return nil, fmt.Errorf("destination.%s: output: %w", cfg.ID, err)
		}
	}

	d := &Destination{
		ID:            cfg.ID,
		SourceID:      cfg.Source,
		filter:        filtSt,
		encoder:       encSt,
		mux:           muxSt,
		out:           outSt,
		tagMapID:      cfg.TagMap,
		imageMode:     parseImageMode(cfg.Images),
		unknownTags:   parseUnknownPolicy(cfg.UnknownTags),
		duplicateTags: parseMergePolicy(cfg.DuplicateTags),
	}
	return d, nil
}

func parseImageMode(s string) muxer.ImageMode {
	switch s {
	case "inband":
		return muxer.ImageInband
	case "out-of-band":
		return muxer.ImageOutOfBand
	default:
		return muxer.ImageKeep
	}
}

func parseUnknownPolicy(s string) tag.UnknownPolicy {
	if s == "txxx" {
		return tag.UnknownTXXX
	}
	return tag.UnknownIgnore
}

func parseMergePolicy(s string) tag.MergePolicy {
	switch s {
	case "null":
		return tag.MergeNullJoin
	case "semicolon":
		return tag.MergeSemicolonJoin
	default:
		return tag.MergeIgnore
	}
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

// Open wires filter -> encoder -> muxer -> output against srcFrame (the
// source's published frame.Source), per spec §4.12: if no output plugin
// was configured, Open fails; otherwise every upstream->downstream
// callback is wired, including the muxer's segment sink pointing at the
// output's HLS engine. It returns the frame.Receiver the owning
// source.Source (or its fanout) should push filtered source frames into.
func (d *Destination) Open(srcFrame frame.Source) (frame.Receiver, error) {
	if d.out == nil {
		return nil, fmt.Errorf("destination.%s: no output configured", d.ID)
	}

	encSink := &encoderSink{d}
	filterOut, err := d.filter.Open(srcFrame, encSink)
	if err != nil {
		return nil, fmt.Errorf("destination.%s: filter open: %w", d.ID, err)
	}

	muxSink := &muxerSink{d}
	caps := encoder.Capability(d.mux.Capabilities())
	packetOut, err := d.encoder.Open(filterOut, caps, muxSink)
	if err != nil {
		return nil, fmt.Errorf("destination.%s: encoder open: %w", d.ID, err)
	}

	var engine *hls.Engine
	sink := func(seg hls.Segment) error {
		if engine == nil {
			return fmt.Errorf("destination.%s: segment emitted before output opened", d.ID)
		}
		return engine.AddSegment(seg)
	}
	hlsSrc, err := d.mux.Open(packetOut, d.getSegmentInfo, sink)
	if err != nil {
		return nil, fmt.Errorf("destination.%s: muxer open: %w", d.ID, err)
	}

	engine, err = d.out.Open(hlsSrc)
	if err != nil {
		return nil, fmt.Errorf("destination.%s: output open: %w", d.ID, err)
	}
	d.engine = engine

	return &filterIn{d}, nil
}

// getSegmentInfo implements the muxer's segment-sizing negotiation
// (spec §4.7/§4.9): a fixed 2-second default matching hls.Engine's own
// default target-duration, so a muxer's chunker and the output's
// playlist buffer stay sized consistently without extra configuration.
func (d *Destination) getSegmentInfo(timeBase uint, frameLen uint64) muxer.SegmentInfo {
	const defaultSegmentSeconds = 2
	if frameLen == 0 {
		return muxer.SegmentInfo{}
	}
	packetsPerSegment := (uint64(defaultSegmentSeconds)*uint64(timeBase))/frameLen + 1
	return muxer.SegmentInfo{
		PacketsPerSegment: packetsPerSegment,
		SegmentSamples:    packetsPerSegment * frameLen,
	}
}

// filterIn is the frame.Receiver handed back to the source: every
// filtered source frame is pushed straight into this destination's own
// filter stage.
type filterIn struct{ d *Destination }

func (f *filterIn) FrameSubmit(fr *frame.Frame) error { return f.d.filter.FrameSubmit(fr) }
func (f *filterIn) FrameFlush() error                 { return f.d.filter.FrameFlush() }

type encoderSink struct{ d *Destination }

func (e *encoderSink) FrameSubmit(fr *frame.Frame) error { return e.d.encoder.FrameSubmit(fr) }
func (e *encoderSink) FrameFlush() error                 { return e.d.encoder.FrameFlush() }

type muxerSink struct{ d *Destination }

func (m *muxerSink) PacketSubmit(p *packet.Packet) error { return m.d.mux.PacketSubmit(p) }
func (m *muxerSink) PacketFlush() error                  { return m.d.mux.PacketFlush() }

// SubmitPicture hands a cover-art payload to the output's out-of-band
// picture channel, per the muxer's image-mode handling (spec §4.8 item
// 6). Callers (the tag pipeline, when imageMode is ImageOutOfBand) use
// this instead of embedding the image in the container.
func (d *Destination) SubmitPicture(p hls.Picture) (*hls.Picture, error) {
	if d.engine == nil {
		return nil, fmt.Errorf("destination.%s: output not open", d.ID)
	}
	return d.engine.SubmitPicture(p)
}

// ImageMode reports the configured cover-art handling policy.
func (d *Destination) ImageMode() muxer.ImageMode { return d.imageMode }

// TagMapID reports the configured tagmap id, or "" if tags pass through
// unmapped.
func (d *Destination) TagMapID() string { return d.tagMapID }

// UnknownTagPolicy and DuplicateTagPolicy expose the configured tag
// merge/unknown-handling policies for the tag pipeline to apply.
func (d *Destination) UnknownTagPolicy() tag.UnknownPolicy { return d.unknownTags }
func (d *Destination) DuplicateTagPolicy() tag.MergePolicy { return d.duplicateTags }

// HandleTags applies entry's rewrite rules (or passes src through
// unmapped if entry is nil, i.e. tagmap="disable") using this
// destination's configured merge/unknown policies, and, for an Icecast
// output, pushes the mapped TIT2/TPE1/TALB values through to
// /admin/metadata via the same path icecast_write_tags uses on a tag
// update.
func (d *Destination) HandleTags(entry tagMapEntry, src *tag.List) tag.List {
	var mapped tag.List
	if entry != nil {
		mapped = entry.Apply(src, d.duplicateTags, d.unknownTags)
	} else {
		mapped = *src
	}

	if ic, ok := d.out.(*output.Icecast); ok {
		var title, artist, album string
		if vs := mapped.Find("TIT2"); len(vs) > 0 {
			title = vs[0].Value
		}
		if vs := mapped.Find("TPE1"); len(vs) > 0 {
			artist = vs[0].Value
		}
		if vs := mapped.Find("TALB"); len(vs) > 0 {
			album = vs[0].Value
		}
		if title != "" || artist != "" || album != "" {
			_ = ic.UpdateMetadata(title, artist, album)
		}
	}
	return mapped
}

// Flush drains every stage's buffered state at end of stream.
func (d *Destination) Flush() error {
	if err := d.filter.FrameFlush(); err != nil {
		return err
	}
	if d.engine != nil {
		return d.engine.Flush()
	}
	return nil
}

// Close releases every stage's resources, innermost first.
func (d *Destination) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(d.filter.Close())
	record(d.encoder.Close())
	record(d.mux.Close())
	if d.out != nil {
		record(d.out.Close())
	}
	return first
}
