package muxer

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/chunker"
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// ADTS muxes raw AAC into a self-framing elementary stream: every packet
// already carries its own ADTS sync header (the "adts" ffmpeg muxer
// format the generic AAC encoder selects via packetFormatFor), so a
// segment is simply the concatenation of however many packets fall
// within the negotiated sample target. No init segment exists.
type ADTS struct {
	src  packet.Source
	sink func(hls.Segment) error

	chunk      chunker.Chunker
	buf        []byte
	segSamples uint64
	segTarget  uint64
}

// NewADTS builds an unconfigured ADTS muxer.
func NewADTS() *ADTS { return &ADTS{} }

func (m *ADTS) Configure(key, value string) error {
	return errs.New("muxer", "adts", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (m *ADTS) Capabilities() uint8 { return 0 }

func (m *ADTS) Open(src packet.Source, getSegmentInfo func(uint, uint64) SegmentInfo, sink func(hls.Segment) error) (hls.Source, error) {
	if src.Codec != packet.CodecAAC {
		return hls.Source{}, errs.New("muxer", "adts", errs.KindFormat, fmt.Errorf("adts muxer only supports AAC, got %s", src.Codec))
	}
	m.src = src
	m.sink = sink

	out := hls.Source{
		TimeBase:  uint(src.SampleRate),
		FrameLen:  src.FrameLen,
		MediaMime: "audio/aac",
		MediaExt:  ".aac",
		SetParams: func(p hls.SourceParams) error {
			info := getSegmentInfo(uint(src.SampleRate), src.FrameLen)
			m.chunk = chunker.New(uint64(src.SampleRate), info.SegmentSamples, src.FrameLen)
			m.segTarget = m.chunk.Next()
			return nil
		},
	}
	return out, nil
}

func (m *ADTS) PacketSubmit(pkt *packet.Packet) error {
	m.buf = append(m.buf, pkt.Data...)
	m.segSamples += pkt.Duration

	if m.segTarget > 0 && m.segSamples >= m.segTarget {
		return m.flush()
	}
	return nil
}

func (m *ADTS) flush() error {
	if len(m.buf) == 0 {
		return nil
	}
	data := m.buf
	samples := m.segSamples
	m.buf = nil
	m.segSamples = 0
	if m.segTarget > 0 {
		m.segTarget = m.chunk.Next()
	}
	return m.sink(hls.Segment{Type: hls.SegmentMedia, Data: data, Samples: samples})
}

func (m *ADTS) PacketFlush() error { return m.flush() }
func (m *ADTS) Close() error       { return nil }
