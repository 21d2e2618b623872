package muxer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/icecasthls/icecasthls/internal/chunker"
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

const trackID = 1

// FMP4 muxes a single audio track into fragmented MP4: one moov-only
// init segment followed by repeated moof+mdat media fragments, each
// sized to the negotiated segment sample count via internal/chunker.
// Audio-only, driven by packet/hls types rather than a dual-track
// video+audio model.
type FMP4 struct {
	src    packet.Source
	sink   func(hls.Segment) error
	getInfo func(timeBase uint, frameLen uint64) SegmentInfo

	imageMode ImageMode

	timeScale      uint32
	sequenceNumber uint32
	baseTime       uint64

	chunk      chunker.Chunker
	initWritten bool
	segment    []*fmp4.Sample
	segSamples uint64
	segTarget  uint64
}

// NewFMP4 builds an unconfigured FMP4 muxer.
func NewFMP4() *FMP4 { return &FMP4{sequenceNumber: 1} }

func (m *FMP4) Configure(key, value string) error {
	switch key {
	case "segment-type":
		return nil // "fmp4" is the only supported value; accepted for config-file symmetry with other muxers
	case "image-mode", "images":
		switch value {
		case "keep":
			m.imageMode = ImageKeep
		case "inband":
			m.imageMode = ImageInband
		case "out-of-band":
			m.imageMode = ImageOutOfBand
		default:
			return errs.New("muxer", "fmp4", errs.KindConfig, fmt.Errorf("unknown image-mode %q", value))
		}
	default:
		return errs.New("muxer", "fmp4", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (m *FMP4) Capabilities() uint8 { return 1 /* CapGlobalHeaders */ }

func (m *FMP4) Open(src packet.Source, getSegmentInfo func(uint, uint64) SegmentInfo, sink func(hls.Segment) error) (hls.Source, error) {
	m.src = src
	m.sink = sink
	m.getInfo = getSegmentInfo
	m.timeScale = uint32(src.SampleRate)

	out := hls.Source{
		TimeBase:  uint(src.SampleRate),
		FrameLen:  src.FrameLen,
		MediaMime: "video/mp4",
		MediaExt:  ".m4s",
		InitMime:  "video/mp4",
		InitExt:   ".mp4",
		SetParams: func(p hls.SourceParams) error {
			info := getSegmentInfo(uint(src.SampleRate), src.FrameLen)
			m.chunk = chunker.New(uint64(src.SampleRate), info.SegmentSamples, src.FrameLen)
			m.segTarget = m.chunk.Next()
			return nil
		},
	}
	return out, nil
}

func (m *FMP4) writeInit() error {
	codec, err := m.codecFor()
	if err != nil {
		return err
	}
	init := &fmp4.Init{Tracks: []*fmp4.InitTrack{{ID: trackID, TimeScale: m.timeScale, Codec: codec}}}

	var buf bytes.Buffer
	w := &seekableBuffer{Buffer: &buf}
	if err := init.Marshal(w); err != nil {
		return errs.New("muxer", "fmp4", errs.KindFormat, err)
	}
	return m.sink(hls.Segment{Type: hls.SegmentInit, Data: buf.Bytes()})
}

func (m *FMP4) codecFor() (mp4.Codec, error) {
	switch m.src.Codec {
	case packet.CodecAAC:
		var asc mpeg4audio.AudioSpecificConfig
		if len(m.src.CodecData) > 0 {
			if err := asc.Unmarshal(m.src.CodecData); err != nil {
				return nil, errs.New("muxer", "fmp4", errs.KindFormat, err)
			}
		} else {
			asc = mpeg4audio.AudioSpecificConfig{Type: mpeg4audio.ObjectTypeAACLC, SampleRate: m.src.SampleRate, ChannelCount: m.src.Channels}
		}
		return &mp4.CodecMPEG4Audio{Config: asc}, nil
	case packet.CodecOpus:
		return &mp4.CodecOpus{ChannelCount: m.src.Channels}, nil
	case packet.CodecAC3:
		return &mp4.CodecAC3{SampleRate: m.src.SampleRate, ChannelCount: m.src.Channels}, nil
	default:
		return nil, errs.New("muxer", "fmp4", errs.KindFormat, fmt.Errorf("fmp4 muxer does not support codec %s", m.src.Codec))
	}
}

func (m *FMP4) PacketSubmit(pkt *packet.Packet) error {
	if !m.initWritten {
		if err := m.writeInit(); err != nil {
			return err
		}
		m.initWritten = true
	}

	m.segment = append(m.segment, &fmp4.Sample{
		Duration: uint32(pkt.Duration),
		Payload:  pkt.Data,
	})
	m.segSamples += pkt.Duration

	if m.segTarget > 0 && m.segSamples >= m.segTarget {
		return m.flushFragment()
	}
	return nil
}

func (m *FMP4) flushFragment() error {
	if len(m.segment) == 0 {
		return nil
	}
	part := &fmp4.Part{
		SequenceNumber: m.sequenceNumber,
		Tracks:         []*fmp4.PartTrack{{ID: trackID, BaseTime: m.baseTime, Samples: m.segment}},
	}

	var buf bytes.Buffer
	w := &seekableBuffer{Buffer: &buf}
	if err := part.Marshal(w); err != nil {
		return errs.New("muxer", "fmp4", errs.KindFormat, err)
	}

	samples := m.segSamples
	m.baseTime += samples
	m.sequenceNumber++
	m.segment = m.segment[:0]
	m.segSamples = 0
	if m.segTarget > 0 {
		m.segTarget = m.chunk.Next()
	}

	return m.sink(hls.Segment{Type: hls.SegmentMedia, Data: buf.Bytes(), Samples: samples})
}

func (m *FMP4) PacketFlush() error {
	// writeInit happens lazily on the first packet; a flush with no
	// packets at all (empty stream) has nothing to emit.
	return m.flushFragment()
}

func (m *FMP4) Close() error { return nil }

// seekableBuffer adapts a bytes.Buffer to the io.WriteSeeker mediacommon's
// box marshaler needs.
type seekableBuffer struct {
	*bytes.Buffer
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	if int(s.pos) > s.Buffer.Len() {
		s.Buffer.Write(make([]byte, int(s.pos)-s.Buffer.Len()))
	}
	if int(s.pos) == s.Buffer.Len() {
		n, err := s.Buffer.Write(p)
		s.pos += int64(n)
		return n, err
	}
	b := s.Buffer.Bytes()
	n := copy(b[s.pos:], p)
	if n < len(p) {
		m, err := s.Buffer.Write(p[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	s.pos += int64(n)
	return n, nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = int64(s.Buffer.Len()) + offset
	default:
		return 0, fmt.Errorf("muxer: fmp4: invalid whence")
	}
	if newPos < 0 {
		return 0, fmt.Errorf("muxer: fmp4: negative seek position")
	}
	s.pos = newPos
	return newPos, nil
}
