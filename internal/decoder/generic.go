package decoder

import (
	"fmt"
	"io"

	"github.com/icecasthls/icecasthls/internal/ffmpeg"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// demuxFormatFor maps a packet.Codec to the ffmpeg demuxer name that can
// parse this module's raw packet stream for that codec (the codec's
// elementary-stream container, not a full file format).
func demuxFormatFor(c packet.Codec) string {
	switch c {
	case packet.CodecAAC:
		return "aac"
	case packet.CodecFLAC:
		return "flac"
	case packet.CodecMP3:
		return "mp3"
	case packet.CodecAC3:
		return "ac3"
	case packet.CodecOpus, packet.CodecVorbis:
		return "ogg"
	default:
		return ""
	}
}

// Generic decodes real compressed audio by piping packets through an
// external ffmpeg process and reading back interleaved float32 PCM.
type Generic struct {
	forcedFormat string

	recv frame.Receiver
	src  packet.Source
	proc *ffmpeg.StreamProcess

	pts uint64
	buf []byte
}

// NewGeneric builds a Generic decoder. forcedFormat overrides the
// codec-derived ffmpeg demuxer name; pass "" to infer it from the
// packet.Source at Open time.
func NewGeneric(forcedFormat string) *Generic { return &Generic{forcedFormat: forcedFormat} }

func (g *Generic) Configure(key, value string) error {
	switch key {
	case "format":
		g.forcedFormat = value
	default:
		return errs.New("decoder", "generic", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (g *Generic) Open(src packet.Source, recv frame.Receiver) (frame.Source, error) {
	g.src = src
	g.recv = recv

	format := g.forcedFormat
	if format == "" {
		format = demuxFormatFor(src.Codec)
	}
	if format == "" {
		return frame.Source{}, errs.New("decoder", "generic", errs.KindFormat, fmt.Errorf("no ffmpeg demuxer known for codec %s", src.Codec))
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-f", format, "-i", "pipe:0",
		"-f", "f32le", "-acodec", "pcm_f32le", "pipe:1"}
	proc, err := ffmpeg.Start(args)
	if err != nil {
		return frame.Source{}, errs.New("decoder", "generic", errs.KindResourceExhaustion, err)
	}
	g.proc = proc

	out := frame.Source{
		Format:     samplefmt.Float,
		Channels:   src.Channels,
		SampleRate: src.SampleRate,
		Duration:   0,
	}
	return out, nil
}

func (g *Generic) Reset() error {
	g.pts = 0
	return nil
}

func (g *Generic) PacketSubmit(pkt *packet.Packet) error {
	if g.proc == nil {
		return errs.New("decoder", "generic", errs.KindLifecycleViolation, fmt.Errorf("submit before open"))
	}
	if len(pkt.CodecData) > 0 {
		if _, err := g.proc.Write(pkt.CodecData); err != nil {
			return errs.New("decoder", "generic", errs.KindTransientIO, err)
		}
	}
	if _, err := g.proc.Write(pkt.Data); err != nil {
		return errs.New("decoder", "generic", errs.KindTransientIO, err)
	}
	return g.drain(false)
}

// drain reads whatever PCM ffmpeg has produced so far (or, on flush,
// everything until EOF) and submits it downstream as one Frame per read.
func (g *Generic) drain(toEOF bool) error {
	chunk := make([]byte, 65536)
	width := g.src.Channels * samplefmt.Float.Size()
	if width == 0 {
		width = samplefmt.Float.Size()
	}
	for {
		n, err := g.proc.Read(chunk)
		if n > 0 {
			frames := n / width
			if frames > 0 {
				n = frames * width
				data := make([]byte, n)
				copy(data, chunk[:n])
				f := &frame.Frame{
					Format:     samplefmt.Float,
					Channels:   g.src.Channels,
					SampleRate: g.src.SampleRate,
					Duration:   uint64(frames),
					PTS:        g.pts,
					Planes:     [][]byte{data},
				}
				g.pts += uint64(frames)
				if err := g.recv.FrameSubmit(f); err != nil {
					return err
				}
			}
		}
		if err != nil {
			if err == io.EOF || !toEOF {
				return nil
			}
			return err
		}
		if !toEOF && n == 0 {
			return nil
		}
	}
}

func (g *Generic) PacketFlush() error {
	if g.proc == nil {
		return nil
	}
	if err := g.proc.CloseWrite(); err != nil {
		return err
	}
	if err := g.drain(true); err != nil {
		return err
	}
	return g.recv.FrameFlush()
}

func (g *Generic) Close() error {
	if g.proc == nil {
		return nil
	}
	err := g.proc.Close()
	g.proc = nil
	return err
}
