package encoder

import (
	"fmt"
	"io"

	"github.com/icecasthls/icecasthls/internal/codec"
	"github.com/icecasthls/icecasthls/internal/ffmpeg"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// packetFormatFor maps a codec to the ffmpeg muxer name used to produce
// this encoder's elementary packet stream (ADTS for AAC so a plain byte
// stream carries sync words, raw "data" for formats the muxer stage will
// frame itself).
func packetFormatFor(a codec.Audio) (muxer string, pktCodec packet.Codec) {
	switch a {
	case codec.AAC:
		return "adts", packet.CodecAAC
	case codec.Opus:
		return "ogg", packet.CodecOpus
	case codec.Vorbis:
		return "ogg", packet.CodecVorbis
	case codec.FLAC:
		return "flac", packet.CodecFLAC
	case codec.MP3:
		return "mp3", packet.CodecMP3
	case codec.AC3:
		return "ac3", packet.CodecAC3
	case codec.EAC3:
		return "eac3", packet.CodecEAC3
	default:
		return "data", packet.CodecUnknown
	}
}

// Generic encodes real compressed audio by piping PCM through an
// external ffmpeg process and reading back the codec's elementary
// stream.
type Generic struct {
	name string // registered plugin name; resolved to a codec.Audio at Open

	recv packet.Receiver
	src  frame.Source
	out  packet.Source
	proc *ffmpeg.StreamProcess
	pts  uint64
}

// NewGeneric builds a Generic encoder targeting the named codec (an
// internal/codec.Audio canonical or alias name).
func NewGeneric(name string) *Generic { return &Generic{name: name} }

func (g *Generic) Configure(key, value string) error {
	switch key {
	case "codec":
		g.name = value
	default:
		return errs.New("encoder", "generic", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (g *Generic) Open(src frame.Source, caps Capability, recv packet.Receiver) (packet.Source, error) {
	a, ok := codec.Parse(g.name)
	if !ok {
		return packet.Source{}, errs.New("encoder", "generic", errs.KindConfig, fmt.Errorf("unknown codec %q", g.name))
	}
	g.src = src
	g.recv = recv

	wantFormat := codec.PreferredFormat(a, src.Format)
	if wantFormat.IsPlanar() {
		return packet.Source{}, errs.New("encoder", "generic", errs.KindFormat, fmt.Errorf("generic encoder requires interleaved input, got planar %s", wantFormat))
	}

	sampleFmt := ffmpegSampleFmt(wantFormat)
	muxerName, pktCodec := packetFormatFor(a)
	encoderName := codec.Encoder(a)

	args := []string{"-hide_banner", "-loglevel", "error",
		"-f", sampleFmt, "-ar", itoaG(src.SampleRate), "-ac", itoaG(src.Channels), "-i", "pipe:0",
		"-c:a", encoderName, "-f", muxerName, "pipe:1"}
	proc, err := ffmpeg.Start(args)
	if err != nil {
		return packet.Source{}, errs.New("encoder", "generic", errs.KindResourceExhaustion, err)
	}
	g.proc = proc

	g.out = packet.Source{
		Codec:      pktCodec,
		SampleRate: src.SampleRate,
		Channels:   src.Channels,
	}
	return g.out, nil
}

func itoaG(n int) string { return fmt.Sprintf("%d", n) }

func ffmpegSampleFmt(f samplefmt.Format) string {
	switch f {
	case samplefmt.U8:
		return "u8"
	case samplefmt.S16:
		return "s16le"
	case samplefmt.S32:
		return "s32le"
	case samplefmt.Float:
		return "f32le"
	case samplefmt.Double:
		return "f64le"
	default:
		return "f32le"
	}
}

func (g *Generic) FrameSubmit(f *frame.Frame) error {
	if len(f.Planes) == 0 {
		return nil
	}
	if _, err := g.proc.Write(f.Planes[0]); err != nil {
		return errs.New("encoder", "generic", errs.KindTransientIO, err)
	}
	return g.drain(false)
}

func (g *Generic) drain(toEOF bool) error {
	chunk := make([]byte, 65536)
	for {
		n, err := g.proc.Read(chunk)
		if n > 0 {
			data := append([]byte(nil), chunk[:n]...)
			p := &packet.Packet{Data: data, PTS: g.pts, Sync: true}
			g.pts += uint64(n)
			if serr := g.recv.PacketSubmit(p); serr != nil {
				return serr
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

func (g *Generic) FrameFlush() error {
	if g.proc == nil {
		return nil
	}
	if err := g.proc.CloseWrite(); err != nil {
		return err
	}
	if err := g.drain(true); err != nil {
		return err
	}
	return g.recv.PacketFlush()
}

func (g *Generic) Close() error {
	if g.proc == nil {
		return nil
	}
	err := g.proc.Close()
	g.proc = nil
	return err
}
