package filter

import (
	"fmt"
	"io"

	"github.com/icecasthls/icecasthls/internal/ffmpeg"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/samplefmt"
)

// Full resamples and remixes via an external ffmpeg process running the
// configured -af filter graph (e.g. "aresample=48000,aformat=channel_layouts=stereo").
// Its output sample rate and channel count are fixed at Open; Full never
// re-opens its downstream, and Reset only rewinds the output pts.
type Full struct {
	graph      string
	destRate   int
	destCh     int

	recv frame.Receiver
	src  frame.Source
	out  frame.Source
	proc *ffmpeg.StreamProcess
	pts  uint64
}

// NewFull builds a Full filter running graph (an ffmpeg -af expression).
func NewFull(graph string) *Full { return &Full{graph: graph} }

func (f *Full) Configure(key, value string) error {
	switch key {
	case "graph":
		f.graph = value
	case "sample-rate":
		if _, err := fmt.Sscanf(value, "%d", &f.destRate); err != nil {
			return errs.New("filter", "full", errs.KindConfig, err)
		}
	case "channels":
		if _, err := fmt.Sscanf(value, "%d", &f.destCh); err != nil {
			return errs.New("filter", "full", errs.KindConfig, err)
		}
	default:
		return errs.New("filter", "full", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (f *Full) Open(src frame.Source, recv frame.Receiver) (frame.Source, error) {
	f.src = src
	f.recv = recv

	destRate := f.destRate
	if destRate == 0 {
		destRate = src.SampleRate
	}
	destCh := f.destCh
	if destCh == 0 {
		destCh = src.Channels
	}

	args := []string{"-hide_banner", "-loglevel", "error",
		"-f", "f32le", "-ar", itoa(src.SampleRate), "-ac", itoa(src.Channels), "-i", "pipe:0"}
	if f.graph != "" {
		args = append(args, "-af", f.graph)
	}
	args = append(args, "-f", "f32le", "-ar", itoa(destRate), "-ac", itoa(destCh), "pipe:1")

	proc, err := ffmpeg.Start(args)
	if err != nil {
		return frame.Source{}, errs.New("filter", "full", errs.KindResourceExhaustion, err)
	}
	f.proc = proc
	f.destRate, f.destCh = destRate, destCh

	f.out = frame.Source{Format: samplefmt.Float, Channels: destCh, SampleRate: destRate}
	return f.out, nil
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func (f *Full) Reset() error {
	f.pts = 0
	return nil
}

func (f *Full) FrameSubmit(in *frame.Frame) error {
	if in.Format.IsPlanar() || len(in.Planes) != 1 {
		return errs.New("filter", "full", errs.KindFormat, fmt.Errorf("full filter requires interleaved input"))
	}
	if _, err := f.proc.Write(in.Planes[0]); err != nil {
		return errs.New("filter", "full", errs.KindTransientIO, err)
	}
	return f.drain(false)
}

func (f *Full) drain(toEOF bool) error {
	width := f.destCh * samplefmt.Float.Size()
	chunk := make([]byte, 65536)
	for {
		n, err := f.proc.Read(chunk)
		if n > 0 {
			frames := n / width
			if frames > 0 {
				n = frames * width
				data := append([]byte(nil), chunk[:n]...)
				out := &frame.Frame{
					Format: samplefmt.Float, Channels: f.destCh, SampleRate: f.destRate,
					Duration: uint64(frames), PTS: f.pts, Planes: [][]byte{data},
				}
				f.pts += uint64(frames)
				if err := f.recv.FrameSubmit(out); err != nil {
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

func (f *Full) FrameFlush() error {
	if f.proc == nil {
		return nil
	}
	if err := f.proc.CloseWrite(); err != nil {
		return err
	}
	if err := f.drain(true); err != nil {
		return err
	}
	return f.recv.FrameFlush()
}

func (f *Full) Close() error {
	if f.proc == nil {
		return nil
	}
	err := f.proc.Close()
	f.proc = nil
	return err
}
