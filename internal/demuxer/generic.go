package demuxer

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Generic hands whole read buffers through as opaque, unsynced packets,
// for containers this module doesn't parse itself (e.g. a codec whose
// only supported "demuxer" is an external process that does its own
// framing on stdin).
type Generic struct {
	r          Reader
	recv       packet.Receiver
	bufferSize int
}

// NewGeneric builds a Generic demuxer with a 4096-byte default read size.
func NewGeneric() *Generic { return &Generic{bufferSize: 4096} }

func (g *Generic) Configure(key, value string) error {
	switch key {
	case "buffer-size":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return errs.New("demuxer", "generic", errs.KindConfig, fmt.Errorf("invalid buffer-size %q", value))
		}
		g.bufferSize = n
	default:
		return errs.New("demuxer", "generic", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (g *Generic) Open(r Reader, recv packet.Receiver, tags func(*tag.List)) error {
	g.r = r
	g.recv = recv
	return nil
}

func (g *Generic) Close() error { return nil }

// Codec reports CodecUnknown: a generic demuxer hands opaque buffers
// through, so the source pull chain must either configure the decoder's
// format explicitly or use decoder="passthrough".
func (g *Generic) Codec() packet.Codec { return packet.CodecUnknown }

func (g *Generic) Run() int {
	buf := make([]byte, g.bufferSize)
	n, err := g.r.Read(buf)
	if n == 0 && err != nil {
		return RunEOF
	}
	if n == 0 {
		return RunContinue
	}
	if perr := g.recv.PacketSubmit(&packet.Packet{Data: buf[:n], Sync: true}); perr != nil {
		return RunError(perr)
	}
	return RunContinue
}
