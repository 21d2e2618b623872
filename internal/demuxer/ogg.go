package demuxer

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Ogg reconstructs packets from an Ogg bitstream: pages are read whole
// (header + segment table + payload), then split into packets by the
// lacing rule (a segment value of 255 continues the current packet into
// the next segment; anything less ends it).
type Ogg struct {
	r      Reader
	recv   packet.Receiver
	onTags func(*tag.List)

	pending []byte // partial packet spanning a page boundary
	pts     uint64
	opened  bool
}

// NewOgg builds an unconfigured Ogg demuxer.
func NewOgg() *Ogg { return &Ogg{} }

func (o *Ogg) Configure(key, value string) error {
	return errs.New("demuxer", "ogg", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (o *Ogg) Open(r Reader, recv packet.Receiver, tags func(*tag.List)) error {
	o.r = r
	o.recv = recv
	o.onTags = tags
	return nil
}

func (o *Ogg) Close() error { return nil }

// Codec always reports Opus: the real codec is only knowable from the
// logical stream's identification packet, and Opus/Vorbis resolve to the
// same ffmpeg demuxer name ("ogg") regardless, so the guess never
// changes decoding behavior.
func (o *Ogg) Codec() packet.Codec { return packet.CodecOpus }

// readFull reads exactly len(buf) bytes or returns the short read error.
func readFull(r Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil // transient timeout; caller retries
		}
	}
	return total, nil
}

func (o *Ogg) Run() int {
	var header [27]byte
	n, err := readFull(o.r, header[:])
	if n == 0 && err != nil {
		return RunEOF
	}
	if n < 27 {
		return RunContinue // short read this tick, try again later
	}
	if string(header[0:4]) != "OggS" {
		return RunError(fmt.Errorf("demuxer: ogg: bad capture pattern"))
	}

	segCount := int(header[26])
	segTable := make([]byte, segCount)
	if _, err := readFull(o.r, segTable); err != nil {
		return RunError(err)
	}

	total := 0
	for _, s := range segTable {
		total += int(s)
	}
	payload := make([]byte, total)
	if _, err := readFull(o.r, payload); err != nil {
		return RunError(err)
	}

	offset := 0
	for _, s := range segTable {
		o.pending = append(o.pending, payload[offset:offset+int(s)]...)
		offset += int(s)
		if s < 255 {
			if err := o.emit(o.pending); err != nil {
				return RunError(err)
			}
			o.pending = o.pending[:0]
		}
	}
	return RunContinue
}

func (o *Ogg) emit(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	if !o.opened {
		o.opened = true
		// The packet.Source describing this Ogg logical stream is
		// resolved by the codec-specific identification header carried
		// in the first packet (Opus "OpusHead", Vorbis "\x01vorbis",
		// FLAC mapping header). This demuxer does not parse that header:
		// it hands the raw first packet through as a sync packet, and
		// Codec() reports Opus whatever the header names.
		if err := o.recv.PacketSubmit(&packet.Packet{Data: cp, Sync: true}); err != nil {
			return err
		}
		return nil
	}

	p := &packet.Packet{Data: cp, PTS: o.pts}
	o.pts++
	return o.recv.PacketSubmit(p)
}
