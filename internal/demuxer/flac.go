package demuxer

import (
	"fmt"

	"github.com/icecasthls/icecasthls/internal/bitreader"
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// FLAC demuxes a native FLAC stream: the "fLaC" marker and metadata
// blocks are consumed as one sync packet carrying STREAMINFO as
// CodecData, then the remaining frame stream is split on FLAC's 14-bit
// frame sync code (0b11111111111110, the high byte 0xFF followed by a
// second byte whose top 6 bits are 111110).
type FLAC struct {
	r      Reader
	recv   packet.Receiver
	onTags func(*tag.List)

	buf    []byte
	opened bool

	sampleRate int
	channels   int
}

// NewFLAC builds an unconfigured FLAC demuxer.
func NewFLAC() *FLAC { return &FLAC{} }

func (f *FLAC) Configure(key, value string) error {
	return errs.New("demuxer", "flac", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (f *FLAC) Open(r Reader, recv packet.Receiver, tags func(*tag.List)) error {
	f.r = r
	f.recv = recv
	f.onTags = tags
	return nil
}

func (f *FLAC) Close() error { return nil }

func (f *FLAC) Codec() packet.Codec { return packet.CodecFLAC }

// SampleRate returns the STREAMINFO sample rate, known only after
// readHeader has run. 0 before then.
func (f *FLAC) SampleRate() int { return f.sampleRate }

// Channels returns the STREAMINFO channel count, known only after
// readHeader has run. 0 before then.
func (f *FLAC) Channels() int { return f.channels }

func (f *FLAC) Run() int {
	if !f.opened {
		if err := f.readHeader(); err != nil {
			return RunError(err)
		}
		f.opened = true
	}

	chunk := make([]byte, 4096)
	n, err := f.r.Read(chunk)
	if n == 0 && err != nil {
		// Flush whatever frame bytes remain as the final packet.
		if len(f.buf) > 0 {
			f.emit(f.buf)
			f.buf = f.buf[:0]
		}
		return RunEOF
	}
	f.buf = append(f.buf, chunk[:n]...)
	f.splitFrames()
	return RunContinue
}

// readHeader consumes the "fLaC" marker and every METADATA_BLOCK until
// (and including) the one with the last-metadata-block flag set,
// publishing STREAMINFO as the sync packet's CodecData.
func (f *FLAC) readHeader() error {
	var marker [4]byte
	if _, err := readFull(f.r, marker[:]); err != nil {
		return err
	}
	if string(marker[:]) != "fLaC" {
		return fmt.Errorf("demuxer: flac: missing fLaC marker")
	}

	var streaminfo []byte
	for {
		var blockHeader [4]byte
		if _, err := readFull(f.r, blockHeader[:]); err != nil {
			return err
		}
		last := blockHeader[0]&0x80 != 0
		blockType := blockHeader[0] & 0x7f
		length := int(blockHeader[1])<<16 | int(blockHeader[2])<<8 | int(blockHeader[3])

		data := make([]byte, length)
		if _, err := readFull(f.r, data); err != nil {
			return err
		}
		if blockType == 0 { // STREAMINFO
			streaminfo = data
		}
		if last {
			break
		}
	}

	f.parseStreamInfo(streaminfo)
	return f.recv.PacketSubmit(&packet.Packet{Data: streaminfo, Sync: true, CodecData: streaminfo})
}

// parseStreamInfo pulls sample rate and channel count out of the
// STREAMINFO metadata block (min/max block size, min/max frame size,
// 20-bit sample rate, 3-bit channel count minus one, 5-bit bits-per-
// sample minus one, 36-bit total samples, 128-bit MD5).
func (f *FLAC) parseStreamInfo(data []byte) {
	if len(data) < 18 {
		return
	}
	br := bitreader.New(data)
	br.Discard(16) // min block size
	br.Discard(16) // max block size
	br.Discard(24) // min frame size
	br.Discard(24) // max frame size
	f.sampleRate = int(br.Read(20))
	f.channels = int(br.Read(3)) + 1
}

func (f *FLAC) splitFrames() {
	start := 0
	for i := 1; i+1 < len(f.buf); i++ {
		if f.buf[i] == 0xFF && f.buf[i+1]&0xFC == 0xF8 {
			if i > start {
				f.emit(f.buf[start:i])
				start = i
			}
		}
	}
	f.buf = append(f.buf[:0], f.buf[start:]...)
}

func (f *FLAC) emit(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	_ = f.recv.PacketSubmit(&packet.Packet{Data: cp})
}
