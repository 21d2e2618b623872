package demuxer

import (
	"bytes"
	"testing"

	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/stretchr/testify/require"
)

type fakeReceiver struct {
	packets []*packet.Packet
}

func (r *fakeReceiver) PacketSubmit(pkt *packet.Packet) error {
	r.packets = append(r.packets, pkt)
	return nil
}
func (r *fakeReceiver) PacketFlush() error { return nil }

// buildStreamInfo packs the 18-byte STREAMINFO fields used by
// parseStreamInfo: 16+16+24+24 bits of block/frame size (ignored), a
// 20-bit sample rate, a 3-bit channel-count-minus-one, and padding out
// to 18 bytes (bits-per-sample/total-samples/MD5 are not read).
func buildStreamInfo(sampleRate int, channels int) []byte {
	var bits []bool
	pushBits := func(v uint64, n int) {
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1 != 0)
		}
	}
	pushBits(0, 16) // min block size
	pushBits(0, 16) // max block size
	pushBits(0, 24) // min frame size
	pushBits(0, 24) // max frame size
	pushBits(uint64(sampleRate), 20)
	pushBits(uint64(channels-1), 3)
	for len(bits) < 18*8 {
		bits = append(bits, false)
	}

	out := make([]byte, 18)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func flacFile(streamInfo []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80) // last-metadata-block flag set, type 0 (STREAMINFO)
	length := len(streamInfo)
	buf.WriteByte(byte(length >> 16))
	buf.WriteByte(byte(length >> 8))
	buf.WriteByte(byte(length))
	buf.Write(streamInfo)
	return buf.Bytes()
}

func TestFLACParsesStreamInfoSampleRateAndChannels(t *testing.T) {
	si := buildStreamInfo(48000, 2)
	r := bytes.NewReader(flacFile(si))

	recv := &fakeReceiver{}
	f := NewFLAC()
	require.NoError(t, f.Open(r, recv, nil))
	require.Equal(t, RunContinue, f.Run())

	require.Equal(t, 48000, f.SampleRate())
	require.Equal(t, 2, f.Channels())
	require.Len(t, recv.packets, 1)
	require.True(t, recv.packets[0].Sync)
	require.Equal(t, si, recv.packets[0].CodecData)
}

func TestFLACSampleRateZeroBeforeOpen(t *testing.T) {
	f := NewFLAC()
	require.Equal(t, 0, f.SampleRate())
	require.Equal(t, 0, f.Channels())
}
