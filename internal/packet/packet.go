// Package packet defines the compressed audio unit that flows between
// demuxer, decoder, encoder, and muxer stages.
package packet

// Packet is one compressed access unit (an Ogg packet, an ADTS frame
// payload, an fMP4 sample, ...).
type Packet struct {
	Data       []byte
	PTS        uint64
	Duration   uint64 // samples, at the codec's native sample rate
	Sync       bool   // true if this packet starts a decodable sequence (keyframe-equivalent)
	CodecData  []byte // out-of-band extradata (e.g. AAC ASC, Opus header), set on sync packets only
}

// Reset clears a Packet for reuse without releasing Data's capacity.
func (p *Packet) Reset() {
	p.Data = p.Data[:0]
	p.PTS = 0
	p.Duration = 0
	p.Sync = false
	p.CodecData = nil
}

// Codec identifies the compressed format a Source publishes. Profile is
// stored as value+1 (0 meaning "unset") the way the original packed-in
// profile field did; callers that need the real profile number subtract
// one.
type Codec uint8

const (
	CodecUnknown Codec = iota
	CodecAAC
	CodecOpus
	CodecVorbis
	CodecFLAC
	CodecALAC
	CodecMP3
	CodecAC3
	CodecEAC3
)

func (c Codec) String() string {
	switch c {
	case CodecAAC:
		return "aac"
	case CodecOpus:
		return "opus"
	case CodecVorbis:
		return "vorbis"
	case CodecFLAC:
		return "flac"
	case CodecALAC:
		return "alac"
	case CodecMP3:
		return "mp3"
	case CodecAC3:
		return "ac3"
	case CodecEAC3:
		return "eac3"
	default:
		return "unknown"
	}
}

// Source describes a stage's packet output, published at open() time.
type Source struct {
	Codec      Codec
	SampleRate int
	Channels   int
	// Profile is the codec profile plus one; zero means "not set". See
	// DESIGN.md's Open Question decisions for why this +1 encoding is
	// kept rather than using a separate bool.
	Profile    int
	CodecData  []byte
	FrameLen   uint64 // fixed frame length in samples, 0 if variable
}

// HasProfile reports whether Profile carries a real value.
func (s Source) HasProfile() bool { return s.Profile > 0 }

// ProfileValue returns the real codec profile number. Callers must check
// HasProfile first.
func (s Source) ProfileValue() int { return s.Profile - 1 }

// Receiver is implemented by a stage consuming packets from an upstream
// producer.
type Receiver interface {
	PacketSubmit(*Packet) error
	PacketFlush() error
}
