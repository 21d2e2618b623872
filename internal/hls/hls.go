// Package hls implements the segmentation engine shared by the folder,
// HTTP, S3, and Icecast outputs: a circular playlist buffer, segment
// accumulation against a target sample count, wall-clock-stamped
// EXT-X-PROGRAM-DATE-TIME rendering, expired-file eviction, and an
// out-of-band picture side channel.
package hls

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync/atomic"

	"golang.org/x/image/webp"

	"github.com/icecasthls/icecasthls/internal/ichtime"
)

// WriteFunc persists filename with the given bytes and MIME type.
type WriteFunc func(filename string, data []byte, mime string) error

// DeleteFunc removes a previously written filename. Some destinations
// (e.g. S3 with lifecycle-based expiry) may make this a no-op.
type DeleteFunc func(filename string) error

// SegmentType distinguishes the one-time initialization segment from
// ordinary media segments.
type SegmentType int

const (
	SegmentMedia SegmentType = iota
	SegmentInit
)

// Segment is one unit of muxer output submitted to the engine.
type Segment struct {
	Type    SegmentType
	Data    []byte
	Samples uint64
}

// SourceParams is what the engine negotiates back to the muxer/encoder at
// Open time.
type SourceParams struct {
	SegmentLength uint // seconds
}

// Source describes the upstream muxer's segment stream at Open time.
type Source struct {
	TimeBase  uint
	FrameLen  uint64
	MediaMime string
	MediaExt  string
	InitMime  string
	InitExt   string
	// SetParams reports the negotiated segment length back upstream, the
	// way segment_source.set_params does.
	SetParams func(SourceParams) error
}

// Picture is a side-channel image payload.
type Picture struct {
	Mime string
	Data []byte
	Desc string
}

// pictureCounter is the process-wide atomic picture-id counter, a
// package-level variable shared by every Engine.
var pictureCounter uint64

// partial accumulates bytes for the in-progress segment.
type partial struct {
	data         []byte
	samples      uint64
	expiredFiles []string
}

func (p *partial) reset() {
	p.data = p.data[:0]
	p.samples = 0
	p.expiredFiles = nil
}

// Engine is one HLS playlist/segmentation state machine, one per output
// destination.
type Engine struct {
	Write  WriteFunc
	Delete DeleteFunc

	header           string
	playlistFilename string
	initFilename     string
	initMime         string
	mediaExt         string
	mediaMime        string
	entryPrefix      string

	playlist Playlist
	segment  partial

	timeBase       uint
	targetDuration uint // seconds, default 2
	playlistLength uint // seconds, default 900
	targetSamples  uint64
	mediaSequence  uint64
	counter        uint64
	version        uint
	now            ichtime.Time

	txt string
}

// New returns an Engine with the original implementation's defaults:
// 2-second target segments, a 15-minute playlist, HLS version 7.
func New() *Engine {
	return &Engine{
		targetDuration: 2,
		playlistLength: 60 * 15,
		mediaSequence:  1,
		version:        7,
	}
}

// Configure applies one `[destination.*]` HLS-related config key.
// Unrecognized keys (after stripping any driver-specific prefix the
// caller already removed) return an error.
func (h *Engine) Configure(key, value string) error {
	switch {
	case strings.HasSuffix(key, "target-duration"):
		n, err := parseUint(value)
		if err != nil || n == 0 {
			return fmt.Errorf("hls: invalid target-duration %q", value)
		}
		h.targetDuration = n
	case strings.HasSuffix(key, "playlist-length"):
		n, err := parseUint(value)
		if err != nil || n == 0 {
			return fmt.Errorf("hls: invalid playlist-length %q", value)
		}
		h.playlistLength = n
	case strings.HasSuffix(key, "init-basename"):
		h.initFilename = value
	case strings.HasSuffix(key, "playlist-filename"):
		h.playlistFilename = value
	case strings.HasSuffix(key, "entry-prefix"):
		h.entryPrefix = value
	default:
		return fmt.Errorf("hls: unknown key %q", key)
	}
	return nil
}

func parseUint(s string) (uint, error) {
	var n uint
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + uint(c-'0')
	}
	return n, nil
}

// Open sizes the playlist buffer and target-sample accumulation against
// src, per hls_open's complementary rounding rule: packets_per_segment
// rounds up when the remainder exceeds half a frame, and
// playlist_segments' slack rounds the complementary way so the two
// capacities stay consistent with each other.
func (h *Engine) Open(src Source) error {
	h.timeBase = src.TimeBase

	packetsPerSegment := (uint64(h.targetDuration)*uint64(src.TimeBase))/src.FrameLen +
		boolU64(uint64(src.TimeBase)%src.FrameLen > src.FrameLen/2)
	h.targetSamples = packetsPerSegment * src.FrameLen

	if src.MediaMime != "" {
		h.mediaMime = src.MediaMime
	}
	if src.MediaExt != "" {
		h.mediaExt = src.MediaExt
	}
	if src.InitMime != "" {
		h.initMime = src.InitMime
	}
	if src.InitExt != "" {
		if h.initFilename == "" {
			h.initFilename = "init"
		}
		h.initFilename += src.InitExt
	}

	if h.playlistFilename == "" {
		h.playlistFilename = "stream.m3u8"
	}

	playlistSegments := int(h.playlistLength/h.targetDuration) +
		int(boolU64(uint64(src.TimeBase)%src.FrameLen <= src.FrameLen/2))
	h.playlist.Open(playlistSegments)

	h.header = fmt.Sprintf("#EXTM3U\n#EXT-X-TARGETDURATION:%d\n#EXT-X-VERSION:%d\n", h.targetDuration, h.version)

	if src.SetParams != nil {
		return src.SetParams(SourceParams{SegmentLength: h.targetDuration})
	}
	return nil
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (h *Engine) updatePlaylist() {
	var b strings.Builder
	b.WriteString(h.header)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n\n", h.mediaSequence)
	used := h.playlist.Used()
	for i := 0; i < used; i++ {
		b.WriteString(h.playlist.Get(i).Tags)
	}
	h.txt = b.String()
}

func (h *Engine) flushSegment() error {
	if h.playlist.IsFull() {
		t := h.playlist.Shift()
		if err := h.Delete(t.Filename); err != nil {
			return err
		}
		h.mediaSequence++
		for _, f := range t.ExpiredFiles {
			if err := h.Delete(f); err != nil {
				return err
			}
		}
	}

	t := h.playlist.Push()
	t.ExpiredFiles = h.segment.expiredFiles
	h.counter++
	t.Filename = fmt.Sprintf("%08d%s", h.counter, h.mediaExt)

	b := ichtime.ToBroken(h.now)
	t.Tags = fmt.Sprintf(
		"#EXT-X-PROGRAM-DATE-TIME:%04d-%02d-%02dT%02d:%02d:%02d.%03dZ\n"+
			"#EXTINF:%f,\n"+
			"%s%s\n\n",
		b.Year, b.Month, b.Day, b.Hour, b.Min, b.Sec, b.Milli,
		float64(h.segment.samples)/float64(h.timeBase),
		h.entryPrefix, t.Filename)

	if err := h.Write(t.Filename, h.segment.data, h.mediaMime); err != nil {
		return err
	}

	h.now.AddFrac(ichtime.Frac{Num: int64(h.segment.samples), Den: int64(h.timeBase)})
	h.segment.reset()
	h.updatePlaylist()
	return nil
}

// AddSegment buffers a chunk of muxer output, writing the init segment
// immediately (and embedding its EXT-X-MAP into the header) or
// accumulating media bytes until target_samples is reached, at which
// point a flush-segment fires and the playlist is rewritten to disk.
func (h *Engine) AddSegment(s Segment) error {
	if s.Type == SegmentInit {
		h.header += fmt.Sprintf("#EXT-X-MAP:URI=\"%s%s\"\n", h.entryPrefix, h.initFilename)
		return h.Write(h.initFilename, s.Data, h.initMime)
	}

	h.segment.data = append(h.segment.data, s.Data...)
	h.segment.samples += s.Samples

	if h.segment.samples >= h.targetSamples {
		if err := h.flushSegment(); err != nil {
			return err
		}
		if err := h.Write(h.playlistFilename, []byte(h.txt), "application/vnd.apple.mpegurl"); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any partial segment as a final, short segment, appends
// EXT-X-ENDLIST, and writes the playlist a final time.
func (h *Engine) Flush() error {
	if h.segment.samples != 0 {
		if err := h.flushSegment(); err != nil {
			return err
		}
	}
	h.txt += "#EXT-X-ENDLIST\n"
	return h.Write(h.playlistFilename, []byte(h.txt), "application/vnd.apple.mpegurl")
}

// Playlist returns the currently rendered playlist text.
func (h *Engine) Playlist() string { return h.txt }

// InitMime returns the MIME type init-segment writes are issued with.
func (h *Engine) InitMime() string { return h.initMime }

// ExpireFile marks filename as expired whenever the in-progress segment
// is eventually flushed, so its eventual eviction issues a matching
// Delete callback.
func (h *Engine) ExpireFile(filename string) {
	h.segment.expiredFiles = append(h.segment.expiredFiles, filename)
}

var extByMime = map[string]string{
	"png":  ".png",
	"jpg":  ".jpg",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
}

// SubmitPicture writes src out-of-band via Write, marks the generated
// filename as expired against the in-progress segment, and returns a
// sentinel Picture carrying the "-->" mime marker and the new filename in
// Data, matching hls_submit_picture's out-param contract. A nil result
// with a nil error means the mime type was unrecognized and the caller
// should strip the image instead.
func (h *Engine) SubmitPicture(src Picture) (*Picture, error) {
	id := atomic.AddUint64(&pictureCounter, 1) % 100000000

	var ext, mime string
	switch {
	case strings.HasSuffix(src.Mime, "/png"):
		ext, mime = extByMime["png"], src.Mime
	case strings.HasSuffix(src.Mime, "/jpg"), strings.HasSuffix(src.Mime, "jpeg"):
		ext, mime = extByMime["jpg"], src.Mime
	case strings.HasSuffix(src.Mime, "/gif"):
		ext, mime = extByMime["gif"], src.Mime
	case strings.HasSuffix(src.Mime, "/webp"):
		ext, mime = extByMime["webp"], src.Mime
	case src.Mime == "image/":
		ext, mime = extByMime["jpg"], "image/jpg"
	default:
		return nil, nil
	}

	if !decodesAsImage(src.Data, ext) {
		return nil, nil
	}

	filename := fmt.Sprintf("%08d%s", id, ext)
	if err := h.Write(filename, src.Data, mime); err != nil {
		return nil, err
	}

	h.ExpireFile(filename)

	return &Picture{Mime: "-->", Desc: src.Desc, Data: []byte(filename)}, nil
}

// decodesAsImage confirms data actually decodes as the format its MIME
// type claims, rather than trusting a tag that lied about its payload.
func decodesAsImage(data []byte, ext string) bool {
	if ext == ".webp" {
		_, err := webp.DecodeConfig(bytes.NewReader(data))
		return err == nil
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	if format == "jpeg" {
		format = "jpg"
	}
	return "."+format == ext
}
