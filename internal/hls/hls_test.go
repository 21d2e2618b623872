package hls

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// tinyPNG returns a minimal valid 1x1 PNG payload so picture-submission
// tests exercise real image decoding instead of a fake byte string.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEngine(t *testing.T) (*Engine, map[string][]byte, *[]string) {
	t.Helper()
	written := map[string][]byte{}
	var deleted []string
	e := New()
	e.Write = func(filename string, data []byte, mime string) error {
		cp := append([]byte(nil), data...)
		written[filename] = cp
		return nil
	}
	e.Delete = func(filename string) error {
		deleted = append(deleted, filename)
		return nil
	}
	return e, written, &deleted
}

func TestOpenAndOneSecondSegment(t *testing.T) {
	e, written, _ := newTestEngine(t)
	require.NoError(t, e.Configure("target-duration", "1"))
	require.NoError(t, e.Configure("playlist-length", "5"))

	require.NoError(t, e.Open(Source{
		TimeBase: 48000, FrameLen: 1024,
		MediaMime: "video/mp4", MediaExt: ".m4s",
		InitMime: "video/mp4", InitExt: ".mp4",
	}))

	require.NoError(t, e.AddSegment(Segment{Type: SegmentInit, Data: []byte("ftypmoov")}))
	require.Contains(t, written, "init.mp4")

	require.NoError(t, e.AddSegment(Segment{Type: SegmentMedia, Data: []byte("data"), Samples: 48000}))
	// 48000 samples fall short of the 47-frame (48128-sample) target, so
	// the one-second segment is written when the stream ends.
	require.NoError(t, e.Flush())

	require.Contains(t, written, "00000001.m4s")
	playlist := string(written["stream.m3u8"])
	require.Contains(t, playlist, "#EXT-X-MEDIA-SEQUENCE:1")
	require.Contains(t, playlist, "#EXT-X-MAP:URI=\"init.mp4\"")
	require.Equal(t, 1, strings.Count(playlist, "#EXTINF"))
}

func TestPlaylistEvictionIncrementsMediaSequence(t *testing.T) {
	e, written, deleted := newTestEngine(t)
	require.NoError(t, e.Configure("target-duration", "1"))
	// capacity 3: 2/1 segments plus one slack slot, since 1000%500 <= 250
	require.NoError(t, e.Configure("playlist-length", "2"))

	require.NoError(t, e.Open(Source{TimeBase: 1000, FrameLen: 500, MediaExt: ".seg"}))

	for i := 0; i < 5; i++ {
		require.NoError(t, e.AddSegment(Segment{Type: SegmentMedia, Data: []byte("x"), Samples: 1000}))
	}

	require.Equal(t, 2, len(*deleted), "capacity 3, 5 pushes => 2 evictions")
	require.Equal(t, uint64(3), e.mediaSequence)
	_ = written
}

func TestFlushFinalPartialSegmentAndEndlist(t *testing.T) {
	e, written, _ := newTestEngine(t)
	require.NoError(t, e.Configure("target-duration", "2"))
	require.NoError(t, e.Open(Source{TimeBase: 44100, FrameLen: 1024, MediaExt: ".seg"}))

	require.NoError(t, e.AddSegment(Segment{Type: SegmentMedia, Data: []byte("abc"), Samples: 100}))
	require.NoError(t, e.Flush())

	playlist := string(written["stream.m3u8"])
	require.Contains(t, playlist, "#EXT-X-ENDLIST")
	require.Contains(t, written, "00000001.seg")
}

func TestSubmitPictureExpiresWithCurrentSegment(t *testing.T) {
	e, written, deleted := newTestEngine(t)
	require.NoError(t, e.Configure("target-duration", "1"))
	require.NoError(t, e.Open(Source{TimeBase: 1000, FrameLen: 500, MediaExt: ".seg"}))

	require.NoError(t, e.AddSegment(Segment{Type: SegmentMedia, Data: []byte("x"), Samples: 400}))

	out, err := e.SubmitPicture(Picture{Mime: "image/png", Data: tinyPNG(t)})
	require.NoError(t, err)
	require.Equal(t, "-->", out.Mime)
	picFile := string(out.Data)
	require.Contains(t, written, picFile)

	// finish the segment so it flushes, carrying the picture in its
	// expired-files list
	require.NoError(t, e.AddSegment(Segment{Type: SegmentMedia, Data: []byte("y"), Samples: 600}))
	_ = deleted
}

func TestSubmitPictureUnknownMimeReturnsNil(t *testing.T) {
	e, _, _ := newTestEngine(t)
	out, err := e.SubmitPicture(Picture{Mime: "application/octet-stream"})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestSubmitPictureRejectsPayloadThatDoesNotDecode(t *testing.T) {
	e, _, _ := newTestEngine(t)
	out, err := e.SubmitPicture(Picture{Mime: "image/png", Data: []byte("not actually a png")})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestUnknownConfigKeyErrors(t *testing.T) {
	e := New()
	require.Error(t, e.Configure("bogus-key", "1"))
}
