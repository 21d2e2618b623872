package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// Stdout writes the media segment stream to the process's standard
// output, ignoring playlist/init writes and delete calls; it is meant
// for piping a single-destination stream to another process (e.g. a
// local player or a second icecast-hls instance's stdin input).
type Stdout struct {
	engine  *hls.Engine
	initExt string
}

// NewStdout builds an unconfigured Stdout output.
func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Configure(key, value string) error {
	switch key {
	case "target-duration", "playlist-length", "init-basename", "playlist-filename", "entry-prefix":
		if s.engine == nil {
			s.engine = hls.New()
		}
		return s.engine.Configure(key, value)
	default:
		return errs.New("output", "stdout", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
}

func (s *Stdout) Open(src hls.Source) (*hls.Engine, error) {
	if s.engine == nil {
		s.engine = hls.New()
	}
	s.initExt = src.InitExt
	s.engine.Write = s.write
	s.engine.Delete = func(string) error { return nil }
	if err := s.engine.Open(src); err != nil {
		return nil, errs.New("output", "stdout", errs.KindFormat, err)
	}
	return s.engine, nil
}

func (s *Stdout) write(filename string, data []byte, mime string) error {
	// The init segment is told apart by its extension, not its MIME type:
	// fmp4 gives init and media segments the same MIME type.
	if mime == "application/vnd.apple.mpegurl" || (s.initExt != "" && strings.HasSuffix(filename, s.initExt)) {
		return nil
	}
	_, err := os.Stdout.Write(data)
	if err != nil {
		return errs.New("output", "stdout", errs.KindTransientIO, err)
	}
	return nil
}

func (s *Stdout) Close() error { return nil }
