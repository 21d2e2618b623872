package output

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"

	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// Folder writes segments and playlists as plain files under a directory,
// creating it if necessary. Filenames are validated as safely
// round-trippable through UTF-16 (the Windows filesystem's native
// encoding) before being written, rejecting anything that would corrupt
// on that boundary rather than silently mangling it.
type Folder struct {
	dir    string
	engine *hls.Engine
}

// NewFolder builds an unconfigured Folder output.
func NewFolder() *Folder { return &Folder{} }

func (f *Folder) Configure(key, value string) error {
	switch key {
	case "directory", "path":
		f.dir = value
	case "target-duration", "playlist-length", "init-basename", "playlist-filename", "entry-prefix":
		if f.engine == nil {
			f.engine = hls.New()
		}
		return f.engine.Configure(key, value)
	default:
		return errs.New("output", "folder", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (f *Folder) Open(src hls.Source) (*hls.Engine, error) {
	if f.dir == "" {
		return nil, errs.New("output", "folder", errs.KindConfig, fmt.Errorf("folder output requires a directory"))
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, errs.New("output", "folder", errs.KindTransientIO, err)
	}
	if f.engine == nil {
		f.engine = hls.New()
	}
	f.engine.Write = f.write
	f.engine.Delete = f.delete
	if err := f.engine.Open(src); err != nil {
		return nil, errs.New("output", "folder", errs.KindFormat, err)
	}
	return f.engine, nil
}

// utf16Safe reports whether name round-trips losslessly through UTF-16,
// the encoding every Windows filesystem API call converts through
// internally.
func utf16Safe(name string) bool {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := enc.String(name)
	if err != nil {
		return false
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := dec.String(encoded)
	return err == nil && decoded == name
}

func (f *Folder) write(filename string, data []byte, mime string) error {
	if !utf16Safe(filename) {
		return errs.New("output", "folder", errs.KindFormat, fmt.Errorf("filename %q is not UTF-16 safe", filename))
	}
	path := filepath.Join(f.dir, filename)
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.New("output", "folder", errs.KindTransientIO, err)
	}
	defer fh.Close()
	if _, err := fh.Write(data); err != nil {
		return errs.New("output", "folder", errs.KindTransientIO, err)
	}
	return nil
}

func (f *Folder) delete(filename string) error {
	path := filepath.Join(f.dir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.New("output", "folder", errs.KindTransientIO, err)
	}
	return nil
}

func (f *Folder) Close() error { return nil }
