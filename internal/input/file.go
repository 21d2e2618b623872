package input

import (
	"fmt"
	"os"

	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// File reads a local file from start to EOF exactly once; it does not
// tail or reopen.
type File struct {
	path    string
	f       *os.File
	onTags  func(*tag.List)
}

// NewFile builds an unconfigured File driver.
func NewFile() *File { return &File{} }

func (d *File) Configure(key, value string) error {
	switch key {
	case "path":
		d.path = value
	default:
		return errs.New("input", "file", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (d *File) Open() error {
	if d.path == "" {
		return errs.New("input", "file", errs.KindConfig, fmt.Errorf("path is required"))
	}
	f, err := os.Open(d.path)
	if err != nil {
		return errs.New("input", "file", errs.KindResourceExhaustion, err)
	}
	d.f = f
	return nil
}

func (d *File) Read(dest []byte) (int, error) {
	return d.f.Read(dest)
}

func (d *File) TagHandler(fn func(*tag.List)) { d.onTags = fn }

func (d *File) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
