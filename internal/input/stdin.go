package input

import (
	"fmt"
	"os"
	"sync"

	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// stdinClaimed and stdinMu guard the single os.Stdin handle: only one
// source may hold it at a time, so an Open while another source holds it
// fails until that source Closes.
var (
	stdinClaimed bool
	stdinMu      sync.Mutex
)

// Stdin reads the process's standard input, once, from whichever source
// opens it first.
type Stdin struct {
	onTags func(*tag.List)
}

// NewStdin builds an unconfigured Stdin driver.
func NewStdin() *Stdin { return &Stdin{} }

func (d *Stdin) Configure(key, value string) error {
	return errs.New("input", "stdin", errs.KindConfig, fmt.Errorf("unknown key %q", key))
}

func (d *Stdin) Open() error {
	stdinMu.Lock()
	defer stdinMu.Unlock()
	if stdinClaimed {
		return errs.New("input", "stdin", errs.KindResourceExhaustion, fmt.Errorf("stdin already claimed by another source"))
	}
	stdinClaimed = true
	return nil
}

func (d *Stdin) Read(dest []byte) (int, error) { return os.Stdin.Read(dest) }

func (d *Stdin) TagHandler(fn func(*tag.List)) { d.onTags = fn }

func (d *Stdin) Close() error {
	stdinMu.Lock()
	defer stdinMu.Unlock()
	stdinClaimed = false
	return nil
}
