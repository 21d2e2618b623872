// Package input implements the source-side byte-stream drivers (spec
// §4.2): file, stdin, and network, each exposing a single blocking
// Read(dest) call that returns 0 on EOF or a transient timeout. Network
// additionally runs the ICY metaint state machine, splitting interleaved
// StreamTitle metadata out of the audio byte stream before handing it to
// the demuxer.
package input

import (
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Stage is the capability every input driver implements.
type Stage interface {
	stage.Lifecycle
	// Open acquires the underlying resource (opens the file, dials the
	// socket, grabs the stdin singleton).
	Open() error
	// Read fills dest and returns how many bytes were read. io.EOF means
	// the stream has permanently ended; a (0, nil) return means a
	// one-shot read timeout and the source's run loop should try again.
	Read(dest []byte) (int, error)
	// TagHandler installs the callback invoked whenever this driver
	// extracts an out-of-band tag list (ICY StreamTitle updates).
	TagHandler(func(*tag.List))
}

// Registry is the name -> factory table input drivers register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("file", func() Stage { return NewFile() })
	Registry.Register("stdin", func() Stage { return NewStdin() })
	Registry.Register("network", func() Stage { return NewNetwork() })
}
