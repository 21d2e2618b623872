// Package output implements the destination drivers that back
// internal/hls.Engine's Write/Delete hooks (spec §4.8): folder, stdout,
// HTTP, S3, and Icecast.
package output

import (
	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/stage"
)

// Stage is the capability every output driver implements: it backs an
// hls.Engine with concrete Write/Delete/SubmitPicture behavior and is
// handed the muxer's declared hls.Source at Open.
type Stage interface {
	stage.Lifecycle
	// Open wires the driver behind a fresh hls.Engine and opens it
	// against src, returning the engine the destination's muxer drives.
	Open(src hls.Source) (*hls.Engine, error)
}

// Registry is the name -> factory table output drivers register into.
var Registry = stage.NewRegistry[Stage]()

func init() {
	Registry.Register("folder", func() Stage { return NewFolder() })
	Registry.Register("stdout", func() Stage { return NewStdout() })
	Registry.Register("http", func() Stage { return NewHTTP() })
	Registry.Register("s3", func() Stage { return NewS3() })
	Registry.Register("icecast", func() Stage { return NewIcecast() })
}
