// Package stage defines the capability interfaces every pipeline stage
// implements (input, demuxer, decoder, filter, encoder, muxer, output)
// and the name -> factory registries stages are selected from at config
// time.
package stage

import (
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/packet"
)

// Descriptor is the union of what a stage may publish at Open time. Only
// the fields relevant to the stage's output kind are populated; the
// receiving stage inspects only Packet or only Frame, never both.
type Descriptor struct {
	Packet *packet.Source
	Frame  *frame.Source
}

// Lifecycle is the common capability set every concrete stage kind
// extends: config-time key/value pairs, then create/open/flush/reset/close.
type Lifecycle interface {
	// Configure validates and stores one config key/value pair. Unknown
	// keys must return an error (an *errs.StageError of KindConfig).
	Configure(key, value string) error
	// Close releases any resources acquired since Create/Open.
	Close() error
}

// Factory builds a new, unconfigured instance of a named plugin.
type Factory[T any] func() T

// Registry is a name -> Factory map for one stage kind.
type Registry[T any] struct {
	factories map[string]Factory[T]
}

// NewRegistry builds an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register installs a factory under name, overwriting any prior entry
// registered under the same name (used by tests to substitute fakes).
func (r *Registry[T]) Register(name string, f Factory[T]) {
	r.factories[name] = f
}

// New builds a new instance of the plugin registered under name. The
// second return value is false if name is not registered.
func (r *Registry[T]) New(name string) (T, bool) {
	f, ok := r.factories[name]
	if !ok {
		var zero T
		return zero, false
	}
	return f(), true
}

// Names returns every registered plugin name, for the CLI's -V listing.
func (r *Registry[T]) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}
