// Package errs defines the pipeline's error taxonomy: a single StageError
// type whose Kind field names the error kind a stage surfaced, wrapping an
// underlying cause so callers can errors.As/errors.Is through it, plus a
// separate ConfigError for section/key-level config messages.
package errs

import "fmt"

// Kind identifies which taxonomy bucket an error belongs to.
type Kind int

const (
	KindConfig Kind = iota
	KindResourceExhaustion
	KindFormat
	KindTransientIO
	KindProtocol
	KindLifecycleViolation
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindResourceExhaustion:
		return "resource-exhaustion"
	case KindFormat:
		return "format"
	case KindTransientIO:
		return "transient-io"
	case KindProtocol:
		return "protocol"
	case KindLifecycleViolation:
		return "lifecycle-violation"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StageError wraps an error raised by a named stage instance.
type StageError struct {
	StageKind string // "input", "demuxer", "decoder", "filter", "encoder", "muxer", "output"
	StageName string // registered plugin name, e.g. "file", "fmp4"
	Kind      Kind
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s[%s]: %s: %v", e.StageKind, e.StageName, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// New builds a StageError.
func New(stageKind, stageName string, kind Kind, err error) *StageError {
	return &StageError{StageKind: stageKind, StageName: stageName, Kind: kind, Err: err}
}

// ConfigError reports an unknown or malformed config key/value, fatal
// before the pipeline starts.
type ConfigError struct {
	Section string
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: [%s] %s: %s", e.Section, e.Key, e.Message)
}

// Cancelled reports a peer-requested abort (the rendezvous "status" QUIT
// path, or a shortflag escalation).
var Cancelled = New("", "", KindCancelled, fmt.Errorf("cancelled"))
