// Package destinationlist implements one half of the concurrency model
// (spec §5): one destination goroutine per configured destination,
// driven by a rendezvous.Sync that deep-copies each handed-off frame or
// tag list before releasing the producing source thread.
package destinationlist

import (
	"sync/atomic"

	"github.com/icecasthls/icecasthls/internal/destination"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/observability"
	"github.com/icecasthls/icecasthls/internal/rendezvous"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Entry binds one Destination to the rendezvous.Sync its owning source
// thread pushes events through, plus the tagmap entry (or nil) this
// destination's tags are rewritten against.
type Entry struct {
	Dest    *destination.Destination
	Sync    *rendezvous.Sync
	TagMap  tagMapEntry
	quit    *atomic.Bool
	done    chan rendezvous.Status
}

type tagMapEntry interface {
	Apply(src *tag.List, policy tag.MergePolicy, unknownPolicy tag.UnknownPolicy) tag.List
}

// New opens dest against srcFrame and wires a fresh rendezvous.Sync whose
// handlers drive dest's frame/tag/flush/eof lifecycle. recv is the
// frame.Receiver dest.Open returned, reused directly by OnFrame.
// counters (may be nil) records per-stage activity for the SIGUSR1 dump:
// each successfully pushed frame bumps StageOutput, each flush/EOF bumps
// StageMux, the muxer being the stage whose segment boundary the flush
// ultimately resolves.
func New(dest *destination.Destination, srcFrame frame.Source, tagMap tagMapEntry, shortflag *atomic.Bool, counters *observability.Counters) (*Entry, frame.Receiver, error) {
	recv, err := dest.Open(srcFrame)
	if err != nil {
		return nil, nil, err
	}

	e := &Entry{Dest: dest, TagMap: tagMap, quit: shortflag, done: make(chan rendezvous.Status, 1)}
	s := rendezvous.New()
	s.OnFrame = func(f *frame.Frame) rendezvous.Status {
		if err := recv.FrameSubmit(f); err != nil {
			e.triggerShortflag()
			return rendezvous.StatusUnknown
		}
		counters.Bump(observability.StageOutput)
		return rendezvous.StatusOK
	}
	s.OnTags = func(t *tag.List) rendezvous.Status {
		dest.HandleTags(e.TagMap, t)
		return rendezvous.StatusOK
	}
	s.OnFlush = func() rendezvous.Status {
		if err := recv.FrameFlush(); err != nil {
			return rendezvous.StatusUnknown
		}
		return rendezvous.StatusOK
	}
	s.OnEOF = func() rendezvous.Status {
		if err := dest.Flush(); err != nil {
			return rendezvous.StatusUnknown
		}
		counters.Bump(observability.StageMux)
		return rendezvous.StatusOK
	}
	e.Sync = s
	return e, recv, nil
}

// triggerShortflag marks this destination's shared stop-all-on-failure
// flag, the way a non-zero `status` write in the original's
// DestinationSync signals the source to stop pushing to every
// destination, not just this one.
func (e *Entry) triggerShortflag() {
	if e.quit != nil {
		e.quit.Store(true)
	}
}

// Run starts the destination's consumer loop in its own goroutine (one
// OS-scheduled goroutine per destination, per spec §5's threading
// model), reporting its final Status on Wait.
func (e *Entry) Run() {
	go func() { e.done <- e.Sync.Run() }()
}

// Wait blocks until the destination's consumer loop exits (on EOF or
// Quit) and returns its final status.
func (e *Entry) Wait() rendezvous.Status { return <-e.done }

// Close releases the destination's stage chain.
func (e *Entry) Close() error { return e.Dest.Close() }
