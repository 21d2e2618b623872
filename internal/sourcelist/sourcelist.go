// Package sourcelist implements the other half of the concurrency model
// (spec §5): one source goroutine per configured source, which runs its
// pull chain and, for each frame/tag list it produces, pushes
// synchronously and in order to every bound destination's rendezvous.Sync
// before moving on to the next item.
package sourcelist

import (
	"sync/atomic"

	"github.com/icecasthls/icecasthls/internal/destination"
	"github.com/icecasthls/icecasthls/internal/destinationlist"
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/observability"
	"github.com/icecasthls/icecasthls/internal/rendezvous"
	"github.com/icecasthls/icecasthls/internal/source"
	"github.com/icecasthls/icecasthls/internal/tag"
)

type tagMapEntry interface {
	Apply(src *tag.List, policy tag.MergePolicy, unknownPolicy tag.UnknownPolicy) tag.List
}

type destBuilder struct {
	dest   *destination.Destination
	tagMap tagMapEntry
}

// Entry binds one source.Source to the destinations that pull from it.
// Destinations are only opened once the source's frame format is known
// (its first decoded packet), so AddDestination records builders and
// Start defers the real Open/Run to the source's format callback.
type Entry struct {
	Src      *source.Source
	builders []destBuilder

	dests []*destinationlist.Entry
	quit  []bool // per-destination: true once that destination's own handler reported an error

	shortflag *atomic.Bool // process-wide stop-all-on-one-failure flag (spec §5)
	counters  *observability.Counters
}

// New builds an Entry for src. shortflag is the process-wide flag any
// destination across the whole pipeline can set to force every source to
// stop pushing to every destination. counters (may be nil) records
// per-stage activity for the SIGUSR1 dump.
func New(src *source.Source, shortflag *atomic.Bool, counters *observability.Counters) *Entry {
	return &Entry{Src: src, shortflag: shortflag, counters: counters}
}

// AddDestination registers dest (and its resolved tagmap entry, or nil)
// to be opened and driven by this source once its frame format is known.
func (e *Entry) AddDestination(dest *destination.Destination, tagMap tagMapEntry) {
	e.builders = append(e.builders, destBuilder{dest: dest, tagMap: tagMap})
}

// Start wires this source's format/tag/frame callbacks. Call before Run.
func (e *Entry) Start() {
	e.Src.SetFormatHandler(e.openDestinations)
	e.Src.SetTagHandler(func(t *tag.List) { e.sendTags(t) })
}

// openDestinations opens every registered destination against srcFrame
// and launches its consumer goroutine, then wires this source's frame
// output into the fanout — all before the triggering packet reaches the
// decoder, so no frame can be dropped.
func (e *Entry) openDestinations(srcFrame frame.Source) error {
	for _, b := range e.builders {
		entry, _, err := destinationlist.New(b.dest, srcFrame, b.tagMap, e.shortflag, e.counters)
		if err != nil {
			return err
		}
		entry.Run()
		e.dests = append(e.dests, entry)
		e.quit = append(e.quit, false)
	}
	e.Src.SetFrameReceiver(&fanout{e})
	return nil
}

// Run opens and drives the source to completion on the calling
// goroutine (the caller is expected to have already launched this on its
// own goroutine, one per spec §5's "one OS thread per Source").
func (e *Entry) Run() error {
	if err := e.Src.Open(); err != nil {
		return err
	}
	return e.Src.Run()
}

// Wait blocks until every bound destination's consumer loop has exited.
func (e *Entry) Wait() {
	for _, d := range e.dests {
		d.Wait()
	}
}

// Cancel issues an emergency QUIT to every destination without waiting
// for a response, for process shutdown (spec §5's "emergency
// cancellation").
func (e *Entry) Cancel() {
	for _, d := range e.dests {
		go d.Sync.Quit()
	}
}

// Close releases the source's own stage chain and every bound
// destination's.
func (e *Entry) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(e.Src.Close())
	for _, d := range e.dests {
		record(d.Close())
	}
	return first
}

func (e *Entry) sendFrame(f *frame.Frame) {
	e.counters.Bump(observability.StageDecode)
	if e.shortflag.Load() {
		e.markAllQuit()
	}
	for i, d := range e.dests {
		if e.quit[i] {
			continue
		}
		if st := d.Sync.Send(rendezvous.Event{Type: rendezvous.Frame, Frame: f}); st != rendezvous.StatusOK {
			e.quit[i] = true
		}
	}
}

func (e *Entry) sendTags(t *tag.List) {
	if e.shortflag.Load() {
		e.markAllQuit()
	}
	for i, d := range e.dests {
		if e.quit[i] {
			continue
		}
		if st := d.Sync.Send(rendezvous.Event{Type: rendezvous.Tags, Tags: t}); st != rendezvous.StatusOK {
			e.quit[i] = true
		}
	}
}

func (e *Entry) sendEOF() {
	for i, d := range e.dests {
		if e.quit[i] {
			continue
		}
		d.Sync.Send(rendezvous.Event{Type: rendezvous.EOF})
	}
}

func (e *Entry) markAllQuit() {
	for i := range e.quit {
		e.quit[i] = true
	}
}

// fanout is the frame.Receiver Source.Run pushes filtered frames and the
// final flush into, once openDestinations has wired it in; it implements
// the one-at-a-time, in-order push to every bound destination spec §5
// describes.
type fanout struct{ e *Entry }

func (f *fanout) FrameSubmit(fr *frame.Frame) error {
	f.e.sendFrame(fr)
	return nil
}

func (f *fanout) FrameFlush() error {
	f.e.sendEOF()
	return nil
}
