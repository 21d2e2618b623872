// Package rendezvous implements the one-producer/one-consumer handoff
// between a source goroutine and a destination goroutine: the producer
// hands over a reference to one event, the consumer deep-copies it and
// releases the producer before acting on the copy, and a final status is
// always reported back so the producer never blocks forever on a
// destination that died mid-handoff.
package rendezvous

import (
	"github.com/icecasthls/icecasthls/internal/frame"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// EventType identifies what a Event carries.
type EventType int

const (
	Quit EventType = iota - 2
	Unknown
	EOF
	Open
	Frame
	Tags
	Flush
	Reset
)

// Event is one handoff unit. Exactly one of Frame/Tags is populated,
// depending on Type.
type Event struct {
	Type  EventType
	Frame *frame.Frame
	Tags  *tag.List
}

// Status is the destination's report on how it handled an Event.
type Status int

const (
	StatusUnknown Status = -1
	StatusOK      Status = 0
)

// Sync is the rendezvous point itself: the producer calls Send and blocks
// until the consumer (running Run in another goroutine) has deep-copied
// the event and reported a status.
type Sync struct {
	events   chan Event
	consumed chan Status

	// OnFrame/OnTags/OnOpen/OnFlush/OnReset/OnEOF are invoked from the
	// consumer's goroutine (inside Run) once the event has already been
	// deep-copied out of the producer's reference.
	OnOpen  func() Status
	OnFrame func(*frame.Frame) Status
	OnTags  func(*tag.List) Status
	OnFlush func() Status
	OnReset func() Status
	OnEOF   func() Status
}

// New builds a Sync ready for one Run goroutine and any number of Send
// callers (sends are expected to be serialized by the caller, matching
// the original's single-producer assumption).
func New() *Sync {
	return &Sync{
		events:   make(chan Event),
		consumed: make(chan Status),
	}
}

// Send hands ev to the consumer and blocks until it has been copied; the
// matching handler runs after Send returns. It returns the status reported
// at the handoff: StatusOK, or StatusUnknown for an unrecognised type.
func (s *Sync) Send(ev Event) Status {
	s.events <- ev
	return <-s.consumed
}

// Quit asks the consumer's Run loop to exit, returning its final status.
func (s *Sync) Quit() Status {
	return s.Send(Event{Type: Quit})
}

// Run is the destination thread's main loop: wait for an event, deep-copy
// whatever reference it carries, release the producer, then invoke the
// matching handler on the copy. It returns on a Quit event, on EOF (with
// OnEOF's status, or StatusOK), on an unrecognised event type, or as soon
// as any handler reports a non-OK status.
func (s *Sync) Run() Status {
	for {
		ev := <-s.events
		switch ev.Type {
		case Quit:
			s.consumed <- StatusOK
			return StatusOK
		case Frame:
			cp := deepCopyFrame(ev.Frame)
			s.consumed <- StatusOK
			if s.OnFrame != nil {
				if st := s.OnFrame(cp); st != StatusOK {
					return st
				}
			}
		case Tags:
			cp := deepCopyTags(ev.Tags)
			s.consumed <- StatusOK
			if s.OnTags != nil {
				if st := s.OnTags(cp); st != StatusOK {
					return st
				}
			}
		case Open:
			s.consumed <- StatusOK
			if s.OnOpen != nil {
				if st := s.OnOpen(); st != StatusOK {
					return st
				}
			}
		case Flush:
			s.consumed <- StatusOK
			if s.OnFlush != nil {
				if st := s.OnFlush(); st != StatusOK {
					return st
				}
			}
		case Reset:
			s.consumed <- StatusOK
			if s.OnReset != nil {
				if st := s.OnReset(); st != StatusOK {
					return st
				}
			}
		case EOF:
			s.consumed <- StatusOK
			if s.OnEOF != nil {
				return s.OnEOF()
			}
			return StatusOK
		default:
			s.consumed <- StatusUnknown
			return StatusUnknown
		}
	}
}

func deepCopyFrame(f *frame.Frame) *frame.Frame {
	if f == nil {
		return nil
	}
	cp := &frame.Frame{
		Format:     f.Format,
		Channels:   f.Channels,
		SampleRate: f.SampleRate,
		Duration:   f.Duration,
		PTS:        f.PTS,
	}
	cp.Planes = make([][]byte, len(f.Planes))
	for i, p := range f.Planes {
		cp.Planes[i] = append([]byte(nil), p...)
	}
	if f.Packet != nil {
		pkt := *f.Packet
		pkt.Data = append([]byte(nil), f.Packet.Data...)
		cp.Packet = &pkt
	}
	return cp
}

func deepCopyTags(t *tag.List) *tag.List {
	if t == nil {
		return nil
	}
	cp := &tag.List{}
	for _, item := range t.All() {
		cp.AddPriority(item.Key, item.Value, item.Priority)
	}
	return cp
}
