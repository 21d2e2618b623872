package demuxer

import (
	"github.com/icecasthls/icecasthls/internal/packet"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Auto sniffs the first few bytes of the stream to pick a concrete
// demuxer, then delegates every subsequent call to it.
type Auto struct {
	delegate Stage
	pending  []kv
}

// NewAuto builds an unconfigured Auto demuxer.
func NewAuto() *Auto { return &Auto{} }

func (a *Auto) Configure(key, value string) error {
	// Configure always precedes Open, before the delegate is known, so
	// keys are buffered and replayed once sniffing picks one.
	a.pending = append(a.pending, kv{key, value})
	return nil
}

type kv struct{ key, value string }

func (a *Auto) Close() error {
	if a.delegate == nil {
		return nil
	}
	return a.delegate.Close()
}

func (a *Auto) Open(r Reader, recv packet.Receiver, tags func(*tag.List)) error {
	magic := make([]byte, 4)
	n := 0
	for n < 4 {
		read, err := r.Read(magic[n:])
		n += read
		if err != nil {
			break
		}
		if read == 0 {
			break
		}
	}

	var delegate Stage
	switch {
	case n >= 4 && string(magic[:4]) == "OggS":
		delegate = NewOgg()
	case n >= 4 && string(magic[:4]) == "fLaC":
		delegate = NewFLAC()
	default:
		delegate = NewGeneric()
	}
	for _, p := range a.pending {
		if err := delegate.Configure(p.key, p.value); err != nil {
			return err
		}
	}
	a.delegate = delegate
	return delegate.Open(&prefixedReader{prefix: magic[:n], r: r}, recv, tags)
}

func (a *Auto) Codec() packet.Codec {
	if a.delegate == nil {
		return packet.CodecUnknown
	}
	return a.delegate.Codec()
}

func (a *Auto) Run() int {
	if a.delegate == nil {
		return -1
	}
	return a.delegate.Run()
}

// prefixedReader replays the bytes already consumed while sniffing
// before falling through to the underlying reader.
type prefixedReader struct {
	prefix []byte
	r      Reader
}

func (p *prefixedReader) Read(dest []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(dest, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.r.Read(dest)
}
