// Package wiring assembles a parsed config.Config into a runnable
// pipeline: one source.Source and one internal/sourcelist.Entry per
// `[source.*]` section, with every `[destination.*]` section's
// destination.Destination registered against the sourcelist.Entry its
// `source=` key names, and referenced tagmap sections compiled into
// tag.Map entries ready for destination.HandleTags.
package wiring

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/icecasthls/icecasthls/internal/config"
	"github.com/icecasthls/icecasthls/internal/destination"
	"github.com/icecasthls/icecasthls/internal/observability"
	"github.com/icecasthls/icecasthls/internal/sourcelist"
	"github.com/icecasthls/icecasthls/internal/source"
	"github.com/icecasthls/icecasthls/internal/tag"
)

// Pipeline is a fully wired set of sources and their bound destinations,
// ready to run one goroutine per source.
type Pipeline struct {
	Entries         []*sourcelist.Entry
	Counters        *observability.Counters
	StopOnSourceEnd bool
}

// Build compiles cfg's tagmaps, constructs every source and destination,
// and binds destinations to their source's sourcelist.Entry. It does not
// start any goroutine; call Run (or drive each Entry yourself) once
// Build succeeds.
func Build(cfg *config.Config) (*Pipeline, error) {
	tagMaps, err := compileTagMaps(cfg.TagMaps)
	if err != nil {
		return nil, err
	}

	shortflag := &atomic.Bool{}
	counters := observability.New()
	p := &Pipeline{StopOnSourceEnd: cfg.Options.StopOnSourceEnding, Counters: counters}

	entries := make(map[string]*sourcelist.Entry, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		src, err := source.New(sc)
		if err != nil {
			return nil, fmt.Errorf("wiring: %w", err)
		}
		entry := sourcelist.New(src, shortflag, counters)
		entries[sc.ID] = entry
		p.Entries = append(p.Entries, entry)
	}

	for _, dc := range cfg.Destinations {
		entry, ok := entries[dc.Source]
		if !ok {
			return nil, fmt.Errorf("wiring: destination.%s: unknown source %q", dc.ID, dc.Source)
		}

		dest, err := destination.New(dc)
		if err != nil {
			return nil, fmt.Errorf("wiring: %w", err)
		}

		// Declared as a bare interface (not *tag.Entry) so an unconfigured
		// tagmap leaves a true nil interface behind rather than a non-nil
		// interface wrapping a nil *tag.Entry, which would make entry !=
		// nil checks downstream misfire.
		var tagMap interface {
			Apply(src *tag.List, policy tag.MergePolicy, unknownPolicy tag.UnknownPolicy) tag.List
		}
		if dc.TagMap != "" && dc.TagMap != "disable" {
			e := tagMaps.Find(dc.TagMap)
			if e == nil {
				return nil, fmt.Errorf("wiring: destination.%s: unknown tagmap %q", dc.ID, dc.TagMap)
			}
			tagMap = e
		}

		entry.AddDestination(dest, tagMap)
	}

	for _, entry := range p.Entries {
		entry.Start()
	}
	return p, nil
}

// compileTagMaps converts the parsed `[tagmap.*]` sections into a
// tag.Map, replaying each rule through tag.Map.Configure the way the
// original `<4-char-id3-name> [priority=<u8>]` grammar is parsed.
func compileTagMaps(cfgMaps []config.TagMap) (*tag.Map, error) {
	m := &tag.Map{}
	for _, cm := range cfgMaps {
		for _, rule := range cm.Rules {
			value := rule.DestName
			if rule.HasPriority {
				value += " priority=" + strconv.Itoa(int(rule.Priority))
			}
			if err := m.Configure(cm.ID, rule.SourceKey, value); err != nil {
				return nil, fmt.Errorf("wiring: tagmap.%s: %w", cm.ID, err)
			}
		}
	}
	return m, nil
}

// Run launches every source on its own goroutine (spec §5's "one OS
// thread per Source") and blocks until all of them finish, returning the
// first error any of them reported.
func (p *Pipeline) Run() error {
	errs := make(chan error, len(p.Entries))
	for _, entry := range p.Entries {
		entry := entry
		go func() { errs <- entry.Run() }()
	}

	var first error
	for range p.Entries {
		if err := <-errs; err != nil && first == nil {
			first = err
			if p.StopOnSourceEnd {
				p.Cancel()
			}
		}
	}
	for _, entry := range p.Entries {
		entry.Wait()
	}
	return first
}

// Cancel issues an emergency QUIT to every destination of every source,
// for process shutdown (SIGINT/SIGTERM) without waiting for a clean EOF.
func (p *Pipeline) Cancel() {
	for _, entry := range p.Entries {
		entry.Cancel()
	}
}

// Close releases every source's and destination's stage chain.
func (p *Pipeline) Close() error {
	var first error
	for _, entry := range p.Entries {
		if err := entry.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
