// Package config loads the pipeline's single INI configuration file:
// an `[options]` section plus repeated `[source.<id>]`,
// `[destination.<id>]`, and `[tagmap.<id>]` sections, each carrying a
// handful of recognized keys and an arbitrary bag of stage-prefixed
// keys handed to the named stage's own Configure call.
package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// StageConfig is the ordered list of raw key/value pairs a stage
// receives via its own Configure(key, value) method, preserving file
// order the way repeated tagmap rules or muxer options rely on.
type StageConfig struct {
	Keys   []string
	Values map[string]string
}

func newStageConfig() StageConfig {
	return StageConfig{Values: map[string]string{}}
}

func (s *StageConfig) set(key, value string) {
	if _, ok := s.Values[key]; !ok {
		s.Keys = append(s.Keys, key)
	}
	s.Values[key] = value
}

// Options holds `[options]` keys.
type Options struct {
	StopOnSourceEnding bool
	LogLevel           string // trace|debug|info|warn|error|fatal
}

// Source holds one `[source.<id>]` section: the four stage selectors
// plus each stage's prefixed configuration (input-*, demuxer-*,
// decoder-*, filter-*).
type Source struct {
	ID      string
	Input   string
	Demuxer string
	Decoder string
	Filter  string

	InputConfig   StageConfig
	DemuxerConfig StageConfig
	DecoderConfig StageConfig
	FilterConfig  StageConfig
}

// Destination holds one `[destination.<id>]` section.
type Destination struct {
	ID            string
	Source        string // required: the source id this destination pulls from
	TagMap        string // tagmap id, or "disable"
	Images        string // keep|inband|out-of-band|remove
	UnknownTags   string // ignore|txxx
	DuplicateTags string // ignore|null|semicolon
	Filter        string
	Encoder       string
	Muxer         string
	Output        string

	FilterConfig  StageConfig
	EncoderConfig StageConfig
	MuxerConfig   StageConfig
	OutputConfig  StageConfig
}

// TagMapRule is one `<source-key> = <4-char-id3-name> [priority=<u8>]`
// line inside a `[tagmap.<id>]` section.
type TagMapRule struct {
	SourceKey   string
	DestName    string
	HasPriority bool
	Priority    uint8
}

// TagMap holds one `[tagmap.<id>]` section's ordered rule list.
type TagMap struct {
	ID    string
	Rules []TagMapRule
}

// Config is the fully-parsed INI file.
type Config struct {
	Options      Options
	Sources      []Source
	Destinations []Destination
	TagMaps      []TagMap
}

// SourceByID looks up a parsed source section by id.
func (c *Config) SourceByID(id string) (*Source, bool) {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// TagMapByID looks up a parsed tagmap section by id.
func (c *Config) TagMapByID(id string) (*TagMap, bool) {
	for i := range c.TagMaps {
		if c.TagMaps[i].ID == id {
			return &c.TagMaps[i], true
		}
	}
	return nil, false
}

// Load parses path as the single INI configuration file described by
// spec §6.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: true}, path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %q: %w", path, err)
	}

	cfg := &Config{
		Options: Options{StopOnSourceEnding: true, LogLevel: "info"},
	}

	sectionNames := f.SectionStrings()
	sort.Strings(sectionNames)

	for _, name := range sectionNames {
		sec := f.Section(name)
		switch {
		case name == "options" || name == ini.DefaultSection:
			if v := sec.Key("stop-on-source-ending").String(); v != "" {
				cfg.Options.StopOnSourceEnding = v == "true"
			}
			if v := sec.Key("log-level").String(); v != "" {
				cfg.Options.LogLevel = v
			}
		case strings.HasPrefix(name, "source."):
			src, err := parseSource(strings.TrimPrefix(name, "source."), sec)
			if err != nil {
				return nil, err
			}
			cfg.Sources = append(cfg.Sources, src)
		case strings.HasPrefix(name, "destination."):
			dst, err := parseDestination(strings.TrimPrefix(name, "destination."), sec)
			if err != nil {
				return nil, err
			}
			cfg.Destinations = append(cfg.Destinations, dst)
		case strings.HasPrefix(name, "tagmap."):
			tm, err := parseTagMap(strings.TrimPrefix(name, "tagmap."), sec)
			if err != nil {
				return nil, err
			}
			cfg.TagMaps = append(cfg.TagMaps, tm)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSource(id string, sec *ini.Section) (Source, error) {
	s := Source{
		ID:            id,
		InputConfig:   newStageConfig(),
		DemuxerConfig: newStageConfig(),
		DecoderConfig: newStageConfig(),
		FilterConfig:  newStageConfig(),
	}
	last := ""
	for _, key := range sec.Keys() {
		name := key.Name()
		value := key.String()
		switch {
		case name == "input":
			s.Input = value
			last = name
		case name == "demuxer":
			s.Demuxer = value
			last = name
		case name == "decoder":
			s.Decoder = value
			last = name
		case name == "filter":
			s.Filter = value
			last = name
		case strings.HasPrefix(name, "input-"):
			s.InputConfig.set(strings.TrimPrefix(name, "input-"), value)
		case strings.HasPrefix(name, "demuxer-"):
			s.DemuxerConfig.set(strings.TrimPrefix(name, "demuxer-"), value)
		case strings.HasPrefix(name, "decoder-"):
			s.DecoderConfig.set(strings.TrimPrefix(name, "decoder-"), value)
		case strings.HasPrefix(name, "filter-"):
			s.FilterConfig.set(strings.TrimPrefix(name, "filter-"), value)
		default:
			// Bare key after a stage selector defaults to the last
			// stage named in this section (spec §6).
			target := lastStageTarget(&s, last)
			if target == nil {
				return s, fmt.Errorf("config: source.%s: key %q with no preceding stage selector", id, name)
			}
			target.set(name, value)
		}
	}
	if s.Input == "" {
		return s, fmt.Errorf("config: source.%s: input is required", id)
	}
	return s, nil
}

// lastStageTarget returns the StageConfig for the selector named last
// (the most recent input/demuxer/decoder/filter key read from the
// section), implementing "bare keys default to the last stage
// selector" for source sections. It returns nil if no selector has
// been seen yet.
func lastStageTarget(s *Source, last string) *StageConfig {
	switch last {
	case "filter":
		return &s.FilterConfig
	case "decoder":
		return &s.DecoderConfig
	case "demuxer":
		return &s.DemuxerConfig
	case "input":
		return &s.InputConfig
	default:
		return nil
	}
}

func parseDestination(id string, sec *ini.Section) (Destination, error) {
	d := Destination{
		ID:            id,
		Images:        "keep",
		UnknownTags:   "ignore",
		DuplicateTags: "ignore",
		FilterConfig:  newStageConfig(),
		EncoderConfig: newStageConfig(),
		MuxerConfig:   newStageConfig(),
		OutputConfig:  newStageConfig(),
	}
	for _, key := range sec.Keys() {
		name := key.Name()
		value := key.String()
		switch {
		case name == "source":
			d.Source = value
		case name == "tagmap":
			d.TagMap = value
		case name == "images":
			d.Images = value
		case name == "unknown-tags":
			d.UnknownTags = value
		case name == "duplicate-tags":
			d.DuplicateTags = value
		case name == "filter":
			d.Filter = value
		case name == "encoder":
			d.Encoder = value
		case name == "muxer":
			d.Muxer = value
		case name == "output":
			d.Output = value
		case strings.HasPrefix(name, "filter-"):
			d.FilterConfig.set(strings.TrimPrefix(name, "filter-"), value)
		case strings.HasPrefix(name, "encoder-"):
			d.EncoderConfig.set(strings.TrimPrefix(name, "encoder-"), value)
		case strings.HasPrefix(name, "muxer-"):
			d.MuxerConfig.set(strings.TrimPrefix(name, "muxer-"), value)
		case strings.HasPrefix(name, "output-"):
			d.OutputConfig.set(strings.TrimPrefix(name, "output-"), value)
		default:
			return d, fmt.Errorf("config: destination.%s: unrecognized key %q", id, name)
		}
	}
	if d.Source == "" {
		return d, fmt.Errorf("config: destination.%s: source is required", id)
	}
	return d, nil
}

func parseTagMap(id string, sec *ini.Section) (TagMap, error) {
	tm := TagMap{ID: id}
	for _, key := range sec.Keys() {
		rule, err := parseTagMapRule(key.Name(), key.String())
		if err != nil {
			return tm, fmt.Errorf("config: tagmap.%s: %w", id, err)
		}
		tm.Rules = append(tm.Rules, rule)
	}
	return tm, nil
}

// parseTagMapRule parses `<dest-name> [priority=<u8>]`, the grammar
// `tagmap.c` uses for each rule's value.
func parseTagMapRule(sourceKey, value string) (TagMapRule, error) {
	rule := TagMapRule{SourceKey: sourceKey}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return rule, fmt.Errorf("empty rule for %q", sourceKey)
	}
	rule.DestName = fields[0]
	for _, tok := range fields[1:] {
		if p, ok := strings.CutPrefix(tok, "priority="); ok {
			var n uint8
			if _, err := fmt.Sscanf(p, "%d", &n); err != nil {
				return rule, fmt.Errorf("invalid priority token %q", tok)
			}
			rule.HasPriority = true
			rule.Priority = n
		}
	}
	return rule, nil
}

func (c *Config) validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if !validLevels[c.Options.LogLevel] {
		return fmt.Errorf("config: options.log-level must be one of trace|debug|info|warn|error|fatal, got %q", c.Options.LogLevel)
	}
	for _, d := range c.Destinations {
		if _, ok := c.SourceByID(d.Source); !ok {
			return fmt.Errorf("config: destination.%s: unknown source %q", d.ID, d.Source)
		}
		if d.TagMap != "" && d.TagMap != "disable" {
			if _, ok := c.TagMapByID(d.TagMap); !ok {
				return fmt.Errorf("config: destination.%s: unknown tagmap %q", d.ID, d.TagMap)
			}
		}
	}
	return nil
}
