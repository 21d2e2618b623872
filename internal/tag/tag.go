// Package tag implements the ordered metadata records (tags) that flow
// alongside audio through the pipeline, the user-configured rewrite
// tables (tag maps) that translate them into destination-container tag
// names, and the merge/unknown-tag policies applied when several source
// tags collide on one destination name.
package tag

import (
	"sort"
	"strconv"
	"strings"
)

// Tag is one metadata record: a lowercase key, a value, and a priority
// used to break ties when several source tags map to the same
// destination name.
type Tag struct {
	Key      string
	Value    string
	Priority uint8
}

// List is an ordered sequence of Tags. Source-side lists may contain
// duplicate keys; mapping to a TagMap deduplicates per the configured
// merge policy.
type List struct {
	tags []Tag
}

// Add appends a tag, preserving insertion order and duplicates.
func (l *List) Add(key, value string) {
	l.tags = append(l.tags, Tag{Key: strings.ToLower(key), Value: value})
}

// AddPriority appends a tag with an explicit priority.
func (l *List) AddPriority(key, value string, priority uint8) {
	l.tags = append(l.tags, Tag{Key: strings.ToLower(key), Value: value, Priority: priority})
}

// All returns the tags in insertion order. The returned slice must not be
// mutated by callers.
func (l *List) All() []Tag { return l.tags }

// Len returns the number of tags, including duplicates.
func (l *List) Len() int { return len(l.tags) }

// Find returns every tag matching key, in insertion order.
func (l *List) Find(key string) []Tag {
	key = strings.ToLower(key)
	var out []Tag
	for _, t := range l.tags {
		if t.Key == key {
			out = append(out, t)
		}
	}
	return out
}

// Reset discards all tags, keeping the underlying storage for reuse.
func (l *List) Reset() { l.tags = l.tags[:0] }

// MergePolicy controls how multiple source tags mapped to one destination
// name are combined.
type MergePolicy uint8

const (
	// MergeIgnore keeps only the highest-priority value (ties broken by
	// first occurrence), discarding the rest.
	MergeIgnore MergePolicy = iota
	// MergeNullJoin concatenates values in priority order separated by a
	// NUL byte.
	MergeNullJoin
	// MergeSemicolonJoin concatenates values in priority order separated
	// by "; ".
	MergeSemicolonJoin
)

// UnknownPolicy controls handling of source tags with no matching TagMap
// rule.
type UnknownPolicy uint8

const (
	// UnknownIgnore drops tags with no mapping rule.
	UnknownIgnore UnknownPolicy = iota
	// UnknownTXXX maps them to a generic ID3 TXXX-style frame keyed by
	// the original source tag name.
	UnknownTXXX
)

// Entry is one destination-side rewrite rule set: a name used to link
// destinations to a configured map, and the source-key -> destination-name
// rules under it.
type Entry struct {
	ID    string
	Rules List // Key = lowercased source tag key, Value = destination tag name
}

// Map is a named collection of TagMap entries, addressable by id.
type Map struct {
	entries []*Entry
}

// Find returns the entry with the given id, or nil.
func (m *Map) Find(id string) *Entry {
	for _, e := range m.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Configure parses one `[tagmap.<id>] <key> = <value>` line and installs
// (or extends) the entry for id. value is
// "<4-char-id3-name> [whitespace] [priority=<u8>]"; the destination name's
// first 4 bytes are uppercased (the ID3 frame-id convention) and any
// remainder is preserved verbatim. A trailing whitespace-separated
// "priority=<u8>" token sets the rule's priority; its absence defaults to
// priority 0.
func (m *Map) Configure(id, key, value string) error {
	e := m.Find(id)
	if e == nil {
		e = &Entry{ID: id}
		m.entries = append(m.entries, e)
	}
	return entryConfigure(&e.Rules, key, value)
}

func entryConfigure(rules *List, key, value string) error {
	destName := value
	priority := uint8(0)

	if idx := indexWhitespace(value); idx >= 0 {
		destName = value[:idx]
		rest := strings.TrimLeft(value[idx:], " \t")
		if after, ok := strings.CutPrefix(rest, "priority="); ok {
			if after != "" {
				n, err := strconv.ParseUint(after, 10, 8)
				if err != nil {
					return err
				}
				priority = uint8(n)
			}
		}
	}

	if len(destName) < 4 {
		return ErrTagNameTooShort
	}

	upper := strings.ToUpper(destName[:4]) + destName[4:]
	rules.AddPriority(strings.ToLower(key), upper, priority)
	return nil
}

func indexWhitespace(s string) int {
	return strings.IndexAny(s, " \t")
}

// Apply maps src through the entry's rules, producing one Tag per
// distinct destination name, combined per policy. Source tags with no
// matching rule are handled per unknownPolicy.
func (e *Entry) Apply(src *List, policy MergePolicy, unknownPolicy UnknownPolicy) List {
	type bucket struct {
		dest string
		vals []Tag
	}
	byDest := map[string]*bucket{}
	var order []string

	for _, t := range src.All() {
		rules := e.Rules.Find(t.Key)
		if len(rules) == 0 {
			switch unknownPolicy {
			case UnknownTXXX:
				dest := "TXXX:" + t.Key
				b, ok := byDest[dest]
				if !ok {
					b = &bucket{dest: dest}
					byDest[dest] = b
					order = append(order, dest)
				}
				b.vals = append(b.vals, Tag{Key: t.Key, Value: t.Value})
			case UnknownIgnore:
				// dropped
			}
			continue
		}
		for _, rule := range rules {
			b, ok := byDest[rule.Value]
			if !ok {
				b = &bucket{dest: rule.Value}
				byDest[rule.Value] = b
				order = append(order, rule.Value)
			}
			b.vals = append(b.vals, Tag{Key: t.Key, Value: t.Value, Priority: rule.Priority})
		}
	}

	var out List
	for _, dest := range order {
		b := byDest[dest]
		sort.SliceStable(b.vals, func(i, j int) bool { return b.vals[i].Priority > b.vals[j].Priority })
		switch policy {
		case MergeIgnore:
			out.Add(dest, b.vals[0].Value)
		case MergeNullJoin:
			out.Add(dest, joinValues(b.vals, "\x00"))
		case MergeSemicolonJoin:
			out.Add(dest, joinValues(b.vals, "; "))
		}
	}
	return out
}

func joinValues(tags []Tag, sep string) string {
	vals := make([]string, len(tags))
	for i, t := range tags {
		vals[i] = t.Value
	}
	return strings.Join(vals, sep)
}
