package input

import (
	"strings"

	"github.com/icecasthls/icecasthls/internal/tag"
)

// parseICYMetadata decodes one ICY metadata chunk's ASCII payload (already
// stripped of the leading length byte and trailing NUL padding) into a tag
// list. The grammar is "StreamTitle='...';StreamUrl='...';" repeated for
// any other key the broadcaster chooses to send; per the original
// tolerant parser, an apostrophe is only treated as the closing quote
// when it is immediately followed by ";<key>=" or end-of-string —
// apostrophes that appear inside the value itself (e.g. a song title
// like "Ol' Man River") are kept literal.
func parseICYMetadata(payload string) *tag.List {
	list := &tag.List{}
	rest := payload
	for {
		eq := strings.Index(rest, "='")
		if eq < 0 {
			break
		}
		key := rest[:eq]
		rest = rest[eq+2:]

		end := findClosingQuote(rest)
		if end < 0 {
			list.Add(key, rest)
			break
		}
		list.Add(key, rest[:end])
		rest = rest[end+1:]
		rest = strings.TrimPrefix(rest, ";")
	}
	return list
}

// findClosingQuote returns the index of the apostrophe in s that closes a
// StreamTitle-style value: one immediately followed by ";<ident>=" or by
// end-of-string. Any other apostrophe is part of the value.
func findClosingQuote(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		after := s[i+1:]
		if after == "" {
			return i
		}
		if strings.HasPrefix(after, ";") {
			rest := after[1:]
			if j := strings.IndexByte(rest, '='); j >= 0 && isIdent(rest[:j]) {
				return i
			}
		}
	}
	return -1
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
