package hooks

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// privateTagRegex matches <private>...</private> tags and their contents.
var privateTagRegex = regexp.MustCompile(`(?is)<private>.*?</private>`)

// StripPrivate removes every <private> span from s and trims the rest.
func StripPrivate(s string) string {
	return strings.TrimSpace(removeSpans(s))
}

// removeSpans is StripPrivate without trimming, for file contents where
// surrounding whitespace is significant.
func removeSpans(s string) string {
	if !privateTagRegex.MatchString(s) {
		return s
	}
	return privateTagRegex.ReplaceAllString(s, "")
}

// IsFullyPrivate reports whether s is non-empty and nothing is left once
// its private spans are removed.
func IsFullyPrivate(s string) bool {
	return strings.TrimSpace(s) != "" && StripPrivate(s) == ""
}

// stripPrivateJSON removes private spans from every string inside a JSON
// value. Invalid JSON is dropped rather than forwarded unfiltered.
func stripPrivateJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !bytes.Contains(bytes.ToLower(raw), []byte("private")) {
		return raw
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	out, err := json.Marshal(scrub(v))
	if err != nil {
		return nil
	}
	return out
}

func scrub(v any) any {
	switch t := v.(type) {
	case string:
		return removeSpans(t)
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = scrub(t[k])
		}
		return t
	}
	return v
}
