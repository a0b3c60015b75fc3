package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// keySeparator joins canonical segments. It never occurs in canonical JSON
// because JSON escapes control characters.
const keySeparator = "\x00"

// Key addresses a cached value.
//
// A key is an ordered sequence of segments: an entity-type tag, an optional
// qualifier such as "list" or "detail", an optional filter object and an
// optional id. Two keys are equal iff their segments are deeply equal; map
// segments are compared by value, so property order never matters.
type Key []any

// ID returns the canonical string form of the key. Equal keys have equal IDs.
func (k Key) ID() string {
	return strings.Join(k.segments(), keySeparator)
}

// Equal reports whether k and other address the same entry.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	return k.ID() == other.ID()
}

// HasPrefix reports whether the first len(prefix) segments of k equal prefix.
// Every key has the empty key as a prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return hasPrefix(k.segments(), prefix.segments())
}

// Contains reports whether any segment of k equals seg.
func (k Key) Contains(seg any) bool {
	want := canonicalSegment(seg)
	for _, s := range k.segments() {
		if s == want {
			return true
		}
	}
	return false
}

// Append returns a new key with segs added after the segments of k.
// k itself is never modified.
func (k Key) Append(segs ...any) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// EntityType returns the entity-type tag, the first segment of the key.
func (k Key) EntityType() string {
	if len(k) == 0 {
		return ""
	}
	if s, ok := k[0].(string); ok {
		return s
	}
	return fmt.Sprint(k[0])
}

// String returns a human readable form such as ["computers" "detail" "c1"].
func (k Key) String() string {
	return "[" + strings.Join(k.segments(), " ") + "]"
}

func (k Key) segments() []string {
	segs := make([]string, len(k))
	for i, s := range k {
		segs[i] = canonicalSegment(s)
	}
	return segs
}

func hasPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}

func canonicalSegment(v any) string {
	b, err := canonicalize(v)
	if err != nil {
		// Unencodable segments (funcs, channels) still need a stable form.
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return canonicalString(val)
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

// canonicalString encodes s as JSON. Invalid UTF-8 is Go-quoted instead,
// since JSON maps every invalid byte to U+FFFD. JSON never emits a \x
// escape, so the two forms cannot collide.
func canonicalString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return []byte(strconv.Quote(s)), nil
	}
	return json.Marshal(s)
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := canonicalString(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
