package subscribe

import "strings"

// Pattern matching for subscriptions. A pattern without '*' is an exact
// match against the full field. A pattern with '*' matches when the literal
// portion before the wildcard is a prefix of the field; for streams the
// wildcard must additionally take over at a segment boundary, so "/net*"
// matches "/net" and "/net/x" but not "/network-old". Naive
// strip-the-star prefix matching would accept the latter.

// MatchStream reports whether a stream satisfies pattern.
func MatchStream(pattern, stream string) bool {
	wildcard := strings.IndexByte(pattern, '*')
	if wildcard < 0 {
		return pattern == stream
	}
	literal := pattern[:wildcard]
	if !strings.HasPrefix(stream, literal) {
		return false
	}
	if literal == "" || strings.HasSuffix(literal, "/") {
		return true
	}
	rest := stream[len(literal):]
	return rest == "" || rest[0] == '/'
}

// MatchEventName reports whether an event name satisfies pattern. Event
// names have no segments, so the wildcard is a plain prefix match.
func MatchEventName(pattern, name string) bool {
	wildcard := strings.IndexByte(pattern, '*')
	if wildcard < 0 {
		return pattern == name
	}
	return strings.HasPrefix(name, pattern[:wildcard])
}
