package tree

import (
	"strings"

	"github.com/valyala/bytebufferpool"
)

const (
	separator   = '/'
	paramMarker = ':'
)

// Split breaks path into its non-empty '/' separated segments.
// Leading, trailing and repeated separators are dropped, so "/a//b/" and
// "a/b" both give ["a" "b"]. It never fails; "" and "/" give no segments.
func Split(path string) []string {
	segments := make([]string, 0, strings.Count(path, "/")+1)

	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] != separator {
			continue
		}
		if i > start {
			segments = append(segments, path[start:i])
		}
		start = i + 1
	}

	if start < len(path) {
		segments = append(segments, path[start:])
	}

	return segments
}

// Join renders segments back into a rooted path. Zero segments give "/".
func Join(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for _, s := range segments {
		buf.WriteByte(separator)
		buf.WriteString(s)
	}

	return buf.String()
}

// IsParam reports whether segment is a parameter segment.
func IsParam(segment string) bool {
	return len(segment) > 0 && segment[0] == paramMarker
}

// ParamName returns the parameter name of a parameter segment, or "" for a
// literal one.
func ParamName(segment string) string {
	if !IsParam(segment) {
		return ""
	}
	return segment[1:]
}

// appendSegment extends a pattern-path as accumulated during Match.
func appendSegment(patternPath, segment string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if patternPath != "/" {
		buf.WriteString(patternPath)
	}
	buf.WriteByte(separator)
	buf.WriteString(segment)

	return buf.String()
}
