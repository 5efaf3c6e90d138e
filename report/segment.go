package report

import (
	"strings"
	"unicode/utf8"
)

// ContinuePrefix starts every segment of a split message except the first.
const ContinuePrefix = "-continue-"

// DefaultSegmentSize is the default maximum length of a log message, in bytes.
const DefaultSegmentSize = 3 * 1024

// Segment splits msg into pieces of at most size bytes, preferring to cut
// right after a newline. Every piece but the first is prefixed with
// ContinuePrefix on its own line. A size of zero or less disables splitting.
func Segment(msg string, size int) []string {
	if size <= 0 || len(msg) <= size {
		return []string{msg}
	}

	var segments []string

	rest := msg
	for len(rest) > size {
		end := cutIndex(rest, size)

		segments = appendSegment(segments, rest[:end])
		rest = rest[end:]
	}

	return appendSegment(segments, rest)
}

func appendSegment(segments []string, piece string) []string {
	if len(segments) == 0 {
		return append(segments, piece)
	}

	return append(segments, ContinuePrefix+"\n"+piece)
}

// cutIndex returns where to cut s so that the first piece is at most size
// bytes long.
func cutIndex(s string, size int) int {
	if i := strings.LastIndexByte(s[:size], '\n'); i >= 0 {
		return i + 1
	}

	end := size
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}

	if end == 0 {
		return size
	}

	return end
}
