// Package paragraphs splits message content into paragraphs. A paragraph is a
// contiguous span of text separated from its neighbors by one or more blank
// lines.
package paragraphs

import (
	"regexp"
	"strings"
)

// paragraphBreak matches a conventional paragraph break: a newline, optional
// whitespace, then at least one further newline. Interior whitespace absorbs
// runs of consecutive blank lines into a single break.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Split breaks content into an ordered list of paragraphs. Each paragraph is
// trimmed of surrounding whitespace and stripped of carriage returns; pieces
// that are empty after trimming are dropped. Empty or whitespace-only input
// yields nil.
//
// Split is idempotent: splitting the blank-line rejoin of its output
// reproduces the same sequence.
func Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	pieces := paragraphBreak.Split(content, -1)

	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.ReplaceAll(piece, "\r", "")

		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		out = append(out, piece)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// Join is the inverse used for the paragraph cache round-trip: paragraphs
// joined by a blank line.
func Join(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}
