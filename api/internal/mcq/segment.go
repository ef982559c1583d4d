package mcq

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

const (
	answerMarker      = "Correct Answer:"
	fourthOptionMark  = "D)"
	separatorSequence = "---"
)

// Разделитель: строка, состоящая только из "---" (пробелы/табы по краям допустимы).
var reSeparator = regexp.MustCompile(`(?m)^[ \t]*---[ \t]*\r?$`)

// Segments lazily yields candidate MCQ segments of a raw model response in source order.
// Pieces are trimmed; empty pieces and pieces missing either the answer marker or
// the fourth option marker are skipped.
func Segments(blob string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if strings.TrimSpace(blob) == "" {
			return
		}
		for _, piece := range reSeparator.Split(blob, -1) {
			piece = strings.TrimSpace(piece)
			if !candidate(piece) {
				continue
			}
			if !yield(piece) {
				return
			}
		}
	}
}

// Split is Segments collected into a slice.
func Split(blob string) []string {
	return slices.Collect(Segments(blob))
}

// Join builds a blob from segments the way the model is asked to.
func Join(segments ...string) string {
	return strings.Join(segments, "\n"+separatorSequence+"\n")
}

func candidate(piece string) bool {
	return piece != "" &&
		strings.Contains(piece, answerMarker) &&
		strings.Contains(piece, fourthOptionMark)
}

// Dropped counts non-empty pieces that did not pass the marker prefilter.
func Dropped(blob string) int {
	n := 0
	for _, piece := range reSeparator.Split(blob, -1) {
		piece = strings.TrimSpace(piece)
		if piece != "" && !candidate(piece) {
			n++
		}
	}
	return n
}
