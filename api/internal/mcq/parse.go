package mcq

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Части сегмента в обязательном порядке.
const (
	partQuestion = iota
	partA
	partB
	partC
	partD
	partAnswer
	partCount
)

var partLabels = [partCount]string{
	partQuestion: "Question:",
	partA:        "A)",
	partB:        "B)",
	partC:        "C)",
	partD:        "D)",
	partAnswer:   "Correct Answer:",
}

// Parse turns one trimmed segment into a record or a rejection.
//
// Expected shape (labels are case-insensitive, label lines may be indented):
//
//	Question: <text, may continue on the next lines>
//	A) <text>
//	B) <text>
//	C) <text>
//	D) <text>
//	Correct Answer: <A|B|C|D>
//
// The whole segment must match: text before "Question:", a missing, repeated or
// out-of-order label, or anything after the answer letter rejects it with RuleShape.
func Parse(segment string) Result {
	seg := strings.TrimSpace(segment)

	var blocks [partCount][]string
	cur := -1
	for _, raw := range strings.Split(seg, "\n") {
		line := strings.TrimSpace(raw)
		if p, rest, ok := labelOf(line); ok {
			if p != cur+1 {
				return Invalid(seg, shapeViolation(cur, p))
			}
			cur = p
			blocks[p] = append(blocks[p], rest)
			continue
		}
		if cur < 0 {
			return Invalid(seg, Violation{Rule: RuleShape, Detail: "text before " + partLabels[partQuestion]})
		}
		blocks[cur] = append(blocks[cur], line)
	}
	if cur != partAnswer {
		return Invalid(seg, Violation{Rule: RuleShape, Detail: "missing " + partLabels[cur+1]})
	}

	answer := strings.Fields(joinBlock(blocks[partAnswer]))
	if len(answer) > 1 {
		return Invalid(seg, Violation{Rule: RuleShape, Detail: "trailing text after answer letter"})
	}

	var rec Record
	rec.Question = joinBlock(blocks[partQuestion])
	for i := 0; i < OptionCount; i++ {
		rec.Options[i] = joinBlock(blocks[partA+i])
	}

	var vs []Violation
	if n := utf8.RuneCountInString(rec.Question); n < 1 || n > MaxQuestionLen {
		vs = append(vs, Violation{
			Rule:   RuleQuestionLength,
			Detail: fmt.Sprintf("question has %d characters, want 1..%d", n, MaxQuestionLen),
		})
	}
	for i, opt := range rec.Options {
		if n := utf8.RuneCountInString(opt); n < 1 || n > MaxOptionLen {
			vs = append(vs, Violation{
				Rule:   RuleOptionLength,
				Detail: fmt.Sprintf("option %c has %d characters, want 1..%d", 'A'+i, n, MaxOptionLen),
			})
		}
	}
	letter := ""
	if len(answer) == 1 {
		letter = answer[0]
	}
	idx, ok := LetterIndex(letter)
	if !ok {
		vs = append(vs, Violation{
			Rule:   RuleAnswerLetter,
			Detail: fmt.Sprintf("answer %q is not one of A, B, C, D", letter),
		})
	}
	if len(vs) > 0 {
		return Invalid(seg, vs...)
	}
	rec.CorrectIndex = idx
	return Valid(rec)
}

// ParseAll parses every segment in order. A rejected segment never stops the batch.
func ParseAll(segments []string) Batch {
	var b Batch
	for _, s := range segments {
		res := Parse(s)
		if res.OK() {
			b.Records = append(b.Records, *res.Record)
			continue
		}
		b.Rejections = append(b.Rejections, *res.Rejection)
	}
	return b
}

// LetterIndex maps A..D (any case) to 0..3.
func LetterIndex(letter string) (int, bool) {
	if len(letter) != 1 {
		return 0, false
	}
	switch c := letter[0] | 0x20; c {
	case 'a', 'b', 'c', 'd':
		return int(c - 'a'), true
	}
	return 0, false
}

func labelOf(line string) (int, string, bool) {
	for p, l := range partLabels {
		if len(line) >= len(l) && strings.EqualFold(line[:len(l)], l) {
			return p, line[len(l):], true
		}
	}
	return 0, "", false
}

func shapeViolation(cur, got int) Violation {
	if cur < 0 {
		return Violation{Rule: RuleShape, Detail: "segment starts with " + partLabels[got] + " instead of " + partLabels[partQuestion]}
	}
	return Violation{
		Rule:   RuleShape,
		Detail: fmt.Sprintf("%s after %s, want %s", partLabels[got], partLabels[cur], nextLabel(cur)),
	}
}

func nextLabel(cur int) string {
	if cur+1 >= partCount {
		return "end of segment"
	}
	return partLabels[cur+1]
}

func joinBlock(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
