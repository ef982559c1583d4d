package mcq

import (
	"fmt"
	"strings"
)

const DefaultLanguage = "Arabic"

// Truncate keeps the first max characters of text. The second value reports a cut.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 {
		return text, false
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// BuildPrompt renders the generation instruction. Same inputs always give the same prompt.
func BuildPrompt(text string, count int, language string) string {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d MCQs in %s from the text below.\n", count, language)
	b.WriteString("The questions should cover the key information and concepts of the entire provided text.\n\n")
	b.WriteString("STRICT FORMAT (EACH PART ON A NEW LINE):\n")
	b.WriteString("Question: [Question text, can be multi-line]\n")
	b.WriteString("A) [Option A text]\n")
	b.WriteString("B) [Option B text]\n")
	b.WriteString("C) [Option C text]\n")
	b.WriteString("D) [Option D text]\n")
	b.WriteString("Correct Answer: [Correct option letter: A, B, C, or D]\n")
	b.WriteString(separatorSequence + " (separator line, USED BETWEEN EACH MCQ, BUT NOT after the last MCQ)\n\n")
	b.WriteString("Text:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("1. Each question MUST have exactly 4 options (A, B, C, D).\n")
	b.WriteString("2. Question text must be 10-290 characters long.\n")
	b.WriteString("3. Each option text must be 1-90 characters long.\n")
	b.WriteString("4. The \"Correct Answer:\" line is CRITICAL and must be present for every MCQ.\n")
	b.WriteString("5. The \"Correct Answer:\" must be a single letter A, B, C or D matching one of the options.\n")
	b.WriteString("6. Distractors must be plausible but clearly incorrect based on the text.\n")
	b.WriteString("7. Output only the MCQs: no numbering, introductions, explanations or closing remarks.\n")
	return b.String()
}
