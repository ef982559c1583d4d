package mcq_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcq-bot/api/internal/mcq"
)

func segment(question, a, b, c, d, answer string) string {
	return "Question: " + question + "\nA) " + a + "\nB) " + b + "\nC) " + c + "\nD) " + d + "\nCorrect Answer: " + answer
}

func TestParse_WellFormedSegment(t *testing.T) {
	res := mcq.Parse("Question: What is 2+2?\nA) 3\nB) 4\nC) 5\nD) 6\nCorrect Answer: B")

	require.True(t, res.OK())
	assert.Nil(t, res.Rejection)
	assert.Equal(t, "What is 2+2?", res.Record.Question)
	assert.Equal(t, [4]string{"3", "4", "5", "6"}, res.Record.Options)
	assert.Equal(t, 1, res.Record.CorrectIndex)
	assert.Equal(t, "B", res.Record.CorrectLetter())
}

func TestParse_MultiLineQuestionAndOption(t *testing.T) {
	seg := "Question: Read the statement:\n\"Water boils at 100C.\"\nIs it true at sea level?\n" +
		"A) Yes\nonly at sea level\nB) No\nC) Never\nD) Always\nCorrect Answer:\n a"

	res := mcq.Parse(seg)
	require.True(t, res.OK(), "%v", res.Rejection)
	assert.Equal(t, "Read the statement:\n\"Water boils at 100C.\"\nIs it true at sea level?", res.Record.Question)
	assert.Equal(t, "Yes\nonly at sea level", res.Record.Options[0])
	assert.Equal(t, 0, res.Record.CorrectIndex)
}

func TestParse_CaseInsensitiveLabels(t *testing.T) {
	seg := "question: Capital of France?\na) Paris\nb) Rome\n  c) Madrid\nd) Berlin\ncorrect answer: a"

	res := mcq.Parse(seg)
	require.True(t, res.OK(), "%v", res.Rejection)
	assert.Equal(t, "Madrid", res.Record.Options[2])
	assert.Equal(t, 0, res.Record.CorrectIndex)
}

func TestParse_LetterMapping(t *testing.T) {
	cases := map[string]int{"a": 0, "A": 0, "b": 1, "C": 2, "d": 3, "D": 3}
	for letter, want := range cases {
		res := mcq.Parse(segment("Q?", "1", "2", "3", "4", letter))
		require.True(t, res.OK(), letter)
		assert.Equal(t, want, res.Record.CorrectIndex, letter)
	}
}

func TestParse_Rejections(t *testing.T) {
	long := func(n int) string { return strings.Repeat("x", n) }

	tests := []struct {
		name string
		seg  string
		rule mcq.Rule
	}{
		{"answer outside A-D", segment("Q?", "1", "2", "3", "4", "E"), mcq.RuleAnswerLetter},
		{"answer with punctuation", segment("Q?", "1", "2", "3", "4", "B."), mcq.RuleAnswerLetter},
		{"answer missing", segment("Q?", "1", "2", "3", "4", ""), mcq.RuleAnswerLetter},
		{"question too long", segment(long(301), "1", "2", "3", "4", "A"), mcq.RuleQuestionLength},
		{"question empty", segment("", "1", "2", "3", "4", "A"), mcq.RuleQuestionLength},
		{"option too long", segment("Q?", "1", long(101), "3", "4", "A"), mcq.RuleOptionLength},
		{"option empty", segment("Q?", "1", "2", "", "4", "A"), mcq.RuleOptionLength},
		{"leading prose", "Here you go:\n" + segment("Q?", "1", "2", "3", "4", "A"), mcq.RuleShape},
		{"trailing prose", segment("Q?", "1", "2", "3", "4", "A") + "\nHope this helps!", mcq.RuleShape},
		{"missing C", "Question: Q?\nA) 1\nB) 2\nD) 4\nCorrect Answer: A", mcq.RuleShape},
		{"out of order", "Question: Q?\nB) 2\nA) 1\nC) 3\nD) 4\nCorrect Answer: A", mcq.RuleShape},
		{"missing answer line", "Question: Q?\nA) 1\nB) 2\nC) 3\nD) 4", mcq.RuleShape},
		{"numbered question", "1. Q?\nA) 1\nB) 2\nC) 3\nD) 4\nCorrect Answer: A", mcq.RuleShape},
		{"two questions glued", segment("Q1?", "1", "2", "3", "4", "A") + "\n" + segment("Q2?", "1", "2", "3", "4", "B"), mcq.RuleShape},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := mcq.Parse(tc.seg)
			require.False(t, res.OK())
			assert.Nil(t, res.Record)
			require.NotNil(t, res.Rejection)
			assert.Equal(t, tc.rule, res.Rejection.Rule)
			assert.NotEmpty(t, res.Rejection.Error())
		})
	}
}

func TestParse_LengthBoundariesInclusive(t *testing.T) {
	for _, n := range []int{1, 300} {
		res := mcq.Parse(segment(strings.Repeat("q", n), "1", "2", "3", "4", "A"))
		assert.True(t, res.OK(), "question of %d characters", n)
	}
	for _, n := range []int{1, 100} {
		res := mcq.Parse(segment("Q?", strings.Repeat("o", n), "2", "3", "4", "A"))
		assert.True(t, res.OK(), "option of %d characters", n)
	}
	// длина считается в символах, а не в байтах
	res := mcq.Parse(segment(strings.Repeat("س", 300), "أ", "ب", "ج", "د", "A"))
	assert.True(t, res.OK())
}

func TestParse_AllViolationsReported(t *testing.T) {
	res := mcq.Parse(segment(strings.Repeat("q", 301), strings.Repeat("o", 101), "2", "3", "4", "Z"))

	require.NotNil(t, res.Rejection)
	assert.Equal(t, mcq.RuleQuestionLength, res.Rejection.Rule)
	rules := make([]mcq.Rule, 0, len(res.Rejection.Violations))
	for _, v := range res.Rejection.Violations {
		rules = append(rules, v.Rule)
	}
	assert.Equal(t, []mcq.Rule{mcq.RuleQuestionLength, mcq.RuleOptionLength, mcq.RuleAnswerLetter}, rules)
}

func TestParse_Totality(t *testing.T) {
	inputs := []string{
		"", "   ", "---", "Correct Answer: D)", "Question:", "A)\nB)\nC)\nD)\nCorrect Answer:",
		"Question: x\nA) 1\nB) 2\nC) 3\nD) 4\nCorrect Answer: A\nCorrect Answer: B",
		"\x00\xff\xfe", strings.Repeat("Question: ", 50),
	}
	for _, in := range inputs {
		res := mcq.Parse(in)
		assert.True(t, (res.Record == nil) != (res.Rejection == nil), "input %q", in)
	}
}

func TestParseAll_PartialFailure(t *testing.T) {
	segs := []string{
		segment("Q1?", "1", "2", "3", "4", "A"),
		segment("Q2?", "1", "2", "3", "4", "B"),
		"Question: Q3?\nA) 1\nB) 2\nD) 4\nCorrect Answer: C",
		segment("Q4?", "1", "2", "3", "4", "C"),
		segment("Q5?", "1", "2", "3", "4", "D"),
	}

	b := mcq.ParseAll(segs)

	require.Len(t, b.Records, 4)
	require.Len(t, b.Rejections, 1)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q4?", "Q5?"}, []string{
		b.Records[0].Question, b.Records[1].Question, b.Records[2].Question, b.Records[3].Question,
	})
	assert.Equal(t, map[mcq.Rule]int{mcq.RuleShape: 1}, b.RejectedBy())
	assert.Contains(t, b.Rejections[0].Segment, "Q3?")
}
