package mcq

import (
	"fmt"
	"strings"
)

// Лимиты Telegram для quiz-опросов.
const (
	MaxQuestionLen = 300
	MaxOptionLen   = 100
	OptionCount    = 4
)

// Record: провалидированный вопрос, готовый к отправке опросом.
type Record struct {
	Question     string
	Options      [OptionCount]string
	CorrectIndex int // 0..3
}

// CorrectLetter returns the answer letter A..D.
func (r Record) CorrectLetter() string {
	return string(rune('A' + r.CorrectIndex))
}

// Rule identifies which invariant a segment broke.
type Rule string

const (
	RuleShape          Rule = "shape"
	RuleQuestionLength Rule = "question_length"
	RuleOptionLength   Rule = "option_length"
	RuleAnswerLetter   Rule = "answer_letter"
)

// Violation: одно нарушение правила с пояснением.
type Violation struct {
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	if v.Detail == "" {
		return string(v.Rule)
	}
	return string(v.Rule) + ": " + v.Detail
}

// Rejection explains why a segment produced no record.
// Rule is the first violated rule; Violations lists every rule that failed.
type Rejection struct {
	Rule       Rule
	Violations []Violation
	Segment    string
}

func (r Rejection) Error() string {
	parts := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("mcq rejected (%s)", strings.Join(parts, "; "))
}

// Result is either a valid record or a rejection, never both.
type Result struct {
	Record    *Record
	Rejection *Rejection
}

func Valid(r Record) Result { return Result{Record: &r} }

func Invalid(segment string, vs ...Violation) Result {
	rj := &Rejection{Violations: vs, Segment: segment}
	if len(vs) > 0 {
		rj.Rule = vs[0].Rule
	}
	return Result{Rejection: rj}
}

func (r Result) OK() bool { return r.Record != nil }

// Batch: итог разбора всех сегментов одного ответа модели, в исходном порядке.
type Batch struct {
	Records    []Record
	Rejections []Rejection
}

// RejectedBy counts rejections per first-violated rule.
func (b Batch) RejectedBy() map[Rule]int {
	out := make(map[Rule]int, len(b.Rejections))
	for _, rj := range b.Rejections {
		out[rj.Rule]++
	}
	return out
}
