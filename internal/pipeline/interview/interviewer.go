// Package interview provides the human-in-the-loop question/answer
// protocol used by the wait.human node handler.
package interview

import (
	"context"
	"regexp"
)

// QuestionType discriminates how a Question's options should be
// presented and answered.
type QuestionType string

const (
	YesNo         QuestionType = "yes_no"
	MultipleChoice QuestionType = "multiple_choice"
	Freeform      QuestionType = "freeform"
	Confirmation  QuestionType = "confirmation"
)

// AnswerValue is a sentinel answer that carries no free-text payload.
type AnswerValue string

const (
	Yes     AnswerValue = "yes"
	No      AnswerValue = "no"
	Skipped AnswerValue = "skipped"
	Timeout AnswerValue = "timeout"
)

// Option is one selectable choice in a multiple-choice Question.
type Option struct {
	Key   string
	Label string
}

// Question is posed to a human operator by a wait.human node.
type Question struct {
	Text           string
	Type           QuestionType
	Options        []Option
	TimeoutSeconds float64
	Stage          string
	Metadata       map[string]interface{}
}

// Answer is the human's (or a stand-in's) response to a Question. Value
// holds either a free-text/selected-key string or one of the AnswerValue
// sentinels (Skipped, Timeout); Sentinel reports which applies.
type Answer struct {
	Value          string
	Sentinel       AnswerValue
	HasSentinel    bool
	SelectedOption *Option
	Text           string
}

var acceleratorBracket = regexp.MustCompile(`^\[(\w)\]\s+`)
var acceleratorParen = regexp.MustCompile(`^(\w)\)\s+`)
var acceleratorDash = regexp.MustCompile(`^(\w)\s+-\s+`)

// ParseAcceleratorKey extracts the accelerator key from label patterns
// like "[K] Label", "K) Label", or "K - Label", falling back to the
// label's first character.
func ParseAcceleratorKey(label string) string {
	for _, re := range []*regexp.Regexp{acceleratorBracket, acceleratorParen, acceleratorDash} {
		if m := re.FindStringSubmatch(label); m != nil {
			return upper(m[1])
		}
	}
	if label == "" {
		return ""
	}
	return upper(string(label[0]))
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// Interviewer is the interface a wait.human node asks questions through.
type Interviewer interface {
	Ask(ctx context.Context, q Question) (Answer, error)
	AskMultiple(ctx context.Context, qs []Question) ([]Answer, error)
	Inform(ctx context.Context, message, stage string) error
}

// AutoApprove always answers affirmatively or picks the first option —
// useful for CI/dry-run pipelines with no human attached.
type AutoApprove struct{}

func (AutoApprove) Ask(ctx context.Context, q Question) (Answer, error) {
	switch q.Type {
	case YesNo, Confirmation:
		return Answer{Sentinel: Yes, HasSentinel: true}, nil
	case MultipleChoice:
		if len(q.Options) > 0 {
			opt := q.Options[0]
			return Answer{Value: opt.Key, SelectedOption: &opt}, nil
		}
	}
	return Answer{Value: "auto-approved", Text: "auto-approved"}, nil
}

func (a AutoApprove) AskMultiple(ctx context.Context, qs []Question) ([]Answer, error) {
	out := make([]Answer, len(qs))
	for i, q := range qs {
		ans, err := a.Ask(ctx, q)
		if err != nil {
			return nil, err
		}
		out[i] = ans
	}
	return out, nil
}

func (AutoApprove) Inform(ctx context.Context, message, stage string) error { return nil }

// Queue answers questions from a pre-filled FIFO, for deterministic tests.
type Queue struct {
	answers []Answer
}

// NewQueue creates a Queue pre-seeded with answers.
func NewQueue(answers ...Answer) *Queue {
	q := &Queue{}
	q.answers = append(q.answers, answers...)
	return q
}

// Enqueue appends an answer to be returned by a future Ask call.
func (q *Queue) Enqueue(a Answer) { q.answers = append(q.answers, a) }

func (q *Queue) Ask(ctx context.Context, question Question) (Answer, error) {
	if len(q.answers) == 0 {
		return Answer{Sentinel: Skipped, HasSentinel: true}, nil
	}
	a := q.answers[0]
	q.answers = q.answers[1:]
	return a, nil
}

func (q *Queue) AskMultiple(ctx context.Context, qs []Question) ([]Answer, error) {
	out := make([]Answer, len(qs))
	for i, question := range qs {
		ans, err := q.Ask(ctx, question)
		if err != nil {
			return nil, err
		}
		out[i] = ans
	}
	return out, nil
}

func (q *Queue) Inform(ctx context.Context, message, stage string) error { return nil }

// Callback delegates Ask to a user-supplied function.
type Callback struct {
	Fn func(Question) Answer
}

func (c *Callback) Ask(ctx context.Context, q Question) (Answer, error) { return c.Fn(q), nil }

func (c *Callback) AskMultiple(ctx context.Context, qs []Question) ([]Answer, error) {
	out := make([]Answer, len(qs))
	for i, q := range qs {
		out[i] = c.Fn(q)
	}
	return out, nil
}

func (c *Callback) Inform(ctx context.Context, message, stage string) error { return nil }

// Recording wraps another Interviewer and records every exchange, for
// audit trails or test assertions.
type Recording struct {
	Inner       Interviewer
	Recordings  []struct {
		Question Question
		Answer   Answer
	}
}

func NewRecording(inner Interviewer) *Recording { return &Recording{Inner: inner} }

func (r *Recording) Ask(ctx context.Context, q Question) (Answer, error) {
	a, err := r.Inner.Ask(ctx, q)
	if err != nil {
		return a, err
	}
	r.Recordings = append(r.Recordings, struct {
		Question Question
		Answer   Answer
	}{q, a})
	return a, nil
}

func (r *Recording) AskMultiple(ctx context.Context, qs []Question) ([]Answer, error) {
	answers, err := r.Inner.AskMultiple(ctx, qs)
	if err != nil {
		return nil, err
	}
	for i, q := range qs {
		r.Recordings = append(r.Recordings, struct {
			Question Question
			Answer   Answer
		}{q, answers[i]})
	}
	return answers, nil
}

func (r *Recording) Inform(ctx context.Context, message, stage string) error {
	return r.Inner.Inform(ctx, message, stage)
}
