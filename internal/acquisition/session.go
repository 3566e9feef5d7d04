// Package acquisition collects the nine schema parameters one question at a time.
//
// The state machine is a pure transition over State; Session keeps the current
// State for a single operator and Runner serializes submissions that may arrive
// from several goroutines.
package acquisition

import (
	"errors"

	"github.com/zeto-space/exoclassify/internal/schema"
)

// ErrSessionComplete is returned when an answer is submitted after the last question.
var ErrSessionComplete = errors.New("acquisition session is complete")

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusComplete   Status = "complete"
)

// OutputKind tells the presentation layer what an Output carries.
type OutputKind string

const (
	OutputRejected OutputKind = "rejected"
	OutputAccepted OutputKind = "accepted"
	OutputPrompt   OutputKind = "prompt"
	OutputComplete OutputKind = "complete"
)

const (
	acceptedText = "Got it! Next parameter..."
	completeText = "Perfect! I have all the data I need. Initiating Zeto deep space analysis..."
)

// Output is one informational message produced by a transition.
type Output struct {
	Kind   OutputKind     `json:"kind"`
	Text   string         `json:"text"`
	Record *schema.Record `json:"record,omitempty"`
}

// Answer is one accepted value.
type Answer struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// State is the value held between submissions. The zero value is a fresh session.
type State struct {
	values [schema.Size]float64
	cursor int
}

// Cursor is the index of the next unanswered entry (0..9).
func (s State) Cursor() int { return s.cursor }

// Status reports whether answers are still being collected.
func (s State) Status() Status {
	if s.cursor >= schema.Size {
		return StatusComplete
	}
	return StatusCollecting
}

// Answered lists accepted answers in schema order.
func (s State) Answered() []Answer {
	out := make([]Answer, 0, s.cursor)
	for i := 0; i < s.cursor; i++ {
		e, _ := schema.At(i)
		out = append(out, Answer{Key: e.Key, Value: s.values[i]})
	}
	return out
}

// Prompt regenerates the question for the current cursor. It is empty once complete.
func (s State) Prompt() string {
	e, ok := schema.At(s.cursor)
	if !ok {
		return ""
	}
	return e.Question()
}

// Record returns the collected values once the session is complete.
func (s State) Record() (schema.Record, bool) {
	if s.Status() != StatusComplete {
		return schema.Record{}, false
	}
	rec, err := schema.FromValues(s.values)
	return rec, err == nil
}

// Current returns the schema entry awaiting an answer.
func (s State) Current() (schema.Entry, bool) {
	return schema.At(s.cursor)
}

// Advance applies one raw answer to s and returns the next state and the
// messages to show. Rejected answers leave the state untouched.
func Advance(s State, raw string) (State, []Output, error) {
	entry, ok := s.Current()
	if !ok {
		return s, nil, ErrSessionComplete
	}

	value, err := schema.ValidateRaw(entry.Key, raw)
	if err != nil {
		return s, []Output{{Kind: OutputRejected, Text: schema.Message(err)}}, nil
	}

	next := s
	next.values[next.cursor] = value
	next.cursor++

	if next.cursor == schema.Size {
		rec, err := schema.FromValues(next.values)
		if err != nil {
			// ValidateRaw only admits finite values, so this is unreachable in practice.
			return s, []Output{{Kind: OutputRejected, Text: schema.Message(err)}}, nil
		}
		return next, []Output{{Kind: OutputComplete, Text: completeText, Record: &rec}}, nil
	}

	return next, []Output{
		{Kind: OutputAccepted, Text: acceptedText},
		{Kind: OutputPrompt, Text: next.Prompt()},
	}, nil
}

// Greeting returns the opening lines of a conversation, ending with the first question.
func Greeting() []Output {
	return []Output{
		{Kind: OutputAccepted, Text: "Hello, Commander! I'm Zeto, your AI exoplanet detection assistant. I'll help you analyze astronomical data to determine if we've found a new world."},
		{Kind: OutputAccepted, Text: "I need to collect some parameters from your observations. Let's begin!"},
		{Kind: OutputPrompt, Text: State{}.Prompt()},
	}
}

// Session holds the state of one operator's conversation. It is not safe for
// concurrent use; wrap it in a Runner when submissions can race.
type Session struct {
	state State
}

// NewSession starts an empty session at the first question.
func NewSession() *Session {
	return &Session{}
}

// Submit applies one answer.
func (s *Session) Submit(raw string) ([]Output, error) {
	next, outputs, err := Advance(s.state, raw)
	if err != nil {
		return nil, err
	}
	s.state = next
	return outputs, nil
}

// State returns a snapshot of the session.
func (s *Session) State() State { return s.state }

// Prompt regenerates the current question.
func (s *Session) Prompt() string { return s.state.Prompt() }

// FinalRecord extracts the completed record from a transition's outputs.
func FinalRecord(outputs []Output) (schema.Record, bool) {
	for _, o := range outputs {
		if o.Kind == OutputComplete && o.Record != nil {
			return *o.Record, true
		}
	}
	return schema.Record{}, false
}
