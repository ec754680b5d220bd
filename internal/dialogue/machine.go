// Package dialogue tracks the conversation phase through a closed
// seven-state machine. Advance is a pure function of (current phase, intent,
// primary subtext); the machine only stores the current phase.
package dialogue

import (
	"fmt"
	"strings"
)

// Phase is one node of the conversation state machine.
type Phase int

const (
	Idle Phase = iota
	Greeting
	Request
	Clarification
	Followup
	EmotionalSupport
	Closing
)

var phaseNames = map[Phase]string{
	Idle:             "IDLE",
	Greeting:         "GREETING",
	Request:          "REQUEST",
	Clarification:    "CLARIFICATION",
	Followup:         "FOLLOWUP",
	EmotionalSupport: "EMOTIONAL_SUPPORT",
	Closing:          "CLOSING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText renders the phase as its wire name.
func (p Phase) MarshalText() ([]byte, error) {
	if _, ok := phaseNames[p]; !ok {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses a wire name, case-insensitively.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase maps a name to a Phase, case-insensitively. Unknown names are
// an error; the catalog is closed.
func ParsePhase(s string) (Phase, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for p, name := range phaseNames {
		if name == want {
			return p, nil
		}
	}
	return Idle, fmt.Errorf("unknown conversation phase %q", s)
}

// Phases lists the catalog in order.
func Phases() []Phase {
	return []Phase{Idle, Greeting, Request, Clarification, Followup, EmotionalSupport, Closing}
}

// Transition records one phase change with its trigger and rationale.
type Transition struct {
	Previous  Phase  `json:"previous"`
	Current   Phase  `json:"current"`
	Rationale string `json:"rationale"`
	Intent    string `json:"intent"`
	Subtext   string `json:"subtext,omitempty"`
}

// Machine holds the current phase. Not safe for concurrent use; callers
// serialize turns, matching the single-threaded pipeline contract.
type Machine struct {
	current Phase
}

// New returns a machine starting at the given phase. The phase must belong
// to the catalog.
func New(initial Phase) (*Machine, error) {
	if _, ok := phaseNames[initial]; !ok {
		return nil, fmt.Errorf("invalid initial phase %d", int(initial))
	}
	return &Machine{current: initial}, nil
}

// NewFromLabel is New with a parsed phase name.
func NewFromLabel(label string) (*Machine, error) {
	p, err := ParsePhase(label)
	if err != nil {
		return nil, err
	}
	return New(p)
}

// Current returns the phase the machine is in.
func (m *Machine) Current() Phase {
	return m.current
}

// Advance applies one turn's intent and primary subtext and returns the
// resulting transition. The fallback keeps the current phase, except from
// IDLE where any unmatched intent moves to FOLLOWUP.
func (m *Machine) Advance(intentLabel, primarySubtext string) Transition {
	previous := m.current
	m.current = nextPhase(previous, intentLabel, primarySubtext)

	parts := []string{fmt.Sprintf("Intent=%s", intentLabel)}
	if primarySubtext != "" {
		parts = append(parts, fmt.Sprintf("Subtext=%s", primarySubtext))
	}
	return Transition{
		Previous:  previous,
		Current:   m.current,
		Rationale: strings.Join(parts, "; "),
		Intent:    intentLabel,
		Subtext:   primarySubtext,
	}
}

// Reset forces the machine back to IDLE.
func (m *Machine) Reset() {
	m.current = Idle
}

func nextPhase(current Phase, intentLabel, primarySubtext string) Phase {
	switch intentLabel {
	case "greeting":
		return Greeting
	case "question", "instruction", "math", "code", "request":
		if primarySubtext == "seeking_clarification" {
			return Clarification
		}
		return Request
	case "correction", "narrative", "chit_chat", "feedback", "opinion":
		return Followup
	case "emotional_expression", "emotional_state", "emotional_positive", "emotional_negative":
		return EmotionalSupport
	case "closing", "goodbye":
		return Closing
	}
	if current == Idle {
		return Followup
	}
	return current
}

var phaseDescriptions = map[Phase]string{
	Idle:             "No active conversation; waiting for input.",
	Greeting:         "User greeted or initiated conversation.",
	Request:          "User asked a question or gave instruction.",
	Clarification:    "User seeks clarification or elaboration.",
	Followup:         "User continues, corrects, or adds narrative.",
	EmotionalSupport: "User expressed emotions needing support.",
	Closing:          "User ended the conversation.",
}

// Describe returns the human-readable meaning of a phase.
func Describe(p Phase) string {
	if d, ok := phaseDescriptions[p]; ok {
		return d
	}
	return "Unknown phase."
}
