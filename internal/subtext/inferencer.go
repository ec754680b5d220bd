package subtext

import (
	"fmt"
	"strings"
	"sync"

	"ccb/internal/textutil"
)

// Signal names produced by the inferencer.
const (
	SignalSeekingHelp          = "seeking_help"
	SignalSeekingValidation    = "seeking_validation"
	SignalSeekingEmpathy       = "seeking_empathy"
	SignalSeekingClarification = "seeking_clarification"
	SignalApologetic           = "apologetic"
	SignalGratitude            = "gratitude"
	SignalTopicShift           = "topic_shift"
	SignalSeekingSupport       = "seeking_support"
	SignalExcitement           = "expressing_excitement"
	SignalEmphasis             = "emphasis"
	SignalVenting              = "venting"
)

// Result is one inference outcome. Signals keep their append order; Primary
// is always the first signal, so identical (text, emotion, intent) inputs
// always select the same primary.
type Result struct {
	Primary    string   `json:"primary,omitempty"`
	Signals    []string `json:"signals"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

type signalGroup struct {
	name   string
	signal string
	cues   []string
}

func defaultSignalGroups() []signalGroup {
	return []signalGroup{
		{"help_seeking", SignalSeekingHelp, []string{
			"help", "need advice", "what should i do", "can you guide", "how do i", "assist me",
		}},
		{"validation_seeking", SignalSeekingValidation, []string{
			"does that make sense", "am i right", "is this correct", "do you think", "validate",
		}},
		{"empathy_seeking", SignalSeekingEmpathy, []string{
			"i'm tired", "i am tired", "burned out", "overwhelmed", "stressed",
			"exhausted", "drained", "fatigued",
		}},
		{"clarification", SignalSeekingClarification, []string{
			"i don't understand", "i'm confused", "not clear", "clarify",
			"explain again", "unclear",
		}},
		{"apologetic", SignalApologetic, []string{
			"sorry", "my apologies", "forgive me",
		}},
		{"gratitude", SignalGratitude, []string{
			"thanks", "thank you", "much appreciated", "grateful",
		}},
		{"topic_shift", SignalTopicShift, []string{
			"by the way", "btw", "speaking of", "changing topic",
		}},
		// Emphasis cues are reserved for extension; the emphasis signal
		// itself comes from intent and punctuation conditioning.
		{"emphasis", SignalEmphasis, []string{
			"!", "literally", "absolutely", "completely", "totally",
		}},
	}
}

// Inferencer layers goal-oriented signals over the raw cue detector, folding
// in the already-computed emotion and intent labels.
type Inferencer struct {
	mu     sync.RWMutex
	groups []signalGroup
}

// NewInferencer returns an inferencer with the default signal groups.
func NewInferencer() *Inferencer {
	return &Inferencer{groups: defaultSignalGroups()}
}

// Infer detects implied goals for one utterance. Keyword groups fire first,
// in registry order; emotion conditioning, intent conditioning, and the
// bare-exclamation fallback follow. Empty input yields a zero-confidence
// result, never an error.
func (f *Inferencer) Infer(text, emotionLabel, intentLabel string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Confidence: 0.0, Rationale: "Empty input"}
	}
	t := textutil.Normalize(text)

	f.mu.RLock()
	defer f.mu.RUnlock()

	var signals []string
	add := func(signal string) {
		for _, have := range signals {
			if have == signal {
				return
			}
		}
		signals = append(signals, signal)
	}

	for _, g := range f.groups {
		// The emphasis group only participates through conditioning below.
		if g.signal == SignalEmphasis {
			continue
		}
		for _, cue := range g.cues {
			if strings.Contains(t, cue) {
				add(g.signal)
				break
			}
		}
	}

	// Emotion conditioning.
	if emotionLabel == "tired" || strings.Contains(t, "exhausted") {
		add(SignalSeekingEmpathy)
	}
	if emotionLabel == "joy" && strings.Contains(text, "!") {
		add(SignalExcitement)
	}
	if emotionLabel == "sadness" {
		add(SignalSeekingSupport)
	}

	// Intent conditioning.
	if intentLabel == "exclamation" {
		add(SignalEmphasis)
	}
	if intentLabel == "emotional_expression" && (emotionLabel == "sadness" || emotionLabel == "anger") {
		add(SignalVenting)
	}

	// Unattributed exclamation still reads as emphasis.
	if strings.Contains(text, "!") && !contains(signals, SignalExcitement) {
		add(SignalEmphasis)
	}

	result := Result{
		Signals:   signals,
		Rationale: "Heuristic pattern detection with emotion/intent cues",
	}
	if len(signals) > 0 {
		result.Primary = signals[0]
		result.Confidence = 0.7
	} else {
		result.Confidence = 0.4
	}
	return result
}

// InferExplanation echoes inputs alongside the inference.
type InferExplanation struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
	Intent  string `json:"intent,omitempty"`
	Result
}

// Explain bundles the inference with its inputs.
func (f *Inferencer) Explain(text, emotionLabel, intentLabel string) InferExplanation {
	return InferExplanation{
		Text:    text,
		Emotion: emotionLabel,
		Intent:  intentLabel,
		Result:  f.Infer(text, emotionLabel, intentLabel),
	}
}

// AddCues extends an existing signal group. Unknown groups are an error.
func (f *Inferencer) AddCues(category string, cues []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.groups {
		if f.groups[i].name == category {
			f.groups[i].cues = append(f.groups[i].cues, cues...)
			return nil
		}
	}
	return fmt.Errorf("unknown cue category: %s", category)
}

// Categories lists signal group names in evaluation order.
func (f *Inferencer) Categories() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, len(f.groups))
	for i, g := range f.groups {
		names[i] = g.name
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
