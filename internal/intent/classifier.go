// Package intent classifies utterances into a fixed, ordered catalog of
// conversational intents using keyword and pattern rules. Matching is
// first-match-wins over the declared rule order, so classification is fully
// deterministic for a given registry. The registry is explicit: categories
// are added and removed through Register/Unregister, never discovered.
package intent

import (
	"fmt"
	"strings"
	"sync"

	"ccb/internal/textutil"
)

// Built-in intent labels. The catalog is open: registered categories may
// introduce new labels, and "unknown" is the fallback when nothing matches.
const (
	LabelGreeting    = "greeting"
	LabelClosing     = "closing"
	LabelQuestion    = "question"
	LabelInstruction = "instruction"
	LabelEmotional   = "emotional_expression"
	LabelMath        = "math"
	LabelCode        = "code"
	LabelCorrection  = "correction"
	LabelChitChat    = "chit_chat"
	LabelNarrative   = "narrative"
	LabelUnknown     = "unknown"
)

// Result is the outcome of classifying one utterance. Values are immutable
// once returned.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Explanation bundles the dominant result with every matching category, for
// diagnostics and transparency surfaces.
type Explanation struct {
	Text     string   `json:"text"`
	Dominant Result   `json:"dominant"`
	Matches  []Result `json:"all_matches"`
}

// Matcher reports whether normalized text (lowercased, whitespace-collapsed)
// triggers a category.
type Matcher func(normalized string) bool

// Rule is one entry of the ordered registry.
type Rule struct {
	Name       string
	Confidence float64
	Rationale  string
	Match      Matcher
}

var (
	greetingKeywords = []string{
		"hi", "hello", "hey", "good morning", "good evening", "good afternoon",
		"greetings", "yo", "hiya",
	}
	closingKeywords = []string{
		"bye", "goodbye", "see you", "thanks", "thank you", "cheers",
		"farewell", "later", "take care",
	}
	questionMarkers = []string{
		"what", "why", "how", "when", "where", "who", "which", "do you", "can you",
	}
	instructionKeywords = []string{
		"please", "can you", "could you", "help me", "show me", "explain",
		"walk me through", "build", "create", "generate", "write", "draft",
	}
	emotionKeywords = []string{
		"i feel", "i'm feeling", "i am feeling", "frustrated", "confused",
		"excited", "sad", "angry", "overwhelmed", "happy", "depressed", "lonely",
	}
	mathKeywords = []string{
		"solve", "equation", "integral", "derivative", "proof", "algebra",
		"geometry", "calculus", "matrix", "theorem",
	}
	codeKeywords = []string{
		"python", "javascript", "java", "c++", "code", "bug", "error",
		"stacktrace", "function", "class", "compile", "debug",
	}
	correctionKeywords = []string{
		"actually", "correction", "to clarify", "i meant", "not exactly",
	}
	chitChatKeywords = []string{
		"how are you", "what's up", "sup", "hows it going", "long time no see",
		"how have you been",
	}
)

// Classifier evaluates the ordered rule registry against incoming text.
// Safe for concurrent readers; Register/Unregister are the only writers.
type Classifier struct {
	mu    sync.RWMutex
	rules []Rule
}

// New returns a classifier loaded with the default catalog, in priority
// order. Earlier rules win over later ones.
func New() *Classifier {
	return &Classifier{rules: defaultRules()}
}

func defaultRules() []Rule {
	return []Rule{
		{LabelGreeting, 0.85, "Matched greeting keywords", containsAny(greetingKeywords)},
		{LabelClosing, 0.85, "Matched closing keywords", containsAny(closingKeywords)},
		{LabelQuestion, 0.80, "Question mark or interrogative detected", matchQuestion},
		{LabelInstruction, 0.75, "Instructional phrasing detected", containsAny(instructionKeywords)},
		{LabelEmotional, 0.70, "Emotion markers detected", containsAny(emotionKeywords)},
		{LabelMath, 0.70, "Math markers detected", containsAny(mathKeywords)},
		{LabelCode, 0.70, "Code markers detected", containsAny(codeKeywords)},
		{LabelCorrection, 0.60, "Correction markers detected", containsAny(correctionKeywords)},
		{LabelChitChat, 0.60, "Chit-chat pattern detected", containsAny(chitChatKeywords)},
		{LabelNarrative, 0.55, "Long statement without question", matchNarrative},
	}
}

// containsAny matches when any keyword appears as a substring of the
// normalized text.
func containsAny(keywords []string) Matcher {
	return func(normalized string) bool {
		for _, k := range keywords {
			if strings.Contains(normalized, k) {
				return true
			}
		}
		return false
	}
}

// matchQuestion fires on a question mark, or an interrogative marker at the
// start of the text or standing alone mid-sentence.
func matchQuestion(normalized string) bool {
	if strings.Contains(normalized, "?") {
		return true
	}
	for _, m := range questionMarkers {
		if strings.HasPrefix(normalized, m) || strings.Contains(normalized, " "+m+" ") {
			return true
		}
	}
	return false
}

// matchNarrative fires on long statements with no question mark.
func matchNarrative(normalized string) bool {
	return textutil.WordCount(normalized) > 20 && !strings.Contains(normalized, "?")
}

// Classify returns the first matching category in registry order.
// Empty or whitespace-only input yields the unknown label with zero
// confidence; text matching no category yields unknown at 0.4.
func (c *Classifier) Classify(text string) Result {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return Result{Label: LabelUnknown, Confidence: 0.0, Rationale: "Empty input"}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rules {
		if r.Match(normalized) {
			return Result{Label: r.Name, Confidence: r.Confidence, Rationale: r.Rationale}
		}
	}
	return Result{Label: LabelUnknown, Confidence: 0.4, Rationale: "No strong pattern match"}
}

// ClassifyAll returns every matching category in registry order. Useful when
// intents overlap. No matches at all yields a single unknown entry.
func (c *Classifier) ClassifyAll(text string) []Result {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return []Result{{Label: LabelUnknown, Confidence: 0.0, Rationale: "Empty input"}}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var matches []Result
	for _, r := range c.rules {
		if r.Match(normalized) {
			matches = append(matches, Result{Label: r.Name, Confidence: r.Confidence, Rationale: r.Rationale})
		}
	}
	if len(matches) == 0 {
		return []Result{{Label: LabelUnknown, Confidence: 0.4, Rationale: "No strong pattern match"}}
	}
	return matches
}

// Explain returns the dominant classification together with all matches.
func (c *Classifier) Explain(text string) Explanation {
	return Explanation{
		Text:     text,
		Dominant: c.Classify(text),
		Matches:  c.ClassifyAll(text),
	}
}

// Register appends a category to the end of the registry, just ahead of the
// implicit unknown fallback. Registering an existing name replaces that rule
// in place, keeping its position.
func (c *Classifier) Register(r Rule) error {
	if r.Name == "" {
		return fmt.Errorf("register intent rule: empty name")
	}
	if r.Match == nil {
		return fmt.Errorf("register intent rule %q: nil matcher", r.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rules {
		if c.rules[i].Name == r.Name {
			c.rules[i] = r
			return nil
		}
	}
	c.rules = append(c.rules, r)
	return nil
}

// Unregister removes a category by name. Removing an absent name is a no-op.
func (c *Classifier) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rules {
		if c.rules[i].Name == name {
			c.rules = append(c.rules[:i], c.rules[i+1:]...)
			return
		}
	}
}

// Categories lists registry names in evaluation order.
func (c *Classifier) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// KeywordRule builds a Rule matching any of the given keywords as
// substrings, for run-time registration.
func KeywordRule(name string, confidence float64, rationale string, keywords []string) Rule {
	kw := make([]string, len(keywords))
	for i, k := range keywords {
		kw[i] = textutil.Normalize(k)
	}
	return Rule{Name: name, Confidence: confidence, Rationale: rationale, Match: containsAny(kw)}
}
