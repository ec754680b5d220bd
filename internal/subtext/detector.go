// Package subtext surfaces pragmatic cues that sit underneath the literal
// intent of an utterance: hedging, sarcasm, emphasis, politeness, and the
// goal-oriented signals the inferencer layers on top. All outputs are
// ordered, de-duplicated sequences; the evaluation order printed in each
// method's documentation is the contract, so the first signal is stable
// across calls.
package subtext

import (
	"fmt"
	"strings"
	"sync"

	"ccb/internal/textutil"
)

// Detector cue category names, in evaluation order.
const (
	CueHedging      = "hedging"
	CueUncertainty  = "uncertainty"
	CueSarcasm      = "sarcasm"
	CueNegation     = "negation"
	CueEmphasis     = "emphasis"
	CuePoliteness   = "politeness"
	CueExaggeration = "exaggeration"
)

type cueCategory struct {
	name string
	cues []string
}

func defaultCueCategories() []cueCategory {
	return []cueCategory{
		{CueHedging, []string{
			"maybe", "perhaps", "kind of", "sort of", "i guess", "i think",
			"probably", "possibly", "could be", "might", "seems like",
		}},
		{CueUncertainty, []string{
			"not sure", "unsure", "confused", "uncertain", "don’t know",
			"don't know", "no idea", "lost", "unclear",
		}},
		{CueSarcasm, []string{
			"yeah right", "as if", "sure", "totally", "great", "amazing",
			"fantastic", "wonderful", "brilliant",
		}},
		{CueNegation, []string{
			"not", "never", "no", "none", "nothing", "cannot", "can't", "won't",
		}},
		{CueEmphasis, []string{
			"!", "all caps", "literally", "absolutely", "completely", "extremely",
		}},
		{CuePoliteness, []string{
			"please", "thank you", "thanks", "appreciate", "grateful",
		}},
		{CueExaggeration, []string{
			"always", "never", "everyone", "nobody", "forever", "completely", "totally",
		}},
	}
}

// Detector matches independent cue categories against lowered text.
// Safe for concurrent readers; AddCues is the only writer.
type Detector struct {
	mu         sync.RWMutex
	categories []cueCategory
}

// NewDetector returns a detector with the default cue registry.
func NewDetector() *Detector {
	return &Detector{categories: defaultCueCategories()}
}

// Detect returns the tags that apply to the text, in evaluation order:
// hedging, uncertainty, possible_sarcasm, emphasis, politeness,
// exaggeration. Sarcasm requires a positive-sounding cue and a negation cue
// together. Empty input yields nil.
func (d *Detector) Detect(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	t := strings.ToLower(text)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var tags []string
	add := func(tag string) {
		for _, have := range tags {
			if have == tag {
				return
			}
		}
		tags = append(tags, tag)
	}

	if d.anyCue(CueHedging, t) {
		add("hedging")
	}
	if d.anyCue(CueUncertainty, t) {
		add("uncertainty")
	}
	if d.anyCue(CueSarcasm, t) && d.anyCue(CueNegation, t) {
		add("possible_sarcasm")
	}
	if strings.Contains(text, "!") || strings.Contains(t, "all caps") || textutil.HasAllCapsToken(text) {
		add("emphasis")
	}
	if d.anyCue(CueEmphasis, t) {
		add("emphasis")
	}
	if d.anyCue(CuePoliteness, t) {
		add("politeness")
	}
	if d.anyCue(CueExaggeration, t) {
		add("exaggeration")
	}
	return tags
}

// DetectWithConfidence scores each cue category by distinct cue hits over
// word count, capped at 1.0. Categories with no hits are absent.
func (d *Detector) DetectWithConfidence(text string) map[string]float64 {
	if strings.TrimSpace(text) == "" {
		return map[string]float64{}
	}
	t := strings.ToLower(text)
	words := len(strings.Fields(t))
	if words < 1 {
		words = 1
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	scores := make(map[string]float64)
	for _, cat := range d.categories {
		hits := 0
		for _, cue := range cat.cues {
			if strings.Contains(t, cue) {
				hits++
			}
		}
		if hits > 0 {
			score := float64(hits) / float64(words)
			if score > 1.0 {
				score = 1.0
			}
			scores[cat.name] = score
		}
	}
	return scores
}

// Explanation reports tags, category scores, and per-tag rationale lines.
type Explanation struct {
	Text      string             `json:"text"`
	Tags      []string           `json:"tags"`
	Scores    map[string]float64 `json:"scores"`
	Rationale []string           `json:"rationale"`
}

// Explain bundles Detect and DetectWithConfidence for transparency.
func (d *Detector) Explain(text string) Explanation {
	tags := d.Detect(text)
	rationale := make([]string, len(tags))
	for i, tag := range tags {
		rationale[i] = fmt.Sprintf("Detected %s due to cues", tag)
	}
	return Explanation{
		Text:      text,
		Tags:      tags,
		Scores:    d.DetectWithConfidence(text),
		Rationale: rationale,
	}
}

// AddCues extends an existing category. Unknown categories are an error,
// never a silent attribute lookup.
func (d *Detector) AddCues(category string, cues []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.categories {
		if d.categories[i].name == category {
			d.categories[i].cues = append(d.categories[i].cues, cues...)
			return nil
		}
	}
	return fmt.Errorf("unknown cue category: %s", category)
}

// Categories lists cue category names in evaluation order.
func (d *Detector) Categories() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.categories))
	for i, cat := range d.categories {
		names[i] = cat.name
	}
	return names
}

func (d *Detector) anyCue(category, t string) bool {
	for _, cat := range d.categories {
		if cat.name != category {
			continue
		}
		for _, cue := range cat.cues {
			if strings.Contains(t, cue) {
				return true
			}
		}
		return false
	}
	return false
}
