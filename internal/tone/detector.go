// Package tone provides the richer sentiment variant of emotion detection:
// a coarse sentiment, an optional primary emotion, and a set of tonal
// qualifiers such as sarcasm and uncertainty.
package tone

import (
	"math"
	"strings"

	"ccb/internal/textutil"
)

// Sentiment values.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	positiveCues = []string{
		"great", "good", "awesome", "love", "happy", "excited", "glad", "relieved",
		"fantastic", "wonderful", "amazing", "excellent", "positive",
	}
	negativeCues = []string{
		"bad", "terrible", "hate", "sad", "angry", "upset", "annoyed", "frustrated",
		"confused", "overwhelmed", "awful", "horrible", "negative",
	}
	sarcasticCues = []string{
		"yeah right", "sure", "as if", "totally", "great...", "obviously", "of course",
	}
	uncertaintyCues = []string{
		"maybe", "not sure", "idk", "i don't know", "perhaps", "unsure", "uncertain",
	}
	neutralCues = []string{
		"okay", "fine", "alright", "normal", "average",
	}
)

// Result is one detection outcome. Tones is an ordered, de-duplicated
// sequence so repeated detections are byte-identical.
type Result struct {
	Sentiment  string   `json:"sentiment"`
	Primary    string   `json:"primary_emotion,omitempty"`
	Tones      []string `json:"tone"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Explanation echoes the input alongside the full result.
type Explanation struct {
	Text string `json:"text"`
	Result
}

// Detector is a stateless rule-based sentiment and tone detector.
type Detector struct{}

// New returns a ready detector.
func New() *Detector {
	return &Detector{}
}

// CueSets lists the cue categories in evaluation order with their phrases,
// for transparency and extension tooling.
func (d *Detector) CueSets() map[string][]string {
	return map[string][]string{
		"positive":    append([]string{}, positiveCues...),
		"negative":    append([]string{}, negativeCues...),
		"sarcastic":   append([]string{}, sarcasticCues...),
		"uncertainty": append([]string{}, uncertaintyCues...),
		"neutral":     append([]string{}, neutralCues...),
	}
}

// Detect scores the cue sets against normalized text. Empty input returns a
// zero-confidence neutral result.
func (d *Detector) Detect(text string) Result {
	t := textutil.Normalize(text)
	if t == "" {
		return Result{
			Sentiment:  SentimentNeutral,
			Confidence: 0.0,
			Rationale:  "Empty input",
		}
	}

	scorePos := countCues(t, positiveCues)
	scoreNeg := countCues(t, negativeCues)
	scoreSar := countCues(t, sarcasticCues)
	scoreUnc := countCues(t, uncertaintyCues)

	sentiment := SentimentNeutral
	confidence := 0.5
	var tones []string

	switch {
	case scorePos > scoreNeg && scorePos > 0:
		sentiment = SentimentPositive
		confidence = 0.6 + math.Min(0.3, 0.05*float64(scorePos))
		tones = append(tones, "optimistic")
	case scoreNeg > scorePos && scoreNeg > 0:
		sentiment = SentimentNegative
		confidence = 0.6 + math.Min(0.3, 0.05*float64(scoreNeg))
		tones = append(tones, "frustrated")
	}

	if scoreSar > 0 {
		tones = append(tones, "sarcastic")
		confidence = math.Max(confidence, 0.65)
	}
	if scoreUnc > 0 {
		tones = append(tones, "uncertain")
		confidence = math.Max(confidence, 0.55)
	}

	return Result{
		Sentiment:  sentiment,
		Primary:    primaryEmotion(t),
		Tones:      tones,
		Confidence: round2(confidence),
		Rationale:  "Rule-based keyword detection",
	}
}

// Explain returns the detection with the input echoed back.
func (d *Detector) Explain(text string) Explanation {
	return Explanation{Text: text, Result: d.Detect(text)}
}

// primaryEmotion is a fixed if-chain; earlier branches shadow later ones.
func primaryEmotion(t string) string {
	switch {
	case containsAny(t, "angry", "annoyed", "frustrated"):
		return "anger"
	case containsAny(t, "sad", "upset", "depressed"):
		return "sadness"
	case containsAny(t, "excited", "glad", "happy", "joy"):
		return "joy"
	case containsAny(t, "confused", "overwhelmed", "uncertain"):
		return "confusion"
	case strings.Contains(t, "relieved"):
		return "relief"
	}
	return ""
}

func countCues(t string, cues []string) int {
	n := 0
	for _, c := range cues {
		if strings.Contains(t, c) {
			n++
		}
	}
	return n
}

func containsAny(t string, cues ...string) bool {
	for _, c := range cues {
		if strings.Contains(t, c) {
			return true
		}
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
