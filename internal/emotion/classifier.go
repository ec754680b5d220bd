// Package emotion scores utterances against a fixed weighted lexicon and
// returns a single dominant label. Scoring is pure: identical text always
// produces identical scores, and ties resolve through a fixed priority
// order, never map iteration.
package emotion

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ccb/internal/textutil"
)

// Emotion labels, in catalog order. The order doubles as the tie-break
// priority, with neutral always last.
const (
	LabelJoy      = "joy"
	LabelSadness  = "sadness"
	LabelAnger    = "anger"
	LabelFear     = "fear"
	LabelSurprise = "surprise"
	LabelTired    = "tired"
	LabelNeutral  = "neutral"
)

// Catalog lists the scored emotion categories in declaration order.
// Neutral is not scored from the lexicon; it only accrues from the
// question-mark adjustment.
var Catalog = []string{LabelJoy, LabelSadness, LabelAnger, LabelFear, LabelSurprise, LabelTired}

// priorityOrder breaks score ties.
var priorityOrder = []string{
	LabelJoy, LabelSadness, LabelAnger, LabelFear, LabelSurprise, LabelTired, LabelNeutral,
}

type weightedWord struct {
	word   string
	weight int
}

var lexicon = map[string][]weightedWord{
	LabelJoy: {
		{"happy", 2}, {"joy", 2}, {"glad", 1}, {"love", 1}, {"great", 1},
		{"awesome", 2}, {"excited", 2}, {"amazing", 2}, {"wonderful", 2},
		{"wow", 1}, {"fantastic", 2}, {"delighted", 2}, {"pleased", 1},
	},
	LabelSadness: {
		{"sad", 2}, {"down", 1}, {"depressed", 2}, {"unhappy", 2}, {"cry", 2},
		{"tears", 2}, {"lonely", 1}, {"hopeless", 2}, {"miserable", 2},
		{"heartbroken", 2}, {"blue", 1},
	},
	LabelAnger: {
		{"angry", 2}, {"mad", 2}, {"furious", 2}, {"rage", 2}, {"annoyed", 1},
		{"irritated", 1}, {"resentful", 2}, {"hostile", 2},
	},
	LabelFear: {
		{"afraid", 2}, {"scared", 2}, {"fear", 2}, {"anxious", 2}, {"nervous", 1},
		{"terrified", 2}, {"worried", 1}, {"panic", 2},
	},
	LabelSurprise: {
		{"surprised", 2}, {"shocked", 2}, {"unexpected", 1}, {"astonished", 2},
		{"amazed", 2}, {"startled", 2},
	},
	LabelTired: {
		{"tired", 2}, {"exhausted", 2}, {"drained", 2}, {"fatigued", 2},
		{"sleepy", 1}, {"weary", 2}, {"burnt out", 2},
	},
}

// inquiryWords gate the question-mark surprise adjustment.
var inquiryWords = []string{"really", "seriously", "what", "unexpected"}

var (
	exclamationRuns = regexp.MustCompile(`!+`)
	questionRuns    = regexp.MustCompile(`\?+`)
)

type compiledWord struct {
	re     *regexp.Regexp
	weight int
}

// Candidate is one entry of a multi-label classification.
type Candidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Explanation exposes the full scoring breakdown for one utterance.
type Explanation struct {
	Text       string         `json:"text"`
	Scores     map[string]int `json:"scores"`
	Dominant   string         `json:"dominant"`
	Confidence float64        `json:"confidence"`
	Breakdown  []Candidate    `json:"breakdown"`
}

// Classifier holds the compiled lexicon. Construction is the only mutation;
// classification is read-only and safe for concurrent use.
type Classifier struct {
	compiled map[string][]compiledWord
}

// New compiles the lexicon into whole-word matchers.
func New() *Classifier {
	compiled := make(map[string][]compiledWord, len(lexicon))
	for label, words := range lexicon {
		cw := make([]compiledWord, len(words))
		for i, w := range words {
			cw[i] = compiledWord{
				re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(w.word) + `\b`),
				weight: w.weight,
			}
		}
		compiled[label] = cw
	}
	return &Classifier{compiled: compiled}
}

// Scores returns the raw lexicon totals for the text, including the neutral
// score when the question-mark adjustment materializes it. All six catalog
// categories are always present.
func (c *Classifier) Scores(text string) map[string]int {
	normalized := textutil.Normalize(text)
	scores := make(map[string]int, len(Catalog)+1)
	for _, label := range Catalog {
		total := 0
		for _, cw := range c.compiled[label] {
			if cw.re.MatchString(normalized) {
				total += cw.weight
			}
		}
		scores[label] = total
	}

	// Punctuation adjustments. Each run of ! leans joy; each run of ?
	// leans surprise only alongside an inquiry word, else neutral.
	if n := len(exclamationRuns.FindAllString(normalized, -1)); n > 0 {
		scores[LabelJoy] += n
	}
	if q := len(questionRuns.FindAllString(normalized, -1)); q > 0 {
		if containsAny(normalized, inquiryWords) {
			scores[LabelSurprise] += q
		} else {
			scores[LabelNeutral] += q
		}
	}
	return scores
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Classify returns the dominant emotion label. Empty input and all-zero
// scores both yield neutral.
func (c *Classifier) Classify(text string) string {
	if textutil.Normalize(text) == "" {
		return LabelNeutral
	}
	scores := c.Scores(text)
	label, _ := winner(scores)
	return label
}

// ClassifyWithConfidence returns the dominant label with its share of the
// total score, rounded to three decimals.
func (c *Classifier) ClassifyWithConfidence(text string) (string, float64) {
	if textutil.Normalize(text) == "" {
		return LabelNeutral, 0.0
	}
	scores := c.Scores(text)
	label, maxScore := winner(scores)
	total := 0
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		return LabelNeutral, 0.0
	}
	return label, round3(float64(maxScore) / float64(total))
}

// ClassifyAll returns every category whose normalized confidence meets the
// threshold, sorted by descending confidence. Equal confidences keep
// catalog order.
func (c *Classifier) ClassifyAll(text string, threshold float64) []Candidate {
	if textutil.Normalize(text) == "" {
		return nil
	}
	scores := c.Scores(text)
	total := 0
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		return nil
	}

	var out []Candidate
	for _, label := range append(append([]string{}, Catalog...), LabelNeutral) {
		score, ok := scores[label]
		if !ok {
			continue
		}
		conf := round3(float64(score) / float64(total))
		if conf >= threshold {
			out = append(out, Candidate{Label: label, Confidence: conf})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// Explain bundles scores, the dominant label, and a zero-threshold
// breakdown for transparency surfaces.
func (c *Classifier) Explain(text string) Explanation {
	label, conf := c.ClassifyWithConfidence(text)
	return Explanation{
		Text:       text,
		Scores:     c.Scores(text),
		Dominant:   label,
		Confidence: conf,
		Breakdown:  c.ClassifyAll(text, 0.0),
	}
}

// winner picks the strictly highest score, resolving ties by the fixed
// priority order. All-zero scores fall through to neutral.
func winner(scores map[string]int) (string, int) {
	maxScore := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return LabelNeutral, 0
	}
	for _, label := range priorityOrder {
		if scores[label] == maxScore {
			return label, maxScore
		}
	}
	return LabelNeutral, 0
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
