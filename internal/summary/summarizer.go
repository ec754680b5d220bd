// Package summary renders digests of recent conversation turns. A digest is
// a deterministic function of the turn window and the configuration: the same
// inputs always produce the same text, in any of four styles (bullet,
// narrative, json, markdown), optionally followed by aggregate insights.
package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"ccb/internal/history"
	"ccb/internal/textutil"
)

// Summarizer renders turn windows according to a normalized Config.
type Summarizer struct {
	cfg Config
}

// New builds a Summarizer, clamping the config via Normalize.
func New(cfg Config) *Summarizer {
	return &Summarizer{cfg: cfg.Normalize()}
}

// NewDefault builds a Summarizer with the stock configuration.
func NewDefault() *Summarizer {
	return New(DefaultConfig())
}

// Config returns the active (normalized) configuration.
func (s *Summarizer) Config() Config {
	return s.cfg
}

// Summarize renders the last MaxTurns turns in the configured style. An
// empty history yields a fixed marker string regardless of style.
func (s *Summarizer) Summarize(turns []history.Turn) string {
	if len(turns) == 0 {
		return "No conversation yet."
	}
	recent := turns
	if len(recent) > s.cfg.MaxTurns {
		recent = recent[len(recent)-s.cfg.MaxTurns:]
	}
	switch s.cfg.Style {
	case StyleNarrative:
		return s.renderNarrative(recent)
	case StyleJSON:
		return s.renderJSON(recent)
	case StyleMarkdown:
		return s.renderMarkdown(recent)
	default:
		return s.renderBullets(recent)
	}
}

func (s *Summarizer) renderBullets(turns []history.Turn) string {
	lines := []string{s.cfg.Heading + ":"}
	for i, t := range turns {
		index := ""
		if s.cfg.ShowIndices {
			index = fmt.Sprintf(" Turn %d:", i+1)
		}
		parts := []string{fmt.Sprintf("%s%s %s", s.cfg.BulletStyle, index, s.userText(t))}
		if s.cfg.IncludeAssistant && t.Reply != "" {
			parts = append(parts, fmt.Sprintf("(Assistant: %s)", s.truncate(t.Reply)))
		}
		if s.cfg.IncludeIntents && t.Intent != "" {
			parts = append(parts, fmt.Sprintf("(Intent: %s)", t.Intent))
		}
		if s.cfg.IncludeEmotions {
			parts = append(parts, fmt.Sprintf("(Emotion: %s)", orNeutral(t.Emotion)))
		}
		if s.cfg.IncludeSubtext {
			tags := strings.Join(t.Subtext, ", ")
			if tags == "" && s.cfg.ShowEmptySubtext {
				tags = "none"
			}
			if tags != "" {
				parts = append(parts, fmt.Sprintf("(Subtext: %s)", tags))
			}
		}
		if s.cfg.IncludeTimestamps && !t.CreatedAt.IsZero() {
			parts = append(parts, fmt.Sprintf("(Time: %s)", fmtTimestamp(t.CreatedAt)))
		}
		if s.cfg.IncludeMeta && len(t.Meta) > 0 {
			parts = append(parts, fmt.Sprintf("(Meta: %s)", fmtMeta(t.Meta)))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	if s.cfg.ShowInsights {
		if insights := s.Insights(turns); len(insights) > 0 {
			lines = append(lines, "", "Key insights:")
			for _, k := range insights {
				lines = append(lines, fmt.Sprintf("%s %s", s.cfg.BulletStyle, k))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Summarizer) renderNarrative(turns []history.Turn) string {
	lines := []string{fmt.Sprintf("%s (narrative):", s.cfg.Heading)}
	for i, t := range turns {
		sentences := []string{fmt.Sprintf("Turn %d: The user said “%s”.", i+1, s.userText(t))}
		if s.cfg.IncludeIntents && t.Intent != "" {
			sentences = append(sentences, fmt.Sprintf("The intent was %s.", t.Intent))
		}
		if s.cfg.IncludeEmotions {
			sentences = append(sentences, fmt.Sprintf("The emotion was %s.", orNeutral(t.Emotion)))
		}
		if s.cfg.IncludeSubtext {
			if len(t.Subtext) > 0 {
				sentences = append(sentences, fmt.Sprintf("Subtext cues: %s.", strings.Join(t.Subtext, ", ")))
			} else if s.cfg.ShowEmptySubtext {
				sentences = append(sentences, "No subtext detected.")
			}
		}
		if s.cfg.IncludeAssistant && t.Reply != "" {
			sentences = append(sentences, fmt.Sprintf("The assistant replied: “%s”.", s.truncate(t.Reply)))
		}
		lines = append(lines, strings.Join(sentences, " "))
	}
	if s.cfg.ShowInsights {
		if insights := s.Insights(turns); len(insights) > 0 {
			lines = append(lines, "Overall insights:")
			for _, k := range insights {
				lines = append(lines, fmt.Sprintf("%s %s", s.cfg.BulletStyle, k))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// digestTurn mirrors the per-turn object of the json style. Subtext is a
// pointer so an enabled-but-empty tag list still renders as [] while a
// disabled column is absent.
type digestTurn struct {
	Index     int               `json:"index"`
	UserText  string            `json:"user_text"`
	Assistant string            `json:"assistant_text,omitempty"`
	Intent    string            `json:"intent,omitempty"`
	Emotion   string            `json:"emotion,omitempty"`
	Subtext   *[]string         `json:"subtext_tags,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type digest struct {
	Heading  string       `json:"heading"`
	Config   Config       `json:"config"`
	Turns    []digestTurn `json:"turns"`
	Insights []string     `json:"insights"`
}

func (s *Summarizer) renderJSON(turns []history.Turn) string {
	out := digest{
		Heading:  s.cfg.Heading,
		Config:   s.cfg,
		Turns:    make([]digestTurn, 0, len(turns)),
		Insights: []string{},
	}
	for i, t := range turns {
		dt := digestTurn{Index: i + 1, UserText: s.userText(t)}
		if s.cfg.IncludeAssistant && t.Reply != "" {
			dt.Assistant = s.truncate(t.Reply)
		}
		if s.cfg.IncludeIntents && t.Intent != "" {
			dt.Intent = t.Intent
		}
		if s.cfg.IncludeEmotions {
			dt.Emotion = orNeutral(t.Emotion)
		}
		if s.cfg.IncludeSubtext {
			tags := t.Subtext
			if tags == nil {
				tags = []string{}
			}
			dt.Subtext = &tags
		}
		if s.cfg.IncludeTimestamps && !t.CreatedAt.IsZero() {
			dt.Timestamp = fmtTimestamp(t.CreatedAt)
		}
		if s.cfg.IncludeMeta && len(t.Meta) > 0 {
			dt.Meta = t.Meta
		}
		out.Turns = append(out.Turns, dt)
	}
	if s.cfg.ShowInsights {
		if insights := s.Insights(turns); len(insights) > 0 {
			out.Insights = insights
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (s *Summarizer) renderMarkdown(turns []history.Turn) string {
	cols := []string{"Turn", "User"}
	if s.cfg.IncludeIntents {
		cols = append(cols, "Intent")
	}
	if s.cfg.IncludeEmotions {
		cols = append(cols, "Emotion")
	}
	if s.cfg.IncludeSubtext {
		cols = append(cols, "Subtext")
	}
	if s.cfg.IncludeAssistant {
		cols = append(cols, "Assistant")
	}
	if s.cfg.IncludeTimestamps {
		cols = append(cols, "Time")
	}
	lines := []string{"# " + s.cfg.Heading, ""}
	lines = append(lines, "|"+strings.Join(cols, "|")+"|")
	lines = append(lines, "|"+strings.Repeat("---|", len(cols)))
	for i, t := range turns {
		row := []string{fmt.Sprintf("%d", i+1), s.userText(t)}
		if s.cfg.IncludeIntents {
			row = append(row, t.Intent)
		}
		if s.cfg.IncludeEmotions {
			row = append(row, orNeutral(t.Emotion))
		}
		if s.cfg.IncludeSubtext {
			tags := strings.Join(t.Subtext, ", ")
			if tags == "" && s.cfg.ShowEmptySubtext {
				tags = "none"
			}
			row = append(row, tags)
		}
		if s.cfg.IncludeAssistant {
			row = append(row, s.truncate(t.Reply))
		}
		if s.cfg.IncludeTimestamps {
			row = append(row, fmtTimestamp(t.CreatedAt))
		}
		lines = append(lines, "|"+strings.Join(row, "|")+"|")
	}
	if s.cfg.ShowInsights {
		lines = append(lines, "", "## Key insights")
		for _, k := range s.Insights(turns) {
			lines = append(lines, "- "+k)
		}
	}
	return strings.Join(lines, "\n")
}

// Insights derives aggregate observations over the given turns: dominant
// intent, prevailing emotion, subtext density, question ratio, emphasis
// count, and the intent distribution. Each line is gated by its compute_*
// option and omitted when its count is zero.
func (s *Summarizer) Insights(turns []history.Turn) []string {
	if len(turns) == 0 {
		return nil
	}
	var insights []string
	var intents []string
	for _, t := range turns {
		if t.Intent != "" {
			intents = append(intents, t.Intent)
		}
	}
	if len(intents) > 0 {
		insights = append(insights, fmt.Sprintf("Dominant intent appears to be '%s'.", mostCommon(intents)))
	}
	emotions := make([]string, 0, len(turns))
	allNeutral := true
	for _, t := range turns {
		e := orNeutral(t.Emotion)
		if e != "neutral" {
			allNeutral = false
		}
		emotions = append(emotions, e)
	}
	prevailing := mostCommon(emotions)
	if !s.cfg.OmitNeutralPrevail || allNeutral || prevailing != "neutral" {
		insights = append(insights, fmt.Sprintf("Prevailing emotion is '%s'.", prevailing))
	}
	if s.cfg.SubtextDensity {
		withTags, tagCount := 0, 0
		for _, t := range turns {
			if len(t.Subtext) > 0 {
				withTags++
				tagCount += len(t.Subtext)
			}
		}
		if tagCount > 0 {
			insights = append(insights, fmt.Sprintf("Subtext cues present in %d/%d turns.", withTags, len(turns)))
		}
	}
	if s.cfg.QuestionRatio {
		questions := 0
		for _, t := range turns {
			if textutil.IsQuestion(t.Utterance) {
				questions++
			}
		}
		if questions > 0 {
			insights = append(insights, fmt.Sprintf("Questions comprise %d/%d turns.", questions, len(turns)))
		}
	}
	if s.cfg.EmphasisCount {
		emphatic := 0
		for _, t := range turns {
			if textutil.ContainsEmphasis(t.Utterance) {
				emphatic++
			}
		}
		if emphatic > 0 {
			insights = append(insights, fmt.Sprintf("Emphasis markers detected in %d/%d turns.", emphatic, len(turns)))
		}
	}
	if s.cfg.IntentDistribution && len(intents) > 0 {
		insights = append(insights, fmt.Sprintf("Top intents distribution → %s.", topDistribution(intents, 3)))
	}
	return insights
}

// mostCommon returns the most frequent item; ties go to the item seen first.
func mostCommon(items []string) string {
	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if _, seen := counts[it]; !seen {
			order = append(order, it)
		}
		counts[it]++
	}
	best, bestN := "", 0
	for _, it := range order {
		if counts[it] > bestN {
			best, bestN = it, counts[it]
		}
	}
	return best
}

// topDistribution renders the n most frequent items as "label: count" pairs,
// most frequent first; ties keep first-seen order.
func topDistribution(items []string, n int) string {
	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if _, seen := counts[it]; !seen {
			order = append(order, it)
		}
		counts[it]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	parts := make([]string, 0, len(order))
	for _, it := range order {
		parts = append(parts, fmt.Sprintf("%s: %d", it, counts[it]))
	}
	return strings.Join(parts, ", ")
}

// truncate limits text to MaxTextLength runes, trimming trailing whitespace
// before appending the ellipsis. The floor of 10 keeps degenerate configs
// from producing bare ellipses.
func (s *Summarizer) truncate(text string) string {
	limit := s.cfg.MaxTextLength
	if limit < 10 {
		limit = 10
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + s.cfg.Ellipsis
}

func (s *Summarizer) userText(t history.Turn) string {
	return s.truncate(strings.TrimSpace(t.Utterance))
}

func orNeutral(emotion string) string {
	if emotion == "" {
		return "neutral"
	}
	return emotion
}

func fmtTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

func fmtMeta(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, meta[k]))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
