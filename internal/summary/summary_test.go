package summary

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ccb/internal/history"
)

func sampleTurns() []history.Turn {
	return []history.Turn{
		{Utterance: "Hello there", Intent: "greeting", Emotion: "joy"},
		{Utterance: "Can you help me fix this bug?", Intent: "question", Subtext: []string{"seeking_help"}},
	}
}

func TestSummarizeEmptyHistory(t *testing.T) {
	for _, style := range []string{StyleBullet, StyleNarrative, StyleJSON, StyleMarkdown} {
		s := New(DefaultConfig().WithStyle(style))
		if got := s.Summarize(nil); got != "No conversation yet." {
			t.Errorf("Summarize(nil) with style %q = %q, want %q", style, got, "No conversation yet.")
		}
	}
}

func TestSummarizeBullets(t *testing.T) {
	s := NewDefault()
	got := s.Summarize(sampleTurns())
	want := strings.Join([]string{
		"Conversation summary:",
		"- Turn 1: Hello there (Intent: greeting) (Emotion: joy) (Subtext: none)",
		"- Turn 2: Can you help me fix this bug? (Intent: question) (Emotion: neutral) (Subtext: seeking_help)",
		"",
		"Key insights:",
		"- Dominant intent appears to be 'greeting'.",
		"- Prevailing emotion is 'joy'.",
		"- Subtext cues present in 1/2 turns.",
		"- Questions comprise 1/2 turns.",
		"- Top intents distribution → greeting: 1, question: 1.",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bullet digest mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeNarrative(t *testing.T) {
	s := New(DefaultConfig().WithStyle(StyleNarrative))
	got := s.Summarize(sampleTurns())
	lines := strings.Split(got, "\n")
	if lines[0] != "Conversation summary (narrative):" {
		t.Fatalf("heading = %q", lines[0])
	}
	wantTurn1 := "Turn 1: The user said “Hello there”. The intent was greeting. The emotion was joy. No subtext detected."
	if lines[1] != wantTurn1 {
		t.Errorf("turn 1 = %q, want %q", lines[1], wantTurn1)
	}
	wantTurn2 := "Turn 2: The user said “Can you help me fix this bug?”. The intent was question. The emotion was neutral. Subtext cues: seeking_help."
	if lines[2] != wantTurn2 {
		t.Errorf("turn 2 = %q, want %q", lines[2], wantTurn2)
	}
	// Insights follow the turns directly, without a blank separator line.
	if lines[3] != "Overall insights:" {
		t.Errorf("line 3 = %q, want %q", lines[3], "Overall insights:")
	}
}

func TestSummarizeWindowBounding(t *testing.T) {
	var turns []history.Turn
	for i := 1; i <= 15; i++ {
		intent := "question"
		if i <= 3 {
			intent = "closing"
		}
		turns = append(turns, history.Turn{
			Utterance: fmt.Sprintf("message %02d", i),
			Intent:    intent,
		})
	}
	out := NewDefault().Summarize(turns)
	if strings.Contains(out, "message 03") {
		t.Errorf("digest includes turn outside the 12-turn window:\n%s", out)
	}
	if !strings.Contains(out, "- Turn 1: message 04") {
		t.Errorf("window should start at message 04 renumbered as turn 1:\n%s", out)
	}
	if !strings.Contains(out, "message 15") {
		t.Errorf("digest missing newest turn:\n%s", out)
	}
	// Insights cover the window only, so the pruned closing intents vanish.
	if strings.Contains(out, "closing") {
		t.Errorf("insights leaked intents from outside the window:\n%s", out)
	}
	if !strings.Contains(out, "Dominant intent appears to be 'question'.") {
		t.Errorf("missing dominant intent insight:\n%s", out)
	}
}

func TestConfigNormalization(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Style = "fancy"
	cfg.BulletStyle = "=>"
	cfg.MaxTurns = 0
	cfg.MaxTextLength = 5
	got := New(cfg).Config()
	if got.Style != StyleBullet {
		t.Errorf("Style = %q, want %q", got.Style, StyleBullet)
	}
	if got.BulletStyle != "-" {
		t.Errorf("BulletStyle = %q, want %q", got.BulletStyle, "-")
	}
	if got.MaxTurns != 1 {
		t.Errorf("MaxTurns = %d, want 1", got.MaxTurns)
	}
	if got.MaxTextLength != 20 {
		t.Errorf("MaxTextLength = %d, want 20", got.MaxTextLength)
	}
	if upper := DefaultConfig().WithStyle("JSON"); upper.Style != StyleJSON {
		t.Errorf("WithStyle(JSON) = %q, want %q", upper.Style, StyleJSON)
	}
}

func TestTruncationCountsRunes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTextLength = 20
	cfg.ShowIndices = false
	cfg.ShowInsights = false
	cfg.IncludeIntents = false
	cfg.IncludeEmotions = false
	cfg.IncludeSubtext = false
	s := New(cfg)

	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{"ascii", "abcdefghij abcdefghij abcdefghij", "- abcdefghij abcdefghi…"},
		{"multibyte", strings.Repeat("é", 25), "- " + strings.Repeat("é", 20) + "…"},
		{"trailing space trimmed", "1234567890123456789 extra words here", "- 1234567890123456789…"},
		{"short text untouched", "short", "- short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Summarize([]history.Turn{{Utterance: tt.utterance}})
			lines := strings.Split(out, "\n")
			if len(lines) != 2 {
				t.Fatalf("expected heading plus one bullet, got %d lines:\n%s", len(lines), out)
			}
			if lines[1] != tt.want {
				t.Errorf("bullet = %q, want %q", lines[1], tt.want)
			}
		})
	}
}

func TestSummarizeJSON(t *testing.T) {
	cfg := DefaultConfig().WithStyle(StyleJSON)
	cfg.IncludeAssistant = true
	cfg.IncludeTimestamps = true
	cfg.IncludeMeta = true
	s := New(cfg)

	when := time.Date(2025, 3, 9, 14, 30, 5, 0, time.UTC)
	turns := []history.Turn{
		{Utterance: "Hello there", Emotion: "joy"},
		{
			Utterance: "Can you help me fix this bug?",
			Reply:     "Of course.",
			Intent:    "question",
			Subtext:   []string{"seeking_help"},
			CreatedAt: when,
			Meta:      map[string]string{"channel": "tui"},
		},
	}
	out := s.Summarize(turns)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("digest is not valid JSON: %v\n%s", err, out)
	}
	if parsed["heading"] != "Conversation summary" {
		t.Errorf("heading = %v", parsed["heading"])
	}
	config, ok := parsed["config"].(map[string]any)
	if !ok {
		t.Fatalf("config snapshot missing: %v", parsed["config"])
	}
	if config["style"] != "json" || config["max_turns"] != float64(12) {
		t.Errorf("config snapshot = %v", config)
	}
	rendered, ok := parsed["turns"].([]any)
	if !ok || len(rendered) != 2 {
		t.Fatalf("turns = %v", parsed["turns"])
	}

	first := rendered[0].(map[string]any)
	if _, present := first["intent"]; present {
		t.Errorf("blank intent should be omitted: %v", first)
	}
	if first["emotion"] != "joy" {
		t.Errorf("emotion = %v", first["emotion"])
	}
	tags, ok := first["subtext_tags"].([]any)
	if !ok {
		t.Fatalf("subtext_tags should be present even when empty: %v", first)
	}
	if len(tags) != 0 {
		t.Errorf("subtext_tags = %v, want empty", tags)
	}

	second := rendered[1].(map[string]any)
	if second["index"] != float64(2) || second["intent"] != "question" {
		t.Errorf("second turn = %v", second)
	}
	if second["assistant_text"] != "Of course." {
		t.Errorf("assistant_text = %v", second["assistant_text"])
	}
	if second["emotion"] != "neutral" {
		t.Errorf("emotion fallback = %v", second["emotion"])
	}
	if second["timestamp"] != "2025-03-09 14:30:05 UTC" {
		t.Errorf("timestamp = %v", second["timestamp"])
	}
	meta := second["meta"].(map[string]any)
	if meta["channel"] != "tui" {
		t.Errorf("meta = %v", meta)
	}
	if _, isArray := parsed["insights"].([]any); !isArray {
		t.Errorf("insights should always be an array: %v", parsed["insights"])
	}
}

func TestSummarizeMarkdown(t *testing.T) {
	s := New(DefaultConfig().WithStyle(StyleMarkdown))
	got := s.Summarize([]history.Turn{{Utterance: "Status?", Intent: "question"}})
	want := strings.Join([]string{
		"# Conversation summary",
		"",
		"|Turn|User|Intent|Emotion|Subtext|",
		"|---|---|---|---|---|",
		"|1|Status?|question|neutral|none|",
		"",
		"## Key insights",
		"- Dominant intent appears to be 'question'.",
		"- Prevailing emotion is 'neutral'.",
		"- Questions comprise 1/1 turns.",
		"- Top intents distribution → question: 1.",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("markdown digest mismatch (-want +got):\n%s", diff)
	}
}

func TestOmitNeutralPrevailing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OmitNeutralPrevail = true
	s := New(cfg)

	mixed := []history.Turn{
		{Utterance: "one", Emotion: "neutral"},
		{Utterance: "two", Emotion: "neutral"},
		{Utterance: "three", Emotion: "joy"},
	}
	for _, k := range s.Insights(mixed) {
		if strings.Contains(k, "Prevailing emotion") {
			t.Errorf("neutral prevailing emotion should be omitted for mixed turns: %q", k)
		}
	}

	allNeutral := []history.Turn{{Utterance: "one"}, {Utterance: "two"}}
	found := false
	for _, k := range s.Insights(allNeutral) {
		if k == "Prevailing emotion is 'neutral'." {
			found = true
		}
	}
	if !found {
		t.Errorf("all-neutral turns keep the prevailing emotion insight: %v", s.Insights(allNeutral))
	}
}

func TestInsightTieBreakStable(t *testing.T) {
	turns := []history.Turn{
		{Utterance: "a", Intent: "question"},
		{Utterance: "b", Intent: "greeting"},
		{Utterance: "c", Intent: "greeting"},
		{Utterance: "d", Intent: "question"},
	}
	s := NewDefault()
	for i := 0; i < 20; i++ {
		insights := s.Insights(turns)
		if len(insights) == 0 || insights[0] != "Dominant intent appears to be 'question'." {
			t.Fatalf("iteration %d: tie should resolve to first-seen intent, got %v", i, insights)
		}
	}
}

func TestBulletOptionalFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeTimestamps = true
	cfg.IncludeMeta = true
	cfg.ShowInsights = false
	s := New(cfg)

	when := time.Date(2025, 3, 9, 14, 30, 5, 0, time.UTC)
	out := s.Summarize([]history.Turn{{
		Utterance: "Hello",
		Intent:    "greeting",
		CreatedAt: when,
		Meta:      map[string]string{"lang": "en", "channel": "tui"},
	}})
	want := "Conversation summary:\n" +
		"- Turn 1: Hello (Intent: greeting) (Emotion: neutral) (Subtext: none) " +
		"(Time: 2025-03-09 14:30:05 UTC) (Meta: { channel=tui, lang=en })"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("bullet digest mismatch (-want +got):\n%s", diff)
	}

	cfg.ShowEmptySubtext = false
	hidden := New(cfg).Summarize([]history.Turn{{Utterance: "Hello"}})
	if strings.Contains(hidden, "(Subtext:") {
		t.Errorf("empty subtext should be omitted when the none marker is off:\n%s", hidden)
	}
}

func TestInsightsEmptyTurns(t *testing.T) {
	if got := NewDefault().Insights(nil); got != nil {
		t.Errorf("Insights(nil) = %v, want nil", got)
	}
}
