package summary

import "strings"

// Config controls digest rendering and insight extraction. It is a plain
// value: copy it, adjust fields, and hand it to New. Field order matters for
// the machine-readable rendering, which snapshots the whole config.
type Config struct {
	MaxTurns           int    `json:"max_turns"`
	IncludeEmotions    bool   `json:"include_emotions"`
	IncludeIntents     bool   `json:"include_intents"`
	IncludeSubtext     bool   `json:"include_subtext"`
	IncludeAssistant   bool   `json:"include_assistant"`
	IncludeTimestamps  bool   `json:"include_timestamps"`
	IncludeMeta        bool   `json:"include_meta"`
	BulletStyle        string `json:"bullet_style"`
	Style              string `json:"style"`
	Heading            string `json:"heading"`
	ShowIndices        bool   `json:"show_indices"`
	ShowEmptySubtext   bool   `json:"show_empty_subtext_as_none"`
	MaxTextLength      int    `json:"max_text_length"`
	Ellipsis           string `json:"truncate_ellipsis"`
	ShowInsights       bool   `json:"show_insights"`
	OmitNeutralPrevail bool   `json:"omit_neutral_prevailing"`
	QuestionRatio      bool   `json:"compute_question_ratio"`
	EmphasisCount      bool   `json:"compute_emphasis_count"`
	SubtextDensity     bool   `json:"compute_subtext_density"`
	IntentDistribution bool   `json:"compute_intent_distribution"`
}

// Rendering styles.
const (
	StyleBullet    = "bullet"
	StyleNarrative = "narrative"
	StyleJSON      = "json"
	StyleMarkdown  = "markdown"
)

// DefaultConfig returns the stock configuration: bullet rendering over the
// last 12 turns with all insights enabled.
func DefaultConfig() Config {
	return Config{
		MaxTurns:           12,
		IncludeEmotions:    true,
		IncludeIntents:     true,
		IncludeSubtext:     true,
		IncludeAssistant:   false,
		IncludeTimestamps:  false,
		IncludeMeta:        false,
		BulletStyle:        "-",
		Style:              StyleBullet,
		Heading:            "Conversation summary",
		ShowIndices:        true,
		ShowEmptySubtext:   true,
		MaxTextLength:      200,
		Ellipsis:           "…",
		ShowInsights:       true,
		OmitNeutralPrevail: false,
		QuestionRatio:      true,
		EmphasisCount:      true,
		SubtextDensity:     true,
		IntentDistribution: true,
	}
}

// Normalize clamps invalid settings to documented defaults instead of
// failing: unknown bullet markers and styles fall back, and the numeric
// bounds are enforced.
func (c Config) Normalize() Config {
	switch c.BulletStyle {
	case "-", "*", "•":
	default:
		c.BulletStyle = "-"
	}
	switch strings.ToLower(c.Style) {
	case StyleBullet, StyleNarrative, StyleJSON, StyleMarkdown:
		c.Style = strings.ToLower(c.Style)
	default:
		c.Style = StyleBullet
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 1
	}
	if c.MaxTextLength < 20 {
		c.MaxTextLength = 20
	}
	return c
}

// WithStyle returns a copy with the rendering style replaced.
func (c Config) WithStyle(style string) Config {
	c.Style = style
	return c.Normalize()
}

// WithMaxTurns returns a copy with the digest window replaced.
func (c Config) WithMaxTurns(n int) Config {
	c.MaxTurns = n
	return c.Normalize()
}

// WithHeading returns a copy with the heading replaced.
func (c Config) WithHeading(heading string) Config {
	c.Heading = heading
	return c
}
