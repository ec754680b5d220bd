// Package ui provides the visual styling for the ccb interactive CLI,
// with light/dark mode support and per-emotion badge colors.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#f6f7f8") // hsl(210, 8%, 97%)
	LightForeground = lipgloss.Color("#1b2733") // Dark slate
	LightPrimary    = lipgloss.Color("#3949ab") // Indigo
	LightAccent     = lipgloss.Color("#26a69a") // Teal
	LightSecondary  = lipgloss.Color("#e3e7eb") // hsl(210, 15%, 91%)
	LightMuted      = lipgloss.Color("#aab4bd") // hsl(210, 12%, 71%)
	LightBorder     = lipgloss.Color("#d8dde2") // hsl(210, 15%, 87%)
	LightCard       = lipgloss.Color("#ffffff") // White

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#161c24") // hsl(212, 24%, 11%)
	DarkForeground = lipgloss.Color("#eceff1") // hsl(200, 15%, 94%)
	DarkPrimary    = lipgloss.Color("#26a69a") // Teal (flipped)
	DarkAccent     = lipgloss.Color("#7986cb") // Soft indigo (flipped)
	DarkSecondary  = lipgloss.Color("#212a36") // Darker slate
	DarkMuted      = lipgloss.Color("#5c6b7a") // Muted dark
	DarkBorder     = lipgloss.Color("#2c3a4a") // Border dark
	DarkCard       = lipgloss.Color("#1d2733") // Card dark

	// Semantic Colors (same in both modes)
	ColorSuccess = lipgloss.Color("#66bb6a") // Green
	ColorError   = lipgloss.Color("#e53935") // Red
	ColorWarning = lipgloss.Color("#ffb300") // Amber
	ColorInfo    = lipgloss.Color("#42a5f5") // Blue

	// Emotion Colors (badge backgrounds, both modes)
	EmotionJoy      = lipgloss.Color("#fbc02d") // Amber
	EmotionSadness  = lipgloss.Color("#42a5f5") // Blue
	EmotionAnger    = lipgloss.Color("#e53935") // Red
	EmotionFear     = lipgloss.Color("#7e57c2") // Purple
	EmotionSurprise = lipgloss.Color("#ff7043") // Orange
	EmotionNeutral  = lipgloss.Color("#90a4ae") // Grey
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme auto-detects based on terminal or returns light mode
func DetectTheme() Theme {
	// Check for common dark mode indicators
	colorTerm := os.Getenv("COLORFGBG")
	if colorTerm != "" {
		// Format is usually "foreground;background"
		// If background is dark (0-8), use dark theme.
		// If background is light (7-15), use light theme.
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			bgStr := parts[1]
			// Standard ANSI colors: 0-7 are widely used for dark backgrounds
			if bgIdx, err := strconv.Atoi(bgStr); err == nil {
				// Simple heuristic: 0-6 and 8 (dark grey) are likely dark backgrounds
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return DarkTheme()
				}
			}
		}
	}

	// Check for explicit dark mode preference
	if os.Getenv("CCB_DARK_MODE") == "1" {
		return DarkTheme()
	}

	// Default to light mode
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Conversation surfaces
	Prompt        lipgloss.Style
	UserInput     lipgloss.Style
	AssistantLine lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Spinner    lipgloss.Style
	Badge      lipgloss.Style
	PhaseBadge lipgloss.Style
	Divider    lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		// Layout styles
		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		// Text styles
		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		// Conversation styles
		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		AssistantLine: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		// Status styles
		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(ColorInfo),

		// Component styles
		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		PhaseBadge: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),
	}
}

// DefaultStyles returns styles with the auto-detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// EmotionColor maps an emotion label to its badge color. Unknown labels
// get the neutral grey.
func EmotionColor(label string) lipgloss.Color {
	switch strings.ToLower(label) {
	case "joy":
		return EmotionJoy
	case "sadness":
		return EmotionSadness
	case "anger":
		return EmotionAnger
	case "fear":
		return EmotionFear
	case "surprise":
		return EmotionSurprise
	default:
		return EmotionNeutral
	}
}

// EmotionBadge returns a badge style colored for the given emotion label.
func (s Styles) EmotionBadge(label string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(EmotionColor(label)).
		Foreground(lipgloss.Color("#ffffff")).
		Padding(0, 1).
		Bold(true)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width <= 0 {
		width = 80
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
