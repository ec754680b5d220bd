// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"ccb/cmd/ccb/ui"
	"ccb/internal/config"
	"ccb/internal/logging"
	"ccb/internal/pipeline"
	"ccb/internal/store"
	"ccb/internal/summary"
	"ccb/internal/tone"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI Components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	history     []chatMessage
	isLoading   bool
	err         error
	width       int
	height      int
	ready       bool
	cfg         config.Config
	phase       string
	lastEmotion string
	turnCount   int

	// Backend
	pipe      *pipeline.Pipeline
	recorder  *store.Recorder
	workspace string
}

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	turnMsg struct {
		content string
		phase   string
		emotion string
	}
	errorMsg error
)

// initChat initializes the interactive chat model
func initChat() chatModel {
	// Resolve workspace and configuration
	ws := resolveWorkspace()
	_ = logging.Initialize(ws)
	cfg, _ := config.Load(resolveConfigPath(ws))

	// Initialize styles
	styles := ui.DefaultStyles()

	// Initialize textinput for input
	ti := textinput.New()
	ti.Placeholder = "Say something... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	// Initialize spinner
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	// Initialize viewport for chat history
	vp := viewport.New(80, 20)
	vp.SetContent("")

	// Initialize markdown renderer
	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	// Initialize backend components
	pipe := pipeline.New(optionsFromConfig(cfg))
	recorder := store.OpenRecorder(ws)

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		history:   []chatMessage{},
		cfg:       cfg,
		phase:     pipe.Phase().String(),
		pipe:      pipe,
		recorder:  recorder,
		workspace: ws,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			// Enter sends the message
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		// Handle regular key input
		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 3
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		// Update renderer word wrap
		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case turnMsg:
		m.isLoading = false
		m.turnCount++
		m.phase = msg.phase
		m.lastEmotion = msg.emotion
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: msg.content,
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	// Check for special commands
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// Add user message to history
	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})

	// Clear input
	m.textinput.Reset()

	// Update viewport
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	// Start loading
	m.isLoading = true

	// Process in background
	return m, tea.Batch(
		m.spinner.Tick,
		m.processInput(input),
	)
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = []chatMessage{}
		m.viewport.SetContent("")
		m.textinput.Reset()
		return m, nil

	case "/help":
		help := `## Available Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /summary | Render the conversation digest |
| /insights | Show aggregate observations over recent turns |
| /phase | Show the current dialogue phase |
| /reset | Clear history and return the phase machine to IDLE |
| /clear | Clear the viewport |
| /quit, /exit, /q | Exit the CLI |

## Tips
- **Enter** to send a message
- **Ctrl+C** or **Esc** to exit
- Use **↑/↓** to scroll history
- The transcript persists under ` + "`.ccb/`" + `; use ` + "`ccb reset`" + ` to wipe it
`
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: help,
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case "/summary":
		digest := m.pipe.Digest(summary.StyleMarkdown)
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: digest,
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case "/insights":
		insights := m.pipe.Insights()
		var sb strings.Builder
		sb.WriteString("## Key Insights\n\n")
		if len(insights) == 0 {
			sb.WriteString("_No insights yet. Say a few things first._\n")
		} else {
			for _, k := range insights {
				sb.WriteString("- " + k + "\n")
			}
		}
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: sb.String(),
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case "/phase":
		content := fmt.Sprintf("Current phase: `%s` (turn %d)", m.pipe.Phase(), m.turnCount)
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: content,
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case "/reset":
		m.pipe.Reset()
		m.phase = m.pipe.Phase().String()
		m.turnCount = 0
		m.lastEmotion = ""
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: "Conversation state reset. History cleared, phase back to `IDLE`.\n\n_The on-disk transcript is untouched; run `ccb reset` to wipe it._",
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	default:
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: fmt.Sprintf("Unknown command: `%s`. Type `/help` for available commands.", cmd),
			time:    time.Now(),
		})
		m.textinput.Reset()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	}
}

func (m chatModel) processInput(input string) tea.Cmd {
	return func() tea.Msg {
		out := m.pipe.Process(input)

		// Persist the exchange: the user line plus the structured turn
		// record that stands in for an assistant reply.
		line := turnLine(out.Raw.TurnCount, input, out)
		if m.recorder != nil && out.Raw.LastTurn != nil {
			turn := *out.Raw.LastTurn
			turn.Reply = line
			m.recorder.Record(turn, out.Raw.TurnCount)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.recorder.Flush(ctx); err != nil {
				logging.UIDebug("turn not fully recorded: %v", err)
			}
		}

		return turnMsg{
			content: formatTurnRecord(out, tone.New().Detect(input), line),
			phase:   out.Raw.Phase,
			emotion: out.Emotion,
		}
	}
}

// formatTurnRecord renders one pipeline pass as chat markdown. The tone
// reading is shown only when it says more than "neutral".
func formatTurnRecord(out pipeline.Output, tr tone.Result, line string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("**Intent**: `%s`  **Emotion**: `%s`  **Phase**: `%s`\n\n",
		out.Intent, out.Emotion, out.Raw.Phase))

	if len(out.Subtext) > 0 {
		sb.WriteString("**Subtext**: " + strings.Join(out.Subtext, ", ") + "\n\n")
	}

	if tr.Primary != "" || len(tr.Tones) > 0 {
		seg := "**Tone**: " + tr.Sentiment
		if tr.Primary != "" {
			seg += " / " + tr.Primary
		}
		if len(tr.Tones) > 0 {
			seg += " (" + strings.Join(tr.Tones, ", ") + ")"
		}
		sb.WriteString(seg + "\n\n")
	}

	if t := out.Raw.Transition; t.Previous != t.Current {
		sb.WriteString(fmt.Sprintf("_Phase moved %s → %s (%s)_\n\n", t.Previous, t.Current, t.Rationale))
	}

	if len(out.Raw.Failures) > 0 {
		sb.WriteString("**Recovered faults:**\n")
		for _, f := range out.Raw.Failures {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Stage, f.Reason))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(line)
	return sb.String()
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		if msg.role == "user" {
			// Render user message
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.content))
			sb.WriteString("\n\n")
		} else {
			// Render assistant message with markdown
			assistantStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(assistantStyle.Render("ccb") + "\n")

			// Render markdown with panic recovery
			rendered := m.safeRenderMarkdown(msg.content)
			sb.WriteString(rendered)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// Header
	header := m.renderHeader()

	// Chat viewport
	chatView := m.styles.Content.Render(m.viewport.View())

	// Loading indicator
	if m.isLoading {
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Analyzing..."
	}

	// Error display
	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	// Input area
	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)

	inputArea := inputStyle.Render(m.textinput.View())

	// Footer
	footer := m.renderFooter()

	// Compose full view
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	// Title and session
	title := m.styles.Header.Render(" ccb ")
	session := m.styles.Badge.Render("session " + m.recorder.SessionID())

	// Phase and emotion badges
	phase := m.styles.PhaseBadge.Render(m.phase)
	emotion := ""
	if m.lastEmotion != "" {
		emotion = m.styles.EmotionBadge(m.lastEmotion).Render(m.lastEmotion)
	}

	// Status indicator
	var status string
	if m.isLoading {
		status = m.styles.Warning.Render("● Processing")
	} else {
		status = m.styles.Success.Render("● Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		session,
		"  ",
		phase,
		" ",
		emotion,
		"  ",
		status,
	)

	workspace := m.styles.Muted.Render(fmt.Sprintf(" %s", m.workspace))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		workspace,
		m.styles.RenderDivider(m.width),
	)
}

func (m chatModel) renderFooter() string {
	help := m.styles.Muted.Render(
		fmt.Sprintf("turn %d • Enter: send • /help: commands • Ctrl+C: exit", m.turnCount))
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}

// runInteractiveChat starts the bubbletea program and closes the recorder
// once the session ends.
func runInteractiveChat() error {
	m := initChat()
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := p.Run()
	if m.recorder != nil {
		if cerr := m.recorder.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "session close: %v\n", cerr)
		}
	}
	return err
}
