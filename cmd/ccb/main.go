// Package main provides the ccb CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ccb/internal/config"
	"ccb/internal/history"
	"ccb/internal/logging"
	"ccb/internal/pipeline"
	"ccb/internal/store"
	"ccb/internal/summary"
	"ccb/internal/tone"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ccb",
	Short: "Deterministic conversation analysis pipeline",
	Long: `ccb analyzes conversational text with deterministic rule-based stages:
intent classification, emotion scoring, subtext inference, a dialogue
phase machine, and history digests.

No model calls, no network: the same input always yields the same output.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "ccb" && cmd.CalledAs() == "ccb" {
			return nil
		}

		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Category file logging is a silent no-op unless the workspace
		// debug config enables it.
		if err := logging.Initialize(resolveWorkspace()); err != nil {
			logger.Warn("Category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat()
	},
}

// analyzeCmd runs one pipeline pass over a line of text
var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Run one analysis pass over a line of text",
	Long: `Processes text through the full pipeline:
  1. Intent: ordered rule registry classification
  2. Emotion: keyword scoring with deterministic tie-breaks
  3. Subtext: cue detection plus contextual inference
  4. Dialogue: phase machine advance
  5. Summary: history digest regeneration

The exchange is recorded to the workspace transcript and archive.

Examples:
  ccb analyze "can you help me fix this bug?"
  ccb analyze --json "thanks, that worked"
  ccb analyze --tone "sure, that went great..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

// chatCmd starts the interactive chat interface explicitly
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// historyCmd prints the recorded transcript
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the recorded conversation transcript",
	RunE:  runHistory,
}

// summaryCmd renders a digest of archived turns
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Render a digest of archived turns",
	Long: `Loads recorded turns from the archive and renders them in the chosen
style. Defaults to the most recently active session.

Examples:
  ccb summary
  ccb summary --style narrative
  ccb summary --style json --session 1a2b3c4d`,
	RunE: runSummary,
}

// configCmd groups the configuration inspection commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration and its source",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and report issues",
	RunE:  runConfigValidate,
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the config file and print reload events",
	RunE:  runConfigWatch,
}

// resetCmd resets the conversation memory file
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the conversation memory file",
	Long: `Checks the memory file and resets it to an empty transcript. A corrupt
or malformed file is backed up next to the original before the reset.`,
	RunE: runReset,
}

// statusCmd shows workspace status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ccb workspace status",
	RunE:  runStatus,
}

// Command flags
var (
	analyzeJSON    bool
	analyzeReply   string
	analyzeExplain bool
	analyzeTone    bool
	historySearch  string
	historyLimit   int
	summaryStyle   string
	summarySession string
	summaryLimit   int
	resetForce     bool
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.ccb/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	// Analyze flags
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the structured output as JSON")
	analyzeCmd.Flags().StringVar(&analyzeReply, "reply", "", "Assistant reply paired with the text")
	analyzeCmd.Flags().BoolVar(&analyzeExplain, "explain", false, "Show the per-stage scoring rationale")
	analyzeCmd.Flags().BoolVar(&analyzeTone, "tone", false, "Include the sentiment and tone reading")

	// History flags
	historyCmd.Flags().StringVar(&historySearch, "search", "", "Only messages containing this keyword")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Only the last N messages")

	// Summary flags
	summaryCmd.Flags().StringVar(&summaryStyle, "style", summary.StyleBullet, "Digest style: bullet, narrative, json, markdown")
	summaryCmd.Flags().StringVar(&summarySession, "session", "", "Session ID (default: most recently active)")
	summaryCmd.Flags().IntVar(&summaryLimit, "limit", 0, "Only the last N turns")

	// Reset flags
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip the confirmation prompt")

	// Config subcommands
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configWatchCmd)

	// Add commands to root
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runAnalyze processes one utterance and records the exchange
func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	ws := resolveWorkspace()
	cfg := loadConfig(ws)
	text := joinArgs(args)
	logger.Info("Analyzing text",
		zap.String("input", text),
		zap.Int("chars", len(text)))

	pipe := pipeline.New(optionsFromConfig(cfg))
	out := pipe.ProcessExchange(text, analyzeReply)

	// Record the exchange
	rec := store.OpenRecorder(ws)
	defer func() { _ = rec.Close() }()
	if out.Raw.LastTurn != nil {
		turn := *out.Raw.LastTurn
		if turn.Reply == "" {
			turn.Reply = turnLine(out.Raw.TurnCount, text, out)
		}
		rec.Record(turn, out.Raw.TurnCount)
	}
	if err := rec.Flush(ctx); err != nil {
		logger.Warn("Recording incomplete", zap.Error(err))
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printOutput(out)
	if analyzeTone {
		printTone(tone.New().Detect(text))
	}
	if analyzeExplain {
		printExplanation(pipe.Explain(text))
	}
	return nil
}

// printOutput renders the unified output for terminals
func printOutput(out pipeline.Output) {
	fmt.Printf("Intent:  %s\n", out.Intent)
	fmt.Printf("Emotion: %s\n", out.Emotion)
	subtext := "none"
	if len(out.Subtext) > 0 {
		subtext = strings.Join(out.Subtext, ", ")
	}
	fmt.Printf("Subtext: %s\n", subtext)
	if t := out.Raw.Transition; t.Previous != t.Current {
		fmt.Printf("Phase:   %s (was %s: %s)\n", out.Raw.Phase, t.Previous, t.Rationale)
	} else {
		fmt.Printf("Phase:   %s\n", out.Raw.Phase)
	}
	for _, f := range out.Raw.Failures {
		fmt.Printf("Fault:   %s: %s\n", f.Stage, f.Reason)
	}
	if out.Summary != "" {
		fmt.Println()
		fmt.Println(out.Summary)
	}
}

// printTone renders the richer sentiment reading
func printTone(r tone.Result) {
	fmt.Println()
	fmt.Println("Tone")
	fmt.Println("----")
	fmt.Printf("Sentiment: %s (confidence %.2f)\n", r.Sentiment, r.Confidence)
	if r.Primary != "" {
		fmt.Printf("Primary:   %s\n", r.Primary)
	}
	if len(r.Tones) > 0 {
		fmt.Printf("Tones:     %s\n", strings.Join(r.Tones, ", "))
	}
}

// printExplanation renders the per-stage scoring breakdown
func printExplanation(exp pipeline.Explanation) {
	fmt.Println()
	fmt.Println("Explanation")
	fmt.Println("-----------")
	fmt.Printf("Intent:  %s (confidence %.2f) %s\n",
		exp.Intent.Dominant.Label, exp.Intent.Dominant.Confidence, exp.Intent.Dominant.Rationale)
	for _, r := range exp.Intent.Matches {
		if r.Label != exp.Intent.Dominant.Label {
			fmt.Printf("         also matched %s (%.2f)\n", r.Label, r.Confidence)
		}
	}
	fmt.Printf("Emotion: %s (confidence %.2f)\n", exp.Emotion.Dominant, exp.Emotion.Confidence)
	for _, c := range exp.Emotion.Breakdown {
		fmt.Printf("         %s %.2f\n", c.Label, c.Confidence)
	}
	if len(exp.Tags) > 0 {
		fmt.Printf("Cues:    %s\n", strings.Join(exp.Tags, ", "))
	}
}

// runHistory prints the stored transcript
func runHistory(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	log := store.NewMessageLog(store.DefaultLogPath(ws))

	msgs := log.All()
	if historySearch != "" {
		msgs = log.Search(historySearch)
	}
	if historyLimit > 0 && len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}

	if len(msgs) == 0 {
		fmt.Println("No messages recorded.")
		return nil
	}

	for _, msg := range msgs {
		stamp := ""
		if !msg.Timestamp.IsZero() {
			stamp = msg.Timestamp.Format("2006-01-02 15:04") + " "
		}
		fmt.Printf("%s%s: %s\n", stamp, msg.Sender, msg.Text)
	}
	fmt.Printf("\n%d message(s)\n", len(msgs))
	return nil
}

// runSummary digests archived turns in the requested style
func runSummary(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg := loadConfig(ws)

	arch, err := store.NewArchive(store.DefaultArchivePath(ws))
	if err != nil {
		return fmt.Errorf("archive unavailable: %w", err)
	}
	defer arch.Close()

	sessionID := summarySession
	if sessionID == "" {
		sessions, err := arch.Sessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No recorded sessions.")
			return nil
		}
		sessionID = sessions[0].ID
	}

	rows, err := arch.RecentTurns(sessionID, summaryLimit)
	if err != nil {
		return fmt.Errorf("failed to load turns: %w", err)
	}
	turns := turnsFromRows(rows)

	conf := summary.DefaultConfig().
		WithMaxTurns(cfg.SummaryMaxPoints).
		WithStyle(summaryStyle)
	fmt.Println(summary.New(conf).Summarize(turns))
	return nil
}

// turnsFromRows converts archive rows to history turns, oldest first.
func turnsFromRows(rows []store.TurnRow) []history.Turn {
	turns := make([]history.Turn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		var tags []string
		if r.Subtext != "" {
			tags = strings.Split(r.Subtext, ",")
		}
		turns = append(turns, history.Turn{
			Utterance: r.Utterance,
			Reply:     r.Reply,
			Intent:    r.Intent,
			Emotion:   r.Emotion,
			Subtext:   tags,
			Phase:     r.Phase,
			CreatedAt: r.CreatedAt,
		})
	}
	return turns
}

// runConfigShow prints the effective configuration and where it came from
func runConfigShow(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	path := resolveConfigPath(ws)
	cfg := loadConfig(ws)

	source := "built-in defaults"
	if _, err := os.Stat(path); err == nil {
		source = path
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Printf("# source: %s\n", source)
	if overrides := config.ActiveEnvOverrides(); len(overrides) > 0 {
		for _, opt := range overrides {
			fmt.Printf("# env override: %s\n", config.EnvKey(opt))
		}
	}
	fmt.Print(string(data))
	return nil
}

// runConfigValidate reports validation issues, failing if any exist
func runConfigValidate(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	path := resolveConfigPath(ws)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Load: %v (fell back to defaults)\n", err)
	}

	issues := cfg.Validate()
	if len(issues) == 0 {
		fmt.Println("Configuration valid.")
		return nil
	}

	for _, issue := range issues {
		fmt.Printf("  %s\n", issue)
	}
	cmd.SilenceUsage = true
	return fmt.Errorf("%d validation issue(s)", len(issues))
}

// runConfigWatch watches the config file and prints reload events
func runConfigWatch(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	path := resolveConfigPath(ws)

	w, err := config.NewWatcher(path)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	updates := w.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Printf("[%s] reloaded: max_turns=%d prune=%s phase=%s log_level=%s\n",
				time.Now().Format("15:04:05"),
				cfg.MaxTurns, cfg.PruneStrategy, cfg.InitialPhase, cfg.LogLevel)
		case <-sigCh:
			stats := w.Stats()
			fmt.Printf("\nStopped after %d event(s), %d reload(s), %d error(s)\n",
				stats.Events, stats.Reloads, stats.Errors)
			return nil
		}
	}
}

// runReset resets the memory file, backing up corrupt content
func runReset(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	path := store.DefaultLogPath(ws)

	if !resetForce {
		fmt.Printf("Reset conversation memory at %s? [y/N] ", path)
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	outcome, backup, err := store.ResetFile(path)
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	fmt.Printf("Memory file %s: %s\n", path, outcome)
	if backup != "" {
		fmt.Printf("Backup saved to %s\n", backup)
	}
	return nil
}

// runStatus displays workspace status
func runStatus(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg := loadConfig(ws)

	fmt.Println("ccb workspace status")
	fmt.Println("====================")
	fmt.Printf("Workspace: %s\n", ws)

	path := resolveConfigPath(ws)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("✓ Config: %s\n", path)
	} else {
		fmt.Printf("✗ Config: built-in defaults (%s missing)\n", path)
	}
	fmt.Printf("  Initial phase: %s\n", cfg.InitialPhase)
	fmt.Printf("  History cap:   %d turns (prune %s)\n", cfg.MaxTurns, cfg.PruneStrategy)

	log := store.NewMessageLog(store.DefaultLogPath(ws))
	fmt.Printf("✓ Transcript: %d message(s)\n", log.Len())
	if last := log.Last(); last != nil {
		fmt.Printf("  Last: [%s] %s\n", last.Sender, truncateLine(last.Text, 60))
	}

	arch, err := store.NewArchive(store.DefaultArchivePath(ws))
	if err != nil {
		fmt.Printf("✗ Archive unavailable: %v\n", err)
		return nil
	}
	defer arch.Close()

	counts, err := arch.Stats()
	if err != nil {
		fmt.Printf("✗ Archive stats failed: %v\n", err)
		return nil
	}
	fmt.Printf("✓ Archive: %d session(s), %d turn(s)\n", counts["sessions"], counts["turns"])

	sessions, err := arch.Sessions()
	if err == nil && len(sessions) > 0 {
		s := sessions[0]
		fmt.Printf("  Last session: %s (%d turns, phase %s, active %s)\n",
			s.ID, s.TurnCount, s.Phase, s.LastActive.Format("2006-01-02 15:04"))
	}
	return nil
}

// resolveWorkspace returns the workspace flag or the current directory
func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// resolveConfigPath returns the config flag or the workspace default
func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath(ws)
}

// loadConfig reads the effective configuration, logging degradations
// instead of failing. Missing files yield defaults.
func loadConfig(ws string) config.Config {
	path := resolveConfigPath(ws)
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("Config load degraded", zap.String("path", path), zap.Error(err))
		logging.Audit().ConfigEvent(logging.AuditConfigInvalid, path, false, err.Error())
	} else {
		logging.Audit().ConfigEvent(logging.AuditConfigLoad, path, true, "")
	}
	for _, issue := range cfg.Validate() {
		logger.Warn("Config validation",
			zap.String("option", issue.Option),
			zap.String("message", issue.Message))
	}
	return cfg
}

// optionsFromConfig maps the file configuration onto pipeline tuning.
func optionsFromConfig(cfg config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.SummaryMaxTurns = cfg.SummaryMaxPoints
	opts.InitialPhase = cfg.InitialPhase
	opts.MaxTurns = cfg.MaxTurns
	opts.PruneStrategy = cfg.PruneStrategy
	return opts
}

// turnLine builds the per-turn transcript line recorded as the assistant
// message: "- Turn N: text (Intent: x) (Emotion: y) (Subtext: a, b)".
func turnLine(n int, text string, out pipeline.Output) string {
	tags := "none"
	if len(out.Subtext) > 0 {
		tags = strings.Join(out.Subtext, ", ")
	}
	return fmt.Sprintf("- Turn %d: %s (Intent: %s) (Emotion: %s) (Subtext: %s)",
		n, text, out.Intent, out.Emotion, tags)
}

func truncateLine(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func joinArgs(args []string) string {
	result := ""
	for i, arg := range args {
		if i > 0 {
			result += " "
		}
		result += arg
	}
	return result
}
