package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ccb/internal/config"
	"ccb/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

func TestTurnLine(t *testing.T) {
	out := pipeline.Output{
		Intent:  "question",
		Emotion: "joy",
		Subtext: []string{"seeking_help", "urgency"},
	}
	got := turnLine(3, "can you help?", out)
	want := "- Turn 3: can you help? (Intent: question) (Emotion: joy) (Subtext: seeking_help, urgency)"
	if got != want {
		t.Fatalf("turn line mismatch:\n got %q\nwant %q", got, want)
	}

	out.Subtext = nil
	got = turnLine(1, "hello", out)
	if !strings.Contains(got, "(Subtext: none)") {
		t.Fatalf("expected empty subtext to render as none, got %q", got)
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("short", 10); got != "short" {
		t.Fatalf("expected short string untouched, got %q", got)
	}
	got := truncateLine("héllo wörld", 5)
	if got != "héllo…" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().
		WithMaxTurns(42).
		WithPruneStrategy("newest").
		WithInitialPhase("greeting")
	cfg.SummaryMaxPoints = 7

	opts := optionsFromConfig(cfg)
	if opts.MaxTurns != 42 {
		t.Errorf("MaxTurns = %d, want 42", opts.MaxTurns)
	}
	if opts.PruneStrategy != "newest" {
		t.Errorf("PruneStrategy = %q, want newest", opts.PruneStrategy)
	}
	if opts.InitialPhase != "greeting" {
		t.Errorf("InitialPhase = %q, want greeting", opts.InitialPhase)
	}
	if opts.SummaryMaxTurns != 7 {
		t.Errorf("SummaryMaxTurns = %d, want 7", opts.SummaryMaxTurns)
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	output := captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})

	if !strings.Contains(output, "No messages recorded.") {
		t.Fatalf("expected empty-transcript notice, got: %s", output)
	}
}

func TestRunAnalyzeThenHistory(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	output := captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, []string{"hello", "there"}); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	if !strings.Contains(output, "Intent:") || !strings.Contains(output, "Phase:") {
		t.Fatalf("expected unified output fields, got: %s", output)
	}

	// The exchange lands in the transcript.
	output = captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})
	if !strings.Contains(output, "user: hello there") {
		t.Fatalf("expected recorded user line, got: %s", output)
	}
	if !strings.Contains(output, "- Turn 1: hello there") {
		t.Fatalf("expected recorded turn line, got: %s", output)
	}
}

func TestRunAnalyzeJSON(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	analyzeJSON = true
	defer func() { analyzeJSON = false }()

	output := captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, []string{"thanks for the help!"}); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	var out pipeline.Output
	if err := json.Unmarshal([]byte(output), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, output)
	}
	if out.Intent == "" {
		t.Error("expected a non-empty intent in JSON output")
	}
	if out.Raw.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", out.Raw.TurnCount)
	}
}

func TestRunAnalyzeTone(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	analyzeTone = true
	defer func() { analyzeTone = false }()

	output := captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, []string{"I am so frustrated and annoyed"}); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	if !strings.Contains(output, "Sentiment: negative") {
		t.Fatalf("expected negative sentiment reading, got: %s", output)
	}
	if !strings.Contains(output, "anger") {
		t.Fatalf("expected primary emotion in tone section, got: %s", output)
	}
}

func TestRunHistorySearchAndLimit(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	for _, text := range []string{"the parser crashed", "everything is fine", "parser fixed now"} {
		captureOutput(t, func() {
			if err := runAnalyze(&cobra.Command{}, []string{text}); err != nil {
				t.Fatalf("runAnalyze returned error: %v", err)
			}
		})
	}

	historySearch = "parser"
	defer func() { historySearch = "" }()
	output := captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})
	if strings.Contains(output, "everything is fine") {
		t.Fatalf("search should exclude non-matching lines, got: %s", output)
	}
	if !strings.Contains(output, "the parser crashed") {
		t.Fatalf("search should include matching lines, got: %s", output)
	}

	historySearch = ""
	historyLimit = 2
	defer func() { historyLimit = 0 }()
	output = captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})
	if !strings.Contains(output, "2 message(s)") {
		t.Fatalf("expected limit to cap the listing, got: %s", output)
	}
}

func TestRunSummaryNoSessions(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	output := captureOutput(t, func() {
		if err := runSummary(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runSummary returned error: %v", err)
		}
	})

	if !strings.Contains(output, "No recorded sessions.") {
		t.Fatalf("expected empty-archive notice, got: %s", output)
	}
}

func TestRunSummaryAfterAnalyze(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, []string{"I am so happy today!"}); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	output := captureOutput(t, func() {
		if err := runSummary(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runSummary returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Turn 1:") {
		t.Fatalf("expected digest with the recorded turn, got: %s", output)
	}
	if !strings.Contains(output, "I am so happy today!") {
		t.Fatalf("expected digest to quote the utterance, got: %s", output)
	}
}

func TestRunConfigShowDefaults(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	output := captureOutput(t, func() {
		if err := runConfigShow(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runConfigShow returned error: %v", err)
		}
	})

	if !strings.Contains(output, "# source: built-in defaults") {
		t.Fatalf("expected defaults source marker, got: %s", output)
	}
	if !strings.Contains(output, "max_turns: 100") {
		t.Fatalf("expected default max_turns in YAML, got: %s", output)
	}
}

func TestRunConfigValidate(t *testing.T) {
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	defer func() { workspace = "" }()

	// Defaults are valid.
	output := captureOutput(t, func() {
		if err := runConfigValidate(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runConfigValidate returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Configuration valid.") {
		t.Fatalf("expected clean validation, got: %s", output)
	}

	// An out-of-range file fails with listed issues.
	path := config.DefaultPath(ws)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("max_turns: -1\ntemperature: 3.5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var verr error
	output = captureOutput(t, func() {
		verr = runConfigValidate(&cobra.Command{}, []string{})
	})
	if verr == nil {
		t.Fatal("expected validation failure for out-of-range options")
	}
	if !strings.Contains(output, "max_turns") || !strings.Contains(output, "temperature") {
		t.Fatalf("expected issues for both options, got: %s", output)
	}
}

func TestRunResetForce(t *testing.T) {
	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	defer func() { workspace = "" }()

	resetForce = true
	defer func() { resetForce = false }()

	// Seed a corrupt transcript.
	path := filepath.Join(ws, ".ccb", "conversation.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	output := captureOutput(t, func() {
		if err := runReset(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runReset returned error: %v", err)
		}
	})

	if !strings.Contains(output, "invalid, backed up and reset") {
		t.Fatalf("expected repair outcome, got: %s", output)
	}
	if !strings.Contains(output, "Backup saved to") {
		t.Fatalf("expected backup notice, got: %s", output)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty transcript after reset, got: %s", data)
	}
}

func TestRunStatus(t *testing.T) {
	logger = zap.NewNop()
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	oldTimeout := timeout
	timeout = 5 * time.Second
	defer func() { timeout = oldTimeout }()

	captureOutput(t, func() {
		if err := runAnalyze(&cobra.Command{}, []string{"hi"}); err != nil {
			t.Fatalf("runAnalyze returned error: %v", err)
		}
	})

	output := captureOutput(t, func() {
		if err := runStatus(&cobra.Command{}, []string{}); err != nil {
			t.Fatalf("runStatus returned error: %v", err)
		}
	})

	if !strings.Contains(output, "Transcript: 2 message(s)") {
		t.Fatalf("expected transcript count, got: %s", output)
	}
	if !strings.Contains(output, "Archive: 1 session(s), 1 turn(s)") {
		t.Fatalf("expected archive counts, got: %s", output)
	}
	if !strings.Contains(output, "Initial phase: idle") {
		t.Fatalf("expected config phase, got: %s", output)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
