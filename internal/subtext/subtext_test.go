package subtext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectEmpty(t *testing.T) {
	d := NewDetector()
	if got := d.Detect("   "); got != nil {
		t.Errorf("Detect(empty) = %v, want nil", got)
	}
	if got := d.DetectWithConfidence(""); len(got) != 0 {
		t.Errorf("DetectWithConfidence(empty) = %v, want empty map", got)
	}
}

func TestDetectEvaluationOrder(t *testing.T) {
	d := NewDetector()
	got := d.Detect("maybe not sure, totally please always")
	want := []string{"hedging", "uncertainty", "possible_sarcasm", "politeness", "exaggeration"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Detect order mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectSarcasmNeedsBothCues(t *testing.T) {
	d := NewDetector()

	got := d.Detect("sure, that will never work")
	if !containsTag(got, "possible_sarcasm") {
		t.Errorf("positive + negation cues: tags %v missing possible_sarcasm", got)
	}

	// Positive cue alone is not sarcasm.
	got = d.Detect("what a wonderful day")
	if containsTag(got, "possible_sarcasm") {
		t.Errorf("positive cue alone: tags %v should not include possible_sarcasm", got)
	}
}

func TestDetectEmphasis(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name string
		in   string
	}{
		{"exclamation", "do it now!"},
		{"all caps token", "read the DOCS first"},
		{"emphasis cue", "that is absolutely the plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.in)
			if !containsTag(got, "emphasis") {
				t.Errorf("Detect(%q) = %v, want emphasis tag", tt.in, got)
			}
		})
	}

	// Both emphasis checks firing still yields a single tag.
	got := d.Detect("this is ABSOLUTELY fine!")
	count := 0
	for _, tag := range got {
		if tag == "emphasis" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Detect deduplication: emphasis appeared %d times in %v", count, got)
	}
}

func TestDetectWithConfidence(t *testing.T) {
	d := NewDetector()
	got := d.DetectWithConfidence("not sure")
	// Two words. Negation hits "not" and the "no" substring, capping at 1.0.
	want := map[string]float64{
		"uncertainty": 0.5,
		"sarcasm":     0.5,
		"negation":    1.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DetectWithConfidence mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectorAddCues(t *testing.T) {
	d := NewDetector()
	if err := d.AddCues(CueHedging, []string{"lowkey"}); err != nil {
		t.Fatalf("AddCues: %v", err)
	}
	if got := d.Detect("lowkey done with this"); !containsTag(got, "hedging") {
		t.Errorf("added cue not matched: %v", got)
	}
	if err := d.AddCues("nonsense", []string{"x"}); err == nil {
		t.Error("AddCues(unknown category): want error")
	}
}

func TestDetectorCategories(t *testing.T) {
	d := NewDetector()
	want := []string{
		CueHedging, CueUncertainty, CueSarcasm, CueNegation,
		CueEmphasis, CuePoliteness, CueExaggeration,
	}
	if diff := cmp.Diff(want, d.Categories()); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
}

func TestInferEmpty(t *testing.T) {
	f := NewInferencer()
	got := f.Infer("", "", "")
	if got.Primary != "" || got.Signals != nil || got.Confidence != 0.0 || got.Rationale != "Empty input" {
		t.Errorf("Infer(empty) = %+v, want zero result with Empty input rationale", got)
	}
}

func TestInferTiredSeeksEmpathy(t *testing.T) {
	f := NewInferencer()
	got := f.Infer("I am so tired and exhausted, can you help?", "tired", "question")

	if !containsTag(got.Signals, SignalSeekingEmpathy) {
		t.Errorf("signals %v missing seeking_empathy", got.Signals)
	}
	if !containsTag(got.Signals, SignalSeekingHelp) {
		t.Errorf("signals %v missing seeking_help", got.Signals)
	}
	if got.Primary != SignalSeekingHelp {
		t.Errorf("Primary = %q, want seeking_help (first in evaluation order)", got.Primary)
	}
	if got.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", got.Confidence)
	}
}

func TestInferConditioning(t *testing.T) {
	f := NewInferencer()
	tests := []struct {
		name    string
		text    string
		emotion string
		intent  string
		want    string
	}{
		{"joy with exclamation", "This is great!", "joy", "", SignalExcitement},
		{"sadness seeks support", "everything went wrong", "sadness", "", SignalSeekingSupport},
		{"exclamation intent", "Wow", "", "exclamation", SignalEmphasis},
		{"venting", "I feel angry", "anger", "emotional_expression", SignalVenting},
		{"bare exclamation", "Do it now!", "", "", SignalEmphasis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Infer(tt.text, tt.emotion, tt.intent)
			if !containsTag(got.Signals, tt.want) {
				t.Errorf("Infer(%q, %q, %q).Signals = %v, want %s present",
					tt.text, tt.emotion, tt.intent, got.Signals, tt.want)
			}
		})
	}
}

func TestInferExcitementSuppressesEmphasis(t *testing.T) {
	f := NewInferencer()
	got := f.Infer("This is great!", "joy", "")
	if containsTag(got.Signals, SignalEmphasis) {
		t.Errorf("signals %v: emphasis should be absorbed by expressing_excitement", got.Signals)
	}
}

func TestInferDeduplicatesOrdered(t *testing.T) {
	f := NewInferencer()
	// seeking_empathy fires from both the keyword group and the emotion rule.
	got := f.Infer("I am tired", "tired", "")
	count := 0
	for _, s := range got.Signals {
		if s == SignalSeekingEmpathy {
			count++
		}
	}
	if count != 1 {
		t.Errorf("seeking_empathy appeared %d times in %v", count, got.Signals)
	}
}

func TestInferPrimaryStable(t *testing.T) {
	f := NewInferencer()
	want := []string{SignalSeekingHelp, SignalApologetic, SignalGratitude}
	for i := 0; i < 20; i++ {
		got := f.Infer("sorry and thanks for the help", "", "")
		if diff := cmp.Diff(want, got.Signals); diff != "" {
			t.Fatalf("run %d signals mismatch (-want +got):\n%s", i, diff)
		}
		if got.Primary != SignalSeekingHelp {
			t.Fatalf("run %d Primary = %q, want seeking_help", i, got.Primary)
		}
	}
}

func TestInferNoSignals(t *testing.T) {
	f := NewInferencer()
	got := f.Infer("the weather is calm", "", "")
	if len(got.Signals) != 0 || got.Primary != "" {
		t.Errorf("Infer(no cues) = %+v, want no signals", got)
	}
	if got.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4", got.Confidence)
	}
}

func TestInferencerCategories(t *testing.T) {
	f := NewInferencer()
	want := []string{
		"help_seeking", "validation_seeking", "empathy_seeking", "clarification",
		"apologetic", "gratitude", "topic_shift", "emphasis",
	}
	if diff := cmp.Diff(want, f.Categories()); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
	if err := f.AddCues("help_seeking", []string{"bail me out"}); err != nil {
		t.Fatalf("AddCues: %v", err)
	}
	got := f.Infer("could you bail me out here", "", "")
	if got.Primary != SignalSeekingHelp {
		t.Errorf("added cue: Primary = %q, want seeking_help", got.Primary)
	}
}

func containsTag(tags []string, tag string) bool {
	for _, v := range tags {
		if v == tag {
			return true
		}
	}
	return false
}
