package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecideBuiltinAdjustments(t *testing.T) {
	r := NewRouter()
	tests := []struct {
		name          string
		intent        string
		subtext       string
		wantStages    []string
		wantRationale string
	}{
		{
			"default order",
			"question", "",
			[]string{"intent", "emotion", "subtext", "dialogue", "summary"},
			"Intent=question",
		},
		{
			"closing simplifies",
			"closing", "",
			[]string{"intent", "dialogue", "summary"},
			"Intent=closing; Simplified route for closing intent",
		},
		{
			"goodbye alias",
			"goodbye", "",
			[]string{"intent", "dialogue", "summary"},
			"Intent=goodbye; Simplified route for closing intent",
		},
		{
			"math adds model",
			"math", "",
			[]string{"intent", "emotion", "subtext", "dialogue", "summary", "model"},
			"Intent=math; Added model stage for math/code processing",
		},
		{
			"code adds model",
			"code", "",
			[]string{"intent", "emotion", "subtext", "dialogue", "summary", "model"},
			"Intent=code; Added model stage for math/code processing",
		},
		{
			"empathy moves emotion first",
			"question", "seeking_empathy",
			[]string{"emotion", "intent", "subtext", "dialogue", "summary"},
			"Intent=question; Subtext=seeking_empathy; Prioritized emotion-aware response due to subtext",
		},
		{
			"emotional_support alias",
			"question", "emotional_support",
			[]string{"emotion", "intent", "subtext", "dialogue", "summary"},
			"Intent=question; Subtext=emotional_support; Prioritized emotion-aware response due to subtext",
		},
		{
			"clarification prepends",
			"question", "seeking_clarification",
			[]string{"clarification", "intent", "emotion", "subtext", "dialogue", "summary"},
			"Intent=question; Subtext=seeking_clarification; Inserted clarification stage due to subtext",
		},
		{
			// The closing route dropped emotion, so prioritizing inserts it.
			"closing with empathy",
			"closing", "seeking_empathy",
			[]string{"emotion", "intent", "dialogue", "summary"},
			"Intent=closing; Subtext=seeking_empathy; Simplified route for closing intent; Prioritized emotion-aware response due to subtext",
		},
		{
			"math with clarification",
			"math", "seeking_clarification",
			[]string{"clarification", "intent", "emotion", "subtext", "dialogue", "summary", "model"},
			"Intent=math; Subtext=seeking_clarification; Added model stage for math/code processing; Inserted clarification stage due to subtext",
		},
		{
			"unrouted subtext recorded but ignored",
			"question", "venting",
			[]string{"intent", "emotion", "subtext", "dialogue", "summary"},
			"Intent=question; Subtext=venting",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Decide(tt.intent, tt.subtext)
			if diff := cmp.Diff(tt.wantStages, got.Stages); diff != "" {
				t.Errorf("Decide(%q, %q) stages mismatch (-want +got):\n%s", tt.intent, tt.subtext, diff)
			}
			if got.Rationale != tt.wantRationale {
				t.Errorf("Decide(%q, %q).Rationale = %q, want %q", tt.intent, tt.subtext, got.Rationale, tt.wantRationale)
			}
		})
	}
}

func TestCustomRulePrecedence(t *testing.T) {
	r := NewRouter()
	if err := r.AddRule("question", []string{"intent", "model", "summary"}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	// Custom rules bypass every built-in adjustment, subtext included.
	got := r.Decide("question", "seeking_clarification")
	if diff := cmp.Diff([]string{"intent", "model", "summary"}, got.Stages); diff != "" {
		t.Errorf("custom stages mismatch (-want +got):\n%s", diff)
	}
	want := "Intent=question; Subtext=seeking_clarification; Applied custom rule for intent=question"
	if got.Rationale != want {
		t.Errorf("Rationale = %q, want %q", got.Rationale, want)
	}

	// Returned stages are a copy of the rule.
	got.Stages[0] = "mutated"
	if again := r.Decide("question", ""); again.Stages[0] != "intent" {
		t.Errorf("Decide result mutation leaked into the rule: %v", again.Stages)
	}

	r.RemoveRule("question")
	got = r.Decide("question", "")
	if diff := cmp.Diff(DefaultRoute(), got.Stages); diff != "" {
		t.Errorf("after RemoveRule, stages mismatch (-want +got):\n%s", diff)
	}
}

func TestAddRuleValidation(t *testing.T) {
	r := NewRouter()
	if err := r.AddRule("", []string{"intent"}); err == nil {
		t.Error("AddRule with empty label: want error")
	}
	if err := r.AddRule("question", nil); err == nil {
		t.Error("AddRule with no stages: want error")
	}
}

func TestRulesSortedAndCopied(t *testing.T) {
	r := NewRouter()
	if err := r.AddRule("zeta", []string{"summary"}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if err := r.AddRule("alpha", []string{"intent"}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	if diff := cmp.Diff([]string{"alpha", "zeta"}, r.Rules()); diff != "" {
		t.Errorf("Rules mismatch (-want +got):\n%s", diff)
	}

	stages, ok := r.Rule("alpha")
	if !ok {
		t.Fatal("Rule(alpha) not found")
	}
	stages[0] = "mutated"
	if again, _ := r.Rule("alpha"); again[0] != "intent" {
		t.Errorf("Rule copy mutation leaked: %v", again)
	}

	if _, ok := r.Rule("missing"); ok {
		t.Error("Rule(missing) = ok, want false")
	}
}

func TestDefaultRouteIsCopy(t *testing.T) {
	first := DefaultRoute()
	first[0] = "mutated"
	if diff := cmp.Diff([]string{"intent", "emotion", "subtext", "dialogue", "summary"}, DefaultRoute()); diff != "" {
		t.Errorf("DefaultRoute shared its backing array (-want +got):\n%s", diff)
	}
}
