package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func turnN(n int) Turn {
	return Turn{
		Utterance: fmt.Sprintf("utterance %d", n),
		Intent:    fmt.Sprintf("intent-%d", n),
		Emotion:   fmt.Sprintf("emotion-%d", n),
		Phase:     "FOLLOWUP",
	}
}

func TestAppendUpdatesDerivedFields(t *testing.T) {
	s := NewState()
	if s.Phase != "IDLE" {
		t.Fatalf("fresh state phase = %q, want IDLE", s.Phase)
	}

	s.Append(Turn{Utterance: "hi", Intent: "greeting", Emotion: "joy", Phase: "GREETING"})
	if s.LastIntent != "greeting" || s.LastEmotion != "joy" {
		t.Errorf("derived fields = %q/%q, want greeting/joy", s.LastIntent, s.LastEmotion)
	}
	if s.Phase != "GREETING" {
		t.Errorf("phase = %q, want GREETING (phase of newest turn)", s.Phase)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	s.Append(Turn{Utterance: "bye", Intent: "closing", Emotion: "neutral", Phase: "CLOSING"})
	if s.LastIntent != "closing" || s.Phase != "CLOSING" {
		t.Errorf("after second append: %q/%q", s.LastIntent, s.Phase)
	}
}

func TestPruneOldest(t *testing.T) {
	s := NewState()
	for i := 0; i < 10; i++ {
		s.Append(turnN(i))
	}
	if err := s.Prune(3, PruneOldest); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	var got []string
	for _, turn := range s.Turns {
		got = append(got, turn.Utterance)
	}
	want := []string{"utterance 7", "utterance 8", "utterance 9"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("oldest strategy keeps most recent in order (-want +got):\n%s", diff)
	}
}

func TestPruneNewest(t *testing.T) {
	s := NewState()
	for i := 0; i < 10; i++ {
		s.Append(turnN(i))
	}
	if err := s.Prune(3, PruneNewest); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	var got []string
	for _, turn := range s.Turns {
		got = append(got, turn.Utterance)
	}
	want := []string{"utterance 0", "utterance 1", "utterance 2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("newest strategy keeps earliest in order (-want +got):\n%s", diff)
	}
}

func TestPruneNoopWhenSmall(t *testing.T) {
	s := NewState()
	s.Append(turnN(1))
	s.Append(turnN(2))
	if err := s.Prune(5, PruneOldest); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 (no-op)", s.Len())
	}
}

func TestPruneUnknownStrategy(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.Append(turnN(i))
	}
	err := s.Prune(2, "sideways")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("Prune(sideways) err = %v, want ErrUnknownStrategy", err)
	}
	if s.Len() != 5 {
		t.Errorf("unknown strategy must drop nothing, Len = %d", s.Len())
	}
}

func TestSearch(t *testing.T) {
	s := NewState()
	s.Append(Turn{Utterance: "Tell me about Go", Reply: "Sure, it is a language"})
	s.Append(Turn{Utterance: "and about rust?", Reply: "Also a language"})
	s.Append(Turn{Utterance: "thanks"})

	if got := s.Search("ABOUT"); len(got) != 2 {
		t.Errorf("Search(ABOUT) matched %d turns, want 2 (case-insensitive)", len(got))
	}
	if got := s.Search("language"); len(got) != 2 {
		t.Errorf("Search over replies matched %d, want 2", len(got))
	}
	if got := s.Search("zebra"); len(got) != 0 {
		t.Errorf("Search(zebra) matched %d, want 0", len(got))
	}
}

func TestReset(t *testing.T) {
	s := NewState()
	s.Append(turnN(1))
	s.SetMeta("topic", "go")
	s.Reset()

	if s.Len() != 0 || s.LastIntent != "" || s.LastEmotion != "" {
		t.Errorf("after Reset: %+v", s)
	}
	if s.Phase != "IDLE" {
		t.Errorf("after Reset phase = %q, want IDLE", s.Phase)
	}
	if _, ok := s.GetMeta("topic"); ok {
		t.Error("after Reset meta should be empty")
	}
}

func TestLast(t *testing.T) {
	s := NewState()
	if _, ok := s.Last(); ok {
		t.Error("Last on empty state returned ok")
	}
	s.Append(turnN(1))
	s.Append(turnN(2))
	last, ok := s.Last()
	if !ok || last.Utterance != "utterance 2" {
		t.Errorf("Last = %+v, %v", last, ok)
	}
}

func TestWindow(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.Append(turnN(i))
	}
	if got := s.Window(3); len(got) != 3 || got[0].Utterance != "utterance 2" {
		t.Errorf("Window(3) = %d turns starting %q", len(got), got[0].Utterance)
	}
	if got := s.Window(10); len(got) != 5 {
		t.Errorf("Window(10) = %d turns, want all 5", len(got))
	}
	if got := s.Window(0); got != nil {
		t.Errorf("Window(0) = %v, want nil", got)
	}
}

func TestMeta(t *testing.T) {
	s := NewState()
	s.SetMeta("k", "v")
	if v, ok := s.GetMeta("k"); !ok || v != "v" {
		t.Errorf("GetMeta = %q, %v", v, ok)
	}
	if _, ok := s.GetMeta("absent"); ok {
		t.Error("GetMeta(absent) returned ok")
	}
}
