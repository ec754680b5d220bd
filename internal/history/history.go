// Package history keeps the append-only record of processed turns plus the
// derived last-intent and last-emotion fields. Mutation happens only through
// Append, Prune, and Reset; callers serialize access, matching the
// single-threaded pipeline contract.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Prune strategies.
const (
	PruneOldest = "oldest"
	PruneNewest = "newest"
)

// ErrUnknownStrategy marks a prune call with an unrecognized strategy. The
// history is left untouched; the caller decides how to report it.
var ErrUnknownStrategy = errors.New("unknown prune strategy")

// Turn is one processed utterance with its classification outputs. A Turn is
// created once by the pipeline and never mutated afterward, except for
// metadata enrichment.
type Turn struct {
	Utterance string            `json:"user_text"`
	Reply     string            `json:"assistant_text,omitempty"`
	Intent    string            `json:"intent"`
	Emotion   string            `json:"emotion"`
	Subtext   []string          `json:"subtext_tags"`
	Phase     string            `json:"state,omitempty"`
	CreatedAt time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// State is the conversation record: chronological turns plus derived fields.
type State struct {
	Turns       []Turn            `json:"turns"`
	LastIntent  string            `json:"last_intent,omitempty"`
	LastEmotion string            `json:"last_emotion,omitempty"`
	Phase       string            `json:"current_state"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// NewState returns an empty conversation at phase IDLE.
func NewState() *State {
	return &State{Phase: "IDLE", Meta: map[string]string{}}
}

// Append pushes a turn to the end and refreshes the derived fields. When the
// turn carries a phase, the conversation phase follows it, keeping the
// phase-of-newest-turn invariant.
func (s *State) Append(t Turn) {
	s.Turns = append(s.Turns, t)
	s.LastIntent = t.Intent
	s.LastEmotion = t.Emotion
	if t.Phase != "" {
		s.Phase = t.Phase
	}
}

// Len returns the number of recorded turns.
func (s *State) Len() int {
	return len(s.Turns)
}

// Last returns the most recent turn, if any.
func (s *State) Last() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// Prune truncates the history to at most max turns. Strategy "oldest" drops
// from the head, keeping the most recent turns; "newest" drops from the
// tail, keeping the earliest. Anything else returns ErrUnknownStrategy and
// drops nothing.
func (s *State) Prune(max int, strategy string) error {
	if max < 0 {
		max = 0
	}
	if len(s.Turns) <= max {
		return nil
	}
	switch strategy {
	case PruneOldest:
		s.Turns = s.Turns[len(s.Turns)-max:]
	case PruneNewest:
		s.Turns = s.Turns[:max]
	default:
		return fmt.Errorf("%w %q (valid: oldest, newest)", ErrUnknownStrategy, strategy)
	}
	return nil
}

// Search returns every turn whose utterance or reply contains the keyword,
// case-insensitively, in chronological order.
func (s *State) Search(keyword string) []Turn {
	needle := strings.ToLower(keyword)
	var out []Turn
	for _, t := range s.Turns {
		if strings.Contains(strings.ToLower(t.Utterance), needle) ||
			strings.Contains(strings.ToLower(t.Reply), needle) {
			out = append(out, t)
		}
	}
	return out
}

// Reset empties the record and returns the phase to IDLE.
func (s *State) Reset() {
	s.Turns = nil
	s.LastIntent = ""
	s.LastEmotion = ""
	s.Phase = "IDLE"
	s.Meta = map[string]string{}
}

// SetMeta attaches free-form metadata to the conversation.
func (s *State) SetMeta(key, value string) {
	if s.Meta == nil {
		s.Meta = map[string]string{}
	}
	s.Meta[key] = value
}

// GetMeta reads conversation metadata.
func (s *State) GetMeta(key string) (string, bool) {
	v, ok := s.Meta[key]
	return v, ok
}

// Window returns the last n turns without copying the backing array. n
// larger than the history returns everything.
func (s *State) Window(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}
