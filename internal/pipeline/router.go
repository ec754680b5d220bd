package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Route is a planned stage order with the reasoning that produced it.
type Route struct {
	Stages    []string `json:"stages"`
	Rationale string   `json:"rationale"`
}

var defaultRoute = []string{"intent", "emotion", "subtext", "dialogue", "summary"}

// DefaultRoute returns the stage order used when no adjustment applies.
func DefaultRoute() []string {
	return append([]string(nil), defaultRoute...)
}

// Router plans the stage order for a turn from its intent and primary
// subtext. Custom per-intent rules take precedence over the built-in
// adjustments.
type Router struct {
	mu    sync.RWMutex
	rules map[string][]string
}

// NewRouter returns a router with no custom rules.
func NewRouter() *Router {
	return &Router{rules: make(map[string][]string)}
}

// Decide returns the stage order for the given labels. The rationale
// records the inputs and every adjustment applied, joined by "; ".
func (r *Router) Decide(intentLabel, primarySubtext string) Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := DefaultRoute()
	var actions []string

	if custom, ok := r.rules[intentLabel]; ok {
		stages = append([]string(nil), custom...)
		actions = append(actions, fmt.Sprintf("Applied custom rule for intent=%s", intentLabel))
	} else {
		switch intentLabel {
		case "closing", "goodbye":
			stages = []string{"intent", "dialogue", "summary"}
			actions = append(actions, "Simplified route for closing intent")
		case "math", "code":
			stages = append(stages, "model")
			actions = append(actions, "Added model stage for math/code processing")
		}
		switch primarySubtext {
		case "seeking_empathy", "emotional_support":
			stages = moveToFront(stages, "emotion")
			actions = append(actions, "Prioritized emotion-aware response due to subtext")
		case "seeking_clarification":
			stages = append([]string{"clarification"}, stages...)
			actions = append(actions, "Inserted clarification stage due to subtext")
		}
	}

	parts := []string{fmt.Sprintf("Intent=%s", intentLabel)}
	if primarySubtext != "" {
		parts = append(parts, fmt.Sprintf("Subtext=%s", primarySubtext))
	}
	parts = append(parts, actions...)
	return Route{Stages: stages, Rationale: strings.Join(parts, "; ")}
}

// moveToFront reorders stage to the head, inserting it when absent.
func moveToFront(stages []string, stage string) []string {
	out := make([]string, 0, len(stages)+1)
	out = append(out, stage)
	for _, s := range stages {
		if s != stage {
			out = append(out, s)
		}
	}
	return out
}

// AddRule installs a custom stage order for an intent label, replacing any
// previous rule for that label.
func (r *Router) AddRule(intentLabel string, stages []string) error {
	if intentLabel == "" {
		return fmt.Errorf("intent label required")
	}
	if len(stages) == 0 {
		return fmt.Errorf("stages required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[intentLabel] = append([]string(nil), stages...)
	return nil
}

// RemoveRule drops the custom rule for an intent label.
func (r *Router) RemoveRule(intentLabel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, intentLabel)
}

// Rules returns the custom rules sorted by intent label.
func (r *Router) Rules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.rules))
	for label := range r.rules {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Rule returns the custom stage order for an intent label, if any.
func (r *Router) Rule(intentLabel string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stages, ok := r.rules[intentLabel]
	if !ok {
		return nil, false
	}
	return append([]string(nil), stages...), true
}
