// Package pipeline orchestrates one analysis pass per utterance: intent,
// emotion, subtext, dialogue phase, history append, and digest regeneration.
// Stages are isolated: a panic inside any classifier is recovered and
// recorded as a StageFailure while the pass continues with that stage's
// default. Process never returns an error for any text input.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"ccb/internal/dialogue"
	"ccb/internal/emotion"
	"ccb/internal/history"
	"ccb/internal/intent"
	"ccb/internal/logging"
	"ccb/internal/subtext"
	"ccb/internal/summary"
	"ccb/internal/textutil"
)

// StageFailure records a recovered fault in one stage.
type StageFailure struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Diagnostics carries the per-stage detail behind an Output.
type Diagnostics struct {
	Phase      string              `json:"phase"`
	Transition dialogue.Transition `json:"transition"`
	TurnCount  int                 `json:"turn_count"`
	LastTurn   *history.Turn       `json:"last_turn,omitempty"`
	TextLength int                 `json:"text_length"`
	Intents    []intent.Result     `json:"intents,omitempty"`
	Emotions   []emotion.Candidate `json:"emotions,omitempty"`
	Failures   []StageFailure      `json:"failures,omitempty"`
}

// Output is the unified result of one pipeline pass.
type Output struct {
	Intent  string      `json:"intent"`
	Emotion string      `json:"emotion"`
	Subtext []string    `json:"subtext"`
	Summary string      `json:"summary,omitempty"`
	Raw     Diagnostics `json:"raw"`
}

// Options tunes one pipeline instance.
type Options struct {
	Summarize        bool   // regenerate the digest after each turn
	SummaryMaxTurns  int    // digest window size
	MultiIntent      bool   // collect every matching intent into diagnostics
	MultiEmotion     bool   // collect emotion candidates into diagnostics
	IncludeRawScores bool   // keep zero-confidence emotion candidates
	InitialPhase     string // dialogue phase the machine starts in
	MaxTurns         int    // history cap, 0 disables pruning
	PruneStrategy    string // oldest or newest
}

// DefaultOptions returns the stock pipeline tuning.
func DefaultOptions() Options {
	return Options{
		Summarize:        true,
		SummaryMaxTurns:  12,
		MultiIntent:      true,
		MultiEmotion:     true,
		IncludeRawScores: true,
		InitialPhase:     "idle",
		MaxTurns:         100,
		PruneStrategy:    history.PruneOldest,
	}
}

// Pipeline wires the classifiers, the phase machine, the turn record, and
// the summarizer behind a single Process call.
type Pipeline struct {
	mu         sync.Mutex
	opts       Options
	intents    *intent.Classifier
	emotions   *emotion.Classifier
	detector   *subtext.Detector
	inferencer *subtext.Inferencer
	machine    *dialogue.Machine
	state      *history.State
	summarizer *summary.Summarizer
	router     *Router
}

// New builds a pipeline from the given options. An unparseable initial
// phase falls back to IDLE with a warning rather than failing construction.
func New(opts Options) *Pipeline {
	if opts.SummaryMaxTurns <= 0 {
		opts.SummaryMaxTurns = DefaultOptions().SummaryMaxTurns
	}
	machine, err := dialogue.NewFromLabel(opts.InitialPhase)
	if err != nil {
		logging.PipelineWarn("invalid initial phase %q, starting at IDLE: %v", opts.InitialPhase, err)
		machine, _ = dialogue.New(dialogue.Idle)
	}
	return &Pipeline{
		opts:       opts,
		intents:    intent.New(),
		emotions:   emotion.New(),
		detector:   subtext.NewDetector(),
		inferencer: subtext.NewInferencer(),
		machine:    machine,
		state:      history.NewState(),
		summarizer: summary.New(summary.DefaultConfig().WithMaxTurns(opts.SummaryMaxTurns)),
		router:     NewRouter(),
	}
}

// NewDefault builds a pipeline with DefaultOptions.
func NewDefault() *Pipeline {
	return New(DefaultOptions())
}

// Process runs one full pass over a user utterance.
func (p *Pipeline) Process(text string) Output {
	return p.ProcessExchange(text, "")
}

// ProcessExchange runs one full pass over a user utterance paired with the
// assistant reply that answered it. The turn is appended to history even
// when stages fault.
func (p *Pipeline) ProcessExchange(text, reply string) Output {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryPipeline, "ProcessExchange")
	defer timer.Stop()

	var failures []StageFailure

	primary, allIntents := p.runIntent(text, &failures)
	emotionLabel, allEmotions := p.runEmotion(text, &failures)
	inferred := p.runSubtext(text, emotionLabel, primary.Label, &failures)
	transition := p.runDialogue(primary.Label, inferred.Primary, &failures)

	turn := history.Turn{
		Utterance: text,
		Reply:     reply,
		Intent:    primary.Label,
		Emotion:   emotionLabel,
		Subtext:   inferred.Signals,
		Phase:     transition.Current.String(),
		CreatedAt: time.Now().UTC(),
	}
	p.state.Append(turn)
	p.prune()

	digest := ""
	if p.opts.Summarize {
		digest = p.runSummary(&failures)
	}

	out := Output{
		Intent:  primary.Label,
		Emotion: emotionLabel,
		Subtext: inferred.Signals,
		Summary: digest,
		Raw: Diagnostics{
			Phase:      p.machine.Current().String(),
			Transition: transition,
			TurnCount:  p.state.Len(),
			TextLength: textutil.CharCount(text),
			Intents:    allIntents,
			Emotions:   allEmotions,
			Failures:   failures,
		},
	}
	if last, ok := p.state.Last(); ok {
		out.Raw.LastTurn = &last
	}

	p.auditTurn(out.Raw.TurnCount, primary, emotionLabel, allEmotions, inferred, transition)
	logging.PipelineDebug("processed turn %d: intent=%s emotion=%s phase=%s failures=%d",
		out.Raw.TurnCount, out.Intent, out.Emotion, out.Raw.Phase, len(failures))
	return out
}

func (p *Pipeline) auditTurn(turnNum int, primary intent.Result, emotionLabel string, emotions []emotion.Candidate, inferred subtext.Result, tr dialogue.Transition) {
	a := logging.Audit()
	a.IntentClassified(turnNum, primary.Label, primary.Confidence)
	conf := 0.0
	if len(emotions) > 0 && emotions[0].Label == emotionLabel {
		conf = emotions[0].Confidence
	}
	a.EmotionScored(turnNum, emotionLabel, conf)
	a.SubtextInferred(turnNum, inferred.Primary, len(inferred.Signals))
	a.PhaseTransition(tr.Previous.String(), tr.Current.String(), tr.Rationale)
}

func (p *Pipeline) runIntent(text string, failures *[]StageFailure) (primary intent.Result, all []intent.Result) {
	defer func() {
		if r := recover(); r != nil {
			*failures = append(*failures, StageFailure{Stage: "intent", Reason: fmt.Sprint(r)})
			primary = intent.Result{Label: intent.LabelUnknown, Confidence: 0, Rationale: "Stage fault"}
			all = nil
			logging.PipelineWarn("intent stage recovered: %v", r)
		}
	}()
	primary = p.intents.Classify(text)
	if p.opts.MultiIntent {
		all = p.intents.ClassifyAll(text)
	}
	return primary, all
}

func (p *Pipeline) runEmotion(text string, failures *[]StageFailure) (label string, all []emotion.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			*failures = append(*failures, StageFailure{Stage: "emotion", Reason: fmt.Sprint(r)})
			label = "neutral"
			all = nil
			logging.PipelineWarn("emotion stage recovered: %v", r)
		}
	}()
	label = p.emotions.Classify(text)
	if p.opts.MultiEmotion {
		threshold := 0.0
		if !p.opts.IncludeRawScores {
			threshold = 0.001
		}
		all = p.emotions.ClassifyAll(text, threshold)
	}
	return label, all
}

func (p *Pipeline) runSubtext(text, emotionLabel, intentLabel string, failures *[]StageFailure) (res subtext.Result) {
	defer func() {
		if r := recover(); r != nil {
			*failures = append(*failures, StageFailure{Stage: "subtext", Reason: fmt.Sprint(r)})
			res = subtext.Result{}
			logging.PipelineWarn("subtext stage recovered: %v", r)
		}
	}()
	return p.inferencer.Infer(text, emotionLabel, intentLabel)
}

func (p *Pipeline) runDialogue(intentLabel, primarySubtext string, failures *[]StageFailure) (tr dialogue.Transition) {
	defer func() {
		if r := recover(); r != nil {
			*failures = append(*failures, StageFailure{Stage: "dialogue", Reason: fmt.Sprint(r)})
			// Phase is unchanged when Advance faults; report a self-loop.
			current := p.machine.Current()
			tr = dialogue.Transition{Previous: current, Current: current, Rationale: "Stage fault"}
			logging.PipelineWarn("dialogue stage recovered: %v", r)
		}
	}()
	return p.machine.Advance(intentLabel, primarySubtext)
}

func (p *Pipeline) runSummary(failures *[]StageFailure) (digest string) {
	defer func() {
		if r := recover(); r != nil {
			*failures = append(*failures, StageFailure{Stage: "summary", Reason: fmt.Sprint(r)})
			digest = ""
			logging.PipelineWarn("summary stage recovered: %v", r)
		}
	}()
	return p.summarizer.Summarize(p.state.Turns)
}

func (p *Pipeline) prune() {
	if p.opts.MaxTurns <= 0 || p.state.Len() <= p.opts.MaxTurns {
		return
	}
	before := p.state.Len()
	if err := p.state.Prune(p.opts.MaxTurns, p.opts.PruneStrategy); err != nil {
		logging.HistoryWarn("prune skipped: %v", err)
		return
	}
	logging.HistoryDebug("pruned %d turns (%s)", before-p.state.Len(), p.opts.PruneStrategy)
}

// Explanation merges the per-stage explanations for one utterance.
type Explanation struct {
	Text    string              `json:"text"`
	Intent  intent.Explanation  `json:"intent"`
	Emotion emotion.Explanation `json:"emotion"`
	Tags    []string            `json:"subtext_tags"`
}

// Explain inspects an utterance without touching history or the machine.
func (p *Pipeline) Explain(text string) Explanation {
	return Explanation{
		Text:    text,
		Intent:  p.intents.Explain(text),
		Emotion: p.emotions.Explain(text),
		Tags:    p.detector.Detect(text),
	}
}

// Route decides the stage order for an utterance's labels without running
// the stages. The default route covers every stage in pipeline order.
func (p *Pipeline) Route(intentLabel, primarySubtext string) Route {
	return p.router.Decide(intentLabel, primarySubtext)
}

// Router exposes the routing table for custom rules.
func (p *Pipeline) Router() *Router {
	return p.router
}

// Summarize regenerates the digest over the current history in the
// configured style.
func (p *Pipeline) Summarize() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summarizer.Summarize(p.state.Turns)
}

// Digest renders the current history in an alternate style without
// changing the configured summarizer.
func (p *Pipeline) Digest(style string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	alt := summary.New(p.summarizer.Config().WithStyle(style))
	digest := alt.Summarize(p.state.Turns)
	logging.Audit().DigestRender(style, len(p.state.Turns), time.Since(start).Milliseconds())
	return digest
}

// Insights derives aggregate observations over the current history.
func (p *Pipeline) Insights() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	recent := p.state.Turns
	if len(recent) > p.opts.SummaryMaxTurns {
		recent = recent[len(recent)-p.opts.SummaryMaxTurns:]
	}
	return p.summarizer.Insights(recent)
}

// Phase returns the machine's current phase.
func (p *Pipeline) Phase() dialogue.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Current()
}

// History returns a copy of the recorded turns.
func (p *Pipeline) History() []history.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	turns := make([]history.Turn, len(p.state.Turns))
	copy(turns, p.state.Turns)
	return turns
}

// State returns a snapshot of the conversation record.
func (p *Pipeline) State() history.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := *p.state
	snap.Turns = make([]history.Turn, len(p.state.Turns))
	copy(snap.Turns, p.state.Turns)
	return snap
}

// Search returns recorded turns whose text contains the keyword.
func (p *Pipeline) Search(keyword string) []history.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Search(keyword)
}

// Reset clears history and returns the machine to IDLE.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Reset()
	p.machine.Reset()
	logging.Pipeline("pipeline reset")
}

// Classifiers exposes the intent registry for rule registration.
func (p *Pipeline) Classifiers() *intent.Classifier {
	return p.intents
}
