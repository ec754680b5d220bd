package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ccb/internal/history"
	"ccb/internal/logging"
)

// Recorder binds one session to the message log and the archive. Turns are
// staged in memory by Record and written out by Flush, so a burst of turns
// costs one flush. The archive is optional: when it failed to open the
// recorder degrades to JSON-log-only.
type Recorder struct {
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	log       *MessageLog
	archive   *Archive
	pending   []pendingTurn
	lastTurn  int
	lastPhase string
}

type pendingTurn struct {
	number int
	turn   history.Turn
}

// NewRecorder creates a recorder with a fresh short session ID. archive
// may be nil for log-only operation.
func NewRecorder(log *MessageLog, archive *Archive) *Recorder {
	sessionID := uuid.New().String()[:8]
	logging.Store("Recorder session started: %s", sessionID)
	logging.Audit().SessionStart(sessionID)

	return &Recorder{
		sessionID: sessionID,
		startedAt: time.Now(),
		log:       log,
		archive:   archive,
	}
}

// OpenRecorder wires a recorder for a workspace: message log plus archive,
// degrading to log-only when the archive cannot be opened.
func OpenRecorder(workspace string) *Recorder {
	log := NewMessageLog(DefaultLogPath(workspace))

	archive, err := NewArchive(DefaultArchivePath(workspace))
	if err != nil {
		logging.StoreWarn("Archive unavailable, recording to message log only: %v", err)
		archive = nil
	}

	return NewRecorder(log, archive)
}

// SessionID returns the short session identifier.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Log returns the underlying message log.
func (r *Recorder) Log() *MessageLog {
	return r.log
}

// Archive returns the underlying archive, nil in log-only mode.
func (r *Recorder) Archive() *Archive {
	return r.archive
}

// Record stages one analyzed turn for the next Flush.
func (r *Recorder) Record(turn history.Turn, turnNumber int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, pendingTurn{number: turnNumber, turn: turn})
	if turnNumber > r.lastTurn {
		r.lastTurn = turnNumber
	}
	r.lastPhase = turn.Phase
}

// Pending returns the number of staged turns.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes the staged turns: transcript entries to the message log and
// turn rows plus the session row to the archive, in parallel. Individual
// write failures are logged and skipped; Flush itself fails only when the
// context is canceled.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	lastTurn := r.lastTurn
	lastPhase := r.lastPhase
	r.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, p := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.log.Add("user", p.turn.Utterance, "user")
			if p.turn.Reply != "" {
				r.log.Add("ccb", p.turn.Reply, "assistant")
			}
		}
		return nil
	})

	if r.archive != nil {
		g.Go(func() error {
			for _, p := range pending {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := r.archive.RecordTurn(
					r.sessionID, p.number,
					p.turn.Utterance, p.turn.Reply,
					p.turn.Intent, p.turn.Emotion,
					strings.Join(p.turn.Subtext, ","),
					p.turn.Phase,
				)
				if err != nil {
					logging.StoreWarn("Archive turn write failed: session=%s turn=%d: %v", r.sessionID, p.number, err)
				}
			}
			if err := r.archive.UpsertSession(r.sessionID, r.startedAt, lastTurn, lastPhase); err != nil {
				logging.StoreWarn("Archive session update failed: session=%s: %v", r.sessionID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Re-stage so a later Flush (or Close) can retry. The archive side
		// is idempotent; the transcript may gain duplicates only when the
		// cancellation landed mid-write.
		r.mu.Lock()
		r.pending = append(pending, r.pending...)
		r.mu.Unlock()
		logging.StoreWarn("Flush aborted, %d turns re-staged: %v", len(pending), err)
		return err
	}

	logging.StoreDebug("Flushed %d turns: session=%s", len(pending), r.sessionID)
	return nil
}

// Close flushes any staged turns and closes the archive.
func (r *Recorder) Close() error {
	err := r.Flush(context.Background())

	r.mu.Lock()
	lastTurn := r.lastTurn
	r.mu.Unlock()
	logging.Audit().SessionEnd(r.sessionID, lastTurn, time.Since(r.startedAt).Milliseconds())

	if r.archive != nil {
		if cerr := r.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
