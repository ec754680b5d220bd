package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ccb/internal/logging"
)

// Archive is the SQLite session archive. It keeps one row per session and
// one row per analyzed turn, surviving across runs where the JSON message
// log may be pruned or reset.
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// TurnRow is one archived turn.
type TurnRow struct {
	TurnNumber int
	Utterance  string
	Reply      string
	Intent     string
	Emotion    string
	Subtext    string
	Phase      string
	CreatedAt  time.Time
}

// SessionRow is one archived session.
type SessionRow struct {
	ID         string
	StartedAt  time.Time
	LastActive time.Time
	TurnCount  int
	Phase      string
}

// SessionStats summarizes one session. A session the archive has never
// seen yields zero values, not an error.
type SessionStats struct {
	SessionID  string
	TurnCount  int
	StartedAt  time.Time
	LastActive time.Time
	Phase      string
}

// DefaultArchivePath returns the archive database location inside a
// workspace.
func DefaultArchivePath(workspace string) string {
	return filepath.Join(workspace, ".ccb", "ccb.db")
}

// NewArchive opens (or creates) the SQLite archive at the given path.
func NewArchive(path string) (*Archive, error) {
	logging.Store("Opening session archive at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.StoreError("Failed to create archive directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		logging.StoreError("Failed to open archive database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		logging.StoreError("Failed to initialize archive schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.StoreDebug("Archive schema ready")
	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	sessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		last_active DATETIME,
		turn_count INTEGER DEFAULT 0,
		phase TEXT
	);
	`

	// UNIQUE constraint on (session_id, turn_number) makes re-recording a
	// turn a no-op.
	turnsTable := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		utterance TEXT,
		reply TEXT,
		intent TEXT,
		emotion TEXT,
		subtext TEXT,
		phase TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, turn_number)
	);
	`

	for _, table := range []string{sessionsTable, turnsTable} {
		if _, err := a.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := `
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_intent ON turns(intent);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(last_active);
	`
	if _, err := a.db.Exec(indexes); err != nil {
		// Non-fatal: indexes improve lookups but are not required.
		logging.StoreWarn("Failed to create archive indexes: %v", err)
	}

	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	logging.Store("Closing session archive")
	return a.db.Close()
}

// Path returns the backing database location.
func (a *Archive) Path() string {
	return a.dbPath
}

// UpsertSession records or refreshes a session row. last_active is always
// advanced to now.
func (a *Archive) UpsertSession(sessionID string, startedAt time.Time, turnCount int, phase string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	logging.StoreDebug("Upserting session: id=%s turns=%d phase=%s", sessionID, turnCount, phase)

	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, started_at, last_active, turn_count, phase)
		 VALUES (?, ?, CURRENT_TIMESTAMP, ?, ?)`,
		sessionID, startedAt, turnCount, phase,
	)
	if err != nil {
		logging.StoreError("Failed to upsert session %s: %v", sessionID, err)
		return err
	}
	return nil
}

// RecordTurn archives one analyzed turn. Re-recording the same turn number
// for a session is silently skipped.
func (a *Archive) RecordTurn(sessionID string, turnNumber int, utterance, reply, intent, emotion, subtext, phase string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	logging.StoreDebug("Recording turn: session=%s turn=%d intent=%s emotion=%s",
		sessionID, turnNumber, intent, emotion)

	_, err := a.db.Exec(
		`INSERT OR IGNORE INTO turns (session_id, turn_number, utterance, reply, intent, emotion, subtext, phase)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, turnNumber, utterance, reply, intent, emotion, subtext, phase,
	)
	if err != nil {
		logging.StoreError("Failed to record turn: session=%s turn=%d: %v", sessionID, turnNumber, err)
		return err
	}
	return nil
}

// RecentTurns retrieves the latest turns for a session, newest first.
func (a *Archive) RecentTurns(sessionID string, limit int) ([]TurnRow, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecentTurns")
	defer timer.Stop()

	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(
		`SELECT turn_number, utterance, reply, intent, emotion, subtext, phase, created_at
		 FROM turns
		 WHERE session_id = ?
		 ORDER BY turn_number DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.StoreError("Failed to query turns for %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var turns []TurnRow
	for rows.Next() {
		var t TurnRow
		if err := rows.Scan(&t.TurnNumber, &t.Utterance, &t.Reply, &t.Intent, &t.Emotion, &t.Subtext, &t.Phase, &t.CreatedAt); err != nil {
			continue
		}
		turns = append(turns, t)
	}

	logging.StoreDebug("Retrieved %d archived turns for session=%s", len(turns), sessionID)
	return turns, nil
}

// Sessions lists archived sessions, most recently active first.
func (a *Archive) Sessions() ([]SessionRow, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Sessions")
	defer timer.Stop()

	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.Query(
		`SELECT id, started_at, last_active, turn_count, phase
		 FROM sessions
		 ORDER BY last_active DESC`,
	)
	if err != nil {
		logging.StoreError("Failed to query sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.LastActive, &s.TurnCount, &s.Phase); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// SessionStats summarizes one session. An unknown session returns zero
// values and no error. The turn count is taken live from the turns table
// when possible.
func (a *Archive) SessionStats(sessionID string) (SessionStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := SessionStats{SessionID: sessionID}
	err := a.db.QueryRow(
		`SELECT started_at, last_active, turn_count, phase FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&stats.StartedAt, &stats.LastActive, &stats.TurnCount, &stats.Phase)
	if err != nil {
		if err == sql.ErrNoRows {
			return stats, nil
		}
		return stats, err
	}

	var live int
	if err := a.db.QueryRow(
		`SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID,
	).Scan(&live); err == nil && live > stats.TurnCount {
		stats.TurnCount = live
	}

	return stats, nil
}

// Stats returns row counts per archive table.
func (a *Archive) Stats() (map[string]int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"sessions", "turns"} {
		var count int64
		if err := a.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
