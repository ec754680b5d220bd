// Package store persists conversation state: a JSON message log for the
// rolling transcript, a SQLite archive for session history, and a Recorder
// that binds both to one session. Storage faults degrade to warnings; the
// analysis core never sees a persistence error.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ccb/internal/logging"
)

// Message is one transcript entry.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageLog is a JSON-file message store. Every mutation saves the whole
// file; the format is a plain JSON array so the log stays readable and
// editable by hand.
type MessageLog struct {
	mu       sync.RWMutex
	path     string
	messages []Message
}

// DefaultLogPath returns the message log location inside a workspace.
func DefaultLogPath(workspace string) string {
	return filepath.Join(workspace, ".ccb", "conversation.json")
}

// NewMessageLog opens the log at path, loading any existing messages.
// A missing, corrupt, or wrong-shaped file starts the log empty with a
// warning; construction never fails.
func NewMessageLog(path string) *MessageLog {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logging.StoreWarn("Could not create message log directory: %v", err)
	}

	m := &MessageLog{path: path}
	m.load()
	return m
}

// Path returns the backing file location.
func (m *MessageLog) Path() string {
	return m.path
}

func (m *MessageLog) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.StoreWarn("Could not read message log %s: %v", m.path, err)
		}
		m.messages = nil
		return
	}

	if !validMessageShape(data) {
		logging.StoreWarn("Message log %s structure invalid, starting fresh", m.path)
		m.messages = nil
		return
	}

	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		logging.StoreWarn("Message log %s corrupted, starting fresh: %v", m.path, err)
		m.messages = nil
		return
	}
	m.messages = msgs
	logging.StoreDebug("Loaded %d messages from %s", len(msgs), m.path)
}

// validMessageShape checks that data is a JSON array whose every element
// carries at least sender and text.
func validMessageShape(data []byte) bool {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return false
	}
	for _, m := range raw {
		if _, ok := m["sender"]; !ok {
			return false
		}
		if _, ok := m["text"]; !ok {
			return false
		}
	}
	return true
}

// save writes the whole log. Caller holds the lock.
func (m *MessageLog) save() {
	msgs := m.messages
	if msgs == nil {
		msgs = []Message{}
	}

	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		logging.StoreError("Failed to encode message log: %v", err)
		return
	}

	if err := os.WriteFile(m.path, data, 0600); err != nil {
		logging.StoreError("Failed to write message log %s: %v", m.path, err)
		logging.Audit().StoreWrite(m.path, int64(len(data)), false, err.Error())
		return
	}
	logging.Audit().StoreWrite(m.path, int64(len(data)), true, "")
}

// Add appends a message and saves. An empty role defaults to "user".
func (m *MessageLog) Add(sender, text, role string) {
	if role == "" {
		role = "user"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, Message{
		Sender:    sender,
		Text:      text,
		Role:      role,
		Timestamp: time.Now(),
	})
	m.save()
}

// Recent returns the last n messages. n <= 0 returns nothing.
func (m *MessageLog) Recent(n int) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(m.messages) {
		n = len(m.messages)
	}
	out := make([]Message, n)
	copy(out, m.messages[len(m.messages)-n:])
	return out
}

// Last returns the most recent message, or nil if the log is empty.
func (m *MessageLog) Last() *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.messages) == 0 {
		return nil
	}
	msg := m.messages[len(m.messages)-1]
	return &msg
}

// LastByRole returns the most recent message with the given role, or nil.
func (m *MessageLog) LastByRole(role string) *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == role {
			msg := m.messages[i]
			return &msg
		}
	}
	return nil
}

// All returns a copy of every message.
func (m *MessageLog) All() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of stored messages.
func (m *MessageLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Search returns messages whose text contains the keyword, case-insensitive.
func (m *MessageLog) Search(keyword string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(keyword)
	var hits []Message
	for _, msg := range m.messages {
		if strings.Contains(strings.ToLower(msg.Text), needle) {
			hits = append(hits, msg)
		}
	}
	return hits
}

// Clear drops every message and overwrites the file.
func (m *MessageLog) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = nil
	m.save()
}

// Prune keeps at most max messages. Strategy "oldest" drops from the front,
// "newest" drops from the back. An unknown strategy logs a warning and
// changes nothing. A log already within the limit is left unsaved.
func (m *MessageLog) Prune(max int, strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) <= max {
		return
	}

	dropped := len(m.messages) - max
	switch strategy {
	case "oldest":
		m.messages = append([]Message(nil), m.messages[len(m.messages)-max:]...)
	case "newest":
		m.messages = append([]Message(nil), m.messages[:max]...)
	default:
		logging.StoreWarn("Unknown prune strategy: %s", strategy)
		return
	}

	logging.Audit().HistoryPrune(strategy, dropped, len(m.messages))
	m.save()
}

// Export renders the log as an indented JSON string, "[]" on error.
func (m *MessageLog) Export() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		logging.StoreError("Failed to export message log: %v", err)
		return "[]"
	}
	return string(data)
}

// Import replaces the log with messages parsed from a JSON array string.
// Data that fails to parse or lacks sender/text leaves the log untouched.
func (m *MessageLog) Import(data string) error {
	if !validMessageShape([]byte(data)) {
		return fmt.Errorf("invalid import data structure")
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return fmt.Errorf("failed to parse import data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = msgs
	m.save()
	return nil
}
