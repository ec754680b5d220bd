// Package logging provides audit logging for the conversation pipeline.
// Audit logs are structured JSONL events recording session, turn, stage,
// and store activity for later inspection.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Session lifecycle events
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"

	// Pipeline stage events
	AuditStageComplete AuditEventType = "stage_complete"
	AuditStageFault    AuditEventType = "stage_fault"

	// Classification events
	AuditIntentClassified AuditEventType = "intent_classified"
	AuditEmotionScored    AuditEventType = "emotion_scored"
	AuditSubtextInferred  AuditEventType = "subtext_inferred"
	AuditPhaseTransition  AuditEventType = "phase_transition"

	// Persistence events
	AuditStoreWrite   AuditEventType = "store_write"
	AuditStoreError   AuditEventType = "store_error"
	AuditHistoryPrune AuditEventType = "history_prune"

	// Config events
	AuditConfigLoad    AuditEventType = "config_load"
	AuditConfigReload  AuditEventType = "config_reload"
	AuditConfigInvalid AuditEventType = "config_invalid"

	// Digest events
	AuditDigestRender AuditEventType = "digest_render"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent represents a structured audit log entry
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`      // Unix milliseconds
	EventType  AuditEventType         `json:"event"`   // Event type
	Category   string                 `json:"cat"`     // Log category
	SessionID  string                 `json:"session"` // Session correlation
	Turn       int                    `json:"turn"`    // Turn number if applicable
	Target     string                 `json:"target"`  // Target of operation
	Action     string                 `json:"action"`  // Action being performed
	Success    bool                   `json:"success"` // Operation succeeded
	DurationMs int64                  `json:"dur_ms"`  // Duration in milliseconds
	Error      string                 `json:"error"`   // Error message if failed
	Message    string                 `json:"msg"`     // Human-readable message
	Fields     map[string]interface{} `json:"fields"`  // Additional structured fields
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging
type AuditLogger struct {
	sessionID string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("audit_%s.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	// Write header
	header := fmt.Sprintf("# Audit log started at %s\n# Format: one JSON event per line\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// AuditWithContext creates a fully-scoped audit logger
func AuditWithContext(sessionID string, category Category) *AuditLogger {
	return &AuditLogger{
		sessionID: sessionID,
		category:  category,
	}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	// Fill in defaults
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	if event.Fields == nil {
		event.Fields = make(map[string]interface{})
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	// Write JSON line
	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// SessionStart logs session start
func (a *AuditLogger) SessionStart(sessionID string) {
	a.Log(AuditEvent{
		EventType: AuditSessionStart,
		SessionID: sessionID,
		Success:   true,
		Message:   fmt.Sprintf("Session started: %s", sessionID),
	})
}

// SessionEnd logs session end
func (a *AuditLogger) SessionEnd(sessionID string, turnCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditSessionEnd,
		SessionID:  sessionID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"turn_count": turnCount},
		Message:    fmt.Sprintf("Session ended: %s (%d turns, %dms)", sessionID, turnCount, durationMs),
	})
}

// TurnStart logs turn start
func (a *AuditLogger) TurnStart(turnNum int, inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		Turn:      turnNum,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": inputLen},
		Message:   fmt.Sprintf("Turn %d started (%d chars)", turnNum, inputLen),
	})
}

// TurnEnd logs turn end
func (a *AuditLogger) TurnEnd(turnNum int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditTurnEnd,
		Turn:       turnNum,
		Success:    success,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Turn %d ended (%dms, success=%v)", turnNum, durationMs, success),
	})
}

// StageComplete logs a pipeline stage completion
func (a *AuditLogger) StageComplete(stage string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditStageComplete,
		Target:     stage,
		Success:    true,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Stage %s completed (%dms)", stage, durationMs),
	})
}

// StageFault logs a recovered pipeline stage fault
func (a *AuditLogger) StageFault(stage, reason string) {
	a.Log(AuditEvent{
		EventType: AuditStageFault,
		Target:    stage,
		Success:   false,
		Error:     reason,
		Message:   fmt.Sprintf("Stage %s faulted: %s", stage, reason),
	})
}

// IntentClassified logs an intent classification result
func (a *AuditLogger) IntentClassified(turnNum int, label string, confidence float64) {
	a.Log(AuditEvent{
		EventType: AuditIntentClassified,
		Turn:      turnNum,
		Target:    label,
		Success:   true,
		Fields:    map[string]interface{}{"confidence": confidence},
		Message:   fmt.Sprintf("Intent: %s (%.2f)", label, confidence),
	})
}

// EmotionScored logs an emotion classification result
func (a *AuditLogger) EmotionScored(turnNum int, label string, confidence float64) {
	a.Log(AuditEvent{
		EventType: AuditEmotionScored,
		Turn:      turnNum,
		Target:    label,
		Success:   true,
		Fields:    map[string]interface{}{"confidence": confidence},
		Message:   fmt.Sprintf("Emotion: %s (%.2f)", label, confidence),
	})
}

// SubtextInferred logs inferred subtext signals
func (a *AuditLogger) SubtextInferred(turnNum int, primary string, signalCount int) {
	a.Log(AuditEvent{
		EventType: AuditSubtextInferred,
		Turn:      turnNum,
		Target:    primary,
		Success:   true,
		Fields:    map[string]interface{}{"signal_count": signalCount},
		Message:   fmt.Sprintf("Subtext: primary=%s signals=%d", primary, signalCount),
	})
}

// PhaseTransition logs a dialogue phase change
func (a *AuditLogger) PhaseTransition(previous, current, rationale string) {
	a.Log(AuditEvent{
		EventType: AuditPhaseTransition,
		Target:    current,
		Action:    previous,
		Success:   true,
		Fields:    map[string]interface{}{"rationale": rationale},
		Message:   fmt.Sprintf("Phase %s -> %s (%s)", previous, current, rationale),
	})
}

// StoreWrite logs a persistence write
func (a *AuditLogger) StoreWrite(target string, size int64, success bool, errMsg string) {
	eventType := AuditStoreWrite
	if !success {
		eventType = AuditStoreError
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    target,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"size": size},
		Message:   fmt.Sprintf("Store write %s (%d bytes, success=%v)", target, size, success),
	})
}

// HistoryPrune logs a prune pass over the turn record
func (a *AuditLogger) HistoryPrune(strategy string, dropped, kept int) {
	a.Log(AuditEvent{
		EventType: AuditHistoryPrune,
		Action:    strategy,
		Success:   true,
		Fields:    map[string]interface{}{"dropped": dropped, "kept": kept},
		Message:   fmt.Sprintf("Pruned %d turns (%s), %d kept", dropped, strategy, kept),
	})
}

// ConfigEvent logs config load/reload activity
func (a *AuditLogger) ConfigEvent(eventType AuditEventType, path string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: eventType,
		Target:    path,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Config %s: %s (success=%v)", eventType, path, success),
	})
}

// DigestRender logs a summary digest rendering
func (a *AuditLogger) DigestRender(style string, turnCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditDigestRender,
		Target:     style,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"turn_count": turnCount},
		Message:    fmt.Sprintf("Digest rendered: style=%s turns=%d (%dms)", style, turnCount, durationMs),
	})
}
