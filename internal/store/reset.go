package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ccb/internal/logging"
)

// ResetOutcome reports what ResetFile did.
type ResetOutcome int

const (
	// ResetNotNeeded means the file was valid and left untouched.
	ResetNotNeeded ResetOutcome = iota
	// ResetRepaired means the file was corrupt, backed up, and emptied.
	ResetRepaired
	// ResetCreated means the file was missing and a fresh one was written.
	ResetCreated
)

func (o ResetOutcome) String() string {
	switch o {
	case ResetNotNeeded:
		return "valid, no reset needed"
	case ResetRepaired:
		return "invalid, backed up and reset"
	case ResetCreated:
		return "missing, created fresh"
	default:
		return "unknown"
	}
}

// ResetFile safely resets the message log at path. A valid file is left
// intact. A corrupt or wrong-shaped file is renamed to <path>.bak.<unix>
// and replaced with an empty list. A missing file is created. Returns the
// outcome and the backup path when one was made.
func ResetFile(path string) (ResetOutcome, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := writeEmptyLog(path); werr != nil {
				return ResetCreated, "", werr
			}
			logging.Store("Message log %s not found, created fresh", path)
			return ResetCreated, "", nil
		}
		logging.StoreWarn("Could not read %s: %v, resetting", path, err)
		backup := backupLog(path)
		return ResetRepaired, backup, writeEmptyLog(path)
	}

	if validMessageShape(data) {
		logging.Store("Message log %s is valid, no reset needed", path)
		return ResetNotNeeded, "", nil
	}

	logging.Store("Message log %s has invalid structure, resetting", path)
	backup := backupLog(path)
	return ResetRepaired, backup, writeEmptyLog(path)
}

// backupLog renames the file aside before a reset. Returns the backup path,
// empty if the rename failed.
func backupLog(path string) string {
	backup := fmt.Sprintf("%s.bak.%d", path, time.Now().Unix())
	if err := os.Rename(path, backup); err != nil {
		logging.StoreWarn("Could not create backup of %s: %v", path, err)
		return ""
	}
	logging.Store("Backup created: %s", backup)
	return backup
}

func writeEmptyLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.WriteFile(path, []byte("[]"), 0600); err != nil {
		return fmt.Errorf("failed to write empty message log: %w", err)
	}
	return nil
}
