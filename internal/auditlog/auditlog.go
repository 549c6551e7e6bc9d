// Package auditlog maintains the capped JSON array logs written next to the
// project: the phase-guard log, the loop-detection log and the artifact-check
// skip log. Each file holds at most MaxEntries entries, oldest dropped first.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MaxEntries is the number of entries retained per log.
const MaxEntries = 100

var timeNow = time.Now

// Log is one capped JSON array file.
type Log struct {
	path string
	max  int
}

// Open returns the log at path. The file is created on first Append.
func Open(path string) *Log {
	return &Log{path: path, max: MaxEntries}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Entries returns the raw entries. A missing or unparseable file is empty.
func (l *Log) Entries() []json.RawMessage {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return []json.RawMessage{}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return []json.RawMessage{}
	}
	return entries
}

// Append adds fields as one entry stamped with a "timestamp" key and trims
// the file to the cap.
func (l *Log) Append(fields map[string]any) error {
	entry := make(map[string]any, len(fields)+1)
	entry["timestamp"] = timeNow().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	for k, v := range fields {
		entry[k] = v
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	entries := append(l.Entries(), raw)
	if len(entries) > l.max {
		entries = entries[len(entries)-l.max:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating audit log directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}
