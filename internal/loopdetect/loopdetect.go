// Package loopdetect stops an agent that keeps editing the same file.
//
// Every edit of a path is timestamped. When a path collects Threshold edits
// inside Window, the detector fires once and then stays quiet for Suppress
// before it can fire again for that path. State is a JSON document keyed by
// normalized path; an unreadable document starts over empty.
package loopdetect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	Threshold = 5
	Window    = 5 * time.Minute
	Suppress  = time.Minute
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileEntry is the edit history of one path.
type FileEntry struct {
	Count           int      `json:"count"`
	Timestamps      []string `json:"timestamps"`
	LastWarning     *string  `json:"lastWarning"`
	WarningSuppress bool     `json:"warningSuppress"`
}

// State is the persisted detector document.
type State struct {
	Files map[string]*FileEntry `json:"files"`
}

// Result is the outcome of one recorded edit.
type Result struct {
	Path string
	// Count is the number of edits inside the window, this one included.
	Count int
	// Detected is true when this edit crossed the threshold outside the
	// suppression period.
	Detected bool
}

// Detector records edits against a state file.
type Detector struct {
	StatePath string
	Now       func() time.Time
}

// New returns a detector persisting to statePath.
func New(statePath string) *Detector {
	return &Detector{StatePath: statePath, Now: time.Now}
}

// Normalize lowercases path, converts backslashes and strips a leading "./".
func Normalize(path string) string {
	p := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	return strings.TrimPrefix(p, "./")
}

// Load reads the state document. Missing or corrupt state is empty.
func (d *Detector) Load() *State {
	st := &State{Files: map[string]*FileEntry{}}
	data, err := os.ReadFile(d.StatePath)
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, st); err != nil || st.Files == nil {
		return &State{Files: map[string]*FileEntry{}}
	}
	return st
}

func (d *Detector) save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding loop state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(d.StatePath), 0o755); err != nil {
		return fmt.Errorf("creating loop state directory: %w", err)
	}
	if err := os.WriteFile(d.StatePath, data, 0o644); err != nil {
		return fmt.Errorf("writing loop state: %w", err)
	}
	return nil
}

// Record registers one edit of path and reports whether it is a loop. The
// returned error concerns persistence only; the Result is valid regardless.
func (d *Detector) Record(path string) (Result, error) {
	key := Normalize(path)
	res := Result{Path: path}
	if key == "" {
		return res, nil
	}

	now := d.Now()
	st := d.Load()
	entry := st.Files[key]
	if entry == nil {
		entry = &FileEntry{Timestamps: []string{}}
		st.Files[key] = entry
	}

	cutoff := now.Add(-Window)
	kept := entry.Timestamps[:0]
	for _, raw := range entry.Timestamps {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		if at.After(cutoff) {
			kept = append(kept, raw)
		}
	}
	entry.Timestamps = append(kept, now.UTC().Format(timeFormat))
	entry.Count = len(entry.Timestamps)
	res.Count = entry.Count

	suppressed := false
	if entry.LastWarning != nil {
		if at, err := time.Parse(time.RFC3339Nano, *entry.LastWarning); err == nil && now.Sub(at) < Suppress {
			suppressed = true
		} else {
			entry.LastWarning = nil
		}
	}
	entry.WarningSuppress = suppressed

	if entry.Count >= Threshold && !suppressed {
		stamp := now.UTC().Format(timeFormat)
		entry.LastWarning = &stamp
		entry.WarningSuppress = true
		res.Detected = true
	}
	return res, d.save(st)
}

// Warning renders the message shown when a loop is detected.
func Warning(res Result) string {
	sep := strings.Repeat("=", 60)
	var b strings.Builder
	b.WriteString("\n" + sep + "\n")
	b.WriteString(" 無限ループ検出: 編集回数が多すぎます\n")
	b.WriteString(sep + "\n\n")
	fmt.Fprintf(&b, " ファイル: %s\n", res.Path)
	fmt.Fprintf(&b, " 編集回数: %d回（5分以内）\n\n", res.Count)
	b.WriteString(" 原因として考えられること:\n")
	b.WriteString("   - 同じエラーを何度も繰り返し修正しようとしている\n")
	b.WriteString("   - テストとコードの同期が取れていない\n")
	b.WriteString("   - 修正内容が不完全で何度も編集を繰り返している\n\n")
	b.WriteString(" 対策:\n")
	b.WriteString("   1. 一度立ち止まり、エラーの根本原因を分析する\n")
	b.WriteString("   2. テスト結果を確認し、実装に反映できているか確認する\n")
	b.WriteString("   3. 仕様書と実装の乖離がないか確認する\n")
	b.WriteString("   4. ビルド/テスト結果を確認してから編集を再開する\n\n")
	b.WriteString(" 強制スキップ（非推奨）:\n")
	b.WriteString("   SKIP_LOOP_DETECTION=true 環境変数を設定\n\n")
	b.WriteString(sep + "\n")
	return b.String()
}
