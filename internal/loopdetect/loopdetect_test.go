package loopdetect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestDetector(t *testing.T) (*Detector, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	d := New(filepath.Join(t.TempDir(), ".claude-loop-detector-state.json"))
	d.Now = c.Now
	return d, c
}

func record(t *testing.T, d *Detector, path string) Result {
	t.Helper()
	res, err := d.Record(path)
	require.NoError(t, err)
	return res
}

func TestRecord_Windowing(t *testing.T) {
	d, c := newTestDetector(t)
	start := c.now

	for i := 0; i < 4; i++ {
		c.now = start.Add(time.Duration(i) * 10 * time.Second)
		assert.False(t, record(t, d, "src/app.ts").Detected, "edit %d", i+1)
	}

	c.now = start.Add(40 * time.Second)
	res := record(t, d, "src/app.ts")
	assert.True(t, res.Detected, "5th edit inside the window fires")
	assert.Equal(t, 5, res.Count)

	c.now = start.Add(70 * time.Second)
	assert.False(t, record(t, d, "src/app.ts").Detected, "suppressed within a minute of the warning")

	c.now = start.Add(2 * time.Minute)
	res = record(t, d, "src/app.ts")
	assert.True(t, res.Detected, "fires again once suppression lapses")
	assert.Equal(t, 7, res.Count)

	c.now = start.Add(15 * time.Minute)
	res = record(t, d, "src/app.ts")
	assert.False(t, res.Detected)
	assert.Equal(t, 1, res.Count, "old edits fall out of the window")
}

func TestRecord_PathsAreNormalized(t *testing.T) {
	d, _ := newTestDetector(t)

	record(t, d, `./SRC\App.ts`)
	record(t, d, "src/app.ts")
	res := record(t, d, "Src/App.TS")
	assert.Equal(t, 3, res.Count)

	st := d.Load()
	require.Contains(t, st.Files, "src/app.ts")
}

func TestRecord_SeparateFiles(t *testing.T) {
	d, _ := newTestDetector(t)

	for i := 0; i < 4; i++ {
		record(t, d, "a.ts")
	}
	assert.False(t, record(t, d, "b.ts").Detected)
	assert.True(t, record(t, d, "a.ts").Detected)
}

func TestRecord_CorruptStateResets(t *testing.T) {
	d, _ := newTestDetector(t)
	require.NoError(t, os.WriteFile(d.StatePath, []byte("not json"), 0o644))

	res := record(t, d, "a.ts")
	assert.Equal(t, 1, res.Count)
}

func TestRecord_EmptyPath(t *testing.T) {
	d, _ := newTestDetector(t)

	res := record(t, d, "")
	assert.False(t, res.Detected)
	_, err := os.Stat(d.StatePath)
	assert.True(t, os.IsNotExist(err), "empty path writes no state")
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, p := range []string{`.\Foo\Bar.TS`, "./a/b", "A", ""} {
		assert.Equal(t, Normalize(p), Normalize(Normalize(p)), p)
	}
}

func TestWarning(t *testing.T) {
	msg := Warning(Result{Path: "src/app.ts", Count: 5})
	assert.Contains(t, msg, "無限ループ検出")
	assert.Contains(t, msg, "編集回数: 5回（5分以内）")
	assert.Contains(t, msg, "SKIP_LOOP_DETECTION=true")
}
