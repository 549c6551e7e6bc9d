package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/karimatan1106/workflow-plugin/internal/retry"
)

// Store defines the persistence interface for workflow documents.
// Abstracted for testability.
type Store interface {
	ReadGlobal() (*GlobalState, error)
	WriteGlobal(g *GlobalState) error
	ReadTask(workflowDir string) (*TaskState, error)
	WriteTask(workflowDir string, t *TaskState) error
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	globalPath string
	retry      retry.Options
}

// NewFileStore creates a filesystem-backed store whose registry lives at
// globalPath.
func NewFileStore(globalPath string) *FileStore {
	return &FileStore{globalPath: globalPath, retry: retry.DefaultOptions()}
}

// GlobalPath returns the registry document's path.
func (fs *FileStore) GlobalPath() string {
	return fs.globalPath
}

// TaskStatePath returns the task document path inside workflowDir.
func TaskStatePath(workflowDir string) string {
	return filepath.Join(workflowDir, TaskStateFile)
}

// ReadGlobal loads the registry. A missing or corrupt document yields the
// empty idle registry.
func (fs *FileStore) ReadGlobal() (*GlobalState, error) {
	var g GlobalState
	found, err := fs.readJSON(fs.globalPath, &g)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return NewGlobalState(), nil
		}
		return nil, fmt.Errorf("reading global state: %w", err)
	}
	if !found {
		return NewGlobalState(), nil
	}
	g.normalize()
	return &g, nil
}

// WriteGlobal persists the registry. Phase is synced to the current task.
func (fs *FileStore) WriteGlobal(g *GlobalState) error {
	g.normalize()
	if len(g.ActiveTasks) > 0 {
		g.Phase = g.ActiveTasks[0].Phase
	}
	if err := fs.writeJSON(fs.globalPath, g); err != nil {
		return fmt.Errorf("writing global state: %w", err)
	}
	return nil
}

// ReadTask loads the task document in workflowDir. Missing and corrupt
// documents both match ErrTaskStateNotFound.
func (fs *FileStore) ReadTask(workflowDir string) (*TaskState, error) {
	var t TaskState
	found, err := fs.readJSON(TaskStatePath(workflowDir), &t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTaskStateNotFound, workflowDir, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrTaskStateNotFound, workflowDir)
	}
	t.normalize()
	return &t, nil
}

// WriteTask persists the task document in workflowDir.
func (fs *FileStore) WriteTask(workflowDir string, t *TaskState) error {
	t.normalize()
	if err := fs.writeJSON(TaskStatePath(workflowDir), t); err != nil {
		return fmt.Errorf("writing task state: %w", err)
	}
	return nil
}

// readJSON decodes path into v. found is false when the file does not
// exist; the existence probe is not retried.
func (fs *FileStore) readJSON(path string, v any) (found bool, err error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	data, err := retry.DoValue(context.Background(), func() ([]byte, error) {
		return os.ReadFile(path)
	}, fs.retry)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// writeJSON marshals v and replaces path atomically.
func (fs *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return retry.Do(context.Background(), func() error {
		return writeFileAtomic(path, data)
	}, fs.retry)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
