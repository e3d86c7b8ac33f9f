package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore implements Store using a single human-inspectable YAML file.
// Designed for cron and Toolforge grid environments where inspecting and
// hand-editing the state between runs is useful.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path. The file is created on
// first Save, not here.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating state dir: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the state file, returning a fresh empty state if it does not
// exist yet. Unknown YAML fields are ignored, so states written by newer
// minor versions with added fields remain readable.
func (f *FileStore) Load() (*WorkflowState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	st := &WorkflowState{}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("state file corrupt: %w", err)
	}
	if err := checkVersion(st.SchemaVersion); err != nil {
		return nil, err
	}
	st.normalize()
	return st, nil
}

// Save atomically replaces the state file: the new state is written to a
// temp file in the same directory and renamed over the old one, so a crash
// mid-save leaves the previous durable state readable.
func (f *FileStore) Save(st *WorkflowState) error {
	now := time.Now()
	st.LastUpdatedAt = &now
	st.SchemaVersion = SchemaVersion

	data, err := marshalState(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// marshalState encodes the state, converting yaml.v3's marshal panics on
// unmarshalable payloads (channels, funcs) into a regular error so a bad
// step output fails the save instead of crashing the run.
func marshalState(st *WorkflowState) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return yaml.Marshal(st)
}

// Reset prunes progress from fromStep onward and persists the result.
func (f *FileStore) Reset(fromStep int) (*WorkflowState, error) {
	st, err := f.Load()
	if err != nil {
		return nil, err
	}
	pruned := st.pruneFrom(fromStep)
	if err := f.Save(pruned); err != nil {
		return nil, err
	}
	return pruned, nil
}

// Close is a no-op for file state.
func (f *FileStore) Close() error {
	return nil
}

// Path returns the state file path.
func (f *FileStore) Path() string {
	return f.path
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
