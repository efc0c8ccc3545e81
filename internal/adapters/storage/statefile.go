package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

// writeAtomic writes data to path by writing to a temp file in the same
// directory and renaming it into place, so a crash mid-write never leaves
// a half-written file where a reader expects one. No example repo in the
// retrieval pack persists plain state files this way (the sqlite adapter
// covers structured storage instead); this is the minimal stdlib pattern
// for crash-safe single-file state and has no third-party equivalent
// worth pulling in for one file per store.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: rename into place: %w", err)
	}
	return nil
}

// FileSafeModeStore persists domain.SafeModeState as JSON, written
// atomically on every Save.
type FileSafeModeStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileSafeModeStore returns a store rooted at path.
func NewFileSafeModeStore(path string) *FileSafeModeStore {
	return &FileSafeModeStore{Path: path}
}

func (f *FileSafeModeStore) Load(ctx context.Context) (domain.SafeModeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return domain.SafeModeState{}, nil
	}
	if err != nil {
		return domain.SafeModeState{}, fmt.Errorf("storage.FileSafeModeStore.Load: %w", err)
	}
	var state domain.SafeModeState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.SafeModeState{}, fmt.Errorf("storage.FileSafeModeStore.Load: unmarshal: %w", err)
	}
	return state, nil
}

func (f *FileSafeModeStore) Save(ctx context.Context, state domain.SafeModeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.FileSafeModeStore.Save: marshal: %w", err)
	}
	return writeAtomic(f.Path, data)
}

// FileDriftStore persists the drift tracker's aging table as JSON.
type FileDriftStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileDriftStore returns a store rooted at path.
func NewFileDriftStore(path string) *FileDriftStore {
	return &FileDriftStore{Path: path}
}

func (f *FileDriftStore) Load(ctx context.Context) (map[string]*domain.DriftEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return make(map[string]*domain.DriftEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileDriftStore.Load: %w", err)
	}
	entries := make(map[string]*domain.DriftEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("storage.FileDriftStore.Load: unmarshal: %w", err)
	}
	return entries, nil
}

func (f *FileDriftStore) Save(ctx context.Context, entries map[string]*domain.DriftEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.FileDriftStore.Save: marshal: %w", err)
	}
	return writeAtomic(f.Path, data)
}

// FileStatusStore persists the latest RuntimeStatus snapshot as JSON.
type FileStatusStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileStatusStore returns a store rooted at path.
func NewFileStatusStore(path string) *FileStatusStore {
	return &FileStatusStore{Path: path}
}

func (f *FileStatusStore) Save(ctx context.Context, status domain.RuntimeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.FileStatusStore.Save: marshal: %w", err)
	}
	return writeAtomic(f.Path, data)
}

func (f *FileStatusStore) Load(ctx context.Context) (domain.RuntimeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return domain.RuntimeStatus{}, nil
	}
	if err != nil {
		return domain.RuntimeStatus{}, fmt.Errorf("storage.FileStatusStore.Load: %w", err)
	}
	var status domain.RuntimeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.RuntimeStatus{}, fmt.Errorf("storage.FileStatusStore.Load: unmarshal: %w", err)
	}
	return status, nil
}

// FileDailyMetricsStore appends DailyMetricsEntry records as
// newline-delimited JSON, one line per Append call.
type FileDailyMetricsStore struct {
	Path string
	mu   sync.Mutex
}

// NewFileDailyMetricsStore returns a store rooted at path.
func NewFileDailyMetricsStore(path string) *FileDailyMetricsStore {
	return &FileDailyMetricsStore{Path: path}
}

func (f *FileDailyMetricsStore) Append(ctx context.Context, entry domain.DailyMetricsEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("storage.FileDailyMetricsStore.Append: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("storage.FileDailyMetricsStore.Append: mkdir: %w", err)
	}
	file, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage.FileDailyMetricsStore.Append: open: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("storage.FileDailyMetricsStore.Append: write: %w", err)
	}
	return nil
}

func (f *FileDailyMetricsStore) List(ctx context.Context) ([]domain.DailyMetricsEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileDailyMetricsStore.List: %w", err)
	}
	var out []domain.DailyMetricsEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry domain.DailyMetricsEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("storage.FileDailyMetricsStore.List: unmarshal: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}
