// Package snapshot stores rendered HTML fragments and compares later runs
// against them.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// SnapshotDir is the directory name for storing snapshots
	SnapshotDir = "__snapshots__"
	// SnapshotExt is the file extension for snapshot files
	SnapshotExt = ".snap.json"
)

// Manager handles snapshot storage and comparison. It is safe for
// concurrent use.
type Manager struct {
	updateMode    bool
	mu            sync.Mutex
	snapshotsRead map[string]map[string]string // file -> {key -> html}
}

// NewManager creates a new snapshot manager. In update mode missing or
// mismatched snapshots are written instead of failing.
func NewManager(updateMode bool) *Manager {
	return &Manager{
		updateMode:    updateMode,
		snapshotsRead: make(map[string]map[string]string),
	}
}

// Result represents the result of a snapshot comparison.
type Result struct {
	Passed     bool
	Message    string
	Expected   string
	Actual     string
	IsNew      bool
	WasUpdated bool
}

// Compare compares actual against the snapshot stored for suiteFile under
// scenario and name.
func (m *Manager) Compare(suiteFile, scenario, name, actual string) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &Result{Actual: actual}
	snapshotFile := FilePath(suiteFile)
	key := Key(scenario, name)

	snapshots, err := m.loadSnapshots(snapshotFile)
	if err != nil {
		result.Message = fmt.Sprintf("failed to load snapshots: %v", err)
		return result
	}

	expected, exists := snapshots[key]
	if !exists {
		if !m.updateMode {
			result.Message = "snapshot does not exist (run with --update-snapshots to create)"
			return result
		}
		snapshots[key] = actual
		if err := m.saveSnapshots(snapshotFile, snapshots); err != nil {
			result.Message = fmt.Sprintf("failed to save snapshot: %v", err)
			return result
		}
		result.Passed = true
		result.IsNew = true
		result.Expected = actual
		result.Message = "new snapshot created"
		return result
	}

	result.Expected = expected
	if expected == actual {
		result.Passed = true
		return result
	}

	if m.updateMode {
		snapshots[key] = actual
		if err := m.saveSnapshots(snapshotFile, snapshots); err != nil {
			result.Message = fmt.Sprintf("failed to update snapshot: %v", err)
			return result
		}
		result.Passed = true
		result.WasUpdated = true
		result.Message = "snapshot updated"
		return result
	}

	result.Message = "snapshot mismatch: " + firstDifference(expected, actual)
	return result
}

// FilePath returns the snapshot file for a suite file.
func FilePath(suiteFile string) string {
	dir := filepath.Dir(suiteFile)
	base := filepath.Base(suiteFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, SnapshotDir, name+SnapshotExt)
}

// Key builds the storage key of a snapshot.
func Key(scenario, name string) string {
	return scenario + "::" + name
}

// firstDifference describes the first position where a and b diverge.
func firstDifference(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return fmt.Sprintf("first difference at offset %d: expected %q, got %q", i, excerpt(a, i), excerpt(b, i))
}

func excerpt(s string, at int) string {
	const width = 40
	end := min(at+width, len(s))
	if at >= len(s) {
		return ""
	}
	return s[at:end]
}

func (m *Manager) loadSnapshots(path string) (map[string]string, error) {
	if cached, ok := m.snapshotsRead[path]; ok {
		return cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			snapshots := make(map[string]string)
			m.snapshotsRead[path] = snapshots
			return snapshots, nil
		}
		return nil, err
	}

	var snapshots map[string]string
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if snapshots == nil {
		snapshots = make(map[string]string)
	}

	m.snapshotsRead[path] = snapshots
	return snapshots, nil
}

func (m *Manager) saveSnapshots(path string, snapshots map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return err
	}

	m.snapshotsRead[path] = snapshots
	return os.WriteFile(path, data, 0644)
}
