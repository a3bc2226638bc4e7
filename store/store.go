// Package store is the client's persistent key/value state, standing in for
// the browser's localStorage. Values are JSON; a value that fails to decode
// is treated as absent rather than as an error.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sercano/qahub/utils"
)

// Namespaced keys shared across the client.
const (
	KeyUser               = "qa_user"
	KeyDeviceID           = "qa_device_id"
	KeyTreeProject        = "productTree_project"
	KeyTreeVersion        = "productTree_version"
	KeyTreeEnvironment    = "productTree_environment"
	KeyTreeOnlyUncovered  = "productTree_onlyUncovered"
	KeyLastWorkflowSource = "workflow_lastSource"
)

// Store is a file-backed JSON key/value store
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]json.RawMessage
}

// DefaultPath returns the state file location under the user config directory
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "qahub", "state.json"), nil
}

// Open loads the store from path, creating parent directories as needed.
// A missing or corrupted file yields an empty store, not an error.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	s := &Store{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading state file: %w", err)
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		// Corrupted state file: start over rather than failing startup.
		utils.GetLogger().Warn("State file is corrupted, starting empty", map[string]interface{}{
			"path": path,
		})
		s.values = make(map[string]json.RawMessage)
	}

	return s, nil
}

// Get decodes the value stored under key into out. The second return is
// false when the key is absent or the stored value does not decode.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.RLock()
	raw, exists := s.values[key]
	s.mu.RUnlock()

	if !exists {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		utils.GetLogger().Warn("Discarding unreadable state value", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// GetString returns the string stored under key, or "" when absent
func (s *Store) GetString(key string) string {
	var v string
	if s.Get(key, &v) {
		return v
	}
	return ""
}

// Set stores a value under key and persists the store
func (s *Store) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flushLocked()
}

// Remember stores a UI preference best effort: a failed write is logged
// and otherwise ignored, so preference persistence never blocks a flow.
func (s *Store) Remember(key string, value interface{}) {
	if err := s.Set(key, value); err != nil {
		utils.GetLogger().Warn("Persisting state value failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Delete removes a key and persists the store
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; !exists {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

// flushLocked writes the store atomically via a temp file and rename
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
