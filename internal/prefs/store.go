package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Keys shared with the host application.
const (
	KeyLastExportFolder = "lastExportFolder"
	KeyWorkerSettings   = "workerSettings"
	KeyWorkerLastPort   = "workerLastPort"
	KeyWorkerEnabled    = "workerEnabled"
	KeyArtboardPrefix   = "artboardPrefix"
)

// Store persists preference values as a single JSON document. The file is
// shared with other processes, so every read-modify-write cycle runs under a
// sibling flock.
type Store struct {
	path string
	lock *flock.Flock

	mu sync.Mutex
}

// Open prepares a preference store at the given path. The file is created
// lazily on first write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs path required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create prefs directory: %w", err)
		}
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the preference file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the raw JSON value for key, with ok=false when absent.
func (s *Store) Get(key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("lock prefs: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	values, err := s.read()
	if err != nil {
		return nil, false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// GetString returns the string value for key, or "" when absent or not a string.
func (s *Store) GetString(key string) (string, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return "", err
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", nil
	}
	return value, nil
}

// GetBool returns the boolean value for key, defaulting to false.
func (s *Store) GetBool(key string) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, nil
	}
	return value, nil
}

// Set stores value under key, rewriting the preference file atomically.
func (s *Store) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode pref %q: %w", key, err)
	}
	return s.update(func(values map[string]json.RawMessage) {
		values[key] = encoded
	})
}

// Delete removes key from the store. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	return s.update(func(values map[string]json.RawMessage) {
		delete(values, key)
	})
}

func (s *Store) update(mutate func(map[string]json.RawMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock prefs: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	values, err := s.read()
	if err != nil {
		return err
	}
	mutate(values)
	return s.write(values)
}

func (s *Store) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse prefs: %w", err)
	}
	return values, nil
}

func (s *Store) write(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
