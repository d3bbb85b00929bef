package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk layout of a YAMLFileStore.
type yamlDocument struct {
	Values map[string]string `yaml:"values"`
}

// YAMLFileStore keeps the values in a YAML file, rewritten atomically on every change.
//
// Every operation holds a lock on a sibling ".lock" file and re-reads the
// document first, so CompareAndSwap compares against what is on disk even when
// several processes share the file.
type YAMLFileStore struct {
	*MemoryStore
	path string
	lock *flock.Flock
}

func NewYAMLFileStore(path string) (*YAMLFileStore, error) {
	if path == "" {
		return nil, errors.New("yaml store path is required")
	}

	s := &YAMLFileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		lock:        flock.New(path + ".lock"),
	}
	s.MemoryStore.persist = s.persistLocked
	s.MemoryStore.restore = s.restoreLocked

	// fail early on an unreadable or undecodable file
	if _, err := s.Keys(context.Background()); err != nil {
		_ = s.MemoryStore.Close()
		return nil, err
	}
	return s, nil
}

func (s *YAMLFileStore) Path() string {
	return s.path
}

func loadYAMLValues(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "could not read store file %s", path)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrapf(err, "could not decode store file %s", path)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc.Values, nil
}

func (s *YAMLFileStore) restoreLocked(exclusive bool) (map[string]string, func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, nil, errors.Wrapf(err, "could not create directory for %s", s.path)
	}

	var err error
	if exclusive {
		err = s.lock.Lock()
	} else {
		err = s.lock.RLock()
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not lock store file %s", s.path)
	}
	unlock := func() {
		_ = s.lock.Unlock()
	}

	values, err := loadYAMLValues(s.path)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return values, unlock, nil
}

func (s *YAMLFileStore) persistLocked(values map[string]string) error {
	b, err := yaml.Marshal(&yamlDocument{Values: values})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var _ Store = (*YAMLFileStore)(nil)
