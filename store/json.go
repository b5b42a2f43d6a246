// Copyright 2017 Microsoft. All rights reserved.
// MIT License

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/Nomadic-Drones/rustycan4docker/log"
	"github.com/pkg/errors"
)

// DefaultPath is where the driver mirrors network declarations so they
// survive a process restart.
const DefaultPath = "/var/lib/docker/network/files/rustycan4docker-networks.json"

// jsonFileStore is a Store backed by a single pretty-printed JSON file,
// replaced atomically (tmpfile + rename) on every Save. Concurrent Manager
// mutations are serialised under mu: the "read whole file, mutate, write
// whole file" pattern is otherwise racy.
type jsonFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore creates a Store rooted at path, creating its parent
// directory if necessary.
func NewJSONFileStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("store: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "store: create parent directory")
	}

	return &jsonFileStore{path: path}, nil
}

func (s *jsonFileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *jsonFileStore) Load() (map[string]NetworkConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]NetworkConfig)

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[store] persistence file %s not found, treating as first run", s.path)
			return all, nil
		}
		return nil, errors.Wrap(err, "store: read persistence file")
	}

	if len(b) == 0 {
		log.Printf("[store] persistence file %s is empty", s.path)
		return all, nil
	}

	if err := json.Unmarshal(b, &all); err != nil {
		log.Errorf("[store] persistence file %s is corrupt, treating as empty: %v", s.path, err)
		return make(map[string]NetworkConfig), nil
	}

	return all, nil
}

func (s *jsonFileStore) Save(all map[string]NetworkConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.MarshalIndent(all, "", "\t")
	if err != nil {
		return errors.Wrap(err, "store: marshal persistence file")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return errors.Wrap(err, "store: create temp file")
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(buf); err != nil {
		tmp.Close()
		return errors.Wrap(err, "store: write temp file")
	}

	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "store: close temp file")
	}

	if err = os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "store: rename temp file into place")
	}

	return nil
}
