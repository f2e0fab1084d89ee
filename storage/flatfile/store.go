// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package flatfile implements the legacy single-file JSON store. It
// exists so the migration coordinator can read the old record set and
// so corrections can be mirrored back for rollback; new code should
// not build on it.
package flatfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/stash/storage"
)

// fileImage is the on-disk shape of the legacy store: a flat map of
// UUID keys to raw JSON payloads, plus the migration flag.
type fileImage struct {
	Completed bool                       `json:"migration_completed"`
	Records   map[string]json.RawMessage `json:"records"`
}

// Store reads and writes the legacy flat file. All mutations rewrite
// the whole file through a temp-file rename, so a crash mid-write
// never leaves a torn image behind.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ storage.LegacyStore = (*Store)(nil)

// Open returns a store backed by the file at path. The file does not
// need to exist yet; a missing file reads as an empty, unmigrated
// store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Records returns every legacy record keyed by its UUID string.
func (s *Store) Records(ctx context.Context) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, err := s.load()
	if err != nil {
		return nil, err
	}

	records := make(map[string][]byte, len(image.Records))
	for key, payload := range image.Records {
		records[key] = []byte(payload)
	}
	return records, nil
}

// PutRecord inserts or overwrites a single legacy record.
func (s *Store) PutRecord(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, err := s.load()
	if err != nil {
		return err
	}
	if image.Records == nil {
		image.Records = make(map[string]json.RawMessage)
	}
	image.Records[key] = json.RawMessage(payload)
	return s.save(image)
}

// Completed reports whether the one-time migration has run.
func (s *Store) Completed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, err := s.load()
	if err != nil {
		return false, err
	}
	return image.Completed, nil
}

// SetCompleted persists the migration flag. The flag lives in the
// legacy file itself so deleting the structured database never loses
// it.
func (s *Store) SetCompleted(ctx context.Context, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, err := s.load()
	if err != nil {
		return err
	}
	image.Completed = completed
	return s.save(image)
}

func (s *Store) load() (*fileImage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileImage{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %w", storage.ErrIO, s.path, err)
	}

	image := &fileImage{}
	if err := json.Unmarshal(data, image); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", storage.ErrSerializationFailed, s.path, err)
	}
	return image, nil
}

func (s *Store) save(image *fileImage) error {
	data, err := json.MarshalIndent(image, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding legacy store: %w", storage.ErrSerializationFailed, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", storage.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".legacy-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", storage.ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp file: %w", storage.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing temp file: %w", storage.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp file: %w", storage.ErrIO, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %w", storage.ErrIO, s.path, err)
	}
	return nil
}
