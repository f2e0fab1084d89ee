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


package badger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/notify"
	"github.com/poiesic/stash/storage"
)

// CorrectionRepository implements storage.CorrectionRepository for
// BadgerDB. When a legacy store is attached, successful writes are
// mirrored into it best-effort for rollback safety; the mirror is
// never read back and a mirror failure is logged, not surfaced.
type CorrectionRepository struct {
	backend *Backend
	legacy  storage.LegacyStore
	bus     *notify.Bus
	logger  *slog.Logger
	mu      sync.Mutex
}

var _ storage.CorrectionRepository = (*CorrectionRepository)(nil)

// NewCorrectionRepository creates a new CorrectionRepository.
func NewCorrectionRepository(backend *Backend) *CorrectionRepository {
	return &CorrectionRepository{
		backend: backend,
		logger:  slog.Default(),
	}
}

// SetLegacyMirror attaches the legacy store writes are mirrored into.
func (r *CorrectionRepository) SetLegacyMirror(legacy storage.LegacyStore) {
	r.legacy = legacy
}

// SetBus installs the change bus events are published on.
func (r *CorrectionRepository) SetBus(bus *notify.Bus) {
	r.bus = bus
}

// Close releases resources. CorrectionRepository has none.
func (r *CorrectionRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *CorrectionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddCorrections inserts or overwrites corrections. IDs are derived
// from the ISBN so re-adding the same correction lands on the same record.
func (r *CorrectionRepository) AddCorrections(ctx context.Context, corrections ...*core.CorrectionRecord) ([]*core.CorrectionRecord, error) {
	for _, correction := range corrections {
		if err := core.ValidateCorrection(correction); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, correction := range corrections {
			if correction.Id == 0 {
				correction.Id = core.CorrectionIDFromISBN(correction.Isbn)
			}

			old, err := readCorrection(tx, correction.Id)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if old != nil {
				correction.InsertedAt = old.InsertedAt
			} else {
				correction.InsertedAt = now
			}
			correction.UpdatedAt = now

			if err := tx.Set(makeCorrectionKey(correction.Id), storage.MarshalCorrection(correction)); err != nil {
				return err
			}
			if err := tx.Set(makeCorrectionIsbnKey(correction.Isbn), storage.MarshalID(correction.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.mirrorToLegacy(ctx, corrections)
	r.bus.Publish(notify.Event{Collection: notify.CollectionCorrections, Op: notify.OpUpdate, Ids: correctionIds(corrections)})
	return corrections, nil
}

// GetCorrectionByISBN retrieves a correction by its ISBN.
func (r *CorrectionRepository) GetCorrectionByISBN(ctx context.Context, isbn string) (*core.CorrectionRecord, error) {
	var result *core.CorrectionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		record, err := tx.Get(makeCorrectionIsbnKey(isbn))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var id core.ID
		if err := record.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		result, err = readCorrection(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListCorrections returns every correction in the store.
func (r *CorrectionRepository) ListCorrections(ctx context.Context) ([]*core.CorrectionRecord, error) {
	var result []*core.CorrectionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(correctionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var correction *core.CorrectionRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				correction, err = storage.UnmarshalCorrection(val)
				return err
			})
			if err != nil {
				return err
			}
			result = append(result, correction)
		}
		return nil
	}, false)
	return result, err
}

// ReplaceAll clears the correction table and writes the given records
// in one transaction. Runs during migration; nothing is mirrored back
// into the legacy store the records just came from.
func (r *CorrectionRepository) ReplaceAll(ctx context.Context, corrections []*core.CorrectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteByPrefix(tx, recordScanPrefix(correctionPrefix)); err != nil {
			return err
		}
		if err := deleteByPrefix(tx, recordScanPrefix(correctionIsbnPrefix)); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, correction := range corrections {
			if correction.Id == 0 {
				correction.Id = core.CorrectionIDFromISBN(correction.Isbn)
			}
			if correction.InsertedAt.IsZero() {
				correction.InsertedAt = now
			}
			if correction.UpdatedAt.IsZero() {
				correction.UpdatedAt = correction.InsertedAt
			}
			if err := tx.Set(makeCorrectionKey(correction.Id), storage.MarshalCorrection(correction)); err != nil {
				return err
			}
			if err := tx.Set(makeCorrectionIsbnKey(correction.Isbn), storage.MarshalID(correction.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// legacyCorrectionPayload is the JSON shape of a correction in the
// legacy flat store.
type legacyCorrectionPayload struct {
	Kind   string `json:"kind"`
	Isbn   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// mirrorToLegacy writes corrections through to the legacy flat store.
// Legacy keys are UUIDs; a name-based UUID of the ISBN keeps the
// mirror key stable across writes.
func (r *CorrectionRepository) mirrorToLegacy(ctx context.Context, corrections []*core.CorrectionRecord) {
	if r.legacy == nil {
		return
	}

	for _, correction := range corrections {
		key := uuid.NewSHA1(uuid.NameSpaceOID, []byte(correction.Isbn)).String()
		payload, err := json.Marshal(legacyCorrectionPayload{
			Kind:   "isbn_correction",
			Isbn:   correction.Isbn,
			Title:  correction.Title,
			Author: correction.Author,
		})
		if err != nil {
			r.logger.Warn("skipping legacy mirror of correction", "isbn", correction.Isbn, "err", err)
			continue
		}
		if err := r.legacy.PutRecord(ctx, key, payload); err != nil {
			r.logger.Warn("legacy mirror write failed", "isbn", correction.Isbn, "err", err)
		}
	}
}

// readCorrection reads a correction record, returning nil when absent.
func readCorrection(tx *badger.Txn, id core.ID) (*core.CorrectionRecord, error) {
	record, err := tx.Get(makeCorrectionKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var correction *core.CorrectionRecord
	err = record.Value(func(val []byte) error {
		var unmarshalErr error
		correction, unmarshalErr = storage.UnmarshalCorrection(val)
		return unmarshalErr
	})
	return correction, err
}

func correctionIds(corrections []*core.CorrectionRecord) []core.ID {
	ids := make([]core.ID, len(corrections))
	for i, correction := range corrections {
		ids[i] = correction.Id
	}
	return ids
}
