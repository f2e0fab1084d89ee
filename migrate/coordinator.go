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


// Package migrate moves the legacy flat-file record set into the
// structured repositories. The migration runs exactly once per legacy
// store: a persisted flag in the legacy file gates it, and record IDs
// are derived from the legacy keys so an interrupted run can be
// repeated without duplicating anything.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
)

// State is the migration state of a legacy store.
type State int

const (
	// StateNotMigrated means the legacy store has not been migrated.
	StateNotMigrated State = iota
	// StateMigrated means the one-time migration already ran.
	StateMigrated
)

// Report summarizes a migration run.
type Report struct {
	State               State
	MigratedLocations   int
	MigratedItems       int
	MigratedCorrections int
	Skipped             int

	// Performed is true when this run executed the import, false when
	// the persisted flag short-circuited it. A fresh migration of an
	// empty legacy store is Performed with zero counts.
	Performed bool
}

// Coordinator drives the one-time legacy migration.
type Coordinator struct {
	legacy      storage.LegacyStore
	locations   storage.LocationRepository
	items       storage.ItemRepository
	corrections storage.CorrectionRepository
	logger      *slog.Logger
	running     atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for migration progress and skip warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a migration coordinator over the given
// stores.
func NewCoordinator(legacy storage.LegacyStore, locations storage.LocationRepository, items storage.ItemRepository, corrections storage.CorrectionRepository, opts ...Option) *Coordinator {
	c := &Coordinator{
		legacy:      legacy,
		locations:   locations,
		items:       items,
		corrections: corrections,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// legacyEnvelope is the minimal shape decoded first to learn a
// record's kind.
type legacyEnvelope struct {
	Kind string `json:"kind"`
}

type legacyLocation struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	ParentKey string `json:"parent_key"`
}

type legacyItem struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	LocationKey string `json:"location_key"`
	Series      string `json:"series"`
	Volume      int    `json:"volume"`
	Author      string `json:"author"`
	PriceCents  int64  `json:"price_cents"`
	Notes       string `json:"notes"`
}

type legacyCorrection struct {
	Isbn   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Run performs the migration if it has not already happened. It is
// safe to call on every startup: once the legacy store's flag is set,
// Run returns a StateMigrated report without touching anything.
//
// Invalid legacy records are skipped and counted, never deleted; the
// legacy file stays intact as the rollback copy.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	completed, err := c.legacy.Completed(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading flag: %w", ErrMigration, err)
	}
	if completed {
		return &Report{State: StateMigrated}, nil
	}

	records, err := c.legacy.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading legacy records: %w", ErrMigration, err)
	}

	report := &Report{State: StateMigrated, Performed: true}

	// First pass decides, per record, whether it migrates at all and
	// assigns every surviving location a deterministic ID keyed on its
	// legacy UUID. The skip set must be final before any parent or
	// location reference is remapped: a reference into the skip set is
	// a dangling reference, never a half-registered ID.
	type pendingLocation struct {
		key          string
		locationType core.LocationType
		payload      legacyLocation
	}
	type pendingItem struct {
		key     string
		payload legacyItem
	}

	var pendingLocations []pendingLocation
	var pendingItems []pendingItem
	var corrections []*core.CorrectionRecord
	locationIds := make(map[string]core.ID)

	for key, raw := range records {
		if _, err := uuid.Parse(key); err != nil {
			c.logger.Warn("skipping legacy record with malformed key", "key", key)
			report.Skipped++
			continue
		}

		var envelope legacyEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.logger.Warn("skipping undecodable legacy record", "key", key, "err", err)
			report.Skipped++
			continue
		}

		switch envelope.Kind {
		case "location":
			var payload legacyLocation
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.logger.Warn("skipping undecodable legacy location", "key", key, "err", err)
				report.Skipped++
				continue
			}
			locationType, ok := core.ParseLocationType(payload.Type)
			if !ok {
				c.logger.Warn("skipping legacy location with unknown type", "key", key, "type", payload.Type)
				report.Skipped++
				continue
			}
			pendingLocations = append(pendingLocations, pendingLocation{key: key, locationType: locationType, payload: payload})
			locationIds[key] = core.IDFromContent("(location," + key + ")")
		case "item":
			var payload legacyItem
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.logger.Warn("skipping undecodable legacy item", "key", key, "err", err)
				report.Skipped++
				continue
			}
			pendingItems = append(pendingItems, pendingItem{key: key, payload: payload})
		case "isbn_correction":
			var payload legacyCorrection
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.logger.Warn("skipping undecodable legacy correction", "key", key, "err", err)
				report.Skipped++
				continue
			}
			if payload.Isbn == "" {
				c.logger.Warn("skipping legacy correction without ISBN", "key", key)
				report.Skipped++
				continue
			}
			corrections = append(corrections, &core.CorrectionRecord{
				Id:     core.CorrectionIDFromISBN(payload.Isbn),
				Isbn:   payload.Isbn,
				Title:  payload.Title,
				Author: payload.Author,
			})
		default:
			c.logger.Warn("skipping legacy record of unknown kind", "key", key, "kind", envelope.Kind)
			report.Skipped++
		}
	}

	// Resolve parent references against the final skip set. A parent
	// key that is absent, malformed, or skipped dangles; its child is
	// promoted to root.
	parentKeys := make(map[string]string, len(pendingLocations))
	for _, pending := range pendingLocations {
		if pending.payload.ParentKey == "" {
			continue
		}
		if _, ok := locationIds[pending.payload.ParentKey]; !ok {
			c.logger.Warn("legacy location has dangling parent, promoting to root", "key", pending.key, "parent", pending.payload.ParentKey)
			continue
		}
		parentKeys[pending.key] = pending.payload.ParentKey
	}

	// Legacy data can close a parent loop the structured store would
	// never accept. Walk each chain and break any loop by promoting
	// one of its members to root, same policy as a dangling parent.
	for _, pending := range pendingLocations {
		seen := map[string]struct{}{pending.key: {}}
		cursor := pending.key
		for {
			next, ok := parentKeys[cursor]
			if !ok {
				break
			}
			if _, looped := seen[next]; looped {
				c.logger.Warn("legacy locations form a parent cycle, promoting to root", "key", next)
				delete(parentKeys, next)
				break
			}
			seen[next] = struct{}{}
			cursor = next
		}
	}

	var migratedLocations []*core.StorageLocation
	for _, pending := range pendingLocations {
		parentId := core.ID(0)
		if parentKey, ok := parentKeys[pending.key]; ok {
			parentId = locationIds[parentKey]
		}
		migratedLocations = append(migratedLocations, &core.StorageLocation{
			Id:       locationIds[pending.key],
			Name:     pending.payload.Name,
			Type:     pending.locationType,
			ParentId: parentId,
		})
	}

	var migratedItems []*core.InventoryItem
	for _, pending := range pendingItems {
		collectionType, ok := core.ParseCollectionType(pending.payload.Type)
		if !ok {
			c.logger.Warn("skipping legacy item with unknown type", "key", pending.key, "type", pending.payload.Type)
			report.Skipped++
			continue
		}
		locationId := core.ID(0)
		if pending.payload.LocationKey != "" {
			id, ok := locationIds[pending.payload.LocationKey]
			if !ok {
				c.logger.Warn("legacy item references missing location, importing unlocated", "key", pending.key, "location", pending.payload.LocationKey)
			} else {
				locationId = id
			}
		}
		migratedItems = append(migratedItems, &core.InventoryItem{
			Id:         core.IDFromContent("(item," + pending.key + ")"),
			Title:      pending.payload.Title,
			Type:       collectionType,
			LocationId: locationId,
			Series:     pending.payload.Series,
			Volume:     pending.payload.Volume,
			Author:     pending.payload.Author,
			PriceCents: pending.payload.PriceCents,
			Notes:      pending.payload.Notes,
		})
	}

	if err := c.locations.ImportAll(ctx, migratedLocations); err != nil {
		return nil, fmt.Errorf("%w: importing locations: %w", ErrMigration, err)
	}
	if err := c.items.ImportAll(ctx, migratedItems); err != nil {
		return nil, fmt.Errorf("%w: importing items: %w", ErrMigration, err)
	}
	if err := c.corrections.ReplaceAll(ctx, corrections); err != nil {
		return nil, fmt.Errorf("%w: importing corrections: %w", ErrMigration, err)
	}

	// The flag flips last: a crash before this point leaves the flag
	// unset and the next run redoes the import onto the same IDs.
	if err := c.legacy.SetCompleted(ctx, true); err != nil {
		return nil, fmt.Errorf("%w: persisting flag: %w", ErrMigration, err)
	}

	report.MigratedLocations = len(migratedLocations)
	report.MigratedItems = len(migratedItems)
	report.MigratedCorrections = len(corrections)

	c.logger.Info("legacy migration complete",
		"locations", report.MigratedLocations,
		"items", report.MigratedItems,
		"corrections", report.MigratedCorrections,
		"skipped", report.Skipped)
	return report, nil
}
