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


package stash

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/ingest"
	"github.com/poiesic/stash/migrate"
	"github.com/poiesic/stash/notify"
	"github.com/poiesic/stash/search"
	"github.com/poiesic/stash/storage"
	"github.com/poiesic/stash/storage/badger"
	"github.com/poiesic/stash/storage/flatfile"
	"github.com/poiesic/stash/view"
)

// Database is the top-level handle over the structured store. Opening
// it wires the repositories together and, when a legacy file is
// configured, runs the one-time migration before returning.
type Database struct {
	repos           *badger.Repositories
	legacy          storage.LegacyStore
	bus             *notify.Bus
	migrationReport *migrate.Report
	logger          *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	legacyFile string
	inMemory   bool
}

// WithLegacyFile points the database at the legacy flat-file store.
// The migration runs during Open if it has not happened yet, and
// corrections written afterwards are mirrored into the file.
func WithLegacyFile(path string) DatabaseOption {
	return func(o *databaseOptions) {
		o.legacyFile = path
	}
}

// WithInMemory opens the backend without touching disk, mainly for
// tests.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func Open(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}

	repos, err := badger.NewRepositories(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	db := &Database{
		repos:  repos,
		bus:    notify.NewBus(),
		logger: slog.Default(),
	}

	if options.legacyFile != "" {
		legacy, err := flatfile.Open(options.legacyFile)
		if err != nil {
			repos.Close()
			return nil, err
		}
		db.legacy = legacy

		coordinator := migrate.NewCoordinator(legacy, repos.Locations, repos.Items, repos.Corrections, migrate.WithLogger(db.logger))
		report, err := coordinator.Run(ctx)
		if err != nil {
			repos.Close()
			return nil, err
		}
		db.migrationReport = report

		repos.Corrections.SetLegacyMirror(legacy)
	}

	// The bus attaches after migration so imports do not flood
	// subscribers with bootstrap events.
	repos.Locations.SetBus(db.bus)
	repos.Items.SetBus(db.bus)
	repos.Corrections.SetBus(db.bus)

	return db, nil
}

func (db *Database) Close() error {
	return db.repos.Close()
}

func (db *Database) Locations() storage.LocationRepository {
	return db.repos.Locations
}

func (db *Database) Items() storage.ItemRepository {
	return db.repos.Items
}

func (db *Database) Corrections() storage.CorrectionRepository {
	return db.repos.Corrections
}

// Events returns the change bus mutations are published on.
func (db *Database) Events() *notify.Bus {
	return db.bus
}

// MigrationReport returns the report of the migration performed during
// Open, or nil when no legacy file was configured.
func (db *Database) MigrationReport() *migrate.Report {
	return db.migrationReport
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.repos.Items, db.repos.Locations, opts...)
}

func (db *Database) NewPathCache() (*view.PathCache, error) {
	return view.NewPathCache(db.repos.Locations, db.bus)
}

func (db *Database) NewIntakePipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(db.repos.Items, opts...)
}

// ResolveLocationRef resolves a user-supplied location reference,
// either a numeric ID or a name searched across the whole tree. The
// boolean reports whether anything matched; an unparsable or unknown
// reference is not an error.
func (db *Database) ResolveLocationRef(ctx context.Context, ref string) (*core.StorageLocation, bool, error) {
	if ref == "" {
		return nil, false, nil
	}

	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		location, err := db.repos.Locations.GetLocation(ctx, core.ID(id))
		if err == nil {
			return location, true, nil
		}
		if !storage.IsNotFound(err) {
			return nil, false, err
		}
		// Fall through: a numeric name is still a legal name.
	}

	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, false, err
	}
	location, err := searcher.FindLocation(ctx, 0, ref)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return location, true, nil
}
