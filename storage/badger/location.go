package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/notify"
	"github.com/poiesic/stash/storage"
)

// maxTreeDepth bounds every parent walk. The nesting policy caps real
// trees at five levels; anything deeper means corrupted data and is
// surfaced as storage.ErrDepthExceeded instead of looping forever.
const maxTreeDepth = 64

// itemOrphaner is the collaborator interface through which a cascading
// location removal clears item references. The item repository
// implements it; both sides run inside the same transaction so no
// intermediate state with dangling references is ever committed.
type itemOrphaner interface {
	lockItems()
	unlockItems()
	orphanInTx(tx *badger.Txn, removedLocations map[core.ID]struct{}) ([]core.ID, error)
}

// LocationRepository implements storage.LocationRepository for BadgerDB.
//
// Structural mutations are serialized behind mu. RemoveLocation
// additionally takes the item repository's writer lock (locations
// before items, always in that order) because the cascade spans both
// collections.
type LocationRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	items   itemOrphaner
	bus     *notify.Bus
	mu      sync.Mutex
}

var _ storage.LocationRepository = (*LocationRepository)(nil)

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository(backend *Backend) (*LocationRepository, error) {
	idSeq, err := backend.GetSequence(locationIDSeq)
	if err != nil {
		return nil, err
	}

	return &LocationRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// AttachItems wires the item repository into the removal cascade.
// Must be called before RemoveLocation is used.
func (r *LocationRepository) AttachItems(items *ItemRepository) {
	r.items = items
}

// SetBus installs the change bus events are published on.
func (r *LocationRepository) SetBus(bus *notify.Bus) {
	r.bus = bus
}

// Close releases the ID sequence.
func (r *LocationRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *LocationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddLocation validates and inserts a location.
func (r *LocationRepository) AddLocation(ctx context.Context, location *core.StorageLocation) (*core.StorageLocation, error) {
	if err := core.ValidateLocation(location); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if location.ParentId != 0 {
			parent, err := readLocation(tx, location.ParentId)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent location %d does not exist", core.ErrInvalidLocation, location.ParentId)
			}
			if err := core.ValidateNesting(parent.Type, location.Type); err != nil {
				return fmt.Errorf("%w: %w", core.ErrInvalidLocation, err)
			}
		}

		if location.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			location.Id = core.ID(nextID)
		}

		location.InsertedAt = time.Now().UTC()
		location.UpdatedAt = location.InsertedAt

		if err := writeLocation(tx, location); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionLocations, Op: notify.OpAdd, Ids: []core.ID{location.Id}})
	return location, nil
}

// GetLocation retrieves a single location by ID.
func (r *LocationRepository) GetLocation(ctx context.Context, id core.ID) (*core.StorageLocation, error) {
	var result *core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readLocation(tx, id)
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

// RenameLocation changes a location's display name.
func (r *LocationRepository) RenameLocation(ctx context.Context, id core.ID, name string) (*core.StorageLocation, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidLocation, core.ErrEmptyName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result *core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		location, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if location == nil {
			return storage.ErrNotFound
		}

		location.Name = name
		location.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeLocationKey(id), storage.MarshalLocation(location)); err != nil {
			return err
		}
		result = location
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionLocations, Op: notify.OpUpdate, Ids: []core.ID{id}})
	return result, nil
}

// RetypeLocation changes a location's type. The new type is
// re-validated against the current parent and every immediate child.
func (r *LocationRepository) RetypeLocation(ctx context.Context, id core.ID, locationType core.LocationType) (*core.StorageLocation, error) {
	if err := core.ValidateLocationType(locationType); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidLocation, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var result *core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		location, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if location == nil {
			return storage.ErrNotFound
		}

		if location.ParentId != 0 {
			parent, err := readLocation(tx, location.ParentId)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: dangling parent %d", storage.ErrNotFound, location.ParentId)
			}
			if err := core.ValidateNesting(parent.Type, locationType); err != nil {
				return fmt.Errorf("%w: %w", core.ErrInvalidLocation, err)
			}
		}

		children, err := readChildren(tx, id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := core.ValidateNesting(locationType, child.Type); err != nil {
				return fmt.Errorf("%w: %w", core.ErrInvalidLocation, err)
			}
		}

		location.Type = locationType
		location.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeLocationKey(id), storage.MarshalLocation(location)); err != nil {
			return err
		}
		result = location
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionLocations, Op: notify.OpUpdate, Ids: []core.ID{id}})
	return result, nil
}

// UpdateParent moves a location under a new parent (0 for root).
// Both the cycle-free invariant and the nesting policy are checked
// against the proposed position before anything is written.
func (r *LocationRepository) UpdateParent(ctx context.Context, id, newParentId core.ID) (*core.StorageLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		location, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if location == nil {
			return storage.ErrNotFound
		}

		if newParentId == id {
			return fmt.Errorf("%w: location %d cannot be its own parent", storage.ErrCycle, id)
		}

		if newParentId != 0 {
			parent, err := readLocation(tx, newParentId)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent location %d does not exist", core.ErrInvalidLocation, newParentId)
			}

			// Walk up from the proposed parent; meeting id on the way
			// to a root means the new parent sits inside id's subtree.
			cursor := parent
			for depth := 0; cursor.ParentId != 0; depth++ {
				if depth >= maxTreeDepth {
					return fmt.Errorf("%w: walking ancestors of %d", storage.ErrDepthExceeded, newParentId)
				}
				if cursor.ParentId == id {
					return fmt.Errorf("%w: %d is a descendant of %d", storage.ErrCycle, newParentId, id)
				}
				cursor, err = readLocation(tx, cursor.ParentId)
				if err != nil {
					return err
				}
				if cursor == nil {
					return fmt.Errorf("%w: dangling parent in ancestor chain of %d", storage.ErrNotFound, newParentId)
				}
			}

			if err := core.ValidateNesting(parent.Type, location.Type); err != nil {
				return fmt.Errorf("%w: %w", core.ErrInvalidLocation, err)
			}
		}

		if location.ParentId != 0 {
			if err := tx.Delete(makeLocationParentKey(location.ParentId, id)); err != nil {
				return err
			}
		}
		location.ParentId = newParentId
		location.UpdatedAt = time.Now().UTC()
		if err := writeLocation(tx, location); err != nil {
			return err
		}
		result = location
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionLocations, Op: notify.OpUpdate, Ids: []core.ID{id}})
	return result, nil
}

// RemoveLocation removes a location and its whole subtree, clearing the
// location reference of every item that pointed anywhere inside it.
// The cascade commits as one transaction.
func (r *LocationRepository) RemoveLocation(ctx context.Context, id core.ID) (*storage.RemovalReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items != nil {
		r.items.lockItems()
		defer r.items.unlockItems()
	}

	receipt := &storage.RemovalReceipt{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		root, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if root == nil {
			return storage.ErrNotFound
		}

		// Collect the subtree breadth-first, parents before children.
		removed := []*core.StorageLocation{root}
		removedSet := map[core.ID]struct{}{id: {}}
		for cursor := 0; cursor < len(removed); cursor++ {
			children, err := readChildren(tx, removed[cursor].Id)
			if err != nil {
				return err
			}
			for _, child := range children {
				if _, seen := removedSet[child.Id]; seen {
					return fmt.Errorf("%w: child %d reached twice in subtree of %d", storage.ErrDepthExceeded, child.Id, id)
				}
				removedSet[child.Id] = struct{}{}
				removed = append(removed, child)
			}
		}

		for _, location := range removed {
			if err := tx.Delete(makeLocationKey(location.Id)); err != nil {
				return err
			}
			if location.ParentId != 0 {
				if err := tx.Delete(makeLocationParentKey(location.ParentId, location.Id)); err != nil {
					return err
				}
			}
			receipt.RemovedLocationIds = append(receipt.RemovedLocationIds, location.Id)
		}

		if r.items != nil {
			orphaned, err := r.items.orphanInTx(tx, removedSet)
			if err != nil {
				return err
			}
			receipt.OrphanedItemIds = orphaned
		}

		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionLocations, Op: notify.OpRemove, Ids: receipt.RemovedLocationIds})
	if len(receipt.OrphanedItemIds) > 0 {
		r.bus.Publish(notify.Event{Collection: notify.CollectionItems, Op: notify.OpOrphan, Ids: receipt.OrphanedItemIds})
	}
	return receipt, nil
}

// Children returns the immediate children of a location, computed from
// current state on every call.
func (r *LocationRepository) Children(ctx context.Context, id core.ID) ([]*core.StorageLocation, error) {
	var result []*core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		location, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if location == nil {
			return storage.ErrNotFound
		}
		result, err = readChildren(tx, id)
		return err
	}, false)
	return result, err
}

// Roots returns all locations without a parent.
func (r *LocationRepository) Roots(ctx context.Context) ([]*core.StorageLocation, error) {
	all, err := r.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	roots := all[:0]
	for _, location := range all {
		if location.ParentId == 0 {
			roots = append(roots, location)
		}
	}
	return roots, nil
}

// BreadcrumbPath returns the chain of names from the root down to the
// location. The walk is bounded by maxTreeDepth; running past the
// bound reports corrupted data rather than looping.
func (r *LocationRepository) BreadcrumbPath(ctx context.Context, id core.ID) ([]string, error) {
	var names []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		location, err := readLocation(tx, id)
		if err != nil {
			return err
		}
		if location == nil {
			return storage.ErrNotFound
		}

		for depth := 0; ; depth++ {
			if depth >= maxTreeDepth {
				return fmt.Errorf("%w: walking ancestors of %d", storage.ErrDepthExceeded, id)
			}
			names = append(names, location.Name)
			if location.ParentId == 0 {
				break
			}
			location, err = readLocation(tx, location.ParentId)
			if err != nil {
				return err
			}
			if location == nil {
				return fmt.Errorf("%w: dangling parent in ancestor chain of %d", storage.ErrNotFound, id)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Walked leaf to root; callers want root first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

// ListLocations returns every location in the store.
func (r *LocationRepository) ListLocations(ctx context.Context) ([]*core.StorageLocation, error) {
	var result []*core.StorageLocation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(locationPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var location *core.StorageLocation
			err := iter.Item().Value(func(val []byte) error {
				var err error
				location, err = storage.UnmarshalLocation(val)
				return err
			})
			if err != nil {
				return err
			}
			result = append(result, location)
		}
		return nil
	}, false)
	return result, err
}

// ImportAll replaces the whole location table, preserving record IDs
// and rebuilding the parent index. Runs during migration, before any
// subscriber is attached, so no events are published.
func (r *LocationRepository) ImportAll(ctx context.Context, locations []*core.StorageLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteByPrefix(tx, recordScanPrefix(locationPrefix)); err != nil {
			return err
		}
		if err := deleteByPrefix(tx, recordScanPrefix(locationParentPrefix)); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, location := range locations {
			if location.InsertedAt.IsZero() {
				location.InsertedAt = now
			}
			if location.UpdatedAt.IsZero() {
				location.UpdatedAt = location.InsertedAt
			}
			if err := writeLocation(tx, location); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Helper functions shared with the item repository.

// readLocation reads a location record, returning nil when absent.
func readLocation(tx *badger.Txn, id core.ID) (*core.StorageLocation, error) {
	item, err := tx.Get(makeLocationKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var location *core.StorageLocation
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		location, unmarshalErr = storage.UnmarshalLocation(val)
		return unmarshalErr
	})
	return location, err
}

// writeLocation stores the primary record and its parent index entry.
func writeLocation(tx *badger.Txn, location *core.StorageLocation) error {
	if err := tx.Set(makeLocationKey(location.Id), storage.MarshalLocation(location)); err != nil {
		return err
	}
	if location.ParentId != 0 {
		if err := tx.Set(makeLocationParentKey(location.ParentId, location.Id), storage.MarshalID(location.Id)); err != nil {
			return err
		}
	}
	return nil
}

// readChildren resolves the immediate children of a location through
// the parent index.
func readChildren(tx *badger.Txn, id core.ID) ([]*core.StorageLocation, error) {
	var children []*core.StorageLocation

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialLocationParentKey(id)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var childID core.ID
		err := iter.Item().Value(func(val []byte) error {
			var err error
			childID, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return nil, err
		}

		child, err := readLocation(tx, childID)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, fmt.Errorf("%w: parent index references missing location %d", storage.ErrNotFound, childID)
		}
		children = append(children, child)
	}
	return children, nil
}

// deleteByPrefix removes every key under a prefix. Keys are collected
// before deleting so the iterator never sees its own writes.
func deleteByPrefix(tx *badger.Txn, prefix []byte) error {
	var keys [][]byte

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
