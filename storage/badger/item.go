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

// ItemRepository implements storage.ItemRepository for BadgerDB.
// Every write re-validates the item's location reference against the
// location table inside the same transaction.
type ItemRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	bus     *notify.Bus
	mu      sync.Mutex
}

var (
	_ storage.ItemRepository = (*ItemRepository)(nil)
	_ itemOrphaner           = (*ItemRepository)(nil)
)

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(backend *Backend) (*ItemRepository, error) {
	idSeq, err := backend.GetSequence(itemIDSeq)
	if err != nil {
		return nil, err
	}

	return &ItemRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// SetBus installs the change bus events are published on.
func (r *ItemRepository) SetBus(bus *notify.Bus) {
	r.bus = bus
}

// Close releases the ID sequence.
func (r *ItemRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ItemRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddItems validates and inserts one or more items.
func (r *ItemRepository) AddItems(ctx context.Context, items ...*core.InventoryItem) ([]*core.InventoryItem, error) {
	for _, item := range items {
		if err := core.ValidateItem(item); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			if err := checkItemLocation(tx, item); err != nil {
				return err
			}

			if item.Id == 0 {
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
				item.Id = core.ID(nextID)
			}

			item.InsertedAt = time.Now().UTC()
			item.UpdatedAt = item.InsertedAt

			if err := writeItem(tx, item); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionItems, Op: notify.OpAdd, Ids: itemIds(items)})
	return items, nil
}

// UpdateItems replaces existing items with the given values. Nothing is
// written for any item until the whole batch validates, so the previous
// values survive a failed update.
func (r *ItemRepository) UpdateItems(ctx context.Context, items ...*core.InventoryItem) ([]*core.InventoryItem, error) {
	for _, item := range items {
		if err := core.ValidateItem(item); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			old, err := readItem(tx, item.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			if err := checkItemLocation(tx, item); err != nil {
				return err
			}

			item.InsertedAt = old.InsertedAt
			item.UpdatedAt = time.Now().UTC()

			if err := tx.Set(makeItemKey(item.Id), storage.MarshalItem(item)); err != nil {
				return err
			}

			if old.LocationId != item.LocationId {
				if old.LocationId != 0 {
					if err := tx.Delete(makeItemLocationKey(old.LocationId, old.Id)); err != nil {
						return err
					}
				}
				if item.LocationId != 0 {
					if err := tx.Set(makeItemLocationKey(item.LocationId, item.Id), storage.MarshalID(item.Id)); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionItems, Op: notify.OpUpdate, Ids: itemIds(items)})
	return items, nil
}

// GetItem retrieves a single item by ID.
func (r *ItemRepository) GetItem(ctx context.Context, id core.ID) (*core.InventoryItem, error) {
	var result *core.InventoryItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readItem(tx, id)
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

// GetItems retrieves multiple items by their IDs, skipping missing ones.
func (r *ItemRepository) GetItems(ctx context.Context, ids ...core.ID) ([]*core.InventoryItem, error) {
	var result []*core.InventoryItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := readItem(tx, id)
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteItems removes items by their IDs. All requested items are read
// before any is deleted; a single missing ID fails the whole call and
// leaves everything in place.
func (r *ItemRepository) DeleteItems(ctx context.Context, ids ...core.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		items := make([]*core.InventoryItem, 0, len(ids))
		for _, id := range ids {
			item, err := readItem(tx, id)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("%w: item %d", storage.ErrNotFound, id)
			}
			items = append(items, item)
		}

		for _, item := range items {
			if item.LocationId != 0 {
				if err := tx.Delete(makeItemLocationKey(item.LocationId, item.Id)); err != nil {
					return err
				}
			}
			if err := tx.Delete(makeItemKey(item.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.bus.Publish(notify.Event{Collection: notify.CollectionItems, Op: notify.OpRemove, Ids: ids})
	return nil
}

// ItemsInLocation returns the items whose LocationId equals the given
// location, resolved through the location index.
func (r *ItemRepository) ItemsInLocation(ctx context.Context, locationId core.ID) ([]*core.InventoryItem, error) {
	var result []*core.InventoryItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := readItemIdsInLocation(tx, locationId)
		if err != nil {
			return err
		}
		for _, id := range ids {
			item, err := readItem(tx, id)
			if err != nil {
				return err
			}
			if item != nil {
				result = append(result, item)
			}
		}
		return nil
	}, false)
	return result, err
}

// ItemsByType returns the items of the given collection type.
func (r *ItemRepository) ItemsByType(ctx context.Context, collectionType core.CollectionType) ([]*core.InventoryItem, error) {
	all, err := r.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, item := range all {
		if item.Type == collectionType {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// ListItems returns every item in the store.
func (r *ItemRepository) ListItems(ctx context.Context) ([]*core.InventoryItem, error) {
	var result []*core.InventoryItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordScanPrefix(itemPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var item *core.InventoryItem
			err := iter.Item().Value(func(val []byte) error {
				var err error
				item, err = storage.UnmarshalItem(val)
				return err
			})
			if err != nil {
				return err
			}
			result = append(result, item)
		}
		return nil
	}, false)
	return result, err
}

// ImportAll replaces the whole item table, preserving record IDs and
// rebuilding the location index. Runs during migration.
func (r *ItemRepository) ImportAll(ctx context.Context, items []*core.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := deleteByPrefix(tx, recordScanPrefix(itemPrefix)); err != nil {
			return err
		}
		if err := deleteByPrefix(tx, recordScanPrefix(itemLocationPrefix)); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, item := range items {
			if item.InsertedAt.IsZero() {
				item.InsertedAt = now
			}
			if item.UpdatedAt.IsZero() {
				item.UpdatedAt = item.InsertedAt
			}
			if err := writeItem(tx, item); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// itemOrphaner implementation; called by the location repository with
// both collection locks held, inside the removal transaction.

func (r *ItemRepository) lockItems() {
	r.mu.Lock()
}

func (r *ItemRepository) unlockItems() {
	r.mu.Unlock()
}

// orphanInTx clears the location reference of every item pointing into
// the removed subtree and drops the affected index entries.
func (r *ItemRepository) orphanInTx(tx *badger.Txn, removedLocations map[core.ID]struct{}) ([]core.ID, error) {
	var orphaned []core.ID
	now := time.Now().UTC()

	for locationId := range removedLocations {
		ids, err := readItemIdsInLocation(tx, locationId)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			item, err := readItem(tx, id)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, fmt.Errorf("%w: location index references missing item %d", storage.ErrNotFound, id)
			}

			if err := tx.Delete(makeItemLocationKey(locationId, id)); err != nil {
				return nil, err
			}

			item.LocationId = 0
			item.UpdatedAt = now
			if err := tx.Set(makeItemKey(id), storage.MarshalItem(item)); err != nil {
				return nil, err
			}
			orphaned = append(orphaned, id)
		}
	}
	return orphaned, nil
}

// Helper functions.

// readItem reads an item record, returning nil when absent.
func readItem(tx *badger.Txn, id core.ID) (*core.InventoryItem, error) {
	record, err := tx.Get(makeItemKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var item *core.InventoryItem
	err = record.Value(func(val []byte) error {
		var unmarshalErr error
		item, unmarshalErr = storage.UnmarshalItem(val)
		return unmarshalErr
	})
	return item, err
}

// writeItem stores the primary record and its location index entry.
func writeItem(tx *badger.Txn, item *core.InventoryItem) error {
	if err := tx.Set(makeItemKey(item.Id), storage.MarshalItem(item)); err != nil {
		return err
	}
	if item.LocationId != 0 {
		if err := tx.Set(makeItemLocationKey(item.LocationId, item.Id), storage.MarshalID(item.Id)); err != nil {
			return err
		}
	}
	return nil
}

// readItemIdsInLocation scans the location index for one location.
func readItemIdsInLocation(tx *badger.Txn, locationId core.ID) ([]core.ID, error) {
	var ids []core.ID

	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialItemLocationKey(locationId)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id core.ID
		err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// checkItemLocation enforces the referential-integrity invariant: a
// non-zero LocationId must resolve at write time.
func checkItemLocation(tx *badger.Txn, item *core.InventoryItem) error {
	if item.LocationId == 0 {
		return nil
	}
	location, err := readLocation(tx, item.LocationId)
	if err != nil {
		return err
	}
	if location == nil {
		return fmt.Errorf("%w: location %d", storage.ErrUnknownLocation, item.LocationId)
	}
	return nil
}

func itemIds(items []*core.InventoryItem) []core.ID {
	ids := make([]core.ID, len(items))
	for i, item := range items {
		ids[i] = item.Id
	}
	return ids
}
