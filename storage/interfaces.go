package storage

import (
	"context"

	"github.com/poiesic/stash/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// RemovalReceipt reports the effect of a cascading location removal.
type RemovalReceipt struct {
	// RemovedLocationIds holds the removed location and every removed
	// descendant, in removal order (parents before children).
	RemovedLocationIds []core.ID

	// OrphanedItemIds holds the items whose LocationId was cleared
	// because it referenced a removed location. The items themselves
	// are never deleted.
	OrphanedItemIds []core.ID
}

// LocationRepository owns the storage-location tree. Every structural
// mutation re-validates the cycle-free invariant and the nesting policy
// before committing; no partial state is ever observable.
type LocationRepository interface {
	Repository

	// AddLocation validates and inserts a location.
	// For locations with Id=0, generates a new ID from sequence.
	// Returns the location with ID and timestamps populated.
	AddLocation(ctx context.Context, location *core.StorageLocation) (*core.StorageLocation, error)

	// GetLocation retrieves a single location by ID.
	// Returns ErrNotFound if the location doesn't exist.
	GetLocation(ctx context.Context, id core.ID) (*core.StorageLocation, error)

	// RenameLocation changes a location's display name.
	// Returns ErrNotFound if the location doesn't exist.
	RenameLocation(ctx context.Context, id core.ID, name string) (*core.StorageLocation, error)

	// RetypeLocation changes a location's type, re-validating the
	// pairing with its current parent and with every immediate child.
	RetypeLocation(ctx context.Context, id core.ID, locationType core.LocationType) (*core.StorageLocation, error)

	// UpdateParent moves a location under a new parent (0 for root).
	// Returns ErrCycle if the new parent is the location itself or one
	// of its descendants; returns a validation error if the new type
	// pairing is disallowed.
	UpdateParent(ctx context.Context, id, newParentId core.ID) (*core.StorageLocation, error)

	// RemoveLocation removes a location and every descendant in one
	// logical step, clearing LocationId on every item that referenced
	// any removed location. Returns ErrNotFound if the id doesn't exist.
	RemoveLocation(ctx context.Context, id core.ID) (*RemovalReceipt, error)

	// Children returns the immediate children of a location,
	// computed from current state on every call.
	Children(ctx context.Context, id core.ID) ([]*core.StorageLocation, error)

	// Roots returns all locations without a parent.
	Roots(ctx context.Context) ([]*core.StorageLocation, error)

	// BreadcrumbPath returns the chain of names from a root down to the
	// location, the location's own name last. The parent walk is
	// bounded; a chain longer than the bound returns ErrDepthExceeded.
	BreadcrumbPath(ctx context.Context, id core.ID) ([]string, error)

	// ListLocations returns every location in the store.
	ListLocations(ctx context.Context) ([]*core.StorageLocation, error)

	// ImportAll replaces the whole location table with the given
	// records, preserving their IDs and rebuilding indexes. Used by
	// the migration coordinator; records must already be validated
	// and internally consistent.
	ImportAll(ctx context.Context, locations []*core.StorageLocation) error
}

// ItemRepository owns the inventory items and their location
// references. LocationId is re-validated on every write.
type ItemRepository interface {
	Repository

	// AddItems validates and inserts one or more items.
	// For items with Id=0, generates new IDs from sequence.
	// Returns ErrUnknownLocation if any LocationId does not resolve.
	AddItems(ctx context.Context, items ...*core.InventoryItem) ([]*core.InventoryItem, error)

	// UpdateItems replaces existing items with the given values,
	// applying the same validation as AddItems. The previous value
	// remains in place if validation fails.
	UpdateItems(ctx context.Context, items ...*core.InventoryItem) ([]*core.InventoryItem, error)

	// GetItem retrieves a single item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id core.ID) (*core.InventoryItem, error)

	// GetItems retrieves multiple items by their IDs.
	// Returns only the items that exist (no error for missing items).
	GetItems(ctx context.Context, ids ...core.ID) ([]*core.InventoryItem, error)

	// DeleteItems removes items by their IDs, all-or-nothing: if any
	// id does not exist the whole call fails with ErrNotFound and no
	// item is removed.
	DeleteItems(ctx context.Context, ids ...core.ID) error

	// ItemsInLocation returns the items whose LocationId equals the
	// given location.
	ItemsInLocation(ctx context.Context, locationId core.ID) ([]*core.InventoryItem, error)

	// ItemsByType returns the items of the given collection type.
	ItemsByType(ctx context.Context, collectionType core.CollectionType) ([]*core.InventoryItem, error)

	// ListItems returns every item in the store.
	ListItems(ctx context.Context) ([]*core.InventoryItem, error)

	// ImportAll replaces the whole item table with the given records,
	// preserving their IDs and rebuilding indexes. Used by the
	// migration coordinator.
	ImportAll(ctx context.Context, items []*core.InventoryItem) error
}

// CorrectionRepository owns the ISBN correction table migrated out of
// the legacy flat store.
type CorrectionRepository interface {
	Repository

	// AddCorrections inserts or overwrites corrections.
	// IDs are content-based (CorrectionIDFromISBN).
	AddCorrections(ctx context.Context, corrections ...*core.CorrectionRecord) ([]*core.CorrectionRecord, error)

	// GetCorrectionByISBN retrieves a correction by its ISBN.
	// Returns ErrNotFound if no correction exists for the ISBN.
	GetCorrectionByISBN(ctx context.Context, isbn string) (*core.CorrectionRecord, error)

	// ListCorrections returns every correction in the store.
	ListCorrections(ctx context.Context) ([]*core.CorrectionRecord, error)

	// ReplaceAll clears the correction table and writes the given
	// records in one transaction. Used by the migration coordinator.
	ReplaceAll(ctx context.Context, corrections []*core.CorrectionRecord) error
}

// LegacyStore is the flat keyed-blob store predating the structured
// store. It is consumed by the migration coordinator and afterwards
// written to only opportunistically, never read as authoritative.
type LegacyStore interface {
	// Records returns every legacy record keyed by its legacy key.
	Records(ctx context.Context) (map[string][]byte, error)

	// PutRecord stores a record under a key (rollback-safety mirror).
	PutRecord(ctx context.Context, key string, payload []byte) error

	// Completed reports the persisted migration-completed flag.
	Completed(ctx context.Context) (bool, error)

	// SetCompleted durably sets the migration-completed flag. Set to
	// true only after every migrated record is confirmed written.
	SetCompleted(ctx context.Context, completed bool) error
}
