package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// New records take IDs from database sequences; migrated records use
// content-based hashing so repeated migrations land on the same IDs.
// The zero value means "absent": a location with ParentId == 0 is a
// root, an item with LocationId == 0 is unlocated.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// LocationType classifies a physical storage location.
type LocationType int

const (
	// LocationTypeRoom is a top-level room.
	LocationTypeRoom LocationType = iota + 1
	// LocationTypeShelf is an open shelf unit.
	LocationTypeShelf
	// LocationTypeCabinet is a closed cabinet.
	LocationTypeCabinet
	// LocationTypeDrawer is a drawer inside a cabinet.
	LocationTypeDrawer
	// LocationTypeBox is a box; boxes hold only items.
	LocationTypeBox
)

// String returns the lowercase name of the location type.
func (t LocationType) String() string {
	switch t {
	case LocationTypeRoom:
		return "room"
	case LocationTypeShelf:
		return "shelf"
	case LocationTypeCabinet:
		return "cabinet"
	case LocationTypeDrawer:
		return "drawer"
	case LocationTypeBox:
		return "box"
	}
	return "unknown"
}

// ParseLocationType parses a lowercase location type name.
// Returns false if the name is not a known type.
func ParseLocationType(s string) (LocationType, bool) {
	for t := LocationTypeRoom; t <= LocationTypeBox; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// CollectionType classifies an inventory item. It is an independent
// taxonomy from LocationType.
type CollectionType int

const (
	CollectionTypeBooks CollectionType = iota + 1
	CollectionTypeManga
	CollectionTypeComics
	CollectionTypeGames
	CollectionTypeCollectibles
	CollectionTypeElectronics
	CollectionTypeTools
)

// String returns the lowercase name of the collection type.
func (t CollectionType) String() string {
	switch t {
	case CollectionTypeBooks:
		return "books"
	case CollectionTypeManga:
		return "manga"
	case CollectionTypeComics:
		return "comics"
	case CollectionTypeGames:
		return "games"
	case CollectionTypeCollectibles:
		return "collectibles"
	case CollectionTypeElectronics:
		return "electronics"
	case CollectionTypeTools:
		return "tools"
	}
	return "unknown"
}

// ParseCollectionType parses a lowercase collection type name.
// Returns false if the name is not a known type.
func ParseCollectionType(s string) (CollectionType, bool) {
	for t := CollectionTypeBooks; t <= CollectionTypeTools; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Condition describes the physical condition of an item.
// It is inert payload; no invariant depends on it.
type Condition int

const (
	ConditionUnknown Condition = iota
	ConditionNew
	ConditionLikeNew
	ConditionGood
	ConditionFair
	ConditionPoor
)

// String returns the lowercase name of the condition.
func (c Condition) String() string {
	switch c {
	case ConditionNew:
		return "new"
	case ConditionLikeNew:
		return "like-new"
	case ConditionGood:
		return "good"
	case ConditionFair:
		return "fair"
	case ConditionPoor:
		return "poor"
	}
	return "unknown"
}

// StorageLocation is a node in the storage-location tree.
// The parent graph is acyclic and every parent/child type pairing
// must satisfy the nesting rules in rules.go.
type StorageLocation struct {
	Id         ID
	Name       string
	Type       LocationType
	ParentId   ID // 0 means root-level
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// InventoryItem is a registered physical item. LocationId, when set,
// always references an existing StorageLocation; it is cleared (never
// left dangling) when that location is removed.
type InventoryItem struct {
	Id          ID
	Title       string
	Type        CollectionType
	LocationId  ID // 0 means unlocated
	Series      string
	Volume      int
	Author      string
	PriceCents  int64
	Condition   Condition
	Notes       string
	PurchasedAt time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// CorrectionRecord is an ISBN metadata correction, the flat record set
// migrated from the legacy store into its own structured table.
type CorrectionRecord struct {
	Id         ID
	Isbn       string
	Title      string
	Author     string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// CorrectionIDFromISBN derives the deterministic ID for a correction record.
func CorrectionIDFromISBN(isbn string) ID {
	return IDFromContent("(isbn," + isbn + ")")
}
