package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/stash/core"
)

// Key prefixes for different data types. Record scans use the prefix
// plus the ":" separator so the sequence keys (no separator) stay out
// of range.
const (
	locationPrefix       = "locrec"
	locationParentPrefix = "locpar"
	locationIDSeq        = "locrecseq"
	itemPrefix           = "itmrec"
	itemLocationPrefix   = "itmloc"
	itemIDSeq            = "itmrecseq"
	correctionPrefix     = "correc"
	correctionIsbnPrefix = "corisbn"
)

// makeLocationKey generates a key for a location by ID.
func makeLocationKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", locationPrefix, id))
}

// makeLocationParentKey generates a composite key for the parent index.
// Format: prefix:parentID:childID
func makeLocationParentKey(parentID, childID core.ID) []byte {
	prefix := locationParentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for parentID + 8 bytes for childID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(parentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(childID))
	return buf
}

// makePartialLocationParentKey generates a partial key for children queries.
// Format: prefix:parentID
func makePartialLocationParentKey(parentID core.ID) []byte {
	prefix := locationParentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(parentID))
	return buf
}

// makeItemKey generates a key for an item by ID.
func makeItemKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", itemPrefix, id))
}

// makeItemLocationKey generates a composite key for the location index.
// Format: prefix:locationID:itemID
func makeItemLocationKey(locationID, itemID core.ID) []byte {
	prefix := itemLocationPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(locationID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(itemID))
	return buf
}

// makePartialItemLocationKey generates a partial key for items-in-location queries.
// Format: prefix:locationID
func makePartialItemLocationKey(locationID core.ID) []byte {
	prefix := itemLocationPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(locationID))
	return buf
}

// makeCorrectionKey generates a key for a correction record by ID.
func makeCorrectionKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", correctionPrefix, id))
}

// makeCorrectionIsbnKey generates a key for the ISBN lookup index.
// Format: prefix:isbn
func makeCorrectionIsbnKey(isbn string) []byte {
	return []byte(correctionIsbnPrefix + ":" + isbn)
}

// recordScanPrefix returns the iterator prefix covering the primary
// records of a table, excluding index and sequence keys.
func recordScanPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}
