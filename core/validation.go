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


package core

import "fmt"

// ValidateLocation validates a StorageLocation according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Type must be a known LocationType
//
// NOT validated here (requires store access):
//   - Parent existence and parent/child type pairing
//   - ID (0 is valid before insertion)
func ValidateLocation(location *StorageLocation) error {
	if location == nil {
		return fmt.Errorf("%w: location is nil", ErrInvalidLocation)
	}

	if location.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidLocation, ErrEmptyName)
	}

	if err := ValidateLocationType(location.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	return nil
}

// ValidateItem validates an InventoryItem according to domain rules.
//
// Validation rules:
//   - Title must not be empty
//   - Type must be a known CollectionType
//
// NOT validated here (requires store access):
//   - LocationId existence
//   - ID (0 is valid before insertion)
func ValidateItem(item *InventoryItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyTitle)
	}

	if err := ValidateCollectionType(item.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	return nil
}

// ValidateCorrection validates a CorrectionRecord according to domain rules.
func ValidateCorrection(correction *CorrectionRecord) error {
	if correction == nil {
		return fmt.Errorf("%w: correction is nil", ErrInvalidCorrection)
	}

	if correction.Isbn == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCorrection, ErrEmptyIsbn)
	}

	return nil
}

// ValidateLocationType validates that a LocationType has a known value.
func ValidateLocationType(t LocationType) error {
	if t < LocationTypeRoom || t > LocationTypeBox {
		return fmt.Errorf("%w: value %d", ErrInvalidLocationType, t)
	}
	return nil
}

// ValidateCollectionType validates that a CollectionType has a known value.
func ValidateCollectionType(t CollectionType) error {
	if t < CollectionTypeBooks || t > CollectionTypeTools {
		return fmt.Errorf("%w: value %d", ErrInvalidCollectionType, t)
	}
	return nil
}

// ValidateNesting validates a parent/child type pairing against the
// static nesting policy.
func ValidateNesting(parent, child LocationType) error {
	if !CanNest(parent, child) {
		return fmt.Errorf("%w: %s inside %s", ErrDisallowedNesting, child, parent)
	}
	return nil
}
