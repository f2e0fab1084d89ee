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

import "errors"

// Domain validation errors
var (
	// ErrInvalidLocation indicates a StorageLocation failed validation.
	ErrInvalidLocation = errors.New("invalid storage location")

	// ErrInvalidItem indicates an InventoryItem failed validation.
	ErrInvalidItem = errors.New("invalid inventory item")

	// ErrInvalidCorrection indicates a CorrectionRecord failed validation.
	ErrInvalidCorrection = errors.New("invalid correction record")

	// ErrEmptyName indicates the location Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyTitle indicates the item Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyIsbn indicates the correction Isbn field is empty.
	ErrEmptyIsbn = errors.New("isbn cannot be empty")

	// ErrInvalidLocationType indicates an unknown LocationType value.
	ErrInvalidLocationType = errors.New("invalid location type")

	// ErrInvalidCollectionType indicates an unknown CollectionType value.
	ErrInvalidCollectionType = errors.New("invalid collection type")

	// ErrDisallowedNesting indicates a child location type that may not
	// nest inside its parent's type.
	ErrDisallowedNesting = errors.New("location type cannot nest inside parent type")
)
