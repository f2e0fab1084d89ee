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


// Package storage provides the storage abstraction layer for stash.
//
// This package defines repository interfaces that decouple storage
// implementation from the domain logic in core. The structured store
// backend lives in storage/badger; the legacy flat store consumed by
// the one-time migration lives in storage/flatfile.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - LocationRepository: the storage-location tree and its invariants
//     (acyclic parent graph, type-compatible nesting, cascading removal)
//   - ItemRepository: inventory items and their location references
//   - CorrectionRepository: the ISBN correction table migrated out of
//     the legacy store
//   - LegacyStore: the flat keyed-blob boundary read once per cold
//     start by the migration coordinator
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Structural
// mutations on a collection are serialized behind a per-collection
// writer lock; the location-removal cascade holds the location lock
// and then the item lock, in that order, for its whole critical
// section.
//
// # Context Support
//
// All repository methods accept context.Context. Pass
// context.Background() for operations without specific timeout
// requirements.
package storage
