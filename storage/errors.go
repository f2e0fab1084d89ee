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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownLocation indicates an item references a location that
	// does not exist at write time.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrCycle indicates a re-parent operation that would make a
	// location its own ancestor.
	ErrCycle = errors.New("re-parent would create a cycle")

	// ErrDepthExceeded indicates a parent walk that ran past the
	// maximum tree depth. Structurally impossible through the public
	// operations; treated as a data-integrity failure, not a crash.
	ErrDepthExceeded = errors.New("parent chain exceeds maximum depth")

	// ErrIO indicates an underlying persistence failure.
	ErrIO = errors.New("storage i/o failure")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
