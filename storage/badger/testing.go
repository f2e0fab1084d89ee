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


package badger

// Repositories bundles the three repositories sharing one backend.
type Repositories struct {
	Backend     *Backend
	Locations   *LocationRepository
	Items       *ItemRepository
	Corrections *CorrectionRepository
}

// NewRepositories opens a backend at filePath and wires the three
// repositories on top of it, including the orphaning link from
// locations to items.
func NewRepositories(filePath string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	locations, err := NewLocationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	items, err := NewItemRepository(backend)
	if err != nil {
		locations.Close()
		backend.Close()
		return nil, err
	}

	locations.AttachItems(items)

	return &Repositories{
		Backend:     backend,
		Locations:   locations,
		Items:       items,
		Corrections: NewCorrectionRepository(backend),
	}, nil
}

// NewMemoryRepositories opens an in-memory repository set, mainly for
// tests.
func NewMemoryRepositories() (*Repositories, error) {
	return NewRepositories("", true)
}

// Close releases all repository resources and the shared backend.
func (r *Repositories) Close() error {
	r.Corrections.Close()
	r.Items.Close()
	r.Locations.Close()
	return r.Backend.Close()
}
