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


// Package view builds read-side projections of the location tree.
package view

import (
	"context"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/notify"
	"github.com/poiesic/stash/storage"
)

const pathSeparator = "/"

// PathCache serves breadcrumb path strings ("Office/Bookshelf/Box 3")
// with a read-through cache in front of the location repository. When
// wired to a change bus it invalidates itself on any location change;
// renames and moves anywhere in the tree can alter unboundedly many
// descendant paths, so invalidation clears the whole cache rather
// than chasing them.
type PathCache struct {
	locations storage.LocationRepository
	cache     *ristretto.Cache[uint64, string]
	cancel    func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewPathCache creates a PathCache over the location repository. A
// nil bus disables invalidation; callers then flush manually.
func NewPathCache(locations storage.LocationRepository, bus *notify.Bus) (*PathCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, string]{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	p := &PathCache{
		locations: locations,
		cache:     cache,
		done:      make(chan struct{}),
	}

	if bus != nil {
		events, cancel := bus.Subscribe(16)
		p.cancel = cancel
		go p.watch(events)
	} else {
		close(p.done)
	}
	return p, nil
}

// Path returns the breadcrumb path of the location, ancestors first,
// joined with "/".
func (p *PathCache) Path(ctx context.Context, id core.ID) (string, error) {
	if cached, ok := p.cache.Get(uint64(id)); ok {
		return cached, nil
	}

	names, err := p.locations.BreadcrumbPath(ctx, id)
	if err != nil {
		return "", err
	}

	path := strings.Join(names, pathSeparator)
	p.cache.Set(uint64(id), path, int64(len(path)))
	return path, nil
}

// Flush drops every cached path.
func (p *PathCache) Flush() {
	p.cache.Clear()
}

// Close detaches from the bus and releases the cache.
func (p *PathCache) Close() {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		<-p.done
		p.cache.Close()
	})
}

func (p *PathCache) watch(events <-chan notify.Event) {
	defer close(p.done)
	for event := range events {
		if event.Collection == notify.CollectionLocations {
			p.cache.Clear()
		}
	}
}
