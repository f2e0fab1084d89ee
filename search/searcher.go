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


// Package search provides filtered queries over the inventory and
// name lookup over the location tree.
package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
)

// Filter narrows FindItems results. Fields combine with AND; a zero
// field leaves that dimension unconstrained.
type Filter struct {
	Title      string // case-insensitive substring
	Type       core.CollectionType
	LocationId core.ID
	Condition  core.Condition
}

// Searcher runs queries over the repositories. It holds no state of
// its own and is safe for concurrent use.
type Searcher struct {
	items     storage.ItemRepository
	locations storage.LocationRepository
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// NewSearcher creates a Searcher over the given repositories.
func NewSearcher(items storage.ItemRepository, locations storage.LocationRepository, opts ...Option) (*Searcher, error) {
	if items == nil {
		return nil, ErrNoItemRepository
	}
	if locations == nil {
		return nil, ErrNoLocationRepository
	}

	s := &Searcher{
		items:     items,
		locations: locations,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FindItems returns the items matching the filter. When the filter
// pins a location, the query starts from that location's index
// instead of scanning the whole table.
func (s *Searcher) FindItems(ctx context.Context, filter Filter) ([]*core.InventoryItem, error) {
	var candidates []*core.InventoryItem
	var err error

	if filter.LocationId != 0 {
		candidates, err = s.items.ItemsInLocation(ctx, filter.LocationId)
	} else {
		candidates, err = s.items.ListItems(ctx)
	}
	if err != nil {
		return nil, err
	}

	result := make([]*core.InventoryItem, 0, len(candidates))
	for _, item := range candidates {
		if !matchesFilter(item, filter) {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

func matchesFilter(item *core.InventoryItem, filter Filter) bool {
	if filter.Title != "" && !containsFold(item.Title, filter.Title) {
		return false
	}
	if filter.Type != 0 && item.Type != filter.Type {
		return false
	}
	if filter.LocationId != 0 && item.LocationId != filter.LocationId {
		return false
	}
	if filter.Condition != core.ConditionUnknown && item.Condition != filter.Condition {
		return false
	}
	return true
}

// FindLocation searches the subtree under rootId for the first
// location whose name matches case-insensitively, breadth-first so
// shallower matches win. A rootId of 0 searches the whole forest.
// Returns storage.ErrNotFound when nothing matches.
func (s *Searcher) FindLocation(ctx context.Context, rootId core.ID, name string) (*core.StorageLocation, error) {
	var frontier []*core.StorageLocation
	var err error

	if rootId == 0 {
		frontier, err = s.locations.Roots(ctx)
	} else {
		var root *core.StorageLocation
		root, err = s.locations.GetLocation(ctx, rootId)
		if err == nil {
			frontier = []*core.StorageLocation{root}
		}
	}
	if err != nil {
		return nil, err
	}

	for len(frontier) > 0 {
		var next []*core.StorageLocation
		for _, location := range frontier {
			if equalFold(location.Name, name) {
				return location, nil
			}
			children, err := s.locations.Children(ctx, location.Id)
			if err != nil {
				return nil, err
			}
			next = append(next, children...)
		}
		frontier = next
	}
	return nil, storage.ErrNotFound
}

// GroupBySeries buckets items by their Series field, keeping items
// without a series under the empty key.
func GroupBySeries(items []*core.InventoryItem) map[string][]*core.InventoryItem {
	groups := make(map[string][]*core.InventoryItem)
	for _, item := range items {
		groups[item.Series] = append(groups[item.Series], item)
	}
	return groups
}

// GroupByAuthor buckets items by their Author field.
func GroupByAuthor(items []*core.InventoryItem) map[string][]*core.InventoryItem {
	groups := make(map[string][]*core.InventoryItem)
	for _, item := range items {
		groups[item.Author] = append(groups[item.Author], item)
	}
	return groups
}
