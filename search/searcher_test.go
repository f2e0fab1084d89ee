package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
	"github.com/poiesic/stash/storage/badger"
)

func newSearchFixture(t *testing.T) (*Searcher, *badger.Repositories) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	searcher, err := NewSearcher(repos.Items, repos.Locations)
	require.NoError(t, err)
	return searcher, repos
}

func TestNewSearcherRequiresRepositories(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	_, err = NewSearcher(nil, repos.Locations)
	assert.ErrorIs(t, err, ErrNoItemRepository)

	_, err = NewSearcher(repos.Items, nil)
	assert.ErrorIs(t, err, ErrNoLocationRepository)
}

func TestFindItemsFilters(t *testing.T) {
	searcher, repos := newSearchFixture(t)
	ctx := context.Background()

	room, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "study", Type: core.LocationTypeRoom})
	require.NoError(t, err)
	shelf, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "paperbacks", Type: core.LocationTypeShelf, ParentId: room.Id})
	require.NoError(t, err)

	_, err = repos.Items.AddItems(ctx,
		&core.InventoryItem{Title: "The Dispossessed", Type: core.CollectionTypeBooks, LocationId: shelf.Id, Condition: core.ConditionGood},
		&core.InventoryItem{Title: "The Lathe of Heaven", Type: core.CollectionTypeBooks, LocationId: shelf.Id, Condition: core.ConditionFair},
		&core.InventoryItem{Title: "Chrono Trigger", Type: core.CollectionTypeGames, LocationId: room.Id, Condition: core.ConditionGood},
	)
	require.NoError(t, err)

	// Title is a case-insensitive substring match.
	found, err := searcher.FindItems(ctx, Filter{Title: "the"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = searcher.FindItems(ctx, Filter{Type: core.CollectionTypeGames})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Chrono Trigger", found[0].Title)

	found, err = searcher.FindItems(ctx, Filter{LocationId: shelf.Id, Condition: core.ConditionGood})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "The Dispossessed", found[0].Title)

	// Zero filter matches everything.
	found, err = searcher.FindItems(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestFindLocationBreadthFirst(t *testing.T) {
	searcher, repos := newSearchFixture(t)
	ctx := context.Background()

	room, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "garage", Type: core.LocationTypeRoom})
	require.NoError(t, err)
	shelf, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "parts", Type: core.LocationTypeShelf, ParentId: room.Id})
	require.NoError(t, err)
	box, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "Fasteners", Type: core.LocationTypeBox, ParentId: shelf.Id})
	require.NoError(t, err)
	otherRoom, err := repos.Locations.AddLocation(ctx, &core.StorageLocation{Name: "fasteners", Type: core.LocationTypeRoom})
	require.NoError(t, err)

	// Matching is case-insensitive and the shallower match wins.
	found, err := searcher.FindLocation(ctx, 0, "FASTENERS")
	require.NoError(t, err)
	assert.Equal(t, otherRoom.Id, found.Id)

	// Scoping to a subtree hides everything outside it.
	found, err = searcher.FindLocation(ctx, room.Id, "fasteners")
	require.NoError(t, err)
	assert.Equal(t, box.Id, found.Id)

	_, err = searcher.FindLocation(ctx, 0, "attic")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestGroupBySeries(t *testing.T) {
	items := []*core.InventoryItem{
		{Title: "Berserk 1", Series: "Berserk", Volume: 1},
		{Title: "Berserk 2", Series: "Berserk", Volume: 2},
		{Title: "standalone", Series: ""},
	}

	groups := GroupBySeries(items)
	assert.Len(t, groups["Berserk"], 2)
	assert.Len(t, groups[""], 1)

	byAuthor := GroupByAuthor([]*core.InventoryItem{
		{Title: "a", Author: "Le Guin"},
		{Title: "b", Author: "Le Guin"},
	})
	assert.Len(t, byAuthor["Le Guin"], 2)
}
