package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
)

func TestAddItemsUnknownLocation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	_, err := repos.Items.AddItems(ctx, &core.InventoryItem{
		Title:      "The Left Hand of Darkness",
		Type:       core.CollectionTypeBooks,
		LocationId: 4242,
	})
	if !errors.Is(err, storage.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}

	all, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("rejected batch left %d items behind", len(all))
	}
}

func TestAddItemsBatchAllOrNothing(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	room := mustAddLocation(t, repos, "loft", core.LocationTypeRoom, 0)

	_, err := repos.Items.AddItems(ctx,
		&core.InventoryItem{Title: "Neuromancer", Type: core.CollectionTypeBooks, LocationId: room.Id},
		&core.InventoryItem{Title: "dangling", Type: core.CollectionTypeBooks, LocationId: 9999},
	)
	if !errors.Is(err, storage.ErrUnknownLocation) {
		t.Fatalf("expected ErrUnknownLocation, got %v", err)
	}

	all, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("partial batch committed, found %d items", len(all))
	}
}

func TestAddItemsUnlocated(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	items, err := repos.Items.AddItems(ctx, &core.InventoryItem{
		Title: "loose screwdriver",
		Type:  core.CollectionTypeTools,
	})
	if err != nil {
		t.Fatalf("adding unlocated item: %v", err)
	}
	if items[0].LocationId != 0 {
		t.Fatalf("expected unlocated item, got location %d", items[0].LocationId)
	}
	if items[0].InsertedAt.IsZero() || items[0].UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestUpdateItemsMovesLocation(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	room := mustAddLocation(t, repos, "closet", core.LocationTypeRoom, 0)
	box := mustAddLocation(t, repos, "winter box", core.LocationTypeBox, room.Id)

	added, err := repos.Items.AddItems(ctx, &core.InventoryItem{
		Title:      "Snow Crash",
		Type:       core.CollectionTypeBooks,
		LocationId: room.Id,
	})
	if err != nil {
		t.Fatalf("adding item: %v", err)
	}
	item := added[0]

	item.LocationId = box.Id
	item.Notes = "boxed for the move"
	if _, err := repos.Items.UpdateItems(ctx, item); err != nil {
		t.Fatalf("updating item: %v", err)
	}

	inBox, err := repos.Items.ItemsInLocation(ctx, box.Id)
	if err != nil {
		t.Fatalf("listing items in box: %v", err)
	}
	if len(inBox) != 1 || inBox[0].Id != item.Id {
		t.Fatalf("expected item in box, got %v", inBox)
	}

	inRoom, err := repos.Items.ItemsInLocation(ctx, room.Id)
	if err != nil {
		t.Fatalf("listing items in room: %v", err)
	}
	if len(inRoom) != 0 {
		t.Fatalf("expected room emptied, got %d items", len(inRoom))
	}

	got, err := repos.Items.GetItem(ctx, item.Id)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if got.Notes != "boxed for the move" {
		t.Fatalf("expected updated notes, got %q", got.Notes)
	}
	if got.InsertedAt.IsZero() {
		t.Fatal("update must preserve InsertedAt")
	}
}

func TestUpdateItemsRejectsUnknown(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	_, err := repos.Items.UpdateItems(ctx, &core.InventoryItem{
		Id:    777,
		Title: "ghost",
		Type:  core.CollectionTypeBooks,
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteItemsAllOrNothing(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Items.AddItems(ctx,
		&core.InventoryItem{Title: "a", Type: core.CollectionTypeGames},
		&core.InventoryItem{Title: "b", Type: core.CollectionTypeGames},
	)
	if err != nil {
		t.Fatalf("adding items: %v", err)
	}

	err = repos.Items.DeleteItems(ctx, added[0].Id, 9999)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	all, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("failed bulk delete must not remove anything, got %d items", len(all))
	}

	if err := repos.Items.DeleteItems(ctx, added[0].Id, added[1].Id); err != nil {
		t.Fatalf("deleting items: %v", err)
	}
	all, err = repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty store, got %d items", len(all))
	}
}

func TestItemsByType(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	_, err := repos.Items.AddItems(ctx,
		&core.InventoryItem{Title: "Berserk 1", Type: core.CollectionTypeManga},
		&core.InventoryItem{Title: "Berserk 2", Type: core.CollectionTypeManga},
		&core.InventoryItem{Title: "multimeter", Type: core.CollectionTypeElectronics},
	)
	if err != nil {
		t.Fatalf("adding items: %v", err)
	}

	manga, err := repos.Items.ItemsByType(ctx, core.CollectionTypeManga)
	if err != nil {
		t.Fatalf("listing by type: %v", err)
	}
	if len(manga) != 2 {
		t.Fatalf("expected 2 manga, got %d", len(manga))
	}
	for _, item := range manga {
		if item.Type != core.CollectionTypeManga {
			t.Fatalf("wrong type in result: %v", item.Type)
		}
	}
}

func TestGetItemsSkipsMissing(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	added, err := repos.Items.AddItems(ctx, &core.InventoryItem{Title: "x", Type: core.CollectionTypeBooks})
	if err != nil {
		t.Fatalf("adding item: %v", err)
	}

	got, err := repos.Items.GetItems(ctx, added[0].Id, 9999)
	if err != nil {
		t.Fatalf("reading items: %v", err)
	}
	if len(got) != 1 || got[0].Id != added[0].Id {
		t.Fatalf("expected only the existing item, got %v", got)
	}
}
