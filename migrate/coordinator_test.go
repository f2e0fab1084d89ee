package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/stash/storage/badger"
)

// memoryLegacy is an in-memory stand-in for the flat-file legacy
// store.
type memoryLegacy struct {
	records   map[string][]byte
	completed bool
}

func (m *memoryLegacy) Records(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *memoryLegacy) PutRecord(ctx context.Context, key string, payload []byte) error {
	if m.records == nil {
		m.records = make(map[string][]byte)
	}
	m.records[key] = payload
	return nil
}

func (m *memoryLegacy) Completed(ctx context.Context) (bool, error) {
	return m.completed, nil
}

func (m *memoryLegacy) SetCompleted(ctx context.Context, completed bool) error {
	m.completed = completed
	return nil
}

const (
	roomKey   = "0e5cdb2a-9f6c-4a08-a6a1-000000000001"
	shelfKey  = "0e5cdb2a-9f6c-4a08-a6a1-000000000002"
	itemKey   = "0e5cdb2a-9f6c-4a08-a6a1-000000000003"
	isbnKey   = "0e5cdb2a-9f6c-4a08-a6a1-000000000004"
	brokenKey = "0e5cdb2a-9f6c-4a08-a6a1-000000000005"
)

func seededLegacy() *memoryLegacy {
	return &memoryLegacy{records: map[string][]byte{
		roomKey:  []byte(`{"kind":"location","name":"office","type":"room"}`),
		shelfKey: []byte(`{"kind":"location","name":"bookshelf","type":"shelf","parent_key":"` + roomKey + `"}`),
		itemKey:  []byte(`{"kind":"item","title":"Dune","type":"books","location_key":"` + shelfKey + `","author":"Frank Herbert"}`),
		isbnKey:  []byte(`{"kind":"isbn_correction","isbn":"9780441013593","title":"Dune"}`),
	}}
}

func newCoordinator(t *testing.T, legacy *memoryLegacy) (*Coordinator, *badger.Repositories) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("opening repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })
	return NewCoordinator(legacy, repos.Locations, repos.Items, repos.Corrections), repos
}

func TestRunMigratesLegacyRecords(t *testing.T) {
	legacy := seededLegacy()
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	report, err := coordinator.Run(ctx)
	if err != nil {
		t.Fatalf("running migration: %v", err)
	}
	if report.State != StateMigrated {
		t.Fatalf("expected StateMigrated, got %v", report.State)
	}
	if report.MigratedLocations != 2 || report.MigratedItems != 1 || report.MigratedCorrections != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Skipped != 0 {
		t.Fatalf("expected no skips, got %d", report.Skipped)
	}

	if !legacy.completed {
		t.Fatal("flag not persisted")
	}
	if len(legacy.records) != 4 {
		t.Fatal("migration must never delete legacy records")
	}

	// The tree structure survived the key-to-ID remap.
	roots, err := repos.Locations.Roots(ctx)
	if err != nil {
		t.Fatalf("listing roots: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "office" {
		t.Fatalf("unexpected roots: %v", roots)
	}
	children, err := repos.Locations.Children(ctx, roots[0].Id)
	if err != nil {
		t.Fatalf("listing children: %v", err)
	}
	if len(children) != 1 || children[0].Name != "bookshelf" {
		t.Fatalf("unexpected children: %v", children)
	}

	items, err := repos.Items.ItemsInLocation(ctx, children[0].Id)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Dune" {
		t.Fatalf("unexpected items: %v", items)
	}

	correction, err := repos.Corrections.GetCorrectionByISBN(ctx, "9780441013593")
	if err != nil {
		t.Fatalf("looking up correction: %v", err)
	}
	if correction.Title != "Dune" {
		t.Fatalf("unexpected correction: %+v", correction)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	legacy := seededLegacy()
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	first, err := coordinator.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := coordinator.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.State != StateMigrated {
		t.Fatalf("expected StateMigrated, got %v", second.State)
	}
	if second.MigratedLocations != 0 || second.MigratedItems != 0 {
		t.Fatalf("second run must be a no-op, got %+v", second)
	}
	if !first.Performed || second.Performed {
		t.Fatalf("expected only the first run to perform the import, got %v then %v", first.Performed, second.Performed)
	}

	all, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(all) != first.MigratedItems {
		t.Fatalf("expected %d items, got %d", first.MigratedItems, len(all))
	}
}

func TestRerunAfterCrashProducesSameIds(t *testing.T) {
	legacy := seededLegacy()
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	if _, err := coordinator.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstItems, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}

	// Simulate a crash before the flag flip: clear it and rerun.
	legacy.completed = false
	if _, err := coordinator.Run(ctx); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	secondItems, err := repos.Items.ListItems(ctx)
	if err != nil {
		t.Fatalf("listing items: %v", err)
	}

	if len(firstItems) != 1 || len(secondItems) != 1 {
		t.Fatalf("expected 1 item both runs, got %d then %d", len(firstItems), len(secondItems))
	}
	if firstItems[0].Id != secondItems[0].Id {
		t.Fatalf("rerun changed item ID: %d then %d", firstItems[0].Id, secondItems[0].Id)
	}
}

func TestRunSkipsInvalidRecords(t *testing.T) {
	legacy := seededLegacy()
	legacy.records[brokenKey] = []byte(`{"kind":"location","name":"mystery","type":"wormhole"}`)
	legacy.records["not-a-uuid"] = []byte(`{"kind":"item"}`)
	coordinator, _ := newCoordinator(t, legacy)

	report, err := coordinator.Run(context.Background())
	if err != nil {
		t.Fatalf("running migration: %v", err)
	}
	if report.Skipped != 2 {
		t.Fatalf("expected 2 skips, got %d", report.Skipped)
	}
	if report.MigratedLocations != 2 {
		t.Fatalf("valid records must still migrate, got %+v", report)
	}
	if _, ok := legacy.records[brokenKey]; !ok {
		t.Fatal("skipped records must stay in the legacy store")
	}
}

func TestRunEmptyLegacySetsFlag(t *testing.T) {
	legacy := &memoryLegacy{}
	coordinator, _ := newCoordinator(t, legacy)

	report, err := coordinator.Run(context.Background())
	if err != nil {
		t.Fatalf("running migration: %v", err)
	}
	if report.State != StateMigrated {
		t.Fatalf("expected StateMigrated, got %v", report.State)
	}
	if !legacy.completed {
		t.Fatal("empty migration must still set the flag")
	}
	if !report.Performed {
		t.Fatal("a fresh run over an empty store still performs the import")
	}
}

func TestRunDanglingParentPromotesToRoot(t *testing.T) {
	legacy := &memoryLegacy{records: map[string][]byte{
		shelfKey: []byte(`{"kind":"location","name":"orphan shelf","type":"shelf","parent_key":"` + roomKey + `"}`),
	}}
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	if _, err := coordinator.Run(ctx); err != nil {
		t.Fatalf("running migration: %v", err)
	}

	roots, err := repos.Locations.Roots(ctx)
	if err != nil {
		t.Fatalf("listing roots: %v", err)
	}
	if len(roots) != 1 || roots[0].ParentId != 0 {
		t.Fatalf("expected promoted root, got %v", roots)
	}
}

func TestRunSkippedParentPromotesChildToRoot(t *testing.T) {
	// The parent record is present in the legacy store but carries a
	// type we no longer accept, so only the child survives. Regardless
	// of the order the records are read in, the child must come out a
	// root rather than pointing at an ID that was never written.
	legacy := &memoryLegacy{records: map[string][]byte{
		roomKey:  []byte(`{"kind":"location","name":"annex","type":"warehouse"}`),
		shelfKey: []byte(`{"kind":"location","name":"stranded shelf","type":"shelf","parent_key":"` + roomKey + `"}`),
	}}
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	report, err := coordinator.Run(ctx)
	if err != nil {
		t.Fatalf("running migration: %v", err)
	}
	if report.Skipped != 1 || report.MigratedLocations != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	roots, err := repos.Locations.Roots(ctx)
	if err != nil {
		t.Fatalf("listing roots: %v", err)
	}
	if len(roots) != 1 || roots[0].Name != "stranded shelf" || roots[0].ParentId != 0 {
		t.Fatalf("expected promoted root, got %v", roots)
	}
}

func TestRunBreaksLegacyParentCycle(t *testing.T) {
	legacy := &memoryLegacy{records: map[string][]byte{
		roomKey:  []byte(`{"kind":"location","name":"left","type":"box","parent_key":"` + shelfKey + `"}`),
		shelfKey: []byte(`{"kind":"location","name":"right","type":"box","parent_key":"` + roomKey + `"}`),
	}}
	coordinator, repos := newCoordinator(t, legacy)
	ctx := context.Background()

	report, err := coordinator.Run(ctx)
	if err != nil {
		t.Fatalf("running migration: %v", err)
	}
	if report.MigratedLocations != 2 {
		t.Fatalf("both cycle members must migrate, got %+v", report)
	}

	// Exactly one member got promoted, leaving a valid chain.
	roots, err := repos.Locations.Roots(ctx)
	if err != nil {
		t.Fatalf("listing roots: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected one root after breaking the cycle, got %v", roots)
	}

	all, err := repos.Locations.ListLocations(ctx)
	if err != nil {
		t.Fatalf("listing locations: %v", err)
	}
	for _, location := range all {
		if _, err := repos.Locations.BreadcrumbPath(ctx, location.Id); err != nil {
			t.Fatalf("breadcrumb for %q: %v", location.Name, err)
		}
	}

	if _, err := repos.Locations.RemoveLocation(ctx, roots[0].Id); err != nil {
		t.Fatalf("removing the tree: %v", err)
	}
}

func TestRunErrorsSurfaceTyped(t *testing.T) {
	legacy := seededLegacy()
	coordinator, repos := newCoordinator(t, legacy)
	repos.Close()

	_, err := coordinator.Run(context.Background())
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("expected ErrMigration, got %v", err)
	}
}
