package flatfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("opening missing file: %v", err)
	}

	records, err := store.Records(context.Background())
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %d records", len(records))
	}

	completed, err := store.Completed(context.Background())
	if err != nil {
		t.Fatalf("reading flag: %v", err)
	}
	if completed {
		t.Fatal("missing file must read as unmigrated")
	}
}

func TestPutRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}

	key := "3f2c1d9e-0000-0000-0000-000000000001"
	if err := store.PutRecord(ctx, key, []byte(`{"kind":"isbn_correction","isbn":"123"}`)); err != nil {
		t.Fatalf("writing record: %v", err)
	}

	// Reopen to prove it hit disk.
	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	records, err := store.Records(ctx)
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	if string(records[key]) != `{"kind":"isbn_correction","isbn":"123"}` {
		t.Fatalf("unexpected payload: %s", records[key])
	}
}

func TestCompletedFlagPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if err := store.PutRecord(ctx, "k", []byte(`{}`)); err != nil {
		t.Fatalf("writing record: %v", err)
	}
	if err := store.SetCompleted(ctx, true); err != nil {
		t.Fatalf("setting flag: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	completed, err := store.Completed(ctx)
	if err != nil {
		t.Fatalf("reading flag: %v", err)
	}
	if !completed {
		t.Fatal("flag did not survive reopen")
	}

	// Setting the flag must not drop records.
	records, err := store.Records(ctx)
	if err != nil {
		t.Fatalf("reading records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected error opening corrupt file")
	}
}
