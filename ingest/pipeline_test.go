package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
	"github.com/poiesic/stash/storage/badger"
)

func newPipelineFixture(t *testing.T, opts ...Option) (*Pipeline, *badger.Repositories) {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	pipeline, err := NewPipeline(repos.Items, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)
	return pipeline, repos
}

func TestIntakeRegistersAllItems(t *testing.T) {
	pipeline, repos := newPipelineFixture(t, WithBatchSize(10), WithPoolSize(3))
	ctx := context.Background()

	items := make([]*core.InventoryItem, 95)
	for i := range items {
		items[i] = &core.InventoryItem{
			Title: fmt.Sprintf("item %03d", i),
			Type:  core.CollectionTypeBooks,
		}
	}

	require.NoError(t, pipeline.Intake(ctx, items))

	stored, err := repos.Items.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 95)
}

func TestIntakeRejectsInvalidUpFront(t *testing.T) {
	pipeline, repos := newPipelineFixture(t)
	ctx := context.Background()

	items := []*core.InventoryItem{
		{Title: "fine", Type: core.CollectionTypeBooks},
		{Title: "", Type: core.CollectionTypeBooks},
	}

	err := pipeline.Intake(ctx, items)
	assert.ErrorIs(t, err, core.ErrEmptyTitle)

	stored, err := repos.Items.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored, "rejected intake must write nothing")
}

func TestIntakeReportsBatchFailures(t *testing.T) {
	pipeline, repos := newPipelineFixture(t, WithBatchSize(1))
	ctx := context.Background()

	// Valid shape but dangling location: fails at write time, per batch.
	items := []*core.InventoryItem{
		{Title: "a", Type: core.CollectionTypeBooks},
		{Title: "b", Type: core.CollectionTypeBooks, LocationId: 9999},
	}

	err := pipeline.Intake(ctx, items)
	assert.ErrorIs(t, err, storage.ErrUnknownLocation)

	stored, err := repos.Items.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIntakeAfterRelease(t *testing.T) {
	pipeline, _ := newPipelineFixture(t)
	pipeline.Release()

	err := pipeline.Intake(context.Background(), []*core.InventoryItem{{Title: "x", Type: core.CollectionTypeBooks}})
	assert.ErrorIs(t, err, ErrPipelineClosed)
}
