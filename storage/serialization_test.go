package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/stash/core"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("legacy key")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalLocation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name     string
		location *core.StorageLocation
	}{
		{
			name: "root room",
			location: &core.StorageLocation{
				Id:         core.ID(1),
				Name:       "Living Room",
				Type:       core.LocationTypeRoom,
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "nested box",
			location: &core.StorageLocation{
				Id:         core.ID(7),
				Name:       "Manga Box",
				Type:       core.LocationTypeBox,
				ParentId:   core.ID(3),
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "unsaved location without timestamps",
			location: &core.StorageLocation{
				Name: "Attic",
				Type: core.LocationTypeRoom,
			},
		},
		{
			name: "unicode name",
			location: &core.StorageLocation{
				Id:         core.ID(9),
				Name:       "本棚",
				Type:       core.LocationTypeShelf,
				ParentId:   core.ID(1),
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalLocation(tt.location)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalLocation(data)
			require.NoError(t, err)
			assert.Equal(t, tt.location, decoded)
		})
	}
}

func TestMarshalUnmarshalItem(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	item := &core.InventoryItem{
		Id:          core.ID(12),
		Title:       "Vagabond Vol. 3",
		Type:        core.CollectionTypeManga,
		LocationId:  core.ID(7),
		Series:      "Vagabond",
		Volume:      3,
		Author:      "Takehiko Inoue",
		PriceCents:  1499,
		Condition:   core.ConditionGood,
		Notes:       "slightly worn spine",
		PurchasedAt: now.Add(-24 * time.Hour),
		InsertedAt:  now,
		UpdatedAt:   now,
	}

	data := MarshalItem(item)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalItem(data)
	require.NoError(t, err)
	assert.Equal(t, item, decoded)
}

func TestMarshalUnmarshalItem_MinimalFields(t *testing.T) {
	item := &core.InventoryItem{
		Title: "Socket Wrench Set",
		Type:  core.CollectionTypeTools,
	}

	decoded, err := UnmarshalItem(MarshalItem(item))
	require.NoError(t, err)
	assert.Equal(t, item, decoded)
	assert.True(t, decoded.PurchasedAt.IsZero())
}

func TestMarshalUnmarshalCorrection(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	correction := &core.CorrectionRecord{
		Id:         core.CorrectionIDFromISBN("9781591169161"),
		Isbn:       "9781591169161",
		Title:      "Vagabond, Vol. 1",
		Author:     "Takehiko Inoue",
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalCorrection(MarshalCorrection(correction))
	require.NoError(t, err)
	assert.Equal(t, correction, decoded)
}

func TestUnmarshalLocation_Truncated(t *testing.T) {
	location := &core.StorageLocation{
		Id:   core.ID(5),
		Name: "Bookcase",
		Type: core.LocationTypeShelf,
	}
	data := MarshalLocation(location)

	_, err := UnmarshalLocation(data[:len(data)/2])
	assert.Error(t, err)
}
