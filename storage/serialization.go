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

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/stash/core"
)

// Hand-composed MUS serializers for the record types. Field order is
// part of the on-disk format and must not change.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(v), err
}

// MarshalLocation serializes a StorageLocation to bytes.
func MarshalLocation(location *core.StorageLocation) []byte {
	buf := make([]byte, locationMUS.size(location))
	locationMUS.marshal(location, buf)
	return buf
}

// UnmarshalLocation deserializes a StorageLocation from bytes.
func UnmarshalLocation(data []byte) (*core.StorageLocation, error) {
	location, _, err := locationMUS.unmarshal(data)
	if err != nil {
		return nil, err
	}
	return location, nil
}

// MarshalItem serializes an InventoryItem to bytes.
func MarshalItem(item *core.InventoryItem) []byte {
	buf := make([]byte, itemMUS.size(item))
	itemMUS.marshal(item, buf)
	return buf
}

// UnmarshalItem deserializes an InventoryItem from bytes.
func UnmarshalItem(data []byte) (*core.InventoryItem, error) {
	item, _, err := itemMUS.unmarshal(data)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// MarshalCorrection serializes a CorrectionRecord to bytes.
func MarshalCorrection(correction *core.CorrectionRecord) []byte {
	buf := make([]byte, correctionMUS.size(correction))
	correctionMUS.marshal(correction, buf)
	return buf
}

// UnmarshalCorrection deserializes a CorrectionRecord from bytes.
func UnmarshalCorrection(data []byte) (*core.CorrectionRecord, error) {
	correction, _, err := correctionMUS.unmarshal(data)
	if err != nil {
		return nil, err
	}
	return correction, nil
}

var (
	locationMUS   = locationSer{}
	itemMUS       = itemSer{}
	correctionMUS = correctionSer{}
)

// Timestamps are stored as Unix microseconds; the zero time is stored
// as 0 so unset fields survive a round trip.

func marshalTime(t time.Time, bs []byte) int {
	var us int64
	if !t.IsZero() {
		us = t.UnixMicro()
	}
	return varint.Int64.Marshal(us, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var us int64
	if !t.IsZero() {
		us = t.UnixMicro()
	}
	return varint.Int64.Size(us)
}

type locationSer struct{}

func (locationSer) marshal(l *core.StorageLocation, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(l.Id), bs)
	n += ord.String.Marshal(l.Name, bs[n:])
	n += varint.Int.Marshal(int(l.Type), bs[n:])
	n += varint.Uint64.Marshal(uint64(l.ParentId), bs[n:])
	n += marshalTime(l.InsertedAt, bs[n:])
	n += marshalTime(l.UpdatedAt, bs[n:])
	return n
}

func (locationSer) unmarshal(bs []byte) (l *core.StorageLocation, n int, err error) {
	l = &core.StorageLocation{}
	var (
		n1 int
		id uint64
		t  int
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	l.Id = core.ID(id)
	l.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	t, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	l.Type = core.LocationType(t)
	id, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	l.ParentId = core.ID(id)
	l.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	l.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return l, n, nil
}

func (locationSer) size(l *core.StorageLocation) (size int) {
	size = varint.Uint64.Size(uint64(l.Id))
	size += ord.String.Size(l.Name)
	size += varint.Int.Size(int(l.Type))
	size += varint.Uint64.Size(uint64(l.ParentId))
	size += sizeTime(l.InsertedAt)
	size += sizeTime(l.UpdatedAt)
	return size
}

type itemSer struct{}

func (itemSer) marshal(i *core.InventoryItem, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(i.Id), bs)
	n += ord.String.Marshal(i.Title, bs[n:])
	n += varint.Int.Marshal(int(i.Type), bs[n:])
	n += varint.Uint64.Marshal(uint64(i.LocationId), bs[n:])
	n += ord.String.Marshal(i.Series, bs[n:])
	n += varint.Int.Marshal(i.Volume, bs[n:])
	n += ord.String.Marshal(i.Author, bs[n:])
	n += varint.Int64.Marshal(i.PriceCents, bs[n:])
	n += varint.Int.Marshal(int(i.Condition), bs[n:])
	n += ord.String.Marshal(i.Notes, bs[n:])
	n += marshalTime(i.PurchasedAt, bs[n:])
	n += marshalTime(i.InsertedAt, bs[n:])
	n += marshalTime(i.UpdatedAt, bs[n:])
	return n
}

func (itemSer) unmarshal(bs []byte) (i *core.InventoryItem, n int, err error) {
	i = &core.InventoryItem{}
	var (
		n1 int
		id uint64
		v  int
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	i.Id = core.ID(id)
	i.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.Type = core.CollectionType(v)
	id, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.LocationId = core.ID(id)
	i.Series, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.Volume, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.Author, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.PriceCents, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	v, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.Condition = core.Condition(v)
	i.Notes, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.PurchasedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	i.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return i, n, nil
}

func (itemSer) size(i *core.InventoryItem) (size int) {
	size = varint.Uint64.Size(uint64(i.Id))
	size += ord.String.Size(i.Title)
	size += varint.Int.Size(int(i.Type))
	size += varint.Uint64.Size(uint64(i.LocationId))
	size += ord.String.Size(i.Series)
	size += varint.Int.Size(i.Volume)
	size += ord.String.Size(i.Author)
	size += varint.Int64.Size(i.PriceCents)
	size += varint.Int.Size(int(i.Condition))
	size += ord.String.Size(i.Notes)
	size += sizeTime(i.PurchasedAt)
	size += sizeTime(i.InsertedAt)
	size += sizeTime(i.UpdatedAt)
	return size
}

type correctionSer struct{}

func (correctionSer) marshal(c *core.CorrectionRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += ord.String.Marshal(c.Isbn, bs[n:])
	n += ord.String.Marshal(c.Title, bs[n:])
	n += ord.String.Marshal(c.Author, bs[n:])
	n += marshalTime(c.InsertedAt, bs[n:])
	n += marshalTime(c.UpdatedAt, bs[n:])
	return n
}

func (correctionSer) unmarshal(bs []byte) (c *core.CorrectionRecord, n int, err error) {
	c = &core.CorrectionRecord{}
	var (
		n1 int
		id uint64
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	c.Id = core.ID(id)
	c.Isbn, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	c.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	c.Author, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	c.InsertedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	c.UpdatedAt, n1, err = unmarshalTime(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return c, n, nil
}

func (correctionSer) size(c *core.CorrectionRecord) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += ord.String.Size(c.Isbn)
	size += ord.String.Size(c.Title)
	size += ord.String.Size(c.Author)
	size += sizeTime(c.InsertedAt)
	size += sizeTime(c.UpdatedAt)
	return size
}
