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


// Package ingest batches bulk item registration through a worker
// pool, for imports too large to push through AddItems in one call.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/stash/core"
	"github.com/poiesic/stash/storage"
)

const (
	defaultPoolSize  = 4
	defaultBatchSize = 64
)

// Pipeline registers items in parallel batches.
type Pipeline struct {
	items     storage.ItemRepository
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
	closed    atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent batch writers.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool.Release()
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many items each pool task registers.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets the logger for batch progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a Pipeline over the item repository.
func NewPipeline(items storage.ItemRepository, opts ...Option) (*Pipeline, error) {
	if items == nil {
		return nil, ErrNoItemRepository
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		items:     items,
		pool:      pool,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.pool.Release()
			return nil, err
		}
	}
	return p, nil
}

// Intake validates every item up front, then registers them in
// batches across the pool. Validation failures reject the whole
// call before anything is written; batch write failures are joined
// and returned after all batches finish, so a partial intake reports
// every failed batch rather than the first.
func (p *Pipeline) Intake(ctx context.Context, items []*core.InventoryItem) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}

	for _, item := range items {
		if err := core.ValidateItem(item); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var batchErrs []error

	for start := 0; start < len(items); start += p.batchSize {
		end := start + p.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if _, err := p.items.AddItems(ctx, batch...); err != nil {
				p.logger.Warn("intake batch failed", "size", len(batch), "err", err)
				mu.Lock()
				batchErrs = append(batchErrs, err)
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			batchErrs = append(batchErrs, err)
			mu.Unlock()
		}
	}

	wg.Wait()
	return errors.Join(batchErrs...)
}

// Release shuts the pool down. Intake calls after Release fail with
// ErrPipelineClosed.
func (p *Pipeline) Release() {
	if p.closed.CompareAndSwap(false, true) {
		p.pool.Release()
	}
}
