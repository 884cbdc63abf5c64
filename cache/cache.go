/*
Copyright 2024

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache serves the latest normalized stock list with a bounded
// staleness window, so consumers never hit the external feed on every
// request.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/sammedchougule/stocker-ingest/normalize"
)

// DefaultMaxAge is the staleness window used when none is configured.
const DefaultMaxAge = 300 * time.Second

// FetchFunc loads a fresh stock list from upstream.
type FetchFunc func(ctx context.Context) ([]normalize.Stock, error)

// Cache holds the last successful stock list and refreshes it at most once
// per staleness window. GetLatest never returns an error: on upstream
// failure it degrades to the prior list, or an empty one if there is none.
type Cache struct {
	fetch  FetchFunc
	maxAge time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	stocks    []normalize.Stock
	fetchedAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache around fetch. A maxAge of zero falls back to
// DefaultMaxAge.
func New(fetch FetchFunc, maxAge time.Duration, opts ...Option) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	c := &Cache{
		fetch:  fetch,
		maxAge: maxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAge reports the configured staleness window.
func (c *Cache) MaxAge() time.Duration {
	return c.maxAge
}

// GetLatest returns the cached list while it is fresh, otherwise refreshes
// once and returns the result. Concurrent callers during a refresh share
// the one in-flight fetch. An empty result means "currently unavailable",
// not an empty market.
func (c *Cache) GetLatest(ctx context.Context) []normalize.Stock {
	stocks, fetchedAt, ok := c.snapshot()
	if ok && c.now().Sub(fetchedAt) < c.maxAge {
		return stocks
	}

	// Stale or empty: refresh, deduplicated across concurrent callers.
	v, err, _ := c.group.Do("stocks", func() (any, error) {
		// A caller that queued behind the refresh sees the fresh slot here
		// and skips the upstream call.
		if s, at, ok := c.snapshot(); ok && c.now().Sub(at) < c.maxAge {
			return s, nil
		}
		fresh, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(fresh)
		return fresh, nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache refresh failed, serving stale data")
		if ok {
			return stocks
		}
		return []normalize.Stock{}
	}
	return v.([]normalize.Stock)
}

func (c *Cache) snapshot() ([]normalize.Stock, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stocks, c.fetchedAt, c.stocks != nil
}

func (c *Cache) store(stocks []normalize.Stock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stocks = stocks
	c.fetchedAt = c.now()
}
