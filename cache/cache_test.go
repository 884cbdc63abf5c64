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
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sammedchougule/stocker-ingest/normalize"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func stockList(symbols ...string) []normalize.Stock {
	out := make([]normalize.Stock, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, normalize.Stock{Symbol: s})
	}
	return out
}

func TestGetLatest_ServesCachedWithinWindow(t *testing.T) {
	clock := newTestClock()
	var fetches atomic.Int32
	c := New(func(ctx context.Context) ([]normalize.Stock, error) {
		fetches.Add(1)
		return stockList("TCS", "INFY"), nil
	}, 300*time.Second, WithClock(clock.Now))

	ctx := context.Background()
	first := c.GetLatest(ctx)
	clock.Advance(10 * time.Second)
	second := c.GetLatest(ctx)

	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1 (second call must hit the cache)", fetches.Load())
	}
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("lens = %d, %d, want 2, 2", len(first), len(second))
	}
}

func TestGetLatest_RefreshesAfterWindow(t *testing.T) {
	clock := newTestClock()
	var fetches atomic.Int32
	c := New(func(ctx context.Context) ([]normalize.Stock, error) {
		fetches.Add(1)
		return stockList("TCS"), nil
	}, 300*time.Second, WithClock(clock.Now))

	ctx := context.Background()
	c.GetLatest(ctx)
	clock.Advance(301 * time.Second)
	c.GetLatest(ctx)

	if fetches.Load() != 2 {
		t.Errorf("fetches = %d, want 2 (window elapsed)", fetches.Load())
	}
}

func TestGetLatest_DegradesToStaleOnFailure(t *testing.T) {
	clock := newTestClock()
	var fail atomic.Bool
	c := New(func(ctx context.Context) ([]normalize.Stock, error) {
		if fail.Load() {
			return nil, errors.New("feed unreachable")
		}
		return stockList("TCS", "INFY", "WIPRO"), nil
	}, 300*time.Second, WithClock(clock.Now))

	ctx := context.Background()
	c.GetLatest(ctx)

	fail.Store(true)
	clock.Advance(400 * time.Second)
	got := c.GetLatest(ctx)

	if len(got) != 3 {
		t.Errorf("len = %d, want the 3 stale entries", len(got))
	}
	if got[0].Symbol != "TCS" {
		t.Errorf("got[0] = %q, want the prior cached data unchanged", got[0].Symbol)
	}
}

func TestGetLatest_EmptyWhenNoPriorCache(t *testing.T) {
	c := New(func(ctx context.Context) ([]normalize.Stock, error) {
		return nil, errors.New("feed unreachable")
	}, 300*time.Second)

	got := c.GetLatest(context.Background())
	if got == nil {
		t.Fatal("GetLatest returned nil, want an empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestGetLatest_SingleFlight(t *testing.T) {
	var fetches atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	c := New(func(ctx context.Context) ([]normalize.Stock, error) {
		if fetches.Add(1) == 1 {
			close(started)
		}
		<-release
		return stockList("TCS"), nil
	}, 300*time.Second)

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]normalize.Stock, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetLatest(context.Background())
		}(i)
	}

	// Let all callers pile up behind the one in-flight fetch.
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1 (single-flight)", fetches.Load())
	}
	for i, r := range results {
		if len(r) != 1 || r[0].Symbol != "TCS" {
			t.Errorf("caller %d got %v, want the shared refresh result", i, r)
		}
	}
}

func TestNew_DefaultMaxAge(t *testing.T) {
	c := New(nil, 0)
	if c.MaxAge() != DefaultMaxAge {
		t.Errorf("MaxAge = %v, want %v", c.MaxAge(), DefaultMaxAge)
	}
}
