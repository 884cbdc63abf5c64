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

// Package ingest coordinates one fetch-normalize-write pass over the feed.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sammedchougule/stocker-ingest/feed"
	"github.com/sammedchougule/stocker-ingest/normalize"
	"github.com/sammedchougule/stocker-ingest/store"
)

// Fetcher fetches raw feed rows.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.RawRow, error)
}

// Gateway writes normalized batches into the three quote tables.
type Gateway interface {
	UpsertReference(ctx context.Context, records []store.ReferenceRecord) (store.UpsertResult, error)
	UpsertSnapshots(ctx context.Context, records []store.SnapshotRecord) (store.UpsertResult, error)
	UpsertHistory(ctx context.Context, records []store.HistoricalPoint) (store.UpsertResult, error)
}

// Outcome is the terminal state of a cycle.
type Outcome string

const (
	// OutcomeDone means the fetch and all three table writes succeeded.
	OutcomeDone Outcome = "done"
	// OutcomePartiallyFailed means one or two table writes failed.
	OutcomePartiallyFailed Outcome = "partially_failed"
	// OutcomeFailed means the fetch failed or all three writes failed.
	OutcomeFailed Outcome = "failed"
)

// Table names used as CycleReport keys.
const (
	TableReference  = "reference"
	TableSnapshot   = "snapshot"
	TableHistorical = "historical"
)

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	Started    time.Time                     `json:"started"`
	Finished   time.Time                     `json:"finished"`
	Fetched    int                           `json:"fetched"`
	Normalized int                           `json:"normalized"`
	Skipped    int                           `json:"skipped"`
	Tables     map[string]store.UpsertResult `json:"perTable"`
	Errors     []string                      `json:"errors,omitempty"`
	Outcome    Outcome                       `json:"outcome"`
}

// Orchestrator runs ingestion cycles. It does not retry; cadence belongs to
// the Runner or an external scheduler.
type Orchestrator struct {
	fetcher Fetcher
	gateway Gateway
	sink    func([]store.SnapshotRecord) error
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSnapshotSink registers a callback that receives each cycle's snapshot
// batch before the table writes, e.g. for a parquet export. Sink failures
// are logged but do not affect the cycle outcome.
func WithSnapshotSink(sink func([]store.SnapshotRecord) error) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator. A nil gateway turns cycles into dry runs:
// fetch and normalize happen, the write phase is skipped.
func New(fetcher Fetcher, gateway Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher: fetcher,
		gateway: gateway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle executes one fetch-normalize-write pass and always returns a
// report. A fetch failure aborts the cycle before any write; a single
// table's write failure never blocks the other two.
func (o *Orchestrator) RunCycle(ctx context.Context) *CycleReport {
	report := &CycleReport{
		Started: o.now(),
		Tables:  make(map[string]store.UpsertResult, 3),
	}

	rows, err := o.fetcher.Fetch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("feed fetch failed, aborting cycle")
		report.Errors = append(report.Errors, err.Error())
		report.Outcome = OutcomeFailed
		report.Finished = o.now()
		return report
	}
	report.Fetched = len(rows)

	res := normalize.Normalize(rows, o.now())
	report.Normalized = len(res.Reference)
	report.Skipped = res.Skipped

	if o.sink != nil {
		if err := o.sink(res.Snapshots); err != nil {
			log.Error().Err(err).Msg("snapshot sink failed")
		}
	}

	if o.gateway == nil {
		report.Outcome = OutcomeDone
		report.Finished = o.now()
		log.Info().Int("Fetched", report.Fetched).Int("Normalized", report.Normalized).
			Int("Skipped", report.Skipped).Msg("dry-run cycle complete")
		return report
	}

	// The three tables are independent; write them concurrently and collect
	// each result on its own.
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures int
	)
	write := func(table string, fn func() (store.UpsertResult, error)) {
		defer wg.Done()
		result, err := fn()
		mu.Lock()
		defer mu.Unlock()
		report.Tables[table] = result
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			failures++
		}
	}

	wg.Add(3)
	go write(TableReference, func() (store.UpsertResult, error) {
		return o.gateway.UpsertReference(ctx, res.Reference)
	})
	go write(TableSnapshot, func() (store.UpsertResult, error) {
		return o.gateway.UpsertSnapshots(ctx, res.Snapshots)
	})
	go write(TableHistorical, func() (store.UpsertResult, error) {
		return o.gateway.UpsertHistory(ctx, res.Historical)
	})
	wg.Wait()

	switch failures {
	case 0:
		report.Outcome = OutcomeDone
	case 3:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomePartiallyFailed
	}
	report.Finished = o.now()

	log.Info().
		Int("Fetched", report.Fetched).
		Int("Normalized", report.Normalized).
		Int("Skipped", report.Skipped).
		Int("FailedTables", failures).
		Str("Outcome", string(report.Outcome)).
		Dur("Duration", report.Finished.Sub(report.Started)).
		Msg("ingestion cycle complete")
	return report
}
