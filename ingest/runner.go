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
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner triggers ingestion cycles on a fixed interval. It runs one cycle
// immediately on start, then one per tick. Cycles are not retried; a failed
// cycle waits for the next tick.
type Runner struct {
	interval time.Duration
	orch     *Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a Runner for the given orchestrator.
func NewRunner(orch *Orchestrator, interval time.Duration) *Runner {
	return &Runner{
		interval: interval,
		orch:     orch,
	}
}

// Start begins the cycle loop.
func (r *Runner) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	log.Info().Dur("Interval", r.interval).Msg("ingestion runner started")
}

// Stop cancels the loop and waits for an in-flight cycle, giving up when
// ctx expires.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("ingestion runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.orch.RunCycle(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.orch.RunCycle(r.ctx)
		}
	}
}
