/**
 * Copyright 2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Package runner executes the scenarios in parallel workers
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/scenario"
)

const releaseTimeout = 2 * time.Minute

// Suite runs the scenarios with a pool of workers pulling the attempts from one FIFO. A failed
// attempt with attempts remaining goes back to the tail, so the retry could be picked up by any
// worker while the binding stays with the scenario context id.
type Suite struct {
	Executor *scenario.Executor
	Workers  int
}

type item struct {
	state *scenario.State
	index int
}

// Run executes all the scenarios and returns the outcomes in the input order. On context cancel
// the workers stop dequeuing, the sessions are released and the not started ones are skipped.
func (s *Suite) Run(ctx context.Context, scenarios []*scenario.Scenario) []report.Outcome {
	logger := log.WithFunc("runner", "Run")

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(scenarios) {
		workers = len(scenarios)
	}

	q := queue.New()
	for i, sc := range scenarios {
		q.Add(&item{state: s.Executor.Start(sc, ""), index: i})
	}

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	pending := len(scenarios)
	outcomes := make([]report.Outcome, len(scenarios))

	// Wake the idle workers on abort
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer stop()

	logger.Info("Suite started", "scenarios", len(scenarios), "workers", workers)
	started := time.Now()

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wlog := log.WithFunc("runner", "worker").With("worker", w)
			for {
				mu.Lock()
				for q.Length() == 0 && pending > 0 && ctx.Err() == nil {
					cond.Wait()
				}
				if pending == 0 || ctx.Err() != nil {
					mu.Unlock()
					return
				}
				it := q.Remove().(*item)
				mu.Unlock()

				done := s.Executor.Attempt(ctx, it.state)

				mu.Lock()
				if done {
					outcomes[it.index] = it.state.Outcome()
					pending--
				} else {
					wlog.Debug("Requeue", "scenario", it.state.Scenario.Name, "attempt", it.state.Attempt)
					q.Add(it)
				}
				cond.Broadcast()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("Suite aborted", "err", err, "unfinished", pending)
		for q.Length() > 0 {
			it := q.Remove().(*item)
			s.Executor.Abandon(ctx, it.state, err)
			outcomes[it.index] = it.state.Outcome()
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := s.Executor.Registry.ReleaseAll(rctx); rerr != nil {
			logger.Warn("Release on abort finished with errors", "err", rerr)
		}
	}

	passed, failed := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case report.Passed:
			passed++
		case report.Failed:
			failed++
		}
	}
	logger.Info("Suite finished", "passed", passed, "failed", failed,
		"skipped", len(outcomes)-passed-failed, "took", time.Since(started).Round(time.Millisecond))
	return outcomes
}
