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

// Package cucumber binds the scenario lifecycle to the godog feature runner
package cucumber

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/scenario"
)

const (
	exitOptionError = 2 // godog exit status of the invalid options
	releaseTimeout  = 2 * time.Minute
)

// ErrIncomplete is the failure of the scenario the engine never finished
var ErrIncomplete = errors.New("scenario did not complete")

// Suite runs the features in passes: the first pass runs everything, the next ones run only
// the failed scenarios with attempts remaining, located by feature:line. The scenario key
// (uri + name) keeps the execution context between the passes.
type Suite struct {
	Name     string
	Executor *scenario.Executor
	Steps    func(sc *godog.ScenarioContext)
	Retry    scenario.RetryConfig
	Mode     platform.Mode // Override for every scenario, empty means tags and configuration
	Options  godog.Options // Paths, tags, format and output of the engine

	mu      sync.Mutex
	states  map[string]*scenario.State
	active  map[string]*attempt // by pickle id, one pass only
	replays map[string]bool     // finished scenarios the pass runs again along with the failed ones
	where   locations
}

type attempt struct {
	state *scenario.State
	ctx   *scenario.Context
}

// Run executes the passes and returns the final outcomes sorted by key
func (s *Suite) Run(ctx context.Context) ([]report.Outcome, error) {
	logger := log.WithFunc("cucumber", "Run")

	s.mu.Lock()
	s.states = make(map[string]*scenario.State)
	s.mu.Unlock()

	paths := s.Options.Paths
	if len(paths) == 0 {
		paths = []string{"features"}
	}

	for pass := 1; ; pass++ {
		s.mu.Lock()
		s.active = make(map[string]*attempt)
		s.replays = make(map[string]bool)
		s.mu.Unlock()

		opts := s.Options
		opts.Paths = paths
		opts.DefaultContext = ctx
		opts.StopOnFailure = false

		logger.Info("Feature pass started", "pass", pass, "paths", paths)
		status := godog.TestSuite{
			Name:                s.Name,
			ScenarioInitializer: s.initScenario,
			Options:             &opts,
		}.Run()
		if status == exitOptionError {
			return nil, fmt.Errorf("cucumber: invalid engine options for paths %v", paths)
		}
		s.sweep()

		if err := ctx.Err(); err != nil {
			s.abandon(ctx, err)
			break
		}
		if paths = s.rerunPaths(); len(paths) == 0 {
			break
		}
		logger.Info("Rerunning failed scenarios", "pass", pass+1, "locations", len(paths))
	}

	return s.Outcomes(), nil
}

// Outcomes returns the final outcomes recorded so far sorted by key
func (s *Suite) Outcomes() []report.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.Outcome, 0, len(s.states))
	for _, st := range s.states {
		if st.Done() {
			out = append(out, st.Outcome())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Suite) initScenario(sc *godog.ScenarioContext) {
	sc.Before(s.before)
	sc.After(s.after)
	if s.Steps != nil {
		s.Steps(sc)
	}
}

// before resolves the scenario state and binds the session for the attempt
func (s *Suite) before(ctx context.Context, p *godog.Scenario) (context.Context, error) {
	key := p.Uri + ":" + p.Name
	pos, err := s.where.find(p)
	if err != nil {
		log.WithFunc("cucumber", "before").Warn("Scenario location is unknown, no retry", "scenario", p.Name, "err", err)
	}
	if pos.row > 0 {
		key = fmt.Sprintf("%s [%d]", key, pos.row)
	}

	s.mu.Lock()
	st, ok := s.states[key]
	if ok && st.Done() {
		s.replays[p.Id] = true
		s.mu.Unlock()
		return ctx, godog.ErrSkip
	}
	if !ok {
		retry := s.Retry
		if pos.scenario == 0 {
			retry.Enabled = false
		}
		tags := make([]string, 0, len(p.Tags))
		for _, t := range p.Tags {
			tags = append(tags, t.Name)
		}
		st = s.Executor.Start(&scenario.Scenario{
			Key:   key,
			Name:  p.Name,
			URI:   p.Uri,
			Line:  pos.scenario,
			Tags:  tags,
			Mode:  s.Mode,
			Retry: retry,
		}, "")
		s.states[key] = st
	}
	s.mu.Unlock()

	c, err := s.Executor.Begin(ctx, st)

	s.mu.Lock()
	s.active[p.Id] = &attempt{state: st, ctx: c}
	s.mu.Unlock()
	return scenario.WithContext(ctx, c), err
}

// after finishes the attempt, the failures found only there (soft assertions) fail the pickle
func (s *Suite) after(ctx context.Context, p *godog.Scenario, err error) (context.Context, error) {
	s.mu.Lock()
	if s.replays[p.Id] {
		delete(s.replays, p.Id)
		s.mu.Unlock()
		return ctx, nil
	}
	a := s.active[p.Id]
	delete(s.active, p.Id)
	s.mu.Unlock()

	if a == nil {
		return ctx, nil
	}
	s.Executor.Finish(a.ctx, err)
	if err == nil && a.state.Err != nil {
		return ctx, a.state.Err
	}
	return ctx, nil
}

// sweep finishes the attempts the engine didn't call the after hook for
func (s *Suite) sweep() {
	s.mu.Lock()
	left := s.active
	s.active = make(map[string]*attempt)
	s.mu.Unlock()

	for _, a := range left {
		s.Executor.Finish(a.ctx, ErrIncomplete)
	}
}

// rerunPaths lists the feature:line locations of the scenarios waiting for the next attempt
func (s *Suite) rerunPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, st := range s.states {
		if st.Done() {
			continue
		}
		loc := fmt.Sprintf("%s:%d", st.Scenario.URI, st.Scenario.Line)
		if !slices.Contains(out, loc) {
			out = append(out, loc)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Suite) abandon(ctx context.Context, reason error) {
	s.mu.Lock()
	var left []*scenario.State
	for _, st := range s.states {
		if !st.Done() {
			left = append(left, st)
		}
	}
	s.mu.Unlock()

	for _, st := range left {
		s.Executor.Abandon(ctx, st, reason)
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.Executor.Registry.ReleaseAll(rctx); err != nil {
		log.WithFunc("cucumber", "abandon").Warn("Release on abort finished with errors", "err", err)
	}
}

// Failed reports whether any final outcome is a failure
func Failed(outcomes []report.Outcome) bool {
	return slices.ContainsFunc(outcomes, func(o report.Outcome) bool { return o.Status == report.Failed })
}
