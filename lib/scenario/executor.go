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

// Package scenario runs the scenario attempts: binds the session, runs the body, captures the
// failure evidence and decides about the retry
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/monitoring"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/session"
	"github.com/adobe/pos-autotest/lib/xray"
)

const (
	teardownTimeout   = 60 * time.Second
	screenshotTimeout = 10 * time.Second
)

// Scenario is a unit of work with the identity and policy it runs under
type Scenario struct {
	Key  string // Stable identity, feature uri + name when empty
	Name string
	URI  string
	Line int
	Tags []string

	Mode  platform.Mode // Explicit override, otherwise tags, configuration and the default
	Retry RetryConfig

	Body func(c *Context) error
}

// State is the retry state of the scenario, it travels between the workers with the context id
type State struct {
	Scenario *Scenario
	ID       session.ContextID
	Mode     platform.Mode
	Attempt  int
	Started  time.Time
	Err      error // Error of the last attempt

	done    bool
	outcome report.Outcome
}

// Done reports whether the final outcome is recorded
func (st *State) Done() bool {
	return st.done
}

// Outcome returns the final outcome, valid when Done
func (st *State) Outcome() report.Outcome {
	return st.outcome
}

// Executor runs the attempts against the registry
type Executor struct {
	Registry       *session.Registry
	Props          *config.Props
	ConfigDir      string // Platform overlays are read from here when set
	Sink           report.Sink
	Metrics        *monitoring.Metrics
	Tracer         trace.Tracer
	AttemptTimeout time.Duration

	overlays sync.Map // platform.Mode -> *config.Props
}

// Start resolves the mode and prepares the retry state, empty id means a new context
func (e *Executor) Start(sc *Scenario, id session.ContextID) *State {
	if sc.Key == "" {
		sc.Key = sc.URI + ":" + sc.Name
	}
	if id == "" {
		id = session.NewContextID()
	}

	override := string(sc.Mode)
	if override == "" {
		override = platform.FromTags(sc.Tags)
	}
	var getter platform.Getter
	if e.Props != nil {
		getter = e.Props
	}

	return &State{
		Scenario: sc,
		ID:       id,
		Mode:     platform.Resolve(override, getter),
		Started:  time.Now(),
	}
}

// Run executes the scenario with retries and returns the final outcome
func (e *Executor) Run(ctx context.Context, sc *Scenario) report.Outcome {
	st := e.Start(sc, "")
	for !e.Attempt(ctx, st) {
	}
	return st.Outcome()
}

// Attempt runs one attempt and returns true when the scenario is finished
func (e *Executor) Attempt(ctx context.Context, st *State) bool {
	c, err := e.Begin(ctx, st)
	if err == nil {
		err = e.runBody(c)
	}
	return e.Finish(c, err)
}

func (e *Executor) runBody(c *Context) (err error) {
	body := c.state.Scenario.Body
	if body == nil {
		return fmt.Errorf("scenario %q has no body", c.Name)
	}
	return Guard(c, func() error { return body(c) })
}

// Begin starts the next attempt and binds the session. The returned context is never nil, the
// error should be passed to Finish as is.
func (e *Executor) Begin(ctx context.Context, st *State) (*Context, error) {
	if st.Attempt > 0 && st.Scenario.Retry.Delay > 0 {
		t := time.NewTimer(st.Scenario.Retry.Delay)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
	st.Attempt++

	tracer := e.Tracer
	if tracer == nil {
		tracer = otel.Tracer("pos-autotest")
	}
	actx, span := tracer.Start(ctx, "scenario.attempt", trace.WithAttributes(
		attribute.String("scenario.key", st.Scenario.Key),
		attribute.String("scenario.mode", string(st.Mode)),
		attribute.Int("scenario.attempt", st.Attempt),
		attribute.String("session.context", string(st.ID)),
	))
	cancel := context.CancelFunc(func() {})
	if e.AttemptTimeout > 0 {
		actx, cancel = context.WithTimeout(actx, e.AttemptTimeout)
	}

	c := newContext(actx, st, nil, e.props(st.Mode), e.Sink)
	c.base, c.cancel, c.span, c.state = ctx, cancel, span, st
	c.logger.Info("Attempt started", "scenario", st.Scenario.Name, "mode", st.Mode,
		"attempt", st.Attempt, "of", st.Scenario.Retry.Attempts())

	if err := ctx.Err(); err != nil {
		return c, fmt.Errorf("scenario not started: %w", err)
	}

	started := time.Now()
	sess, err := e.Registry.Acquire(actx, st.ID, st.Mode)
	e.Metrics.RecordAcquire(actx, string(st.Mode), time.Since(started), err)
	if err != nil {
		return c, err
	}
	c.session = sess
	return c, nil
}

// Finish verifies the soft assertions, captures the evidence on failure and either prepares the
// retry (returns false) or releases the session and records the final outcome (returns true)
func (e *Executor) Finish(c *Context, err error) bool {
	st := c.state
	defer c.cancel()

	if cerr := c.soft.Checkpoint(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	passed := err == nil
	e.Metrics.RecordAttempt(c.ctx, string(st.Mode), passed)

	if !passed {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, ErrorKind(err))
		e.captureScreenshots(c)
	}

	remaining := st.Attempt < st.Scenario.Retry.Attempts() && c.base.Err() == nil
	if !passed && remaining {
		keep := !st.Mode.FreshState() && !errors.Is(err, session.ErrAcquire)
		c.logger.Warn("Attempt failed, retrying", "attempt", st.Attempt, "keep_binding", keep,
			"kind", ErrorKind(err), "err", err)
		e.Metrics.RecordRetry(c.ctx, string(st.Mode), keep)
		if !keep {
			e.release(c, true)
		}
		st.Err = err
		c.span.End()
		return false
	}

	e.release(c, !passed)
	st.Err = err
	st.done = true
	st.outcome = e.outcome(st, err)
	c.span.SetAttributes(attribute.String("scenario.status", string(st.outcome.Status)))
	c.span.End()

	if passed {
		c.logger.Info("Scenario passed", "scenario", st.Scenario.Name, "attempts", st.Attempt)
	} else {
		c.logger.Error("Scenario failed", "scenario", st.Scenario.Name, "attempts", st.Attempt,
			"kind", st.outcome.ErrorKind, "err", err)
	}
	e.Metrics.RecordOutcome(c.base, string(st.Mode), string(st.outcome.Status), st.Attempt, time.Since(st.Started))

	if e.Sink != nil {
		if serr := e.Sink.Record(context.WithoutCancel(c.base), st.outcome); serr != nil {
			c.logger.Warn("Unable to record outcome", "err", serr)
			e.Metrics.RecordSinkError(c.base, "report")
		}
	}
	return true
}

func (e *Executor) outcome(st *State, err error) report.Outcome {
	o := report.Outcome{
		Key:       st.Scenario.Key,
		Name:      st.Scenario.Name,
		URI:       st.Scenario.URI,
		Line:      st.Scenario.Line,
		TestKey:   xray.TestKey(st.Scenario.Tags),
		Tags:      st.Scenario.Tags,
		Mode:      string(st.Mode),
		ContextID: string(st.ID),
		Status:    report.Passed,
		Attempts:  st.Attempt,
		Started:   st.Started,
		Finished:  time.Now(),
	}
	if err != nil {
		o.Status = report.Failed
		o.Error = err.Error()
		o.ErrorKind = ErrorKind(err)
	}
	return o
}

// videoSource is implemented by the web handle recording the video
type videoSource interface {
	VideoPath() string
}

// release closes the session, videos are attached after close since only then they are complete
func (e *Executor) release(c *Context, failed bool) {
	st := c.state
	if e.Registry.State(st.ID) == session.Unbound {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.base), teardownTimeout)
	defer cancel()

	var videos []string
	if sess, err := e.Registry.Session(st.ID); err == nil {
		for _, h := range sess.Handles() {
			if v, ok := h.(videoSource); ok {
				if p := v.VideoPath(); p != "" {
					videos = append(videos, p)
				}
			}
		}
	}

	err := e.Registry.Release(ctx, st.ID)
	e.Metrics.RecordRelease(ctx, string(st.Mode), err)
	if err != nil {
		c.logger.Warn("Release finished with errors", "err", err)
	}

	for _, p := range videos {
		if !failed {
			os.Remove(p)
			continue
		}
		if e.Sink == nil {
			continue
		}
		aerr := e.Sink.Attach(ctx, report.Attachment{
			Scenario: st.Scenario.Key,
			Label:    fmt.Sprintf("video attempt %d", st.Attempt),
			MIME:     "video/webm",
			Path:     p,
		})
		e.Metrics.RecordEvidence(ctx, "video", aerr)
	}
}

// captureScreenshots takes a screenshot from every bound handle able to do it, the failure to
// capture never changes the scenario result
func (e *Executor) captureScreenshots(c *Context) {
	st := c.state
	sess, err := e.Registry.Session(st.ID)
	if err != nil || e.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.base), screenshotTimeout)
	defer cancel()

	for _, h := range sess.Handles() {
		s, ok := h.(session.Screenshotter)
		if !ok {
			continue
		}
		data, err := screenshot(ctx, s)
		if err == nil {
			err = e.Sink.Attach(ctx, report.Attachment{
				Scenario: st.Scenario.Key,
				Label:    fmt.Sprintf("screenshot %s attempt %d", h.Kind(), st.Attempt),
				MIME:     "image/png",
				Data:     data,
			})
		}
		e.Metrics.RecordEvidence(ctx, string(h.Kind()), err)
		if err != nil {
			c.logger.Warn("Unable to capture screenshot", "kind", h.Kind(), "err", err)
		}
	}
}

func screenshot(ctx context.Context, s session.Screenshotter) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("screenshot panic: %v", p)
		}
	}()
	return s.Screenshot(ctx)
}

// props returns the configuration with the platform overlay of the mode
func (e *Executor) props(mode platform.Mode) *config.Props {
	if e.Props == nil || e.ConfigDir == "" {
		return e.Props
	}
	if p, ok := e.overlays.Load(mode); ok {
		return p.(*config.Props)
	}
	p, err := e.Props.WithPlatform(e.ConfigDir, string(mode))
	if err != nil {
		log.WithFunc("scenario", "props").Warn("Using configuration without platform overlay", "mode", mode, "err", err)
		p = e.Props
	}
	actual, _ := e.overlays.LoadOrStore(mode, p)
	return actual.(*config.Props)
}

// Abandon finalizes the scenario the suite was aborted for: skipped when it never ran, failed
// with the last attempt error otherwise
func (e *Executor) Abandon(ctx context.Context, st *State, reason error) {
	st.done = true
	if st.Attempt == 0 {
		st.Err = reason
		st.outcome = e.outcome(st, reason)
		st.outcome.Status = report.Skipped
	} else {
		st.Err = errors.Join(st.Err, reason)
		st.outcome = e.outcome(st, st.Err)
	}

	log.WithContext("scenario", "Abandon", string(st.ID)).Info("Scenario abandoned", "scenario", st.Scenario.Name,
		"status", st.outcome.Status, "reason", reason)
	if e.Sink != nil {
		if err := e.Sink.Record(context.WithoutCancel(ctx), st.outcome); err != nil {
			e.Metrics.RecordSinkError(ctx, "report")
		}
	}
}
