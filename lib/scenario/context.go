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

package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/adobe/pos-autotest/lib/assert"
	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/session"
)

// Context is the state of one scenario attempt. It implements testify assert/require TestingT
// and apitest TestingT: Errorf is a soft failure, FailNow and Fatal abort the attempt.
type Context struct {
	ID      session.ContextID
	Key     string
	Name    string
	Tags    []string
	Mode    platform.Mode
	Attempt int

	ctx     context.Context
	session *session.Session
	props   *config.Props
	sink    report.Sink
	logger  *slog.Logger

	soft assert.Soft

	mu       sync.Mutex
	counters map[string]int
	values   map[string]any
	abort    error

	// Set by the executor for the attempt lifecycle
	state  *State
	base   context.Context
	cancel context.CancelFunc
	span   trace.Span
}

type ctxKey struct{}

// WithContext stores the scenario context in the context, the step definitions find it there
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the scenario context stored by WithContext
func FromContext(ctx context.Context) (*Context, error) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || c == nil {
		return nil, fmt.Errorf("scenario: %w: no scenario context", session.ErrNotInitialized)
	}
	return c, nil
}

// Context returns the context of the attempt, it's canceled on suite abort or attempt timeout
func (c *Context) Context() context.Context {
	return c.ctx
}

// Session returns the bound automation handles
func (c *Context) Session() *session.Session {
	return c.session
}

// Props returns configuration with the platform overlay of the scenario mode
func (c *Context) Props() *config.Props {
	return c.props
}

// Logger returns the logger bound to the scenario execution context
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Soft gives direct access to the soft assertions
func (c *Context) Soft() *assert.Soft {
	return &c.soft
}

// Helper is required by the TestingT interfaces
func (*Context) Helper() {}

// Errorf records the soft failure
func (c *Context) Errorf(format string, args ...any) {
	c.soft.Errorf(format, args...)
}

// Error records the soft failure
func (c *Context) Error(args ...any) {
	c.soft.Error(args...)
}

// Log writes into the scenario log
func (c *Context) Log(args ...any) {
	c.logger.Info(fmt.Sprint(args...))
}

// Logf writes into the scenario log
func (c *Context) Logf(format string, args ...any) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

// FailNow aborts the attempt
func (*Context) FailNow() {
	panic(failNow{})
}

// Fatal records the failure and aborts the attempt
func (c *Context) Fatal(args ...any) {
	c.soft.Error(args...)
	c.FailNow()
}

// Fatalf records the failure and aborts the attempt
func (c *Context) Fatalf(format string, args ...any) {
	c.soft.Errorf(format, args...)
	c.FailNow()
}

// Failed reports whether there are unverified soft failures
func (c *Context) Failed() bool {
	return c.soft.Failed()
}

// Checkpoint verifies the soft assertions collected so far and aborts the attempt if any failed
func (c *Context) Checkpoint() {
	if err := c.soft.Checkpoint(); err != nil {
		c.mu.Lock()
		c.abort = err
		c.mu.Unlock()
		c.FailNow()
	}
}

// abortError is the reason of the hard failure, it's consumed by the call
func (c *Context) abortError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.abort
	c.abort = nil
	if err == nil {
		if err = c.soft.Checkpoint(); err == nil {
			err = ErrAborted
		}
	}
	return err
}

// Inc increments the named counter and returns the new value
func (c *Context) Inc(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
	return c.counters[name]
}

// Counter returns the named counter value
func (c *Context) Counter(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Set remembers the value for the later steps of the attempt
func (c *Context) Set(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = v
}

// Get returns the remembered value
func (c *Context) Get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[name]
	return v, ok
}

// Attach sends the evidence to the report, errors are only logged
func (c *Context) Attach(label, mime string, data []byte) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Attach(c.ctx, report.Attachment{Scenario: c.Key, Label: label, MIME: mime, Data: data}); err != nil {
		c.logger.Warn("Unable to attach", "label", label, "err", err)
	}
}

func newContext(ctx context.Context, st *State, sess *session.Session, props *config.Props, sink report.Sink) *Context {
	return &Context{
		ID:       st.ID,
		Key:      st.Scenario.Key,
		Name:     st.Scenario.Name,
		Tags:     st.Scenario.Tags,
		Mode:     st.Mode,
		Attempt:  st.Attempt,
		ctx:      ctx,
		session:  sess,
		props:    props,
		sink:     sink,
		logger:   log.WithContext("scenario", "step", string(st.ID)),
		counters: make(map[string]int),
		values:   make(map[string]any),
	}
}
