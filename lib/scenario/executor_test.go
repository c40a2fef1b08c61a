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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/test"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/session"
)

// memSink keeps everything in memory
type memSink struct {
	mu          sync.Mutex
	attachments []report.Attachment
	outcomes    []report.Outcome
	failAttach  bool
}

func (s *memSink) Attach(_ context.Context, a report.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAttach {
		return errors.New("disk full")
	}
	s.attachments = append(s.attachments, a)
	return nil
}

func (s *memSink) Record(_ context.Context, o report.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

type fixture struct {
	web, mobile, api *test.Driver
	sink             *memSink
	exec             *Executor
}

func newFixture(mobileCfg test.Config) *fixture {
	f := &fixture{
		web:    test.New(platform.KindWeb, test.Config{}),
		mobile: test.New(platform.KindMobile, mobileCfg),
		api:    test.New(platform.KindAPI, test.Config{}),
		sink:   &memSink{},
	}
	f.exec = &Executor{
		Registry: session.NewRegistry(f.web, f.mobile, f.api),
		Props:    config.FromMap(map[string]string{}),
		Sink:     f.sink,
	}
	return f
}

func retries(n int) RetryConfig {
	return RetryConfig{Enabled: true, MaxAttempts: n}
}

func Test_always_failing_runs_exactly_max_attempts(t *testing.T) {
	f := newFixture(test.Config{})
	runs := 0
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "broken checkout",
		URI:   "features/checkout.feature",
		Retry: retries(3),
		Body: func(*Context) error {
			runs++
			return errors.New("total mismatch")
		},
	})

	assert.Equal(t, 3, runs)
	assert.Equal(t, report.Failed, o.Status)
	assert.Equal(t, 3, o.Attempts)
	assert.Equal(t, KindError, o.ErrorKind)
	assert.Contains(t, o.Error, "total mismatch")
	assert.Equal(t, "features/checkout.feature:broken checkout", o.Key)
	require.Len(t, f.sink.outcomes, 1, "only the final outcome is recorded")
	assert.Equal(t, 0, f.exec.Registry.Len(), "session is released at the end")
}

func Test_flaky_passes_after_k_attempts(t *testing.T) {
	f := newFixture(test.Config{})
	runs := 0
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "flaky login",
		Retry: retries(5),
		Body: func(*Context) error {
			runs++
			if runs < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	})

	assert.Equal(t, 3, runs)
	assert.Equal(t, report.Passed, o.Status)
	assert.Equal(t, 3, o.Attempts)
	assert.Empty(t, o.Error)
}

func Test_retry_disabled_runs_once(t *testing.T) {
	f := newFixture(test.Config{})
	runs := 0
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "single",
		Retry: RetryConfig{Enabled: false, MaxAttempts: 4},
		Body: func(*Context) error {
			runs++
			return errors.New("fail")
		},
	})
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, o.Attempts)
}

func Test_web_retry_keeps_binding(t *testing.T) {
	f := newFixture(test.Config{})
	var handles []session.Handle
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "web",
		Mode:  platform.Web,
		Retry: retries(2),
		Body: func(c *Context) error {
			h, err := c.Session().Handle(platform.KindWeb)
			require.NoError(t, err)
			handles = append(handles, h)
			if len(handles) == 1 {
				return errors.New("first fails")
			}
			return nil
		},
	})

	assert.Equal(t, report.Passed, o.Status)
	require.Len(t, handles, 2)
	assert.Same(t, handles[0], handles[1])
	assert.EqualValues(t, 1, f.web.Opened())
	assert.EqualValues(t, 1, f.web.Closed())
}

func Test_fresh_state_modes_rebind_on_retry(t *testing.T) {
	for _, mode := range []platform.Mode{platform.Mobile, platform.Hybrid} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(test.Config{})
			var ids []int64
			f.exec.Run(context.Background(), &Scenario{
				Name:  "device",
				Mode:  mode,
				Retry: retries(2),
				Body: func(c *Context) error {
					h, err := c.Session().Handle(platform.KindMobile)
					require.NoError(t, err)
					ids = append(ids, h.(*test.Handle).N())
					return errors.New("app crashed")
				},
			})

			assert.Equal(t, []int64{1, 2}, ids, "every attempt gets a new device handle")
			assert.EqualValues(t, 2, f.mobile.Closed())
			assert.Equal(t, 0, f.exec.Registry.Len())
		})
	}
}

func Test_acquire_failure_is_retried_and_classified(t *testing.T) {
	f := newFixture(test.Config{FailOpen: 255})
	runs := 0
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "no device",
		Mode:  platform.Mobile,
		Retry: retries(2),
		Body: func(*Context) error {
			runs++
			return nil
		},
	})

	assert.Equal(t, 0, runs, "body never runs without a session")
	assert.Equal(t, report.Failed, o.Status)
	assert.Equal(t, 2, o.Attempts)
	assert.Equal(t, KindAcquire, o.ErrorKind)
}

func Test_hybrid_partial_acquire_leaves_nothing(t *testing.T) {
	f := newFixture(test.Config{})
	f.exec.Registry = session.NewRegistry(f.mobile, f.api) // no web driver
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "hybrid",
		Mode:  platform.Hybrid,
		Retry: retries(1),
		Body:  func(*Context) error { return nil },
	})

	assert.Equal(t, KindAcquire, o.ErrorKind)
	assert.Equal(t, f.mobile.Opened(), f.mobile.Closed())
	assert.Equal(t, 0, f.exec.Registry.Len())
}

func Test_failure_captures_screenshot(t *testing.T) {
	f := newFixture(test.Config{})
	f.exec.Run(context.Background(), &Scenario{
		Name:  "evidence",
		Retry: retries(2),
		Body:  func(*Context) error { return errors.New("boom") },
	})

	require.Len(t, f.sink.attachments, 2, "one per failed attempt")
	assert.Equal(t, "image/png", f.sink.attachments[0].MIME)
	assert.Equal(t, test.FakePNG, f.sink.attachments[0].Data)
	assert.Equal(t, "screenshot web attempt 1", f.sink.attachments[0].Label)
	assert.Equal(t, "screenshot web attempt 2", f.sink.attachments[1].Label)
}

func Test_evidence_failure_keeps_result(t *testing.T) {
	f := newFixture(test.Config{FailScreenshot: 255})
	f.sink.failAttach = true
	runs := 0
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "flaky with broken evidence",
		Mode:  platform.Mobile,
		Retry: retries(2),
		Body: func(*Context) error {
			runs++
			if runs == 1 {
				return errors.New("first")
			}
			return nil
		},
	})
	assert.Equal(t, report.Passed, o.Status)
	assert.Empty(t, o.Error)
}

func Test_soft_failures_fail_at_the_end(t *testing.T) {
	f := newFixture(test.Config{})
	reached := false
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "soft",
		Retry: retries(1),
		Body: func(c *Context) error {
			assert.Equal(c, 10, 11, "subtotal")
			assert.True(c, false, "badge visible")
			reached = true
			return nil
		},
	})

	assert.True(t, reached, "soft failures don't stop the body")
	assert.Equal(t, report.Failed, o.Status)
	assert.Equal(t, KindAssertion, o.ErrorKind)
	assert.Contains(t, o.Error, "2 soft assertion(s) failed")
}

func Test_hard_failure_stops_the_body(t *testing.T) {
	f := newFixture(test.Config{})
	reached := false
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "hard",
		Retry: retries(1),
		Body: func(c *Context) error {
			require.Equal(c, "PAID", "OPEN", "order status")
			reached = true
			return nil
		},
	})

	assert.False(t, reached)
	assert.Equal(t, KindAssertion, o.ErrorKind)
	assert.Contains(t, o.Error, "order status")
}

func Test_panic_is_a_failure(t *testing.T) {
	f := newFixture(test.Config{})
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "panic",
		Retry: retries(1),
		Body:  func(*Context) error { panic("nil map") },
	})
	assert.Equal(t, KindPanic, o.ErrorKind)
	assert.Equal(t, 0, f.exec.Registry.Len())
}

func Test_canceled_suite_stops_retrying(t *testing.T) {
	f := newFixture(test.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	o := f.exec.Run(ctx, &Scenario{
		Name:  "abort",
		Retry: retries(5),
		Body: func(*Context) error {
			runs++
			cancel()
			return errors.New("interrupted")
		},
	})
	assert.Equal(t, 1, runs)
	assert.Equal(t, report.Failed, o.Status)
	assert.Equal(t, 0, f.exec.Registry.Len())
}

func Test_mode_resolution(t *testing.T) {
	f := newFixture(test.Config{})
	f.exec.Props = config.FromMap(map[string]string{"platform.mode": "api"})

	assert.Equal(t, platform.API, f.exec.Start(&Scenario{Name: "a"}, "").Mode)
	assert.Equal(t, platform.Mobile, f.exec.Start(&Scenario{Name: "b", Tags: []string{"@smoke", "@mobile"}}, "").Mode)
	assert.Equal(t, platform.Hybrid, f.exec.Start(&Scenario{Name: "c", Mode: platform.Hybrid, Tags: []string{"@web"}}, "").Mode)

	f.exec.Props = nil
	assert.Equal(t, platform.Web, f.exec.Start(&Scenario{Name: "d"}, "").Mode)
}

func Test_start_keeps_given_context(t *testing.T) {
	f := newFixture(test.Config{})
	st := f.exec.Start(&Scenario{Name: "x"}, "ctx-1")
	assert.Equal(t, session.ContextID("ctx-1"), st.ID)
	assert.False(t, st.Done())
}

func Test_outcome_carries_test_key(t *testing.T) {
	f := newFixture(test.Config{})
	o := f.exec.Run(context.Background(), &Scenario{
		Name:  "tagged",
		Tags:  []string{"@TEST_POS-123", "@api"},
		Retry: retries(1),
		Body:  func(*Context) error { return nil },
	})
	assert.Equal(t, "POS-123", o.TestKey)
	assert.Equal(t, "API", o.Mode)
	assert.NotEmpty(t, o.ContextID)
}
