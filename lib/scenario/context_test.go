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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tassert "github.com/adobe/pos-autotest/lib/assert"
	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
	"github.com/adobe/pos-autotest/lib/wait"
)

func bareContext(sink *memSink) *Context {
	st := &State{Scenario: &Scenario{Key: "k", Name: "n"}, ID: "ctx-1", Mode: platform.API, Attempt: 1}
	return newContext(context.Background(), st, nil, config.FromMap(nil), sink)
}

func Test_from_context(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, session.ErrNotInitialized)

	c := bareContext(nil)
	got, err := FromContext(WithContext(context.Background(), c))
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func Test_guard_checkpoint(t *testing.T) {
	c := bareContext(nil)
	after := false
	err := Guard(c, func() error {
		c.Errorf("price %d", 10)
		c.Checkpoint()
		after = true
		return nil
	})
	assert.False(t, after)
	assert.ErrorIs(t, err, tassert.ErrSoft)
	assert.Contains(t, err.Error(), "price 10")
	assert.False(t, c.Failed(), "checkpoint consumes the failures")
}

func Test_guard_clean_checkpoint_continues(t *testing.T) {
	c := bareContext(nil)
	err := Guard(c, func() error {
		c.Checkpoint()
		return nil
	})
	assert.NoError(t, err)
}

func Test_guard_fail_now_without_message(t *testing.T) {
	c := bareContext(nil)
	err := Guard(c, func() error {
		c.FailNow()
		return nil
	})
	assert.ErrorIs(t, err, ErrAborted)
}

func Test_guard_fatalf(t *testing.T) {
	c := bareContext(nil)
	err := Guard(c, func() error {
		c.Fatalf("device %s lost", "emulator-5554")
		return nil
	})
	assert.ErrorContains(t, err, "device emulator-5554 lost")
	assert.Equal(t, KindAssertion, ErrorKind(err))
}

func Test_guard_panic(t *testing.T) {
	err := Guard(bareContext(nil), func() error { panic("index out of range") })
	assert.ErrorIs(t, err, ErrPanic)
	assert.ErrorContains(t, err, "index out of range")
}

func Test_counters_and_values(t *testing.T) {
	c := bareContext(nil)
	assert.Equal(t, 1, c.Inc("clicks"))
	assert.Equal(t, 2, c.Inc("clicks"))
	assert.Equal(t, 2, c.Counter("clicks"))
	assert.Equal(t, 0, c.Counter("taps"))

	c.Set("order", "A-1")
	v, ok := c.Get("order")
	assert.True(t, ok)
	assert.Equal(t, "A-1", v)
	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func Test_attach(t *testing.T) {
	sink := &memSink{}
	c := bareContext(sink)
	c.Attach("response", "application/json", []byte(`{}`))
	require.Len(t, sink.attachments, 1)
	assert.Equal(t, "k", sink.attachments[0].Scenario)

	sink.failAttach = true
	c.Attach("again", "text/plain", nil) // only logged

	bareContext(nil).Attach("nowhere", "text/plain", nil)
}

func Test_error_kind(t *testing.T) {
	for _, tc := range []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{fmt.Errorf("%w: web: no browser", session.ErrAcquire), KindAcquire},
		{&config.Error{Key: "base.url", Err: config.ErrMissingKey}, KindConfig},
		{fmt.Errorf("element: %w", wait.ErrNotReady), KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{&tassert.SoftError{}, KindAssertion},
		{ErrAborted, KindAssertion},
		{fmt.Errorf("%w: x", ErrPanic), KindPanic},
		{errors.New("other"), KindError},
	} {
		assert.Equal(t, tc.kind, ErrorKind(tc.err), "%v", tc.err)
	}
}

func Test_retry_from_config(t *testing.T) {
	r, err := RetryFromConfig(config.FromMap(nil))
	require.NoError(t, err)
	assert.Equal(t, RetryConfig{Enabled: true, MaxAttempts: 2}, r)

	r, err = RetryFromConfig(config.FromMap(map[string]string{
		"retry.enabled":      "false",
		"retry.max.attempts": "4",
		"retry.delay":        "1s",
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Attempts())
	assert.Equal(t, time.Second, r.Delay)

	_, err = RetryFromConfig(config.FromMap(map[string]string{"retry.max.attempts": "many"}))
	assert.ErrorIs(t, err, config.ErrMalformedValue)
}
