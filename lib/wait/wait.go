/**
 * Copyright 2023-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Package wait has the bounded polling used for readiness checks and UI conditions
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotReady is returned when the condition was not met before the deadline
var ErrNotReady = errors.New("condition not met within timeout")

// Condition returns true when satisfied, an error is remembered and the polling continues
type Condition func(ctx context.Context) (bool, error)

// Retryer decides whether to run one more check
type Retryer interface {
	// Continue sleeps between the attempts and returns false when retrying should stop
	Continue(ctx context.Context) bool
}

// Counter allows Count checks with Wait in between
type Counter struct {
	Count int
	Wait  time.Duration

	done int
}

// Continue counter
func (c *Counter) Continue(ctx context.Context) bool {
	if c.done >= c.Count {
		return false
	}
	if c.done > 0 && !sleep(ctx, c.Wait) {
		return false
	}
	c.done++
	return true
}

// Timer allows checks until Timeout passed since the first one
type Timer struct {
	Timeout time.Duration
	Wait    time.Duration

	stop time.Time
}

// Continue timer, the last check happens right at the deadline
func (t *Timer) Continue(ctx context.Context) bool {
	if t.stop.IsZero() {
		t.stop = time.Now().Add(t.Timeout)
		return ctx.Err() == nil
	}
	left := time.Until(t.stop)
	if left <= 0 {
		return false
	}
	return sleep(ctx, min(t.Wait, left))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Poll runs the condition until it's satisfied or the retryer gives up
func Poll(ctx context.Context, r Retryer, cond Condition) error {
	return poll(ctx, r, time.Time{}, cond)
}

// Until checks the condition every interval until timeout, the condition is always checked
// at least once. Every check runs under the deadline of timeout plus one interval, a check
// that doesn't return by then is abandoned, so the wait never outlives its bound.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	limit := time.Now().Add(max(timeout, 0) + interval)
	return poll(ctx, &Timer{Timeout: timeout, Wait: interval}, limit, cond)
}

func poll(ctx context.Context, r Retryer, limit time.Time, cond Condition) error {
	var last error
	checks := 0
	for r.Continue(ctx) {
		checks++
		ok, err := check(ctx, limit, cond)
		if ok {
			return nil
		}
		last = err
		if !limit.IsZero() && !time.Now().Before(limit) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if last != nil {
		return fmt.Errorf("%w after %d checks: %w", ErrNotReady, checks, last)
	}
	return fmt.Errorf("%w after %d checks", ErrNotReady, checks)
}

type result struct {
	ok    bool
	err   error
	panic any
}

// check runs the condition under the limit, the condition gets the limited context and is
// left behind if it ignores it. A panic of the condition is raised again in the caller.
func check(ctx context.Context, limit time.Time, cond Condition) (bool, error) {
	if limit.IsZero() {
		return cond(ctx)
	}
	cctx, cancel := context.WithDeadline(ctx, limit)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		var res result
		defer func() {
			if p := recover(); p != nil {
				res = result{panic: p}
			}
			done <- res
		}()
		res.ok, res.err = cond(cctx)
	}()

	var res result
	select {
	case res = <-done:
	case <-cctx.Done():
		select {
		case res = <-done:
		default:
			return false, fmt.Errorf("check did not return in time: %w", context.Cause(cctx))
		}
	}
	if res.panic != nil {
		panic(res.panic)
	}
	return res.ok, res.err
}
