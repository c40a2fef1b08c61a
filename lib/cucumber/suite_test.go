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

package cucumber

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/test"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/report"
	"github.com/adobe/pos-autotest/lib/scenario"
	"github.com/adobe/pos-autotest/lib/session"
)

const checkoutFeature = `Feature: Checkout

  Scenario: flaky payment
    Given the attempt is recorded
    Then it passes on attempt 2

  Scenario: stable receipt
    Given the attempt is recorded
    Then it passes on attempt 1

  @mobile
  Scenario: device pairing
    Given the attempt is recorded
    Then it passes on attempt 2

  Scenario Outline: totals
    Given the attempt is recorded
    Then it passes on attempt <attempt>

    Examples:
      | attempt |
      | 1       |
      | 2       |
`

type recorder struct {
	mu       sync.Mutex
	contexts map[string][]session.ContextID
}

func (r *recorder) steps(sc *godog.ScenarioContext) {
	sc.Step(`^the attempt is recorded$`, func(ctx context.Context) error {
		c, err := scenario.FromContext(ctx)
		if err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.contexts[c.Key] = append(r.contexts[c.Key], c.ID)
		return nil
	})
	sc.Step(`^it passes on attempt (\d+)$`, func(ctx context.Context, n int) error {
		c, err := scenario.FromContext(ctx)
		if err != nil {
			return err
		}
		if c.Attempt < n {
			return fmt.Errorf("attempt %d is too early", c.Attempt)
		}
		return nil
	})
}

func newSuite(t *testing.T, attempts int) (*Suite, *recorder, *test.Driver, *test.Driver) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkout.feature"), []byte(checkoutFeature), 0o644))

	web := test.New(platform.KindWeb, test.Config{})
	mobile := test.New(platform.KindMobile, test.Config{})
	rec := &recorder{contexts: make(map[string][]session.ContextID)}
	s := &Suite{
		Name: "checkout",
		Executor: &scenario.Executor{
			Registry: session.NewRegistry(web, mobile),
			Props:    config.FromMap(nil),
		},
		Steps: rec.steps,
		Retry: scenario.RetryConfig{Enabled: true, MaxAttempts: attempts},
		Options: godog.Options{
			Paths:    []string{dir},
			Format:   "progress",
			Output:   io.Discard,
			NoColors: true,
			Strict:   true,
		},
	}
	return s, rec, web, mobile
}

func byName(outcomes []report.Outcome) map[string]report.Outcome {
	out := make(map[string]report.Outcome)
	for _, o := range outcomes {
		key := o.Name
		if o.Name == "totals" {
			key = fmt.Sprintf("totals/%d", o.Attempts)
		}
		out[key] = o
	}
	return out
}

func Test_rerun_passes_until_green(t *testing.T) {
	s, rec, web, mobile := newSuite(t, 3)

	outcomes, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	assert.False(t, Failed(outcomes))

	got := byName(outcomes)
	assert.Equal(t, 2, got["flaky payment"].Attempts)
	assert.Equal(t, 1, got["stable receipt"].Attempts)
	assert.Equal(t, 2, got["device pairing"].Attempts)
	assert.Equal(t, "MOBILE", got["device pairing"].Mode)
	assert.Contains(t, got, "totals/1")
	assert.Contains(t, got, "totals/2")
	assert.Equal(t, 3, got["flaky payment"].Line)

	flaky := rec.contexts[got["flaky payment"].Key]
	require.Len(t, flaky, 2)
	assert.Equal(t, flaky[0], flaky[1], "context id survives the rerun pass")

	assert.EqualValues(t, 4, web.Opened(), "web scenarios keep the binding between the passes")
	assert.EqualValues(t, 2, mobile.Opened(), "device is fresh for every attempt")
	assert.Equal(t, web.Opened(), web.Closed())
	assert.Equal(t, mobile.Opened(), mobile.Closed())
}

func Test_exhausted_attempts_fail(t *testing.T) {
	s, _, _, _ := newSuite(t, 1)

	outcomes, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, Failed(outcomes))

	got := byName(outcomes)
	assert.Equal(t, report.Failed, got["flaky payment"].Status)
	assert.Contains(t, got["flaky payment"].Error, "attempt 1 is too early")
	assert.Equal(t, report.Passed, got["stable receipt"].Status)
	assert.Equal(t, 0, s.Executor.Registry.Len())
}

func Test_location_index(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkout.feature")
	require.NoError(t, os.WriteFile(path, []byte(checkoutFeature), 0o644))

	idx, err := indexFile(path)
	require.NoError(t, err)
	assert.Len(t, idx, 5)

	pos := idx["stable receipt\nthe attempt is recorded\nit passes on attempt 1"]
	assert.Equal(t, position{scenario: 7}, pos)
	pos = idx["totals\nthe attempt is recorded\nit passes on attempt 2"]
	assert.Equal(t, position{scenario: 16, row: 23}, pos)

	_, err = indexFile(filepath.Join(dir, "missing.feature"))
	assert.Error(t, err)
}
