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

package assert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoft_Accumulates(t *testing.T) {
	s := &Soft{}

	tassert.Equal(s, "12.50", "12.00", "order total")
	tassert.True(s, true)
	tassert.Contains(s, "Table 4", "Table 7")
	s.Check(errors.New("receipt not printed"))
	require.True(t, s.Check(nil))

	require.True(t, s.Failed())
	failures := s.Failures()
	require.Len(t, failures, 3)
	tassert.Contains(t, failures[0].Message, "order total")
	tassert.Equal(t, "receipt not printed", failures[2].Message)
	for _, f := range failures {
		tassert.True(t, strings.HasPrefix(f.Where, "soft_test.go:"), f.Where)
	}
}

func TestSoft_Checkpoint(t *testing.T) {
	s := &Soft{}
	require.NoError(t, s.Checkpoint())

	s.Errorf("price is %d", 10)
	s.Error("tip ", "missing")

	err := s.Checkpoint()
	require.Error(t, err)
	tassert.ErrorIs(t, err, ErrSoft)

	var soft *SoftError
	require.True(t, errors.As(err, &soft))
	require.Len(t, soft.Failures, 2)
	tassert.Contains(t, err.Error(), "2 soft assertion(s) failed:")
	tassert.Contains(t, err.Error(), "price is 10")
	tassert.Contains(t, err.Error(), "tip missing")

	// Checkpoint starts over
	tassert.False(t, s.Failed())
	tassert.NoError(t, s.Checkpoint())

	wrapped := fmt.Errorf("scenario: %w", err)
	tassert.ErrorIs(t, wrapped, ErrSoft)
}

func TestSoft_Reset(t *testing.T) {
	s := &Soft{}
	s.Errorf("x")
	s.Reset()
	tassert.False(t, s.Failed())
	tassert.NoError(t, s.Checkpoint())
}

func TestSoft_Parallel(t *testing.T) {
	s := &Soft{}
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Errorf("failure %d", i)
		}()
	}
	wg.Wait()
	tassert.Len(t, s.Failures(), 50)
}
