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

// Package assert accumulates soft assertion failures until a checkpoint
package assert

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// ErrSoft is matched by every SoftError
var ErrSoft = errors.New("soft assertions failed")

// Failure is one recorded soft assertion
type Failure struct {
	Where   string // file:line of the assertion
	Message string
}

func (f Failure) String() string {
	if f.Where == "" {
		return f.Message
	}
	return f.Where + ": " + f.Message
}

// SoftError lists all the failures collected before the checkpoint
type SoftError struct {
	Failures []Failure
}

func (e *SoftError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d soft assertion(s) failed:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}

// Is makes errors.Is(err, ErrSoft) work
func (*SoftError) Is(target error) bool {
	return target == ErrSoft
}

// Soft implements testify assert.TestingT, so assert.* calls with it never stop the scenario
// and just record the failure. Safe for concurrent use.
type Soft struct {
	mu       sync.Mutex
	failures []Failure
}

// Helper marks the caller as helper, nothing to do here
func (*Soft) Helper() {}

// Errorf records the failure
func (s *Soft) Errorf(format string, args ...any) {
	s.record(fmt.Sprintf(format, args...))
}

// Error records the failure
func (s *Soft) Error(args ...any) {
	s.record(fmt.Sprint(args...))
}

// Check records the error if it's not nil and tells whether it was nil
func (s *Soft) Check(err error) bool {
	if err == nil {
		return true
	}
	s.record(err.Error())
	return false
}

func (s *Soft) record(msg string) {
	f := Failure{Where: caller(), Message: strings.TrimSpace(msg)}
	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.mu.Unlock()
}

// Failed reports whether there are unverified failures
func (s *Soft) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures) > 0
}

// Failures returns copy of the collected failures
func (s *Soft) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// Checkpoint returns *SoftError with everything collected so far and starts over, nil if
// nothing failed
func (s *Soft) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return nil
	}
	err := &SoftError{Failures: s.failures}
	s.failures = nil
	return err
}

// Reset drops the collected failures, used between retry attempts
func (s *Soft) Reset() {
	s.mu.Lock()
	s.failures = nil
	s.mu.Unlock()
}

var thisFile = func() string {
	_, file, _, _ := runtime.Caller(0)
	return file
}()

// caller finds the first frame outside of this file and testify
func caller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		if fr.File != thisFile && !strings.Contains(fr.File, "stretchr/testify") {
			file := fr.File
			if i := strings.LastIndex(file, "/"); i >= 0 {
				file = file[i+1:]
			}
			return fmt.Sprintf("%s:%d", file, fr.Line)
		}
		if !more {
			return ""
		}
	}
}
