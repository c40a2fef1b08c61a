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

// Package report stores scenario outcomes and evidence attachments
package report

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/adobe/pos-autotest/lib/log"
)

// Status of the scenario
type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// Outcome is the final authoritative result of a scenario, earlier attempts are only logged
type Outcome struct {
	Key       string    `json:"key"` // Stable scenario identity: feature uri + name
	Name      string    `json:"name"`
	URI       string    `json:"uri,omitempty"`
	Line      int       `json:"line,omitempty"`
	TestKey   string    `json:"test_key,omitempty"` // Xray test issue from @TEST_<KEY> tag
	Tags      []string  `json:"tags,omitempty"`
	Mode      string    `json:"mode"`
	ContextID string    `json:"context_id"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`

	Attachments []string `json:"attachments,omitempty"`
}

// Duration of the whole scenario including retries
func (o *Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Attachment is the evidence captured for the scenario, Data or Path of the file to copy
type Attachment struct {
	Scenario string // Outcome key
	Label    string
	MIME     string
	Data     []byte
	Path     string
	Passed   bool
}

// Sink receives the attachments and final outcomes
type Sink interface {
	Attach(ctx context.Context, a Attachment) error
	Record(ctx context.Context, o Outcome) error
}

// Multi fans out into all the sinks, every one is called even if previous failed
type Multi []Sink

// Attach into all the sinks
func (m Multi) Attach(ctx context.Context, a Attachment) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Attach(ctx, a))
	}
	return errors.Join(errs...)
}

// Record into all the sinks
func (m Multi) Record(ctx context.Context, o Outcome) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Record(ctx, o))
	}
	return errors.Join(errs...)
}

// Logged wraps the sink so its errors are only logged, reporting never fails a scenario
func Logged(s Sink) Sink {
	return logged{s}
}

type logged struct {
	s Sink
}

func (l logged) Attach(ctx context.Context, a Attachment) error {
	if err := l.s.Attach(ctx, a); err != nil {
		log.WithFunc("report", "Attach").Warn("Unable to store attachment", "scenario", a.Scenario, "label", a.Label, "err", err)
	}
	return nil
}

func (l logged) Record(ctx context.Context, o Outcome) error {
	if err := l.s.Record(ctx, o); err != nil {
		log.WithFunc("report", "Record").Warn("Unable to record outcome", "scenario", o.Key, "err", err)
	}
	return nil
}

// Slug turns the scenario key into a file name
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
