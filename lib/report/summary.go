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

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Summary keeps the last outcome per scenario and writes them as one JSON document
type Summary struct {
	Path string

	mu       sync.Mutex
	outcomes map[string]Outcome
	attached map[string]int
}

// SummaryDoc is the summary.json layout
type SummaryDoc struct {
	Generated time.Time `json:"generated"`
	Total     int       `json:"total"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Outcomes  []Outcome `json:"outcomes"`
}

// NewSummary creates summary written to path
func NewSummary(path string) *Summary {
	return &Summary{Path: path, outcomes: make(map[string]Outcome), attached: make(map[string]int)}
}

// Attach only counts the attachments
func (s *Summary) Attach(_ context.Context, a Attachment) error {
	s.mu.Lock()
	s.attached[a.Scenario]++
	s.mu.Unlock()
	return nil
}

// Record replaces the previous outcome of the same scenario
func (s *Summary) Record(_ context.Context, o Outcome) error {
	s.mu.Lock()
	s.outcomes[o.Key] = o
	s.mu.Unlock()
	return nil
}

// Attached returns how many attachments the scenario received
func (s *Summary) Attached(scenario string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[scenario]
}

// Doc builds the summary document sorted by scenario key
func (s *Summary) Doc() SummaryDoc {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := SummaryDoc{Generated: time.Now(), Outcomes: make([]Outcome, 0, len(s.outcomes))}
	for _, o := range s.outcomes {
		doc.Outcomes = append(doc.Outcomes, o)
		switch o.Status {
		case Passed:
			doc.Passed++
		case Failed:
			doc.Failed++
		case Skipped:
			doc.Skipped++
		}
	}
	sort.Slice(doc.Outcomes, func(i, j int) bool { return doc.Outcomes[i].Key < doc.Outcomes[j].Key })
	doc.Total = len(doc.Outcomes)
	return doc
}

// Write stores the summary document into Path
func (s *Summary) Write() error {
	data, err := json.MarshalIndent(s.Doc(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("report: unable to create summary dir: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o640)
}
