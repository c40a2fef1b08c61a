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

package xray

import (
	"regexp"
	"strings"
)

// Execution is the Xray JSON results format
type Execution struct {
	TestExecutionKey string `json:"testExecutionKey,omitempty"`
	Info             *Info  `json:"info,omitempty"`
	Tests            []Test `json:"tests"`
}

// Info describes the new test execution issue
type Info struct {
	Project          string   `json:"project,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	Description      string   `json:"description,omitempty"`
	StartDate        string   `json:"startDate,omitempty"`
	FinishDate       string   `json:"finishDate,omitempty"`
	TestPlanKey      string   `json:"testPlanKey,omitempty"`
	TestEnvironments []string `json:"testEnvironments,omitempty"`
}

// Test is the result of one test issue, cloud and server name the evidence list differently
type Test struct {
	TestKey   string     `json:"testKey"`
	Start     string     `json:"start,omitempty"`
	Finish    string     `json:"finish,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	Status    string     `json:"status"`
	Evidence  []Evidence `json:"evidence,omitempty"`
	Evidences []Evidence `json:"evidences,omitempty"`
}

// Evidence is base64 encoded file attached to the test run
type Evidence struct {
	Data        string `json:"data"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

var testTag = regexp.MustCompile(`^@?TEST_([A-Z][A-Z0-9_]*-[0-9]+)$`)

// TestKey returns the issue key of the first @TEST_<KEY> tag, empty when there is none
func TestKey(tags []string) string {
	for _, t := range tags {
		if m := testTag.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			return m[1]
		}
	}
	return ""
}

// status converts the outcome into the deployment status name
func status(deployment string, passed bool) string {
	switch {
	case deployment == Server && passed:
		return "PASS"
	case deployment == Server:
		return "FAIL"
	case passed:
		return "PASSED"
	}
	return "FAILED"
}
