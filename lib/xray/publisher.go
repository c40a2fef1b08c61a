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
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/report"
)

// Publisher maps outcomes to the Xray tests by their @TEST_<KEY> tags
type Publisher struct {
	cfg        Config
	client     *Client
	resultsDir string // Where report.Dir stored the attachments, evidence is skipped when empty
}

// NewPublisher creates publisher
func NewPublisher(cfg Config, client *Client, resultsDir string) *Publisher {
	return &Publisher{cfg: cfg, client: client, resultsDir: resultsDir}
}

// Build creates the execution payload, outcomes without test key are skipped. Several outcomes
// of the same test (outline examples) are merged, any failure fails the test.
func (p *Publisher) Build(outcomes []report.Outcome) (exec *Execution, skipped int) {
	exec = &Execution{TestExecutionKey: p.cfg.TestExecutionKey}

	var started, finished time.Time
	tests := make(map[string]*Test)
	passed := make(map[string]bool)
	for _, o := range outcomes {
		key := o.TestKey
		if key == "" {
			key = TestKey(o.Tags)
		}
		if key == "" || o.Status == report.Skipped {
			skipped++
			continue
		}
		if started.IsZero() || o.Started.Before(started) {
			started = o.Started
		}
		if o.Finished.After(finished) {
			finished = o.Finished
		}

		t, ok := tests[key]
		if !ok {
			t = &Test{TestKey: key, Start: o.Started.Format(time.RFC3339), Finish: o.Finished.Format(time.RFC3339)}
			tests[key] = t
			passed[key] = true
		} else if f := o.Finished.Format(time.RFC3339); f > t.Finish {
			t.Finish = f
		}
		passed[key] = passed[key] && o.Status == report.Passed
		t.Comment = strings.TrimSpace(t.Comment + "\n" + comment(o))

		if o.Status == report.Failed && p.cfg.Evidence {
			ev := p.evidence(o)
			if p.cfg.Deployment == Server {
				t.Evidences = append(t.Evidences, ev...)
			} else {
				t.Evidence = append(t.Evidence, ev...)
			}
		}
	}

	keys := make([]string, 0, len(tests))
	for k := range tests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tests[k].Status = status(p.cfg.Deployment, passed[k])
		exec.Tests = append(exec.Tests, *tests[k])
	}

	if exec.TestExecutionKey == "" {
		exec.Info = &Info{
			Project:          p.cfg.ProjectKey,
			Summary:          p.cfg.Summary,
			TestPlanKey:      p.cfg.TestPlanKey,
			TestEnvironments: p.cfg.Environments,
		}
		if !started.IsZero() {
			exec.Info.StartDate = started.Format(time.RFC3339)
			exec.Info.FinishDate = finished.Format(time.RFC3339)
		}
	}
	return exec, skipped
}

func comment(o report.Outcome) string {
	c := fmt.Sprintf("%s: %s after %d attempt(s), mode %s", o.Name, o.Status, o.Attempts, o.Mode)
	if o.Error != "" {
		c += "\n" + o.Error
	}
	return c
}

func (p *Publisher) evidence(o report.Outcome) (out []Evidence) {
	if p.resultsDir == "" {
		return nil
	}
	dir := filepath.Join(p.resultsDir, report.Slug(o.Key))
	for _, name := range o.Attachments {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithFunc("xray", "evidence").Warn("Skipping evidence", "scenario", o.Key, "file", name, "err", err)
			continue
		}
		ct := mime.TypeByExtension(filepath.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		out = append(out, Evidence{
			Data:        base64.StdEncoding.EncodeToString(data),
			Filename:    name,
			ContentType: ct,
		})
	}
	return out
}

// Publish imports the outcomes. Test management is not part of the test result, so any failure
// is only logged and nil is returned.
func (p *Publisher) Publish(ctx context.Context, outcomes []report.Outcome) *ImportResult {
	logger := log.WithFunc("xray", "Publish")

	exec, skipped := p.Build(outcomes)
	if len(exec.Tests) == 0 {
		logger.Info("Nothing to publish, no outcome has test key", "skipped", skipped)
		return nil
	}

	res, err := p.client.ImportExecution(ctx, exec)
	if err != nil {
		logger.Error("Unable to publish results to Xray", "tests", len(exec.Tests), "auth", IsAuthError(err), "err", err)
		return nil
	}
	logger.Info("Results published to Xray", "execution", res.Key, "tests", len(exec.Tests), "skipped", skipped)
	return res
}
