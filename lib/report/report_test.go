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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "features-checkout-feature-pay-by-card", Slug("features/checkout.feature: Pay by card"))
	assert.Equal(t, "screenshot-web", Slug("Screenshot (web)"))
	assert.Equal(t, "", Slug("--"))
}

func TestDir(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "results")
	d, err := NewDir(root)
	require.NoError(t, err)

	const key = "features/checkout.feature:Pay by card"
	require.NoError(t, d.Attach(ctx, Attachment{Scenario: key, Label: "screenshot web", MIME: "image/png", Data: []byte("png")}))
	require.NoError(t, d.Attach(ctx, Attachment{Scenario: key, Label: "screenshot web", MIME: "image/png", Data: []byte("png2")}))

	video := filepath.Join(t.TempDir(), "v.webm")
	require.NoError(t, os.WriteFile(video, []byte("webm"), 0o600))
	require.NoError(t, d.Attach(ctx, Attachment{Scenario: key, Label: "video", MIME: "video/webm", Path: video}))

	assert.Error(t, d.Attach(ctx, Attachment{Scenario: key, Label: "empty", MIME: "image/png"}))

	assert.Equal(t, []string{"screenshot-web.png", "screenshot-web-2.png", "video.webm"}, d.Files(key))

	require.NoError(t, d.Record(ctx, Outcome{Key: key, Name: "Pay by card", Status: Failed, Attempts: 2}))
	data, err := os.ReadFile(filepath.Join(root, Slug(key), "outcome.json"))
	require.NoError(t, err)

	var o Outcome
	require.NoError(t, json.Unmarshal(data, &o))
	assert.Equal(t, Failed, o.Status)
	assert.Equal(t, 2, o.Attempts)
	assert.Len(t, o.Attachments, 3)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := NewSummary(filepath.Join(t.TempDir(), "out", "summary.json"))

	require.NoError(t, s.Record(ctx, Outcome{Key: "b", Status: Failed, Attempts: 1}))
	require.NoError(t, s.Record(ctx, Outcome{Key: "b", Status: Passed, Attempts: 2}))
	require.NoError(t, s.Record(ctx, Outcome{Key: "a", Status: Failed, Attempts: 3}))
	require.NoError(t, s.Attach(ctx, Attachment{Scenario: "a"}))

	doc := s.Doc()
	assert.Equal(t, 2, doc.Total)
	assert.Equal(t, 1, doc.Passed)
	assert.Equal(t, 1, doc.Failed)
	assert.Equal(t, "a", doc.Outcomes[0].Key)
	assert.Equal(t, 2, doc.Outcomes[1].Attempts)
	assert.Equal(t, 1, s.Attached("a"))

	require.NoError(t, s.Write())
	_, err := os.Stat(s.Path)
	assert.NoError(t, err)
}

type failingSink struct{ calls int }

func (f *failingSink) Attach(context.Context, Attachment) error { f.calls++; return errors.New("disk full") }
func (f *failingSink) Record(context.Context, Outcome) error { f.calls++; return errors.New("disk full") }

func TestMultiAndLogged(t *testing.T) {
	ctx := context.Background()
	bad := &failingSink{}
	sum := NewSummary("unused")
	m := Multi{bad, sum}

	assert.Error(t, m.Record(ctx, Outcome{Key: "k", Status: Passed}))
	assert.Equal(t, 1, sum.Doc().Total, "later sinks are called after a failure")

	l := Logged(m)
	assert.NoError(t, l.Attach(ctx, Attachment{Scenario: "k"}))
	assert.NoError(t, l.Record(ctx, Outcome{Key: "k"}))
	assert.Equal(t, 3, bad.calls)
}
