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
	"mime"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/adobe/pos-autotest/lib/log"
)

var extensions = map[string]string{
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
	"video/webm":       ".webm",
	"application/json": ".json",
	"text/plain":       ".txt",
	"text/html":        ".html",
}

// Dir stores attachments and outcome.json in <Root>/<scenario slug>/
type Dir struct {
	Root string

	mu    sync.Mutex
	files map[string][]string // scenario -> stored files
}

// NewDir creates the results directory
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("report: unable to create results dir: %w", err)
	}
	return &Dir{Root: root, files: make(map[string][]string)}, nil
}

// Attach writes the attachment file, same labels are numbered
func (d *Dir) Attach(_ context.Context, a Attachment) error {
	data := a.Data
	if data == nil && a.Path != "" {
		var err error
		if data, err = os.ReadFile(a.Path); err != nil {
			return fmt.Errorf("report: unable to read attachment file: %w", err)
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("report: empty attachment %q", a.Label)
	}

	dir := filepath.Join(d.Root, Slug(a.Scenario))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("report: unable to create scenario dir: %w", err)
	}

	d.mu.Lock()
	base := Slug(a.Label)
	name := base + extension(a.MIME)
	for i := 2; slices.Contains(d.files[a.Scenario], name); i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, extension(a.MIME))
	}
	d.files[a.Scenario] = append(d.files[a.Scenario], name)
	d.mu.Unlock()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("report: unable to write attachment: %w", err)
	}
	log.WithFunc("report", "Attach").Debug("Attachment stored", "path", path, "size", len(data))
	return nil
}

// Record writes outcome.json with the list of stored attachments
func (d *Dir) Record(_ context.Context, o Outcome) error {
	dir := filepath.Join(d.Root, Slug(o.Key))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("report: unable to create scenario dir: %w", err)
	}

	d.mu.Lock()
	if len(o.Attachments) == 0 {
		o.Attachments = append([]string(nil), d.files[o.Key]...)
	}
	d.mu.Unlock()

	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "outcome.json"), data, 0o640)
}

// Files returns the attachment file names stored for the scenario
func (d *Dir) Files(scenario string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.files[scenario]...)
}

func extension(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
