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
	"fmt"
	"os"
	"strings"
	"sync"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
)

// position of the pickle in the feature file, row is set for the outline examples
type position struct {
	scenario int
	row      int
}

// locations finds where the pickles are defined. The engine doesn't expose the lines, so the
// feature files are parsed once more and the pickles are matched by name and step texts.
type locations struct {
	mu    sync.Mutex
	files map[string]map[string]position
}

func (l *locations) find(p *messages.Pickle) (position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.files == nil {
		l.files = make(map[string]map[string]position)
	}
	idx, ok := l.files[p.Uri]
	if !ok {
		var err error
		if idx, err = indexFile(p.Uri); err != nil {
			return position{}, err
		}
		l.files[p.Uri] = idx
	}
	pos, ok := idx[signature(p)]
	if !ok {
		return position{}, fmt.Errorf("scenario %q not found in %s", p.Name, p.Uri)
	}
	return pos, nil
}

func signature(p *messages.Pickle) string {
	var b strings.Builder
	b.WriteString(p.Name)
	for _, s := range p.Steps {
		b.WriteByte('\n')
		b.WriteString(s.Text)
	}
	return b.String()
}

// indexFile maps the pickle signatures of the file to their lines, the first of the identical
// pickles wins
func indexFile(uri string) (map[string]position, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids := &messages.Incrementing{}
	doc, err := gherkin.ParseGherkinDocument(f, ids.NewId)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", uri, err)
	}

	lines := make(map[string]int)
	addScenario := func(sc *messages.Scenario) {
		if sc == nil {
			return
		}
		lines[sc.Id] = int(sc.Location.Line)
		for _, ex := range sc.Examples {
			for _, row := range ex.TableBody {
				lines[row.Id] = int(row.Location.Line)
			}
		}
	}
	if doc.Feature != nil {
		for _, child := range doc.Feature.Children {
			addScenario(child.Scenario)
			if child.Rule != nil {
				for _, rc := range child.Rule.Children {
					addScenario(rc.Scenario)
				}
			}
		}
	}

	out := make(map[string]position)
	for _, p := range gherkin.Pickles(*doc, uri, ids.NewId) {
		sig := signature(p)
		if _, dup := out[sig]; dup || len(p.AstNodeIds) == 0 {
			continue
		}
		pos := position{scenario: lines[p.AstNodeIds[0]]}
		if len(p.AstNodeIds) > 1 {
			pos.row = lines[p.AstNodeIds[1]]
		}
		out[sig] = pos
	}
	return out, nil
}
