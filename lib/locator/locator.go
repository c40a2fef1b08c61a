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

// Package locator maps semantic element names used in the steps to the web and mobile locators
package locator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
)

var (
	ErrUnknownKey      = errors.New("unknown locator key")
	ErrInvalidLocator  = errors.New("invalid locator")
	ErrMissingPlatform = errors.New("locator is not defined for platform")
)

// Web strategies are turned into Playwright selectors
var webStrategies = []string{"css", "xpath", "text", "id", "testid", "role"}

// Mobile strategies are passed to the WebDriver as is
var mobileStrategies = []string{
	"id", "xpath", "accessibility id", "class name", "name",
	"-android uiautomator", "-ios predicate string", "-ios class chain",
}

// Locator of one element
type Locator struct {
	Strategy string `yaml:"strategy"`
	Value    string `yaml:"value"`
}

// Entry describes element on every platform it exists on
type Entry struct {
	Web    *Locator `yaml:"web"`
	Mobile *Locator `yaml:"mobile"`
}

// Map is read-only after load and safe for parallel scenarios
type Map struct {
	entries map[string]Entry
}

// Load reads the yaml locators file
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locator: unable to read %q: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("locator: %q: %w", path, err)
	}
	log.WithFunc("locator", "Load").Debug("Locators loaded", "path", path, "count", len(m.entries))
	return m, nil
}

// Parse decodes and validates every entry, unknown fields are rejected
func Parse(data []byte) (*Map, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	entries := make(map[string]Entry)
	if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for key, e := range entries {
		if e.Web == nil && e.Mobile == nil {
			return nil, fmt.Errorf("%w %q: no platform defined", ErrInvalidLocator, key)
		}
		if e.Web != nil {
			if err := e.Web.validate(webStrategies); err != nil {
				return nil, fmt.Errorf("%q web: %w", key, err)
			}
		}
		if e.Mobile != nil {
			if err := e.Mobile.validate(mobileStrategies); err != nil {
				return nil, fmt.Errorf("%q mobile: %w", key, err)
			}
		}
	}
	return &Map{entries: entries}, nil
}

func (l *Locator) validate(strategies []string) error {
	if !slices.Contains(strategies, l.Strategy) {
		return fmt.Errorf("%w: strategy %q is not one of %v", ErrInvalidLocator, l.Strategy, strategies)
	}
	if l.Value == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidLocator)
	}
	return nil
}

// Keys returns the sorted locator names
func (m *Map) Keys() []string {
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the locator of the key for the handle kind
func (m *Map) Get(kind platform.Kind, key string) (Locator, error) {
	e, ok := m.entries[key]
	if !ok {
		return Locator{}, fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	var l *Locator
	switch kind {
	case platform.KindWeb:
		l = e.Web
	case platform.KindMobile:
		l = e.Mobile
	}
	if l == nil {
		return Locator{}, fmt.Errorf("%w %s: %q", ErrMissingPlatform, kind, key)
	}
	return *l, nil
}

// Selector returns the Playwright selector of the web locator
func (m *Map) Selector(key string) (string, error) {
	l, err := m.Get(platform.KindWeb, key)
	if err != nil {
		return "", err
	}
	return l.Selector(), nil
}

// Selector converts the web locator into Playwright selector syntax
func (l Locator) Selector() string {
	switch l.Strategy {
	case "xpath":
		return "xpath=" + l.Value
	case "text":
		return "text=" + l.Value
	case "id":
		return "id=" + l.Value
	case "testid":
		return "data-testid=" + l.Value
	case "role":
		return "role=" + l.Value
	}
	return "css=" + l.Value
}

func (l Locator) String() string {
	return l.Strategy + "=" + strconv.Quote(l.Value)
}
