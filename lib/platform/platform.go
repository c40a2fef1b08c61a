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

// Package platform defines the surfaces a scenario drives and how the mode is chosen
package platform

import (
	"fmt"
	"strings"

	"github.com/adobe/pos-autotest/lib/log"
)

// Mode selects which automation handles a scenario needs
type Mode string

const (
	Web    Mode = "WEB"
	Mobile Mode = "MOBILE"
	API    Mode = "API"
	Hybrid Mode = "HYBRID"

	// Default is used when nothing else selects the mode
	Default = Web

	// ConfigKey is the property holding the configured mode
	ConfigKey = "platform.mode"
)

// Kind is a type of automation handle
type Kind string

const (
	KindWeb    Kind = "web"
	KindMobile Kind = "mobile"
	KindAPI    Kind = "api"
)

// Modes lists the valid modes
var Modes = []Mode{Web, Mobile, API, Hybrid}

// Parse converts the case-insensitive name to Mode
func Parse(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case Web, Mobile, API, Hybrid:
		return m, nil
	}
	return "", fmt.Errorf("unknown platform mode %q", s)
}

// Kinds returns the handle kinds in acquisition order, HYBRID starts with the
// device since it's the slowest one to come up
func (m Mode) Kinds() []Kind {
	switch m {
	case Web:
		return []Kind{KindWeb}
	case Mobile:
		return []Kind{KindMobile}
	case API:
		return []Kind{KindAPI}
	case Hybrid:
		return []Kind{KindMobile, KindWeb, KindAPI}
	}
	return nil
}

// FreshState reports whether a retry must start with a new binding, device and app
// state can't be trusted after a failed attempt
func (m Mode) FreshState() bool {
	return m == Mobile || m == Hybrid
}

// Getter is the part of configuration the resolver needs
type Getter interface {
	Lookup(key string) (string, bool)
}

// Resolve picks the mode by priority: explicit override, configured value, default.
// Unknown values are skipped with a warning and never fail the run.
func Resolve(override string, props Getter) Mode {
	logger := log.WithFunc("platform", "Resolve")

	if override != "" {
		if m, err := Parse(override); err == nil {
			logger.Debug("Platform mode from override", "mode", m)
			return m
		}
		logger.Warn("Ignoring invalid platform override", "value", override)
	}

	if props != nil {
		if v, ok := props.Lookup(ConfigKey); ok && v != "" {
			if m, err := Parse(v); err == nil {
				logger.Debug("Platform mode from configuration", "mode", m)
				return m
			}
			logger.Warn("Ignoring invalid configured platform mode", "key", ConfigKey, "value", v)
		}
	}

	logger.Debug("Platform mode defaulted", "mode", Default)
	return Default
}

// FromTags returns the override named by a scenario tag like @mobile, empty if none
func FromTags(tags []string) string {
	for _, t := range tags {
		if m, err := Parse(strings.TrimPrefix(t, "@")); err == nil {
			return string(m)
		}
	}
	return ""
}
