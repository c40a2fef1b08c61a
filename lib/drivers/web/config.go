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

package web

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// Config of the browser sessions
type Config struct {
	Browser  string        // chromium, firefox or webkit
	Headless bool          // Run without the window
	SlowMo   time.Duration // Delay between the operations, useful to watch the headful runs

	BaseURL           string // Relative navigation is resolved against it
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool
	Locale            string

	DefaultTimeout    time.Duration // Actions & assertions timeout
	NavigationTimeout time.Duration // Page loads timeout

	RecordVideo bool   // Record video of every context
	ResultsDir  string // Videos are placed into <results>/video/<context id>
}

// Apply reads web.* keys over the defaults
func (c *Config) Apply(props *config.Props) (err error) {
	c.Browser = props.StringOr("web.browser", "chromium")
	if c.Headless, err = props.BoolOr("web.headless", true); err != nil {
		return err
	}
	if c.SlowMo, err = props.DurationOr("web.slowmo", 0); err != nil {
		return err
	}
	c.BaseURL = props.StringOr("base.url", "")
	if c.ViewportWidth, err = props.IntOr("web.viewport.width", 1366); err != nil {
		return err
	}
	if c.ViewportHeight, err = props.IntOr("web.viewport.height", 768); err != nil {
		return err
	}
	if c.IgnoreHTTPSErrors, err = props.BoolOr("web.ignore.https.errors", true); err != nil {
		return err
	}
	c.Locale = props.StringOr("web.locale", "")
	if c.DefaultTimeout, err = props.DurationOr("timeout.default", 15*time.Second); err != nil {
		return err
	}
	if c.NavigationTimeout, err = props.DurationOr("timeout.navigation", 30*time.Second); err != nil {
		return err
	}
	if c.RecordVideo, err = props.BoolOr("web.video", false); err != nil {
		return err
	}
	c.ResultsDir = props.StringOr("results.dir", "results")

	return c.Validate()
}

// Validate checks the values
func (c *Config) Validate() error {
	switch c.Browser {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("web: unsupported browser %q", c.Browser)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("web: invalid viewport %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	return nil
}

// VideoDir returns where the context videos are recorded
func (c *Config) VideoDir(contextID string) string {
	return filepath.Join(c.ResultsDir, "video", contextID)
}
