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

package api

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// Config of the HTTP request contexts
type Config struct {
	BaseURL  string            // Relative request paths are resolved against it
	Timeout  time.Duration     // Whole request timeout
	Token    string            // Bearer token, if set
	Headers  map[string]string // Default headers of every request
	Insecure bool              // Skip TLS verification for the test environments
}

// Apply reads api.* keys, api.base.url falls back to base.url
func (c *Config) Apply(props *config.Props) (err error) {
	c.BaseURL = props.StringOr("api.base.url", props.StringOr("base.url", ""))
	if c.Timeout, err = props.DurationOr("api.timeout", 30*time.Second); err != nil {
		return err
	}
	c.Token = props.StringOr("api.token", "")
	c.Headers = props.Prefixed("api.header.")
	if c.Insecure, err = props.BoolOr("api.insecure", false); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks the base url is absolute
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api: base url %q is not absolute", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	return nil
}
