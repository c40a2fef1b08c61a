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
	"fmt"
	"strings"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// Deployment types of Xray
const (
	Cloud  = "cloud"
	Server = "server"
)

const defaultCloudURL = "https://xray.cloud.getxray.app"

// Config of the Xray publishing, read from xray.* keys
type Config struct {
	Enabled    bool
	Deployment string // cloud or server (also Data Center)
	BaseURL    string // Jira url for server, Xray cloud url otherwise

	ClientID     string // Cloud API key
	ClientSecret string
	Token        string // Server personal access token

	ProjectKey       string
	TestExecutionKey string // Existing execution to update, new one is created when empty
	TestPlanKey      string
	Summary          string
	Environments     []string

	Evidence  bool    // Attach the stored screenshots of failed tests
	RateLimit float64 // Requests per second
	Timeout   time.Duration
}

// Apply reads the configuration
func (c *Config) Apply(props *config.Props) (err error) {
	if c.Enabled, err = props.BoolOr("xray.enabled", false); err != nil {
		return err
	}
	c.Deployment = strings.ToLower(props.StringOr("xray.deployment", Cloud))
	c.BaseURL = strings.TrimSuffix(props.StringOr("xray.url", ""), "/")
	c.ClientID = props.StringOr("xray.client.id", "")
	c.ClientSecret = props.StringOr("xray.client.secret", "")
	c.Token = props.StringOr("xray.token", "")
	c.ProjectKey = props.StringOr("xray.project.key", "")
	c.TestExecutionKey = props.StringOr("xray.test.execution.key", "")
	c.TestPlanKey = props.StringOr("xray.test.plan.key", "")
	c.Summary = props.StringOr("xray.summary", "Automated execution")
	if props.Has("xray.environments") {
		if c.Environments, err = props.Strings("xray.environments"); err != nil {
			return err
		}
	}
	if c.Evidence, err = props.BoolOr("xray.evidence", true); err != nil {
		return err
	}
	if c.RateLimit, err = props.FloatOr("xray.rate.limit", 2); err != nil {
		return err
	}
	if c.Timeout, err = props.DurationOr("xray.timeout", 60*time.Second); err != nil {
		return err
	}
	if c.Enabled {
		return c.Validate()
	}
	return nil
}

// Validate checks the credentials of the deployment are set
func (c *Config) Validate() error {
	switch c.Deployment {
	case Cloud:
		if c.BaseURL == "" {
			c.BaseURL = defaultCloudURL
		}
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("xray: cloud deployment needs xray.client.id and xray.client.secret")
		}
	case Server:
		if c.BaseURL == "" || c.Token == "" {
			return fmt.Errorf("xray: server deployment needs xray.url and xray.token")
		}
	default:
		return fmt.Errorf("xray: unknown deployment %q", c.Deployment)
	}
	if c.TestExecutionKey == "" && c.ProjectKey == "" {
		return fmt.Errorf("xray: xray.project.key is needed to create a new test execution")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("xray: rate limit should be positive")
	}
	return nil
}
