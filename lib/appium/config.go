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

package appium

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// Config of the Appium server endpoint and how to start it
type Config struct {
	Host     string // Address the server listens on
	Port     int    // Port of the server
	BasePath string // Base path, "/" for Appium 2, "/wd/hub" for the older ones

	Autostart bool     // Start the server when it's not running
	Binary    string   // Path to the appium executable
	Args      []string // Full argument list, generated from the endpoint when empty
	Env       []string // Additional environment for the server process

	StartupTimeout  time.Duration // How long to wait for /status to become ready
	ShutdownTimeout time.Duration // How long to wait after interrupt before killing
	PollInterval    time.Duration // Initial interval of the /status poll

	LogFile string // Log of externally managed server to follow
}

// Apply reads the appium.* keys of the property set over the defaults
func (c *Config) Apply(props *config.Props) (err error) {
	c.Host = props.StringOr("appium.host", "127.0.0.1")
	if c.Port, err = props.IntOr("appium.port", 4723); err != nil {
		return err
	}
	c.BasePath = props.StringOr("appium.base.path", "/")
	if c.Autostart, err = props.BoolOr("appium.autostart", true); err != nil {
		return err
	}
	c.Binary = props.StringOr("appium.binary", "appium")
	if props.Has("appium.args") {
		c.Args = strings.Fields(props.StringOr("appium.args", ""))
	}
	if c.StartupTimeout, err = props.DurationOr("appium.startup.timeout", 60*time.Second); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = props.DurationOr("appium.shutdown.timeout", 10*time.Second); err != nil {
		return err
	}
	if c.PollInterval, err = props.DurationOr("appium.poll.interval", 500*time.Millisecond); err != nil {
		return err
	}
	c.LogFile = props.StringOr("appium.log.file", "")

	return c.Validate()
}

// Validate makes sure the config is usable and fills the derived values
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("appium: host is not set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("appium: invalid port %d", c.Port)
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		c.BasePath = "/" + c.BasePath
	}
	if c.Autostart && c.Binary == "" {
		return fmt.Errorf("appium: autostart needs the binary")
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return nil
}

// URL of the WebDriver endpoint
func (c *Config) URL() string {
	return "http://" + c.Host + ":" + strconv.Itoa(c.Port) + strings.TrimSuffix(c.BasePath, "/")
}

func (c *Config) args() []string {
	if len(c.Args) > 0 {
		return c.Args
	}
	return []string{
		"--address", c.Host,
		"--port", strconv.Itoa(c.Port),
		"--base-path", c.BasePath,
	}
}
