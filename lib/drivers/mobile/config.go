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

package mobile

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"github.com/adobe/pos-autotest/lib/appium"
	"github.com/adobe/pos-autotest/lib/config"
)

// Capabilities the W3C spec defines, everything else needs the vendor prefix
var w3cCapabilities = map[string]bool{
	"platformName":              true,
	"browserName":               true,
	"browserVersion":            true,
	"acceptInsecureCerts":       true,
	"pageLoadStrategy":          true,
	"proxy":                     true,
	"setWindowRect":             true,
	"timeouts":                  true,
	"strictFileInteractability": true,
	"unhandledPromptBehavior":   true,
	"webSocketUrl":              true,
}

// Shortcut properties for the most used capabilities
var capabilityKeys = map[string]string{
	"mobile.platform.name":    "platformName",
	"mobile.automation.name":  "automationName",
	"mobile.device.name":      "deviceName",
	"mobile.platform.version": "platformVersion",
	"mobile.udid":             "udid",
	"mobile.app":              "app",
	"mobile.app.package":      "appPackage",
	"mobile.app.activity":     "appActivity",
	"mobile.bundle.id":        "bundleId",
}

// Appium base constraints want these as strings, "14" is not a number here
var stringCapabilities = map[string]bool{
	"platformVersion": true,
	"deviceName":      true,
	"udid":            true,
}

// Config of the mobile driver
type Config struct {
	Capabilities   map[string]any // Merged capabilities with vendor prefixes
	ImplicitWait   time.Duration  // WebDriver implicit wait, 0 keeps the server default
	CommandTimeout time.Duration  // Upper bound of one WebDriver request including session creation

	Appium appium.Config
}

// Apply builds the capabilities: the YAML file first, then mobile.capability.* keys,
// then the shortcut keys. Only the mobile.capability.* values are typed, the shortcut keys
// are strings.
func (c *Config) Apply(props *config.Props) (err error) {
	caps := make(map[string]any)

	if path := props.StringOr("mobile.capabilities.file", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("mobile: unable to read capabilities file: %w", err)
		}
		// ghodss/yaml goes through JSON, so nested maps come as map[string]any
		var fromFile map[string]any
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return fmt.Errorf("mobile: unable to parse capabilities file %q: %w", path, err)
		}
		maps.Copy(caps, fromFile)
	}

	for name, value := range props.Prefixed("mobile.capability.") {
		caps[name] = typedValue(value)
	}
	for key, name := range capabilityKeys {
		if v, ok := props.Lookup(key); ok {
			caps[name] = strings.TrimSpace(v)
		}
	}
	for name, v := range caps {
		if stringCapabilities[name] {
			caps[name] = fmt.Sprint(v)
		}
	}

	c.Capabilities = vendorPrefixed(caps)
	if c.ImplicitWait, err = props.DurationOr("mobile.implicit.wait", 0); err != nil {
		return err
	}
	if c.CommandTimeout, err = props.DurationOr("mobile.command.timeout", 5*time.Minute); err != nil {
		return err
	}
	if err := c.Appium.Apply(props); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks the capabilities are enough to create a session
func (c *Config) Validate() error {
	if _, ok := c.Capabilities["platformName"]; !ok {
		return fmt.Errorf("mobile: platformName capability is required")
	}
	return nil
}

// typedValue keeps booleans and numbers typed, appium is strict about them
func typedValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "true" || s == "false" {
		return s == "true"
	}
	// Leading zeros are ids (udid, pin codes), not numbers
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && (s == "0" || !strings.HasPrefix(s, "0")) {
		return i
	}
	return s
}

func vendorPrefixed(caps map[string]any) map[string]any {
	out := make(map[string]any, len(caps))
	for k, v := range caps {
		if !w3cCapabilities[k] && !strings.Contains(k, ":") {
			k = "appium:" + k
		}
		out[k] = v
	}
	return out
}
