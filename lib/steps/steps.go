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

// Package steps is the step definitions library shared by the feature suites
package steps

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/locator"
	"github.com/adobe/pos-autotest/lib/scenario"
)

// Library holds what the steps need besides the scenario context
type Library struct {
	Locators  *locator.Map
	SchemaDir string        // Relative schema names are looked up here
	Timeout   time.Duration // Default wait for the visibility steps
	Interval  time.Duration // Polling interval of the waits
}

// Register adds all the steps to the scenario
func (l *Library) Register(sc *godog.ScenarioContext) {
	l.registerCommon(sc)
	l.registerWeb(sc)
	l.registerMobile(sc)
	l.registerAPI(sc)
}

// run finds the scenario context and turns its hard failure into the step error
func run(ctx context.Context, fn func(c *scenario.Context) error) error {
	c, err := scenario.FromContext(ctx)
	if err != nil {
		return err
	}
	return scenario.Guard(c, func() error { return fn(c) })
}

// expand replaces ${name} with the remembered value or the configuration property
func expand(c *scenario.Context, s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := c.Get(name); ok {
			return fmt.Sprint(v)
		}
		if c.Props() != nil {
			if v, ok := c.Props().Lookup(name); ok {
				return v
			}
		}
		return "${" + name + "}"
	})
}

// must aborts the attempt on the failed check unless the step is soft, the failure itself is
// already recorded by the assertion
func must(c *scenario.Context, soft string, ok bool) {
	if !ok && soft == "" {
		c.FailNow()
	}
}

func (l *Library) registerCommon(sc *godog.ScenarioContext) {
	sc.Step(`^I verify the soft assertions$`, l.verifySoft)
	sc.Step(`^I remember "([^"]*)" as "([^"]*)"$`, l.remember)
	sc.Step(`^"([^"]*)" should (softly )?be "([^"]*)"$`, l.valueIs)
}

func (*Library) verifySoft(ctx context.Context) error {
	return run(ctx, func(c *scenario.Context) error {
		c.Checkpoint()
		return nil
	})
}

func (*Library) remember(ctx context.Context, value, name string) error {
	return run(ctx, func(c *scenario.Context) error {
		c.Set(name, expand(c, value))
		return nil
	})
}

func (*Library) valueIs(ctx context.Context, expr, soft, want string) error {
	return run(ctx, func(c *scenario.Context) error {
		must(c, soft, assert.Equal(c, want, expand(c, expr), "value of %s", expr))
		return nil
	})
}

// FromConfig creates the library: locators.file, api.schema.dir, timeout.default and
// wait.interval keys
func FromConfig(props *config.Props) (l *Library, err error) {
	l = &Library{SchemaDir: props.StringOr("api.schema.dir", "schemas")}
	if l.Timeout, err = props.DurationOr("timeout.default", 15*time.Second); err != nil {
		return nil, err
	}
	if l.Interval, err = props.DurationOr("wait.interval", 250*time.Millisecond); err != nil {
		return nil, err
	}
	if path := props.StringOr("locators.file", ""); path != "" {
		if l.Locators, err = locator.Load(path); err != nil {
			return nil, err
		}
	}
	return l, nil
}
