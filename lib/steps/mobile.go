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

package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"

	"github.com/adobe/pos-autotest/lib/locator"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/scenario"
	"github.com/adobe/pos-autotest/lib/wait"
)

// Device is the part of the mobile handle the steps use
type Device interface {
	Tap(ctx context.Context, l locator.Locator) error
	Type(ctx context.Context, l locator.Locator, text string) error
	Visible(ctx context.Context, l locator.Locator) (bool, error)
	Text(ctx context.Context, l locator.Locator) (string, error)
}

func (l *Library) registerMobile(sc *godog.ScenarioContext) {
	sc.Step(`^I tap "([^"]*)"$`, l.tap)
	sc.Step(`^I type "([^"]*)" into "([^"]*)"$`, l.typeInto)
	sc.Step(`^"([^"]*)" should be displayed$`, l.displayed)
	sc.Step(`^"([^"]*)" should be displayed within (\d+) seconds?$`, l.displayedWithin)
	sc.Step(`^screen element "([^"]*)" should (softly )?contain "([^"]*)"$`, l.screenTextContains)
}

func device(c *scenario.Context) (Device, error) {
	if c.Session() == nil {
		return nil, fmt.Errorf("steps: no session bound")
	}
	h, err := c.Session().Handle(platform.KindMobile)
	if err != nil {
		return nil, err
	}
	d, ok := h.(Device)
	if !ok {
		return nil, fmt.Errorf("steps: mobile handle %T can't drive the device", h)
	}
	return d, nil
}

// element resolves the mobile locator, the map is required since there is no default strategy
func (l *Library) element(key string) (locator.Locator, error) {
	if l.Locators == nil {
		return locator.Locator{}, fmt.Errorf("%w %q: no locator map loaded", locator.ErrUnknownKey, key)
	}
	return l.Locators.Get(platform.KindMobile, key)
}

func (l *Library) tap(ctx context.Context, key string) error {
	return run(ctx, func(c *scenario.Context) error {
		d, err := device(c)
		if err != nil {
			return err
		}
		el, err := l.element(key)
		if err != nil {
			return err
		}
		c.Inc("mobile.taps")
		return d.Tap(c.Context(), el)
	})
}

func (l *Library) typeInto(ctx context.Context, text, key string) error {
	return run(ctx, func(c *scenario.Context) error {
		d, err := device(c)
		if err != nil {
			return err
		}
		el, err := l.element(key)
		if err != nil {
			return err
		}
		return d.Type(c.Context(), el, expand(c, text))
	})
}

func (l *Library) displayed(ctx context.Context, key string) error {
	return l.waitDisplayed(ctx, key, l.Timeout)
}

func (l *Library) displayedWithin(ctx context.Context, key string, seconds int) error {
	return l.waitDisplayed(ctx, key, time.Duration(seconds)*time.Second)
}

func (l *Library) waitDisplayed(ctx context.Context, key string, timeout time.Duration) error {
	return run(ctx, func(c *scenario.Context) error {
		d, err := device(c)
		if err != nil {
			return err
		}
		el, err := l.element(key)
		if err != nil {
			return err
		}
		err = wait.Until(c.Context(), timeout, l.Interval, func(ctx context.Context) (bool, error) {
			return d.Visible(ctx, el)
		})
		if err != nil {
			return fmt.Errorf("element %q is not displayed: %w", key, err)
		}
		return nil
	})
}

func (l *Library) screenTextContains(ctx context.Context, key, soft, want string) error {
	return run(ctx, func(c *scenario.Context) error {
		d, err := device(c)
		if err != nil {
			return err
		}
		el, err := l.element(key)
		if err != nil {
			return err
		}
		text, err := d.Text(c.Context(), el)
		if err != nil {
			return err
		}
		must(c, soft, assert.Contains(c, text, expand(c, want), "text of %s", key))
		return nil
	})
}
