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

	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/scenario"
	"github.com/adobe/pos-autotest/lib/wait"
)

// Browser is the part of the web handle the steps use
type Browser interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
}

func (l *Library) registerWeb(sc *godog.ScenarioContext) {
	sc.Step(`^I open "([^"]*)"$`, l.open)
	sc.Step(`^I click "([^"]*)"$`, l.click)
	sc.Step(`^I fill "([^"]*)" with "([^"]*)"$`, l.fill)
	sc.Step(`^"([^"]*)" should be visible$`, l.visible)
	sc.Step(`^"([^"]*)" should be visible within (\d+) seconds?$`, l.visibleWithin)
	sc.Step(`^"([^"]*)" should (softly )?contain "([^"]*)"$`, l.textContains)
}

func browser(c *scenario.Context) (Browser, error) {
	if c.Session() == nil {
		return nil, fmt.Errorf("steps: no session bound")
	}
	h, err := c.Session().Handle(platform.KindWeb)
	if err != nil {
		return nil, err
	}
	b, ok := h.(Browser)
	if !ok {
		return nil, fmt.Errorf("steps: web handle %T can't drive the page", h)
	}
	return b, nil
}

// selector resolves the locator map key, without the map the key is the selector itself
func (l *Library) selector(key string) (string, error) {
	if l.Locators == nil {
		return key, nil
	}
	return l.Locators.Selector(key)
}

func (*Library) open(ctx context.Context, url string) error {
	return run(ctx, func(c *scenario.Context) error {
		b, err := browser(c)
		if err != nil {
			return err
		}
		return b.Goto(c.Context(), expand(c, url))
	})
}

func (l *Library) click(ctx context.Context, key string) error {
	return run(ctx, func(c *scenario.Context) error {
		b, err := browser(c)
		if err != nil {
			return err
		}
		sel, err := l.selector(key)
		if err != nil {
			return err
		}
		c.Inc("web.clicks")
		return b.Click(c.Context(), sel)
	})
}

func (l *Library) fill(ctx context.Context, key, value string) error {
	return run(ctx, func(c *scenario.Context) error {
		b, err := browser(c)
		if err != nil {
			return err
		}
		sel, err := l.selector(key)
		if err != nil {
			return err
		}
		return b.Fill(c.Context(), sel, expand(c, value))
	})
}

func (l *Library) visible(ctx context.Context, key string) error {
	return l.waitVisible(ctx, key, l.Timeout)
}

func (l *Library) visibleWithin(ctx context.Context, key string, seconds int) error {
	return l.waitVisible(ctx, key, time.Duration(seconds)*time.Second)
}

func (l *Library) waitVisible(ctx context.Context, key string, timeout time.Duration) error {
	return run(ctx, func(c *scenario.Context) error {
		b, err := browser(c)
		if err != nil {
			return err
		}
		sel, err := l.selector(key)
		if err != nil {
			return err
		}
		err = wait.Until(c.Context(), timeout, l.Interval, func(ctx context.Context) (bool, error) {
			return b.Visible(ctx, sel)
		})
		if err != nil {
			return fmt.Errorf("element %q is not visible: %w", key, err)
		}
		return nil
	})
}

func (l *Library) textContains(ctx context.Context, key, soft, want string) error {
	return run(ctx, func(c *scenario.Context) error {
		b, err := browser(c)
		if err != nil {
			return err
		}
		sel, err := l.selector(key)
		if err != nil {
			return err
		}
		text, err := b.Text(c.Context(), sel)
		if err != nil {
			return err
		}
		must(c, soft, assert.Contains(c, text, expand(c, want), "text of %s", key))
		return nil
	})
}
