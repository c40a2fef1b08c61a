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
	"context"
	"errors"
	"fmt"

	"github.com/tebeka/selenium"

	"github.com/adobe/pos-autotest/lib/locator"
)

// by converts the locator into the WebDriver strategy. The W3C mode of the client rewrites
// "id" and "name" into css selectors Appium rejects, so those go as xpath.
func by(l locator.Locator) (string, string) {
	switch l.Strategy {
	case "id":
		return selenium.ByXPATH, fmt.Sprintf("//*[@resource-id=%q or @name=%q]", l.Value, l.Value)
	case "name":
		return selenium.ByXPATH, fmt.Sprintf("//*[@name=%q or @text=%q]", l.Value, l.Value)
	}
	return l.Strategy, l.Value
}

// Find returns the element located on the screen. The WebDriver client has no context, so
// a done ctx only stops the call from starting, the request itself is bounded by the command timeout.
func (h *Handle) Find(ctx context.Context, l locator.Locator) (selenium.WebElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mobile: find %s: %w", l, err)
	}
	strategy, value := by(l)
	el, err := h.wd.FindElement(strategy, value)
	if err != nil {
		return nil, fmt.Errorf("mobile: find %s: %w", l, err)
	}
	return el, nil
}

// Tap the element
func (h *Handle) Tap(ctx context.Context, l locator.Locator) error {
	el, err := h.Find(ctx, l)
	if err != nil {
		return err
	}
	return el.Click()
}

// Type the text into the element
func (h *Handle) Type(ctx context.Context, l locator.Locator, text string) error {
	el, err := h.Find(ctx, l)
	if err != nil {
		return err
	}
	if err := el.Clear(); err != nil {
		return fmt.Errorf("mobile: clear %s: %w", l, err)
	}
	return el.SendKeys(text)
}

// Visible reports whether the element is on the screen, missing element is not an error
func (h *Handle) Visible(ctx context.Context, l locator.Locator) (bool, error) {
	el, err := h.Find(ctx, l)
	if err != nil {
		var serr *selenium.Error
		if errors.As(err, &serr) && serr.Err == "no such element" {
			return false, nil
		}
		return false, err
	}
	return el.IsDisplayed()
}

// Text of the element
func (h *Handle) Text(ctx context.Context, l locator.Locator) (string, error) {
	el, err := h.Find(ctx, l)
	if err != nil {
		return "", err
	}
	return el.Text()
}
