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
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Page operations used by the step library. The waits are bounded by the context default
// timeout set on Open.

// Goto navigates the page, relative url is resolved against the base url
func (h *Handle) Goto(_ context.Context, url string) error {
	resp, err := h.page.Goto(url)
	if err != nil {
		return fmt.Errorf("web: navigate to %q: %w", url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("web: navigate to %q: status %d", url, resp.Status())
	}
	return nil
}

// Click the element
func (h *Handle) Click(_ context.Context, selector string) error {
	return h.page.Locator(selector).Click()
}

// Fill the input element with the value
func (h *Handle) Fill(_ context.Context, selector, value string) error {
	return h.page.Locator(selector).Fill(value)
}

// Visible checks the element right now, it doesn't wait
func (h *Handle) Visible(_ context.Context, selector string) (bool, error) {
	return h.page.Locator(selector).First().IsVisible()
}

// Text returns the rendered text of the element
func (h *Handle) Text(_ context.Context, selector string) (string, error) {
	return h.page.Locator(selector).InnerText(playwright.LocatorInnerTextOptions{})
}

// URL of the current page
func (h *Handle) URL() string {
	return h.page.URL()
}
