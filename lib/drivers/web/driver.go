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

// Package web creates browser sessions with Playwright
package web

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/provider"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
)

// Factory implements provider.DriverFactory interface
type Factory struct{}

// Name shows name of the driver factory
func (*Factory) Name() string {
	return "web"
}

// New creates new provider driver
func (f *Factory) New() provider.Driver {
	return &Driver{name: f.Name()}
}

func init() {
	provider.FactoryList = append(provider.FactoryList, &Factory{})
}

// Driver implements provider.Driver interface
type Driver struct {
	name string
	cfg  Config
}

// Name returns name of the driver
func (d *Driver) Name() string {
	return d.name
}

// SetName of the driver instance
func (d *Driver) SetName(name string) {
	d.name = name
}

// Kind of the created handles
func (*Driver) Kind() platform.Kind {
	return platform.KindWeb
}

// Prepare reads the browser configuration
func (d *Driver) Prepare(props *config.Props) error {
	return d.cfg.Apply(props)
}

// Open starts the engine, launches the browser and opens a page in a new context. Every
// context gets the whole stack, so the parallel scenarios share nothing.
func (d *Driver) Open(_ context.Context, id session.ContextID) (session.Handle, error) {
	logger := log.WithContext("web", "Open", string(id))
	h := &Handle{id: id}

	var err error
	if h.pw, err = playwright.Run(); err != nil {
		return nil, fmt.Errorf("web: could not start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch d.cfg.Browser {
	case "firefox":
		bt = h.pw.Firefox
	case "webkit":
		bt = h.pw.WebKit
	default:
		bt = h.pw.Chromium
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
	}
	if d.cfg.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(d.cfg.SlowMo.Milliseconds()))
	}
	if h.browser, err = bt.Launch(launch); err != nil {
		h.Close(context.Background())
		return nil, fmt.Errorf("web: could not launch %s: %w", d.cfg.Browser, err)
	}

	opts := playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: d.cfg.ViewportWidth, Height: d.cfg.ViewportHeight},
		IgnoreHttpsErrors: playwright.Bool(d.cfg.IgnoreHTTPSErrors),
	}
	if d.cfg.BaseURL != "" {
		opts.BaseURL = playwright.String(d.cfg.BaseURL)
	}
	if d.cfg.Locale != "" {
		opts.Locale = playwright.String(d.cfg.Locale)
	}
	if d.cfg.RecordVideo {
		dir := d.cfg.VideoDir(string(id))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("Unable to create video dir, recording disabled", "dir", dir, "err", err)
		} else {
			opts.RecordVideo = &playwright.RecordVideo{Dir: dir}
		}
	}
	if h.context, err = h.browser.NewContext(opts); err != nil {
		h.Close(context.Background())
		return nil, fmt.Errorf("web: could not create browser context: %w", err)
	}
	h.context.SetDefaultTimeout(float64(d.cfg.DefaultTimeout.Milliseconds()))
	h.context.SetDefaultNavigationTimeout(float64(d.cfg.NavigationTimeout.Milliseconds()))

	if h.page, err = h.context.NewPage(); err != nil {
		h.Close(context.Background())
		return nil, fmt.Errorf("web: could not create page: %w", err)
	}

	logger.Info("Browser session created", "browser", d.cfg.Browser, "headless", d.cfg.Headless)
	return h, nil
}

// Shutdown does nothing, every handle owns its engine
func (*Driver) Shutdown(context.Context) error {
	return nil
}

// Handle is the browser session: engine, browser, context and page
type Handle struct {
	id session.ContextID

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// From returns the web handle of the session
func From(s *session.Session) (*Handle, error) {
	h, err := s.Handle(platform.KindWeb)
	if err != nil {
		return nil, err
	}
	return h.(*Handle), nil
}

// Kind of the handle
func (*Handle) Kind() platform.Kind {
	return platform.KindWeb
}

// Page returns the page of the session
func (h *Handle) Page() playwright.Page {
	return h.page
}

// Context returns the browser context of the session
func (h *Handle) Context() playwright.BrowserContext {
	return h.context
}

// Screenshot of the full page
func (h *Handle) Screenshot(context.Context) ([]byte, error) {
	return h.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

// VideoPath returns where the page video is written, the file is complete after Close
func (h *Handle) VideoPath() string {
	if h.page == nil || h.page.Video() == nil {
		return ""
	}
	path, err := h.page.Video().Path()
	if err != nil {
		return ""
	}
	return path
}

// Close tears the stack down: page, context (finishes the video), browser, engine
func (h *Handle) Close(context.Context) error {
	h.closeOnce.Do(func() {
		var errs []error
		if h.page != nil {
			if err := h.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if h.context != nil {
			if err := h.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if h.browser != nil {
			if err := h.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if h.pw != nil {
			if err := h.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop playwright: %w", err))
			}
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}
