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

// Package mobile creates device sessions through the Appium server
package mobile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tebeka/selenium"

	"github.com/adobe/pos-autotest/lib/appium"
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
	return "mobile"
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
	name   string
	cfg    Config
	server *appium.Manager
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
	return platform.KindMobile
}

// Prepare reads the capabilities, the server is not touched until the first Open
func (d *Driver) Prepare(props *config.Props) error {
	if err := d.cfg.Apply(props); err != nil {
		return err
	}
	d.server = appium.New(d.cfg.Appium)
	// The client is package wide in selenium, a stalled server must not block the scenario forever
	selenium.HTTPClient = &http.Client{Timeout: d.cfg.CommandTimeout}
	log.WithFunc("mobile", "Prepare").Debug("Mobile driver prepared", "url", d.server.URL(), "capabilities", d.cfg.Capabilities)
	return nil
}

// Server returns the appium server manager
func (d *Driver) Server() *appium.Manager {
	return d.server
}

// Open takes the server reference and creates the device session
func (d *Driver) Open(ctx context.Context, id session.ContextID) (session.Handle, error) {
	logger := log.WithContext("mobile", "Open", string(id))

	if err := d.server.Acquire(ctx); err != nil {
		return nil, err
	}

	wd, err := selenium.NewRemote(selenium.Capabilities(d.cfg.Capabilities), d.server.URL())
	if err != nil {
		if rerr := d.server.Release(ctx); rerr != nil {
			logger.Warn("Unable to release server reference", "err", rerr)
		}
		return nil, fmt.Errorf("mobile: unable to create device session: %w", err)
	}

	if d.cfg.ImplicitWait > 0 {
		if err := wd.SetImplicitWaitTimeout(d.cfg.ImplicitWait); err != nil {
			logger.Warn("Unable to set implicit wait", "err", err)
		}
	}

	logger.Info("Device session created", "session", wd.SessionID())
	return &Handle{wd: wd, server: d.server, id: id}, nil
}

// Shutdown stops the server if the driver started it
func (d *Driver) Shutdown(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}

// Handle is the device session, it implements session.Handle and session.Screenshotter
type Handle struct {
	wd     selenium.WebDriver
	server *appium.Manager
	id     session.ContextID

	closeOnce sync.Once
	closeErr  error
}

// From returns the mobile handle of the session
func From(s *session.Session) (*Handle, error) {
	h, err := s.Handle(platform.KindMobile)
	if err != nil {
		return nil, err
	}
	return h.(*Handle), nil
}

// Kind of the handle
func (*Handle) Kind() platform.Kind {
	return platform.KindMobile
}

// Driver returns the WebDriver client of the device session
func (h *Handle) Driver() selenium.WebDriver {
	return h.wd
}

// Screenshot of the device screen
func (h *Handle) Screenshot(context.Context) ([]byte, error) {
	return h.wd.Screenshot()
}

// Close quits the device session and releases the server reference
func (h *Handle) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		var errs []error
		if err := h.wd.Quit(); err != nil {
			errs = append(errs, fmt.Errorf("quit device session: %w", err))
		}
		if err := h.server.Release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release appium server: %w", err))
		}
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}
