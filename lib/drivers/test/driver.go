/**
 * Copyright 2021-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Package test is the driver for tests - it creates nothing and just pretends to be a real one
package test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/provider"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
)

// FakePNG is returned by the fake handle screenshots
var FakePNG = []byte("\x89PNG\r\n\x1a\nfake")

// Factory implements provider.DriverFactory interface
type Factory struct{}

// Name shows name of the driver factory
func (*Factory) Name() string {
	return "test"
}

// New creates new provider driver
func (f *Factory) New() provider.Driver {
	return &Driver{name: f.Name(), kind: platform.KindWeb}
}

func init() {
	provider.FactoryList = append(provider.FactoryList, &Factory{})
}

// Driver implements provider.Driver interface
type Driver struct {
	name string
	kind platform.Kind
	cfg  Config

	opened atomic.Int64
	closed atomic.Int64

	mu     sync.Mutex
	owners map[session.ContextID]int // live handles per context
}

// New creates ready to use driver of the kind, used by the unit tests of the other packages
func New(kind platform.Kind, cfg Config) *Driver {
	return &Driver{name: "test/" + string(kind), kind: kind, cfg: cfg}
}

// Name returns name of the driver
func (d *Driver) Name() string {
	return d.name
}

// SetName also picks the kind from the suffix, "test/mobile" creates mobile handles
func (d *Driver) SetName(name string) {
	d.name = name
	if _, suffix, ok := strings.Cut(name, "/"); ok {
		d.kind = platform.Kind(suffix)
	}
}

// Kind of the created handles
func (d *Driver) Kind() platform.Kind {
	return d.kind
}

// Prepare initializes the driver
func (d *Driver) Prepare(props *config.Props) error {
	switch d.kind {
	case platform.KindWeb, platform.KindMobile, platform.KindAPI:
	default:
		return fmt.Errorf("test: unknown handle kind %q", d.kind)
	}
	return d.cfg.Apply(props)
}

// Open pretends to launch the automation engine
func (d *Driver) Open(ctx context.Context, id session.ContextID) (session.Handle, error) {
	logger := log.WithContext("test", "Open", string(id))

	if d.cfg.OpenDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.OpenDelay):
		}
	}
	if err := randomFail("Open", d.cfg.FailOpen); err != nil {
		logger.Error("RandomFail", "err", err)
		return nil, err
	}

	d.mu.Lock()
	if d.owners == nil {
		d.owners = make(map[session.ContextID]int)
	}
	d.owners[id]++
	d.mu.Unlock()

	n := d.opened.Add(1)
	logger.Debug("Handle opened", "kind", d.kind, "n", n)
	return &Handle{driver: d, id: id, n: n}, nil
}

// Shutdown does nothing
func (*Driver) Shutdown(context.Context) error {
	return nil
}

// Opened returns how many handles were created
func (d *Driver) Opened() int64 {
	return d.opened.Load()
}

// Closed returns how many handles were closed
func (d *Driver) Closed() int64 {
	return d.closed.Load()
}

// Live returns how many handles the context owns right now
func (d *Driver) Live(id session.ContextID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owners[id]
}

// Handle implements session.Handle and session.Screenshotter
type Handle struct {
	driver *Driver
	id     session.ContextID
	n      int64
	closed atomic.Bool
}

// Kind of the handle
func (h *Handle) Kind() platform.Kind {
	return h.driver.kind
}

// N is the sequence number of the handle within the driver, starts from 1
func (h *Handle) N() int64 {
	return h.n
}

// Close marks the handle closed, the second call is an error
func (h *Handle) Close(context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("test: handle %d closed twice", h.n)
	}
	h.driver.closed.Add(1)
	h.driver.mu.Lock()
	h.driver.owners[h.id]--
	if h.driver.owners[h.id] == 0 {
		delete(h.driver.owners, h.id)
	}
	h.driver.mu.Unlock()

	return randomFail("Close", h.driver.cfg.FailClose)
}

// Screenshot returns fake image
func (h *Handle) Screenshot(context.Context) ([]byte, error) {
	if h.closed.Load() {
		return nil, fmt.Errorf("test: screenshot of closed handle %d", h.n)
	}
	if err := randomFail("Screenshot", h.driver.cfg.FailScreenshot); err != nil {
		return nil, err
	}
	return FakePNG, nil
}

func randomFail(name string, probability uint8) error {
	// Do not fail on 0
	if probability == 0 {
		return nil
	}

	// Certainly fail on 255
	if probability == 255 {
		return fmt.Errorf("TEST: %s failed (%d)", name, probability)
	}

	// Fail on probability 1 - low, 254 - high (but still can not fail)
	if uint8(rand.Intn(254)) < probability { //nolint:gosec // G404 -- fine for test driver
		return fmt.Errorf("TEST: %s failed (%d)", name, probability)
	}

	return nil
}
