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

// Package api creates HTTP request contexts for the backend checks
package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

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
	return "api"
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
	return platform.KindAPI
}

// Prepare reads the api configuration
func (d *Driver) Prepare(props *config.Props) error {
	return d.cfg.Apply(props)
}

// Open creates request context with own cookie jar and connection pool
func (d *Driver) Open(_ context.Context, id session.ContextID) (session.Handle, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if d.cfg.Insecure {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // G402 -- test environments with self-signed certs
	}

	h := &Handle{
		id:        id,
		cfg:       d.cfg,
		transport: base,
		client: &http.Client{
			Timeout:   d.cfg.Timeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(base),
		},
	}
	log.WithContext("api", "Open", string(id)).Debug("Request context created", "base_url", d.cfg.BaseURL)
	return h, nil
}

// Shutdown does nothing
func (*Driver) Shutdown(context.Context) error {
	return nil
}
