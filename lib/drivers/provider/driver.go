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

// Package provider implements interface for each automation handle provider
package provider

import (
	"context"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/platform"
	"github.com/adobe/pos-autotest/lib/session"
)

// FactoryList is a list of available drivers factories
var FactoryList []DriverFactory

// DriverFactory allows to generate new instances of the drivers
type DriverFactory interface {
	// Name of the driver
	Name() string

	// Generates new provider driver
	New() Driver
}

// Driver creates automation handles of one kind, it implements session.Constructor
type Driver interface {
	// Name of the driver
	Name() string

	// SetName of the driver instance, the name could carry a suffix like "test/mobile"
	SetName(name string)

	// Kind of the handles the driver creates
	Kind() platform.Kind

	// Give driver the run configuration and check if it's ok, should not start anything heavy
	// -> props - loaded configuration property set
	Prepare(props *config.Props) error

	// Open creates ready to use handle for the execution context
	// -> id - execution context which will own the handle
	Open(ctx context.Context, id session.ContextID) (session.Handle, error)

	// Shutdown stops the shared resources (servers, pools) when the suite is done
	Shutdown(ctx context.Context) error
}
