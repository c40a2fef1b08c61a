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

// Package drivers loads the handle providers and wires them into the session registry
package drivers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/drivers/provider"
	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/session"

	// Load all the available provider drivers
	_ "github.com/adobe/pos-autotest/lib/drivers/api"
	_ "github.com/adobe/pos-autotest/lib/drivers/mobile"
	_ "github.com/adobe/pos-autotest/lib/drivers/test"
	_ "github.com/adobe/pos-autotest/lib/drivers/web"
)

// ConfigKey lists the drivers to load, comma separated
const ConfigKey = "drivers"

// DefaultDrivers are loaded when the configuration doesn't say otherwise
var DefaultDrivers = []string{"web", "mobile", "api"}

// Set is the prepared drivers of the run
type Set struct {
	drivers  []provider.Driver
	registry *session.Registry
}

// Init loads and prepares the drivers, one failed driver fails the run since scenarios
// can't be executed without it
func Init(props *config.Props, names ...string) (*Set, error) {
	logger := log.WithFunc("drivers", "Init")
	logger.Debug("Running init...")
	defer logger.Debug("Init completed")

	if len(names) == 0 {
		if props.Has(ConfigKey) {
			var err error
			if names, err = props.Strings(ConfigKey); err != nil {
				return nil, err
			}
		} else {
			names = DefaultDrivers
		}
	}

	set := &Set{registry: session.NewRegistry()}
	kinds := make(map[string]string)
	for _, name := range names {
		// One driver could be used multiple times by utilizing name suffixes
		idx := slices.IndexFunc(provider.FactoryList, func(f provider.DriverFactory) bool {
			return name == f.Name() || strings.HasPrefix(name, f.Name()+"/")
		})
		if idx < 0 {
			return nil, fmt.Errorf("drivers: unknown driver %q", name)
		}
		drv := provider.FactoryList[idx].New()
		drv.SetName(name)
		if prev, ok := kinds[string(drv.Kind())]; ok {
			return nil, fmt.Errorf("drivers: %q and %q both provide %s handles", prev, name, drv.Kind())
		}
		kinds[string(drv.Kind())] = name

		if err := drv.Prepare(props); err != nil {
			return nil, fmt.Errorf("drivers: unable to prepare %q: %w", name, err)
		}
		set.drivers = append(set.drivers, drv)
		set.registry.Register(drv)
		logger.Info("Provider driver activated", "driver", name, "kind", drv.Kind())
	}

	return set, nil
}

// Registry returns the session registry backed by the drivers
func (s *Set) Registry() *session.Registry {
	return s.registry
}

// Driver returns loaded driver by name, nil if it's not loaded
func (s *Set) Driver(name string) provider.Driver {
	for _, d := range s.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Shutdown releases all the sessions left and stops the drivers shared resources
func (s *Set) Shutdown(ctx context.Context) error {
	logger := log.WithFunc("drivers", "Shutdown")

	errs := []error{s.registry.ReleaseAll(ctx)}
	for _, d := range slices.Backward(s.drivers) {
		if err := d.Shutdown(ctx); err != nil {
			logger.Warn("Driver shutdown failed", "driver", d.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}
