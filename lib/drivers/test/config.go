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

package test

import (
	"fmt"
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// Config of the test driver, the keys are prefixed with "test."
type Config struct {
	FailPrepare    uint8 // Fail on Prepare (0 - not, 1-254 random, 255-yes)
	FailOpen       uint8 // Fail on Open (0 - not, 1-254 random, 255-yes)
	FailClose      uint8 // Fail on handle Close (0 - not, 1-254 random, 255-yes)
	FailScreenshot uint8 // Fail on Screenshot (0 - not, 1-254 random, 255-yes)

	OpenDelay time.Duration // Pretend the handle takes time to come up
}

// Apply reads the config from the property set
func (c *Config) Apply(props *config.Props) (err error) {
	if props == nil {
		return nil
	}
	for key, dst := range map[string]*uint8{
		"test.fail.prepare":    &c.FailPrepare,
		"test.fail.open":       &c.FailOpen,
		"test.fail.close":      &c.FailClose,
		"test.fail.screenshot": &c.FailScreenshot,
	} {
		v, err := props.IntOr(key, int(*dst))
		if err != nil {
			return err
		}
		if v < 0 || v > 255 {
			return fmt.Errorf("test: %s should be within 0..255: %d", key, v)
		}
		*dst = uint8(v)
	}
	if c.OpenDelay, err = props.DurationOr("test.open.delay", c.OpenDelay); err != nil {
		return err
	}

	return randomFail("ConfigApply", c.FailPrepare)
}
