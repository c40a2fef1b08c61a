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

package scenario

import (
	"time"

	"github.com/adobe/pos-autotest/lib/config"
)

// RetryConfig is the explicit per-scenario retry policy
type RetryConfig struct {
	Enabled     bool
	MaxAttempts int           // Attempts including the first one
	Delay       time.Duration // Pause before the next attempt
}

// Attempts returns the attempts ceiling, disabled retry means exactly one
func (r RetryConfig) Attempts() int {
	if !r.Enabled || r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// RetryFromConfig reads retry.enabled, retry.max.attempts and retry.delay
func RetryFromConfig(props *config.Props) (r RetryConfig, err error) {
	if r.Enabled, err = props.BoolOr("retry.enabled", true); err != nil {
		return r, err
	}
	if r.MaxAttempts, err = props.IntOr("retry.max.attempts", 2); err != nil {
		return r, err
	}
	if r.Delay, err = props.DurationOr("retry.delay", 0); err != nil {
		return r, err
	}
	return r, nil
}
