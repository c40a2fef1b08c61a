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

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey means the key is not present in any source
	ErrMissingKey = errors.New("configuration key is missing")
	// ErrMalformedValue means the value can't be converted to the requested type
	ErrMalformedValue = errors.New("configuration value is malformed")
)

// Error names the key which failed the lookup
type Error struct {
	Key   string
	Value string // Raw value, empty when the key is missing
	Type  string // Requested type
	Err   error  // ErrMissingKey or ErrMalformedValue
	Cause error  // Conversion error for malformed values
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrMissingKey) {
		return fmt.Sprintf("config: required key %q is not set", e.Key)
	}
	msg := fmt.Sprintf("config: key %q value %q is not a valid %s", e.Key, e.Value, e.Type)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
