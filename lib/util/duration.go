/**
 * Copyright 2024-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration accepts plain numbers (milliseconds, the way timeouts are written in the
// properties files) and go durations extended with day & week units
type Duration time.Duration

var (
	durationPart = regexp.MustCompile(`(\d*\.\d+|\d+)([a-zA-Zµ]*)`)

	// Hours per extended unit
	extendedUnits = map[string]time.Duration{
		"d": 24,
		"D": 24,
		"w": 7 * 24,
		"W": 7 * 24,
	}
)

// ParseDuration parses "1500", "30s", "1m30s" or "2d4h"
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}

	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	parts := durationPart.FindAllStringSubmatch(s, -1)
	if len(parts) == 0 || len(strings.Join(flatten(parts), "")) != len(s) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var sum time.Duration
	for _, p := range parts {
		num, unit := p[1], p[2]
		if hours, ok := extendedUnits[unit]; ok {
			dur, err := time.ParseDuration(num + "h")
			if err != nil {
				return 0, err
			}
			sum += dur * hours
			continue
		}
		dur, err := time.ParseDuration(num + unit)
		if err != nil {
			return 0, err
		}
		sum += dur
	}

	if neg {
		sum = -sum
	}
	return Duration(sum), nil
}

func flatten(parts [][]string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p[0])
	}
	return out
}

// Std returns the stdlib duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText represents Duration as go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is used by yaml & properties decoding
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalJSON accepts both number of nanoseconds and string
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		return d.UnmarshalText([]byte(value))
	}
	return fmt.Errorf("incorrect duration type %T", v)
}
