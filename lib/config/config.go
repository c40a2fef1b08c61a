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

// Package config loads the run configuration from properties files and gives typed access to it
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/magiconair/properties"
	"github.com/spf13/cast"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/util"
)

// EnvPrefix is prepended to the upper-cased key with dots replaced by underscores,
// so AUTOTEST_WEB_HEADLESS overrides web.headless
const EnvPrefix = "AUTOTEST_"

// Options point to the property files
type Options struct {
	Dir  string // Directory with <name>.properties, env/ and platform/ subdirectories
	Name string // Base file name without extension, "autotest" when empty
	Env  string // Optional env overlay env/<env>.properties

	// Environment variables, os.Environ() when nil
	Environ []string
}

// Props is the immutable configuration property set. Typed values are converted once
// and cached, so it's safe and cheap to use from parallel scenarios.
type Props struct {
	props   *properties.Properties
	env     map[string]string
	sources []string

	cache sync.Map // "<type>:<key>" -> converted value
}

// Load reads the base file and the env overlay, later sources win
func Load(opts Options) (*Props, error) {
	logger := log.WithFunc("config", "Load")

	name := opts.Name
	if name == "" {
		name = "autotest"
	}
	files := []string{filepath.Join(opts.Dir, name+".properties")}
	if opts.Env != "" {
		files = append(files, filepath.Join(opts.Dir, "env", opts.Env+".properties"))
	}

	p, err := properties.LoadFiles(files, properties.UTF8, false)
	if err != nil {
		return nil, fmt.Errorf("config: unable to load %v: %w", files, err)
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}

	out := newProps(p, environ)
	out.sources = files
	logger.Debug("Configuration loaded", "files", files, "keys", p.Len(), "env_overrides", len(out.env))
	return out, nil
}

// FromMap creates the property set from the map, environment is not consulted
func FromMap(m map[string]string) *Props {
	out := newProps(properties.LoadMap(m), []string{})
	out.sources = []string{"map"}
	return out
}

func newProps(p *properties.Properties, environ []string) *Props {
	out := &Props{props: p, env: make(map[string]string)}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		out.env[strings.TrimPrefix(k, EnvPrefix)] = v
	}
	return out
}

// EnvName converts key to the environment override variable name
func EnvName(key string) string {
	return EnvPrefix + envKey(key)
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// WithPlatform returns a new set with platform/<mode>.properties overlaid, a missing
// overlay file is not an error
func (p *Props) WithPlatform(dir, mode string) (*Props, error) {
	path := filepath.Join(dir, "platform", strings.ToLower(mode)+".properties")
	overlay, err := properties.LoadFiles([]string{path}, properties.UTF8, true)
	if err != nil {
		return nil, fmt.Errorf("config: unable to load platform overlay %q: %w", path, err)
	}

	merged := properties.NewProperties()
	merged.Merge(p.props)
	merged.Merge(overlay)

	out := &Props{props: merged, env: p.env}
	out.sources = append(append([]string(nil), p.sources...), path)
	return out, nil
}

// With returns a copy with the values overridden, used for per-run CLI flags
func (p *Props) With(values map[string]string) *Props {
	merged := properties.NewProperties()
	merged.Merge(p.props)
	merged.Merge(properties.LoadMap(values))
	return &Props{props: merged, env: p.env, sources: append(append([]string(nil), p.sources...), "overrides")}
}

// Sources lists where the values came from, in overlay order
func (p *Props) Sources() []string {
	return p.sources
}

// Lookup returns the raw value, environment override first
func (p *Props) Lookup(key string) (string, bool) {
	if v, ok := p.env[envKey(key)]; ok {
		return v, true
	}
	return p.props.Get(key)
}

// Has reports whether the key is set
func (p *Props) Has(key string) bool {
	_, ok := p.Lookup(key)
	return ok
}

// Keys returns the sorted keys from the files
func (p *Props) Keys() []string {
	keys := p.props.Keys()
	sort.Strings(keys)
	return keys
}

// Prefixed returns key->value for all the keys starting with prefix, prefix is stripped
func (p *Props) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for _, k := range p.props.Keys() {
		if strings.HasPrefix(k, prefix) {
			v, _ := p.Lookup(k)
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// String returns the required string value
func (p *Props) String(key string) (string, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return "", &Error{Key: key, Type: "string", Err: ErrMissingKey}
	}
	return v, nil
}

// StringOr returns the value or def when the key is not set
func (p *Props) StringOr(key, def string) string {
	if v, ok := p.Lookup(key); ok {
		return v
	}
	return def
}

// Int returns the required integer value, always parsed as decimal
func (p *Props) Int(key string) (int, error) {
	return typed(p, key, "int", func(v any) (int, error) {
		return strconv.Atoi(cast.ToString(v))
	})
}

// IntOr returns the integer or def when the key is not set, malformed value is still an error
func (p *Props) IntOr(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Int(key)
}

// Bool returns the required boolean value
func (p *Props) Bool(key string) (bool, error) {
	return typed(p, key, "bool", cast.ToBoolE)
}

// BoolOr returns the boolean or def when the key is not set
func (p *Props) BoolOr(key string, def bool) (bool, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Bool(key)
}

// Float returns the required float value
func (p *Props) Float(key string) (float64, error) {
	return typed(p, key, "float", cast.ToFloat64E)
}

// FloatOr returns the float or def when the key is not set
func (p *Props) FloatOr(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Float(key)
}

// Duration returns the required duration, plain numbers are milliseconds
func (p *Props) Duration(key string) (time.Duration, error) {
	return typed(p, key, "duration", func(v any) (time.Duration, error) {
		d, err := util.ParseDuration(cast.ToString(v))
		return d.Std(), err
	})
}

// DurationOr returns the duration or def when the key is not set
func (p *Props) DurationOr(key string, def time.Duration) (time.Duration, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Duration(key)
}

// Strings returns the comma separated list, empty items are skipped
func (p *Props) Strings(key string) ([]string, error) {
	return typed(p, key, "list", func(v any) ([]string, error) {
		var out []string
		for _, s := range strings.Split(cast.ToString(v), ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	})
}

func typed[T any](p *Props, key, typ string, conv func(any) (T, error)) (T, error) {
	var zero T
	ck := typ + ":" + key
	if v, ok := p.cache.Load(ck); ok {
		return v.(T), nil
	}

	raw, ok := p.Lookup(key)
	if !ok {
		return zero, &Error{Key: key, Type: typ, Err: ErrMissingKey}
	}
	v, err := conv(strings.TrimSpace(raw))
	if err != nil {
		return zero, &Error{Key: key, Value: raw, Type: typ, Err: ErrMalformedValue, Cause: err}
	}

	actual, _ := p.cache.LoadOrStore(ck, v)
	return actual.(T), nil
}
