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

package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/platform"
)

const sample = `
login.username:
  web: {strategy: css, value: "#username"}
  mobile: {strategy: accessibility id, value: usernameInput}
login.submit:
  web: {strategy: testid, value: login-submit}
  mobile: {strategy: -android uiautomator, value: 'new UiSelector().text("Sign in")'}
order.total:
  web: {strategy: xpath, value: "//span[@class='total']"}
tables.open:
  mobile: {strategy: id, value: com.pos:id/open_table}
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"login.submit", "login.username", "order.total", "tables.open"}, m.Keys())

	l, err := m.Get(platform.KindMobile, "login.username")
	require.NoError(t, err)
	assert.Equal(t, Locator{Strategy: "accessibility id", Value: "usernameInput"}, l)

	sel, err := m.Selector("login.submit")
	require.NoError(t, err)
	assert.Equal(t, "data-testid=login-submit", sel)

	sel, err = m.Selector("order.total")
	require.NoError(t, err)
	assert.Equal(t, "xpath=//span[@class='total']", sel)
}

func TestGet_Errors(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	_, err = m.Get(platform.KindWeb, "login.password")
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = m.Get(platform.KindWeb, "tables.open")
	assert.ErrorIs(t, err, ErrMissingPlatform)

	_, err = m.Get(platform.KindAPI, "login.username")
	assert.ErrorIs(t, err, ErrMissingPlatform)
}

var invalidLocators = []struct {
	name string
	data string
}{
	{"unknown web strategy", `a: {web: {strategy: jquery, value: x}}`},
	{"mobile-only strategy on web", `a: {web: {strategy: accessibility id, value: x}}`},
	{"empty value", `a: {mobile: {strategy: id, value: ""}}`},
	{"no platform", `a: {}`},
	{"unknown field", `a: {web: {strategy: css, value: x, timeout: 5}}`},
	{"unknown platform", `a: {desktop: {strategy: css, value: x}}`},
}

func TestParse_Invalid(t *testing.T) {
	for _, tc := range invalidLocators {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locators.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Keys(), 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Keys())
}

func TestLocator_Selector(t *testing.T) {
	for strategy, want := range map[string]string{
		"css":  "css=.btn",
		"text": "text=.btn",
		"id":   "id=.btn",
		"role": "role=.btn",
	} {
		assert.Equal(t, want, Locator{Strategy: strategy, Value: ".btn"}.Selector())
	}
}
