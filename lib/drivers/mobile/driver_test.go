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

package mobile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/locator"
	"github.com/adobe/pos-autotest/lib/session"
)

// mockAppium answers the few WebDriver endpoints the driver uses
type mockAppium struct {
	srv *httptest.Server

	failSession atomic.Bool
	quits       atomic.Int32

	mu      sync.Mutex
	caps    map[string]any
	finds   []string
	actions []string
}

func newMockAppium(t *testing.T) *mockAppium {
	m := &mockAppium{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"value":{"ready":true,"message":"ok","build":{"version":"2.11.0"}}}`)
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Capabilities struct {
				AlwaysMatch map[string]any `json:"alwaysMatch"`
			} `json:"capabilities"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.caps = body.Capabilities.AlwaysMatch
		m.mu.Unlock()

		if m.failSession.Load() {
			reply(w, http.StatusInternalServerError,
				`{"value":{"error":"session not created","message":"Could not find a connected Android device","stacktrace":""}}`)
			return
		}
		reply(w, http.StatusOK, `{"value":{"sessionId":"test-session","capabilities":{"platformName":"Android"}}}`)
	})
	mux.HandleFunc("GET /session/test-session/screenshot", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"value":"`+base64.StdEncoding.EncodeToString([]byte("device-png"))+`"}`)
	})
	mux.HandleFunc("POST /session/test-session/element", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.finds = append(m.finds, body.Using+"|"+body.Value)
		m.mu.Unlock()
		if body.Value == "missing" {
			reply(w, http.StatusNotFound, `{"value":{"error":"no such element","message":"not found","stacktrace":""}}`)
			return
		}
		reply(w, http.StatusOK, `{"value":{"element-6066-11e4-a52e-4f735466cecf":"el-1"}}`)
	})
	mux.HandleFunc("POST /session/test-session/element/el-1/{action}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.actions = append(m.actions, r.PathValue("action"))
		m.mu.Unlock()
		reply(w, http.StatusOK, `{"value":null}`)
	})
	mux.HandleFunc("GET /session/test-session/element/el-1/displayed", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"value":true}`)
	})
	mux.HandleFunc("GET /session/test-session/element/el-1/text", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, http.StatusOK, `{"value":"Total: 12.50"}`)
	})
	mux.HandleFunc("DELETE /session/test-session", func(w http.ResponseWriter, _ *http.Request) {
		m.quits.Add(1)
		reply(w, http.StatusOK, `{"value":null}`)
	})
	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

func reply(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(body))
}

func (m *mockAppium) props(t *testing.T, extra map[string]string) *config.Props {
	u, err := url.Parse(m.srv.URL)
	require.NoError(t, err)

	capsFile := filepath.Join(t.TempDir(), "android.yml")
	require.NoError(t, os.WriteFile(capsFile, []byte(`
platformName: Android
automationName: UiAutomator2
newCommandTimeout: 120
appium:noReset: true
`), 0o644))

	values := map[string]string{
		"appium.host":              u.Hostname(),
		"appium.port":              u.Port(),
		"appium.autostart":         "false",
		"mobile.capabilities.file": capsFile,
		"mobile.device.name":       "emulator-5554",
		"mobile.capability.pin":    "0042",
	}
	for k, v := range extra {
		values[k] = v
	}
	return config.FromMap(values)
}

func Test_open_screenshot_close(t *testing.T) {
	m := newMockAppium(t)
	d := (&Factory{}).New().(*Driver)
	require.NoError(t, d.Prepare(m.props(t, nil)))
	ctx := context.Background()

	h, err := d.Open(ctx, session.NewContextID())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Server().Refs())

	m.mu.Lock()
	caps := m.caps
	m.mu.Unlock()
	assert.Equal(t, "Android", caps["platformName"])
	assert.Equal(t, "emulator-5554", caps["appium:deviceName"])
	assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
	assert.EqualValues(t, 120, caps["appium:newCommandTimeout"])
	assert.Equal(t, true, caps["appium:noReset"])
	assert.Equal(t, "0042", caps["appium:pin"])

	img, err := h.(session.Screenshotter).Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("device-png"), img)

	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx), "second close returns the first result")
	assert.EqualValues(t, 1, m.quits.Load())
	assert.Equal(t, 0, d.Server().Refs())
}

func Test_open_failure_releases_server(t *testing.T) {
	m := newMockAppium(t)
	m.failSession.Store(true)
	d := (&Factory{}).New().(*Driver)
	require.NoError(t, d.Prepare(m.props(t, nil)))

	_, err := d.Open(context.Background(), session.NewContextID())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to create device session")
	assert.Equal(t, 0, d.Server().Refs())
}

func Test_prepare_validation(t *testing.T) {
	d := (&Factory{}).New().(*Driver)
	err := d.Prepare(config.FromMap(map[string]string{"mobile.device.name": "Pixel"}))
	assert.ErrorContains(t, err, "platformName")

	err = d.Prepare(config.FromMap(map[string]string{"mobile.capabilities.file": "/nonexistent/caps.yml"}))
	assert.ErrorContains(t, err, "unable to read capabilities file")
}

func Test_typed_value(t *testing.T) {
	assert.Equal(t, true, typedValue("true"))
	assert.Equal(t, int64(4723), typedValue("4723"))
	assert.Equal(t, int64(0), typedValue("0"))
	assert.Equal(t, "00008030-001A2", typedValue("00008030-001A2"))
	assert.Equal(t, "yes", typedValue("yes"))
}

func Test_config_shortcut_capabilities_are_strings(t *testing.T) {
	capsFile := filepath.Join(t.TempDir(), "ios.yml")
	require.NoError(t, os.WriteFile(capsFile, []byte(`
platformName: iOS
platformVersion: 17
newCommandTimeout: 120
`), 0o644))

	var cfg Config
	require.NoError(t, cfg.Apply(config.FromMap(map[string]string{
		"mobile.capabilities.file":  capsFile,
		"mobile.device.name":        "1234",
		"mobile.udid":               "00008030",
		"mobile.capability.retries": "3",
	})))
	assert.Equal(t, "17", cfg.Capabilities["appium:platformVersion"], "numeric yaml version goes as string")
	assert.Equal(t, "1234", cfg.Capabilities["appium:deviceName"])
	assert.Equal(t, "00008030", cfg.Capabilities["appium:udid"])
	assert.EqualValues(t, 120, cfg.Capabilities["appium:newCommandTimeout"])
	assert.Equal(t, int64(3), cfg.Capabilities["appium:retries"], "generic capabilities stay typed")

	require.NoError(t, cfg.Apply(config.FromMap(map[string]string{
		"mobile.platform.name":    "Android",
		"mobile.platform.version": "14",
	})))
	assert.Equal(t, "14", cfg.Capabilities["appium:platformVersion"])
	assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
}

func Test_element_done_context(t *testing.T) {
	m := newMockAppium(t)
	d := (&Factory{}).New().(*Driver)
	require.NoError(t, d.Prepare(m.props(t, nil)))

	sh, err := d.Open(context.Background(), session.NewContextID())
	require.NoError(t, err)
	defer sh.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sh.(*Handle).Visible(ctx, locator.Locator{Strategy: "xpath", Value: "//total"})
	assert.ErrorIs(t, err, context.Canceled)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.finds, "no request after the context is done")
}

func Test_element_operations(t *testing.T) {
	m := newMockAppium(t)
	d := (&Factory{}).New().(*Driver)
	require.NoError(t, d.Prepare(m.props(t, nil)))
	ctx := context.Background()

	sh, err := d.Open(ctx, session.NewContextID())
	require.NoError(t, err)
	defer sh.Close(ctx)
	h := sh.(*Handle)

	require.NoError(t, h.Tap(ctx, locator.Locator{Strategy: "accessibility id", Value: "pay"}))
	require.NoError(t, h.Type(ctx, locator.Locator{Strategy: "id", Value: "amount"}, "12.50"))

	visible, err := h.Visible(ctx, locator.Locator{Strategy: "xpath", Value: "//total"})
	require.NoError(t, err)
	assert.True(t, visible)

	visible, err = h.Visible(ctx, locator.Locator{Strategy: "xpath", Value: "missing"})
	require.NoError(t, err, "missing element is just not visible")
	assert.False(t, visible)

	text, err := h.Text(ctx, locator.Locator{Strategy: "xpath", Value: "//total"})
	require.NoError(t, err)
	assert.Equal(t, "Total: 12.50", text)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, "accessibility id|pay", m.finds[0])
	assert.Equal(t, `xpath|//*[@resource-id="amount" or @name="amount"]`, m.finds[1])
	assert.Equal(t, []string{"click", "clear", "value"}, m.actions)
}
