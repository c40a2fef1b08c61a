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

package appium

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/wait"
)

const helperEnv = "AUTOTEST_APPIUM_HELPER_PORT"

// TestHelperAppium is not a real test: it's the fake appium server process started by
// Test_manager_starts_and_stops_server
func TestHelperAppium(t *testing.T) {
	port := os.Getenv(helperEnv)
	if port == "" {
		return
	}
	fmt.Println("[Appium] Welcome to Appium")

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"value":{"ready":true,"message":"ready","build":{"version":"2.0.0-helper"}}}`))
	})
	go http.ListenAndServe("127.0.0.1:"+port, mux)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	fmt.Println("[Appium] Received SIGINT - shutting down")
	os.Exit(0)
}

func statusServer(t *testing.T, ready bool) (*httptest.Server, Config) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wd/hub/status" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"value":{"ready":%t,"message":"external","build":{"version":"1.22.3"}}}`, ready)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := Config{
		Host:           u.Hostname(),
		Port:           port,
		BasePath:       "/wd/hub",
		Autostart:      false,
		StartupTimeout: 300 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	}
	require.NoError(t, cfg.Validate())
	return srv, cfg
}

func Test_manager_reuses_ready_server(t *testing.T) {
	_, cfg := statusServer(t, true)
	m := New(cfg)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx))
	require.NoError(t, m.Acquire(ctx))
	assert.Equal(t, 2, m.Refs())
	assert.False(t, m.Owned())

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.Equal(t, "1.22.3", status.Build.Version)

	require.NoError(t, m.Release(ctx))
	require.NoError(t, m.Release(ctx))
	require.NoError(t, m.Release(ctx), "extra release is a no-op")
	assert.Equal(t, 0, m.Refs())
}

func Test_manager_times_out_on_never_ready_server(t *testing.T) {
	_, cfg := statusServer(t, false)
	m := New(cfg)

	start := time.Now()
	err := m.Acquire(context.Background())
	require.ErrorIs(t, err, wait.ErrNotReady)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, m.Refs())
}

func Test_manager_not_running_without_autostart(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	m := New(Config{Host: "127.0.0.1", Port: port, BasePath: "/"})
	err = m.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func Test_manager_starts_and_stops_server(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("interrupt signal is not supported on windows")
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := Config{
		Host:            "127.0.0.1",
		Port:            port,
		BasePath:        "/",
		Autostart:       true,
		Binary:          os.Args[0],
		Args:            []string{"-test.run=^TestHelperAppium$"},
		Env:             []string{helperEnv + "=" + strconv.Itoa(port)},
		StartupTimeout:  20 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		PollInterval:    50 * time.Millisecond,
	}
	require.NoError(t, cfg.Validate())
	m := New(cfg)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx))
	assert.True(t, m.Owned())
	require.NoError(t, m.Acquire(ctx))

	// Port is now taken by the helper process
	owner, err := PortOwner(ctx, port)
	if err == nil {
		assert.NotEmpty(t, owner)
	}

	require.NoError(t, m.Release(ctx))
	status, err := m.Status(ctx)
	require.NoError(t, err, "server is kept while referenced")
	assert.True(t, status.Ready)

	require.NoError(t, m.Release(ctx))
	assert.False(t, m.Owned())
	_, err = m.Status(ctx)
	assert.Error(t, err, "server is stopped with the last reference")
}

func Test_config_apply(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Apply(config.FromMap(map[string]string{
		"appium.port":            "4725",
		"appium.base.path":       "wd/hub",
		"appium.startup.timeout": "90s",
		"appium.args":            "--relaxed-security --port 4725",
	})))
	assert.Equal(t, "http://127.0.0.1:4725/wd/hub", cfg.URL())
	assert.Equal(t, 90*time.Second, cfg.StartupTimeout)
	assert.Equal(t, []string{"--relaxed-security", "--port", "4725"}, cfg.args())

	cfg = Config{Host: "localhost", Port: 4723, BasePath: "/"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:4723", cfg.URL())
	assert.Equal(t, []string{"--address", "localhost", "--port", "4723", "--base-path", "/"}, cfg.args())

	err := cfg.Apply(config.FromMap(map[string]string{"appium.port": "70000"}))
	assert.ErrorContains(t, err, "invalid port")
	err = cfg.Apply(config.FromMap(map[string]string{"appium.autostart": "sometimes"}))
	assert.ErrorIs(t, err, config.ErrMalformedValue)
}
