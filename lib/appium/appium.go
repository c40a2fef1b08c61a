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

// Package appium manages the mobile automation server shared by all the device sessions
package appium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hpcloud/tail"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/util"
	"github.com/adobe/pos-autotest/lib/wait"
)

// ErrNotRunning is returned when the server is down and autostart is disabled
var ErrNotRunning = errors.New("appium server is not running")

// Status is the value of the /status response
type Status struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   struct {
		Version string `json:"version"`
	} `json:"build"`
}

// Manager counts the device sessions using the server: the first one brings it up,
// the last one stops it if the manager started it
type Manager struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	refs  int
	owned bool

	cmd    *exec.Cmd
	kill   context.CancelFunc
	exited chan struct{}
	output *util.StreamLogMonitor

	follow *tail.Tail
}

// New creates the manager, nothing is started until Acquire
func New(cfg Config) *Manager {
	return &Manager{
		cfg: cfg,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// URL of the WebDriver endpoint
func (m *Manager) URL() string {
	return m.cfg.URL()
}

// Refs returns the number of sessions using the server
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Owned reports whether the server process was started by the manager
func (m *Manager) Owned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owned
}

// Status requests the server /status
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.URL()+"/status", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("appium: /status returned %s", resp.Status)
	}
	var out struct {
		Value Status `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("appium: unable to parse /status: %w", err)
	}
	return &out.Value, nil
}

// Acquire makes sure the server is ready and takes a reference to it
func (m *Manager) Acquire(ctx context.Context) error {
	logger := log.WithFunc("appium", "Acquire")

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs > 0 {
		m.refs++
		return nil
	}

	status, statusErr := m.Status(ctx)
	switch {
	case statusErr == nil && status.Ready:
		logger.Info("Reusing running server", "url", m.cfg.URL(), "version", status.Build.Version)
		m.followLog()
	case statusErr == nil:
		// Something answers as appium but still starting, give it the startup timeout
		logger.Info("Server is starting, waiting for it", "url", m.cfg.URL(), "message", status.Message)
		if err := m.waitReady(ctx); err != nil {
			return err
		}
		m.followLog()
	default:
		if !m.cfg.Autostart {
			return fmt.Errorf("%w at %s: %w", ErrNotRunning, m.cfg.URL(), statusErr)
		}
		if owner, err := PortOwner(ctx, m.cfg.Port); err == nil && owner != "" {
			return fmt.Errorf("appium: port %d is held by %s which is not an appium server", m.cfg.Port, owner)
		}
		if err := m.start(ctx); err != nil {
			return err
		}
	}

	m.refs = 1
	return nil
}

// Release drops the reference, the last one stops the owned server
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return nil
	}
	m.refs--
	if m.refs > 0 {
		return nil
	}
	return m.stop(ctx)
}

// Shutdown stops the owned server no matter how many references are left
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs > 0 {
		log.WithFunc("appium", "Shutdown").Warn("Stopping server with sessions still referencing it", "refs", m.refs)
	}
	m.refs = 0
	return m.stop(ctx)
}

func (m *Manager) start(ctx context.Context) error {
	logger := log.WithFunc("appium", "start")

	args := m.cfg.args()
	logger.Info("Starting server", "cmd", util.CommandLine(m.cfg.Binary, args...))

	// The process outlives the acquiring context, so it gets its own
	procCtx, kill := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, m.cfg.Binary, args...)
	cmd.Env = append(os.Environ(), m.cfg.Env...)
	m.output = &util.StreamLogMonitor{Prefix: "appium: ", Logger: log.WithFunc("appium", "server")}
	cmd.Stdout = m.output
	cmd.Stderr = m.output

	if err := cmd.Start(); err != nil {
		kill()
		return fmt.Errorf("appium: unable to start %q: %w", m.cfg.Binary, err)
	}
	m.cmd, m.kill, m.owned = cmd, kill, true
	m.exited = make(chan struct{})
	go func(exited chan struct{}) {
		err := cmd.Wait()
		m.output.Flush()
		logger.Debug("Server process exited", "pid", cmd.Process.Pid, "err", err)
		close(exited)
	}(m.exited)

	if err := m.waitReady(ctx); err != nil {
		if serr := m.stop(context.Background()); serr != nil {
			logger.Warn("Unable to stop failed server", "err", serr)
		}
		return err
	}
	logger.Info("Server is ready", "url", m.cfg.URL(), "pid", cmd.Process.Pid)
	return nil
}

// waitReady polls /status with growing interval until the startup timeout
func (m *Manager) waitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.PollInterval
	b.MaxInterval = 5 * m.cfg.PollInterval

	exited := m.exited
	_, err := backoff.Retry(ctx, func() (bool, error) {
		if exited != nil {
			select {
			case <-exited:
				return false, backoff.Permanent(errors.New("server process exited"))
			default:
			}
		}
		status, err := m.Status(ctx)
		if err != nil {
			return false, err
		}
		if !status.Ready {
			return false, fmt.Errorf("not ready: %s", status.Message)
		}
		return true, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(m.cfg.StartupTimeout))
	if err != nil {
		return fmt.Errorf("appium: %w at %s within %s: %w", wait.ErrNotReady, m.cfg.URL(), m.cfg.StartupTimeout, err)
	}
	return nil
}

func (m *Manager) stop(_ context.Context) error {
	if m.follow != nil {
		m.follow.Stop()
		m.follow.Cleanup()
		m.follow = nil
	}
	if !m.owned || m.cmd == nil {
		m.owned = false
		return nil
	}
	logger := log.WithFunc("appium", "stop")

	cmd, exited := m.cmd, m.exited
	defer func() {
		m.kill()
		m.cmd, m.kill, m.exited, m.owned = nil, nil, nil, false
	}()

	if proc, err := process.NewProcess(int32(cmd.Process.Pid)); err == nil { //nolint:gosec // G115 -- pid fits
		if mem, err := proc.MemoryInfo(); err == nil {
			logger.Debug("Server memory usage", "rss", mem.RSS, "vms", mem.VMS)
		}
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		logger.Debug("Unable to interrupt server", "err", err)
	}
	select {
	case <-exited:
		logger.Info("Server stopped")
		return nil
	case <-time.After(m.cfg.ShutdownTimeout):
	}

	logger.Warn("Killing server after interrupt timeout", "timeout", m.cfg.ShutdownTimeout)
	m.kill()
	select {
	case <-exited:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("appium: server pid %d did not exit", cmd.Process.Pid)
	}
}

// followLog tails the log of the externally managed server
func (m *Manager) followLog() {
	if m.cfg.LogFile == "" || m.follow != nil {
		return
	}
	logger := log.WithFunc("appium", "server")

	t, err := tail.TailFile(m.cfg.LogFile, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		logger.Warn("Unable to follow server log", "file", m.cfg.LogFile, "err", err)
		return
	}
	m.follow = t
	go func() {
		for line := range t.Lines {
			if line.Err != nil {
				continue
			}
			logger.Info("appium: " + line.Text)
		}
	}()
}
