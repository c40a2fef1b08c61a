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

// Package log provides structured logging for the autotest harness
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

type Level = slog.Level

const (
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
)

// Attribute keys the console handler renders in the line prefix instead of key=value
const (
	KeyPack    = "pack"
	KeyFunc    = "func"
	KeyContext = "ctx"
)

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger

	otelHandler *otelslog.Handler
)

func init() {
	_ = Initialize(DefaultConfig())
}

// Config of the global logger
type Config struct {
	Level       string    // debug, info, warn, error
	Format      string    // console or json
	Output      io.Writer // stdout when nil
	OtelEnabled bool      // duplicate records into the OpenTelemetry log pipeline
}

// DefaultConfig returns console logging on info level
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
	}
}

// ParseLevel converts level name into slog level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Initialize replaces the global logger according to config
func Initialize(cfg *Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "console", "":
		handler = NewConsoleHandler(out, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	loggerMu.Lock()
	logger = slog.New(handler)
	otelHandler = nil
	loggerMu.Unlock()

	if cfg.OtelEnabled {
		EnableOtel()
	}
	return nil
}

// EnableOtel tees the global logger into the OpenTelemetry log bridge, the monitoring package
// calls it once the logger provider is installed
func EnableOtel() {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if otelHandler != nil {
		return
	}
	otelHandler = otelslog.NewHandler("pos-autotest")
	logger = slog.New(&teeHandler{handlers: []slog.Handler{logger.Handler(), otelHandler}})
}

// teeHandler sends every record to all the handlers, returning the last failure
type teeHandler struct {
	handlers []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hd := range h.handlers {
		if hd.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) (err error) {
	for _, hd := range h.handlers {
		if !hd.Enabled(ctx, r.Level) {
			continue
		}
		if e := hd.Handle(ctx, r.Clone()); e != nil {
			err = e
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &teeHandler{handlers: make([]slog.Handler, len(h.handlers))}
	for i, hd := range h.handlers {
		out.handlers[i] = hd.WithAttrs(attrs)
	}
	return out
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	out := &teeHandler{handlers: make([]slog.Handler, len(h.handlers))}
	for i, hd := range h.handlers {
		out.handlers[i] = hd.WithGroup(name)
	}
	return out
}

// Logger returns the current global logger
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// WithFunc returns logger scoped to the package and function, both are required
func WithFunc(pack, fun string) *slog.Logger {
	if pack == "" || fun == "" {
		panic("log: WithFunc needs both package and function names")
	}
	return Logger().With(KeyPack, pack, KeyFunc, fun)
}

// WithContext additionally binds the logger to the execution context (scenario session) id
func WithContext(pack, fun, ctxID string) *slog.Logger {
	return WithFunc(pack, fun).With(KeyContext, ctxID)
}
