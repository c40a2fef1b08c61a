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

package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorRed    = "\033[91m"
	colorYellow = "\033[93m"
	colorBlue   = "\033[94m"
	colorCyan   = "\033[96m"
	colorDim    = "\033[2m"
)

// ConsoleHandler renders one human readable line per record:
//
//	[251015/101500] INF <ctx> message pack.func key=value ...
//
// The execution context id is cut to 8 chars since parallel scenarios are told apart by it.
type ConsoleHandler struct {
	opts   *slog.HandlerOptions
	mu     *sync.Mutex
	writer io.Writer

	useColor bool
	debug    bool

	pack, fun, ctxID string
	prefix           string // dotted group path for the next attributes
	preformatted     []byte // attributes added by WithAttrs already rendered
}

// NewConsoleHandler creates handler, colors are enabled only when writing into a terminal
func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	h := &ConsoleHandler{
		opts:   opts,
		mu:     &sync.Mutex{},
		writer: w,
	}
	if f, ok := w.(*os.File); ok {
		h.useColor = term.IsTerminal(int(f.Fd()))
	}
	h.debug = opts.Level != nil && opts.Level.Level() <= slog.LevelDebug
	return h
}

// SetUseColor overrides the terminal detection
func (h *ConsoleHandler) SetUseColor(use bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useColor = use
}

// Enabled reports whether the level passes the configured minimum
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

// Handle formats and writes the record
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	pack, fun, ctxID := h.pack, h.fun, h.ctxID
	var attrs []byte
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case KeyPack:
			pack = a.Value.String()
		case KeyFunc:
			fun = a.Value.String()
		case KeyContext:
			ctxID = a.Value.String()
		default:
			attrs = h.appendAttr(attrs, h.prefix, a)
		}
		return true
	})

	layout := "060102/150405"
	if h.debug {
		layout = "060102/150405.000"
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	buf := make([]byte, 0, 256)
	buf = append(buf, h.paint(colorGray, "["+r.Time.Format(layout)+"]")...)
	buf = append(buf, ' ')
	buf = append(buf, h.paint(levelColor(r.Level), levelName(r.Level))...)
	if ctxID != "" {
		if len(ctxID) > 8 {
			ctxID = ctxID[:8]
		}
		buf = append(buf, ' ')
		buf = append(buf, h.paint(colorCyan, "<"+ctxID+">")...)
	}
	buf = append(buf, ' ')
	buf = append(buf, h.paint(levelColor(r.Level), r.Message)...)
	if pack != "" && fun != "" {
		buf = append(buf, ' ')
		buf = append(buf, h.paint(colorDim, pack+"."+fun)...)
	}
	buf = append(buf, h.preformatted...)
	buf = append(buf, attrs...)
	buf = append(buf, '\n')

	_, err := h.writer.Write(buf)
	return err
}

func (h *ConsoleHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(groupsOf(prefix), a)
	}
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, sub, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	switch a.Value.Kind() {
	case slog.KindString:
		buf = append(buf, a.Value.String()...)
	case slog.KindTime:
		buf = append(buf, a.Value.Time().Format(time.RFC3339)...)
	case slog.KindDuration:
		buf = append(buf, a.Value.Duration().String()...)
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, a.Value.Int64(), 10)
	default:
		buf = append(buf, a.Value.String()...)
	}
	return buf
}

// WithAttrs renders the attributes once so every record reuses them
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := h.clone()
	for _, a := range attrs {
		switch a.Key {
		case KeyPack:
			out.pack = a.Value.String()
		case KeyFunc:
			out.fun = a.Value.String()
		case KeyContext:
			out.ctxID = a.Value.String()
		default:
			out.preformatted = out.appendAttr(out.preformatted, out.prefix, a)
		}
	}
	return out
}

// WithGroup prefixes the following attributes with the group name
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := h.clone()
	out.prefix += name + "."
	return out
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	out := *h
	out.preformatted = append([]byte(nil), h.preformatted...)
	return &out
}

func (h *ConsoleHandler) paint(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + colorReset
}

func groupsOf(prefix string) []string {
	if prefix == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(prefix, "."), ".")
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DBG"
	case level < slog.LevelWarn:
		return "INF"
	case level < slog.LevelError:
		return "WRN"
	}
	return "ERR"
}

func levelColor(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return colorCyan
	case level < slog.LevelWarn:
		return colorBlue
	case level < slog.LevelError:
		return colorYellow
	}
	return colorRed
}
