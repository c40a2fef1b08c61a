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
	"bytes"
	"log/slog"
	"strings"
	"sync"

	"github.com/adobe/pos-autotest/lib/log"
)

// StreamLogMonitor is an io.Writer for subprocess output, it logs every complete line
// with the prefix. Incomplete tail is kept until the next write or Flush.
type StreamLogMonitor struct {
	Prefix string
	Logger *slog.Logger // util.StreamLogMonitor scoped logger when nil

	mu   sync.Mutex
	line bytes.Buffer
}

func (slm *StreamLogMonitor) logger() *slog.Logger {
	if slm.Logger != nil {
		return slm.Logger
	}
	return log.WithFunc("util", "StreamLogMonitor")
}

func (slm *StreamLogMonitor) emit(b []byte) {
	text := strings.TrimRight(string(b), "\r")
	if text == "" {
		return
	}
	slm.logger().Info(slm.Prefix + text)
}

// Write splits the data by EOL and logs each line
func (slm *StreamLogMonitor) Write(p []byte) (int, error) {
	slm.mu.Lock()
	defer slm.mu.Unlock()

	data := p
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			slm.line.Write(data)
			break
		}
		if slm.line.Len() > 0 {
			slm.line.Write(data[:idx])
			slm.emit(slm.line.Bytes())
			slm.line.Reset()
		} else {
			slm.emit(data[:idx])
		}
		data = data[idx+1:]
	}

	return len(p), nil
}

// Flush logs the unterminated remainder
func (slm *StreamLogMonitor) Flush() {
	slm.mu.Lock()
	defer slm.mu.Unlock()
	if slm.line.Len() > 0 {
		slm.emit(slm.line.Bytes())
		slm.line.Reset()
	}
}
