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
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"

	"github.com/adobe/pos-autotest/lib/log"
)

// CommandLine renders the command as it could be pasted into a shell
func CommandLine(path string, arg ...string) string {
	return shellescape.QuoteCommand(append([]string{path}, arg...))
}

// RunAndLog runs short helper command (adb, xcrun, appium driver list) with timeout
// and returns trimmed stdout
func RunAndLog(ctx context.Context, section string, timeout time.Duration, path string, arg ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, arg...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := log.WithFunc(section, "RunAndLog")
	logger.Debug("Executing", "cmd", CommandLine(path, arg...))
	err := cmd.Run()

	out := strings.TrimSpace(strings.ReplaceAll(stdout.String(), "\r\n", "\n"))
	errOut := strings.TrimSpace(stderr.String())
	if errOut != "" {
		logger.Debug("Command stderr", "stderr", errOut)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return out, fmt.Errorf("%s: command timed out after %s", section, timeout)
	case errors.As(err, &exitErr):
		msg := errOut
		if msg == "" {
			msg = out
		}
		return out, fmt.Errorf("%s: command exited with error: %w: %s", section, err, msg)
	case err != nil:
		return out, fmt.Errorf("%s: unable to run command: %w", section, err)
	}
	return out, nil
}
