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

package util

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_command_line(t *testing.T) {
	assert.Equal(t, `appium --port 4723 --log-level info:debug`,
		CommandLine("appium", "--port", "4723", "--log-level", "info:debug"))
	assert.Equal(t, `appium --default-capabilities '{"a": 1}'`,
		CommandLine("appium", "--default-capabilities", `{"a": 1}`))
}

func Test_run_and_log(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses posix shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh available")
	}
	ctx := context.Background()

	out, err := RunAndLog(ctx, "test", 5*time.Second, "sh", "-c", "echo ready")
	require.NoError(t, err)
	assert.Equal(t, "ready", out)

	_, err = RunAndLog(ctx, "test", 5*time.Second, "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = RunAndLog(ctx, "test", 100*time.Millisecond, "sh", "-c", "sleep 5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
