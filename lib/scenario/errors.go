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

package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/adobe/pos-autotest/lib/assert"
	"github.com/adobe/pos-autotest/lib/config"
	"github.com/adobe/pos-autotest/lib/session"
	"github.com/adobe/pos-autotest/lib/wait"
)

var (
	// ErrAborted is the hard failure without any recorded message
	ErrAborted = errors.New("scenario aborted")
	// ErrPanic wraps the panic of the scenario body
	ErrPanic = errors.New("scenario panic")
)

// Error kinds shown in the report
const (
	KindAcquire   = "acquire"
	KindConfig    = "config"
	KindTimeout   = "timeout"
	KindAssertion = "assertion"
	KindPanic     = "panic"
	KindError     = "error"
)

// failNow is the panic value unwinding the body on hard failure
type failNow struct{}

// ErrorKind classifies the attempt error
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrAcquire):
		return KindAcquire
	case errors.Is(err, config.ErrMissingKey), errors.Is(err, config.ErrMalformedValue):
		return KindConfig
	case errors.Is(err, wait.ErrNotReady), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, assert.ErrSoft), errors.Is(err, ErrAborted):
		return KindAssertion
	case errors.Is(err, ErrPanic):
		return KindPanic
	}
	return KindError
}

// Guard runs fn and turns the hard failure of the context into the returned error, used by
// the step definitions since the step runner doesn't know about failNow
func Guard(c *Context, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if _, ok := p.(failNow); !ok {
				err = fmt.Errorf("%w: %v", ErrPanic, p)
				return
			}
			err = c.abortError()
		}
	}()
	return fn()
}
