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

// Package session binds automation handles to the execution contexts of the scenarios
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/adobe/pos-autotest/lib/platform"
)

var (
	// ErrNotInitialized is returned when the context has no bound handle of the requested kind
	ErrNotInitialized = errors.New("session not initialized")
	// ErrBusy is returned when the context is in the middle of acquire or release
	ErrBusy = errors.New("session transition in progress")
	// ErrAcquire wraps the error of the driver which failed to create a handle
	ErrAcquire = errors.New("session acquisition failed")
)

// ContextID identifies the execution context owning the session, one per running scenario
type ContextID string

// NewContextID generates random context id
func NewContextID() ContextID {
	return ContextID(uuid.NewString())
}

// Short is used in the log lines
func (id ContextID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// State of the context binding
type State int

const (
	Unbound State = iota
	Acquiring
	Bound
	Releasing
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "UNBOUND"
	case Acquiring:
		return "ACQUIRING"
	case Bound:
		return "BOUND"
	case Releasing:
		return "RELEASING"
	}
	return "UNKNOWN"
}

// Handle is an automation handle of some kind (browser page, device driver, request context)
type Handle interface {
	Kind() platform.Kind

	// Close releases everything the handle owns, it's called exactly once
	Close(ctx context.Context) error
}

// Screenshotter is implemented by the handles able to capture the screen
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Constructor creates the handles of one kind
type Constructor interface {
	Kind() platform.Kind

	// Open creates ready to use handle for the context, it must not return partially
	// initialized handle: what was created before the failure is closed by Open itself
	Open(ctx context.Context, id ContextID) (Handle, error)
}
