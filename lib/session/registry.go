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

package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/platform"
)

type binding struct {
	mode    platform.Mode
	state   State
	handles map[platform.Kind]Handle
	order   []platform.Kind // acquisition order
	since   time.Time
}

// Registry keeps the bindings of all the contexts. The lock is held only to switch the
// state, handles are created and closed outside of it.
type Registry struct {
	mu       sync.Mutex
	ctors    map[platform.Kind]Constructor
	bindings map[ContextID]*binding
}

// NewRegistry creates registry able to build the handles of the given constructors
func NewRegistry(ctors ...Constructor) *Registry {
	r := &Registry{
		ctors:    make(map[platform.Kind]Constructor),
		bindings: make(map[ContextID]*binding),
	}
	for _, c := range ctors {
		r.Register(c)
	}
	return r
}

// Register sets the constructor for its kind, the previous one is replaced
func (r *Registry) Register(c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[c.Kind()] = c
}

// Acquire makes sure the context owns every handle the mode needs. Existing handles are
// reused, so calling it again for the same context never launches anything twice.
func (r *Registry) Acquire(ctx context.Context, id ContextID, mode platform.Mode) (*Session, error) {
	logger := log.WithContext("session", "Acquire", string(id))

	kinds := mode.Kinds()
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: unknown platform mode %q", ErrAcquire, mode)
	}

	r.mu.Lock()
	b, exists := r.bindings[id]
	if exists && b.state != Bound {
		state := b.state
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: context %s is %s", ErrBusy, id.Short(), state)
	}
	if !exists {
		b = &binding{mode: mode, handles: make(map[platform.Kind]Handle)}
		r.bindings[id] = b
	}
	var missing []platform.Kind
	for _, k := range kinds {
		if b.handles[k] == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		s := b.snapshot(id)
		r.mu.Unlock()
		logger.Debug("Reusing bound session", "mode", s.Mode)
		return s, nil
	}
	ctors := make([]Constructor, len(missing))
	for i, k := range missing {
		ctors[i] = r.ctors[k]
	}
	b.state = Acquiring
	r.mu.Unlock()

	logger.Info("Acquiring session", "mode", mode, "kinds", missing)
	started := time.Now()

	built := make([]Handle, 0, len(missing))
	var err error
	for i, c := range ctors {
		if c == nil {
			err = fmt.Errorf("%w: no driver registered for %s", ErrAcquire, missing[i])
			break
		}
		var h Handle
		if h, err = open(ctx, c, id); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrAcquire, missing[i], err)
			break
		}
		built = append(built, h)
	}

	if err != nil {
		if cerr := closeAll(ctx, built); cerr != nil {
			logger.Warn("Unable to clean up after failed acquisition", "err", cerr)
		}
		r.mu.Lock()
		if len(b.handles) == 0 {
			delete(r.bindings, id)
		} else {
			b.state = Bound
		}
		r.mu.Unlock()
		logger.Error("Session acquisition failed", "mode", mode, "err", err)
		return nil, err
	}

	r.mu.Lock()
	for _, h := range built {
		b.handles[h.Kind()] = h
		b.order = append(b.order, h.Kind())
	}
	if len(b.order) == len(missing) {
		b.since = started
	}
	b.mode = mergeMode(mode, b.handles)
	b.state = Bound
	s := b.snapshot(id)
	r.mu.Unlock()

	logger.Info("Session bound", "mode", s.Mode, "took", time.Since(started).Round(time.Millisecond))
	return s, nil
}

// mergeMode names the binding after the requested mode when it covers all the handles,
// a mix of kinds acquired by different modes is HYBRID
func mergeMode(mode platform.Mode, handles map[platform.Kind]Handle) platform.Mode {
	for k := range handles {
		if !slices.Contains(mode.Kinds(), k) {
			return platform.Hybrid
		}
	}
	return mode
}

func open(ctx context.Context, c Constructor, id ContextID) (h Handle, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("driver panic: %v", p)
		}
	}()
	h, err = c.Open(ctx, id)
	if err == nil && h == nil {
		err = errors.New("driver returned no handle")
	}
	return h, err
}

// Release closes all the handles of the context in reverse acquisition order. Every close
// is independent, so one failing handle doesn't leak the others. Unknown context is a no-op.
func (r *Registry) Release(ctx context.Context, id ContextID) error {
	logger := log.WithContext("session", "Release", string(id))

	r.mu.Lock()
	b, ok := r.bindings[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if b.state != Bound {
		state := b.state
		r.mu.Unlock()
		return fmt.Errorf("%w: context %s is %s", ErrBusy, id.Short(), state)
	}
	b.state = Releasing
	handles := make([]Handle, 0, len(b.order))
	for _, k := range b.order {
		handles = append(handles, b.handles[k])
	}
	since := b.since
	r.mu.Unlock()

	err := closeAll(ctx, handles)

	r.mu.Lock()
	delete(r.bindings, id)
	r.mu.Unlock()

	if err != nil {
		logger.Warn("Session released with errors", "err", err)
	} else {
		logger.Info("Session released", "lifetime", time.Since(since).Round(time.Millisecond))
	}
	return err
}

// closeAll closes the handles from last to first
func closeAll(ctx context.Context, handles []Handle) error {
	var errs []error
	for _, h := range slices.Backward(handles) {
		if err := closeOne(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", h.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

func closeOne(ctx context.Context, h Handle) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h.Close(ctx)
}

// ReleaseAll releases every bound context, used on suite end and abort
func (r *Registry) ReleaseAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]ContextID, 0, len(r.bindings))
	for id, b := range r.bindings {
		if b.state == Bound {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	if len(ids) > 0 {
		log.WithFunc("session", "ReleaseAll").Info("Releasing all sessions", "count", len(ids))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.Release(ctx, id)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Handle returns the bound handle of the kind
func (r *Registry) Handle(id ContextID, kind platform.Kind) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[id]
	if !ok || b.state != Bound {
		return nil, fmt.Errorf("%w: context %s", ErrNotInitialized, id.Short())
	}
	h := b.handles[kind]
	if h == nil {
		return nil, fmt.Errorf("%w: context %s has no %s handle", ErrNotInitialized, id.Short(), kind)
	}
	return h, nil
}

// Session returns the current binding of the context
func (r *Registry) Session(id ContextID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[id]
	if !ok || b.state != Bound {
		return nil, fmt.Errorf("%w: context %s", ErrNotInitialized, id.Short())
	}
	return b.snapshot(id), nil
}

// State of the context, Unbound for unknown ones
func (r *Registry) State(id ContextID) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[id]; ok {
		return b.state
	}
	return Unbound
}

// Len returns the number of the contexts not in Unbound state
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

func (b *binding) snapshot(id ContextID) *Session {
	s := &Session{
		ID:      id,
		Mode:    b.mode,
		Since:   b.since,
		handles: make(map[platform.Kind]Handle, len(b.handles)),
		order:   slices.Clone(b.order),
	}
	for k, h := range b.handles {
		s.handles[k] = h
	}
	return s
}

// Session is a view of the binding at the moment of the call
type Session struct {
	ID    ContextID
	Mode  platform.Mode
	Since time.Time

	handles map[platform.Kind]Handle
	order   []platform.Kind
}

// Handle returns the handle of the kind or ErrNotInitialized
func (s *Session) Handle(kind platform.Kind) (Handle, error) {
	if h := s.handles[kind]; h != nil {
		return h, nil
	}
	return nil, fmt.Errorf("%w: context %s has no %s handle", ErrNotInitialized, s.ID.Short(), kind)
}

// Handles returns the handles in acquisition order
func (s *Session) Handles() []Handle {
	out := make([]Handle, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.handles[k])
	}
	return out
}
