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

// Package ledger persists the final scenario outcomes between the runs
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mills.io/bitcask/v2"

	"github.com/adobe/pos-autotest/lib/log"
	"github.com/adobe/pos-autotest/lib/report"
)

const collection = "outcome"

var ErrNotFound = bitcask.ErrObjectNotFound

// Ledger is the outcome store, it implements report.Sink so executor records into it directly
type Ledger struct {
	be *bitcask.Bitcask

	// Merge needs the whole database, other operations take RLock
	beMu sync.RWMutex
}

// New opens or creates the ledger in the directory
func New(path string) (*Ledger, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("ledger: can't create directory %s: %w", path, err)
	}

	be, err := bitcask.Open(filepath.Join(path, "bitcask.db"))
	if err != nil {
		return nil, fmt.Errorf("ledger: unable to open database: %w", err)
	}

	log.WithFunc("ledger", "New").Debug("Ledger opened", "path", path)
	return &Ledger{be: be}, nil
}

// id is stable per scenario key and free of the path separators feature uris contain
func id(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Record stores the outcome replacing the previous run of the scenario
func (l *Ledger) Record(_ context.Context, o report.Outcome) error {
	l.beMu.RLock()
	defer l.beMu.RUnlock()
	if err := l.be.Collection(collection).Add(id(o.Key), o); err != nil {
		return fmt.Errorf("ledger: unable to record %q: %w", o.Key, err)
	}
	return nil
}

// Attach is not stored in the ledger
func (*Ledger) Attach(context.Context, report.Attachment) error {
	return nil
}

// Get returns the outcome of the scenario
func (l *Ledger) Get(key string) (o report.Outcome, err error) {
	l.beMu.RLock()
	defer l.beMu.RUnlock()
	err = l.be.Collection(collection).Get(id(key), &o)
	return o, err
}

// List returns all the outcomes sorted by the scenario key
func (l *Ledger) List() (out []report.Outcome, err error) {
	l.beMu.RLock()
	err = l.be.Collection(collection).List(&out)
	l.beMu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("ledger: unable to list outcomes: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Failed returns the failed outcomes
func (l *Ledger) Failed() ([]report.Outcome, error) {
	all, err := l.List()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.Status == report.Failed {
			out = append(out, o)
		}
	}
	return out, nil
}

// Reset removes all the outcomes, done at the start of a fresh run
func (l *Ledger) Reset() error {
	all, err := l.List()
	if err != nil {
		return err
	}
	l.beMu.RLock()
	defer l.beMu.RUnlock()
	for _, o := range all {
		if err := l.be.Collection(collection).Delete(id(o.Key)); err != nil {
			return fmt.Errorf("ledger: unable to delete %q: %w", o.Key, err)
		}
	}
	log.WithFunc("ledger", "Reset").Debug("Ledger cleaned", "removed", len(all))
	return nil
}

// Compact reclaims the space of the replaced outcomes
func (l *Ledger) Compact() error {
	logger := log.WithFunc("ledger", "Compact")

	l.beMu.Lock()
	defer l.beMu.Unlock()

	s, _ := l.be.Stats()
	logger.Debug("Before compaction", "datafiles", s.Datafiles, "keys", s.Keys, "size", s.Size, "reclaimable", s.Reclaimable)
	if err := l.be.Merge(); err != nil {
		return fmt.Errorf("ledger: merge failed: %w", err)
	}
	s, _ = l.be.Stats()
	logger.Debug("After compaction", "datafiles", s.Datafiles, "keys", s.Keys, "size", s.Size, "reclaimable", s.Reclaimable)
	return nil
}

// Close compacts and closes the backend
func (l *Ledger) Close() error {
	if err := l.Compact(); err != nil {
		log.WithFunc("ledger", "Close").Warn("Compaction failed", "err", err)
	}

	l.beMu.Lock()
	defer l.beMu.Unlock()
	if err := l.be.Close(); err != nil {
		return fmt.Errorf("ledger: unable to close backend: %w", err)
	}
	return nil
}
