// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"time"
)

// windowStore holds the counters of a single window kind, keyed by identifier.
// It is not safe for concurrent use; the Limiter serializes access.
type windowStore struct {
	window  Window
	records map[string]*counter
}

func newWindowStore(window Window) *windowStore {
	return &windowStore{
		window:  window,
		records: make(map[string]*counter),
	}
}

// current returns the live counter for identifier, creating it or replacing a
// stale one with a fresh window starting at now.
func (s *windowStore) current(identifier string, now time.Time) *counter {
	record, exists := s.records[identifier]
	if !exists || record.expired(now) {
		record = &counter{
			hits:    0,
			resetAt: now.Add(s.window.Duration()),
		}
		s.records[identifier] = record
	}
	return record
}

// peek is current without side effects.
func (s *windowStore) peek(identifier string, now time.Time) counter {
	record, exists := s.records[identifier]
	if !exists || record.expired(now) {
		return counter{resetAt: now.Add(s.window.Duration())}
	}
	return *record
}

// delete drops the record for identifier.
func (s *windowStore) delete(identifier string) {
	delete(s.records, identifier)
}

// sweep deletes records whose window ended before now and returns how many were removed.
func (s *windowStore) sweep(now time.Time) int {
	removed := 0
	for identifier, record := range s.records {
		if record.resetAt.Before(now) {
			delete(s.records, identifier)
			removed++
		}
	}
	return removed
}

func (s *windowStore) len() int {
	return len(s.records)
}
