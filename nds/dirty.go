// Copyright 2024 The nds Authors
// This file is part of the nds library.
//
// The nds library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The nds library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the nds library. If not, see <http://www.gnu.org/licenses/>.

package nds

import mapset "github.com/deckarep/golang-set/v2"

// touch records that key's in-memory value has not yet been propagated to
// the freezer. Idempotent: touching an already-dirty key is a no-op.
func (l *LDB) touch(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty.Add(key)
}

// isShadowed is the predicate that gates freezer reads: a key in either the
// dirty or flushing set must never be served from the freezer, because the
// in-memory tier (or its absence) is authoritative for it.
func (l *LDB) isShadowed(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty.Contains(key) || l.flushing.Contains(key)
}

func (l *LDB) dirtyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty.Cardinality()
}

func (l *LDB) flushingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.flushing.Cardinality()
}

// rotate atomically swaps dirty and flushing. Precondition: flushing is
// empty — the caller, the flush coordinator, must have fully drained the
// previous round first. Returns the keys now captured in flushing, a
// defensive copy the flush goroutine owns independently of any subsequent
// foreground mutation.
func (l *LDB) rotate() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flushing.Cardinality() != 0 {
		return nil, ErrRotatePrecond
	}
	l.flushing, l.dirty = l.dirty, mapset.NewThreadUnsafeSet[string]()
	return l.flushing.ToSlice(), nil
}

// mergeFlushingBack moves every key in flushing into dirty and clears
// flushing. Called when the flush child fails: we cannot know how far it
// got, so every key it was responsible for is still treated as dirty.
func (l *LDB) mergeFlushingBack() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty = l.dirty.Union(l.flushing)
	l.flushing = mapset.NewThreadUnsafeSet[string]()
}

// clearFlushing empties flushing. Called when the flush child succeeds.
func (l *LDB) clearFlushing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushing = mapset.NewThreadUnsafeSet[string]()
}
