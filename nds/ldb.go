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

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/bloomfilter/v2"
)

// LDB is a numbered logical database partition. It owns the in-memory
// mapping the server keeps for this partition, plus the dirty and flushing
// key sets that shadow the freezer.
type LDB struct {
	id int

	mu   sync.RWMutex
	live map[string][]byte

	dirty    mapset.Set[string]
	flushing mapset.Set[string]

	// bloom shortcuts reads that are guaranteed absent from the freezer. It
	// only sees keys put by this process or found by preload, so the glue
	// code consults it only once preload has completed; a key it has never
	// seen then doesn't need a wasted LMDB lookup before a miss is reported.
	bloom *bloomfilter.Filter
}

const (
	bloomM = 1 << 20 // bits
	bloomK = 4        // hash functions
)

func newLDB(id int) *LDB {
	bf, err := bloomfilter.New(bloomM, bloomK)
	if err != nil {
		panic(err) // bloomM/bloomK are compile-time constants, always valid
	}
	return &LDB{
		id:       id,
		live:     make(map[string][]byte),
		dirty:    mapset.NewThreadUnsafeSet[string](),
		flushing: mapset.NewThreadUnsafeSet[string](),
		bloom:    bf,
	}
}

// ID returns the logical database's numeric identifier.
func (l *LDB) ID() int { return l.id }

func (l *LDB) liveGet(key string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.live[key]
	return v, ok
}

func (l *LDB) liveSet(key string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.live[key] = value
}

func (l *LDB) liveDelete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.live, key)
}

// liveSnapshot returns a defensive copy of the current value for key, used
// by the flush child to capture a point-in-time view without holding the
// live map lock for the duration of the flush.
func (l *LDB) liveSnapshot(key string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.live[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}
