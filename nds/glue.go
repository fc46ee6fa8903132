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
	"encoding/binary"

	"github.com/ndsdb/nds/internal/log"
)

// decodeCacheKey namespaces a fastcache entry by its logical database, so
// identical key bytes in two different LDBs never collide.
func decodeCacheKey(ldbID int, key []byte) []byte {
	out := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(out[:4], uint32(ldbID))
	copy(out[4:], key)
	return out
}

// LiveGet returns the in-memory value for key, if any. The command path
// calls this before Get, so a hit here never touches the freezer at all.
func (s *Server) LiveGet(ldbID int, key []byte) ([]byte, bool) {
	return s.LDB(ldbID).liveGet(string(key))
}

// Get implements the freezer-side read path. The caller (the server's
// command path) is expected to have already consulted LiveGet and to call
// Get only on a miss there. Get itself still honours the shadow rule before
// ever touching the freezer, and falls back to the freezer only when the
// key is neither in memory nor shadowed.
func (s *Server) Get(ldbID int, key []byte) ([]byte, error) {
	l := s.LDB(ldbID)
	k := string(key)

	if l.isShadowed(k) {
		// A dirty or flushing key with nothing in memory is logically
		// deleted: the shadow rule forbids serving the (stale or absent)
		// freezer copy.
		cacheMissCounter.Inc(1)
		return nil, nil
	}
	if s.preloadComplete.Load() && !l.bloomMayContain(key) {
		cacheMissCounter.Inc(1)
		return nil, nil
	}

	cacheKey := decodeCacheKey(ldbID, key)
	if cached, ok := s.decodeCache.HasGet(nil, cacheKey); ok {
		cacheHitCounter.Inc(1)
		return cached, nil
	}

	dbh, err := s.freezer.open(ldbID, false)
	if err != nil {
		log.Warn("Freezer read-through failed, treating as miss", "ldb", ldbID, "err", err)
		cacheMissCounter.Inc(1)
		return nil, nil
	}
	defer dbh.close()

	payload, found, err := dbh.get(key)
	if err != nil {
		log.Warn("Freezer read-through failed, treating as miss", "ldb", ldbID, "err", err)
		cacheMissCounter.Inc(1)
		return nil, nil
	}
	if !found {
		cacheMissCounter.Inc(1)
		return nil, nil
	}

	value, err := s.codec.Decode(payload)
	if err != nil {
		log.Warn("Freezer payload failed checksum, treating as miss", "ldb", ldbID, "key", string(key))
		cacheMissCounter.Inc(1)
		return nil, nil
	}
	s.decodeCache.Set(cacheKey, value)
	cacheHitCounter.Inc(1)
	return value, nil
}

// Exists is the same shadow short-circuit as Get, but without paying for a
// decode.
func (s *Server) Exists(ldbID int, key []byte) (bool, error) {
	l := s.LDB(ldbID)
	k := string(key)

	if l.isShadowed(k) {
		return false, nil
	}
	if s.preloadComplete.Load() && !l.bloomMayContain(key) {
		return false, nil
	}

	dbh, err := s.freezer.open(ldbID, false)
	if err != nil {
		return false, err
	}
	defer dbh.close()

	_, found, err := dbh.get(key)
	return found, err
}

// SetLive is the foreground half of a write: store in memory and mark the
// key dirty. The freezer is only touched later, by the flush coordinator.
func (s *Server) SetLive(ldbID int, key []byte, value []byte) {
	l := s.LDB(ldbID)
	l.liveSet(string(key), value)
	l.touch(string(key))
}

// DeleteLive is the foreground half of a delete: remove from memory and
// mark the key dirty, so the flush coordinator issues the corresponding
// freezer del().
func (s *Server) DeleteLive(ldbID int, key []byte) {
	l := s.LDB(ldbID)
	l.liveDelete(string(key))
	l.touch(string(key))
}

// setNDS is the freezer-side half of a write, used directly by the flush
// child.
func (s *Server) setNDS(ldbID int, key, value []byte) error {
	payload := s.codec.Encode(value)
	dbh, err := s.freezer.open(ldbID, true)
	if err != nil {
		return err
	}
	defer dbh.close()
	if err := dbh.put(key, payload); err != nil {
		return err
	}
	s.LDB(ldbID).bloomWitness(key)
	s.decodeCache.Del(decodeCacheKey(ldbID, key))
	return nil
}

// delNDS is the freezer-side half of a delete, used by the flush child.
func (s *Server) delNDS(ldbID int, key []byte) error {
	dbh, err := s.freezer.open(ldbID, true)
	if err != nil {
		return err
	}
	defer dbh.close()
	_, err = dbh.del(key)
	s.decodeCache.Del(decodeCacheKey(ldbID, key))
	return err
}

// NukeAll implements nuke_all: drop every sub-database.
func (s *Server) NukeAll() error {
	for i := range s.dbs {
		dbh, err := s.freezer.open(i, true)
		if err != nil {
			return err
		}
		err = dbh.drop()
		dbh.close()
		if err != nil {
			return err
		}
	}
	s.decodeCache.Reset()
	return nil
}

// Preload walks every sub-database once, populating the in-memory tier
// from whatever the freezer already holds. It is safe to call repeatedly:
// concurrent callers collapse onto the single in-flight walk via
// singleflight, and once a walk has completed the preloadComplete flag makes
// every later call return without walking again.
func (s *Server) Preload() error {
	_, err, _ := s.preloadGroup.Do("preload", func() (interface{}, error) {
		if s.preloadComplete.Load() {
			return nil, nil
		}
		for i, l := range s.dbs {
			dbh, err := s.freezer.open(i, false)
			if err != nil {
				return nil, err
			}
			walkErr := dbh.cursorWalk(func(key []byte) bool {
				k := string(key)
				if _, exists := l.liveGet(k); exists {
					return true
				}
				payload, found, err := dbh.get(key)
				if err != nil || !found {
					return true
				}
				value, err := s.codec.Decode(payload)
				if err != nil {
					log.Warn("Skipping corrupt payload during preload", "ldb", i, "key", k)
					return true
				}
				l.liveSet(k, value)
				l.bloomWitness(key)
				return true
			}, s.interruptEvery, s.pump)
			dbh.close()
			if walkErr != nil {
				return nil, walkErr
			}
		}
		s.preloadComplete.Store(true)
		return nil, nil
	})
	return err
}
