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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndsdb/nds/internal/log"
)

// dirtyEntry is one key captured at rotation time, together with the
// point-in-time value the flush child must write (or, if absent, the
// deletion it must issue). Capturing the value here — rather than letting
// the child re-read the live map later — stands in for a fork's
// copy-on-write snapshot, since the flush child is a goroutine sharing the
// same address space rather than a separate process.
type dirtyEntry struct {
	ldb     int
	key     []byte
	value   []byte
	present bool
}

// flushResult is the flush child's "exit code".
type flushResult struct {
	token uuid.UUID
	err   error
}

// BackgroundDirtyFlush starts the flush child, a goroutine that drains
// every logical database's flushing set into the freezer. It returns once
// the child has been started; completion is reported asynchronously and
// consumed by Tick.
func (s *Server) BackgroundDirtyFlush() error {
	s.childMu.Lock()
	defer s.childMu.Unlock()

	if s.childRunning {
		return ErrBusy
	}
	for _, l := range s.dbs {
		if l.flushingCount() != 0 {
			// Programmer error: the previous round's flushing set was never
			// drained and cleared. Loud on purpose.
			return ErrFlushPrecond
		}
	}

	s.dirtyBeforeBgsave = int64(s.DirtyCount())

	// Mandatory: the flush child must reopen the freezer environment rather
	// than share the parent's memory-mapped handle.
	s.freezer.closeBeforeFork()

	entries := make([]dirtyEntry, 0, s.dirtyBeforeBgsave)
	for i, l := range s.dbs {
		keys, err := l.rotate()
		if err != nil {
			// Already checked above; only reachable under concurrent misuse
			// of the single-threaded foreground contract.
			return ErrChildSpawnFailed
		}
		for _, k := range keys {
			value, present := l.liveSnapshot(k)
			entries = append(entries, dirtyEntry{ldb: i, key: []byte(k), value: value, present: present})
		}
	}

	token := uuid.New()
	done := make(chan flushResult, 1)
	s.childRunning = true
	s.childDone = done

	runSnapshot := s.snapshotInProgress.Load()
	go s.flushChild(token, entries, runSnapshot, done)

	log.Info("Started background flush", "child", token, "keys", len(entries), "snapshot", runSnapshot)
	return nil
}

// flushChild drains entries into the freezer, running on its own goroutine.
func (s *Server) flushChild(token uuid.UUID, entries []dirtyEntry, runSnapshot bool, done chan<- flushResult) {
	var failed bool
	for _, e := range entries {
		var err error
		if e.present {
			err = s.setNDS(e.ldb, e.key, e.value)
		} else {
			err = s.delNDS(e.ldb, e.key)
		}
		if err != nil {
			log.Error("Flush child failed to write key", "child", token, "ldb", e.ldb, "err", err)
			failed = true
		}
	}

	if !failed && runSnapshot {
		if err := s.performSnapshotCopy(); err != nil {
			log.Error("Flush child's snapshot copy failed", "child", token, "err", err)
			failed = true
		}
	}

	var result error
	if failed {
		result = ErrChildDied
	}
	done <- flushResult{token: token, err: result}
}

// Tick is a non-blocking poll the event loop calls periodically to reap a
// finished flush child. A no-op when no child is running or the one
// running hasn't finished yet.
func (s *Server) Tick() {
	s.childMu.Lock()
	done := s.childDone
	s.childMu.Unlock()
	if done == nil {
		return
	}

	select {
	case result := <-done:
		s.onChildExit(result)
	default:
	}
}

// onChildExit is the flush child's completion handler.
func (s *Server) onChildExit(result flushResult) {
	s.childMu.Lock()
	s.childRunning = false
	s.childDone = nil
	s.childMu.Unlock()

	wasSnapshot := s.snapshotInProgress.Load()
	s.snapshotInProgress.Store(false)

	if result.err == nil {
		for _, l := range s.dbs {
			l.clearFlushing()
		}
		s.lastSaveUnix.Store(time.Now().Unix())
		flushSuccessCounter.Inc(1)
		s.pending.resolve(nil)
	} else {
		for _, l := range s.dbs {
			l.mergeFlushingBack()
		}
		flushFailureCounter.Inc(1)
		if wasSnapshot {
			s.pending.resolve(errSnapshotFailed(result.err))
		} else {
			s.pending.resolve(errFlushFailed(result.err))
		}
	}

	if s.snapshotPending.Load() {
		s.snapshotPending.Store(false)
		s.snapshotInProgress.Store(true)
		if err := s.BackgroundDirtyFlush(); err != nil {
			log.Error("Failed to start deferred snapshot flush", "err", err)
			s.snapshotInProgress.Store(false)
		}
	}
}

func errFlushFailed(cause error) error {
	return fmt.Errorf("nds: flush failed, consult logs: %w", cause)
}

func errSnapshotFailed(cause error) error {
	return fmt.Errorf("nds: snapshot failed, consult logs: %w", cause)
}
