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
	"os"
)

// Snapshot starts a flush, and once it completes successfully, an atomic
// whole-environment copy of the freezer to the server's configured snapshot
// directory (removed and recreated on every snapshot, never accumulated).
// client is parked in the pending slot. When no flush is running, the client
// is replied to once both steps finish (or either fails). When a flush is
// already running, the copy is deferred to a follow-up flush+copy round that
// starts when the running one completes; the parked client is replied to
// when the running round completes, not after the follow-up copy.
func (s *Server) Snapshot(client Replier) error {
	s.childMu.Lock()
	busy := s.childRunning
	s.childMu.Unlock()

	if err := s.pending.park(client); err != nil {
		return err
	}

	if busy {
		// A flush is already underway; defer the snapshot to a follow-up
		// round that onChildExit starts, rather than rejecting the caller.
		s.snapshotPending.Store(true)
		return nil
	}

	s.snapshotInProgress.Store(true)
	if err := s.BackgroundDirtyFlush(); err != nil {
		s.snapshotInProgress.Store(false)
		s.pending.resolve(err)
		return err
	}
	return nil
}

// performSnapshotCopy is the copy step the flush child runs after draining
// every logical database and before it reports completion. Called only
// when the in-flight flush was started on behalf of a Snapshot request.
// The snapshot directory is removed and recreated on every call: the copy
// it produces is a single, current snapshot, not an accumulating history.
func (s *Server) performSnapshotCopy() error {
	if err := os.RemoveAll(s.snapshotDir); err != nil {
		return fmt.Errorf("nds: removing previous snapshot failed: %w", err)
	}
	return s.freezer.copyEnv(s.snapshotDir)
}
