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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushViaDispatchRepliesOnCompletion(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))

	client := newTestReplier()
	require.NoError(t, s.Dispatch("flush", nil, client))
	waitChild(t, s)

	select {
	case <-client.done:
		assert.NoError(t, client.err)
	case <-time.After(time.Second):
		t.Fatal("client was never replied to")
	}
	assert.Equal(t, 0, s.DirtyCount())
}

func TestFlushRejectsSecondConcurrentCaller(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))

	first := newTestReplier()
	require.NoError(t, s.Dispatch("FLUSH", nil, first))

	second := newTestReplier()
	err := s.Dispatch("FLUSH", nil, second)
	assert.ErrorIs(t, err, ErrBusy)

	waitChild(t, s)
}

func TestBackgroundDirtyFlushRejectsDirtyFlushingPrecondition(t *testing.T) {
	s := newTestServer(t)
	l := s.LDB(0)
	l.touch("a")
	_, err := l.rotate() // leaves flushing non-empty without draining it

	require.NoError(t, err)
	assert.ErrorIs(t, s.BackgroundDirtyFlush(), ErrFlushPrecond)
}

func TestSnapshotRidesOnTopOfFlush(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))

	client := newTestReplier()
	require.NoError(t, s.Snapshot(client))
	waitChild(t, s)

	select {
	case <-client.done:
		assert.NoError(t, client.err)
	case <-time.After(time.Second):
		t.Fatal("client was never replied to")
	}
}

func TestSnapshotDefersWhenFlushAlreadyRunning(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))

	// A flush with no parked client, as an autonomous policy trigger would
	// start it, leaves the pending slot free for the snapshot request.
	require.NoError(t, s.BackgroundDirtyFlush())

	snapshotClient := newTestReplier()
	require.NoError(t, s.Snapshot(snapshotClient))
	assert.True(t, s.snapshotPending.Load())

	waitChild(t, s) // reaps the in-flight flush, whose exit starts the deferred snapshot round, and keeps polling until that round is reaped too
	waitChild(t, s) // no child is left running, so this returns at once

	select {
	case <-snapshotClient.done:
		assert.NoError(t, snapshotClient.err)
	case <-time.After(time.Second):
		t.Fatal("snapshot client was never replied to")
	}
}
