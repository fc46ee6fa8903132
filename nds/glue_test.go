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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Options{
		Databases:   4,
		Dir:         t.TempDir(),
		MapSize:     1 << 26,
		SnapshotDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// waitChild polls until the flush/snapshot child the test just started has
// finished, without relying on a production event loop.
func waitChild(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.childMu.Lock()
		running := s.childRunning
		s.childMu.Unlock()
		if !running {
			return
		}
		s.Tick()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("flush child never completed")
}

type testReplier struct {
	err  error
	done chan struct{}
}

func newTestReplier() *testReplier {
	return &testReplier{done: make(chan struct{}, 1)}
}

func (r *testReplier) Reply(err error) {
	r.err = err
	r.done <- struct{}{}
}

func TestWriteThenReadBypassesFreezer(t *testing.T) {
	s := newTestServer(t)

	s.SetLive(0, []byte("a"), []byte("1"))
	require.NoError(t, s.setNDS(0, []byte("a"), []byte("0"))) // stale freezer value, written directly

	v, ok := s.LiveGet(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestDeleteShadowsFreezer(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.setNDS(0, []byte("a"), []byte("1")))

	s.DeleteLive(0, []byte("a"))

	_, ok := s.LiveGet(0, []byte("a"))
	assert.False(t, ok)
	v, err := s.Get(0, []byte("a"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFlushPersistsAndClearsDirty(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))
	s.SetLive(0, []byte("b"), []byte("2"))
	require.Equal(t, 2, s.DirtyCount())

	require.NoError(t, s.BackgroundDirtyFlush())
	waitChild(t, s)

	assert.Equal(t, 0, s.DirtyCount())
	assert.Equal(t, 0, s.FlushingCount())

	v, err := s.Get(0, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	v, err = s.Get(0, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestConcurrentWritesDuringFlushLandInNewDirtySet(t *testing.T) {
	s := newTestServer(t)
	s.SetLive(0, []byte("a"), []byte("1"))

	require.NoError(t, s.BackgroundDirtyFlush())
	// A write arriving immediately after rotation must land in the fresh
	// dirty set, not the one the in-flight child is draining.
	s.SetLive(0, []byte("b"), []byte("2"))
	assert.Equal(t, 1, s.DirtyCount())

	waitChild(t, s)

	v, err := s.Get(0, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// "b" is still dirty: it was never part of the drained round.
	assert.Equal(t, 1, s.DirtyCount())
}

func TestPreloadIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.setNDS(0, []byte("a"), []byte("1")))

	require.NoError(t, s.Preload())
	assert.True(t, s.PreloadComplete())
	v, ok := s.LiveGet(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	// A second call is a no-op: it must not re-walk or error.
	require.NoError(t, s.Preload())
}

func TestNukeAllDropsEverySubDatabase(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.setNDS(0, []byte("a"), []byte("1")))
	require.NoError(t, s.setNDS(1, []byte("b"), []byte("2")))

	require.NoError(t, s.NukeAll())

	v, err := s.Get(0, []byte("a"))
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = s.Get(1, []byte("b"))
	require.NoError(t, err)
	assert.Nil(t, v)
}
