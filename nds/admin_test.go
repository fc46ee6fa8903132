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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRejectsUnknownSubcommand(t *testing.T) {
	s := newTestServer(t)
	err := s.Dispatch("bogus", nil, newTestReplier())
	assert.ErrorIs(t, err, ErrBadSubcommand)
}

func TestDispatchRejectsWrongArity(t *testing.T) {
	s := newTestServer(t)
	err := s.Dispatch("clearstats", []string{"unexpected"}, newTestReplier())
	assert.ErrorIs(t, err, ErrBadArity)
}

func TestDispatchClearStatsRepliesSynchronously(t *testing.T) {
	s := newTestServer(t)
	cacheHitCounter.Inc(5)
	client := newTestReplier()

	require.NoError(t, s.Dispatch("CLEARSTATS", nil, client))

	select {
	case <-client.done:
		assert.NoError(t, client.err)
	default:
		t.Fatal("CLEARSTATS must reply before Dispatch returns")
	}
	assert.Equal(t, int64(0), cacheHitCounter.Count())
}

func TestDispatchPreloadRepliesSynchronously(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.setNDS(0, []byte("a"), []byte("1")))
	client := newTestReplier()

	require.NoError(t, s.Dispatch("preload", nil, client))

	select {
	case <-client.done:
		assert.NoError(t, client.err)
	default:
		t.Fatal("PRELOAD must reply before Dispatch returns")
	}
	assert.True(t, s.PreloadComplete())
}

func TestDispatchIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t)
	client := newTestReplier()
	require.NoError(t, s.Dispatch("ClearStats", nil, client))
	<-client.done
}
