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

func TestTouchIsIdempotent(t *testing.T) {
	l := newLDB(0)
	l.touch("a")
	l.touch("a")
	assert.Equal(t, 1, l.dirtyCount())
	assert.True(t, l.isShadowed("a"))
}

func TestRotateRequiresEmptyFlushing(t *testing.T) {
	l := newLDB(0)
	l.touch("a")

	keys, err := l.rotate()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, keys)
	assert.Equal(t, 0, l.dirtyCount())
	assert.Equal(t, 1, l.flushingCount())

	_, err = l.rotate()
	assert.ErrorIs(t, err, ErrRotatePrecond)
}

func TestRotateCapturesSnapshotIndependentOfNewWrites(t *testing.T) {
	l := newLDB(0)
	l.touch("a")

	keys, err := l.rotate()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, keys)

	// A write arriving immediately after rotation lands in the new dirty
	// set, not the one the flush child is draining.
	l.touch("b")
	assert.Equal(t, 1, l.dirtyCount())
	assert.Equal(t, 1, l.flushingCount())
}

func TestClearFlushingOnSuccess(t *testing.T) {
	l := newLDB(0)
	l.touch("a")
	_, err := l.rotate()
	require.NoError(t, err)

	l.clearFlushing()
	assert.Equal(t, 0, l.flushingCount())
	assert.False(t, l.isShadowed("a"))
}

func TestMergeFlushingBackOnFailure(t *testing.T) {
	l := newLDB(0)
	l.touch("a")
	_, err := l.rotate()
	require.NoError(t, err)

	l.touch("b") // concurrent write while the (failing) child is in flight

	l.mergeFlushingBack()
	assert.Equal(t, 0, l.flushingCount())
	assert.Equal(t, 2, l.dirtyCount())
	assert.True(t, l.isShadowed("a"))
	assert.True(t, l.isShadowed("b"))
}
