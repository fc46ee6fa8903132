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
)

func TestBloomNeverFalseNegative(t *testing.T) {
	l := newLDB(0)
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("long-key-value-here")}
	for _, k := range keys {
		l.bloomWitness(k)
	}
	for _, k := range keys {
		assert.True(t, l.bloomMayContain(k))
	}
}

func TestBloomRejectsUnwitnessedKey(t *testing.T) {
	l := newLDB(0)
	l.bloomWitness([]byte("a"))
	assert.False(t, l.bloomMayContain([]byte("never-seen")))
}
