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

func TestSnappyCodecRoundTrip(t *testing.T) {
	values := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		make([]byte, 4096),
	}
	for _, v := range values {
		payload := DefaultCodec.Encode(v)
		got, err := DefaultCodec.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestSnappyCodecDetectsCorruption(t *testing.T) {
	payload := DefaultCodec.Encode([]byte("hello"))
	payload[len(payload)-1] ^= 0xff

	_, err := DefaultCodec.Decode(payload)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSnappyCodecRejectsTruncatedPayload(t *testing.T) {
	_, err := DefaultCodec.Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}
