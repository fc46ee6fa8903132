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
	"hash/crc32"

	"github.com/golang/snappy"
)

// Codec serializes values into the envelope the freezer stores on disk.
// A concrete default is supplied so the freezer store and the read/write
// glue are independently testable. Real deployments plug in whatever codec
// the in-memory server already uses to dump objects to RDB-like payloads.
type Codec interface {
	// Encode produces a self-describing, checksummed envelope for value.
	Encode(value []byte) []byte

	// Decode validates the envelope's checksum and returns the original
	// value. Returns ErrCorrupt if the checksum does not match.
	Decode(payload []byte) ([]byte, error)
}

// snappyCodec is the default Codec: a length-prefixed, crc32-checksummed,
// snappy-compressed envelope — the same compress-then-checksum shape
// go-ethereum's own ancient-store freezer tables use.
type snappyCodec struct{}

// DefaultCodec is the dump-payload codec used when none is supplied.
var DefaultCodec Codec = snappyCodec{}

const envelopeHeaderLen = 8 // 4 bytes length + 4 bytes crc32c checksum

func (snappyCodec) Encode(value []byte) []byte {
	compressed := snappy.Encode(nil, value)
	checksum := crc32.Checksum(compressed, crc32.MakeTable(crc32.Castagnoli))

	out := make([]byte, envelopeHeaderLen+len(compressed))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(compressed)))
	binary.BigEndian.PutUint32(out[4:8], checksum)
	copy(out[envelopeHeaderLen:], compressed)
	return out
}

func (snappyCodec) Decode(payload []byte) ([]byte, error) {
	if len(payload) < envelopeHeaderLen {
		return nil, ErrCorrupt
	}
	length := binary.BigEndian.Uint32(payload[0:4])
	checksum := binary.BigEndian.Uint32(payload[4:8])
	body := payload[envelopeHeaderLen:]
	if uint32(len(body)) != length {
		return nil, ErrCorrupt
	}
	if crc32.Checksum(body, crc32.MakeTable(crc32.Castagnoli)) != checksum {
		return nil, ErrCorrupt
	}
	value, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, ErrCorrupt
	}
	return value, nil
}
