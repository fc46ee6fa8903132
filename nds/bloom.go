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

import "hash/fnv"

// bloomMayContain reports whether key might be present in the freezer. A
// false result is conclusive: the key was never observed by bloomWitness.
// bloomfilter/v2 takes the full hash.Hash64 the key was hashed with, not
// just its Sum64, so a fresh FNV-64a hasher is built and fed the key on
// every call.
func (l *LDB) bloomMayContain(key []byte) bool {
	h := fnv.New64a()
	h.Write(key)
	return l.bloom.Contains(h)
}

// bloomWitness records that key is now known to exist in the freezer
// (flushed, or discovered during preload).
func (l *LDB) bloomWitness(key []byte) {
	h := fnv.New64a()
	h.Write(key)
	l.bloom.Add(h)
}
