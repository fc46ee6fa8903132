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
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"golang.org/x/sync/singleflight"
)

// Server is a single-threaded, cooperative foreground: every get/set/del/
// admin call must come from one goroutine. The only concurrent activity it
// tolerates is the flush/snapshot child it spawns itself, and the
// done-channel it reports completion through.
type Server struct {
	dbs   []*LDB
	codec Codec

	freezer *freezerEnv

	// decodeCache holds already-decoded freezer payloads, keyed by
	// ldb||key, so a hot read-through key doesn't pay for an LMDB lookup
	// plus a snappy decode on every repeat miss against the live map.
	decodeCache *fastcache.Cache

	pending pendingSlot

	childMu      sync.Mutex
	childRunning bool
	childDone    chan flushResult

	snapshotPending    atomic.Bool
	snapshotInProgress atomic.Bool

	// dirtyBeforeBgsave is only a capacity hint for the entries slice
	// BackgroundDirtyFlush builds; DirtyCount() is derived live from the
	// tracker afterward rather than decremented from this snapshot.
	dirtyBeforeBgsave int64

	snapshotDir    string
	interruptEvery int
	pump           EventPump

	preloadGroup     singleflight.Group
	preloadComplete  atomic.Bool

	lastSaveUnix atomic.Int64
}

// Options configures a new Server.
type Options struct {
	// Databases is N, the number of logical database partitions.
	Databases int
	// Dir is the freezer environment's root directory.
	Dir string
	// MapSize reserves the freezer environment's address space.
	MapSize int64
	// SnapshotDir is where SNAPSHOT copies the environment to.
	SnapshotDir string
	// InterruptEvery controls the preload cursor walk's yield rate.
	InterruptEvery int
	// Codec overrides the default dump-payload codec.
	Codec Codec
	// Pump overrides the default no-op event pump.
	Pump EventPump
	// DecodeCacheBytes sizes the decoded-payload cache. Zero selects a
	// conservative default.
	DecodeCacheBytes int
}

// NewServer constructs a Server with N logical databases, backed by a
// freezer environment at opts.Dir.
func NewServer(opts Options) (*Server, error) {
	if opts.Databases < 1 {
		return nil, fmt.Errorf("nds: Databases must be >= 1")
	}
	if opts.MapSize <= 0 {
		opts.MapSize = 1 << 40 // 1 TiB
	}
	if opts.InterruptEvery <= 0 {
		opts.InterruptEvery = 1000
	}
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = "./snapshot"
	}
	codec := opts.Codec
	if codec == nil {
		codec = DefaultCodec
	}
	cacheBytes := opts.DecodeCacheBytes
	if cacheBytes <= 0 {
		cacheBytes = 32 * 1024 * 1024
	}

	dbs := make([]*LDB, opts.Databases)
	for i := range dbs {
		dbs[i] = newLDB(i)
	}

	return &Server{
		dbs:            dbs,
		codec:          codec,
		freezer:        newFreezerEnv(opts.Dir, opts.MapSize, opts.Databases),
		decodeCache:    fastcache.New(cacheBytes),
		snapshotDir:    opts.SnapshotDir,
		interruptEvery: opts.InterruptEvery,
		pump:           opts.Pump,
	}, nil
}

// LDB returns the logical database partition with the given id. Panics on
// an out-of-range id: N is a construction-time server-wide constant.
func (s *Server) LDB(id int) *LDB {
	return s.dbs[id]
}

// N returns the number of logical database partitions.
func (s *Server) N() int { return len(s.dbs) }

// DirtyCount aggregates the dirty-key count across every LDB.
func (s *Server) DirtyCount() int {
	total := 0
	for _, l := range s.dbs {
		total += l.dirtyCount()
	}
	return total
}

// FlushingCount aggregates the flushing-key count across every LDB.
func (s *Server) FlushingCount() int {
	total := 0
	for _, l := range s.dbs {
		total += l.flushingCount()
	}
	return total
}

// LastSave returns the timestamp of the most recent successful flush.
func (s *Server) LastSave() time.Time {
	unix := s.lastSaveUnix.Load()
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

// PreloadComplete reports whether the first (and only) preload walk has
// finished.
func (s *Server) PreloadComplete() bool { return s.preloadComplete.Load() }

// Close releases every resource the server holds: the freezer environment
// and its instance lock. Safe to call once, after no background operation
// is in flight.
func (s *Server) Close() {
	s.freezer.closeBeforeFork()
	s.freezer.closeLockFile()
}
