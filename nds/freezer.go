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

// Package nds implements a disk-backed spillover store for an in-memory
// key/value server: a freezer (this file), a dirty-key tracker (dirty.go),
// read-through/write-back glue (glue.go), a background flush coordinator
// (flush.go) and a snapshot coordinator (snapshot.go).
package nds

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatsuo/lmdb-go/lmdb"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/tsdb/fileutil"

	"github.com/ndsdb/nds/internal/log"
)

// freezerEnv is the process-wide singleton: a single LMDB environment
// rooted at a configured directory, opened lazily and closed before the
// flush/snapshot child starts.
type freezerEnv struct {
	mu  sync.Mutex
	env *lmdb.Env
	dir string

	mapSize  int64
	maxDBs   int
	dbiCache *lru.Cache // "freezer_<id>" -> lmdb.DBI, invalidated whenever the env is reopened

	lock fileutil.Releaser
}

func newFreezerEnv(dir string, mapSize int64, maxDBs int) *freezerEnv {
	cache, err := lru.New(maxDBs * 2)
	if err != nil {
		// Only fails for a non-positive size, which newFreezerEnv's caller
		// (Server construction) already validates against N >= 1.
		panic(err)
	}
	return &freezerEnv{dir: dir, mapSize: mapSize, maxDBs: maxDBs, dbiCache: cache}
}

// ensureOpen lazily initializes the environment. Callers must hold f.mu.
func (f *freezerEnv) ensureOpen() error {
	if f.env != nil {
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvInit, err)
	}
	if f.lock == nil {
		lock, _, err := fileutil.Flock(filepath.Join(f.dir, "LOCK"))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEnvInit, err)
		}
		f.lock = lock
	}
	env, err := lmdb.NewEnv()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnvInit, err)
	}
	if err := env.SetMapSize(f.mapSize); err != nil {
		env.Close()
		return fmt.Errorf("%w: %v", ErrEnvInit, err)
	}
	if err := env.SetMaxDBs(f.maxDBs); err != nil {
		env.Close()
		return fmt.Errorf("%w: %v", ErrEnvInit, err)
	}
	if err := env.Open(f.dir, 0, 0o644); err != nil {
		env.Close()
		return fmt.Errorf("%w: %v", ErrEnvInit, err)
	}
	f.env = env
	f.dbiCache.Purge()
	log.Info("Opened freezer environment", "dir", f.dir, "mapsize", f.mapSize, "maxdbs", f.maxDBs)
	return nil
}

// closeBeforeFork closes the environment. It is mandatory before the flush
// child starts: the child must reopen its own mapping rather than share the
// parent's. Safe to call when already closed.
func (f *freezerEnv) closeBeforeFork() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.env == nil {
		return
	}
	f.env.Close()
	f.env = nil
	f.dbiCache.Purge()
}

func (f *freezerEnv) closeLockFile() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock != nil {
		f.lock.Release()
		f.lock = nil
	}
}

// DBH is a short-lived transaction + sub-database handle, bound to a single
// LDB for the duration of one freezer operation.
type DBH struct {
	owner  *freezerEnv
	txn    *lmdb.Txn
	dbi    lmdb.DBI
	ldb    int
	writer bool

	// lockedThread records whether this handle pinned its goroutine to the
	// current OS thread. Set only for writers; cleared (and the thread
	// released) exactly once, in close().
	lockedThread bool
}

func subDBName(ldb int) string { return fmt.Sprintf("freezer_%d", ldb) }

// open lazily initializes the environment, begins a transaction, and opens
// (creating if necessary, for writers only) the named sub-database.
//
// A write transaction must live out its entire life — including the
// commit/reopen/retry recovery in put() — on a single, unmigrated OS
// thread: lmdb-go's BeginTxn does not call runtime.LockOSThread itself, and
// Go's scheduler is otherwise free to move the goroutine between its
// BeginTxn and the matching Commit, which LMDB does not tolerate for
// writers. The lock is acquired here, once, for the handle's whole
// lifetime, and released in close().
func (f *freezerEnv) open(ldb int, writer bool) (*DBH, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureOpen(); err != nil {
		return nil, err
	}
	if writer {
		runtime.LockOSThread()
	}
	dbh, err := f.beginLocked(ldb, writer)
	if err != nil {
		if writer {
			runtime.UnlockOSThread()
		}
		return nil, err
	}
	dbh.lockedThread = writer
	return dbh, nil
}

// beginLocked assumes f.mu is held and f.env != nil.
func (f *freezerEnv) beginLocked(ldb int, writer bool) (*DBH, error) {
	flags := uint(0)
	if !writer {
		flags = lmdb.Readonly
	}
	txn, err := f.env.BeginTxn(nil, flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTxnBegin, err)
	}

	name := subDBName(ldb)

	// A DBI handle stays valid for the environment's lifetime once opened,
	// so a cache hit skips mdb_dbi_open entirely instead of re-resolving the
	// sub-database name on every single-key operation.
	if cached, ok := f.dbiCache.Get(name); ok {
		return &DBH{owner: f, txn: txn, dbi: cached.(lmdb.DBI), ldb: ldb, writer: writer}, nil
	}

	dbiFlags := uint(0)
	if writer {
		dbiFlags = lmdb.Create
	}
	dbi, err := txn.OpenDBI(name, dbiFlags)
	if err != nil {
		txn.Abort()
		if !writer && lmdb.IsNotFound(err) {
			// No data has ever been flushed for this LDB; treat as an empty
			// sub-database rather than a hard failure.
			return &DBH{owner: f, ldb: ldb, writer: false}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDbiOpen, err)
	}
	f.dbiCache.Add(name, dbi)
	return &DBH{owner: f, txn: txn, dbi: dbi, ldb: ldb, writer: writer}, nil
}

// close commits (writer) or aborts (reader) the transaction. Safe to call on
// a nil *DBH or a DBH with no open transaction (the "sub-database never
// created yet" case from open()).
func (dbh *DBH) close() {
	if dbh == nil {
		return
	}
	defer func() {
		if dbh.lockedThread {
			runtime.UnlockOSThread()
			dbh.lockedThread = false
		}
	}()
	if dbh.txn == nil {
		return
	}
	if dbh.writer {
		if err := dbh.txn.Commit(); err != nil {
			log.Error("Failed to commit freezer transaction", "ldb", dbh.ldb, "err", err)
		}
	} else {
		dbh.txn.Abort()
	}
	dbh.txn = nil
}

// get returns the stored payload, or (nil, false, nil) on a plain miss.
func (dbh *DBH) get(key []byte) ([]byte, bool, error) {
	if dbh == nil || dbh.txn == nil {
		return nil, false, nil
	}
	val, err := dbh.txn.Get(dbh.dbi, key)
	if err != nil {
		if lmdb.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("nds: freezer get failed: %w", err)
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, true, nil
}

// put stores value under key. A transaction that overflows its capacity is
// committed, reopened, and retried exactly once before surfacing
// ErrTxnFull.
func (dbh *DBH) put(key, value []byte) error {
	if dbh.txn == nil {
		// The sub-database didn't exist when this DBH was opened for
		// reading; a put always needs a writer DBH, which always creates it.
		return fmt.Errorf("nds: put called on a DBH with no open transaction")
	}
	err := dbh.txn.Put(dbh.dbi, key, value, 0)
	if err == nil {
		return nil
	}
	if !lmdb.IsMapFull(err) {
		return fmt.Errorf("nds: freezer put failed: %w", err)
	}

	// TxnFull: commit what we have, reopen a fresh transaction + DBI, retry
	// once. The caller is never told a retry happened.
	f := dbh.owner
	ldb := dbh.ldb
	if cerr := dbh.txn.Commit(); cerr != nil {
		dbh.txn = nil
		return fmt.Errorf("%w: commit during recovery failed: %v", ErrTxnFull, cerr)
	}
	dbh.txn = nil

	f.mu.Lock()
	fresh, berr := f.beginLocked(ldb, true)
	f.mu.Unlock()
	if berr != nil {
		return fmt.Errorf("%w: reopen during recovery failed: %v", ErrTxnFull, berr)
	}
	dbh.txn, dbh.dbi = fresh.txn, fresh.dbi

	if err := dbh.txn.Put(dbh.dbi, key, value, 0); err != nil {
		return ErrTxnFull
	}
	return nil
}

// DelStatus reports the outcome of a freezer delete.
type DelStatus int

const (
	Deleted DelStatus = iota
	NotFound
)

func (dbh *DBH) del(key []byte) (DelStatus, error) {
	if dbh == nil || dbh.txn == nil {
		return NotFound, nil
	}
	err := dbh.txn.Del(dbh.dbi, key, nil)
	if err != nil {
		if lmdb.IsNotFound(err) {
			return NotFound, nil
		}
		return NotFound, fmt.Errorf("nds: freezer del failed: %w", err)
	}
	return Deleted, nil
}

// drop removes every entry in the sub-database (used by nuke_all).
func (dbh *DBH) drop() error {
	if dbh == nil || dbh.txn == nil {
		return nil
	}
	return dbh.txn.Drop(dbh.dbi, false)
}

// EventPump lets a long cursor walk yield to the rest of the system. The
// event loop itself lives outside this package; a default no-op pump is
// supplied so preload is independently testable.
type EventPump interface {
	// PumpOnce processes one round of pending, non-blocking, file events.
	PumpOnce()
}

type noopPump struct{}

func (noopPump) PumpOnce() {}

// cursorWalk iterates every key in the sub-database, yielding to pump every
// interruptEvery keys so a long walk never blocks the rest of the event
// loop. visit returning false stops the walk early.
func (dbh *DBH) cursorWalk(visit func(key []byte) bool, interruptEvery int, pump EventPump) error {
	if dbh == nil || dbh.txn == nil {
		return nil
	}
	if pump == nil {
		pump = noopPump{}
	}
	cur, err := dbh.txn.OpenCursor(dbh.dbi)
	if err != nil {
		return fmt.Errorf("nds: freezer cursor open failed: %w", err)
	}
	defer cur.Close()

	count := 0
	for {
		key, _, err := cur.Get(nil, nil, lmdb.Next)
		if err != nil {
			if lmdb.IsNotFound(err) {
				break
			}
			return fmt.Errorf("nds: freezer cursor walk failed: %w", err)
		}
		cp := make([]byte, len(key))
		copy(cp, key)
		if !visit(cp) {
			break
		}
		count++
		if interruptEvery > 0 && count%interruptEvery == 0 {
			pump.PumpOnce()
		}
	}
	return nil
}

// copyEnv writes an atomic, whole-environment copy to destination. Called
// after the flush child has drained its keys and before it reports
// completion, when nothing else is writing.
func (f *freezerEnv) copyEnv(destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureOpen(); err != nil {
		return err
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("nds: snapshot mkdir failed: %w", err)
	}
	if err := f.env.CopyFlag(destination, lmdb.CopyCompact); err != nil {
		return fmt.Errorf("nds: freezer copy failed: %w", err)
	}
	return nil
}
