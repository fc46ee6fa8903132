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
	"errors"
	"strings"
)

// Freezer errors never propagate into the foreground read path as failures
// — a miss is a miss — but they are still distinguishable for logging and
// for the flush coordinator's merge-back decision.
var (
	// ErrEnvInit means the freezer environment could not be created, opened
	// or sized. The next call retries from scratch.
	ErrEnvInit = errors.New("nds: freezer environment init failed")

	// ErrTxnBegin and ErrDbiOpen are transient: the current operation fails,
	// logs, and releases any partial state it acquired.
	ErrTxnBegin = errors.New("nds: could not begin freezer transaction")
	ErrDbiOpen  = errors.New("nds: could not open freezer sub-database")

	// ErrTxnFull means a write transaction outgrew its capacity. put()
	// recovers from this once internally (commit, reopen, retry); callers
	// only observe it if the second attempt also overflowed.
	ErrTxnFull = errors.New("nds: freezer transaction full")

	// ErrCorrupt means a stored dump-payload failed checksum verification.
	// Treated as a miss by the read path, logged at warning.
	ErrCorrupt = errors.New("nds: dump-payload checksum mismatch")

	// ErrChildSpawnFailed means the flush child could not be started; no
	// state was mutated.
	ErrChildSpawnFailed = errors.New("nds: failed to start background flush")

	// ErrChildDied means the flush child exited with an error or was killed;
	// triggers merge_flushing_back.
	ErrChildDied = errors.New("nds: background flush child failed")

	// ErrBusy means a background operation is already in flight, or the
	// pending-requester slot is occupied.
	ErrBusy = errors.New("nds: background operation already in progress")

	// ErrBadArity and ErrBadSubcommand are admin-dispatcher errors. Use
	// badArityError/badSubcommandError to build the caller-facing wire-
	// protocol message; errors.Is against these sentinels still works since
	// both errors Unwrap to them.
	ErrBadArity      = errors.New("nds: wrong number of arguments")
	ErrBadSubcommand = errors.New("nds: unknown NDS subcommand")
	ErrRotatePrecond = errors.New("nds: rotate called with non-empty flushing set")
	ErrFlushPrecond  = errors.New("nds: flushing set must be empty before a new flush")
)

// validSubcommands lists every admin subcommand Dispatch accepts, in the
// order the unknown-subcommand wire message enumerates them.
var validSubcommands = []string{"FLUSH", "SNAPSHOT", "CLEARSTATS", "PRELOAD"}

// arityError is the wire-protocol message for an admin subcommand called
// with the wrong number of arguments.
type arityError struct {
	subcommand string
}

func (e *arityError) Error() string {
	return "Wrong number of arguments for NDS " + strings.ToUpper(e.subcommand)
}

func (e *arityError) Unwrap() error { return ErrBadArity }

func badArityError(subcommand string) error {
	return &arityError{subcommand: subcommand}
}

// subcommandError is the wire-protocol message for an unrecognized admin
// subcommand, enumerating the subcommands that are actually valid.
type subcommandError struct{}

func (e *subcommandError) Error() string {
	return "Unknown NDS subcommand, must be one of " + strings.Join(validSubcommands, ", ")
}

func (e *subcommandError) Unwrap() error { return ErrBadSubcommand }

func badSubcommandError() error {
	return &subcommandError{}
}
