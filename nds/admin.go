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

import "strings"

// Dispatch routes a case-insensitive NDS admin subcommand to its handler.
// SNAPSHOT and FLUSH are asynchronous: client is parked in the pending slot
// and replied to later, once the background operation completes. CLEARSTATS
// and PRELOAD reply to client before Dispatch returns.
func (s *Server) Dispatch(subcommand string, args []string, client Replier) error {
	switch strings.ToUpper(subcommand) {
	case "FLUSH":
		if len(args) != 0 {
			return badArityError(subcommand)
		}
		s.childMu.Lock()
		busy := s.childRunning
		s.childMu.Unlock()
		if err := s.pending.park(client); err != nil {
			return err
		}
		if busy {
			// A flush is already in flight; the parked client is replied to
			// when it completes, same as if this call had started it.
			return nil
		}
		if err := s.BackgroundDirtyFlush(); err != nil {
			s.pending.resolve(err)
			return err
		}
		return nil

	case "SNAPSHOT":
		if len(args) != 0 {
			return badArityError(subcommand)
		}
		return s.Snapshot(client)

	case "CLEARSTATS":
		if len(args) != 0 {
			return badArityError(subcommand)
		}
		ClearStats()
		client.Reply(nil)
		return nil

	case "PRELOAD":
		if len(args) != 0 {
			return badArityError(subcommand)
		}
		err := s.Preload()
		client.Reply(err)
		return err

	default:
		return badSubcommandError()
	}
}
