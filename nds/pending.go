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

import "sync"

// Replier is the client connection collaborator, supplied by whatever owns
// the server command loop and network I/O. A deferred admin command
// replies through this interface once the background operation it started
// completes.
type Replier interface {
	// Reply delivers the final outcome of a deferred command. A nil err
	// means OK; a non-nil err is rendered as "consult logs" text upstream.
	Reply(err error)
}

// pendingSlot is a single-cell resource: at most one client may be parked
// waiting on an in-flight background operation. A second attempt is
// rejected loudly (ErrBusy) rather than queued.
type pendingSlot struct {
	mu     sync.Mutex
	client Replier
}

func (p *pendingSlot) park(client Replier) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return ErrBusy
	}
	p.client = client
	return nil
}

func (p *pendingSlot) occupied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil
}

// resolve replies to the parked client (if any) and clears the slot.
func (p *pendingSlot) resolve(err error) {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client != nil {
		client.Reply(err)
	}
}
