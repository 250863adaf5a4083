// Copyright (c) 2024 The Siphon Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package netpoll provides the readiness-notification port for siphon.

The underlying facility of event notification is epoll on Linux:
https://man7.org/linux/man-pages/man7/epoll.7.html

The Poller owns one epoll instance. The OpenPoller function creates a
new Poller:

	poller, err := netpoll.OpenPoller()
	if err != nil {
		// handle error
	}
	defer poller.Close()

File descriptors of interest are registered under a caller-assigned
token, requesting edge-triggered read readiness:

	if err := poller.AddRead(fd, token, true); err != nil {
		// handle error
	}

Wait fills a prefix of the caller-supplied batch with ready events and
returns the count. The batch is an arena: it is overwritten on every
call and entries beyond the returned count are unspecified:

	events := make([]netpoll.Event, 128)
	n, err := poller.Wait(events, -1)
	if err != nil {
		// handle error
	}
	for i := 0; i < n; i++ {
		// events[i].Token identifies the ready descriptor.
	}

Under the edge-triggered contract the poller reports readiness once per
transition; the caller must read the descriptor down to EAGAIN before a
new notification can be expected.
*/
package netpoll

// Token is an opaque correlation identifier attached at registration
// and returned unchanged in every readiness notification for that
// descriptor. Tokens must fit in 32 bits, they travel in the epoll
// data word.
type Token int

// IOEvent is the integer type of I/O events.
type IOEvent = uint32

// Event is a fixed-layout readiness record produced by Poller.Wait.
// It is immutable and does not outlive the batch it was returned in.
type Event struct {
	Events IOEvent
	Token  Token
}

const (
	// InitEventBatchCap represents the default capacity of the event batch.
	InitEventBatchCap = 128
	// MaxEventBatchCap is the maximum size of the event batch that a Wait call can fill.
	MaxEventBatchCap = 1024
	// MinEventBatchCap is the minimum size of the event batch that a Wait call can fill.
	MinEventBatchCap = 8
)
