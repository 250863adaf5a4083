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

//go:build linux

package netpoll

import (
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/siphonio/siphon/pkg/errors"
)

const (
	// ReadEvents represents readable events that are polled by epoll.
	ReadEvents = unix.EPOLLIN | unix.EPOLLPRI
	// ErrEvents represents exceptional events that occurred.
	ErrEvents = unix.EPOLLERR | unix.EPOLLHUP
)

// IsReadEvent checks if the event is a read event.
func IsReadEvent(event IOEvent) bool {
	return event&ReadEvents != 0
}

// IsErrorEvent checks if the event is an error event.
func IsErrorEvent(event IOEvent) bool {
	return event&ErrEvents != 0
}

// Poller monitors file descriptors for read readiness. It owns one
// epoll instance, valid from a successful OpenPoller until Close.
type Poller struct {
	fd        int // epoll fd
	closeOnce sync.Once
	sysEvents []unix.EpollEvent // scratch area for epoll_wait, resized to the caller's batch
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	return
}

// Close releases the underlying epoll descriptor. The release happens
// exactly once, subsequent calls are no-ops returning nil. Closing with
// registrations outstanding is safe (the kernel reclaims them) but does
// not flush pending notifications.
func (p *Poller) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = os.NewSyscallError("close", unix.Close(p.fd))
	})
	return err
}

// AddRead registers the given file descriptor under token, requesting
// read readiness, edge-triggered when edgeTriggered is true. The token
// travels in the epoll data word and comes back unchanged in every
// Event for this descriptor; it must fit in 32 bits.
//
// Registration has no effect on the descriptor's own readiness state.
// Kernel rejections (invalid fd, duplicate add, closed poller) surface
// verbatim.
func (p *Poller) AddRead(fd int, token Token, edgeTriggered bool) error {
	if token < 0 || int64(token) > math.MaxInt32 {
		return errors.ErrTokenOverflow
	}
	ev := unix.EpollEvent{Events: ReadEvents, Fd: int32(token)}
	if edgeTriggered {
		ev.Events |= unix.EPOLLET | unix.EPOLLRDHUP
	}
	return os.NewSyscallError("epoll_ctl add", unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev))
}

// Wait blocks until at least one registered descriptor is ready or the
// timeout elapses, then fills a prefix of events and returns the count.
// A negative timeout blocks indefinitely, zero polls and returns
// immediately, a positive timeout is rounded up to whole milliseconds.
// The count is zero only on a timeout-induced return.
//
// EINTR surfaces to the caller verbatim; the poller never retries on
// its own, retry policy belongs to the caller.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, errors.ErrEmptyEventBatch
	}
	if len(p.sysEvents) < len(events) {
		p.sysEvents = make([]unix.EpollEvent, len(events))
	}

	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.EpollWait(p.fd, p.sysEvents[:len(events)], msec)
	if err != nil {
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		events[i] = Event{Events: p.sysEvents[i].Events, Token: Token(p.sysEvents[i].Fd)}
	}
	return n, nil
}
