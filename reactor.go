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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package siphon

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	errorx "github.com/siphonio/siphon/pkg/errors"
	"github.com/siphonio/siphon/pkg/logging"
	"github.com/siphonio/siphon/pkg/netpoll"
)

// Poller is the readiness-notification capability the reactor runs on.
// The production implementation is *netpoll.Poller; tests inject an
// in-memory fake through WithPoller.
type Poller interface {
	// AddRead registers fd under token for read readiness,
	// edge-triggered when edgeTriggered is true.
	AddRead(fd int, token netpoll.Token, edgeTriggered bool) error

	// Wait blocks until at least one registered descriptor is ready or
	// the timeout elapses, fills a prefix of events and returns the
	// count. Negative timeout blocks indefinitely, zero polls.
	Wait(events []netpoll.Event, timeout time.Duration) (int, error)

	// Close releases the port exactly once.
	Close() error
}

// Reactor multiplexes many non-blocking connections over one readiness
// port and drains each of them to end-of-stream. All methods must be
// called from a single goroutine, the reactor has no internal locking.
type Reactor struct {
	opts         *Options
	poller       Poller
	eventHandler EventHandler

	conns     []*Conn // dense connection table indexed by token
	completed completionSet

	events []netpoll.Event // reusable wait batch, overwritten every cycle
	buffer []byte          // reusable read buffer, only valid during OnTraffic

	closed bool
}

// NewReactor instantiates a reactor. Unless a Poller is injected via
// WithPoller, a production epoll port is opened; its descriptor is
// owned by the reactor and released by Close.
func NewReactor(eventHandler EventHandler, opts ...Option) (*Reactor, error) {
	options := loadOptions(opts...)

	logger, logFlusher := logging.GetDefaultLogger(), logging.GetDefaultFlusher()
	if options.Logger == nil {
		if options.LogPath != "" {
			logger, logFlusher, _ = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel)
		}
		options.Logger = logger
	} else {
		logger = options.Logger
		logFlusher = nil
	}
	logging.SetDefaultLoggerAndFlusher(logger, logFlusher)

	options.EventBatch = normalizeEventBatch(options.EventBatch)
	options.ReadBufferCap = normalizeReadBufferCap(options.ReadBufferCap)

	if eventHandler == nil {
		eventHandler = &BuiltinEventHandler{}
	}

	poller := options.Poller
	if poller == nil {
		p, err := netpoll.OpenPoller()
		if err != nil {
			return nil, err
		}
		poller = p
	}

	r := &Reactor{
		opts:         options,
		poller:       poller,
		eventHandler: eventHandler,
		completed:    newCompletionSet(),
		events:       make([]netpoll.Event, options.EventBatch),
		buffer:       make([]byte, options.ReadBufferCap),
	}
	return r, nil
}

// Register adds c to the watch set under the next dense token,
// requesting edge-triggered read readiness, and fires OnOpen. On
// failure the connection is not adopted and the error surfaces
// verbatim; the caller decides whether that aborts the whole run.
func (r *Reactor) Register(c *Conn) (netpoll.Token, error) {
	if c == nil {
		return -1, errorx.ErrNilConn
	}
	if r.closed {
		return -1, errorx.ErrReactorClosed
	}

	token := netpoll.Token(len(r.conns))
	if err := r.poller.AddRead(c.fd, token, true); err != nil {
		return -1, err
	}
	c.token = token
	r.conns = append(r.conns, c)
	r.eventHandler.OnOpen(c)
	return token, nil
}

// Run executes wait→dispatch cycles until every registered connection
// has completed, then returns nil. It returns the first unrecoverable
// fault otherwise; there is no partial-success reporting. Run with
// zero registrations returns immediately.
func (r *Reactor) Run() error {
	if r.closed {
		return errorx.ErrReactorClosed
	}

	r.eventHandler.OnBoot(r)
	defer r.eventHandler.OnShutdown(r)

	logging.Infof("starting drain run: %d connections registered, batch capacity %d, wait timeout %v",
		len(r.conns), len(r.events), r.opts.WaitTimeout)

	for r.completed.size() < len(r.conns) {
		n, err := r.poller.Wait(r.events, r.opts.WaitTimeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			logging.Errorf("wait failed: %v", err)
			return err
		}
		if n == 0 {
			// Finite timeout elapsed with nothing ready, a valid
			// non-terminal outcome.
			logging.Debugf("wait returned no ready descriptors")
			continue
		}
		if _, err := r.dispatch(r.events[:n]); err != nil {
			logging.Errorf("dispatch aborted: %v", err)
			return err
		}
	}

	logging.Infof("drain run finished: %d connections completed", r.completed.size())
	return nil
}

// dispatch handles one batch of ready events in kernel order and
// returns the count of connections newly completed during it.
func (r *Reactor) dispatch(events []netpoll.Event) (int, error) {
	completedNow := 0
	for i := range events {
		token := events[i].Token
		if int(token) < 0 || int(token) >= len(r.conns) {
			logging.Warnf("dropping notification for unknown token %d", token)
			continue
		}
		if r.completed.contains(token) {
			// Redundant notification for a retired stream.
			logging.Debugf("dropping notification for completed token %d", token)
			continue
		}

		eof, err := r.drain(r.conns[token])
		if err != nil {
			return completedNow, err
		}
		if eof && r.completed.insert(token) {
			completedNow++
			r.eventHandler.OnClose(r.conns[token])
		}
	}
	return completedNow, nil
}

// drain reads c until the kernel has no more data (EAGAIN) or the peer
// half-closes (zero-length read). Interrupted reads are retried
// immediately: an interrupted read consumed nothing, so the retry is
// side-effect-free and cannot stall a stream whose final chunk raced a
// signal. Any other error aborts the whole dispatch.
func (r *Reactor) drain(c *Conn) (bool, error) {
	for {
		n, err := c.readFn(c.fd, r.buffer)
		switch {
		case n > 0:
			r.eventHandler.OnTraffic(c, r.buffer[:n])
		case err == nil:
			return true, nil
		case errors.Is(err, unix.EAGAIN):
			return false, nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return false, os.NewSyscallError("read", err)
		}
	}
}

// Registered returns the number of connections in the table.
func (r *Reactor) Registered() int { return len(r.conns) }

// Completed returns the number of connections observed at
// end-of-stream so far. The count is monotonic.
func (r *Reactor) Completed() int { return r.completed.size() }

// Close releases every registered connection and then the readiness
// port. It is idempotent.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	for _, c := range r.conns {
		logging.Error(c.Close())
	}
	err := r.poller.Close()

	logging.Cleanup()
	return err
}
