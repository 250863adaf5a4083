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
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/siphonio/siphon/pkg/netpoll"
)

// Conn is an open non-blocking duplex byte stream. It is owned
// exclusively by the reactor's connection table from Register until
// Reactor.Close and must not be accessed concurrently.
type Conn struct {
	fd         int
	token      netpoll.Token
	localAddr  net.Addr
	remoteAddr net.Addr
	ctx        any

	// readFn has kernel read semantics: n > 0 yields data,
	// n == 0 with a nil error means the peer half-closed,
	// EAGAIN means no data right now, EINTR means interrupted.
	readFn  func(fd int, p []byte) (int, error)
	closeFn func(fd int) error

	closeOnce sync.Once
}

// NewConn wraps an already-connected, non-blocking file descriptor.
// The caller keeps responsibility for having put fd into non-blocking
// mode; Dialer.Enroll does this for net.Conn values.
func NewConn(fd int, localAddr, remoteAddr net.Addr) *Conn {
	return &Conn{
		fd:         fd,
		token:      -1,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		readFn:     unix.Read,
		closeFn:    unix.Close,
	}
}

// Fd returns the underlying file descriptor.
func (c *Conn) Fd() int { return c.fd }

// Token returns the token assigned at registration, or -1 before it.
func (c *Conn) Token() netpoll.Token { return c.token }

// LocalAddr returns the local address of the connection.
func (c *Conn) LocalAddr() net.Addr { return c.localAddr }

// RemoteAddr returns the remote address of the connection.
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }

// Context returns a user-defined context.
func (c *Conn) Context() any { return c.ctx }

// SetContext sets a user-defined context.
func (c *Conn) SetContext(ctx any) { c.ctx = ctx }

// Close releases the underlying file descriptor exactly once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			err = c.closeFn(c.fd)
		}
	})
	return err
}
