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
	"context"
	"net"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/siphonio/siphon/internal/socket"
	errorx "github.com/siphonio/siphon/pkg/errors"
	"github.com/siphonio/siphon/pkg/logging"
	"github.com/siphonio/siphon/pkg/pool/goroutine"
)

// Dialer is the connection supplier: it produces already-connected,
// non-blocking, Nagle-disabled stream connections ready to be handed
// to Reactor.Register, after writing an opaque request payload on each.
type Dialer struct {
	opts *Options
}

// NewDialer creates a Dialer. It honors the socket-level options:
// WithTCPNoDelay, WithSocketRecvBuffer and WithSocketSendBuffer.
func NewDialer(opts ...Option) *Dialer {
	return &Dialer{opts: loadOptions(opts...)}
}

// Dial connects to address, writes payload (if any) and enrolls the
// resulting connection.
func (d *Dialer) Dial(network, address string, payload []byte) (*Conn, error) {
	c, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return d.Enroll(c, payload)
}

// Enroll converts a net.Conn into a *Conn owned by the caller: it
// writes payload while the connection is still in blocking mode (so
// full delivery is guaranteed), duplicates the descriptor, applies the
// socket options, puts the duplicate into non-blocking mode and closes
// the original. Only TCP and unix-domain stream connections are
// accepted.
func (d *Dialer) Enroll(c net.Conn, payload []byte) (*Conn, error) {
	if c == nil {
		return nil, errorx.ErrNilConn
	}
	defer c.Close() //nolint:errcheck

	isTCP := false
	switch c.(type) {
	case *net.TCPConn:
		isTCP = true
	case *net.UnixConn:
	default:
		return nil, errorx.ErrUnsupportedProtocol
	}

	if len(payload) > 0 {
		if _, err := c.Write(payload); err != nil {
			return nil, err
		}
	}

	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, errorx.ErrInvalidNetConn
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, errorx.ErrInvalidNetConn
	}

	var dupFD int
	e := rc.Control(func(fd uintptr) {
		dupFD, err = socket.DupCloseOnExec(int(fd))
	})
	if err != nil {
		return nil, err
	}
	if e != nil {
		return nil, e
	}

	if err := d.setSocketOpts(dupFD, isTCP); err != nil {
		_ = unix.Close(dupFD)
		return nil, err
	}
	if err := socket.SetNonblock(dupFD, true); err != nil {
		_ = unix.Close(dupFD)
		return nil, err
	}

	return NewConn(dupFD, c.LocalAddr(), c.RemoteAddr()), nil
}

func (d *Dialer) setSocketOpts(fd int, isTCP bool) error {
	if isTCP && d.opts.TCPNoDelay == TCPNoDelay {
		if err := socket.SetNoDelay(fd, 1); err != nil {
			return err
		}
	}
	if d.opts.SocketRecvBuffer > 0 {
		if err := socket.SetRecvBuffer(fd, d.opts.SocketRecvBuffer); err != nil {
			return err
		}
	}
	if d.opts.SocketSendBuffer > 0 {
		if err := socket.SetSendBuffer(fd, d.opts.SocketSendBuffer); err != nil {
			return err
		}
	}
	return nil
}

// DialMany opens len(payloads) connections to the same address
// concurrently on a shared worker pool, writing payloads[i] on the
// i-th connection. Results are index-aligned with payloads. On the
// first failure the remaining dials are cancelled, every
// already-enrolled connection is closed and the error is returned.
func (d *Dialer) DialMany(network, address string, payloads [][]byte) ([]*Conn, error) {
	conns := make([]*Conn, len(payloads))

	pool := goroutine.Default()
	defer pool.Release()

	eg, ctx := errgroup.WithContext(context.Background())
	for i := range payloads {
		i := i
		done := make(chan error, 1)
		if err := pool.Submit(func() {
			done <- d.dialContext(ctx, network, address, payloads[i], &conns[i])
		}); err != nil {
			done <- err
		}
		eg.Go(func() error { return <-done })
	}

	if err := eg.Wait(); err != nil {
		for _, c := range conns {
			if c != nil {
				logging.Error(c.Close())
			}
		}
		return nil, err
	}
	return conns, nil
}

func (d *Dialer) dialContext(ctx context.Context, network, address string, payload []byte, out **Conn) error {
	var nd net.Dialer
	c, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return err
	}
	conn, err := d.Enroll(c, payload)
	if err != nil {
		return err
	}
	*out = conn
	return nil
}
