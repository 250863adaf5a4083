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

package siphon

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
	"golang.org/x/sys/unix"

	errorx "github.com/siphonio/siphon/pkg/errors"
	"github.com/siphonio/siphon/pkg/pool/bytebuffer"
	"github.com/siphonio/siphon/pkg/pool/goroutine"
)

const requestLen = 12 // len("request-000;")

func testRequest(i int) []byte {
	return []byte(fmt.Sprintf("request-%03d;", i))
}

func testResponse(req []byte) []byte {
	return []byte("echo[" + string(req) + "]")
}

// echoServer accepts n connections and answers each request with its
// echo, written in three delayed chunks to force fragmented drains,
// then closes to signal end-of-stream.
func echoServer(t *testing.T, ln net.Listener, n int) {
	t.Helper()
	pool := goroutine.Default()
	t.Cleanup(pool.Release)

	go func() {
		for i := 0; i < n; i++ {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = pool.Submit(func() {
				defer c.Close()
				req := make([]byte, requestLen)
				if _, err := io.ReadFull(c, req); err != nil {
					return
				}
				resp := testResponse(req)
				for _, chunk := range [][]byte{resp[:5], resp[5:10], resp[10:]} {
					if _, err := c.Write(chunk); err != nil {
						return
					}
					time.Sleep(5 * time.Millisecond)
				}
			})
		}
	}()
}

// collectHandler accumulates each connection's drained bytes into a
// pooled buffer hung off the connection context.
type collectHandler struct {
	BuiltinEventHandler
}

func (*collectHandler) OnOpen(c *Conn) {
	c.SetContext(bytebuffer.Get())
}

func (*collectHandler) OnTraffic(c *Conn, buf []byte) {
	_, _ = c.Context().(*bytebuffer.ByteBuffer).Write(buf)
}

func TestDialerReactorEndToEnd(t *testing.T) {
	const numConns = 8

	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	echoServer(t, ln, numConns)

	payloads := make([][]byte, numConns)
	for i := range payloads {
		payloads[i] = testRequest(i)
	}

	d := NewDialer()
	conns, err := d.DialMany("tcp", ln.Addr().String(), payloads)
	require.NoError(t, err)
	require.Len(t, conns, numConns)

	r, err := NewReactor(new(collectHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	for _, c := range conns {
		_, err := r.Register(c)
		require.NoError(t, err)
	}

	require.NoError(t, r.Run())
	assert.Equal(t, numConns, r.Completed())

	for i, c := range conns {
		buf := c.Context().(*bytebuffer.ByteBuffer)
		assert.Equal(t, string(testResponse(payloads[i])), buf.String())
		bytebuffer.Put(buf)
	}
}

func TestEnrollWritesPayloadAndSetsNonblocking(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	received := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		received <- buf
	}()

	nc, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	c, err := NewDialer().Enroll(nc, []byte("hello"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	select {
	case got := <-received:
		assert.Equal(t, []byte("hello"), got)
	case <-time.After(time.Second):
		t.Fatal("payload never arrived")
	}

	// The enrolled descriptor must be non-blocking: with nothing to
	// read, the read reports would-block instead of hanging.
	_, err = unix.Read(c.Fd(), make([]byte, 16))
	assert.ErrorIs(t, err, unix.EAGAIN)
}

func TestEnrollRejectsPacketConn(t *testing.T) {
	nc, err := net.Dial("udp", "127.0.0.1:9")
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })

	_, err = NewDialer().Enroll(nc, nil)
	assert.ErrorIs(t, err, errorx.ErrUnsupportedProtocol)
}

func TestDialManyAbortsOnFirstFailure(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close()) // nobody listening anymore

	conns, err := NewDialer().DialMany("tcp", addr, [][]byte{[]byte("a"), []byte("b")})
	require.Error(t, err)
	assert.Nil(t, conns)
}
