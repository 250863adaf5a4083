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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/siphonio/siphon/pkg/errors"
)

func openTestPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := OpenPoller()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// socketPair returns a connected non-blocking pair, the first end for
// reading and the second for writing.
func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestOpenPollerAndClose(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	assert.NoError(t, p.Close())
	// The release happens exactly once, later calls are no-ops.
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestWaitRejectsEmptyBatch(t *testing.T) {
	p := openTestPoller(t)
	_, err := p.Wait(nil, 0)
	assert.ErrorIs(t, err, errors.ErrEmptyEventBatch)
}

func TestWaitZeroTimeoutIdlePoller(t *testing.T) {
	p := openTestPoller(t)
	rfd, _ := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 0, true))

	start := time.Now()
	n, err := p.Wait(make([]Event, 8), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAddReadRejectsBadToken(t *testing.T) {
	p := openTestPoller(t)
	rfd, _ := socketPair(t)
	assert.ErrorIs(t, p.AddRead(rfd, -1, true), errors.ErrTokenOverflow)
}

func TestAddReadRejectsInvalidFd(t *testing.T) {
	p := openTestPoller(t)
	assert.Error(t, p.AddRead(-1, 0, true))
}

func TestAddReadRejectsDuplicate(t *testing.T) {
	p := openTestPoller(t)
	rfd, _ := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 0, true))
	assert.Error(t, p.AddRead(rfd, 1, true))
}

func TestWaitDeliversToken(t *testing.T) {
	p := openTestPoller(t)
	rfd, wfd := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 7, true))

	_, err := unix.Write(wfd, []byte("ping"))
	require.NoError(t, err)

	events := make([]Event, 8)
	n, err := p.Wait(events, -1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, Token(7), events[0].Token)
	assert.True(t, IsReadEvent(events[0].Events))
}

func TestWaitBlocksUntilDataArrives(t *testing.T) {
	p := openTestPoller(t)
	rfd, wfd := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 3, true))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = unix.Write(wfd, []byte("late"))
	}()

	events := make([]Event, 8)
	n, err := p.Wait(events, -1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	assert.Equal(t, Token(3), events[0].Token)
}

// Under the edge-triggered contract a drained descriptor stays silent
// until new data arrives, then triggers again.
func TestEdgeTriggeredRearm(t *testing.T) {
	p := openTestPoller(t)
	rfd, wfd := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 0, true))

	_, err := unix.Write(wfd, []byte("first"))
	require.NoError(t, err)

	events := make([]Event, 8)
	n, err := p.Wait(events, -1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Drain down to EAGAIN.
	buf := make([]byte, 64)
	for {
		if _, err := unix.Read(rfd, buf); err == unix.EAGAIN {
			break
		} else {
			require.NoError(t, err)
		}
	}

	n, err = p.Wait(events, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "no notification expected before a new edge")

	_, err = unix.Write(wfd, []byte("second"))
	require.NoError(t, err)

	n, err = p.Wait(events, -1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, Token(0), events[0].Token)
}

func TestWaitReportsPeerClose(t *testing.T) {
	p := openTestPoller(t)
	rfd, wfd := socketPair(t)
	require.NoError(t, p.AddRead(rfd, 5, true))

	require.NoError(t, unix.Close(wfd))

	events := make([]Event, 8)
	n, err := p.Wait(events, -1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, Token(5), events[0].Token)

	// The zero-length read is the completion signal.
	rn, err := unix.Read(rfd, make([]byte, 64))
	require.NoError(t, err)
	assert.Zero(t, rn)
}

func TestWaitFillsAtMostBatchCapacity(t *testing.T) {
	p := openTestPoller(t)

	const pairs = 4
	for i := 0; i < pairs; i++ {
		rfd, wfd := socketPair(t)
		require.NoError(t, p.AddRead(rfd, Token(i), true))
		_, err := unix.Write(wfd, []byte{byte(i)})
		require.NoError(t, err)
	}

	events := make([]Event, 2)
	n, err := p.Wait(events, -1)
	require.NoError(t, err)
	assert.Equal(t, len(events), n)
}
