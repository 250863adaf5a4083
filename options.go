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
	"time"

	"github.com/siphonio/siphon/internal/math"
	"github.com/siphonio/siphon/pkg/logging"
	"github.com/siphonio/siphon/pkg/netpoll"
)

// DefaultReadBufferCap is the default size of the reusable read buffer, 64KB.
const DefaultReadBufferCap = 64 * 1024

// TCPSocketOpt is the type of TCP socket options.
type TCPSocketOpt int

// Available TCP socket options.
const (
	TCPNoDelay TCPSocketOpt = iota
	TCPDelay
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{
		WaitTimeout: -1,
	}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// Options are configurations of the reactor and the dialer.
type Options struct {
	// EventBatch is the capacity of the event batch handed to each
	// Wait call: too small wastes wakeups under edge-triggered mode,
	// too large wastes memory. It is normalized to a power of two and
	// clamped to [netpoll.MinEventBatchCap, netpoll.MaxEventBatchCap];
	// non-positive values select netpoll.InitEventBatchCap.
	EventBatch int

	// WaitTimeout bounds each individual Wait call. Negative blocks
	// indefinitely (the default), zero polls and returns immediately,
	// a positive value is rounded up to whole milliseconds.
	WaitTimeout time.Duration

	// ReadBufferCap is the size of the reusable buffer the drain
	// protocol reads into, normalized to a power of two.
	// The default value is 64KB.
	ReadBufferCap int

	// Poller replaces the production epoll port with a caller-supplied
	// readiness source. Leave nil to open a real poller.
	Poller Poller

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets
	// (Nagle's algorithm), the default is true (no delay).
	TCPNoDelay TCPSocketOpt

	// SocketRecvBuffer sets the maximum socket receive buffer of the
	// enrolled connections in bytes.
	SocketRecvBuffer int

	// SocketSendBuffer sets the maximum socket send buffer of the
	// enrolled connections in bytes.
	SocketSendBuffer int

	// LogPath the local path where logs will be written, this is the easiest
	// way to set up logging, siphon instantiates a default uber-go/zap
	// logger with this given log path, you are also allowed to employ
	// your own logger during the lifetime by implementing the
	// logging.Logger interface and setting the Logger field.
	LogPath string

	// LogLevel indicates the logging level, it should be used along with LogPath.
	LogLevel logging.Level

	// Logger is the customized logger for logging info, if it is not set,
	// then siphon will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithEventBatch sets up the capacity of the event batch.
func WithEventBatch(eventBatch int) Option {
	return func(opts *Options) {
		opts.EventBatch = eventBatch
	}
}

// WithWaitTimeout sets up the timeout of each Wait call.
func WithWaitTimeout(waitTimeout time.Duration) Option {
	return func(opts *Options) {
		opts.WaitTimeout = waitTimeout
	}
}

// WithReadBufferCap sets up the capacity of the reusable read buffer.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithPoller injects a readiness source, replacing the production epoll port.
func WithPoller(poller Poller) Option {
	return func(opts *Options) {
		opts.Poller = poller
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(noDelay TCPSocketOpt) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = noDelay
	}
}

// WithSocketRecvBuffer sets the maximum socket receive buffer in bytes.
func WithSocketRecvBuffer(recvBuf int) Option {
	return func(opts *Options) {
		opts.SocketRecvBuffer = recvBuf
	}
}

// WithSocketSendBuffer sets the maximum socket send buffer in bytes.
func WithSocketSendBuffer(sendBuf int) Option {
	return func(opts *Options) {
		opts.SocketSendBuffer = sendBuf
	}
}

// WithLogPath is an option to set up the local path of log file.
func WithLogPath(fileName string) Option {
	return func(opts *Options) {
		opts.LogPath = fileName
	}
}

// WithLogLevel is an option to set up the logging level.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// normalizeEventBatch clamps and rounds the configured batch capacity.
func normalizeEventBatch(n int) int {
	switch {
	case n <= 0:
		return netpoll.InitEventBatchCap
	case n <= netpoll.MinEventBatchCap:
		return netpoll.MinEventBatchCap
	case n >= netpoll.MaxEventBatchCap:
		return netpoll.MaxEventBatchCap
	default:
		return math.CeilToPowerOfTwo(n)
	}
}

// normalizeReadBufferCap rounds the configured read buffer size.
func normalizeReadBufferCap(n int) int {
	if n <= 0 {
		return DefaultReadBufferCap
	}
	return math.CeilToPowerOfTwo(n)
}
