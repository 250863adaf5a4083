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

// EventHandler receives the caller-visible effects of a reactor run.
// All callbacks fire on the goroutine that called Run (OnOpen fires on
// the Register caller's goroutine); none of them may retain buf.
type EventHandler interface {
	// OnBoot fires before the first wait of a run.
	OnBoot(r *Reactor)

	// OnOpen fires when a connection has been registered.
	OnOpen(c *Conn)

	// OnTraffic fires for every non-empty read with the bytes just
	// drained. buf aliases the reactor's reusable read buffer and is
	// only valid for the duration of the callback; copy to retain.
	OnTraffic(c *Conn, buf []byte)

	// OnClose fires exactly once per connection, the first time its
	// peer's end-of-stream is observed.
	OnClose(c *Conn)

	// OnShutdown fires on every exit path of Run.
	OnShutdown(r *Reactor)
}

// BuiltinEventHandler is a no-op implementation of EventHandler, ready
// to be embedded by handlers that only care about some of the events.
type BuiltinEventHandler struct{}

// OnBoot fires before the first wait of a run.
func (*BuiltinEventHandler) OnBoot(_ *Reactor) {}

// OnOpen fires when a connection has been registered.
func (*BuiltinEventHandler) OnOpen(_ *Conn) {}

// OnTraffic fires for every non-empty read with the bytes just drained.
func (*BuiltinEventHandler) OnTraffic(_ *Conn, _ []byte) {}

// OnClose fires exactly once per connection.
func (*BuiltinEventHandler) OnClose(_ *Conn) {}

// OnShutdown fires on every exit path of Run.
func (*BuiltinEventHandler) OnShutdown(_ *Reactor) {}
