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

// Package errors defines common errors for siphon.
package errors

import "errors"

var (
	// ErrUnsupportedPlatform occurs when opening the production poller on a platform without epoll.
	ErrUnsupportedPlatform = errors.New("siphon: unsupported platform")
	// ErrUnsupportedProtocol occurs when trying to enroll a connection that is not a stream socket.
	ErrUnsupportedProtocol = errors.New("siphon: only tcp/tcp4/tcp6 and unix stream connections are supported")
	// ErrEmptyEventBatch occurs when Wait is handed a zero-length event batch, which could never report readiness.
	ErrEmptyEventBatch = errors.New("siphon: event batch must have a non-zero length")
	// ErrTokenOverflow occurs when a registration token does not fit in the epoll data word.
	ErrTokenOverflow = errors.New("siphon: token does not fit in 32 bits")
	// ErrReactorClosed occurs when operating on a reactor after Close.
	ErrReactorClosed = errors.New("siphon: the reactor is closed")
	// ErrNilConn occurs when trying to register a nil connection.
	ErrNilConn = errors.New("siphon: nil connection is not allowed")
	// ErrInvalidNetConn occurs when a net.Conn does not expose its underlying file descriptor.
	ErrInvalidNetConn = errors.New("siphon: the net.Conn does not expose a syscall.RawConn")
)
