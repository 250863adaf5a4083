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
Package siphon is a minimal single-threaded I/O multiplexing reactor.

A caller opens N non-blocking connections, registers each with the
reactor, then calls Run. The reactor repeatedly waits on its readiness
port and, for each ready connection, drains it: it reads until the
kernel reports no more data (the steady-state exit under the
edge-triggered contract) or until a zero-length read marks the peer's
end-of-stream. Each connection completes exactly once, redundant
notifications for an already-completed connection are recognized and
discarded. Run returns once every registered connection has completed,
or on the first unrecoverable fault.

Drained bytes are surfaced verbatim through the EventHandler callbacks;
the reactor itself is agnostic to their content beyond detecting
end-of-stream.

	handler := &siphon.BuiltinEventHandler{}
	r, err := siphon.NewReactor(handler)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	d := siphon.NewDialer()
	conns, err := d.DialMany("tcp", addr, payloads)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range conns {
		if _, err := r.Register(c); err != nil {
			log.Fatal(err)
		}
	}
	if err := r.Run(); err != nil {
		log.Fatal(err)
	}

Write-readiness multiplexing, dynamic re-registration and per-stream
cancellation are out of scope: the design targets exactly the
read-then-detect-close pattern.
*/
package siphon
