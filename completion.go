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

import "github.com/siphonio/siphon/pkg/netpoll"

// completionSet records the tokens whose connection has reached
// end-of-stream. Membership is insert-only for the reactor's lifetime,
// a token enters at most once.
type completionSet struct {
	tokens map[netpoll.Token]struct{}
}

func newCompletionSet() completionSet {
	return completionSet{tokens: make(map[netpoll.Token]struct{})}
}

// insert adds tok and reports whether it was newly added.
func (s completionSet) insert(tok netpoll.Token) bool {
	if _, ok := s.tokens[tok]; ok {
		return false
	}
	s.tokens[tok] = struct{}{}
	return true
}

func (s completionSet) contains(tok netpoll.Token) bool {
	_, ok := s.tokens[tok]
	return ok
}

func (s completionSet) size() int { return len(s.tokens) }
