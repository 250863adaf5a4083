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

//go:build !linux

package netpoll

import (
	"time"

	"github.com/siphonio/siphon/pkg/errors"
)

// Poller is a placeholder on platforms without epoll support.
type Poller struct{}

// OpenPoller is not supported on this platform.
func OpenPoller() (*Poller, error) {
	return nil, errors.ErrUnsupportedPlatform
}

// Close is not supported on this platform.
func (*Poller) Close() error {
	return errors.ErrUnsupportedPlatform
}

// AddRead is not supported on this platform.
func (*Poller) AddRead(_ int, _ Token, _ bool) error {
	return errors.ErrUnsupportedPlatform
}

// Wait is not supported on this platform.
func (*Poller) Wait(_ []Event, _ time.Duration) (int, error) {
	return 0, errors.ErrUnsupportedPlatform
}
