package node

//
// Copyright (c) 2019 ARM Limited.
//
// SPDX-License-Identifier: MIT
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//

import (
	"fmt"
)

type State int

const (
	Idle State = iota
	Requesting
	HoldingIdle
	InCriticalSection
)

func (state State) String() string {
	switch state {
	case Idle:
		return "IDLE"
	case Requesting:
		return "REQUESTING"
	case HoldingIdle:
		return "HOLDING_IDLE"
	case InCriticalSection:
		return "IN_CRITICAL_SECTION"
	}

	return "UNKNOWN"
}

// MarshalText lets snapshots and deltas carry states by name
func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

func (state *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Idle, Requesting, HoldingIdle, InCriticalSection} {
		if candidate.String() == string(text) {
			*state = candidate

			return nil
		}
	}

	return fmt.Errorf("%q is not a node state", string(text))
}
