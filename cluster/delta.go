package cluster

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
	"time"

	. "github.com/PelionIoT/tokenring/node"
)

type RingDeltaType int

const (
	DeltaNodeJoin RingDeltaType = iota
	DeltaNodeLeave RingDeltaType = iota
	DeltaStateChange RingDeltaType = iota
	DeltaRequestHop RingDeltaType = iota
	DeltaRequestMerged RingDeltaType = iota
	DeltaRequestUndelivered RingDeltaType = iota
	DeltaHandOffStarted RingDeltaType = iota
	DeltaTokenTransfer RingDeltaType = iota
	DeltaTokenRecovered RingDeltaType = iota
)

var deltaTypeNames = map[RingDeltaType]string{
	DeltaNodeJoin:           "node_join",
	DeltaNodeLeave:          "node_leave",
	DeltaStateChange:        "state_change",
	DeltaRequestHop:         "request_hop",
	DeltaRequestMerged:      "request_merged",
	DeltaRequestUndelivered: "request_undelivered",
	DeltaHandOffStarted:     "hand_off_started",
	DeltaTokenTransfer:      "token_transfer",
	DeltaTokenRecovered:     "token_recovered",
}

func (deltaType RingDeltaType) String() string {
	if name, ok := deltaTypeNames[deltaType]; ok {
		return name
	}

	return "unknown"
}

func (deltaType RingDeltaType) MarshalText() ([]byte, error) {
	return []byte(deltaType.String()), nil
}

func (deltaType *RingDeltaType) UnmarshalText(text []byte) error {
	for candidate, name := range deltaTypeNames {
		if name == string(text) {
			*deltaType = candidate

			return nil
		}
	}

	return fmt.Errorf("%q is not a ring delta type", string(text))
}

// RingDelta describes one committed protocol step. Which fields are set
// depends on Type:
//
//   DeltaNodeJoin, DeltaNodeLeave: NodeID
//   DeltaStateChange: NodeID, State
//   DeltaRequestHop: Requester travelling from NodeID to Peer
//   DeltaRequestMerged: Requester absorbed by holder NodeID
//   DeltaRequestUndelivered: Requester
//   DeltaHandOffStarted: holder NodeID decided on Peer at Sequence
//   DeltaTokenTransfer: NodeID received the token from Peer, new Sequence
//   DeltaTokenRecovered: NodeID received the token of departed Peer
type RingDelta struct {
	Type      RingDeltaType `json:"type"`
	NodeID    uint64        `json:"node"`
	Peer      uint64        `json:"peer,omitempty"`
	Requester uint64        `json:"requester,omitempty"`
	Sequence  uint64        `json:"sequence,omitempty"`
	State     State         `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
}
