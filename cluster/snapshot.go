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
	. "github.com/PelionIoT/tokenring/node"
	. "github.com/PelionIoT/tokenring/ring"
)

type NodeSnapshot struct {
	ID         uint64   `json:"id"`
	Index      int      `json:"index"`
	State      State    `json:"state"`
	HoldsToken bool     `json:"holdsToken"`
	WantsCS    bool     `json:"wantsCS"`
	Successor  uint64   `json:"successor"`
	Position   Position `json:"position"`
	Queue      []uint64 `json:"queue"`
}

// RingSnapshot is a consistent picture of the ring taken under the topology
// read lock and the hand-off lock. Pending is the token holder's queue.
type RingSnapshot struct {
	Nodes    []NodeSnapshot `json:"nodes"`
	Holder   uint64         `json:"holder"`
	TokenID  string         `json:"tokenID"`
	Sequence uint64         `json:"sequence"`
	Pending  []uint64       `json:"pending"`
	MaxNodes int            `json:"maxNodes"`
}

func (snapshot RingSnapshot) Node(nodeID uint64) (NodeSnapshot, bool) {
	for _, node := range snapshot.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}

	return NodeSnapshot{}, false
}

// InCriticalSection lists the nodes whose state is IN_CRITICAL_SECTION
func (snapshot RingSnapshot) InCriticalSection() []uint64 {
	nodes := make([]uint64, 0, 1)

	for _, node := range snapshot.Nodes {
		if node.State == InCriticalSection {
			nodes = append(nodes, node.ID)
		}
	}

	return nodes
}
