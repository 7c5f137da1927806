package ring

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
	"sync"

	. "github.com/PelionIoT/tokenring/error"
)

const DefaultMaxNodes = 10

type TopologyConfig struct {
	MaxNodes int
	Layout   *Layout
}

// Topology is the ordered membership of the ring. Join and Leave hold the
// ring-wide write lock for their whole duration, including their callbacks.
// Read holds the read lock, so protocol traffic routed inside Read never
// observes a half-applied mutation.
type Topology struct {
	lock     sync.RWMutex
	maxNodes int
	layout   Layout
	lastID   uint64
	members  []uint64
	view     *View
}

func NewTopology(config TopologyConfig) *Topology {
	if config.MaxNodes <= 0 {
		config.MaxNodes = DefaultMaxNodes
	}

	layout := DefaultLayout()

	if config.Layout != nil {
		layout = *config.Layout
	}

	return &Topology{
		maxNodes: config.MaxNodes,
		layout:   layout,
		members:  []uint64{},
		view:     newView([]uint64{}, layout),
	}
}

func (topology *Topology) MaxNodes() int {
	return topology.maxNodes
}

// Join allocates the next node ID and appends it to the ring. onJoin runs
// under the write lock after successors have been recomputed. Join fails
// with ECapacityExceeded when the ring is full, leaving it unchanged.
func (topology *Topology) Join(onJoin func(nodeID uint64, view *View)) (uint64, error) {
	topology.lock.Lock()
	defer topology.lock.Unlock()

	if len(topology.members) >= topology.maxNodes {
		return 0, ECapacityExceeded
	}

	topology.lastID++
	nodeID := topology.lastID
	topology.members = append(topology.members, nodeID)
	topology.rebuild()

	if onJoin != nil {
		onJoin(nodeID, topology.view)
	}

	return nodeID, nil
}

// Leave removes the most recently joined node. onLeave runs under the write
// lock with the removed ID, its former successor (0 if the ring is now
// empty) and the updated view. Leave fails with ERingEmpty on an empty ring.
func (topology *Topology) Leave(onLeave func(nodeID uint64, successor uint64, view *View)) (uint64, error) {
	topology.lock.Lock()
	defer topology.lock.Unlock()

	if len(topology.members) == 0 {
		return 0, ERingEmpty
	}

	return topology.remove(len(topology.members)-1, onLeave), nil
}

// Remove takes a specific node out of the ring. It follows the same rules as
// Leave and fails with ENoSuchNode if the node is not a member.
func (topology *Topology) Remove(nodeID uint64, onLeave func(nodeID uint64, successor uint64, view *View)) error {
	topology.lock.Lock()
	defer topology.lock.Unlock()

	i, ok := topology.view.Index(nodeID)

	if !ok {
		return ENoSuchNode
	}

	topology.remove(i, onLeave)

	return nil
}

func (topology *Topology) remove(i int, onLeave func(nodeID uint64, successor uint64, view *View)) uint64 {
	nodeID := topology.members[i]
	successor, _ := topology.view.Successor(nodeID)

	if successor == nodeID {
		successor = 0
	}

	members := make([]uint64, 0, len(topology.members)-1)
	members = append(members, topology.members[:i]...)
	members = append(members, topology.members[i+1:]...)
	topology.members = members
	topology.rebuild()

	if onLeave != nil {
		onLeave(nodeID, successor, topology.view)
	}

	return nodeID
}

func (topology *Topology) rebuild() {
	members := make([]uint64, len(topology.members))
	copy(members, topology.members)

	topology.view = newView(members, topology.layout)
}

// Read runs fn with the current view while holding the read lock. fn must
// not call Join, Leave or Remove.
func (topology *Topology) Read(fn func(view *View)) {
	topology.lock.RLock()
	defer topology.lock.RUnlock()

	fn(topology.view)
}

// View returns the current view. Views are immutable so the result stays
// consistent, but it may be stale by the time it is used.
func (topology *Topology) View() *View {
	topology.lock.RLock()
	defer topology.lock.RUnlock()

	return topology.view
}

func (topology *Topology) Size() int {
	return topology.View().Size()
}
