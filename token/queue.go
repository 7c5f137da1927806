package token

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

// RequesterQueue is an ordered set of node IDs served in FIFO order. An ID
// appears at most once. RequesterQueue is not safe for concurrent use; the
// ring coordinator serializes access under its hand-off lock.
type RequesterQueue struct {
	order   []uint64
	members map[uint64]bool
}

func NewRequesterQueue() *RequesterQueue {
	return &RequesterQueue{
		order:   make([]uint64, 0),
		members: make(map[uint64]bool),
	}
}

// Push appends nodeID unless it is already queued. It reports whether the
// queue changed.
func (queue *RequesterQueue) Push(nodeID uint64) bool {
	if queue.members[nodeID] {
		return false
	}

	queue.members[nodeID] = true
	queue.order = append(queue.order, nodeID)

	return true
}

func (queue *RequesterQueue) Peek() (uint64, bool) {
	if len(queue.order) == 0 {
		return 0, false
	}

	return queue.order[0], true
}

func (queue *RequesterQueue) Pop() (uint64, bool) {
	if len(queue.order) == 0 {
		return 0, false
	}

	nodeID := queue.order[0]
	queue.order = queue.order[1:]
	delete(queue.members, nodeID)

	return nodeID, true
}

func (queue *RequesterQueue) Remove(nodeID uint64) bool {
	if !queue.members[nodeID] {
		return false
	}

	delete(queue.members, nodeID)

	for i, queued := range queue.order {
		if queued == nodeID {
			queue.order = append(queue.order[:i:i], queue.order[i+1:]...)

			break
		}
	}

	return true
}

func (queue *RequesterQueue) Contains(nodeID uint64) bool {
	return queue.members[nodeID]
}

func (queue *RequesterQueue) Len() int {
	return len(queue.order)
}

// IDs returns a copy of the queued IDs, head first
func (queue *RequesterQueue) IDs() []uint64 {
	ids := make([]uint64, len(queue.order))
	copy(ids, queue.order)

	return ids
}

// Merge appends every ID queued in other, in order, skipping exclude and
// IDs already present
func (queue *RequesterQueue) Merge(other *RequesterQueue, exclude uint64) {
	if other == nil {
		return
	}

	for _, nodeID := range other.order {
		if nodeID == exclude {
			continue
		}

		queue.Push(nodeID)
	}
}

func (queue *RequesterQueue) Clear() {
	queue.order = make([]uint64, 0)
	queue.members = make(map[uint64]bool)
}
