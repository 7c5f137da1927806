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

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// View is an immutable snapshot of ring membership. Members are in join
// order, which is also ring order.
type View struct {
	members    []uint64
	index      map[uint64]int
	successors map[uint64]uint64
	positions  map[uint64]Position
}

func newView(members []uint64, layout Layout) *View {
	view := &View{
		members:    members,
		index:      make(map[uint64]int, len(members)),
		successors: make(map[uint64]uint64, len(members)),
		positions:  make(map[uint64]Position, len(members)),
	}

	for i, nodeID := range members {
		view.index[nodeID] = i
		view.successors[nodeID] = members[(i+1)%len(members)]
		view.positions[nodeID] = layout.position(i, len(members))
	}

	return view
}

func (view *View) Size() int {
	return len(view.members)
}

func (view *View) Members() []uint64 {
	members := make([]uint64, len(view.members))
	copy(members, view.members)

	return members
}

func (view *View) Contains(nodeID uint64) bool {
	_, ok := view.index[nodeID]

	return ok
}

// Successor returns the next node in cyclic order. A singleton ring is its
// own successor.
func (view *View) Successor(nodeID uint64) (uint64, bool) {
	successor, ok := view.successors[nodeID]

	return successor, ok
}

func (view *View) Index(nodeID uint64) (int, bool) {
	i, ok := view.index[nodeID]

	return i, ok
}

func (view *View) Position(nodeID uint64) (Position, bool) {
	position, ok := view.positions[nodeID]

	return position, ok
}

// First returns the earliest joined live node, or 0 if the ring is empty
func (view *View) First() uint64 {
	if len(view.members) == 0 {
		return 0
	}

	return view.members[0]
}

// Last returns the most recently joined live node, or 0 if the ring is empty
func (view *View) Last() uint64 {
	if len(view.members) == 0 {
		return 0
	}

	return view.members[len(view.members)-1]
}
