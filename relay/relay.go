package relay

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
	"context"
	"time"

	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/ring"
)

// Absorber is implemented by whatever owns the token. Absorb is called with
// the topology read lock held. If nodeID currently holds the token it merges
// requester into the pending set and reports held = true.
type Absorber interface {
	Absorb(view *View, nodeID uint64, requester uint64) (held bool, merged bool)
}

type Hop struct {
	Requester uint64
	From      uint64
	To        uint64
}

type Result struct {
	Holder uint64
	Hops   int
	Merged bool
}

type RelayConfig struct {
	Topology *Topology
	Absorber Absorber
	// HopDelay models the travel time of a request across one edge
	HopDelay time.Duration
	// OnHop, if set, is called before each hop starts. It must not block.
	OnHop func(hop Hop)
}

type Relay struct {
	topology *Topology
	absorber Absorber
	hopDelay time.Duration
	onHop    func(hop Hop)
}

func NewRelay(config RelayConfig) *Relay {
	return &Relay{
		topology: config.Topology,
		absorber: config.Absorber,
		hopDelay: config.HopDelay,
		onHop:    config.OnHop,
	}
}

// Propagate walks the successor chain starting at start until it reaches
// the token holder, which absorbs requester. The walk gives up with
// ERequestUndelivered after twice the ring size in hops and with
// ENoSuchNode if requester leaves the ring. A request stranded on a node
// that left is re-homed at the head of the ring.
func (relay *Relay) Propagate(ctx context.Context, requester uint64, start uint64) (Result, error) {
	var current uint64 = start
	var hops int

	for {
		var alive, held, merged bool
		var next uint64
		var limit int

		relay.topology.Read(func(view *View) {
			if !view.Contains(requester) {
				return
			}

			alive = true

			if !view.Contains(current) {
				Log.Debugf("Request from node %d stranded on departed node %d. Re-homing at node %d", requester, current, view.First())

				current = view.First()
			}

			limit = 2 * view.Size()
			held, merged = relay.absorber.Absorb(view, current, requester)

			if !held {
				next, _ = view.Successor(current)
			}
		})

		if !alive {
			return Result{Hops: hops}, ENoSuchNode
		}

		if held {
			return Result{Holder: current, Hops: hops, Merged: merged}, nil
		}

		if hops >= limit {
			Log.Warningf("Request from node %d was not delivered after %d hops", requester, hops)

			return Result{Hops: hops}, ERequestUndelivered
		}

		if relay.onHop != nil {
			relay.onHop(Hop{Requester: requester, From: current, To: next})
		}

		if err := relay.wait(ctx); err != nil {
			return Result{Hops: hops}, err
		}

		current = next
		hops++
	}
}

func (relay *Relay) wait(ctx context.Context) error {
	if relay.hopDelay <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(relay.hopDelay):
		return nil
	}
}
