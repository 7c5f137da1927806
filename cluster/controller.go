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
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/node"
	. "github.com/PelionIoT/tokenring/relay"
	. "github.com/PelionIoT/tokenring/ring"
	. "github.com/PelionIoT/tokenring/token"
)

type RingControllerConfig struct {
	MaxNodes int
	Layout   *Layout
	Agent    AgentConfig
	// TransferDelay separates a hand-off decision from its commit and is
	// also the time a request takes to cross one edge of the ring
	TransferDelay time.Duration
	// Registerer receives the protocol metrics. Metrics are not exported if
	// it is nil.
	Registerer prometheus.Registerer
}

// RingController is the single owner of the ring topology, the token and
// the node agents. Lock order is the topology lock, then the controller
// lock, then an agent's lock.
type RingController struct {
	topology      *Topology
	relay         *Relay
	agentConfig   AgentConfig
	transferDelay time.Duration
	metrics       *ringMetrics

	lock       sync.Mutex
	token      *Token
	agents     map[uint64]*Agent
	critical   uint64
	violations uint64

	runLock  sync.Mutex
	running  bool
	stopped  bool
	launched map[uint64]bool
	ctx      context.Context
	cancel   func()
	wg       sync.WaitGroup

	subscribersLock sync.Mutex
	subscribers     map[int]chan RingDelta
	nextSubscriber  int
}

func NewRingController(config RingControllerConfig) *RingController {
	ringController := &RingController{
		topology:      NewTopology(TopologyConfig{MaxNodes: config.MaxNodes, Layout: config.Layout}),
		agentConfig:   config.Agent,
		transferDelay: config.TransferDelay,
		metrics:       newRingMetrics(config.Registerer),
		agents:        make(map[uint64]*Agent),
		launched:      make(map[uint64]bool),
		subscribers:   make(map[int]chan RingDelta),
	}

	ringController.relay = NewRelay(RelayConfig{
		Topology: ringController.topology,
		Absorber: ringController,
		HopDelay: config.TransferDelay,
		OnHop:    ringController.requestHopped,
	})

	return ringController
}

func (ringController *RingController) MaxNodes() int {
	return ringController.topology.MaxNodes()
}

// Start launches the goroutine of every current and future node agent
func (ringController *RingController) Start() error {
	ringController.runLock.Lock()
	defer ringController.runLock.Unlock()

	if ringController.stopped {
		return EStopped
	}

	if ringController.running {
		return nil
	}

	ringController.ctx, ringController.cancel = context.WithCancel(context.Background())
	ringController.running = true

	ringController.lock.Lock()
	agents := make([]*Agent, 0, len(ringController.agents))

	for _, agent := range ringController.agents {
		agents = append(agents, agent)
	}

	ringController.lock.Unlock()

	for _, agent := range agents {
		ringController.launch(agent)
	}

	Log.Infof("Ring started with %d nodes", len(agents))

	return nil
}

// Stop cancels every agent and waits for their goroutines to exit. A stopped
// controller cannot be started again.
func (ringController *RingController) Stop() {
	ringController.runLock.Lock()

	ringController.stopped = true

	if !ringController.running {
		ringController.runLock.Unlock()

		return
	}

	ringController.running = false
	ringController.cancel()
	ringController.runLock.Unlock()

	ringController.wg.Wait()

	Log.Infof("Ring stopped")
}

// launch must be called with runLock held
func (ringController *RingController) launch(agent *Agent) {
	if !ringController.running || ringController.launched[agent.ID()] {
		return
	}

	ringController.launched[agent.ID()] = true
	ringController.wg.Add(1)

	go func() {
		defer ringController.wg.Done()

		agent.Run(ringController.ctx)
	}()
}

// Join adds a node at the end of the ring. The first node to join an empty
// ring is given a fresh token.
func (ringController *RingController) Join() (uint64, error) {
	var agent *Agent

	nodeID, err := ringController.topology.Join(func(nodeID uint64, view *View) {
		ringController.lock.Lock()
		defer ringController.lock.Unlock()

		agent = NewAgent(nodeID, ringController.agentConfig, ringController)
		agent.OnStateChange(ringController.stateChanged)
		ringController.agents[nodeID] = agent

		Log.Infof("Node %d joined the ring", nodeID)

		ringController.emit(RingDelta{Type: DeltaNodeJoin, NodeID: nodeID})

		if ringController.token == nil {
			ringController.token = NewToken(nodeID, agent.Queue())
			agent.AcceptToken(nil)

			Log.Infof("Node %d bootstrapped %v", nodeID, ringController.token)
		}

		ringController.metrics.ringSize.Set(float64(view.Size()))
	})

	if err != nil {
		Log.Warningf("Unable to add a node to the ring: %v", err.Error())

		return 0, err
	}

	ringController.runLock.Lock()
	ringController.launch(agent)
	ringController.runLock.Unlock()

	return nodeID, nil
}

// Leave removes the most recently joined node
func (ringController *RingController) Leave() (uint64, error) {
	nodeID, err := ringController.topology.Leave(ringController.nodeLeft)

	if err != nil {
		Log.Warningf("Unable to remove a node from the ring: %v", err.Error())

		return 0, err
	}

	return nodeID, nil
}

// Remove removes a specific node from the ring
func (ringController *RingController) Remove(nodeID uint64) error {
	if err := ringController.topology.Remove(nodeID, ringController.nodeLeft); err != nil {
		Log.Warningf("Unable to remove node %d from the ring: %v", nodeID, err.Error())

		return err
	}

	return nil
}

// nodeLeft runs under the topology write lock. The departed node's goroutine
// is cancelled and its ID purged from every queue. If it held the token the
// token moves to its former successor together with any requests that were
// still queued. The heir does not start critical section work until the
// departed agent has finished.
func (ringController *RingController) nodeLeft(nodeID uint64, successor uint64, view *View) {
	ringController.lock.Lock()
	defer ringController.lock.Unlock()

	agent := ringController.agents[nodeID]
	delete(ringController.agents, nodeID)

	if agent != nil {
		agent.Stop()
	}

	if ringController.critical == nodeID {
		ringController.critical = 0
	}

	for _, other := range ringController.agents {
		other.Queue().Remove(nodeID)
	}

	ringController.metrics.ringSize.Set(float64(view.Size()))

	Log.Infof("Node %d left the ring", nodeID)

	ringController.emit(RingDelta{Type: DeltaNodeLeave, NodeID: nodeID})

	if ringController.token == nil || ringController.token.Holder() != nodeID {
		return
	}

	if successor == 0 {
		Log.Infof("The ring is empty. Retiring %v", ringController.token)

		ringController.token = nil

		return
	}

	var orphaned *RequesterQueue

	if agent != nil {
		orphaned = agent.Queue()
	}

	heir := ringController.agents[successor]

	if agent != nil {
		heir.FollowPredecessor(agent.Finished())
	}

	heir.AcceptToken(orphaned)
	sequence := ringController.token.Transfer(successor, heir.Queue())
	ringController.metrics.recoveredTokens.Inc()

	Log.Warningf("%v: node %d left while holding the token. It now belongs to node %d (sequence = %d)", EOrphanedToken.Error(), nodeID, successor, sequence)

	ringController.emit(RingDelta{Type: DeltaTokenRecovered, NodeID: successor, Peer: nodeID, Sequence: sequence})
}

// Want implements Protocol
func (ringController *RingController) Want(nodeID uint64) (bool, error) {
	ringController.lock.Lock()
	defer ringController.lock.Unlock()

	agent, ok := ringController.agents[nodeID]

	if !ok {
		return false, ENoSuchNode
	}

	return agent.Want(), nil
}

// Request implements Protocol. The request starts at the requester itself
// so a requester that already holds the token is satisfied without a hop.
func (ringController *RingController) Request(ctx context.Context, nodeID uint64) error {
	result, err := ringController.relay.Propagate(ctx, nodeID, nodeID)

	if err == ERequestUndelivered {
		ringController.metrics.undeliveredRequests.Inc()
		ringController.emit(RingDelta{Type: DeltaRequestUndelivered, Requester: nodeID})

		return err
	}

	if err != nil {
		return err
	}

	ringController.metrics.requestHops.Observe(float64(result.Hops))

	return nil
}

// Absorb implements the relay's Absorber. A request reaching the holder is
// only queued if the requester still wants the critical section.
func (ringController *RingController) Absorb(view *View, nodeID uint64, requester uint64) (bool, bool) {
	ringController.lock.Lock()
	defer ringController.lock.Unlock()

	if ringController.token == nil || ringController.token.Holder() != nodeID {
		return false, false
	}

	requesterAgent, ok := ringController.agents[requester]

	if !ok || !requesterAgent.WantsCriticalSection() {
		return true, false
	}

	if !ringController.token.Merge(requester) {
		return true, false
	}

	ringController.emit(RingDelta{Type: DeltaRequestMerged, NodeID: nodeID, Requester: requester})

	return true, true
}

func (ringController *RingController) requestHopped(hop Hop) {
	ringController.emit(RingDelta{Type: DeltaRequestHop, NodeID: hop.From, Peer: hop.To, Requester: hop.Requester})
}

// ExitCriticalSection implements Protocol
func (ringController *RingController) ExitCriticalSection(nodeID uint64) error {
	ringController.lock.Lock()
	defer ringController.lock.Unlock()

	agent, ok := ringController.agents[nodeID]

	if !ok {
		return ENoSuchNode
	}

	return agent.ExitCriticalSection()
}

// HandOff implements Protocol. The target is decided first, the transfer
// delay elapses and the hand-off is then committed, provided the token has
// not moved in the meantime. Handing off in a ring of one is a no-op.
func (ringController *RingController) HandOff(ctx context.Context, nodeID uint64) (uint64, error) {
	var target uint64
	var sequence uint64
	var err error

	ringController.topology.Read(func(view *View) {
		ringController.lock.Lock()
		defer ringController.lock.Unlock()

		target, sequence, err = ringController.decideHandOff(view, nodeID)
	})

	if err != nil {
		return 0, err
	}

	if target == nodeID {
		return nodeID, nil
	}

	ringController.emit(RingDelta{Type: DeltaHandOffStarted, NodeID: nodeID, Peer: target, Sequence: sequence})

	if err := ringController.wait(ctx); err != nil {
		return 0, err
	}

	ringController.topology.Read(func(view *View) {
		ringController.lock.Lock()
		defer ringController.lock.Unlock()

		target, err = ringController.commitHandOff(view, nodeID, target, sequence)
	})

	return target, err
}

func (ringController *RingController) holder(nodeID uint64) (*Agent, error) {
	agent, ok := ringController.agents[nodeID]

	if !ok {
		return nil, ENoSuchNode
	}

	if ringController.token == nil || ringController.token.Holder() != nodeID {
		return nil, ENotHolder
	}

	// A holder inside the critical section keeps the token until it exits
	if agent.State() != HoldingIdle {
		return nil, ENotHolder
	}

	return agent, nil
}

func (ringController *RingController) nextHolder(view *View, nodeID uint64, queue *RequesterQueue) uint64 {
	if head, ok := queue.Peek(); ok {
		return head
	}

	successor, _ := view.Successor(nodeID)

	return successor
}

func (ringController *RingController) decideHandOff(view *View, nodeID uint64) (uint64, uint64, error) {
	agent, err := ringController.holder(nodeID)

	if err != nil {
		return 0, 0, err
	}

	return ringController.nextHolder(view, nodeID, agent.Queue()), ringController.token.Sequence(), nil
}

func (ringController *RingController) commitHandOff(view *View, nodeID uint64, target uint64, sequence uint64) (uint64, error) {
	agent, err := ringController.holder(nodeID)

	if err != nil || ringController.token.Sequence() != sequence {
		return 0, EStaleHandOff
	}

	queue := agent.Queue()
	successor, _ := view.Successor(nodeID)

	if !view.Contains(target) || (!queue.Contains(target) && target != successor) {
		Log.Debugf("Node %d can no longer hand off to node %d. Deciding again", nodeID, target)

		target = ringController.nextHolder(view, nodeID, queue)
	}

	if target == nodeID {
		return nodeID, nil
	}

	queue.Remove(target)
	released := agent.ReleaseToken()
	heir := ringController.agents[target]
	heir.AcceptToken(released)
	sequence = ringController.token.Transfer(target, heir.Queue())
	ringController.metrics.handOffs.Inc()

	Log.Debugf("Node %d passed the token to node %d (sequence = %d, pending = %v)", nodeID, target, sequence, heir.Queue().IDs())

	ringController.emit(RingDelta{Type: DeltaTokenTransfer, NodeID: target, Peer: nodeID, Sequence: sequence})

	return target, nil
}

func (ringController *RingController) wait(ctx context.Context) error {
	if ringController.transferDelay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ringController.transferDelay):
		return nil
	}
}

// stateChanged is registered with every agent. Agents only change state
// inside controller methods that hold the controller lock so the critical
// section bookkeeping here is guarded by it.
func (ringController *RingController) stateChanged(nodeID uint64, from State, to State) {
	if to == InCriticalSection {
		if ringController.critical != 0 && ringController.critical != nodeID {
			ringController.violations++
			ringController.metrics.exclusionViolations.Inc()

			Log.Criticalf("Node %d entered the critical section while node %d was still in it", nodeID, ringController.critical)
		}

		ringController.critical = nodeID
		ringController.metrics.criticalSectionEntries.Inc()
	} else if from == InCriticalSection && ringController.critical == nodeID {
		ringController.critical = 0
	}

	ringController.emit(RingDelta{Type: DeltaStateChange, NodeID: nodeID, State: to})
}

// MutualExclusionViolations is the number of admissions that found another
// node already in the critical section
func (ringController *RingController) MutualExclusionViolations() uint64 {
	ringController.lock.Lock()
	defer ringController.lock.Unlock()

	return ringController.violations
}

func (ringController *RingController) Snapshot() RingSnapshot {
	var snapshot RingSnapshot

	ringController.topology.Read(func(view *View) {
		ringController.lock.Lock()
		defer ringController.lock.Unlock()

		snapshot.MaxNodes = ringController.topology.MaxNodes()
		snapshot.Nodes = make([]NodeSnapshot, 0, view.Size())
		snapshot.Pending = []uint64{}

		if ringController.token != nil {
			snapshot.Holder = ringController.token.Holder()
			snapshot.TokenID = ringController.token.ID()
			snapshot.Sequence = ringController.token.Sequence()
			snapshot.Pending = ringController.token.Pending().IDs()
		}

		for index, nodeID := range view.Members() {
			agent := ringController.agents[nodeID]
			agentSnapshot := agent.Snapshot()
			successor, _ := view.Successor(nodeID)
			position, _ := view.Position(nodeID)

			snapshot.Nodes = append(snapshot.Nodes, NodeSnapshot{
				ID:         nodeID,
				Index:      index,
				State:      agentSnapshot.State,
				HoldsToken: agentSnapshot.Holding,
				WantsCS:    agentSnapshot.WantsCriticalSection,
				Successor:  successor,
				Position:   position,
				Queue:      agent.Queue().IDs(),
			})
		}
	})

	return snapshot
}

// Subscribe returns a channel receiving every delta emitted from now on and
// a function that cancels the subscription. Deltas are dropped for a
// subscriber whose buffer is full.
func (ringController *RingController) Subscribe(buffer int) (<-chan RingDelta, func()) {
	ringController.subscribersLock.Lock()
	defer ringController.subscribersLock.Unlock()

	id := ringController.nextSubscriber
	deltas := make(chan RingDelta, buffer)
	ringController.nextSubscriber++
	ringController.subscribers[id] = deltas

	return deltas, func() {
		ringController.subscribersLock.Lock()
		defer ringController.subscribersLock.Unlock()

		if _, ok := ringController.subscribers[id]; ok {
			delete(ringController.subscribers, id)
			close(deltas)
		}
	}
}

func (ringController *RingController) emit(delta RingDelta) {
	delta.Timestamp = time.Now()

	ringController.subscribersLock.Lock()
	defer ringController.subscribersLock.Unlock()

	for id, deltas := range ringController.subscribers {
		select {
		case deltas <- delta:
		default:
			Log.Debugf("Subscriber %d is not keeping up. Dropped %v delta", id, delta.Type)
		}
	}
}
