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
	"context"
	"math/rand"
	"sync"
	"time"

	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/token"
)

// Protocol is the set of coordinated actions an agent can take. It is
// implemented by the cluster controller, which serializes every token
// movement and calls back into the agent's transition methods.
type Protocol interface {
	// Want marks nodeID as wanting the critical section. If nodeID is idly
	// holding the token it enters immediately and entered is true.
	Want(nodeID uint64) (entered bool, err error)
	// Request carries a request from nodeID around the ring until the token
	// holder absorbs it
	Request(ctx context.Context, nodeID uint64) error
	ExitCriticalSection(nodeID uint64) error
	// HandOff passes the token held by nodeID on to the next requester or,
	// if nobody is waiting, to the successor. It returns the new holder.
	HandOff(ctx context.Context, nodeID uint64) (uint64, error)
}

type AgentSnapshot struct {
	State                State
	Holding              bool
	WantsCriticalSection bool
}

// Agent is the autonomous behavior of one ring member. Its state is only
// changed through Want, AcceptToken, ReleaseToken and ExitCriticalSection,
// which the coordinator calls while holding its hand-off lock. The local
// queue returned by Queue is guarded by that same lock.
type Agent struct {
	id              uint64
	protocol        Protocol
	thinkTimeMin    time.Duration
	thinkTimeMax    time.Duration
	decider         Decider
	criticalSection CriticalSection
	random          *rand.Rand

	lock             sync.Mutex
	state            State
	wantsCS          bool
	holding          bool
	queue            *RequesterQueue
	requestInFlight  bool
	requestDelivered bool
	stopped          bool
	cancel           func()
	onStateChange    func(nodeID uint64, from State, to State)
	tokenArrived     chan int
	walks            sync.WaitGroup
	predecessor      <-chan int
	finished         chan int
	finishOnce       sync.Once
}

func NewAgent(nodeID uint64, config AgentConfig, protocol Protocol) *Agent {
	random := rand.New(rand.NewSource(time.Now().UnixNano() + int64(nodeID)))
	agent := &Agent{
		id:              nodeID,
		protocol:        protocol,
		thinkTimeMin:    config.ThinkTimeMin,
		thinkTimeMax:    config.ThinkTimeMax,
		decider:         config.Decider,
		criticalSection: config.CriticalSection,
		random:          random,
		state:           Idle,
		queue:           NewRequesterQueue(),
		tokenArrived:    make(chan int, 1),
		finished:        make(chan int),
	}

	if agent.decider == nil {
		agent.decider = &randomDecider{random: random, probability: config.RequestProbability}
	}

	if agent.criticalSection == nil {
		agent.criticalSection = &sleepingCriticalSection{duration: config.CriticalSectionDuration}
	}

	return agent
}

func (agent *Agent) ID() uint64 {
	return agent.id
}

// OnStateChange registers a callback invoked on every state transition. It
// runs with the agent lock held and must not block or call back into the
// agent.
func (agent *Agent) OnStateChange(cb func(nodeID uint64, from State, to State)) {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	agent.onStateChange = cb
}

func (agent *Agent) State() State {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	return agent.state
}

func (agent *Agent) Holding() bool {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	return agent.holding
}

func (agent *Agent) WantsCriticalSection() bool {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	return agent.wantsCS
}

func (agent *Agent) Snapshot() AgentSnapshot {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	return AgentSnapshot{
		State:                agent.state,
		Holding:              agent.holding,
		WantsCriticalSection: agent.wantsCS,
	}
}

// Queue returns the agent's local queue of pending requesters. While the
// agent holds the token this is the token's pending set.
func (agent *Agent) Queue() *RequesterQueue {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	return agent.queue
}

// Finished is closed once the agent is stopped and Run, including any
// critical section work in progress, has returned
func (agent *Agent) Finished() <-chan int {
	return agent.finished
}

// FollowPredecessor delays the agent's next critical section work until
// finished is closed. It is used when the token is taken from a node that
// was removed while its work may still be running.
func (agent *Agent) FollowPredecessor(finished <-chan int) {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	agent.predecessor = finished
}

func (agent *Agent) finish() {
	agent.finishOnce.Do(func() {
		close(agent.finished)
	})
}

func (agent *Agent) setState(to State) {
	from := agent.state
	agent.state = to

	if from != to && agent.onStateChange != nil {
		agent.onStateChange(agent.id, from, to)
	}
}

// Want records the wish to enter the critical section. A holder sitting idle
// on the token enters right away and Want returns true. An idle non-holder
// starts requesting.
func (agent *Agent) Want() bool {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	switch agent.state {
	case HoldingIdle:
		agent.setState(InCriticalSection)

		return true
	case Idle:
		agent.wantsCS = true
		agent.requestDelivered = false
		agent.setState(Requesting)
	}

	return false
}

// AcceptToken makes the agent the token holder. Requesters queued in
// incoming are merged into the local queue, excluding the agent itself. It
// returns the state the agent moved to.
func (agent *Agent) AcceptToken(incoming *RequesterQueue) State {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	agent.holding = true
	agent.requestDelivered = false

	if incoming != nil && incoming != agent.queue {
		agent.queue.Merge(incoming, agent.id)
	}

	agent.queue.Remove(agent.id)

	if agent.wantsCS {
		agent.wantsCS = false
		agent.setState(InCriticalSection)
	} else {
		agent.setState(HoldingIdle)
	}

	select {
	case agent.tokenArrived <- 1:
	default:
	}

	return agent.state
}

// ReleaseToken gives up the token. The agent's local queue is returned so it
// can travel with the token, and the agent starts over with an empty one.
func (agent *Agent) ReleaseToken() *RequesterQueue {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	queue := agent.queue
	agent.queue = NewRequesterQueue()
	agent.holding = false

	if agent.wantsCS {
		agent.setState(Requesting)
	} else {
		agent.setState(Idle)
	}

	return queue
}

func (agent *Agent) ExitCriticalSection() error {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	if agent.state != InCriticalSection {
		return ENotInCriticalSection
	}

	agent.setState(HoldingIdle)

	return nil
}

// Run drives the agent until ctx is cancelled or Stop is called. Every think
// interval the agent may decide it wants the critical section. A token
// arrival that admits it to the critical section is acted on immediately.
func (agent *Agent) Run(ctx context.Context) {
	agent.lock.Lock()

	if agent.stopped {
		agent.lock.Unlock()

		return
	}

	ctx, cancel := context.WithCancel(ctx)
	agent.cancel = cancel
	agent.lock.Unlock()

	defer agent.finish()
	defer agent.walks.Wait()
	defer cancel()

	Log.Debugf("Node %d started", agent.id)

	for {
		select {
		case <-ctx.Done():
			Log.Debugf("Node %d stopped", agent.id)

			return
		case <-agent.tokenArrived:
			if agent.State() == InCriticalSection {
				agent.runCriticalSection(ctx)
			}
		case <-time.After(agent.thinkTime()):
			agent.tick(ctx)
		}
	}
}

// Stop cancels Run. It does not wait for Run to return; use Finished for
// that.
func (agent *Agent) Stop() {
	agent.lock.Lock()
	defer agent.lock.Unlock()

	agent.stopped = true

	if agent.cancel != nil {
		agent.cancel()
	} else {
		agent.finish()
	}
}

func (agent *Agent) tick(ctx context.Context) {
	switch agent.State() {
	case Idle:
		if agent.decider.WantsCriticalSection() {
			agent.want(ctx)
		}
	case HoldingIdle:
		if agent.decider.WantsCriticalSection() {
			agent.want(ctx)

			return
		}

		agent.handOff(ctx)
	case Requesting:
		agent.request(ctx)
	}
}

func (agent *Agent) want(ctx context.Context) {
	entered, err := agent.protocol.Want(agent.id)

	if err != nil {
		Log.Warningf("Node %d was unable to register its wish to enter the critical section: %v", agent.id, err.Error())

		return
	}

	if entered {
		agent.runCriticalSection(ctx)

		return
	}

	agent.request(ctx)
}

// request starts a walk around the ring unless one is already in flight or
// an earlier walk already reached the holder. A walk that gives up leaves
// the agent requesting so the next tick issues it again.
func (agent *Agent) request(ctx context.Context) {
	agent.lock.Lock()

	if agent.state != Requesting || agent.requestInFlight || agent.requestDelivered {
		agent.lock.Unlock()

		return
	}

	agent.requestInFlight = true
	agent.walks.Add(1)
	agent.lock.Unlock()

	go func() {
		defer agent.walks.Done()

		err := agent.protocol.Request(ctx, agent.id)

		agent.lock.Lock()
		agent.requestInFlight = false

		if err == nil && agent.state == Requesting {
			agent.requestDelivered = true
		}

		agent.lock.Unlock()

		if err != nil && ctx.Err() == nil {
			Log.Infof("Request from node %d was not delivered: %v. It will be issued again", agent.id, err.Error())
		}
	}()
}

func (agent *Agent) runCriticalSection(ctx context.Context) {
	agent.lock.Lock()
	predecessor := agent.predecessor
	agent.predecessor = nil
	agent.lock.Unlock()

	if predecessor != nil {
		select {
		case <-predecessor:
		case <-ctx.Done():
			return
		}
	}

	Log.Infof("Node %d entered the critical section", agent.id)

	if err := agent.criticalSection.Work(ctx, agent.id); err != nil && ctx.Err() != nil {
		return
	} else if err != nil {
		Log.Warningf("Node %d critical section work failed: %v", agent.id, err.Error())
	}

	if err := agent.protocol.ExitCriticalSection(agent.id); err != nil {
		Log.Warningf("Node %d was unable to exit the critical section: %v", agent.id, err.Error())

		return
	}

	Log.Infof("Node %d exited the critical section", agent.id)

	agent.handOff(ctx)
}

func (agent *Agent) handOff(ctx context.Context) {
	target, err := agent.protocol.HandOff(ctx, agent.id)

	if err != nil {
		if ctx.Err() == nil {
			Log.Debugf("Node %d did not hand off the token: %v", agent.id, err.Error())
		}

		return
	}

	Log.Debugf("Node %d handed the token to node %d", agent.id, target)
}

func (agent *Agent) thinkTime() time.Duration {
	if agent.thinkTimeMax <= agent.thinkTimeMin {
		return agent.thinkTimeMin
	}

	return agent.thinkTimeMin + time.Duration(agent.random.Int63n(int64(agent.thinkTimeMax-agent.thinkTimeMin)+1))
}
