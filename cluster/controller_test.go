package cluster_test

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

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/node"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// quietAgents never decide on their own so tests can drive the protocol
// step by step
func quietAgents() AgentConfig {
	return AgentConfig{
		ThinkTimeMin:            time.Hour,
		ThinkTimeMax:            time.Hour,
		RequestProbability:      0,
		CriticalSectionDuration: time.Hour,
	}
}

func joinN(ringController *RingController, n int) {
	for i := 0; i < n; i++ {
		_, err := ringController.Join()

		Expect(err).Should(BeNil())
	}
}

func holders(snapshot RingSnapshot) []uint64 {
	holders := []uint64{}

	for _, node := range snapshot.Nodes {
		if node.HoldsToken {
			holders = append(holders, node.ID)
		}
	}

	return holders
}

func expectNodeAbsentFromQueues(snapshot RingSnapshot, nodeID uint64) {
	Expect(snapshot.Pending).ShouldNot(ContainElement(nodeID))

	for _, node := range snapshot.Nodes {
		Expect(node.ID).ShouldNot(Equal(nodeID))
		Expect(node.Queue).ShouldNot(ContainElement(nodeID))
	}
}

// request mimics an agent deciding it wants the critical section
func request(ringController *RingController, nodeID uint64) {
	entered, err := ringController.Want(nodeID)

	Expect(err).Should(BeNil())
	Expect(entered).Should(BeFalse())
	Expect(ringController.Request(context.Background(), nodeID)).Should(Succeed())
}

func handOff(ringController *RingController, nodeID uint64) uint64 {
	target, err := ringController.HandOff(context.Background(), nodeID)

	Expect(err).Should(BeNil())

	return target
}

func waitForDelta(deltas <-chan RingDelta, deltaType RingDeltaType) RingDelta {
	var found RingDelta

	Eventually(func() bool {
		select {
		case delta := <-deltas:
			if delta.Type == deltaType {
				found = delta

				return true
			}
		default:
		}

		return false
	}).Should(BeTrue())

	return found
}

var _ = Describe("RingController", func() {
	var ringController *RingController

	BeforeEach(func() {
		ringController = NewRingController(RingControllerConfig{
			Agent: quietAgents(),
		})
	})

	AfterEach(func() {
		ringController.Stop()
	})

	Describe("membership", func() {
		It("should give the first node a fresh token", func() {
			nodeID, err := ringController.Join()

			Expect(err).Should(BeNil())
			Expect(nodeID).Should(Equal(uint64(1)))

			snapshot := ringController.Snapshot()

			Expect(snapshot.Holder).Should(Equal(uint64(1)))
			Expect(snapshot.TokenID).ShouldNot(BeEmpty())
			Expect(snapshot.Sequence).Should(Equal(uint64(0)))
			Expect(snapshot.Nodes).Should(HaveLen(1))
			Expect(snapshot.Nodes[0].State).Should(Equal(HoldingIdle))
			Expect(snapshot.Nodes[0].HoldsToken).Should(BeTrue())
			Expect(snapshot.Nodes[0].Successor).Should(Equal(uint64(1)))
		})

		It("should keep the token where it is when more nodes join", func() {
			joinN(ringController, 3)

			snapshot := ringController.Snapshot()

			Expect(snapshot.Holder).Should(Equal(uint64(1)))
			Expect(holders(snapshot)).Should(Equal([]uint64{1}))

			for _, nodeID := range []uint64{2, 3} {
				node, ok := snapshot.Node(nodeID)

				Expect(ok).Should(BeTrue())
				Expect(node.State).Should(Equal(Idle))
			}
		})

		It("should refuse an eleventh node", func() {
			joinN(ringController, 10)

			_, err := ringController.Join()

			Expect(err).Should(Equal(ECapacityExceeded))
			Expect(ringController.Snapshot().Nodes).Should(HaveLen(10))
			Expect(ringController.Snapshot().MaxNodes).Should(Equal(10))
		})

		It("should refuse to leave an empty ring", func() {
			_, err := ringController.Leave()

			Expect(err).Should(Equal(ERingEmpty))
		})

		It("should retire the token when the last node leaves and mint a new one on the next join", func() {
			joinN(ringController, 1)
			firstToken := ringController.Snapshot().TokenID

			nodeID, err := ringController.Leave()

			Expect(err).Should(BeNil())
			Expect(nodeID).Should(Equal(uint64(1)))
			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(0)))
			Expect(ringController.Snapshot().TokenID).Should(BeEmpty())

			nodeID, err = ringController.Join()

			Expect(err).Should(BeNil())
			Expect(nodeID).Should(Equal(uint64(2)))
			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(2)))
			Expect(ringController.Snapshot().TokenID).ShouldNot(Equal(firstToken))
		})

		It("should fail to remove a node that is not in the ring", func() {
			joinN(ringController, 2)

			Expect(ringController.Remove(7)).Should(Equal(ENoSuchNode))
		})
	})

	Describe("three node scenario", func() {
		It("should route the token to the requester which enters the critical section at once", func() {
			joinN(ringController, 3)

			request(ringController, 2)

			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{2}))
			Expect(handOff(ringController, 1)).Should(Equal(uint64(2)))

			snapshot := ringController.Snapshot()
			first, _ := snapshot.Node(1)
			second, _ := snapshot.Node(2)

			Expect(snapshot.Holder).Should(Equal(uint64(2)))
			Expect(snapshot.Sequence).Should(Equal(uint64(1)))
			Expect(snapshot.Pending).Should(BeEmpty())
			Expect(first.State).Should(Equal(Idle))
			Expect(first.HoldsToken).Should(BeFalse())
			Expect(second.State).Should(Equal(InCriticalSection))
			Expect(second.WantsCS).Should(BeFalse())
			Expect(snapshot.InCriticalSection()).Should(Equal([]uint64{2}))
		})
	})

	Describe("hand-off", func() {
		It("should pass the token to the successor when nobody is waiting", func() {
			joinN(ringController, 3)

			Expect(handOff(ringController, 1)).Should(Equal(uint64(2)))
			Expect(handOff(ringController, 2)).Should(Equal(uint64(3)))
			Expect(handOff(ringController, 3)).Should(Equal(uint64(1)))
			Expect(ringController.Snapshot().Sequence).Should(Equal(uint64(3)))
		})

		It("should admit queued requesters in FIFO order before falling back to the successor", func() {
			joinN(ringController, 4)
			Expect(handOff(ringController, 1)).Should(Equal(uint64(2)))

			request(ringController, 3)
			request(ringController, 1)
			request(ringController, 4)

			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{3, 1, 4}))

			holder := uint64(2)

			for _, expected := range []uint64{3, 1, 4} {
				Expect(handOff(ringController, holder)).Should(Equal(expected))

				node, _ := ringController.Snapshot().Node(expected)

				Expect(node.State).Should(Equal(InCriticalSection))
				Expect(ringController.ExitCriticalSection(expected)).Should(Succeed())

				holder = expected
			}

			Expect(handOff(ringController, 4)).Should(Equal(uint64(1)))

			node, _ := ringController.Snapshot().Node(1)

			Expect(node.State).Should(Equal(HoldingIdle))
		})

		It("should be a no-op in a ring of one", func() {
			joinN(ringController, 1)

			Expect(handOff(ringController, 1)).Should(Equal(uint64(1)))
			Expect(ringController.Snapshot().Sequence).Should(Equal(uint64(0)))
		})

		It("should refuse a hand-off from a node that does not hold the token", func() {
			joinN(ringController, 2)

			_, err := ringController.HandOff(context.Background(), 2)

			Expect(err).Should(Equal(ENotHolder))
		})

		It("should refuse a hand-off from inside the critical section", func() {
			joinN(ringController, 2)

			entered, err := ringController.Want(1)

			Expect(err).Should(BeNil())
			Expect(entered).Should(BeTrue())

			_, err = ringController.HandOff(context.Background(), 1)

			Expect(err).Should(Equal(ENotHolder))
		})

		It("should refuse to exit a critical section the node is not in", func() {
			joinN(ringController, 2)

			Expect(ringController.ExitCriticalSection(2)).Should(Equal(ENotInCriticalSection))
			Expect(ringController.ExitCriticalSection(9)).Should(Equal(ENoSuchNode))
		})
	})

	Describe("requests", func() {
		It("should deduplicate concurrent requests from the same node", func() {
			joinN(ringController, 5)

			_, err := ringController.Want(3)

			Expect(err).Should(BeNil())

			var wg sync.WaitGroup

			for i := 0; i < 4; i++ {
				wg.Add(1)

				go func() {
					defer wg.Done()
					defer GinkgoRecover()

					Expect(ringController.Request(context.Background(), 3)).Should(Succeed())
				}()
			}

			wg.Wait()

			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{3}))
		})

		It("should drop a request from a node that no longer wants the critical section", func() {
			joinN(ringController, 3)

			Expect(ringController.Request(context.Background(), 2)).Should(Succeed())
			Expect(ringController.Snapshot().Pending).Should(BeEmpty())
		})

		It("should deliver a request in at most N hops", func() {
			joinN(ringController, 5)

			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			request(ringController, 2)

			hops := 0

		drain:
			for {
				select {
				case delta := <-deltas:
					if delta.Type == DeltaRequestHop {
						hops++
					}
				default:
					break drain
				}
			}

			Expect(hops).Should(Equal(4))
		})

		It("should not hop at all when the requester holds the token", func() {
			joinN(ringController, 3)

			Expect(ringController.Request(context.Background(), 1)).Should(Succeed())
			Expect(ringController.Snapshot().Pending).Should(BeEmpty())
		})
	})

	Describe("leaving", func() {
		It("should hand the token of a departing last-joined holder to its successor", func() {
			joinN(ringController, 4)

			handOff(ringController, 1)
			handOff(ringController, 2)
			handOff(ringController, 3)
			request(ringController, 2)

			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(4)))
			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{2}))

			nodeID, err := ringController.Leave()

			Expect(err).Should(BeNil())
			Expect(nodeID).Should(Equal(uint64(4)))

			snapshot := ringController.Snapshot()

			Expect(snapshot.Holder).Should(Equal(uint64(1)))
			Expect(holders(snapshot)).Should(Equal([]uint64{1}))
			Expect(snapshot.Pending).Should(Equal([]uint64{2}))
			expectNodeAbsentFromQueues(snapshot, 4)
		})

		It("should keep the token with a holder that is not the last joined and purge the departed node", func() {
			joinN(ringController, 4)
			request(ringController, 4)
			request(ringController, 3)

			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{4, 3}))

			nodeID, err := ringController.Leave()

			Expect(err).Should(BeNil())
			Expect(nodeID).Should(Equal(uint64(4)))

			snapshot := ringController.Snapshot()

			Expect(snapshot.Holder).Should(Equal(uint64(1)))
			Expect(snapshot.Pending).Should(Equal([]uint64{3}))
			expectNodeAbsentFromQueues(snapshot, 4)
		})

		It("should hand the token of a removed holder that is not the last joined to its successor", func() {
			joinN(ringController, 4)
			request(ringController, 3)

			Expect(ringController.Remove(1)).Should(Succeed())

			snapshot := ringController.Snapshot()

			Expect(snapshot.Holder).Should(Equal(uint64(2)))
			Expect(holders(snapshot)).Should(Equal([]uint64{2}))
			Expect(snapshot.Pending).Should(Equal([]uint64{3}))
			expectNodeAbsentFromQueues(snapshot, 1)
		})

		It("should admit a departing holder's heir at once if it was waiting", func() {
			joinN(ringController, 3)
			request(ringController, 2)

			Expect(ringController.Remove(1)).Should(Succeed())

			node, _ := ringController.Snapshot().Node(2)

			Expect(node.State).Should(Equal(InCriticalSection))
			Expect(ringController.Snapshot().Pending).Should(BeEmpty())
		})

		It("should report the token recovery", func() {
			joinN(ringController, 2)

			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			Expect(ringController.Remove(1)).Should(Succeed())

			delta := waitForDelta(deltas, DeltaTokenRecovered)

			Expect(delta.NodeID).Should(Equal(uint64(2)))
			Expect(delta.Peer).Should(Equal(uint64(1)))
			Expect(delta.Sequence).Should(Equal(uint64(1)))
		})
	})

	Describe("two phase hand-off", func() {
		BeforeEach(func() {
			ringController = NewRingController(RingControllerConfig{
				Agent:         quietAgents(),
				TransferDelay: 100 * time.Millisecond,
			})
		})

		It("should reject a commit after the holder was removed", func() {
			joinN(ringController, 3)

			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			result := make(chan error, 1)

			go func() {
				_, err := ringController.HandOff(context.Background(), 1)
				result <- err
			}()

			waitForDelta(deltas, DeltaHandOffStarted)
			Expect(ringController.Remove(1)).Should(Succeed())

			Eventually(result).Should(Receive(Equal(EStaleHandOff)))
			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(2)))
		})

		It("should decide again when the chosen target left before the commit", func() {
			joinN(ringController, 3)

			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			result := make(chan uint64, 1)

			go func() {
				defer GinkgoRecover()

				target, err := ringController.HandOff(context.Background(), 1)

				Expect(err).Should(BeNil())

				result <- target
			}()

			delta := waitForDelta(deltas, DeltaHandOffStarted)

			Expect(delta.Peer).Should(Equal(uint64(2)))
			Expect(ringController.Remove(2)).Should(Succeed())

			Eventually(result).Should(Receive(Equal(uint64(3))))
			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(3)))
		})

		It("should keep its decision when a request arrives during the transfer", func() {
			joinN(ringController, 3)

			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			result := make(chan uint64, 1)

			go func() {
				defer GinkgoRecover()

				target, err := ringController.HandOff(context.Background(), 1)

				Expect(err).Should(BeNil())

				result <- target
			}()

			waitForDelta(deltas, DeltaHandOffStarted)

			// node 1 holds the token so node 3 is absorbed without a hop
			entered, err := ringController.Want(3)

			Expect(err).Should(BeNil())
			Expect(entered).Should(BeFalse())
			held, merged := ringController.Absorb(nil, 1, 3)

			Expect(held).Should(BeTrue())
			Expect(merged).Should(BeTrue())

			Eventually(result).Should(Receive(Equal(uint64(2))))
			Expect(ringController.Snapshot().Pending).Should(Equal([]uint64{3}))
		})

		It("should give up when cancelled during the transfer", func() {
			joinN(ringController, 2)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := ringController.HandOff(ctx, 1)

			Expect(err).Should(Equal(context.Canceled))
			Expect(ringController.Snapshot().Holder).Should(Equal(uint64(1)))
		})
	})

	Describe("deltas", func() {
		It("should report joins and the bootstrap of the token", func() {
			deltas, cancel := ringController.Subscribe(100)
			defer cancel()

			joinN(ringController, 1)

			var delta RingDelta

			Eventually(deltas).Should(Receive(&delta))
			Expect(delta.Type).Should(Equal(DeltaNodeJoin))
			Expect(delta.NodeID).Should(Equal(uint64(1)))

			Eventually(deltas).Should(Receive(&delta))
			Expect(delta.Type).Should(Equal(DeltaStateChange))
			Expect(delta.NodeID).Should(Equal(uint64(1)))
			Expect(delta.State).Should(Equal(HoldingIdle))
		})

		It("should refuse to decode an unknown delta type", func() {
			var deltaType RingDeltaType

			Expect(deltaType.UnmarshalText([]byte("token_transfer"))).Should(Succeed())
			Expect(deltaType).Should(Equal(DeltaTokenTransfer))
			Expect(deltaType.UnmarshalText([]byte("token_lost"))).ShouldNot(Succeed())
		})

		It("should close a subscription when it is cancelled", func() {
			deltas, cancel := ringController.Subscribe(1)
			cancel()

			Eventually(deltas).Should(BeClosed())
		})

		It("should drop deltas for a subscriber that is not keeping up", func() {
			deltas, cancel := ringController.Subscribe(1)
			defer cancel()

			joinN(ringController, 5)

			Expect(deltas).Should(HaveLen(1))
		})
	})

	Describe("metrics", func() {
		It("should register the protocol metrics", func() {
			registry := prometheus.NewRegistry()
			ringController = NewRingController(RingControllerConfig{
				Agent:      quietAgents(),
				Registerer: registry,
			})

			joinN(ringController, 2)

			families, err := registry.Gather()

			Expect(err).Should(BeNil())

			names := []string{}

			for _, family := range families {
				names = append(names, family.GetName())
			}

			Expect(names).Should(ContainElement("tokenring_ring_size"))
			Expect(names).Should(ContainElement("tokenring_hand_offs_total"))
		})
	})

	Describe("running", func() {
		type exclusiveWork struct {
			lock    sync.Mutex
			inside  int
			most    int
			entries int
		}

		It("should never admit two nodes to the critical section at once", func() {
			work := &exclusiveWork{}
			criticalSection := criticalSectionFunc(func(ctx context.Context, nodeID uint64) error {
				work.lock.Lock()
				work.inside++
				work.entries++

				if work.inside > work.most {
					work.most = work.inside
				}

				work.lock.Unlock()

				select {
				case <-ctx.Done():
				case <-time.After(time.Millisecond):
				}

				work.lock.Lock()
				work.inside--
				work.lock.Unlock()

				return nil
			})

			ringController = NewRingController(RingControllerConfig{
				Agent: AgentConfig{
					ThinkTimeMin:       time.Millisecond,
					ThinkTimeMax:       3 * time.Millisecond,
					RequestProbability: 0.5,
					CriticalSection:    criticalSection,
				},
			})

			joinN(ringController, 5)
			Expect(ringController.Start()).Should(Succeed())

			for i := 0; i < 20; i++ {
				snapshot := ringController.Snapshot()

				Expect(holders(snapshot)).Should(Equal([]uint64{snapshot.Holder}))
				Expect(len(snapshot.InCriticalSection())).Should(BeNumerically("<=", 1))

				if i%5 == 4 {
					ringController.Leave()
					ringController.Join()
				}

				time.Sleep(20 * time.Millisecond)
			}

			ringController.Stop()

			work.lock.Lock()
			defer work.lock.Unlock()

			Expect(work.entries).Should(BeNumerically(">", 0))
			Expect(work.most).Should(Equal(1))
			Expect(ringController.MutualExclusionViolations()).Should(Equal(uint64(0)))
		})

		It("should hold back the heir's work until a removed holder's work returns", func() {
			decider := &switchDecider{wants: true}
			release := make(chan int)
			var releaseOnce sync.Once
			defer releaseOnce.Do(func() { close(release) })

			work := &exclusiveWork{}
			heirEntries := 0
			criticalSection := criticalSectionFunc(func(ctx context.Context, nodeID uint64) error {
				work.lock.Lock()
				work.inside++

				if work.inside > work.most {
					work.most = work.inside
				}

				if nodeID == 2 {
					heirEntries++
				}

				work.lock.Unlock()

				// node 1 keeps working after it is cancelled
				if nodeID == 1 {
					<-release
				}

				work.lock.Lock()
				work.inside--
				work.lock.Unlock()

				return nil
			})

			ringController = NewRingController(RingControllerConfig{
				Agent: AgentConfig{
					ThinkTimeMin:    time.Millisecond,
					ThinkTimeMax:    time.Millisecond,
					Decider:         decider,
					CriticalSection: criticalSection,
				},
			})

			joinN(ringController, 2)
			Expect(ringController.Start()).Should(Succeed())

			Eventually(func() []uint64 {
				return ringController.Snapshot().Pending
			}).Should(Equal([]uint64{2}))

			Eventually(func() State {
				node, _ := ringController.Snapshot().Node(1)

				return node.State
			}).Should(Equal(InCriticalSection))

			decider.set(false)

			Expect(ringController.Remove(1)).Should(Succeed())

			node, _ := ringController.Snapshot().Node(2)
			Expect(node.State).Should(Equal(InCriticalSection))

			Consistently(func() int {
				work.lock.Lock()
				defer work.lock.Unlock()

				return heirEntries
			}, 100*time.Millisecond).Should(Equal(0))

			releaseOnce.Do(func() { close(release) })

			Eventually(func() int {
				work.lock.Lock()
				defer work.lock.Unlock()

				return heirEntries
			}).Should(BeNumerically(">", 0))

			ringController.Stop()

			work.lock.Lock()
			defer work.lock.Unlock()

			Expect(work.most).Should(Equal(1))
		})

		It("should refuse to start again once stopped", func() {
			Expect(ringController.Start()).Should(Succeed())
			ringController.Stop()

			Expect(ringController.Start()).Should(Equal(EStopped))
		})
	})
})

type criticalSectionFunc func(ctx context.Context, nodeID uint64) error

func (fn criticalSectionFunc) Work(ctx context.Context, nodeID uint64) error {
	return fn(ctx, nodeID)
}

type switchDecider struct {
	lock  sync.Mutex
	wants bool
}

func (decider *switchDecider) set(wants bool) {
	decider.lock.Lock()
	defer decider.lock.Unlock()

	decider.wants = wants
}

func (decider *switchDecider) WantsCriticalSection() bool {
	decider.lock.Lock()
	defer decider.lock.Unlock()

	return decider.wants
}
