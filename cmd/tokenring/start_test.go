package main

import (
	"time"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/node"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Start", func() {
	var ringController *RingController

	BeforeEach(func() {
		ringController = NewRingController(RingControllerConfig{
			MaxNodes: 3,
			Agent: AgentConfig{
				ThinkTimeMin: time.Hour,
				ThinkTimeMax: time.Hour,
			},
		})
	})

	AfterEach(func() {
		ringController.Stop()
	})

	It("should join each initial node exactly once", func() {
		deltas, cancel := ringController.Subscribe(100)
		defer cancel()

		Expect(joinInitialNodes(ringController, 3)).Should(Succeed())
		Expect(ringController.Snapshot().Nodes).Should(HaveLen(3))

		joins := 0

		for len(deltas) > 0 {
			if delta := <-deltas; delta.Type == DeltaNodeJoin {
				joins++
			}
		}

		Expect(joins).Should(Equal(3))
	})

	It("should fail when there are more initial nodes than the ring can hold", func() {
		Expect(joinInitialNodes(ringController, 4)).Should(Equal(ECapacityExceeded))
		Expect(ringController.Snapshot().Nodes).Should(HaveLen(3))
	})
})
