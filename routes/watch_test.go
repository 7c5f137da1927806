package routes_test

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
	"net/http/httptest"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/routes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Watch", func() {
	var ringFacade *MockRingFacade
	var server *httptest.Server

	BeforeEach(func() {
		ringFacade = NewMockRingFacade()
		router := mux.NewRouter()
		watchEndpoint := &WatchEndpoint{RingFacade: ringFacade}
		watchEndpoint.Attach(router)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("/ring/watch", func() {
		It("Should stream deltas as JSON frames and unsubscribe when the client leaves", func() {
			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ring/watch", nil)

			Expect(err).Should(BeNil())

			ringFacade.deltas <- RingDelta{Type: DeltaTokenTransfer, NodeID: 2, Peer: 1, Sequence: 1}

			var delta RingDelta

			Expect(conn.ReadJSON(&delta)).Should(Succeed())
			Expect(delta.Type).Should(Equal(DeltaTokenTransfer))
			Expect(delta.NodeID).Should(Equal(uint64(2)))
			Expect(delta.Sequence).Should(Equal(uint64(1)))

			conn.Close()

			Eventually(ringFacade.SubscriptionCancelled).Should(BeTrue())
		})
	})
})
