package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/historian"
	. "github.com/PelionIoT/tokenring/routes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("History", func() {
	var router *mux.Router
	var history *MockHistory

	BeforeEach(func() {
		history = &MockHistory{defaultResponse: []*Event{}}
		router = mux.NewRouter()
		historyEndpoint := &HistoryEndpoint{History: history}
		historyEndpoint.Attach(router)
	})

	serve := func(path string) *httptest.ResponseRecorder {
		req, err := http.NewRequest("GET", path, nil)

		Expect(err).Should(BeNil())

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		return rr
	}

	Describe("/ring/history", func() {
		Describe("GET", func() {
			It("Should pass the after and limit parameters to Query()", func() {
				rr := serve("/ring/history?after=5&limit=20")

				Expect(rr.Code).Should(Equal(http.StatusOK))
				Expect(history.lastQuery).Should(Equal(HistoryQuery{After: 5, Limit: 20}))
			})

			It("Should respond with the JSON-encoded events", func() {
				history.defaultResponse = []*Event{{Serial: 1, Type: DeltaNodeJoin, NodeID: 1}}

				rr := serve("/ring/history")

				var events []*Event

				Expect(rr.Code).Should(Equal(http.StatusOK))
				Expect(json.Unmarshal(rr.Body.Bytes(), &events)).Should(Succeed())
				Expect(events).Should(HaveLen(1))
				Expect(events[0].Type).Should(Equal(DeltaNodeJoin))
			})

			Context("When after is not a number", func() {
				It("Should respond with status code http.StatusBadRequest", func() {
					Expect(serve("/ring/history?after=x").Code).Should(Equal(http.StatusBadRequest))
				})
			})

			Context("When limit is negative", func() {
				It("Should respond with status code http.StatusBadRequest", func() {
					Expect(serve("/ring/history?limit=-1").Code).Should(Equal(http.StatusBadRequest))
				})
			})

			Context("When Query() returns an error", func() {
				It("Should respond with status code http.StatusInternalServerError and an EStorage body", func() {
					history.defaultError = EStorage

					rr := serve("/ring/history")
					ringError, ok := Decode(rr.Body.Bytes())

					Expect(rr.Code).Should(Equal(http.StatusInternalServerError))
					Expect(ok).Should(BeTrue())
					Expect(ringError).Should(Equal(EStorage))
				})
			})
		})
	})
})
