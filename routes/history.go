package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	. "github.com/PelionIoT/tokenring/historian"
	. "github.com/PelionIoT/tokenring/logging"
)

type HistoryEndpoint struct {
	History HistoryFacade
}

func (historyEndpoint *HistoryEndpoint) Attach(router *mux.Router) {
	router.HandleFunc("/ring/history", func(w http.ResponseWriter, r *http.Request) {
		var historyQuery HistoryQuery
		var err error

		query := r.URL.Query()

		if len(query.Get("after")) != 0 {
			historyQuery.After, err = strconv.ParseUint(query.Get("after"), 10, 64)

			if err != nil {
				Log.Warningf("GET /ring/history: Unable to parse after as uint64: %v", err)

				w.Header().Set("Content-Type", "application/json; charset=utf8")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, "\n")

				return
			}
		}

		if len(query.Get("limit")) != 0 {
			limit, err := strconv.ParseUint(query.Get("limit"), 10, 31)

			if err != nil {
				Log.Warningf("GET /ring/history: Unable to parse limit as a positive integer: %v", err)

				w.Header().Set("Content-Type", "application/json; charset=utf8")
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, "\n")

				return
			}

			historyQuery.Limit = int(limit)
		}

		events, err := historyEndpoint.History.Query(historyQuery)

		if err != nil {
			Log.Warningf("GET /ring/history: %v", err)

			writeInternalError(w, err)

			return
		}

		encodedEvents, _ := json.Marshal(events)

		w.Header().Set("Content-Type", "application/json; charset=utf8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, string(encodedEvents)+"\n")
	}).Methods("GET")
}
