package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
)

type RingEndpoint struct {
	RingFacade RingFacade
}

func (ringEndpoint *RingEndpoint) Attach(router *mux.Router) {
	router.HandleFunc("/ring", func(w http.ResponseWriter, r *http.Request) {
		encodedSnapshot, _ := json.Marshal(ringEndpoint.RingFacade.Snapshot())

		w.Header().Set("Content-Type", "application/json; charset=utf8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, string(encodedSnapshot)+"\n")
	}).Methods("GET")

	router.HandleFunc("/ring/nodes", func(w http.ResponseWriter, r *http.Request) {
		nodeID, err := ringEndpoint.RingFacade.Join()

		if err == ECapacityExceeded {
			Log.Warningf("POST /ring/nodes: %v", err)

			writeError(w, http.StatusConflict, ECapacityExceeded)

			return
		}

		if err != nil {
			Log.Warningf("POST /ring/nodes: %v", err)

			writeInternalError(w, err)

			return
		}

		writeNodeID(w, nodeID)
	}).Methods("POST")

	router.HandleFunc("/ring/nodes", func(w http.ResponseWriter, r *http.Request) {
		nodeID, err := ringEndpoint.RingFacade.Leave()

		if err == ERingEmpty {
			Log.Warningf("DELETE /ring/nodes: %v", err)

			writeError(w, http.StatusNotFound, ERingEmpty)

			return
		}

		if err != nil {
			Log.Warningf("DELETE /ring/nodes: %v", err)

			writeInternalError(w, err)

			return
		}

		writeNodeID(w, nodeID)
	}).Methods("DELETE")

	router.HandleFunc("/ring/nodes/{nodeID}", func(w http.ResponseWriter, r *http.Request) {
		nodeID, err := strconv.ParseUint(mux.Vars(r)["nodeID"], 10, 64)

		if err != nil || nodeID == 0 {
			Log.Warningf("DELETE /ring/nodes/{nodeID}: Unable to parse node ID as uint64: %v", mux.Vars(r)["nodeID"])

			writeError(w, http.StatusBadRequest, EInvalidNodeID)

			return
		}

		err = ringEndpoint.RingFacade.Remove(nodeID)

		if err == ENoSuchNode {
			Log.Warningf("DELETE /ring/nodes/{nodeID}: %v", err)

			writeError(w, http.StatusNotFound, ENoSuchNode)

			return
		}

		if err != nil {
			Log.Warningf("DELETE /ring/nodes/{nodeID}: %v", err)

			writeInternalError(w, err)

			return
		}

		writeNodeID(w, nodeID)
	}).Methods("DELETE")
}

func writeNodeID(w http.ResponseWriter, nodeID uint64) {
	encodedResponse, _ := json.Marshal(NodeIDResponse{ID: nodeID})

	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, string(encodedResponse)+"\n")
}

func writeError(w http.ResponseWriter, status int, ringError RingError) {
	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(status)
	io.WriteString(w, string(ringError.JSON())+"\n")
}

func writeInternalError(w http.ResponseWriter, err error) {
	if ringError, ok := err.(RingError); ok {
		writeError(w, http.StatusInternalServerError, ringError)

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf8")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, "\n")
}
