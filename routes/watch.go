package routes

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
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	. "github.com/PelionIoT/tokenring/logging"
)

const (
	watchBufferSize   = 256
	watchWriteTimeout = 10 * time.Second
)

// WatchEndpoint streams every ring delta to a websocket client as a JSON
// text frame. A client that falls behind misses deltas rather than slowing
// the ring down.
type WatchEndpoint struct {
	RingFacade RingFacade
	Upgrader   websocket.Upgrader
}

func (watchEndpoint *WatchEndpoint) Attach(router *mux.Router) {
	router.HandleFunc("/ring/watch", func(w http.ResponseWriter, r *http.Request) {
		conn, err := watchEndpoint.Upgrader.Upgrade(w, r, nil)

		if err != nil {
			Log.Warningf("GET /ring/watch: Unable to upgrade connection: %v", err)

			return
		}

		defer conn.Close()

		// Clear any read deadline inherited from the HTTP server
		conn.SetReadDeadline(time.Time{})

		deltas, cancel := watchEndpoint.RingFacade.Subscribe(watchBufferSize)
		defer cancel()

		closed := make(chan int)

		// The client never sends anything. Reading detects when it goes away.
		go func() {
			defer close(closed)

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		Log.Infof("Watcher %s connected", r.RemoteAddr)

		for {
			select {
			case <-closed:
				Log.Infof("Watcher %s disconnected", r.RemoteAddr)

				return
			case delta, ok := <-deltas:
				if !ok {
					return
				}

				conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))

				if err := conn.WriteJSON(delta); err != nil {
					Log.Infof("Watcher %s disconnected: %v", r.RemoteAddr, err)

					return
				}
			}
		}
	}).Methods("GET")
}
