package server

import (
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/routes"
)

type RingServerConfig struct {
	Host       string
	Port       int
	Controller RingFacade
	History    HistoryFacade
	// Gatherer backs the /metrics endpoint. It is omitted if nil.
	Gatherer prometheus.Gatherer
}

// RingServer exposes a read-mostly view of the ring over HTTP along with the
// join and leave entry points
type RingServer struct {
	httpServer *http.Server
	listener   net.Listener
	host       string
	port       int
	upgrader   websocket.Upgrader
	controller RingFacade
	history    HistoryFacade
	gatherer   prometheus.Gatherer
	lock       sync.Mutex
}

func NewRingServer(serverConfig RingServerConfig) *RingServer {
	return &RingServer{
		host:       serverConfig.Host,
		port:       serverConfig.Port,
		controller: serverConfig.Controller,
		history:    serverConfig.History,
		gatherer:   serverConfig.Gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Port is the port the server listens on. If it was configured with port 0
// this is the port chosen once Start is listening.
func (server *RingServer) Port() int {
	server.lock.Lock()
	defer server.lock.Unlock()

	if server.listener != nil {
		return server.listener.Addr().(*net.TCPAddr).Port
	}

	return server.port
}

func (server *RingServer) Router() *mux.Router {
	router := mux.NewRouter()

	ringEndpoint := &RingEndpoint{RingFacade: server.controller}
	ringEndpoint.Attach(router)

	watchEndpoint := &WatchEndpoint{RingFacade: server.controller, Upgrader: server.upgrader}
	watchEndpoint.Attach(router)

	if server.history != nil {
		historyEndpoint := &HistoryEndpoint{History: server.history}
		historyEndpoint.Attach(router)
	}

	if server.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)

	return router
}

// Start serves until Stop is called
func (server *RingServer) Start() error {
	server.lock.Lock()

	server.httpServer = &http.Server{
		Handler:      server.Router(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	listener, err := net.Listen("tcp", server.host+":"+strconv.Itoa(server.port))

	if err != nil {
		server.lock.Unlock()

		Log.Errorf("Error listening on port: %d", server.port)

		return err
	}

	server.listener = listener
	httpServer := server.httpServer
	server.lock.Unlock()

	Log.Infof("Ring server listening on %s", listener.Addr().String())

	err = httpServer.Serve(listener)

	Log.Errorf("Ring server shutting down. Reason: %v", err)

	return err
}

func (server *RingServer) Stop() error {
	server.lock.Lock()
	defer server.lock.Unlock()

	if server.listener != nil {
		server.listener.Close()
	}

	return nil
}
