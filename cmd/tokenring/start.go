package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/historian"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/server"
	. "github.com/PelionIoT/tokenring/shared"
	. "github.com/PelionIoT/tokenring/storage"
)

const historyBufferSize = 1024

func init() {
	registerCommand("start", startRing, startUsage)
}

var startUsage string = `Usage: tokenring start -conf=[config file]
`

func startRing() {
	var config YAMLRingConfig

	if err := config.LoadFromFile(*optConfigFile); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config file: %s\n", err.Error())

		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	if err := RegisterMetrics(registry); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to register storage metrics: %s\n", err.Error())

		os.Exit(1)
	}

	historyStorage := NewLevelDBStorageDriver(config.History.DBFile, nil)

	if err := historyStorage.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open history storage: %s\n", err.Error())

		os.Exit(1)
	}

	defer historyStorage.Close()

	controllerConfig := config.RingControllerConfig()
	controllerConfig.Registerer = registry
	ringController := NewRingController(controllerConfig)
	history := NewHistorian(historyStorage, config.History.EventLimit)
	deltas, unsubscribe := ringController.Subscribe(historyBufferSize)
	recorded := make(chan int)

	go func() {
		history.Record(deltas)
		close(recorded)
	}()

	purger := NewHistoryPurger(history, config.History.PurgeInterval)
	purger.Start()

	if err := joinInitialNodes(ringController, config.InitialNodes); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to add initial nodes: %s\n", err.Error())

		os.Exit(1)
	}

	if err := ringController.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to start the ring: %s\n", err.Error())

		os.Exit(1)
	}

	ringServer := NewRingServer(RingServerConfig{
		Host:       config.Host,
		Port:       config.Port,
		Controller: ringController,
		History:    history,
		Gatherer:   registry,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals

		Log.Infof("Received %v. Shutting down", sig)

		ringServer.Stop()
	}()

	ringServer.Start()

	ringController.Stop()
	unsubscribe()
	<-recorded
	purger.Stop()

	Log.Infof("Ring stopped. %d mutual exclusion violations were detected", ringController.MutualExclusionViolations())
}

// joinInitialNodes relies on Join to log each new node
func joinInitialNodes(ringController *RingController, count int) error {
	for i := 0; i < count; i++ {
		if _, err := ringController.Join(); err != nil {
			return err
		}
	}

	return nil
}
