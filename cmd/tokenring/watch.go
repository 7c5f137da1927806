package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	. "github.com/PelionIoT/tokenring/client"
	. "github.com/PelionIoT/tokenring/cluster"
)

func init() {
	registerCommand("watch", watchRing, watchUsage)
}

var watchUsage string = `Usage: tokenring watch -host=[server host] -port=[server port]
`

func watchRing() {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		cancel()
	}()

	encoder := json.NewEncoder(os.Stdout)

	err := Watch(ctx, serverAddress(), func(delta RingDelta) {
		encoder.Encode(delta)
	})

	if err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Stopped watching the ring: %v\n", err)

		os.Exit(1)
	}
}
