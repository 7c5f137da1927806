package main

import (
	"context"
	"fmt"
	"os"

	. "github.com/PelionIoT/tokenring/client"
)

func init() {
	registerCommand("join", joinNode, joinUsage)
	registerCommand("leave", leaveNode, leaveUsage)
	registerCommand("remove", removeNode, removeUsage)
}

var joinUsage string = `Usage: tokenring join -host=[server host] -port=[server port]
`

var leaveUsage string = `Usage: tokenring leave -host=[server host] -port=[server port]
`

var removeUsage string = `Usage: tokenring remove -node=[node id] -host=[server host] -port=[server port]
`

func apiClient() *APIClient {
	return NewAPIClient(APIClientConfig{Servers: []string{serverAddress()}})
}

func joinNode() {
	nodeID, err := apiClient().Join(context.Background())

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to add a node: %v\n", err)

		os.Exit(1)
	}

	fmt.Printf("Node %d joined the ring\n", nodeID)
}

func leaveNode() {
	nodeID, err := apiClient().Leave(context.Background())

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to remove a node: %v\n", err)

		os.Exit(1)
	}

	fmt.Printf("Node %d left the ring\n", nodeID)
}

func removeNode() {
	if *optNodeID == 0 {
		fmt.Fprintf(os.Stderr, "No node (-node) specified\n")

		os.Exit(1)
	}

	if err := apiClient().Remove(context.Background(), *optNodeID); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to remove node %d: %v\n", *optNodeID, err)

		os.Exit(1)
	}

	fmt.Printf("Node %d left the ring\n", *optNodeID)
}
