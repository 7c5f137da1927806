package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	. "github.com/PelionIoT/tokenring/client"
)

func init() {
	registerCommand("status", showStatus, statusUsage)
}

var statusUsage string = `Usage: tokenring status -host=[server host] -port=[server port]
`

func showStatus() {
	snapshot, err := NewAPIClient(APIClientConfig{Servers: []string{serverAddress()}}).Snapshot(context.Background())

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get the ring status: %v\n", err)

		os.Exit(1)
	}

	if len(snapshot.Nodes) == 0 {
		fmt.Printf("The ring is empty (capacity %d)\n", snapshot.MaxNodes)

		return
	}

	fmt.Printf("Nodes: %d/%d  Token: %s  Holder: %d  Transfers: %d  Pending: %s\n\n",
		len(snapshot.Nodes),
		snapshot.MaxNodes,
		snapshot.TokenID,
		snapshot.Holder,
		snapshot.Sequence,
		idList(snapshot.Pending),
	)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Node", "Index", "State", "Token", "Wants CS", "Successor", "Queue"})

	for _, node := range snapshot.Nodes {
		holdsToken := ""

		if node.HoldsToken {
			holdsToken = "*"
		}

		table.Append([]string{
			strconv.FormatUint(node.ID, 10),
			strconv.Itoa(node.Index),
			node.State.String(),
			holdsToken,
			strconv.FormatBool(node.WantsCS),
			strconv.FormatUint(node.Successor, 10),
			idList(node.Queue),
		})
	}

	table.Render()
}

func idList(ids []uint64) string {
	s := make([]string, len(ids))

	for i, id := range ids {
		s[i] = strconv.FormatUint(id, 10)
	}

	return "[" + strings.Join(s, " ") + "]"
}
