package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	. "github.com/PelionIoT/tokenring/client"
	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/historian"
)

func init() {
	registerCommand("history", showHistory, historyUsage)
}

var historyUsage string = `Usage: tokenring history -host=[server host] -port=[server port] -after=[serial] -limit=[count]
`

func showHistory() {
	events, err := NewAPIClient(APIClientConfig{Servers: []string{serverAddress()}}).History(context.Background(), HistoryQuery{
		After: *optAfter,
		Limit: *optLimit,
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get the ring history: %v\n", err)

		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Serial", "Time", "Event", "Node", "Peer", "Requester", "Sequence", "State"})

	for _, event := range events {
		table.Append([]string{
			strconv.FormatUint(event.Serial, 10),
			time.Unix(0, event.Timestamp).Format(time.RFC3339Nano),
			event.Type.String(),
			optionalID(event.NodeID),
			optionalID(event.Peer),
			optionalID(event.Requester),
			optionalID(event.Sequence),
			eventState(event),
		})
	}

	table.Render()
}

func optionalID(id uint64) string {
	if id == 0 {
		return ""
	}

	return strconv.FormatUint(id, 10)
}

// only state changes carry a meaningful state
func eventState(event *Event) string {
	if event.Type != DeltaStateChange {
		return ""
	}

	return event.State.String()
}
