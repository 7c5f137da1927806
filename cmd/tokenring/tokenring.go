package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
)

type command struct {
	run   func()
	usage string
}

var commands = map[string]command{}

func registerCommand(name string, run func(), usage string) {
	commands[name] = command{run: run, usage: usage}
}

var commandFlags = flag.NewFlagSet("tokenring", flag.ExitOnError)

var optConfigFile = commandFlags.String("conf", "", "The config file for this ring")
var optHost = commandFlags.String("host", "localhost", "The host name or IP of the ring server")
var optPort = commandFlags.Uint("port", 8080, "The port of the ring server")
var optNodeID = commandFlags.Uint64("node", 0, "The ID of a ring member")
var optAfter = commandFlags.Uint64("after", 0, "Only list history events with a serial number greater than this")
var optLimit = commandFlags.Int("limit", 0, "The maximum number of history events to list. 0 means no limit")

var usage string = `Usage: tokenring <command> <arguments> | -version

Commands:
`

func printUsage() {
	names := make([]string, 0, len(commands))

	for name, _ := range commands {
		names = append(names, name)
	}

	sort.Strings(names)

	fmt.Fprint(os.Stderr, usage)

	for _, name := range names {
		fmt.Fprintf(os.Stderr, "    %s", commands[name].usage)
	}
}

func serverAddress() string {
	return *optHost + ":" + strconv.FormatUint(uint64(*optPort), 10)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()

		os.Exit(1)
	}

	cmd, ok := commands[os.Args[1]]

	if !ok {
		fmt.Fprintf(os.Stderr, "Unrecognized command: %s\n\n", os.Args[1])
		printUsage()

		os.Exit(1)
	}

	commandFlags.Usage = func() {
		fmt.Fprint(os.Stderr, cmd.usage)
		commandFlags.PrintDefaults()
	}

	commandFlags.Parse(os.Args[2:])

	cmd.run()
}
