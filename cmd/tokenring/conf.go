package main

import (
	"fmt"
)

var templateConfig string = `# The host and port fields specify where the ring server listens for
# observers and for requests to add or remove nodes
host: localhost
port: 8080

# The maximum number of nodes the ring can hold. A join request beyond this
# size is rejected
maxNodes: 10

# The number of nodes that join the ring as soon as it starts. Must not be
# greater than maxNodes
initialNodes: 3

# Between decisions every node thinks for a random interval in this range.
# Durations are in milliseconds
thinkTime:
    min: 1000
    max: 2500

# The chance that an idle node decides it wants the critical section after
# each think interval
requestProbability: 0.1

# How long a node stays in the critical section once it enters
criticalSectionDuration: 2000

# How long the token and each request hop spend in transit. A larger transfer
# delay makes hand-offs easier to follow when watching the ring
transferDelay: 1000

# The log level configures how detailed the output produced by the ring is.
# Acceptable values are critical, error, warning, notice, info, or debug
logLevel: info

# Every change to the ring is recorded to an event history that can be paged
# through with the history command
history:
    # The db field specifies the directory where history is stored on disk.
    # If it is left out the history is kept in memory only
    db: /tmp/tokenring
    # The number of events kept. Older events are purged. 0 keeps every event
    eventLimit: 10000
    # How often old events are purged, in milliseconds
    purgeInterval: 60000
`

func init() {
	registerCommand("conf", generateConfig, confUsage)
}

var confUsage string = `Usage: tokenring conf > path/to/output.yaml
`

func generateConfig() {
	fmt.Print(templateConfig)
}
