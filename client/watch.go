package client

import (
	"context"

	"github.com/gorilla/websocket"

	. "github.com/PelionIoT/tokenring/cluster"
)

// Watch streams ring deltas from server to onDelta until ctx is cancelled or
// the connection fails
func Watch(ctx context.Context, server string, onDelta func(delta RingDelta)) error {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server+"/ring/watch", nil)

	if err != nil {
		return err
	}

	done := make(chan int)
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}

		conn.Close()
	}()

	for {
		var delta RingDelta

		if err := conn.ReadJSON(&delta); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return err
		}

		onDelta(delta)
	}
}
