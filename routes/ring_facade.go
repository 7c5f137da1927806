package routes

import (
	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/historian"
)

type RingFacade interface {
	Join() (uint64, error)
	Leave() (uint64, error)
	Remove(nodeID uint64) error
	Snapshot() RingSnapshot
	Subscribe(buffer int) (<-chan RingDelta, func())
}

type HistoryFacade interface {
	Query(query HistoryQuery) ([]*Event, error)
}
