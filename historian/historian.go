package historian

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"sync"

	"github.com/google/uuid"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/node"
	. "github.com/PelionIoT/tokenring/storage"
)

var (
	BY_SERIAL_NUMBER_PREFIX     = []byte{3}
	SEQUENTIAL_COUNTER_PREFIX   = []byte{4}
	CURRENT_SIZE_COUNTER_PREFIX = []byte{5}
)

func serialBytes(serial uint64) []byte {
	bytes := make([]byte, 8)

	binary.BigEndian.PutUint64(bytes, serial)

	return bytes
}

type HistoryQuery struct {
	// After excludes every event whose serial is less than or equal to it
	After uint64
	// Limit caps the number of events returned. 0 means no limit.
	Limit int
}

type Event struct {
	Serial    uint64        `json:"serial"`
	UUID      string        `json:"uuid"`
	Timestamp int64         `json:"timestamp"`
	Type      RingDeltaType `json:"type"`
	NodeID    uint64        `json:"node"`
	Peer      uint64        `json:"peer,omitempty"`
	Requester uint64        `json:"requester,omitempty"`
	Sequence  uint64        `json:"sequence,omitempty"`
	State     State         `json:"state"`
}

func NewEvent(delta RingDelta) *Event {
	return &Event{
		Timestamp: delta.Timestamp.UnixNano(),
		Type:      delta.Type,
		NodeID:    delta.NodeID,
		Peer:      delta.Peer,
		Requester: delta.Requester,
		Sequence:  delta.Sequence,
		State:     delta.State,
	}
}

func (event *Event) indexBySerial() []byte {
	sEncoding := serialBytes(event.Serial)
	result := make([]byte, 0, len(BY_SERIAL_NUMBER_PREFIX)+len(sEncoding))

	result = append(result, BY_SERIAL_NUMBER_PREFIX...)
	result = append(result, sEncoding...)

	return result
}

// Historian keeps an audit trail of committed ring deltas. It is never used
// to restore protocol state.
type Historian struct {
	storageDriver StorageDriver
	nextID        uint64
	currentSize   uint64
	logLock       sync.Mutex
	eventLimit    uint64
}

func NewHistorian(storageDriver StorageDriver, eventLimit uint64) *Historian {
	var nextID uint64
	var currentSize uint64

	values, err := storageDriver.Get([][]byte{SEQUENTIAL_COUNTER_PREFIX, CURRENT_SIZE_COUNTER_PREFIX})

	if err == nil && len(values[0]) == 8 {
		nextID = binary.BigEndian.Uint64(values[0])
	}

	if err == nil && len(values[1]) == 8 {
		currentSize = binary.BigEndian.Uint64(values[1])
	}

	return &Historian{
		storageDriver: storageDriver,
		nextID:        nextID + 1,
		currentSize:   currentSize,
		eventLimit:    eventLimit,
	}
}

func (historian *Historian) LogSize() uint64 {
	historian.logLock.Lock()
	defer historian.logLock.Unlock()

	return historian.currentSize
}

func (historian *Historian) LogSerial() uint64 {
	historian.logLock.Lock()
	defer historian.logLock.Unlock()

	return historian.nextID
}

func (historian *Historian) LogEvent(event *Event) error {
	// events are logged one at a time so serials are written in increasing
	// order
	historian.logLock.Lock()
	defer historian.logLock.Unlock()

	event.UUID = uuid.New().String()
	event.Serial = historian.nextID

	marshaledEvent, err := json.Marshal(event)

	if err != nil {
		Log.Errorf("Could not marshal event to JSON: %v", err.Error())

		return EStorage
	}

	batch := NewBatch()
	batch.Put(event.indexBySerial(), marshaledEvent)
	batch.Put(SEQUENTIAL_COUNTER_PREFIX, serialBytes(event.Serial))
	batch.Put(CURRENT_SIZE_COUNTER_PREFIX, serialBytes(historian.currentSize+1))

	if err := historian.storageDriver.Batch(batch); err != nil {
		Log.Errorf("Storage driver error in LogEvent(%v): %s", event, err.Error())

		return EStorage
	}

	historian.nextID += 1
	historian.currentSize += 1

	return nil
}

// Record consumes deltas until the channel is closed
func (historian *Historian) Record(deltas <-chan RingDelta) {
	for delta := range deltas {
		if err := historian.LogEvent(NewEvent(delta)); err != nil {
			Log.Warningf("Unable to record %v delta: %v", delta.Type, err.Error())
		}
	}
}

// Query returns matching events in serial order
func (historian *Historian) Query(query HistoryQuery) ([]*Event, error) {
	// no serial follows the largest one
	if query.After == math.MaxUint64 {
		return []*Event{}, nil
	}

	iterator, err := historian.storageDriver.GetRange(
		(&Event{Serial: query.After + 1}).indexBySerial(),
		[]byte{BY_SERIAL_NUMBER_PREFIX[0] + 1},
		FORWARD,
	)

	if err != nil {
		Log.Errorf("Storage driver error in Query(%v): %s", query, err.Error())

		return nil, EStorage
	}

	eventIterator := NewEventIterator(iterator, query.Limit)
	defer eventIterator.Release()

	events := make([]*Event, 0)

	for eventIterator.Next() {
		events = append(events, eventIterator.Event())
	}

	if eventIterator.Error() != nil {
		return nil, eventIterator.Error()
	}

	return events, nil
}

// Purge deletes the oldest events until at most eventLimit remain. An event
// limit of 0 keeps everything.
func (historian *Historian) Purge() error {
	historian.logLock.Lock()
	defer historian.logLock.Unlock()

	if historian.eventLimit == 0 || historian.currentSize <= historian.eventLimit {
		return nil
	}

	excess := int(historian.currentSize - historian.eventLimit)
	iterator, err := historian.storageDriver.GetRange(
		(&Event{Serial: 0}).indexBySerial(),
		[]byte{BY_SERIAL_NUMBER_PREFIX[0] + 1},
		FORWARD,
	)

	if err != nil {
		Log.Errorf("Storage driver error in Purge(): %s", err.Error())

		return EStorage
	}

	eventIterator := NewEventIterator(iterator, excess)
	defer eventIterator.Release()

	batch := NewBatch()
	purged := uint64(0)

	for eventIterator.Next() {
		batch.Delete(eventIterator.Event().indexBySerial())
		purged++
	}

	if eventIterator.Error() != nil {
		return eventIterator.Error()
	}

	batch.Put(CURRENT_SIZE_COUNTER_PREFIX, serialBytes(historian.currentSize-purged))

	if err := historian.storageDriver.Batch(batch); err != nil {
		Log.Errorf("Storage driver error in Purge(): %s", err.Error())

		return EStorage
	}

	historian.currentSize -= purged

	Log.Debugf("Purged %d events from the history", purged)

	return nil
}

type EventIterator struct {
	dbIterator   StorageIterator
	parseError   error
	currentEvent *Event
	limit        uint64
	eventsSeen   uint64
}

func NewEventIterator(iterator StorageIterator, limit int) *EventIterator {
	if limit <= 0 {
		limit = 0
	}

	return &EventIterator{
		dbIterator: iterator,
		limit:      uint64(limit),
	}
}

func (ei *EventIterator) Next() bool {
	ei.currentEvent = nil

	if ei.limit != 0 && ei.eventsSeen == ei.limit {
		ei.Release()

		return false
	}

	if !ei.dbIterator.Next() {
		if ei.dbIterator.Error() != nil {
			Log.Errorf("Storage driver error in Next(): %s", ei.dbIterator.Error())
		}

		return false
	}

	var event Event

	ei.parseError = json.Unmarshal(ei.dbIterator.Value(), &event)

	if ei.parseError != nil {
		Log.Errorf("Storage driver error in Next() key = %v, value = %v: %s", ei.dbIterator.Key(), ei.dbIterator.Value(), ei.parseError.Error())

		ei.Release()

		return false
	}

	ei.currentEvent = &event
	ei.eventsSeen += 1

	return true
}

func (ei *EventIterator) Event() *Event {
	return ei.currentEvent
}

func (ei *EventIterator) Release() {
	ei.dbIterator.Release()
}

func (ei *EventIterator) Error() error {
	if ei.parseError != nil {
		return EStorage
	}

	if ei.dbIterator.Error() != nil {
		return EStorage
	}

	return nil
}
