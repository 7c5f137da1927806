package storage

const (
	PUT      = iota
	DEL      = iota
	FORWARD  = iota
	BACKWARD = iota
)

type StorageIterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// StorageDriver is an ordered key value store. Keys compare bytewise.
type StorageDriver interface {
	Open() error
	Close() error
	// Get returns one value per key. Missing keys yield nil values.
	Get(keys [][]byte) ([][]byte, error)
	// GetRange iterates over keys in [min, max). A nil bound is unbounded.
	GetRange(min, max []byte, direction int) (StorageIterator, error)
	Batch(batch *Batch) error
}

type Op struct {
	OpType  int    `json:"type"`
	OpKey   []byte `json:"key"`
	OpValue []byte `json:"value"`
}

func (o *Op) IsDelete() bool {
	return o.OpType == DEL
}

func (o *Op) IsPut() bool {
	return o.OpType == PUT
}

func (o *Op) Key() []byte {
	return o.OpKey
}

func (o *Op) Value() []byte {
	return o.OpValue
}

// Batch is applied atomically. A later operation on a key replaces an earlier
// one.
type Batch struct {
	BatchOps map[string]Op `json:"ops"`
}

func NewBatch() *Batch {
	return &Batch{make(map[string]Op)}
}

func (batch *Batch) Size() int {
	return len(batch.BatchOps)
}

func (batch *Batch) Put(key []byte, value []byte) *Batch {
	batch.BatchOps[string(key)] = Op{PUT, key, value}

	return batch
}

func (batch *Batch) Delete(key []byte) *Batch {
	batch.BatchOps[string(key)] = Op{DEL, key, nil}

	return batch
}

func (batch *Batch) Ops() map[string]Op {
	return batch.BatchOps
}
