package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	levelErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	levelStorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/logging"
)

var errClosed = errors.New("Driver is closed")

type LevelDBIterator struct {
	snapshot  *leveldb.Snapshot
	it        iterator.Iterator
	started   bool
	err       error
	direction int
}

func (it *LevelDBIterator) Next() bool {
	if it.it == nil {
		return false
	}

	var ok bool

	if !it.started {
		it.started = true

		if it.direction == BACKWARD {
			ok = it.it.Last()
		} else {
			ok = it.it.First()
		}
	} else if it.direction == BACKWARD {
		ok = it.it.Prev()
	} else {
		ok = it.it.Next()
	}

	if ok {
		return true
	}

	if it.it.Error() != nil {
		prometheusRecordStorageError("iterator.next()", "")
		it.err = it.it.Error()
	}

	it.Release()

	return false
}

func (it *LevelDBIterator) Key() []byte {
	if it.it == nil || it.err != nil {
		return nil
	}

	return it.it.Key()
}

func (it *LevelDBIterator) Value() []byte {
	if it.it == nil || it.err != nil {
		return nil
	}

	return it.it.Value()
}

func (it *LevelDBIterator) Release() {
	if it.it == nil {
		return
	}

	it.it.Release()
	it.snapshot.Release()
	it.it = nil
}

func (it *LevelDBIterator) Error() error {
	return it.err
}

// LevelDBStorageDriver stores data in a goleveldb database. An empty file
// name keeps the database in memory, which is lost on Close.
type LevelDBStorageDriver struct {
	file    string
	options *opt.Options
	db      *leveldb.DB
}

func NewLevelDBStorageDriver(file string, options *opt.Options) *LevelDBStorageDriver {
	return &LevelDBStorageDriver{file, options, nil}
}

func (levelDriver *LevelDBStorageDriver) Open() error {
	levelDriver.Close()

	var db *leveldb.DB
	var err error

	if levelDriver.file == "" {
		db, err = leveldb.Open(levelStorage.NewMemStorage(), levelDriver.options)
	} else {
		db, err = leveldb.OpenFile(levelDriver.file, levelDriver.options)
	}

	if err != nil {
		prometheusRecordStorageError("open()", levelDriver.file)

		if levelErrors.IsCorrupted(err) {
			Log.Criticalf("LevelDB database is corrupted: %v", err.Error())

			return levelDriver.recover()
		}

		return err
	}

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) recover() error {
	if levelDriver.file == "" {
		return EStorage
	}

	db, err := leveldb.RecoverFile(levelDriver.file, levelDriver.options)

	if err != nil {
		prometheusRecordStorageError("recover()", levelDriver.file)

		Log.Criticalf("Unable to recover LevelDB database at %s: %v", levelDriver.file, err.Error())

		return EStorage
	}

	Log.Warningf("Recovered corrupted LevelDB database at %s", levelDriver.file)

	levelDriver.db = db

	return nil
}

func (levelDriver *LevelDBStorageDriver) Close() error {
	if levelDriver.db == nil {
		return nil
	}

	err := levelDriver.db.Close()

	levelDriver.db = nil

	return err
}

func (levelDriver *LevelDBStorageDriver) Get(keys [][]byte) ([][]byte, error) {
	if levelDriver.db == nil {
		return nil, errClosed
	}

	if keys == nil {
		return [][]byte{}, nil
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		prometheusRecordStorageError("get()", levelDriver.file)

		return nil, err
	}

	defer snapshot.Release()

	values := make([][]byte, len(keys))

	for i, key := range keys {
		if key == nil {
			continue
		}

		values[i], err = snapshot.Get(key, nil)

		if err == leveldb.ErrNotFound {
			values[i] = nil
		} else if err != nil {
			prometheusRecordStorageError("get()", levelDriver.file)

			return nil, err
		}
	}

	return values, nil
}

func (levelDriver *LevelDBStorageDriver) GetRange(min, max []byte, direction int) (StorageIterator, error) {
	if levelDriver.db == nil {
		return nil, errClosed
	}

	snapshot, err := levelDriver.db.GetSnapshot()

	if err != nil {
		prometheusRecordStorageError("getRange()", levelDriver.file)

		return nil, err
	}

	return &LevelDBIterator{
		snapshot:  snapshot,
		it:        snapshot.NewIterator(&util.Range{Start: min, Limit: max}, nil),
		direction: direction,
	}, nil
}

// GetPrefix iterates forward over every key starting with prefix
func (levelDriver *LevelDBStorageDriver) GetPrefix(prefix []byte) (StorageIterator, error) {
	keyRange := util.BytesPrefix(prefix)

	return levelDriver.GetRange(keyRange.Start, keyRange.Limit, FORWARD)
}

func (levelDriver *LevelDBStorageDriver) Batch(batch *Batch) error {
	if levelDriver.db == nil {
		return errClosed
	}

	if batch == nil {
		return nil
	}

	b := new(leveldb.Batch)

	for _, op := range batch.Ops() {
		if op.IsPut() {
			b.Put(op.Key(), op.Value())
		} else if op.IsDelete() {
			b.Delete(op.Key())
		}
	}

	err := levelDriver.db.Write(b, nil)

	if err != nil {
		prometheusRecordStorageError("batch()", levelDriver.file)
	}

	return err
}
