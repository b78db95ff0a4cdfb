package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/opcat-tools/catwatch/internal/logging"
)

// syncedWrites forces every put onto disk before it returns. The
// checkpoint must never be persisted ahead of the matches it covers.
var syncedWrites = &opt.WriteOptions{Sync: true}

type levelEngine struct {
	db *leveldb.DB
}

func openLevelDB(path string) (*levelEngine, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &levelEngine{db: db}, nil
}

func (e *levelEngine) get(key []byte) ([]byte, error) {
	data, err := e.db.Get(key, nil)
	if err != nil && errors.Is(err, leveldb.ErrNotFound) {
		return nil, NoEntryErr{}
	} else if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error getting entry")
		return nil, err
	}
	return data, nil
}

func (e *levelEngine) put(key, value []byte) error {
	err := e.db.Put(key, value, syncedWrites)
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error inserting entry")
		return err
	}
	return nil
}

func (e *levelEngine) keys() ([][]byte, error) {
	iter := e.db.NewIterator(nil, nil)
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		keys = append(keys, key)
	}
	err := iter.Error()
	if err != nil {
		logging.L.Err(err).Msg("error iterating keys")
		return nil, err
	}
	return keys, nil
}

func (e *levelEngine) close() error {
	return e.db.Close()
}
