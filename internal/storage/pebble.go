package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/opcat-tools/catwatch/internal/logging"
)

type pebbleEngine struct {
	db *pebble.DB
}

func openPebble(path string) (*pebbleEngine, error) {
	opts := (&pebble.Options{}).EnsureDefaults()
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &pebbleEngine{db: db}, nil
}

func (e *pebbleEngine) get(key []byte) ([]byte, error) {
	val, closer, err := e.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, NoEntryErr{}
		}
		logging.L.Err(err).Hex("key", key).Msg("error getting entry")
		return nil, err
	}
	defer closer.Close()

	// val is only valid until the closer releases it
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (e *pebbleEngine) put(key, value []byte) error {
	err := e.db.Set(key, value, pebble.Sync)
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("error inserting entry")
		return err
	}
	return nil
}

func (e *pebbleEngine) keys() ([][]byte, error) {
	it, err := e.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys [][]byte
	for ok := it.First(); ok; ok = it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	return keys, it.Error()
}

func (e *pebbleEngine) close() error {
	return e.db.Close()
}
