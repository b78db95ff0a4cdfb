// Package storage persists the OP_CAT match index. One logical store,
// selectable key/value engines underneath: goleveldb, pebble or sqlite.
// Every write is synced before the call returns, the checkpoint
// ordering of the indexer depends on that.
//
// A store has exactly one writing process. AddMatches is
// read-modify-write with no cross process locking, so running
// start_index twice against the same datadir corrupts the merge.
package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/opcat-tools/catwatch/internal/logging"
	"github.com/opcat-tools/catwatch/internal/types"
)

// Backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
	BackendSQLite  = "sqlite"
)

// todo change to `var NoEntryErr = errors.new("[no entry found]")`
type NoEntryErr struct{}

func (e NoEntryErr) Error() string {
	return "[no entry found]"
}

// Store is the match index handle handed to the indexer, the report
// layer and the HTTP server.
type Store interface {
	// Checkpoint returns the next height to scan. NoEntryErr means the
	// store is fresh and the caller decides where to start.
	Checkpoint() (uint64, error)
	SetCheckpoint(height uint64) error

	// Matches returns the match set recorded for height. A height
	// without an entry yields an empty set, not an error.
	Matches(height uint64) (types.MatchSet, error)
	// AddMatches merges set into the entry for height and persists the
	// result. Merging keeps re-scans of an already persisted height
	// idempotent.
	AddMatches(height uint64, set types.MatchSet) error

	// Heights lists all heights with recorded matches in ascending order.
	Heights() ([]uint64, error)

	Close() error
}

// kvEngine is the narrow surface each backend provides. get returns
// NoEntryErr for missing keys, put is durable on return.
type kvEngine interface {
	get(key []byte) ([]byte, error)
	put(key, value []byte) error
	keys() ([][]byte, error)
	close() error
}

type DB struct {
	engine kvEngine
}

// Open creates or opens the match index at path with the named backend.
func Open(backend, path string) (*DB, error) {
	var (
		engine kvEngine
		err    error
	)
	switch backend {
	case BackendLevelDB:
		engine, err = openLevelDB(path)
	case BackendPebble:
		engine, err = openPebble(path)
	case BackendSQLite:
		engine, err = openSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		logging.L.Err(err).Str("backend", backend).Str("path", path).Msg("error opening store")
		return nil, err
	}
	return &DB{engine: engine}, nil
}

// extractKeyValue will panic because serialisation is critical to data integrity
func extractKeyValue(pair types.Pair) ([]byte, []byte) {
	key, err := pair.SerialiseKey()
	if err != nil {
		logging.L.Err(err).Msg("error serialising key")
		panic(err)
	}
	value, err := pair.SerialiseData()
	if err != nil {
		logging.L.Err(err).Msg("error serialising data")
		panic(err)
	}
	return key, value
}

func (d *DB) Checkpoint() (uint64, error) {
	var pair types.Checkpoint
	key, err := pair.SerialiseKey()
	if err != nil {
		return 0, err
	}
	data, err := d.engine.get(key)
	if err != nil {
		return 0, err
	}
	err = pair.DeSerialiseData(data)
	if err != nil {
		return 0, err
	}
	return pair.Height, nil
}

func (d *DB) SetCheckpoint(height uint64) error {
	pair := types.Checkpoint{Height: height}
	key, value := extractKeyValue(&pair)
	return d.engine.put(key, value)
}

func (d *DB) Matches(height uint64) (types.MatchSet, error) {
	pair := types.HeightMatches{Height: height}
	key, err := pair.SerialiseKey()
	if err != nil {
		return nil, err
	}
	data, err := d.engine.get(key)
	if err != nil && errors.Is(err, NoEntryErr{}) {
		return types.NewMatchSet(), nil
	} else if err != nil {
		return nil, err
	}
	err = pair.DeSerialiseData(data)
	if err != nil {
		return nil, err
	}
	return pair.Set, nil
}

func (d *DB) AddMatches(height uint64, set types.MatchSet) error {
	if set.Len() == 0 {
		return nil
	}
	existing, err := d.Matches(height)
	if err != nil {
		return err
	}
	existing.Merge(set)
	pair := types.HeightMatches{Height: height, Set: existing}
	key, value := extractKeyValue(&pair)
	return d.engine.put(key, value)
}

func (d *DB) Heights() ([]uint64, error) {
	keys, err := d.engine.keys()
	if err != nil {
		return nil, err
	}
	heights := make([]uint64, 0, len(keys))
	for _, key := range keys {
		if string(key) == types.CheckpointKey {
			continue
		}
		var pair types.HeightMatches
		err = pair.DeSerialiseKey(key)
		if err != nil {
			return nil, err
		}
		heights = append(heights, pair.Height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights, nil
}

func (d *DB) Close() error {
	return d.engine.close()
}
