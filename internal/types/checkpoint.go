package types

import (
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/opcat-tools/catwatch/internal/logging"
)

// CheckpointKey is the fixed store key the scan progress lives under.
// Height keys are decimal digits, so the two can never collide.
const CheckpointKey = "CHECKPOINT"

// Checkpoint holds the next height the indexer will scan. Every height
// below it has its matches fully persisted.
type Checkpoint struct {
	Height uint64
}

func PairFactoryCheckpoint() Pair {
	var pair Pair = &Checkpoint{}
	return pair
}

func (v *Checkpoint) SerialiseKey() ([]byte, error) {
	return []byte(CheckpointKey), nil
}

func (v *Checkpoint) SerialiseData() ([]byte, error) {
	data, err := cbor.Marshal(v.Height)
	if err != nil {
		logging.L.Err(err).Msg("error serialising checkpoint")
		return nil, err
	}
	return data, nil
}

func (v *Checkpoint) DeSerialiseKey(key []byte) error {
	if string(key) != CheckpointKey {
		err := errors.New("key does not match checkpoint key. should not happen")
		logging.L.Err(err).Hex("key", key).Msg("wrong checkpoint key")
		return err
	}
	return nil
}

func (v *Checkpoint) DeSerialiseData(data []byte) error {
	err := cbor.Unmarshal(data, &v.Height)
	if err != nil {
		logging.L.Err(err).Msg("error deserialising checkpoint")
		return err
	}
	return nil
}
