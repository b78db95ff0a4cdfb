package types

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fxamacker/cbor/v2"

	"github.com/opcat-tools/catwatch/internal/logging"
)

// MatchSet collects the OP_CAT spending transactions of one block keyed
// by txid. Keying by txid makes repeated inserts of the same
// transaction idempotent, which is what keeps re-scans after a restart
// harmless.
type MatchSet map[chainhash.Hash]*btcutil.Tx

func NewMatchSet() MatchSet {
	return make(MatchSet)
}

// Add reports whether the transaction was not present before.
func (s MatchSet) Add(tx *btcutil.Tx) bool {
	txid := *tx.Hash()
	if _, ok := s[txid]; ok {
		return false
	}
	s[txid] = tx
	return true
}

// Merge folds other into s and reports how many transactions were new.
func (s MatchSet) Merge(other MatchSet) int {
	var added int
	for _, tx := range other {
		if s.Add(tx) {
			added++
		}
	}
	return added
}

func (s MatchSet) Len() int { return len(s) }

// Sorted returns the transactions ordered by ascending txid bytes so
// serialisation and reports come out deterministic.
func (s MatchSet) Sorted() []*btcutil.Tx {
	txs := make([]*btcutil.Tx, 0, len(s))
	for _, tx := range s {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		return bytes.Compare(txs[i].Hash()[:], txs[j].Hash()[:]) < 0
	})
	return txs
}

// HeightMatches is the per height entry of the match index. The key is
// the decimal block height, the value the consensus serialised
// transactions. Txids are re-derived on load instead of being stored.
type HeightMatches struct {
	Height uint64
	Set    MatchSet
}

func PairFactoryHeightMatches() Pair {
	var pair Pair = &HeightMatches{Set: NewMatchSet()}
	return pair
}

func (v *HeightMatches) SerialiseKey() ([]byte, error) {
	return GetKeyHeight(v.Height), nil
}

func (v *HeightMatches) SerialiseData() ([]byte, error) {
	raws := make([][]byte, 0, v.Set.Len())
	for _, tx := range v.Set.Sorted() {
		var buf bytes.Buffer
		err := tx.MsgTx().Serialize(&buf)
		if err != nil {
			logging.L.Err(err).Msg("error serialising match tx")
			return nil, err
		}
		raws = append(raws, buf.Bytes())
	}
	data, err := cbor.Marshal(raws)
	if err != nil {
		logging.L.Err(err).Msg("error serialising matches")
		return nil, err
	}
	return data, nil
}

func (v *HeightMatches) DeSerialiseKey(key []byte) error {
	height, err := strconv.ParseUint(string(key), 10, 64)
	if err != nil {
		logging.L.Err(err).Hex("key", key).Msg("could not parse height key")
		return err
	}
	v.Height = height
	return nil
}

func (v *HeightMatches) DeSerialiseData(data []byte) error {
	var raws [][]byte
	err := cbor.Unmarshal(data, &raws)
	if err != nil {
		logging.L.Err(err).Uint64("height", v.Height).Msg("error deserialising matches")
		return MatchDecodeError{Height: v.Height, Err: err}
	}
	set := NewMatchSet()
	for _, raw := range raws {
		tx, err := btcutil.NewTxFromBytes(raw)
		if err != nil {
			logging.L.Err(err).Uint64("height", v.Height).Msg("corrupt match entry")
			return MatchDecodeError{Height: v.Height, Err: err}
		}
		set.Add(tx)
	}
	v.Set = set
	return nil
}

// GetKeyHeight renders the store key for a block height. Keys are
// textual so the on-disk index stays portable across store backends.
func GetKeyHeight(height uint64) []byte {
	return []byte(strconv.FormatUint(height, 10))
}
