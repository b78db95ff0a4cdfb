package storage

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/opcat-tools/catwatch/internal/types"
)

var backends = []string{BackendLevelDB, BackendPebble, BackendSQLite}

// matchTx builds a minimal segwit transaction with a distinct txid per
// seed.
func matchTx(seed byte) *btcutil.Tx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{seed}},
		Witness:          wire.TxWitness{{0x6e, 0x7e, 0x87}, {0xc0, seed}},
	})
	tx.AddTxOut(wire.NewTxOut(int64(seed)*1_000, []byte{0x51}))
	return btcutil.NewTx(tx)
}

func setOf(txs ...*btcutil.Tx) types.MatchSet {
	set := types.NewMatchSet()
	for _, tx := range txs {
		set.Add(tx)
	}
	return set
}

func TestCheckpointRoundTrip(t *testing.T) {
	for _, backend := range backends {
		store, err := Open(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		if _, err = store.Checkpoint(); !errors.Is(err, NoEntryErr{}) {
			t.Errorf("%s: fresh checkpoint err = %v, want no entry", backend, err)
		}

		if err = store.SetCheckpoint(193_536); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		height, err := store.Checkpoint()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if height != 193_536 {
			t.Errorf("%s: checkpoint = %d, want 193536", backend, height)
		}

		if err = store.SetCheckpoint(193_537); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		height, err = store.Checkpoint()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if height != 193_537 {
			t.Errorf("%s: checkpoint after move = %d, want 193537", backend, height)
		}

		store.Close()
	}
}

func TestMatchesMergeAndDedup(t *testing.T) {
	tx1, tx2, tx3 := matchTx(1), matchTx(2), matchTx(3)

	for _, backend := range backends {
		store, err := Open(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		set, err := store.Matches(831_000)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if set.Len() != 0 {
			t.Errorf("%s: fresh height holds %d matches", backend, set.Len())
		}

		if err = store.AddMatches(831_000, setOf(tx1, tx2)); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		// storing the same transactions again must not grow the entry
		if err = store.AddMatches(831_000, setOf(tx1, tx2)); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err = store.AddMatches(831_000, setOf(tx3)); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		set, err = store.Matches(831_000)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if set.Len() != 3 {
			t.Errorf("%s: matches = %d, want 3", backend, set.Len())
		}
		for _, tx := range []*btcutil.Tx{tx1, tx2, tx3} {
			if _, ok := set[*tx.Hash()]; !ok {
				t.Errorf("%s: txid %s missing", backend, tx.Hash())
			}
		}

		// empty sets do not create entries
		if err = store.AddMatches(831_001, types.NewMatchSet()); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		heights, err := store.Heights()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if len(heights) != 1 || heights[0] != 831_000 {
			t.Errorf("%s: heights = %v, want [831000]", backend, heights)
		}

		store.Close()
	}
}

func TestHeightsSortedWithoutCheckpoint(t *testing.T) {
	for _, backend := range backends {
		store, err := Open(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		for i, height := range []uint64{900, 5, 77} {
			if err = store.AddMatches(height, setOf(matchTx(byte(i+1)))); err != nil {
				t.Fatalf("%s: %v", backend, err)
			}
		}
		if err = store.SetCheckpoint(901); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		heights, err := store.Heights()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		want := []uint64{5, 77, 900}
		if len(heights) != len(want) {
			t.Fatalf("%s: heights = %v, want %v", backend, heights, want)
		}
		for i := range want {
			if heights[i] != want[i] {
				t.Errorf("%s: heights = %v, want %v", backend, heights, want)
				break
			}
		}

		store.Close()
	}
}

func TestMatchesCorruptEntry(t *testing.T) {
	for _, backend := range backends {
		store, err := Open(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		if err = store.AddMatches(700, setOf(matchTx(1))); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		// clobber a neighbouring entry behind the store's back
		if err = store.engine.put(types.GetKeyHeight(701), []byte{0xff, 0x00}); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}

		_, err = store.Matches(701)
		var decodeErr types.MatchDecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("%s: err = %v, want MatchDecodeError", backend, err)
		} else if decodeErr.Height != 701 {
			t.Errorf("%s: decode error names height %d, want 701", backend, decodeErr.Height)
		}

		// the broken entry leaves other heights readable
		set, err := store.Matches(700)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if set.Len() != 1 {
			t.Errorf("%s: intact height reads %d matches, want 1", backend, set.Len())
		}

		store.Close()
	}
}

func TestReopenKeepsData(t *testing.T) {
	tx := matchTx(9)

	for _, backend := range backends {
		dir := t.TempDir()

		store, err := Open(backend, dir)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err = store.AddMatches(451, setOf(tx)); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err = store.SetCheckpoint(452); err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err = store.Close(); err != nil {
			t.Fatalf("%s: close: %v", backend, err)
		}

		store, err = Open(backend, dir)
		if err != nil {
			t.Fatalf("%s: reopen: %v", backend, err)
		}
		height, err := store.Checkpoint()
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if height != 452 {
			t.Errorf("%s: checkpoint after reopen = %d, want 452", backend, height)
		}
		set, err := store.Matches(451)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if set.Len() != 1 {
			t.Fatalf("%s: matches after reopen = %d, want 1", backend, set.Len())
		}
		if _, ok := set[*tx.Hash()]; !ok {
			t.Errorf("%s: txid %s lost on reopen", backend, tx.Hash())
		}

		store.Close()
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("bolt", t.TempDir()); err == nil {
		t.Error("unknown backend accepted")
	}
}
