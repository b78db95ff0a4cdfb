// Package report answers queries over the persisted match index and
// renders them as JSON reports and PNG plots.
package report

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/opcat-tools/catwatch/internal/indexer"
	"github.com/opcat-tools/catwatch/internal/storage"
)

// Point is one height of the zero filled time series.
type Point struct {
	Height uint64 `json:"blockheight"`
	Count  uint64 `json:"count"`
}

// Entry is one matched transaction in a report. Transactions with
// several matching inputs carry their scripts newline joined.
type Entry struct {
	Height    uint64 `json:"blockheight"`
	Txid      string `json:"txid"`
	ScriptAsm string `json:"script_asm"`
	ScriptHex string `json:"script_hex"`
	RawTx     string `json:"raw_tx"`
}

// TotalCatTxs counts the matched transactions with heights in
// [start, end). An end of 0 means no upper bound, so (0, 0) covers the
// whole index. Txids are deduped per height when they are persisted,
// summing the set sizes is exact.
func TotalCatTxs(store storage.Store, start, end uint64) (uint64, error) {
	heights, err := store.Heights()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, height := range heights {
		if height < start || (end > 0 && height >= end) {
			continue
		}
		set, err := store.Matches(height)
		if err != nil {
			return 0, err
		}
		total += uint64(set.Len())
	}
	return total, nil
}

// Matches returns the report entries recorded at a single height,
// ordered by txid.
func Matches(store storage.Store, height uint64) ([]Entry, error) {
	set, err := store.Matches(height)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, set.Len())
	for _, tx := range set.Sorted() {
		entries = append(entries, newEntry(height, tx))
	}
	return entries, nil
}

// Series builds the zero filled per height series over [start, end).
// Heights without recorded matches contribute a zero point instead of
// being skipped.
func Series(store storage.Store, start, end uint64) ([]Point, error) {
	if end < start {
		return nil, fmt.Errorf("invalid series range [%d, %d)", start, end)
	}
	points := make([]Point, 0, end-start)
	for height := start; height < end; height++ {
		set, err := store.Matches(height)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Height: height, Count: uint64(set.Len())})
	}
	return points, nil
}

// IndexedRange returns the span the index currently covers, from the
// lowest height with a recorded match up to the checkpoint. ok is
// false while the index holds no matches, the lower bound is unknown
// then.
func IndexedRange(store storage.Store) (start, end uint64, ok bool, err error) {
	checkpoint, err := store.Checkpoint()
	if err != nil && errors.Is(err, storage.NoEntryErr{}) {
		return 0, 0, false, nil
	} else if err != nil {
		return 0, 0, false, err
	}
	heights, err := store.Heights()
	if err != nil {
		return 0, 0, false, err
	}
	if len(heights) == 0 {
		return 0, 0, false, nil
	}
	return heights[0], checkpoint, true, nil
}

// Build collects the matches of the window blocks in front of the
// checkpoint, oldest first. A window of 0 covers the whole index.
func Build(store storage.Store, window uint64) ([]Entry, error) {
	checkpoint, err := store.Checkpoint()
	if err != nil && errors.Is(err, storage.NoEntryErr{}) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var start uint64
	if window > 0 && window < checkpoint {
		start = checkpoint - window
	}

	heights, err := store.Heights()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, height := range heights {
		if height < start || height >= checkpoint {
			continue
		}
		set, err := store.Matches(height)
		if err != nil {
			return nil, err
		}
		for _, tx := range set.Sorted() {
			entries = append(entries, newEntry(height, tx))
		}
	}
	return entries, nil
}

func newEntry(height uint64, tx *btcutil.Tx) Entry {
	scripts := indexer.CatTapscripts(tx.MsgTx())
	asmParts := make([]string, 0, len(scripts))
	hexParts := make([]string, 0, len(scripts))
	for _, script := range scripts {
		// partial disassembly of a malformed script is still useful in
		// a report, so the error is dropped
		asm, _ := txscript.DisasmString(script)
		asmParts = append(asmParts, asm)
		hexParts = append(hexParts, hex.EncodeToString(script))
	}

	var buf bytes.Buffer
	_ = tx.MsgTx().Serialize(&buf)

	return Entry{
		Height:    height,
		Txid:      tx.Hash().String(),
		ScriptAsm: strings.Join(asmParts, "\n"),
		ScriptHex: strings.Join(hexParts, "\n"),
		RawTx:     hex.EncodeToString(buf.Bytes()),
	}
}

// WriteJSON writes entries as an indented JSON array. An empty report
// still produces a valid file.
func WriteJSON(entries []Entry, path string) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
