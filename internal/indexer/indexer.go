// Package indexer scans the chain block by block for transactions
// spending through tapscripts that contain OP_CAT and records them in
// the match index.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/opcat-tools/catwatch/internal/chain"
	"github.com/opcat-tools/catwatch/internal/logging"
	"github.com/opcat-tools/catwatch/internal/storage"
	"github.com/opcat-tools/catwatch/internal/types"
)

// BlockDepth is the safety margin kept to the chain tip. Blocks closer
// to the tip than this are still considered reorganisable and are not
// indexed yet.
const BlockDepth = 6

// State of a scan run.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Indexer drives the scan: fetch, match, persist, advance the
// checkpoint. One height at a time, no gaps.
type Indexer struct {
	chain       chain.Source
	store       storage.Store
	matcher     *Matcher
	startHeight uint64
	state       State
}

func New(source chain.Source, store storage.Store, matcher *Matcher, startHeight uint64) *Indexer {
	return &Indexer{
		chain:       source,
		store:       store,
		matcher:     matcher,
		startHeight: startHeight,
		state:       StateIdle,
	}
}

func (ix *Indexer) State() State { return ix.state }

// Run scans from the stored checkpoint, or from the configured start
// height on a fresh store, up to tip minus BlockDepth. Every height is
// fully persisted before the checkpoint moves past it, so an
// interrupted run resumes without gaps. Cancellation is only honoured
// between heights, never inside one.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.state = StateRunning

	tip, err := ix.chain.BlockCount()
	if err != nil {
		ix.state = StateFailed
		logging.L.Err(err).Msg("could not get block count")
		return err
	}
	if tip < BlockDepth {
		ix.state = StateCompleted
		logging.L.Info().Uint64("tip", tip).Msg("chain shorter than safety margin, nothing to scan")
		return nil
	}
	indexTill := tip - BlockDepth

	checkpoint, err := ix.store.Checkpoint()
	if err != nil && errors.Is(err, storage.NoEntryErr{}) {
		checkpoint = ix.startHeight
		logging.L.Info().Uint64("start_height", checkpoint).Msg("fresh store, starting at configured height")
	} else if err != nil {
		ix.state = StateFailed
		logging.L.Err(err).Msg("could not read checkpoint")
		return err
	}

	logging.L.Info().
		Uint64("checkpoint", checkpoint).
		Uint64("index_till", indexTill).
		Str("mode", ix.matcher.Mode().String()).
		Msg("starting scan")

	for height := checkpoint; height < indexTill; height++ {
		select {
		case <-ctx.Done():
			ix.state = StateFailed
			logging.L.Info().Uint64("height", height).Msg("scan interrupted")
			return ctx.Err()
		default:
		}

		err = ix.scanHeight(height)
		if err != nil {
			ix.state = StateFailed
			logging.L.Err(err).Uint64("height", height).Msg("scan failed")
			return err
		}
	}

	ix.state = StateCompleted
	logging.L.Info().Uint64("checkpoint", indexTill).Msg("scan completed")
	return nil
}

// scanHeight processes a single block. Matches are persisted before
// the checkpoint advances. A crash in between re-scans the height on
// the next run and the merge in AddMatches keeps that harmless.
func (ix *Indexer) scanHeight(height uint64) error {
	blockHash, err := ix.chain.BlockHash(height)
	if err != nil {
		logging.L.Err(err).Uint64("height", height).Msg("failed to pull blockhash")
		return err
	}
	logging.L.Trace().
		Uint64("height", height).
		Str("blockhash", blockHash.String()).
		Msg("pulling block")
	block, err := ix.chain.Block(blockHash)
	if err != nil {
		logging.L.Err(err).Uint64("height", height).Msg("failed to pull block")
		return err
	}

	matches := types.NewMatchSet()
	for _, tx := range block.Transactions() {
		ok, err := ix.matcher.MatchTx(tx.MsgTx())
		if err != nil {
			return err
		}
		if ok {
			matches.Add(tx)
			logging.L.Debug().
				Uint64("height", height).
				Str("txid", tx.Hash().String()).
				Msg("cat tx found")
		}
	}

	err = ix.store.AddMatches(height, matches)
	if err != nil {
		return err
	}
	err = ix.store.SetCheckpoint(height + 1)
	if err != nil {
		return err
	}

	logging.L.Info().
		Uint64("height", height).
		Int("cat_txs", matches.Len()).
		Msg("block scanned")
	return nil
}
