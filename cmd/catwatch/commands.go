package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opcat-tools/catwatch/internal/chain"
	"github.com/opcat-tools/catwatch/internal/config"
	"github.com/opcat-tools/catwatch/internal/dataexport"
	"github.com/opcat-tools/catwatch/internal/indexer"
	"github.com/opcat-tools/catwatch/internal/logging"
	"github.com/opcat-tools/catwatch/internal/report"
	"github.com/opcat-tools/catwatch/internal/server"
	"github.com/opcat-tools/catwatch/internal/storage"
)

func openStore() (storage.Store, error) {
	return storage.Open(config.StoreBackend, config.StorePath())
}

func closeStore(store storage.Store) {
	if err := store.Close(); err != nil {
		logging.L.Err(err).Msg("error closing store")
	}
}

func newChainClient() *chain.Client {
	return chain.NewClient(config.RpcEndpoint, config.RpcUser, config.RpcPass)
}

var startIndexCmd = &cobra.Command{
	Use:   "start_index",
	Short: "Scan the chain for OP_CAT transactions",
	Long: `Scan blocks from the stored checkpoint, or from sync_start_height on a
fresh store, up to the chain tip minus the safety margin. The scan is
resumable, interrupting it loses at most the block being processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		client := newChainClient()
		// fail fast when the node is unreachable
		tip, err := client.BlockCount()
		if err != nil {
			return fmt.Errorf("node unreachable: %w", err)
		}
		logging.L.Info().
			Uint64("tip", tip).
			Str("endpoint", config.RpcEndpoint).
			Msg("connected to node")

		mode, err := indexer.ParseMode(config.MatchMode)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ix := indexer.New(client, store, indexer.NewMatcher(mode, client), config.SyncStartHeight)
		err = ix.Run(ctx)
		if err != nil && errors.Is(err, context.Canceled) {
			logging.L.Info().Msg("scan interrupted, progress saved")
			return nil
		}
		return err
	},
}

var getCheckpointCmd = &cobra.Command{
	Use:   "get_checkpoint",
	Short: "Print the next height the scan will process and the chain tip",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		checkpoint, err := store.Checkpoint()
		if err != nil && errors.Is(err, storage.NoEntryErr{}) {
			fmt.Printf("no checkpoint yet, next scan starts at %d\n", config.SyncStartHeight)
			checkpoint = config.SyncStartHeight
		} else if err != nil {
			return fmt.Errorf("error reading checkpoint: %w", err)
		} else {
			fmt.Printf("checkpoint: %d\n", checkpoint)
		}

		tip, err := newChainClient().BlockCount()
		if err != nil {
			logging.L.Warn().Err(err).Msg("node unreachable, skipping chain tip")
			return nil
		}
		fmt.Printf("chain tip: %d\n", tip)
		if tip >= indexer.BlockDepth && checkpoint < tip-indexer.BlockDepth {
			fmt.Printf("blocks to scan: %d\n", tip-indexer.BlockDepth-checkpoint)
		}
		return nil
	},
}

var getTotalCatTxsCmd = &cobra.Command{
	Use:   "get_total_cat_txs",
	Short: "Print how many OP_CAT transactions the index holds",
	Long: `Print the number of matched transactions, over the whole index or over
[start, end) when the bounds are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		total, err := report.TotalCatTxs(store, totalStart, totalEnd)
		if err != nil {
			return fmt.Errorf("error counting cat txs: %w", err)
		}

		fmt.Printf("total cat txs: %d\n", total)
		return nil
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the per block match counts as a chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		start, end, ok, err := report.IndexedRange(store)
		if err != nil {
			return fmt.Errorf("error determining indexed range: %w", err)
		}
		// explicit bounds override the indexed range
		if cmd.Flags().Changed("start") {
			start, ok = plotStart, true
		}
		if cmd.Flags().Changed("end") {
			end, ok = plotEnd, true
		}
		if !ok {
			return fmt.Errorf("no matches recorded yet, nothing to plot")
		}

		points, err := report.Series(store, start, end)
		if err != nil {
			return fmt.Errorf("error building series: %w", err)
		}
		if err := report.RenderPlot(points, plotPath); err != nil {
			return fmt.Errorf("error rendering plot: %w", err)
		}

		logging.L.Info().Str("path", plotPath).Msg("plot written")
		return nil
	},
}

var generateReportCmd = &cobra.Command{
	Use:   "generate_report",
	Short: "Write a JSON report of the matched transactions",
	Long: `Write a JSON report covering the configured window of blocks in front of
the checkpoint. Every entry carries the txid, the tapscripts that
triggered the match and the raw transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		window := config.ReportWindow
		if cmd.Flags().Changed("window") {
			window = reportWindow
		}

		entries, err := report.Build(store, window)
		if err != nil {
			return fmt.Errorf("error building report: %w", err)
		}
		if err := report.WriteJSON(entries, reportPath); err != nil {
			return fmt.Errorf("error writing report: %w", err)
		}

		logging.L.Info().
			Int("matches", len(entries)).
			Str("path", reportPath).
			Msg("report written")
		return nil
	},
}

var exportCsvCmd = &cobra.Command{
	Use:   "export_csv",
	Short: "Export the match index as csv files",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		err = dataexport.ExportMatches(store, filepath.Join(exportDir, "matches.csv"))
		if err != nil {
			return fmt.Errorf("error exporting matches: %w", err)
		}
		err = dataexport.ExportSeries(store, filepath.Join(exportDir, "series.csv"))
		if err != nil {
			return fmt.Errorf("error exporting series: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the match index over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		logging.L.Info().Str("host", config.HTTPHost).Msg("serving match index")
		server.RunServer(&server.ApiHandler{Store: store})
		return nil
	},
}

var inspectDbCmd = &cobra.Command{
	Use:   "inspect_db",
	Short: "Print a summary of the match index store",
	Long: `Print the store backend, the checkpoint and the match count of every
indexed height. Useful to sanity check a store without starting the
HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("error opening store: %w", err)
		}
		defer closeStore(store)

		fmt.Println("catwatch store summary")
		fmt.Println("======================")
		fmt.Printf("%-15s: %s\n", "backend", config.StoreBackend)
		fmt.Printf("%-15s: %s\n", "path", config.StorePath())

		checkpoint, err := store.Checkpoint()
		if err != nil && errors.Is(err, storage.NoEntryErr{}) {
			fmt.Printf("%-15s: none\n", "checkpoint")
		} else if err != nil {
			return fmt.Errorf("error reading checkpoint: %w", err)
		} else {
			fmt.Printf("%-15s: %d\n", "checkpoint", checkpoint)
		}

		heights, err := store.Heights()
		if err != nil {
			return fmt.Errorf("error listing heights: %w", err)
		}
		fmt.Printf("%-15s: %d\n", "indexed heights", len(heights))
		if len(heights) == 0 {
			return nil
		}
		fmt.Printf("%-15s: %d - %d\n", "range", heights[0], heights[len(heights)-1])

		fmt.Println()
		var total int
		for _, height := range heights {
			set, err := store.Matches(height)
			if err != nil {
				return fmt.Errorf("error reading matches at height %d: %w", height, err)
			}
			fmt.Printf("%-15d: %d txs\n", height, set.Len())
			total += set.Len()
		}
		fmt.Printf("%-15s: %d txs\n", "TOTAL", total)
		return nil
	},
}
