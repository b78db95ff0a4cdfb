package main

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/opcat-tools/catwatch/internal/config"
	"github.com/opcat-tools/catwatch/internal/logging"
)

var (
	Version = "0.0.0" // todo: LD flags etc. to setup correctly and add git hash

	// Global flags
	datadir    string
	configFile string

	// Command flags
	totalStart   uint64
	totalEnd     uint64
	plotPath     string
	plotStart    uint64
	plotEnd      uint64
	reportPath   string
	reportWindow uint64
	exportDir    string
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(
		&datadir,
		"datadir",
		config.DefaultBaseDirectory,
		"Set the base directory for catwatch. Default directory is ~/.catwatch",
	)
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Path to config file (default: datadir/catwatch.toml)",
	)

	getTotalCatTxsCmd.Flags().Uint64Var(
		&totalStart,
		"start",
		0,
		"Only count matches at or above this height",
	)
	getTotalCatTxsCmd.Flags().Uint64Var(
		&totalEnd,
		"end",
		0,
		"Only count matches below this height, 0 means no upper bound",
	)

	plotCmd.Flags().StringVar(
		&plotPath,
		"out",
		"cat_txs.png",
		"File the chart is written to, format follows the extension",
	)
	plotCmd.Flags().Uint64Var(
		&plotStart,
		"start",
		0,
		"First height on the chart (default: the first indexed height)",
	)
	plotCmd.Flags().Uint64Var(
		&plotEnd,
		"end",
		0,
		"Height the chart stops before (default: the checkpoint)",
	)

	generateReportCmd.Flags().StringVar(
		&reportPath,
		"out",
		"cat_report.json",
		"File the JSON report is written to",
	)
	generateReportCmd.Flags().Uint64Var(
		&reportWindow,
		"window",
		0,
		"Number of blocks before the checkpoint to report on, 0 covers the whole index (default: report_window from the config)",
	)

	exportCsvCmd.Flags().StringVar(
		&exportDir,
		"out",
		"catwatch-export",
		"Directory the csv files are written to",
	)
}

var rootCmd = &cobra.Command{
	Use:   "catwatch",
	Short: "OP_CAT transaction indexer",
	Long: `catwatch scans a Bitcoin style chain through a bitcoind node and keeps a
resumable index of every transaction spending through a tapscript that
contains OP_CAT. The index can be queried, plotted, exported and served
over HTTP.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.BaseDirectory = datadir
		config.SetDirectories()

		err := os.Mkdir(config.BaseDirectory, 0750)
		if err != nil && !errors.Is(err, os.ErrExist) {
			logging.L.Fatal().Err(err).Msg("error creating base directory")
		}

		logging.L.Info().Msgf("base directory %s", config.BaseDirectory)

		if configFile == "" {
			configFile = path.Join(config.BaseDirectory, config.ConfigFileName)
		}
		config.LoadConfigs(configFile)

		err = os.Mkdir(config.DBPath, 0750)
		if err != nil && !errors.Is(err, os.ErrExist) {
			logging.L.Fatal().Err(err).Msg("error creating db path")
		}

		if config.LogsPath != "" {
			if err := logging.SetLogOutput(config.LogsPath, "catwatch.log"); err != nil {
				logging.L.Warn().Err(err).Msg("Failed to initialize file logging")
			}
		}
	},
}

func main() {
	defer logging.Close()

	rootCmd.AddCommand(startIndexCmd)
	rootCmd.AddCommand(getCheckpointCmd)
	rootCmd.AddCommand(getTotalCatTxsCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(generateReportCmd)
	rootCmd.AddCommand(exportCsvCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectDbCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
