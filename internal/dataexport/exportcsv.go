// Package dataexport dumps the match index into csv files for use
// outside the tool chain.
package dataexport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opcat-tools/catwatch/internal/logging"
	"github.com/opcat-tools/catwatch/internal/report"
	"github.com/opcat-tools/catwatch/internal/storage"
)

func writeToCSV(path string, records [][]string) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return err
	}
	logging.L.Info().Msgf("Writing to %s", path)
	file, err := os.Create(path)
	if err != nil {
		logging.L.Err(err).Msg("failed creating file")
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	return writer.WriteAll(records)
}

/* Matches */

func ExportMatches(store storage.Store, path string) error {
	entries, err := report.Build(store, 0)
	if err != nil {
		logging.L.Err(err).Msg("error fetching all matches")
		return err
	}
	return writeToCSV(path, convertMatchesToRecords(entries))
}

func convertMatchesToRecords(entries []report.Entry) [][]string {
	var records [][]string

	records = append(records, []string{
		"blockheight",
		"txid",
		"scriptAsm",
		"scriptHex",
	})
	for _, entry := range entries {
		records = append(records, []string{
			strconv.FormatUint(entry.Height, 10),
			entry.Txid,
			entry.ScriptAsm,
			entry.ScriptHex,
		})
	}
	return records
}

/* Series */

func ExportSeries(store storage.Store, path string) error {
	start, end, ok, err := report.IndexedRange(store)
	if err != nil {
		logging.L.Err(err).Msg("error determining indexed range")
		return err
	}
	if !ok {
		logging.L.Warn().Msg("no matches recorded, exporting empty series")
		return writeToCSV(path, convertSeriesToRecords(nil))
	}
	points, err := report.Series(store, start, end)
	if err != nil {
		logging.L.Err(err).Msg("error building series")
		return err
	}
	return writeToCSV(path, convertSeriesToRecords(points))
}

func convertSeriesToRecords(points []report.Point) [][]string {
	var records [][]string

	records = append(records, []string{
		"blockheight",
		"count",
	})
	for _, point := range points {
		records = append(records, []string{
			strconv.FormatUint(point.Height, 10),
			strconv.FormatUint(point.Count, 10),
		})
	}
	return records
}
