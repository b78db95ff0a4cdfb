// Package logging holds the shared zerolog logger. All packages log
// through logging.L so level and output can be switched in one place.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// L is the process wide logger.
var L zerolog.Logger

var logFile *os.File

func init() {
	L = zerolog.New(consoleWriter()).With().Timestamp().Logger()
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
}

func SetLogLevel(level zerolog.Level) {
	L = L.Level(level)
}

// SetLogOutput mirrors all log output into a file inside dir,
// in addition to the console. Call Close on shutdown.
func SetLogOutput(dir, filename string) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return err
	}
	logFile = f
	multi := zerolog.MultiLevelWriter(consoleWriter(), f)
	L = zerolog.New(multi).With().Timestamp().Logger().Level(L.GetLevel())
	return nil
}

// Close releases the log file if one was opened.
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
