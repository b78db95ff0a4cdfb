package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/opcat-tools/catwatch/internal/logging"
)

var (
	LogLevel = "info"
)

const (
	ConfigFileName       string = "catwatch.toml"
	DefaultBaseDirectory string = "~/.catwatch"
)

var (
	RpcEndpoint = "http://127.0.0.1:38332" // default local signet node
	CookiePath  = ""
	RpcUser     = ""
	RpcPass     = ""

	BaseDirectory = ""
	DBPath        = ""
	LogsPath      = ""

	HTTPHost = "127.0.0.1:8000"
)

type chain int

const (
	Unknown chain = iota
	Mainnet
	Signet
	Regtest
	Testnet3
)

// control vars
var (
	// SyncStartHeight is where scanning begins when the store holds no
	// checkpoint yet. The default is a signet height shortly before the
	// first known OP_CAT spends appeared.
	SyncStartHeight uint64 = 193_536

	Chain = Unknown

	// StoreBackend selects the key/value engine backing the match index.
	StoreBackend = "leveldb"

	// MatchMode selects the witness matching strategy, see internal/indexer.
	MatchMode = "strict"

	// ReportWindow is the number of blocks a report covers, counting back
	// from the checkpoint. Default is roughly one week of blocks.
	ReportWindow uint64 = 1008
)

// one has to call SetDirectories otherwise config.DBPath will be empty
func SetDirectories() {
	BaseDirectory = ResolvePath(BaseDirectory)

	DBPath = BaseDirectory + "/data"
	LogsPath = BaseDirectory + "/logs"
}

// StorePath is the directory the selected store backend writes to. Every
// backend gets its own directory so operators can switch engines without
// the engines reading each others files.
func StorePath() string {
	return filepath.Join(DBPath, StoreBackend)
}

// ResolvePath expands a leading ~ to the current user's home directory.
func ResolvePath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		logging.L.Panic().Err(err).Msg("could not resolve home directory")
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func ChainToString(c chain) string {
	switch c {
	case Mainnet:
		return "main"
	case Signet:
		return "signet"
	case Regtest:
		return "regtest"
	case Testnet3:
		return "testnet"
	default:
		logging.L.Panic().Msg("chain not defined")
		return ""
	}
}
