package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/opcat-tools/catwatch/internal/logging"
)

func LoadConfigs(pathToConfig string) {
	// Set the file name of the configurations file
	viper.SetConfigFile(pathToConfig)

	// Handle errors reading the config file
	if err := viper.ReadInConfig(); err != nil {
		logging.L.Warn().Err(err).Msg("No config file detected")
	}

	/* set defaults */
	viper.SetDefault("http_host", HTTPHost)
	viper.SetDefault("chain", "signet")

	viper.SetDefault("core_rpc_endpoint", RpcEndpoint)

	viper.SetDefault("sync_start_height", SyncStartHeight)
	viper.SetDefault("store_backend", StoreBackend)
	viper.SetDefault("match_mode", MatchMode)
	viper.SetDefault("report_window", ReportWindow)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_path", LogsPath)

	// Bind viper keys to environment variables (optional, for backup)
	viper.AutomaticEnv()
	viper.BindEnv("http_host", "HTTP_HOST")
	viper.BindEnv("chain", "CHAIN")
	viper.BindEnv("core_rpc_endpoint", "CORE_RPC_ENDPOINT")
	viper.BindEnv("cookie_path", "COOKIE_PATH")
	viper.BindEnv("rpc_pass", "RPC_PASS")
	viper.BindEnv("rpc_user", "RPC_USER")
	viper.BindEnv("sync_start_height", "SYNC_START_HEIGHT")
	viper.BindEnv("store_backend", "STORE_BACKEND")
	viper.BindEnv("match_mode", "MATCH_MODE")
	viper.BindEnv("report_window", "REPORT_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("log_path", "LOG_PATH")

	/* read and set config variables */
	// General
	SyncStartHeight = viper.GetUint64("sync_start_height")
	HTTPHost = viper.GetString("http_host")
	LogLevel = viper.GetString("log_level")
	LogsPath = viper.GetString("log_path")

	// Index
	StoreBackend = viper.GetString("store_backend")
	MatchMode = viper.GetString("match_mode")
	ReportWindow = viper.GetUint64("report_window")

	// RPC
	RpcEndpoint = viper.GetString("core_rpc_endpoint")
	CookiePath = viper.GetString("cookie_path")
	RpcPass = viper.GetString("rpc_pass")
	RpcUser = viper.GetString("rpc_user")

	chainInput := viper.GetString("chain")

	switch chainInput {
	case "main":
		Chain = Mainnet
	case "signet":
		Chain = Signet
	case "regtest":
		Chain = Regtest
	case "testnet":
		Chain = Testnet3
	default:
		logging.L.Fatal().Msg("chain undefined")
		return
	}

	switch LogLevel {
	case "trace":
		logging.SetLogLevel(zerolog.TraceLevel)
	case "info":
		logging.SetLogLevel(zerolog.InfoLevel)
	case "debug":
		logging.SetLogLevel(zerolog.DebugLevel)
	case "warn":
		logging.SetLogLevel(zerolog.WarnLevel)
	case "error":
		logging.SetLogLevel(zerolog.ErrorLevel)
	}

	logging.L.Info().Msgf("chain: %s", chainInput)
	logging.L.Info().Msgf("store_backend: %s", StoreBackend)
	logging.L.Info().Msgf("match_mode: %s", MatchMode)

	if RpcEndpoint != "" {
		if CookiePath != "" {
			data, err := os.ReadFile(CookiePath)
			if err != nil {
				logging.L.Fatal().Err(err).Msg("error reading cookie file")
			}

			credentials := strings.Split(string(data), ":")
			if len(credentials) != 2 {
				logging.L.Fatal().Msg("cookie file is invalid")
			}
			RpcUser = credentials[0]
			RpcPass = credentials[1]
		}

		if RpcUser == "" {
			logging.L.Fatal().Msg("rpc user not set")
		}

		if RpcPass == "" {
			logging.L.Fatal().Msg("rpc pass not set")
		}
	}
}
