package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"can-telemetry-core/utils"
)

// session is what every command gets after flag and config resolution.
type session struct {
	cfg Config
	log *utils.Logger
}

var app session

var rootCmd = &cobra.Command{
	Use:          "telemetry_bridge",
	Short:        "Decode J1939/CAN telemetry from MQTT or SocketCAN into canonical records",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, os.Getenv)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		app = session{cfg: cfg, log: log}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app.log == nil {
			return nil
		}
		return app.log.Close()
	},
}

func init() {
	bindConfigFlags(rootCmd)
	rootCmd.AddCommand(runCmd, decodeCmd, dbcCmd, simulateCmd)
}

// newLogger writes human readable lines to stderr, plus JSON to the log file if set.
func newLogger(cfg Config) (*utils.Logger, error) {
	level := utils.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		return utils.NewLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level), nil
	}
	log, err := utils.NewFileLogger(cfg.LogFile, level, true)
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", cfg.LogFile)
	}
	return log, nil
}

// loadSignalTable loads the DBC or, failing that, the CSV map named by cfg. Neither
// being set is fine; JSON data payloads then only go through the J1939 table.
func loadSignalTable(cfg Config, log *utils.Logger) (*utils.CANMap, error) {
	switch {
	case cfg.DBCPath != "":
		return loadTableFile(cfg.DBCPath, log)
	case cfg.SignalMapPath != "":
		return loadTableFile(cfg.SignalMapPath, log)
	}
	return nil, nil
}

// loadTableFile picks the CSV loader for .csv files and the DBC loader otherwise.
func loadTableFile(path string, log *utils.Logger) (*utils.CANMap, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		m, err := utils.LoadCANMap(path)
		if err != nil {
			return nil, err
		}
		log.Info("signal map %s: %d frames", path, m.Len())
		return m, nil
	}
	m, info, err := utils.LoadDBC(path)
	if err != nil {
		return nil, err
	}
	if info.Lenient {
		log.Warn("dbc %s: strict parse failed (%v); line scan recovered %d messages", path, info.StrictErr, info.Messages)
	}
	log.Info("dbc %s: %d messages, %d signals", path, info.Messages, info.Signals)
	return m, nil
}
