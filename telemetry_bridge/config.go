package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// Config is read once at startup. Explicit flags win over the config file, which
// wins over CANTEL_* environment variables.
type Config struct {
	MQTTBroker    string `json:"mqtt_broker"`
	MQTTTopic     string `json:"mqtt_topic"`
	NATSURL       string `json:"nats_url"`
	NATSSubject   string `json:"nats_subject"`
	DBCPath       string `json:"dbc"`
	SignalMapPath string `json:"signal_map"`
	Interface     string `json:"iface"`
	LogLevel      string `json:"log"`
	LogFile       string `json:"log_file"`
}

type configFlag struct {
	name  string
	env   string
	def   string
	usage string
	field func(*Config) *string
}

var configFlags = []configFlag{
	{"mqtt-broker", "CANTEL_MQTT_BROKER", "tcp://localhost:1883", "MQTT broker URL",
		func(c *Config) *string { return &c.MQTTBroker }},
	{"mqtt-topic", "CANTEL_MQTT_TOPIC", "vehicle/+/can", "MQTT topic carrying telemetry",
		func(c *Config) *string { return &c.MQTTTopic }},
	{"nats-url", "CANTEL_NATS_URL", "", "NATS server URL; empty writes records to stdout",
		func(c *Config) *string { return &c.NATSURL }},
	{"nats-subject", "CANTEL_NATS_SUBJECT", "telemetry.records", "NATS subject for records",
		func(c *Config) *string { return &c.NATSSubject }},
	{"dbc", "CANTEL_DBC", "", "DBC file decoding JSON data payloads (takes precedence over --signal-map)",
		func(c *Config) *string { return &c.DBCPath }},
	{"signal-map", "CANTEL_SIGNAL_MAP", "", "CSV signal map, used when no DBC is given",
		func(c *Config) *string { return &c.SignalMapPath }},
	{"iface", "CANTEL_IFACE", "can0", "SocketCAN interface",
		func(c *Config) *string { return &c.Interface }},
	{"log", "CANTEL_LOG", "info", "trace|debug|info|warn|error|critical",
		func(c *Config) *string { return &c.LogLevel }},
	{"log-file", "CANTEL_LOG_FILE", "", "also append JSON logs to this file",
		func(c *Config) *string { return &c.LogFile }},
}

const flagConfig = "config"

func bindConfigFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String(flagConfig, "", "JSON config file")
	for _, f := range configFlags {
		pf.String(f.name, f.def, f.usage+" ($"+f.env+")")
	}
}

func envConfig(getenv func(string) string) Config {
	var cfg Config
	for _, f := range configFlags {
		v := getenv(f.env)
		if v == "" {
			v = f.def
		}
		*f.field(&cfg) = v
	}
	return cfg
}

// LoadConfigFile overlays the keys present in path onto cfg.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func resolveConfig(cmd *cobra.Command, getenv func(string) string) (Config, error) {
	cfg := envConfig(getenv)
	fs := cmd.Flags()
	if path, _ := fs.GetString(flagConfig); path != "" {
		if err := LoadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	for _, f := range configFlags {
		if fs.Changed(f.name) {
			v, _ := fs.GetString(f.name)
			*f.field(&cfg) = v
		}
	}
	return cfg, nil
}
